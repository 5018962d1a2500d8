package energy

import (
	"slices"

	"github.com/voltify/voltify/pkg/types"
)

// PeakTime is the label reported as the time of the daily peak.
const PeakTime = "18:00"

// The efficiency score shown next to the tips.
const (
	EfficiencyGrade   = "B+"
	EfficiencySummary = "Good job! Your home is more efficient than the average Indian household."
)

var dailyPowerData = []types.PowerDataPoint{
	{Time: "00:00", KWH: 1.2},
	{Time: "02:00", KWH: 1.5},
	{Time: "04:00", KWH: 1.4},
	{Time: "06:00", KWH: 1.8},
	{Time: "08:00", KWH: 2.2},
	{Time: "10:00", KWH: 2.5},
	{Time: "12:00", KWH: 2.3},
	{Time: "14:00", KWH: 2.8},
	{Time: "16:00", KWH: 3.1},
	{Time: "18:00", KWH: 3.5},
	{Time: "20:00", KWH: 3.2},
	{Time: "22:00", KWH: 2.1},
}

var weeklyPowerData = []types.PowerDataPoint{
	{Time: "Mon", KWH: 25},
	{Time: "Tue", KWH: 28},
	{Time: "Wed", KWH: 22},
	{Time: "Thu", KWH: 30},
	{Time: "Fri", KWH: 35},
	{Time: "Sat", KWH: 40},
	{Time: "Sun", KWH: 38},
}

var monthlyPowerData = []types.PowerDataPoint{
	{Time: "Week 1", KWH: 180},
	{Time: "Week 2", KWH: 200},
	{Time: "Week 3", KWH: 190},
	{Time: "Week 4", KWH: 210},
}

var defaultAppliances = []types.Appliance{
	{Name: "AC", PowerConsumption: 1500, PowerLimit: 2000, Color: "hsl(221.2 83.2% 53.3%)"},
	{Name: "Refrigerator", PowerConsumption: 200, PowerLimit: 300, Color: "hsl(142.1 76.2% 86.3%)"},
	{Name: "Washing Machine", PowerConsumption: 500, PowerLimit: 700, Color: "hsl(47.9 95.8% 53.1%)"},
}

var efficiencyTips = []types.Tip{
	{
		Title:   "Optimize Your AC Usage",
		Content: "Set your thermostat to 24-26°C. Every degree lower increases electricity consumption by 6-8%. Clean the filters monthly for better efficiency.",
	},
	{
		Title:   "Switch to LED Lighting",
		Content: "LED bulbs use up to 80% less energy than incandescent bulbs and last 25 times longer. This is a simple switch with significant long-term savings.",
	},
	{
		Title:   "Unplug Electronics",
		Content: "Many electronics continue to draw power even when turned off. Unplug chargers, TVs, and other appliances when not in use, or use a smart power strip.",
	},
	{
		Title:   "Use Appliances Efficiently",
		Content: "Run your washing machine and dishwasher with full loads. Use the 'eco' mode if available. Air-dry clothes instead of using a dryer whenever possible.",
	},
}

// The accessors below return copies so callers can mutate freely.

// DailyPowerData is the reference day in two-hour slots.
func DailyPowerData() []types.PowerDataPoint { return slices.Clone(dailyPowerData) }

// WeeklyPowerData is the reference week, Monday first.
func WeeklyPowerData() []types.PowerDataPoint { return slices.Clone(weeklyPowerData) }

// MonthlyPowerData is the reference month in weeks.
func MonthlyPowerData() []types.PowerDataPoint { return slices.Clone(monthlyPowerData) }

// DefaultAppliances is what a household starts with before adding its own.
func DefaultAppliances() []types.Appliance { return slices.Clone(defaultAppliances) }

// Tips are the static efficiency tips.
func Tips() []types.Tip { return slices.Clone(efficiencyTips) }
