package energy

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/voltify/voltify/pkg/types"
)

// FormatKWH renders an energy value for display, e.g. "1,234.50 kWh".
func FormatKWH(kwh float64) string {
	return humanize.FormatFloat("#,###.##", kwh) + " kWh"
}

// FormatMoney renders an amount with the currency symbol, e.g. "₹6,624.00".
func FormatMoney(currency string, amount float64) string {
	return currency + humanize.FormatFloat("#,###.##", amount)
}

// BuildStats computes the four dashboard cards from the day's data, the
// current live usage and the user's rate.
func BuildStats(daily []types.PowerDataPoint, currentKWH float64, settings types.Settings) types.Stats {
	dailyCost := DailyCost(daily, settings.ElectricityRate)
	monthlyCost := MonthlyCost(dailyCost)
	peak, _ := Peak(daily)

	return types.Stats{
		CurrentUsage: types.StatCard{
			Title:       "Current Usage",
			Value:       FormatKWH(currentKWH),
			Raw:         currentKWH,
			Description: "Real-time power consumption",
			Tooltip:     "The current amount of electricity your home is using right now.",
		},
		DailyCost: types.StatCard{
			Title:       "Daily Cost",
			Value:       FormatMoney(settings.Currency, dailyCost),
			Raw:         dailyCost,
			Description: "Based on your daily usage",
			Tooltip: fmt.Sprintf(
				"Calculated based on a rate of %s%s per kWh for today's consumption.",
				settings.Currency,
				humanize.Ftoa(settings.ElectricityRate),
			),
		},
		MonthlyCost: types.StatCard{
			Title:       "Est. Monthly Cost",
			Value:       FormatMoney(settings.Currency, monthlyCost),
			Raw:         monthlyCost,
			Description: "Projected from daily average",
			Tooltip:     "An estimate of your total electricity bill for the current month based on your usage so far.",
		},
		PeakUsage: types.StatCard{
			Title:       "Peak Usage Today",
			Value:       FormatKWH(peak.KWH),
			Raw:         peak.KWH,
			Description: "Highest consumption point",
			Tooltip:     "The highest point of electricity consumption recorded in your home today.",
		},
	}
}
