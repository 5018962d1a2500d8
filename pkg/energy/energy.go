// Package energy holds the numeric reductions behind the dashboard: sums,
// averages, peaks, appliance breakdowns and cost estimates.
package energy

import (
	"github.com/voltify/voltify/pkg/types"
)

// DaysPerMonth is the approximation used for the monthly estimate.
const DaysPerMonth = 30

// Sum returns the total kWh across points.
func Sum(points []types.PowerDataPoint) float64 {
	var total float64
	for _, p := range points {
		total += p.KWH
	}
	return total
}

// Average returns the mean kWh across points, or 0 when there are none.
func Average(points []types.PowerDataPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	return Sum(points) / float64(len(points))
}

// Peak returns the point with the highest kWh. The first point wins ties.
func Peak(points []types.PowerDataPoint) (types.PowerDataPoint, bool) {
	if len(points) == 0 {
		return types.PowerDataPoint{}, false
	}
	peak := points[0]
	for _, p := range points[1:] {
		if p.KWH > peak.KWH {
			peak = p
		}
	}
	return peak, true
}

// TotalConsumption returns the summed draw of the appliances in watts.
func TotalConsumption(appliances []types.Appliance) float64 {
	var total float64
	for _, a := range appliances {
		total += a.PowerConsumption
	}
	return total
}

// Percentage returns part as a rounded percentage of total, or 0 if total is
// not positive.
func Percentage(part, total float64) int {
	if total <= 0 {
		return 0
	}
	return int(jsRound(part / total * 100))
}

// Breakdown returns each appliance's share of the total draw. An empty list
// or a zero total yields an empty dataset.
func Breakdown(appliances []types.Appliance) []types.BreakdownSlice {
	total := TotalConsumption(appliances)
	if total <= 0 {
		return []types.BreakdownSlice{}
	}
	slices := make([]types.BreakdownSlice, 0, len(appliances))
	for _, a := range appliances {
		slices = append(slices, types.BreakdownSlice{
			Name:  a.Name,
			Value: Percentage(a.PowerConsumption, total),
			Fill:  a.Color,
		})
	}
	return slices
}

// Shares is Breakdown in the shape the advisor expects. Unlike Breakdown it
// keeps every appliance and reports 0% when the total is 0.
func Shares(appliances []types.Appliance) []types.ApplianceShare {
	total := TotalConsumption(appliances)
	shares := make([]types.ApplianceShare, 0, len(appliances))
	for _, a := range appliances {
		shares = append(shares, types.ApplianceShare{
			Appliance:  a.Name,
			Percentage: Percentage(a.PowerConsumption, total),
		})
	}
	return shares
}

// DailyCost is the day's consumption priced at rate.
func DailyCost(points []types.PowerDataPoint, rate float64) float64 {
	return Sum(points) * rate
}

// MonthlyCost projects a daily cost over DaysPerMonth.
func MonthlyCost(dailyCost float64) float64 {
	return dailyCost * DaysPerMonth
}

// OverLimit returns the appliances drawing more than their configured limit.
func OverLimit(appliances []types.Appliance) []types.Appliance {
	var over []types.Appliance
	for _, a := range appliances {
		if a.PowerLimit > 0 && a.PowerConsumption > a.PowerLimit {
			over = append(over, a)
		}
	}
	return over
}

// HighestDraw returns the appliance with the largest draw, which is the one
// auto-cutoff turns off.
func HighestDraw(appliances []types.Appliance) (types.Appliance, bool) {
	if len(appliances) == 0 {
		return types.Appliance{}, false
	}
	top := appliances[0]
	for _, a := range appliances[1:] {
		if a.PowerConsumption > top.PowerConsumption {
			top = a
		}
	}
	return top, true
}
