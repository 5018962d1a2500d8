package energy

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/voltify/voltify/pkg/types"
)

// SlotsPerDay is the number of two-hour slots in the daily chart. Each
// persisted reading samples the level of one slot, so a day's consumption is
// the mean reading times SlotsPerDay.
const SlotsPerDay = 12

// SlotDuration is the span a reading's KWH is measured over.
const SlotDuration = 24 * time.Hour / SlotsPerDay

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DailyTotals returns the estimated consumption of each calendar day (in
// loc) that has readings, keyed by local midnight.
func DailyTotals(readings []types.PowerReading, loc *time.Location) map[time.Time]float64 {
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for _, r := range readings {
		day := midnight(r.Timestamp.In(loc))
		sums[day] += r.KWH
		counts[day]++
	}
	totals := make(map[time.Time]float64, len(sums))
	for day, sum := range sums {
		totals[day] = sum / float64(counts[day]) * SlotsPerDay
	}
	return totals
}

// AggregateWeekly rolls readings into the seven days ending on now's day,
// oldest first, labeled by weekday. Days without readings are 0.
func AggregateWeekly(readings []types.PowerReading, now time.Time) []types.PowerDataPoint {
	totals := DailyTotals(readings, now.Location())
	today := midnight(now)
	points := make([]types.PowerDataPoint, 0, 7)
	for i := 6; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		points = append(points, types.PowerDataPoint{
			Time: day.Weekday().String()[:3],
			KWH:  totals[day],
		})
	}
	return points
}

// AggregateMonthly rolls readings into four seven-day buckets ending on
// now's day, labeled "Week 1" (oldest) to "Week 4".
func AggregateMonthly(readings []types.PowerReading, now time.Time) []types.PowerDataPoint {
	totals := DailyTotals(readings, now.Location())
	start := midnight(now).AddDate(0, 0, -27)
	points := make([]types.PowerDataPoint, 4)
	for i := range points {
		points[i].Time = fmt.Sprintf("Week %d", i+1)
	}
	for day, total := range totals {
		if day.Before(start) {
			continue
		}
		// round so DST days still land in the right bucket
		idx := int(math.Round(day.Sub(start).Hours()/24)) / 7
		if idx > 3 {
			continue
		}
		points[idx].KWH += total
	}
	return points
}

// Consumption integrates readings up to end. Each reading holds until the next
// one but for no longer than a slot, so gaps in the data count as nothing.
func Consumption(readings []types.PowerReading, end time.Time) float64 {
	sorted := slices.Clone(readings)
	slices.SortFunc(sorted, func(a, b types.PowerReading) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	var kwh float64
	for i, r := range sorted {
		until := r.Timestamp.Add(SlotDuration)
		if i+1 < len(sorted) && sorted[i+1].Timestamp.Before(until) {
			until = sorted[i+1].Timestamp
		}
		if end.Before(until) {
			until = end
		}
		if d := until.Sub(r.Timestamp); d > 0 {
			kwh += r.KWH * float64(d) / float64(SlotDuration)
		}
	}
	return kwh
}

// SummarizeCost prices the consumption recorded up to end at the user's rate.
func SummarizeCost(readings []types.PowerReading, settings types.Settings, end time.Time) types.CostSummary {
	kwh := Consumption(readings, end)
	return types.CostSummary{
		KWH:      kwh,
		Cost:     kwh * settings.ElectricityRate,
		Rate:     settings.ElectricityRate,
		Currency: settings.Currency,
		Readings: len(readings),
	}
}
