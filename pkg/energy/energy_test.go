package energy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltify/voltify/pkg/types"
)

func TestSumAverage(t *testing.T) {
	daily := DailyPowerData()
	assert.InDelta(t, 27.6, Sum(daily), 1e-9)
	assert.InDelta(t, 2.3, Average(daily), 1e-9)

	assert.Zero(t, Sum(nil))
	assert.Zero(t, Average(nil), "empty input must not divide by zero")
}

func TestPeak(t *testing.T) {
	p, ok := Peak(DailyPowerData())
	require.True(t, ok)
	assert.Equal(t, types.PowerDataPoint{Time: "18:00", KWH: 3.5}, p)

	p, ok = Peak([]types.PowerDataPoint{{Time: "a", KWH: 2}, {Time: "b", KWH: 2}})
	require.True(t, ok)
	assert.Equal(t, "a", p.Time)

	_, ok = Peak(nil)
	assert.False(t, ok)
}

func TestBreakdown(t *testing.T) {
	t.Run("sums to 100", func(t *testing.T) {
		slices := Breakdown(DefaultAppliances())
		require.Len(t, slices, 3)

		var total int
		for _, s := range slices {
			total += s.Value
		}
		assert.Equal(t, 100, total)
		assert.Equal(t, types.BreakdownSlice{Name: "AC", Value: 68, Fill: "hsl(221.2 83.2% 53.3%)"}, slices[0])
		assert.Equal(t, 9, slices[1].Value)
		assert.Equal(t, 23, slices[2].Value)
	})

	t.Run("empty", func(t *testing.T) {
		slices := Breakdown(nil)
		require.NotNil(t, slices)
		assert.Empty(t, slices)
	})

	t.Run("zero draw", func(t *testing.T) {
		slices := Breakdown([]types.Appliance{{Name: "Lamp"}, {Name: "Fan"}})
		assert.Empty(t, slices)
	})
}

func TestShares(t *testing.T) {
	shares := Shares(DefaultAppliances())
	assert.Equal(t, []types.ApplianceShare{
		{Appliance: "AC", Percentage: 68},
		{Appliance: "Refrigerator", Percentage: 9},
		{Appliance: "Washing Machine", Percentage: 23},
	}, shares)

	zero := Shares([]types.Appliance{{Name: "Lamp"}})
	assert.Equal(t, []types.ApplianceShare{{Appliance: "Lamp", Percentage: 0}}, zero)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 50, Percentage(1, 2))
	assert.Equal(t, 33, Percentage(1, 3))
	assert.Equal(t, 67, Percentage(2, 3))
	assert.Equal(t, 0, Percentage(5, 0))
}

func TestCosts(t *testing.T) {
	daily := DailyCost(DailyPowerData(), 8)
	assert.InDelta(t, 220.8, daily, 1e-9)
	assert.InDelta(t, 6624, MonthlyCost(daily), 1e-6)
}

func TestOverLimitAndHighestDraw(t *testing.T) {
	appliances := []types.Appliance{
		{Name: "AC", PowerConsumption: 2500, PowerLimit: 2000},
		{Name: "Fridge", PowerConsumption: 200, PowerLimit: 300},
		{Name: "Heater", PowerConsumption: 900},
	}
	over := OverLimit(appliances)
	require.Len(t, over, 1)
	assert.Equal(t, "AC", over[0].Name)

	top, ok := HighestDraw(appliances)
	require.True(t, ok)
	assert.Equal(t, "AC", top.Name)

	_, ok = HighestDraw(nil)
	assert.False(t, ok)
}

func TestReferenceDataIsCopied(t *testing.T) {
	d := DailyPowerData()
	d[0].KWH = 99
	assert.Equal(t, 1.2, DailyPowerData()[0].KWH)

	a := DefaultAppliances()
	a[0].Name = "changed"
	assert.Equal(t, "AC", DefaultAppliances()[0].Name)

	assert.Len(t, WeeklyPowerData(), 7)
	assert.Len(t, MonthlyPowerData(), 4)
	assert.Len(t, Tips(), 4)
}
