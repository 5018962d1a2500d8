package energy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/voltify/voltify/pkg/types"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "3.50 kWh", FormatKWH(3.5))
	assert.Equal(t, "1,234.57 kWh", FormatKWH(1234.567))
	assert.Equal(t, "₹6,624.00", FormatMoney("₹", 6624))
	assert.Equal(t, "$0.25", FormatMoney("$", 0.25))
}

func TestBuildStats(t *testing.T) {
	stats := BuildStats(DailyPowerData(), 2.1, types.DefaultSettings())

	assert.Equal(t, "Current Usage", stats.CurrentUsage.Title)
	assert.Equal(t, "2.10 kWh", stats.CurrentUsage.Value)

	assert.Equal(t, "₹220.80", stats.DailyCost.Value)
	assert.InDelta(t, 220.8, stats.DailyCost.Raw, 1e-9)
	assert.Equal(t, "Calculated based on a rate of ₹8 per kWh for today's consumption.", stats.DailyCost.Tooltip)

	assert.Equal(t, "₹6,624.00", stats.MonthlyCost.Value)
	assert.Equal(t, "3.50 kWh", stats.PeakUsage.Value)
	assert.Equal(t, "Highest consumption point", stats.PeakUsage.Description)
}

func TestBuildStatsEmptyDay(t *testing.T) {
	stats := BuildStats(nil, 0, types.DefaultSettings())
	assert.Zero(t, stats.DailyCost.Raw)
	assert.Zero(t, stats.PeakUsage.Raw)
}
