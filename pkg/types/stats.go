package types

// StatCard is one tile on the dashboard.
type StatCard struct {
	Title       string  `json:"title"`
	Value       string  `json:"value"`
	Raw         float64 `json:"raw"`
	Description string  `json:"description"`
	Tooltip     string  `json:"tooltip,omitempty"`
}

// Stats is the response for the stats endpoint.
type Stats struct {
	CurrentUsage StatCard `json:"currentUsage"`
	DailyCost    StatCard `json:"dailyCost"`
	MonthlyCost  StatCard `json:"monthlyCost"`
	PeakUsage    StatCard `json:"peakUsage"`
}

// BreakdownSlice is one slice of the appliance pie chart.
type BreakdownSlice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Fill  string `json:"fill"`
}

// ConsumptionRange selects which chart dataset to return.
type ConsumptionRange string

const (
	ConsumptionRangeDaily   ConsumptionRange = "daily"
	ConsumptionRangeWeekly  ConsumptionRange = "weekly"
	ConsumptionRangeMonthly ConsumptionRange = "monthly"
)

// CostSummary totals consumption and cost over a time range.
type CostSummary struct {
	KWH      float64 `json:"kwh"`
	Cost     float64 `json:"cost"`
	Rate     float64 `json:"rate"`
	Currency string  `json:"currency"`
	Readings int     `json:"readings"`
}
