package types

import "time"

const (
	CurrentPowerHistoryVersion = 1

	// UserIDLocal is the user every request is attributed to when auth is bypassed.
	UserIDLocal = "local"
)

// User is the profile created when someone registers.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	PhotoURL    string    `json:"photoURL,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Appliance is a household device whose draw feeds the breakdown chart and
// the advisor prompt.
type Appliance struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// PowerConsumption is the current draw in watts.
	PowerConsumption float64 `json:"powerConsumption"`
	// PowerLimit is the draw in watts the household wants to stay under.
	PowerLimit float64 `json:"powerLimit"`
	// Color is an HSL string in the form "hsl(H S% L%)".
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

// PowerDataPoint is a single chart point. Time is a display label such as
// "18:00", "Mon" or "Week 1".
type PowerDataPoint struct {
	Time string  `json:"time"`
	KWH  float64 `json:"kwh"`
}

// PowerReading is a persisted point of the live feed.
type PowerReading struct {
	Timestamp time.Time `json:"timestamp"`
	KWH       float64   `json:"kwh"`
	// CurrentKWH is the instantaneous usage shown on the stats card.
	CurrentKWH float64 `json:"currentKWH"`
}

// AlertKind is the type of alert raised by the live feed.
type AlertKind string

const (
	AlertKindPeakUsage  AlertKind = "peakUsage"
	AlertKindAutoCutoff AlertKind = "autoCutoff"
)

// Alert is raised when consumption crosses the peak threshold.
type Alert struct {
	Timestamp   time.Time `json:"timestamp"`
	Kind        AlertKind `json:"kind"`
	KWH         float64   `json:"kwh"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

// PeakUsage is the highest point of the day.
type PeakUsage struct {
	Time string  `json:"time"`
	KWH  float64 `json:"kwh"`
}

// ApplianceShare is one appliance's percentage of the total draw.
type ApplianceShare struct {
	Appliance  string `json:"appliance"`
	Percentage int    `json:"percentage"`
}

// UserPreferences are the comfort preferences passed to the advisor.
type UserPreferences struct {
	CoolingTemperature string `json:"coolingTemperature"`
	LaundryTime        string `json:"laundryTime"`
}

// HouseholdData is the payload the advisor reasons about.
type HouseholdData struct {
	AvgDailyConsumption float64          `json:"avgDailyConsumption"`
	PeakUsage           PeakUsage        `json:"peakUsage"`
	ApplianceBreakdown  []ApplianceShare `json:"applianceBreakdown"`
	UserPreferences     UserPreferences  `json:"userPreferences"`
}

// SuggestionSet is one batch of advisor output along with what produced it.
type SuggestionSet struct {
	Timestamp     time.Time     `json:"timestamp"`
	Suggestions   []string      `json:"suggestions"`
	HouseholdData HouseholdData `json:"householdData"`
}

// Tip is a static efficiency tip.
type Tip struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Feedback is a user's reaction to a suggestion set.
type Feedback struct {
	Sentiment string            `json:"sentiment"`
	Comment   string            `json:"comment"`
	UserID    string            `json:"userID"`
	Extra     map[string]string `json:"extra,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
