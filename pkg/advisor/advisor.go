package advisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/voltify/voltify/pkg/energy"
	"github.com/voltify/voltify/pkg/types"
)

var (
	// ErrNotConfigured is returned when no model credentials were provided.
	ErrNotConfigured = errors.New("advisor not configured")
	// ErrInvalidResponse is returned when the model output doesn't match the
	// expected shape.
	ErrInvalidResponse = errors.New("the AI model did not return a valid response")
)

// Advisor produces energy-saving suggestions for a household.
type Advisor interface {
	Suggest(ctx context.Context, data types.HouseholdData) ([]string, error)
}

// Configured returns a Gemini advisor, or one that always fails with
// ErrNotConfigured when --genai-api-key is empty.
func Configured() Advisor {
	apiKey := lflag.String("genai-api-key", "", "Gemini API key used for energy-saving suggestions")
	model := lflag.String("genai-model", DefaultModel, "Gemini model used for energy-saving suggestions")
	timeout := lflag.Duration("genai-timeout", 30*time.Second, "Timeout for a single suggestion request")

	var a struct{ Advisor }
	a.Advisor = disabled{}

	lflag.Do(func() {
		if *apiKey == "" {
			return
		}
		g, err := NewGemini(context.Background(), GeminiConfig{
			APIKey:  *apiKey,
			Model:   *model,
			Timeout: *timeout,
		})
		if err != nil {
			panic(fmt.Sprintf("genai init failed: %v", err))
		}
		a.Advisor = g
	})

	return &a
}

type disabled struct{}

func (disabled) Suggest(context.Context, types.HouseholdData) ([]string, error) {
	return nil, ErrNotConfigured
}

// Default comfort preferences sent along with every request.
const (
	DefaultCoolingTemperature = "22°C"
	DefaultLaundryTime        = "Weekends"
)

// NewHouseholdData summarizes the day's consumption and the appliance mix.
func NewHouseholdData(appliances []types.Appliance, daily []types.PowerDataPoint) types.HouseholdData {
	peak, _ := energy.Peak(daily)
	return types.HouseholdData{
		AvgDailyConsumption: energy.Average(daily),
		PeakUsage: types.PeakUsage{
			Time: energy.PeakTime,
			KWH:  peak.KWH,
		},
		ApplianceBreakdown: energy.Shares(appliances),
		UserPreferences: types.UserPreferences{
			CoolingTemperature: DefaultCoolingTemperature,
			LaundryTime:        DefaultLaundryTime,
		},
	}
}
