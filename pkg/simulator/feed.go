package simulator

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/voltify/voltify/pkg/energy"
	"github.com/voltify/voltify/pkg/types"
)

// State is what the dashboard needs to render the alert banners.
type State struct {
	PeakThresholdKWH float64 `json:"peakThresholdKWH"`
	AutoCutoff       bool    `json:"autoCutoff"`
	// PeakAlertKWH is the level of the active peak alert, or nil.
	PeakAlertKWH     *float64 `json:"peakAlertKWH"`
	AutoCutoffActive bool     `json:"autoCutoffActive"`
}

// Step is the result of advancing a feed once.
type Step struct {
	Reading types.PowerReading
	Point   types.PowerDataPoint
	// Alert is set when the step raised a notification.
	Alert *types.Alert
	State State
}

// Feed is the simulated consumption stream of one user. It starts from the
// reference daily dataset and slides one point per step.
type Feed struct {
	mu   sync.Mutex
	rand func() float64

	window  []types.PowerDataPoint
	current float64

	threshold  float64
	autoCutoff bool
	notifyPeak bool

	peakAlert    float64
	hasPeakAlert bool
	cutoffActive bool

	lastAccess time.Time
}

// NewFeed returns a feed using settings and the random source rnd, which must
// return values in [0, 1).
func NewFeed(settings types.Settings, rnd func() float64) *Feed {
	window := energy.DailyPowerData()
	f := &Feed{
		rand:    rnd,
		window:  window,
		current: window[len(window)-1].KWH,
	}
	f.applySettings(settings)
	return f
}

// ApplySettings updates the threshold, auto-cutoff flag and notification
// preference.
func (f *Feed) ApplySettings(settings types.Settings) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applySettings(settings)
}

func (f *Feed) applySettings(settings types.Settings) {
	f.threshold = settings.PeakThresholdKWH
	if f.threshold <= 0 {
		f.threshold = types.DefaultSettings().PeakThresholdKWH
	}
	if f.autoCutoff != settings.AutoCutoff {
		// toggling resets the banners, the next step re-evaluates them
		f.hasPeakAlert = false
		f.peakAlert = 0
		f.cutoffActive = false
	}
	f.autoCutoff = settings.AutoCutoff
	f.notifyPeak = settings.Notifications.PeakUsage
}

// Step advances the feed to now.
func (f *Feed) Step(now time.Time) Step {
	f.mu.Lock()
	defer f.mu.Unlock()

	last := f.window[len(f.window)-1]
	kwh := math.Max(0.5, last.KWH+(f.rand()-0.45)*0.5)

	var alert *types.Alert
	if kwh > f.threshold {
		if f.autoCutoff {
			kwh = f.threshold - f.rand()*0.5
			if !f.cutoffActive {
				f.cutoffActive = true
				alert = &types.Alert{
					Timestamp:   now,
					Kind:        types.AlertKindAutoCutoff,
					KWH:         kwh,
					Title:       "Auto-Cutoff Activated",
					Description: fmt.Sprintf("Usage exceeded %s kWh. High-draw appliance turned off.", strconv.FormatFloat(f.threshold, 'f', -1, 64)),
				}
			}
		} else if !f.hasPeakAlert || kwh > f.peakAlert {
			f.hasPeakAlert = true
			f.peakAlert = kwh
			if f.notifyPeak {
				alert = &types.Alert{
					Timestamp:   now,
					Kind:        types.AlertKindPeakUsage,
					KWH:         kwh,
					Title:       "Peak Usage Alert!",
					Description: fmt.Sprintf("Consumption has reached %.2f kWh. Consider turning off non-essential appliances.", kwh),
				}
			}
		}
	} else {
		f.hasPeakAlert = false
		f.peakAlert = 0
		f.cutoffActive = false
	}

	point := types.PowerDataPoint{Time: now.Format("15:04"), KWH: kwh}
	f.window = append(f.window[1:], point)

	f.current = math.Max(0, f.current+(f.rand()-0.5)*0.5)

	return Step{
		Reading: types.PowerReading{Timestamp: now, KWH: kwh, CurrentKWH: f.current},
		Point:   point,
		Alert:   alert,
		State:   f.state(),
	}
}

// Window returns a copy of the daily window.
func (f *Feed) Window() []types.PowerDataPoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.window)
}

// Current returns the instantaneous usage.
func (f *Feed) Current() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// State returns the threshold and alert state.
func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state()
}

func (f *Feed) state() State {
	s := State{
		PeakThresholdKWH: f.threshold,
		AutoCutoff:       f.autoCutoff,
		AutoCutoffActive: f.cutoffActive,
	}
	if f.hasPeakAlert && !f.cutoffActive {
		v := f.peakAlert
		s.PeakAlertKWH = &v
	}
	return s
}

func (f *Feed) touch(now time.Time) {
	f.mu.Lock()
	f.lastAccess = now
	f.mu.Unlock()
}

func (f *Feed) idleSince(now time.Time) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return now.Sub(f.lastAccess)
}
