package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltify/voltify/pkg/types"
)

// sequence returns a random source cycling through values.
func sequence(values ...float64) func() float64 {
	i := 0
	return func() float64 {
		v := values[i%len(values)]
		i++
		return v
	}
}

func testSettings(threshold float64, autoCutoff bool) types.Settings {
	s := types.DefaultSettings()
	s.PeakThresholdKWH = threshold
	s.AutoCutoff = autoCutoff
	return s
}

var stepTime = time.Date(2026, 3, 2, 18, 5, 0, 0, time.UTC)

func TestFeedInitialState(t *testing.T) {
	f := NewFeed(testSettings(3, false), sequence(0.5))
	window := f.Window()
	require.Len(t, window, 12)
	assert.Equal(t, "00:00", window[0].Time)
	assert.Equal(t, 2.1, f.Current())
	assert.Equal(t, 3.0, f.State().PeakThresholdKWH)
	assert.Nil(t, f.State().PeakAlertKWH)
}

func TestFeedStepSlidesWindow(t *testing.T) {
	// 0.45 keeps the last point unchanged, 0.5 keeps current usage unchanged
	f := NewFeed(testSettings(3, false), sequence(0.45, 0.5))
	step := f.Step(stepTime)

	assert.Equal(t, "18:05", step.Point.Time)
	assert.InDelta(t, 2.1, step.Point.KWH, 1e-9)
	assert.Nil(t, step.Alert)

	window := f.Window()
	require.Len(t, window, 12)
	assert.Equal(t, "02:00", window[0].Time)
	assert.Equal(t, "18:05", window[11].Time)
	assert.InDelta(t, 2.1, step.Reading.CurrentKWH, 1e-9)
	assert.True(t, stepTime.Equal(step.Reading.Timestamp))
}

func TestFeedFloor(t *testing.T) {
	f := NewFeed(testSettings(3, false), sequence(0, 0))
	for range 20 {
		step := f.Step(stepTime)
		assert.GreaterOrEqual(t, step.Point.KWH, 0.5)
		assert.GreaterOrEqual(t, step.Reading.CurrentKWH, 0.0)
	}
	assert.Equal(t, 0.5, f.Window()[11].KWH)
	assert.Equal(t, 0.0, f.Current())
}

func TestFeedPeakAlert(t *testing.T) {
	// threshold below the starting point so the first step crosses it
	f := NewFeed(testSettings(1.5, false), sequence(0.45, 0.5))

	step := f.Step(stepTime)
	require.NotNil(t, step.Alert)
	assert.Equal(t, types.AlertKindPeakUsage, step.Alert.Kind)
	assert.Equal(t, "Peak Usage Alert!", step.Alert.Title)
	assert.Equal(t, "Consumption has reached 2.10 kWh. Consider turning off non-essential appliances.", step.Alert.Description)
	require.NotNil(t, step.State.PeakAlertKWH)
	assert.InDelta(t, 2.1, *step.State.PeakAlertKWH, 1e-9)

	// same level again does not re-alert
	step = f.Step(stepTime.Add(5 * time.Second))
	assert.Nil(t, step.Alert)
	require.NotNil(t, step.State.PeakAlertKWH)
}

func TestFeedPeakAlertEscalates(t *testing.T) {
	// 0.65 adds 0.1 kWh each step
	f := NewFeed(testSettings(1.5, false), sequence(0.65, 0.5))
	first := f.Step(stepTime)
	require.NotNil(t, first.Alert)
	second := f.Step(stepTime.Add(5 * time.Second))
	require.NotNil(t, second.Alert)
	assert.Greater(t, second.Alert.KWH, first.Alert.KWH)
}

func TestFeedPeakAlertClears(t *testing.T) {
	f := NewFeed(testSettings(1.5, false), sequence(0.45, 0.5))
	f.Step(stepTime)
	require.NotNil(t, f.State().PeakAlertKWH)

	f.ApplySettings(testSettings(5, false))
	step := f.Step(stepTime.Add(5 * time.Second))
	assert.Nil(t, step.Alert)
	assert.Nil(t, step.State.PeakAlertKWH)
}

func TestFeedPeakNotificationsDisabled(t *testing.T) {
	s := testSettings(1.5, false)
	s.Notifications.PeakUsage = false
	f := NewFeed(s, sequence(0.45, 0.5))

	step := f.Step(stepTime)
	assert.Nil(t, step.Alert)
	// the banner still shows
	assert.NotNil(t, step.State.PeakAlertKWH)
}

func TestFeedAutoCutoff(t *testing.T) {
	// delta 0, cutoff draw 0.2*0.5, current unchanged
	f := NewFeed(testSettings(2, true), sequence(0.45, 0.2, 0.5))

	step := f.Step(stepTime)
	require.NotNil(t, step.Alert)
	assert.Equal(t, types.AlertKindAutoCutoff, step.Alert.Kind)
	assert.Equal(t, "Auto-Cutoff Activated", step.Alert.Title)
	assert.Equal(t, "Usage exceeded 2 kWh. High-draw appliance turned off.", step.Alert.Description)
	assert.InDelta(t, 1.9, step.Point.KWH, 1e-9)
	assert.True(t, step.State.AutoCutoffActive)
	assert.Nil(t, step.State.PeakAlertKWH)

	// below the threshold again, the cutoff resets
	step = f.Step(stepTime.Add(5 * time.Second))
	assert.Nil(t, step.Alert)
	assert.False(t, step.State.AutoCutoffActive)
}

func TestFeedAutoCutoffAlertsOnce(t *testing.T) {
	// 0.95 pushes over the threshold on every step, 0 keeps the cut draw at the threshold
	f := NewFeed(testSettings(2, true), sequence(0.95, 0, 0.5))
	first := f.Step(stepTime)
	require.NotNil(t, first.Alert)
	second := f.Step(stepTime.Add(5 * time.Second))
	assert.Nil(t, second.Alert)
	assert.True(t, second.State.AutoCutoffActive)
}

func TestFeedDefaultThreshold(t *testing.T) {
	f := NewFeed(types.Settings{}, sequence(0.5))
	assert.Equal(t, 3.0, f.State().PeakThresholdKWH)
}
