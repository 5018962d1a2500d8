package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/voltify/voltify/pkg/energy"
	"github.com/voltify/voltify/pkg/types"
)

func TestHandleStats(t *testing.T) {
	srv, db, _ := newTestServer(t)
	db.On("GetSettings", mock.Anything, types.UserIDLocal).Return(currentSettings(), types.CurrentSettingsVersion, nil).Once()

	w := doRequest(t, srv.setupHandler(), "GET", "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// a fresh feed still holds the reference day
	expected := energy.BuildStats(energy.DailyPowerData(), 2.1, currentSettings())
	assert.Equal(t, expected, decodeBody[types.Stats](t, w))
}

func TestHandleConsumption(t *testing.T) {
	t.Run("Daily", func(t *testing.T) {
		srv, db, _ := newTestServer(t)
		db.On("GetSettings", mock.Anything, types.UserIDLocal).Return(currentSettings(), types.CurrentSettingsVersion, nil).Once()

		w := doRequest(t, srv.setupHandler(), "GET", "/api/consumption", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody[consumptionResponse](t, w)
		assert.Equal(t, types.ConsumptionRangeDaily, resp.Range)
		assert.Equal(t, energy.DailyPowerData(), resp.Data)
		assert.Equal(t, 3.0, resp.State.PeakThresholdKWH)
		assert.Nil(t, resp.State.PeakAlertKWH)
	})

	t.Run("Weekly Falls Back To Reference", func(t *testing.T) {
		srv, db, _ := newTestServer(t)
		db.On("GetSettings", mock.Anything, types.UserIDLocal).Return(currentSettings(), types.CurrentSettingsVersion, nil).Once()
		db.On("GetPowerHistory", mock.Anything, types.UserIDLocal, mock.Anything, mock.Anything).Return(nil, nil).Once()

		w := doRequest(t, srv.setupHandler(), "GET", "/api/consumption?range=weekly", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody[consumptionResponse](t, w)
		assert.True(t, resp.Reference)
		assert.Equal(t, energy.WeeklyPowerData(), resp.Data)
	})

	t.Run("Weekly From History", func(t *testing.T) {
		srv, db, _ := newTestServer(t)
		now := time.Now().UTC()
		readings := []types.PowerReading{
			{Timestamp: now.Add(-time.Minute), KWH: 2},
		}
		db.On("GetSettings", mock.Anything, types.UserIDLocal).Return(currentSettings(), types.CurrentSettingsVersion, nil).Once()
		db.On("GetPowerHistory", mock.Anything, types.UserIDLocal, mock.MatchedBy(func(start time.Time) bool {
			return now.Sub(start) <= 7*24*time.Hour && now.Sub(start) > 6*24*time.Hour
		}), mock.Anything).Return(readings, nil).Once()

		w := doRequest(t, srv.setupHandler(), "GET", "/api/consumption?range=weekly", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody[consumptionResponse](t, w)
		assert.False(t, resp.Reference)
		require.Len(t, resp.Data, 7)
		assert.Equal(t, energy.AggregateWeekly(readings, now), resp.Data)
	})

	t.Run("Monthly Falls Back To Reference", func(t *testing.T) {
		srv, db, _ := newTestServer(t)
		db.On("GetSettings", mock.Anything, types.UserIDLocal).Return(currentSettings(), types.CurrentSettingsVersion, nil).Once()
		db.On("GetPowerHistory", mock.Anything, types.UserIDLocal, mock.Anything, mock.Anything).Return([]types.PowerReading{}, nil).Once()

		w := doRequest(t, srv.setupHandler(), "GET", "/api/consumption?range=monthly", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody[consumptionResponse](t, w)
		assert.True(t, resp.Reference)
		assert.Equal(t, energy.MonthlyPowerData(), resp.Data)
	})

	t.Run("History Error", func(t *testing.T) {
		srv, db, _ := newTestServer(t)
		db.On("GetSettings", mock.Anything, types.UserIDLocal).Return(currentSettings(), types.CurrentSettingsVersion, nil).Once()
		db.On("GetPowerHistory", mock.Anything, types.UserIDLocal, mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()

		w := doRequest(t, srv.setupHandler(), "GET", "/api/consumption?range=monthly", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("Invalid Range", func(t *testing.T) {
		srv, db, _ := newTestServer(t)
		db.On("GetSettings", mock.Anything, types.UserIDLocal).Return(currentSettings(), types.CurrentSettingsVersion, nil).Once()

		w := doRequest(t, srv.setupHandler(), "GET", "/api/consumption?range=yearly", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleAutoCutoff(t *testing.T) {
	t.Run("Enable", func(t *testing.T) {
		srv, db, _ := newTestServer(t)
		db.On("GetSettings", mock.Anything, types.UserIDLocal).Return(currentSettings(), types.CurrentSettingsVersion, nil).Once()
		enabled := currentSettings()
		enabled.AutoCutoff = true
		db.On("SetSettings", mock.Anything, types.UserIDLocal, enabled, types.CurrentSettingsVersion).Return(nil).Once()
		db.On("ListAppliances", mock.Anything, types.UserIDLocal).Return(energy.DefaultAppliances(), nil).Once()

		w := doRequest(t, srv.setupHandler(), "POST", "/api/autocutoff", map[string]bool{"enabled": true})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decodeBody[autoCutoffResponse](t, w)
		assert.True(t, resp.AutoCutoff)
		assert.True(t, resp.State.AutoCutoff)
		assert.Equal(t, "Auto-cutoff Enabled", resp.Toast.Title)
		assert.Equal(t, "High-usage appliances will be turned off during peak consumption.", resp.Toast.Description)
		require.NotNil(t, resp.Appliance)
		assert.Equal(t, "AC", resp.Appliance.Name)
	})

	t.Run("Disable", func(t *testing.T) {
		srv, db, _ := newTestServer(t)
		enabled := currentSettings()
		enabled.AutoCutoff = true
		db.On("GetSettings", mock.Anything, types.UserIDLocal).Return(enabled, types.CurrentSettingsVersion, nil).Once()
		db.On("SetSettings", mock.Anything, types.UserIDLocal, currentSettings(), types.CurrentSettingsVersion).Return(nil).Once()

		w := doRequest(t, srv.setupHandler(), "POST", "/api/autocutoff", map[string]bool{"enabled": false})
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody[autoCutoffResponse](t, w)
		assert.False(t, resp.AutoCutoff)
		assert.Equal(t, "Auto-cutoff Disabled", resp.Toast.Title)
		assert.Equal(t, "Manual control resumed.", resp.Toast.Description)
		assert.Nil(t, resp.Appliance)
	})

	t.Run("Save Failure", func(t *testing.T) {
		srv, db, _ := newTestServer(t)
		db.On("GetSettings", mock.Anything, types.UserIDLocal).Return(currentSettings(), types.CurrentSettingsVersion, nil).Once()
		db.On("SetSettings", mock.Anything, types.UserIDLocal, mock.Anything, types.CurrentSettingsVersion).Return(assert.AnError).Once()

		w := doRequest(t, srv.setupHandler(), "POST", "/api/autocutoff", map[string]bool{"enabled": true})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHandleTips(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv.setupHandler(), "GET", "/api/tips", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[tipsResponse](t, w)
	assert.Equal(t, "B+", resp.Grade)
	assert.Equal(t, energy.Tips(), resp.Tips)
	assert.Len(t, resp.Tips, 4)
}
