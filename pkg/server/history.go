package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/voltify/voltify/pkg/energy"
	"github.com/voltify/voltify/pkg/log"
	"github.com/voltify/voltify/pkg/types"
)

// maxHistoryRange bounds history queries.
const maxHistoryRange = 31 * 24 * time.Hour

func (s *Server) handleHistoryPower(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	readings, err := s.storage.GetPowerHistory(ctx, user.ID, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get power history", slog.Any("error", err))
		writeJSONError(w, "failed to get power history", http.StatusInternalServerError)
		return
	}
	if readings == nil {
		readings = []types.PowerReading{}
	}

	s.setHistoryCacheControl(w, end)
	writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleHistoryAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	alerts, err := s.storage.GetAlertHistory(ctx, user.ID, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get alerts", slog.Any("error", err))
		writeJSONError(w, "failed to get alerts", http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []types.Alert{}
	}

	s.setHistoryCacheControl(w, end)
	writeJSON(w, http.StatusOK, alerts)
}

type costResponse struct {
	types.CostSummary
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	// Formatted is the cost with currency and thousands separators.
	Formatted string `json:"formatted"`
}

func (s *Server) handleHistoryCost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	settings, err := s.getSettingsWithMigration(ctx, user.ID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}
	readings, err := s.storage.GetPowerHistory(ctx, user.ID, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get power history", slog.Any("error", err))
		writeJSONError(w, "failed to get power history", http.StatusInternalServerError)
		return
	}

	summary := energy.SummarizeCost(readings, settings, end)
	s.setHistoryCacheControl(w, end)
	writeJSON(w, http.StatusOK, costResponse{
		CostSummary: summary,
		Start:       start,
		End:         end,
		Formatted:   energy.FormatMoney(summary.Currency, summary.Cost),
	})
}

// setHistoryCacheControl caches ranges that ended before today for a day and
// everything else for a minute.
func (s *Server) setHistoryCacheControl(w http.ResponseWriter, end time.Time) {
	now := time.Now().In(s.loc())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if end.Before(today) {
		w.Header().Set("Cache-Control", "private, max-age=86400")
	} else {
		w.Header().Set("Cache-Control", "private, max-age=60")
	}
}

func parseTimeRange(r *http.Request) (time.Time, time.Time, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" || endStr == "" {
		// Default to last 24 hours if not specified
		end := time.Now()
		start := end.Add(-24 * time.Hour)
		return start, end, nil
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}

	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("start time must be before end time")
	}

	if end.Sub(start) > maxHistoryRange {
		return time.Time{}, time.Time{}, fmt.Errorf("time range cannot exceed 31 days")
	}

	return start, end, nil
}
