package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/voltify/voltify/pkg/energy"
	"github.com/voltify/voltify/pkg/log"
	"github.com/voltify/voltify/pkg/simulator"
	"github.com/voltify/voltify/pkg/types"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}

	feed, settings, err := s.feed(ctx, user.ID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, energy.BuildStats(feed.Window(), feed.Current(), settings))
}

type consumptionResponse struct {
	Range types.ConsumptionRange `json:"range"`
	Data  []types.PowerDataPoint `json:"data"`
	// Reference is true when no history exists yet and Data holds the
	// sample dataset.
	Reference bool            `json:"reference"`
	State     simulator.State `json:"state"`
}

func (s *Server) handleConsumption(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}

	rng := types.ConsumptionRange(r.URL.Query().Get("range"))
	if rng == "" {
		rng = types.ConsumptionRangeDaily
	}

	feed, _, err := s.feed(ctx, user.ID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	resp := consumptionResponse{
		Range: rng,
		State: feed.State(),
	}
	now := time.Now().In(s.loc())
	switch rng {
	case types.ConsumptionRangeDaily:
		resp.Data = feed.Window()
	case types.ConsumptionRangeWeekly:
		resp.Data, resp.Reference, err = s.aggregateHistory(ctx, user.ID, now, 7, energy.AggregateWeekly, energy.WeeklyPowerData)
	case types.ConsumptionRangeMonthly:
		resp.Data, resp.Reference, err = s.aggregateHistory(ctx, user.ID, now, 28, energy.AggregateMonthly, energy.MonthlyPowerData)
	default:
		writeJSONError(w, fmt.Sprintf("invalid range: %q", rng), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get power history", slog.String("range", string(rng)), slog.Any("error", err))
		writeJSONError(w, "failed to get power history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

// aggregateHistory rolls the last days of readings into a chart dataset. It
// falls back to reference when there are no readings.
func (s *Server) aggregateHistory(
	ctx context.Context,
	userID string,
	now time.Time,
	days int,
	aggregate func([]types.PowerReading, time.Time) []types.PowerDataPoint,
	reference func() []types.PowerDataPoint,
) ([]types.PowerDataPoint, bool, error) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(days - 1))
	readings, err := s.storage.GetPowerHistory(ctx, userID, start, now.Add(time.Second))
	if err != nil {
		return nil, false, err
	}
	if len(readings) == 0 {
		return reference(), true, nil
	}
	return aggregate(readings, now), false, nil
}

type autoCutoffResponse struct {
	AutoCutoff bool            `json:"autoCutoff"`
	State      simulator.State `json:"state"`
	// Appliance is the one turned off first while auto-cutoff is active.
	Appliance *types.Appliance `json:"appliance,omitempty"`
	Toast     toast            `json:"toast"`
}

func (s *Server) handleAutoCutoff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	settings, err := s.getSettingsWithMigration(ctx, user.ID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}
	settings.AutoCutoff = req.Enabled
	if err := s.storage.SetSettings(ctx, user.ID, settings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save settings", slog.Any("error", err))
		writeJSONError(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	feed := s.simulator.Feed(user.ID, settings)
	log.Ctx(ctx).InfoContext(ctx, "auto-cutoff toggled", slog.Bool("enabled", req.Enabled))

	resp := autoCutoffResponse{
		AutoCutoff: req.Enabled,
		State:      feed.State(),
		Toast: toast{
			Title:       "Auto-cutoff Disabled",
			Description: "Manual control resumed.",
		},
	}
	if req.Enabled {
		resp.Toast = toast{
			Title:       "Auto-cutoff Enabled",
			Description: "High-usage appliances will be turned off during peak consumption.",
		}
		appliances, err := s.storage.ListAppliances(ctx, user.ID)
		if err != nil {
			// the toggle was saved, only the hint is missing
			log.Ctx(ctx).WarnContext(ctx, "failed to list appliances", slog.Any("error", err))
		} else if top, ok := energy.HighestDraw(appliances); ok {
			resp.Appliance = &top
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type tipsResponse struct {
	Grade   string      `json:"grade"`
	Summary string      `json:"summary"`
	Tips    []types.Tip `json:"tips"`
}

func (s *Server) handleTips(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "private, max-age=3600")
	writeJSON(w, http.StatusOK, tipsResponse{
		Grade:   energy.EfficiencyGrade,
		Summary: energy.EfficiencySummary,
		Tips:    energy.Tips(),
	})
}
