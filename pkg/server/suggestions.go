package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/voltify/voltify/pkg/advisor"
	"github.com/voltify/voltify/pkg/energy"
	"github.com/voltify/voltify/pkg/log"
	"github.com/voltify/voltify/pkg/types"
)

type suggestionsRequest struct {
	// Appliances overrides the stored appliances when set.
	Appliances []types.Appliance `json:"appliances"`
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}

	var req suggestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode suggestions request", slog.Any("error", err))
		writeJSONError(w, "Invalid appliance data format.", http.StatusBadRequest)
		return
	}

	for _, a := range req.Appliances {
		if err := validateDraw(a.PowerConsumption, a.PowerLimit); err != nil || strings.TrimSpace(a.Name) == "" {
			writeJSONError(w, "Invalid appliance data format.", http.StatusBadRequest)
			return
		}
	}

	appliances := req.Appliances
	if appliances == nil {
		var err error
		appliances, err = s.storage.ListAppliances(ctx, user.ID)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to list appliances", slog.Any("error", err))
			writeJSONError(w, "failed to list appliances", http.StatusInternalServerError)
			return
		}
	}

	data := advisor.NewHouseholdData(appliances, energy.DailyPowerData())
	suggestions, err := s.advisor.Suggest(ctx, data)
	switch {
	case err == nil:
	case errors.Is(err, advisor.ErrNotConfigured):
		writeJSONError(w, "AI suggestions are not configured.", http.StatusServiceUnavailable)
		return
	case errors.Is(err, advisor.ErrInvalidResponse):
		log.Ctx(ctx).WarnContext(ctx, "advisor returned an invalid response", slog.Any("error", err))
		writeJSONError(w, "Failed to get suggestions. The AI model did not return a valid response.", http.StatusBadGateway)
		return
	default:
		log.Ctx(ctx).ErrorContext(ctx, "failed to get suggestions", slog.Any("error", err))
		writeJSONError(w, "An unexpected error occurred. Please try again later.", http.StatusInternalServerError)
		return
	}

	set := types.SuggestionSet{
		Timestamp:     time.Now().UTC(),
		Suggestions:   suggestions,
		HouseholdData: data,
	}
	if err := s.storage.InsertSuggestions(ctx, user.ID, set); err != nil {
		// the user still gets the suggestions, they just won't be in history
		log.Ctx(ctx).ErrorContext(ctx, "failed to store suggestions", slog.Any("error", err))
	}
	log.Ctx(ctx).InfoContext(ctx, "generated suggestions", slog.Int("count", len(suggestions)))

	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleLatestSuggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}

	set, err := s.storage.GetLatestSuggestions(ctx, user.ID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get latest suggestions", slog.Any("error", err))
		writeJSONError(w, "failed to get suggestions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	// a nil set encodes as null
	writeJSON(w, http.StatusOK, set)
}
