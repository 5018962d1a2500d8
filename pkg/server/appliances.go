package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/voltify/voltify/pkg/energy"
	"github.com/voltify/voltify/pkg/log"
	"github.com/voltify/voltify/pkg/storage"
	"github.com/voltify/voltify/pkg/types"
)

type addApplianceRequest struct {
	Name             string  `json:"name"`
	PowerConsumption float64 `json:"powerConsumption"`
	PowerLimit       float64 `json:"powerLimit"`
	Color            string  `json:"color"`
	// CustomColor is a hex color picked instead of a palette entry.
	CustomColor string `json:"customColor,omitempty"`
}

func (req addApplianceRequest) appliance() (types.Appliance, error) {
	name := strings.TrimSpace(req.Name)
	if len([]rune(name)) < 2 {
		return types.Appliance{}, errors.New("appliance name must be at least 2 characters")
	}
	if err := validateDraw(req.PowerConsumption, req.PowerLimit); err != nil {
		return types.Appliance{}, err
	}

	color := req.Color
	if req.CustomColor != "" {
		hsl, err := energy.HexToHSL(req.CustomColor)
		if err != nil {
			return types.Appliance{}, errors.New("custom color must be a valid hex color")
		}
		color = hsl
	} else if !energy.IsHSL(color) {
		return types.Appliance{}, errors.New("color must be a palette entry or a custom color")
	}

	return types.Appliance{
		Name:             name,
		PowerConsumption: req.PowerConsumption,
		PowerLimit:       req.PowerLimit,
		Color:            color,
	}, nil
}

func validateDraw(consumption, limit float64) error {
	if consumption <= 0 {
		return errors.New("power consumption must be a positive number")
	}
	if limit <= 0 {
		return errors.New("power limit must be a positive number")
	}
	return nil
}

func (s *Server) handleListAppliances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}

	appliances, err := s.storage.ListAppliances(ctx, user.ID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list appliances", slog.Any("error", err))
		writeJSONError(w, "failed to list appliances", http.StatusInternalServerError)
		return
	}
	if appliances == nil {
		appliances = []types.Appliance{}
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, appliances)
}

func (s *Server) handleAddAppliance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}

	var req addApplianceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode appliance", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	appliance, err := req.appliance()
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	appliance.ID = uuid.NewString()
	appliance.CreatedAt = time.Now().UTC()

	if err := s.storage.AddAppliance(ctx, user.ID, appliance); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to add appliance", slog.Any("error", err))
		writeJSONError(w, "failed to add appliance", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "appliance added", slog.String("applianceID", appliance.ID), slog.String("name", appliance.Name))

	writeJSON(w, http.StatusCreated, appliance)
}

func (s *Server) handleDeleteAppliance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeJSONError(w, "missing appliance id", http.StatusBadRequest)
		return
	}

	err := s.storage.DeleteAppliance(ctx, user.ID, id)
	if errors.Is(err, storage.ErrApplianceNotFound) {
		writeJSONError(w, "appliance not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to delete appliance", slog.String("applianceID", id), slog.Any("error", err))
		writeJSONError(w, "failed to delete appliance", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "appliance deleted", slog.String("applianceID", id))

	w.WriteHeader(http.StatusNoContent)
}

type breakdownResponse struct {
	Data []types.BreakdownSlice `json:"data"`
	// Total is the combined draw in watts.
	Total     float64           `json:"total"`
	OverLimit []types.Appliance `json:"overLimit"`
}

func (s *Server) handleApplianceBreakdown(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}

	appliances, err := s.storage.ListAppliances(ctx, user.ID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to list appliances", slog.Any("error", err))
		writeJSONError(w, "failed to list appliances", http.StatusInternalServerError)
		return
	}

	resp := breakdownResponse{
		Data:      energy.Breakdown(appliances),
		Total:     energy.TotalConsumption(appliances),
		OverLimit: energy.OverLimit(appliances),
	}
	if resp.OverLimit == nil {
		resp.OverLimit = []types.Appliance{}
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePalette(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=86400")
	writeJSON(w, http.StatusOK, energy.Palette)
}
