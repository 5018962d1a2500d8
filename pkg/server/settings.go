package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/voltify/voltify/pkg/log"
	"github.com/voltify/voltify/pkg/simulator"
	"github.com/voltify/voltify/pkg/types"
)

func (s *Server) getSettingsWithMigration(ctx context.Context, userID string) (types.Settings, error) {
	settings, version, err := s.storage.GetSettings(ctx, userID)
	if err != nil {
		return types.Settings{}, err
	}

	if version < types.CurrentSettingsVersion {
		log.Ctx(ctx).InfoContext(ctx, "migrating settings", slog.Int("oldVersion", version), slog.Int("newVersion", types.CurrentSettingsVersion))
		newSettings, changed, err := types.MigrateSettings(settings, version)
		if err != nil {
			// Log error but return settings as is (best effort)
			log.Ctx(ctx).ErrorContext(ctx, "failed to migrate settings", slog.Int("currentVersion", version), slog.Any("error", err))
		} else if changed {
			if err := s.storage.SetSettings(ctx, userID, newSettings, types.CurrentSettingsVersion); err != nil {
				// Return migrated settings even if save failed, so current request works with new defaults
				log.Ctx(ctx).ErrorContext(ctx, "failed to save migrated settings", slog.Any("error", err))
			} else {
				log.Ctx(ctx).InfoContext(ctx, "saved migrated settings", slog.Int("oldVersion", version), slog.Int("newVersion", types.CurrentSettingsVersion))
			}
			settings = newSettings
		}
	}

	return settings, nil
}

// feed returns the user's live feed along with the settings applied to it.
func (s *Server) feed(ctx context.Context, userID string) (*simulator.Feed, types.Settings, error) {
	settings, err := s.getSettingsWithMigration(ctx, userID)
	if err != nil {
		return nil, types.Settings{}, err
	}
	return s.simulator.Feed(userID, settings), settings, nil
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}

	settings, err := s.getSettingsWithMigration(ctx, user.ID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, settings)
}

type updateSettingsResponse struct {
	Settings types.Settings `json:"settings"`
	Toast    toast          `json:"toast"`
}

// toast is the notification the dashboard shows after an action.
type toast struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}

	var newSettings types.Settings
	if err := json.NewDecoder(r.Body).Decode(&newSettings); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode settings", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := newSettings.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.storage.SetSettings(ctx, user.ID, newSettings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save settings", slog.Any("error", err))
		writeJSONError(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	s.simulator.Feed(user.ID, newSettings)
	log.Ctx(ctx).InfoContext(ctx, "settings updated")

	writeJSON(w, http.StatusOK, updateSettingsResponse{
		Settings: newSettings,
		Toast: toast{
			Title:       "Settings Saved",
			Description: "Your preferences have been updated.",
		},
	})
}
