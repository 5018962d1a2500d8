package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/levenlabs/go-lflag"
	"github.com/voltify/voltify/pkg/energy"
	"github.com/voltify/voltify/pkg/log"
	"github.com/voltify/voltify/pkg/storage"
	"github.com/voltify/voltify/pkg/types"
)

// readingInterval is the spacing of seeded readings.
const readingInterval = 30 * time.Minute

func main() {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	}
	userID := lflag.String("seed-user-id", types.UserIDLocal, "User to seed")
	email := lflag.String("seed-email", "", "Email of the seeded user")
	seedRange := lflag.Duration("seed-range", 30*24*time.Hour, "How far back to seed readings")
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()
	defer s.Close()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data", "userID", *userID)

	now := time.Now().UTC()
	err := s.CreateUser(ctx, types.User{
		ID:          *userID,
		DisplayName: "Seeded User",
		Email:       *email,
		CreatedAt:   now,
	})
	switch {
	case err == nil:
		for i, a := range energy.DefaultAppliances() {
			a.ID = uuid.NewString()
			a.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
			if err := s.AddAppliance(ctx, *userID, a); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to seed appliance", "error", err)
				os.Exit(1)
			}
		}
	case errors.Is(err, storage.ErrUserExists):
		log.Ctx(ctx).InfoContext(ctx, "user already exists, only adding readings")
	default:
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed user", "error", err)
		os.Exit(1)
	}

	settings := types.DefaultSettings()
	if err := s.SetSettings(ctx, *userID, settings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed settings", "error", err)
		os.Exit(1)
	}

	// Follow the reference day, one slot every two hours, with some jitter
	daily := energy.DailyPowerData()
	start := now.Add(-*seedRange).Truncate(readingInterval)
	var readings []types.PowerReading
	var alerts int
	for t := start; t.Before(now); t = t.Add(readingInterval) {
		slot := daily[t.Hour()/2]
		kwh := math.Max(0.5, slot.KWH+(rand.Float64()-0.45)*0.5)
		readings = append(readings, types.PowerReading{
			Timestamp:  t,
			KWH:        kwh,
			CurrentKWH: math.Max(0, kwh/2+(rand.Float64()-0.5)*0.5),
		})

		if kwh > settings.PeakThresholdKWH {
			alerts++
			if err := s.InsertAlert(ctx, *userID, types.Alert{
				Timestamp:   t,
				Kind:        types.AlertKindPeakUsage,
				KWH:         kwh,
				Title:       "Peak Usage Alert!",
				Description: fmt.Sprintf("Consumption has reached %.2f kWh. Consider turning off non-essential appliances.", kwh),
			}); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to seed alert", "error", err)
				os.Exit(1)
			}
		}
	}

	if err := s.UpsertPowerReadings(ctx, *userID, readings, types.CurrentPowerHistoryVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed readings", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Seeded %d readings and %d alerts for %s since %s\n", len(readings), alerts, *userID, start.Format(time.DateOnly))
	log.Ctx(ctx).InfoContext(ctx, "seeded mock data successfully")
}
