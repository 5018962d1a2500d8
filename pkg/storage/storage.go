package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/voltify/voltify/pkg/types"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("user already exists")
	ErrApplianceNotFound = errors.New("appliance not found")
)

// Database persists everything that belongs to a user.
type Database interface {
	// Users
	GetUser(ctx context.Context, userID string) (types.User, error)
	CreateUser(ctx context.Context, user types.User) error
	UpdateUser(ctx context.Context, user types.User) error

	// Settings
	GetSettings(ctx context.Context, userID string) (types.Settings, int, error)
	SetSettings(ctx context.Context, userID string, settings types.Settings, version int) error

	// Appliances
	// ListAppliances returns appliances in the order they were added.
	ListAppliances(ctx context.Context, userID string) ([]types.Appliance, error)
	AddAppliance(ctx context.Context, userID string, appliance types.Appliance) error
	DeleteAppliance(ctx context.Context, userID, applianceID string) error

	// History
	UpsertPowerReadings(ctx context.Context, userID string, readings []types.PowerReading, version int) error
	GetPowerHistory(ctx context.Context, userID string, start, end time.Time) ([]types.PowerReading, error)
	InsertAlert(ctx context.Context, userID string, alert types.Alert) error
	GetAlertHistory(ctx context.Context, userID string, start, end time.Time) ([]types.Alert, error)

	// Suggestions
	InsertSuggestions(ctx context.Context, userID string, set types.SuggestionSet) error
	// GetLatestSuggestions returns nil when the user never asked for any.
	GetLatestSuggestions(ctx context.Context, userID string) (*types.SuggestionSet, error)
	InsertFeedback(ctx context.Context, feedback types.Feedback) error

	// Lifecycle
	Close() error
}

// Configured sets up the storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore, sqlite)")

	var p struct{ Database }

	fs := configuredFirestore()
	sq := configuredSQLite()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "sqlite":
			p.Database = sq
			if err := sq.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("sqlite init failed: %v", err))
			}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

// docIDLayout is fixed width so document IDs sort chronologically.
const docIDLayout = "2006-01-02T15:04:05.000000000Z"

func docID(t time.Time) string {
	return t.UTC().Format(docIDLayout)
}

func validateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}
	return nil
}
