package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/voltify/voltify/pkg/log"
	"github.com/voltify/voltify/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const settingsDocID = "app-settings"

// FirestoreProvider implements Database on Google Cloud Firestore.
// Every user gets a document under "users" with sub-collections for
// settings, appliances and history. Records are stored as a JSON blob next to
// the fields needed for ordering.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

var _ Database = (*FirestoreProvider)(nil)

// configuredFirestore registers the firestore flags.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// the client only reads the emulator address from the environment
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Init creates the Firestore client. It must be called before any other method.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) userDoc(userID string) (*firestore.DocumentRef, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	return f.client.Collection("users").Doc(userID), nil
}

func (f *FirestoreProvider) getCollection(userID, name string) (*firestore.CollectionRef, error) {
	doc, err := f.userDoc(userID)
	if err != nil {
		return nil, err
	}
	return doc.Collection(name), nil
}

// decodeJSON unmarshals the "json" field of doc into v.
func decodeJSON(ctx context.Context, doc *firestore.DocumentSnapshot, v any) error {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "doc missing json", slog.String("path", doc.Ref.Path), slog.Any("err", err))
		return fmt.Errorf("document %s missing 'json' field: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "doc json not string", slog.String("path", doc.Ref.Path))
		return fmt.Errorf("document %s 'json' field is not a string", doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal doc json", slog.String("path", doc.Ref.Path), slog.Any("err", err))
		return fmt.Errorf("failed to unmarshal document %s: %w", doc.Ref.ID, err)
	}
	return nil
}

// readAll decodes every document of iter with decode.
func readAll(iter *firestore.DocumentIterator, decode func(*firestore.DocumentSnapshot) error) error {
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := decode(doc); err != nil {
			return err
		}
	}
}

// GetUser retrieves a user from the "users" collection.
func (f *FirestoreProvider) GetUser(ctx context.Context, userID string) (types.User, error) {
	ref, err := f.userDoc(userID)
	if err != nil {
		return types.User{}, err
	}
	doc, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return types.User{}, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	var user types.User
	if err := decodeJSON(ctx, doc, &user); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// CreateUser creates the user document, failing with ErrUserExists if it's
// already there.
func (f *FirestoreProvider) CreateUser(ctx context.Context, user types.User) error {
	ref, err := f.userDoc(user.ID)
	if err != nil {
		return err
	}
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user %s: %w", user.ID, err)
	}
	_, err = ref.Create(ctx, map[string]interface{}{
		"json":  string(userJSON),
		"email": user.Email,
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%w: %s", ErrUserExists, user.ID)
		}
		return fmt.Errorf("failed to create user %s: %w", user.ID, err)
	}
	return nil
}

// UpdateUser overwrites the user document.
func (f *FirestoreProvider) UpdateUser(ctx context.Context, user types.User) error {
	ref, err := f.userDoc(user.ID)
	if err != nil {
		return err
	}
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user %s: %w", user.ID, err)
	}
	_, err = ref.Set(ctx, map[string]interface{}{
		"json":  string(userJSON),
		"email": user.Email,
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", user.ID, err)
	}
	return nil
}

// GetSettings reads "settings/app-settings". Missing settings are returned
// as the zero value with version 0 so the caller migrates them.
func (f *FirestoreProvider) GetSettings(ctx context.Context, userID string) (types.Settings, int, error) {
	coll, err := f.getCollection(userID, "settings")
	if err != nil {
		return types.Settings{}, 0, err
	}
	doc, err := coll.Doc(settingsDocID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Settings{}, 0, nil
		}
		return types.Settings{}, 0, fmt.Errorf("failed to fetch settings doc: %w", err)
	}

	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	var s types.Settings
	if err := decodeJSON(ctx, doc, &s); err != nil {
		return types.Settings{}, 0, err
	}
	return s, version, nil
}

// SetSettings writes "settings/app-settings".
func (f *FirestoreProvider) SetSettings(ctx context.Context, userID string, settings types.Settings, version int) error {
	jsonBytes, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	coll, err := f.getCollection(userID, "settings")
	if err != nil {
		return err
	}
	_, err = coll.Doc(settingsDocID).Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"userId":  userID,
		"version": version,
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// ListAppliances returns the user's appliances ordered by creation time.
func (f *FirestoreProvider) ListAppliances(ctx context.Context, userID string) ([]types.Appliance, error) {
	coll, err := f.getCollection(userID, "appliances")
	if err != nil {
		return nil, err
	}
	var appliances []types.Appliance
	err = readAll(coll.OrderBy("createdAt", firestore.Asc).Documents(ctx), func(doc *firestore.DocumentSnapshot) error {
		var a types.Appliance
		if err := decodeJSON(ctx, doc, &a); err != nil {
			return err
		}
		appliances = append(appliances, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error iterating appliances: %w", err)
	}
	return appliances, nil
}

// AddAppliance stores the appliance under its ID.
func (f *FirestoreProvider) AddAppliance(ctx context.Context, userID string, appliance types.Appliance) error {
	if appliance.ID == "" {
		return fmt.Errorf("appliance id cannot be empty")
	}
	jsonBytes, err := json.Marshal(appliance)
	if err != nil {
		return fmt.Errorf("failed to marshal appliance: %w", err)
	}
	coll, err := f.getCollection(userID, "appliances")
	if err != nil {
		return err
	}
	_, err = coll.Doc(appliance.ID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"createdAt": appliance.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to add appliance: %w", err)
	}
	return nil
}

// DeleteAppliance removes an appliance, returning ErrApplianceNotFound if it
// doesn't exist.
func (f *FirestoreProvider) DeleteAppliance(ctx context.Context, userID, applianceID string) error {
	coll, err := f.getCollection(userID, "appliances")
	if err != nil {
		return err
	}
	_, err = coll.Doc(applianceID).Delete(ctx, firestore.Exists)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %s", ErrApplianceNotFound, applianceID)
		}
		return fmt.Errorf("failed to delete appliance %s: %w", applianceID, err)
	}
	return nil
}

// UpsertPowerReadings writes readings keyed by their timestamp.
func (f *FirestoreProvider) UpsertPowerReadings(ctx context.Context, userID string, readings []types.PowerReading, version int) error {
	if len(readings) == 0 {
		return nil
	}
	coll, err := f.getCollection(userID, "power_history")
	if err != nil {
		return err
	}

	bw := f.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(readings))
	for _, r := range readings {
		if r.Timestamp.IsZero() {
			bw.End()
			return fmt.Errorf("power reading missing timestamp")
		}
		jsonBytes, err := json.Marshal(r)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to marshal power reading: %w", err)
		}
		job, err := bw.Set(coll.Doc(docID(r.Timestamp)), map[string]interface{}{
			"json":      string(jsonBytes),
			"timestamp": r.Timestamp,
			"version":   version,
		})
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to queue power reading: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("failed to upsert power reading: %w", err)
		}
	}
	return nil
}

// rangeQuery returns docs of coll with IDs in [start, end).
func rangeQuery(coll *firestore.CollectionRef, start, end time.Time) firestore.Query {
	return coll.
		Where(firestore.DocumentID, ">=", coll.Doc(docID(start))).
		Where(firestore.DocumentID, "<", coll.Doc(docID(end))).
		OrderBy(firestore.DocumentID, firestore.Asc)
}

// GetPowerHistory returns readings within [start, end).
func (f *FirestoreProvider) GetPowerHistory(ctx context.Context, userID string, start, end time.Time) ([]types.PowerReading, error) {
	coll, err := f.getCollection(userID, "power_history")
	if err != nil {
		return nil, err
	}
	var readings []types.PowerReading
	err = readAll(rangeQuery(coll, start, end).Documents(ctx), func(doc *firestore.DocumentSnapshot) error {
		var r types.PowerReading
		if err := decodeJSON(ctx, doc, &r); err != nil {
			return err
		}
		readings = append(readings, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error iterating power history: %w", err)
	}
	return readings, nil
}

// InsertAlert stores an alert keyed by its timestamp.
func (f *FirestoreProvider) InsertAlert(ctx context.Context, userID string, alert types.Alert) error {
	jsonBytes, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	coll, err := f.getCollection(userID, "alert_history")
	if err != nil {
		return err
	}
	_, err = coll.Doc(docID(alert.Timestamp)).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"kind":      string(alert.Kind),
		"timestamp": alert.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlertHistory returns alerts within [start, end).
func (f *FirestoreProvider) GetAlertHistory(ctx context.Context, userID string, start, end time.Time) ([]types.Alert, error) {
	coll, err := f.getCollection(userID, "alert_history")
	if err != nil {
		return nil, err
	}
	var alerts []types.Alert
	err = readAll(rangeQuery(coll, start, end).Documents(ctx), func(doc *firestore.DocumentSnapshot) error {
		var a types.Alert
		if err := decodeJSON(ctx, doc, &a); err != nil {
			return err
		}
		alerts = append(alerts, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, nil
}

// InsertSuggestions stores a suggestion set keyed by its timestamp.
func (f *FirestoreProvider) InsertSuggestions(ctx context.Context, userID string, set types.SuggestionSet) error {
	jsonBytes, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestions: %w", err)
	}
	coll, err := f.getCollection(userID, "suggestion_history")
	if err != nil {
		return err
	}
	_, err = coll.Doc(docID(set.Timestamp)).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": set.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to insert suggestions: %w", err)
	}
	return nil
}

// GetLatestSuggestions returns the newest suggestion set or nil.
func (f *FirestoreProvider) GetLatestSuggestions(ctx context.Context, userID string) (*types.SuggestionSet, error) {
	coll, err := f.getCollection(userID, "suggestion_history")
	if err != nil {
		return nil, err
	}
	iter := coll.OrderBy("timestamp", firestore.Desc).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest suggestions: %w", err)
	}
	var set types.SuggestionSet
	if err := decodeJSON(ctx, doc, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// InsertFeedback stores feedback under the submitting user.
func (f *FirestoreProvider) InsertFeedback(ctx context.Context, feedback types.Feedback) error {
	jsonBytes, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}
	coll, err := f.getCollection(feedback.UserID, "feedback")
	if err != nil {
		return err
	}
	_, err = coll.Doc(docID(feedback.Timestamp)).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"sentiment": feedback.Sentiment,
		"timestamp": feedback.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}
