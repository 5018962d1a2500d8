package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/voltify/voltify/pkg/types"
	_ "modernc.org/sqlite"
)

// SQLiteProvider implements Database on a local SQLite file. Records are kept
// as JSON next to the columns used for ordering and range queries, the same
// shape the Firestore provider uses.
type SQLiteProvider struct {
	path string
	conn *sql.DB
}

var _ Database = (*SQLiteProvider)(nil)

// configuredSQLite registers the sqlite flags.
func configuredSQLite() *SQLiteProvider {
	path := lflag.String("sqlite-path", "voltify.db", "Path to the SQLite database when --storage-provider=sqlite")

	s := &SQLiteProvider{}
	lflag.Do(func() {
		s.path = *path
	})
	return s
}

// NewSQLite returns a provider for the database at path. Init must still be
// called.
func NewSQLite(path string) *SQLiteProvider {
	return &SQLiteProvider{path: path}
}

// Init opens the database and creates the schema.
func (s *SQLiteProvider) Init(ctx context.Context) error {
	conn, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	// sqlite only supports a single writer
	conn.SetMaxOpenConns(1)

	s.conn = conn
	if err := s.initSchema(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *SQLiteProvider) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		json TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS settings (
		user_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		json TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS appliances (
		user_id TEXT NOT NULL,
		id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		json TEXT NOT NULL,
		PRIMARY KEY (user_id, id)
	);
	CREATE TABLE IF NOT EXISTS power_history (
		user_id TEXT NOT NULL,
		ts TEXT NOT NULL,
		version INTEGER NOT NULL,
		json TEXT NOT NULL,
		PRIMARY KEY (user_id, ts)
	);
	CREATE TABLE IF NOT EXISTS alert_history (
		user_id TEXT NOT NULL,
		ts TEXT NOT NULL,
		kind TEXT NOT NULL,
		json TEXT NOT NULL,
		PRIMARY KEY (user_id, ts)
	);
	CREATE TABLE IF NOT EXISTS suggestion_history (
		user_id TEXT NOT NULL,
		ts TEXT NOT NULL,
		json TEXT NOT NULL,
		PRIMARY KEY (user_id, ts)
	);
	CREATE TABLE IF NOT EXISTS feedback (
		user_id TEXT NOT NULL,
		ts TEXT NOT NULL,
		sentiment TEXT NOT NULL,
		json TEXT NOT NULL,
		PRIMARY KEY (user_id, ts)
	);
	CREATE INDEX IF NOT EXISTS idx_appliances_created ON appliances(user_id, created_at);
	`
	_, err := s.conn.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteProvider) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteProvider) GetUser(ctx context.Context, userID string) (types.User, error) {
	if err := validateUserID(userID); err != nil {
		return types.User{}, err
	}
	var raw string
	err := s.conn.QueryRowContext(ctx, `SELECT json FROM users WHERE id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return types.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return types.User{}, fmt.Errorf("querying user %s: %w", userID, err)
	}
	var user types.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return types.User{}, fmt.Errorf("unmarshaling user %s: %w", userID, err)
	}
	return user, nil
}

// CreateUser inserts a user, failing with ErrUserExists if the ID is taken.
func (s *SQLiteProvider) CreateUser(ctx context.Context, user types.User) error {
	if err := validateUserID(user.ID); err != nil {
		return err
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshaling user %s: %w", user.ID, err)
	}
	res, err := s.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO users (id, email, json) VALUES (?, ?, ?)`,
		user.ID, user.Email, string(raw),
	)
	if err != nil {
		return fmt.Errorf("inserting user %s: %w", user.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUserExists, user.ID)
	}
	return nil
}

// UpdateUser overwrites a user.
func (s *SQLiteProvider) UpdateUser(ctx context.Context, user types.User) error {
	if err := validateUserID(user.ID); err != nil {
		return err
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshaling user %s: %w", user.ID, err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO users (id, email, json) VALUES (?, ?, ?)`,
		user.ID, user.Email, string(raw),
	)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", user.ID, err)
	}
	return nil
}

// GetSettings returns the zero value with version 0 when nothing is stored.
func (s *SQLiteProvider) GetSettings(ctx context.Context, userID string) (types.Settings, int, error) {
	if err := validateUserID(userID); err != nil {
		return types.Settings{}, 0, err
	}
	var raw string
	var version int
	err := s.conn.QueryRowContext(ctx, `SELECT json, version FROM settings WHERE user_id = ?`, userID).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Settings{}, 0, nil
	}
	if err != nil {
		return types.Settings{}, 0, fmt.Errorf("querying settings: %w", err)
	}
	var settings types.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return types.Settings{}, 0, fmt.Errorf("unmarshaling settings: %w", err)
	}
	return settings, version, nil
}

// SetSettings stores settings with their version.
func (s *SQLiteProvider) SetSettings(ctx context.Context, userID string, settings types.Settings, version int) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (user_id, version, json) VALUES (?, ?, ?)`,
		userID, version, string(raw),
	)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// ListAppliances returns appliances ordered by creation time.
func (s *SQLiteProvider) ListAppliances(ctx context.Context, userID string) ([]types.Appliance, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT json FROM appliances WHERE user_id = ? ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying appliances: %w", err)
	}
	var appliances []types.Appliance
	err = scanJSON(rows, func(raw []byte) error {
		var a types.Appliance
		if err := json.Unmarshal(raw, &a); err != nil {
			return err
		}
		appliances = append(appliances, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading appliances: %w", err)
	}
	return appliances, nil
}

// AddAppliance stores an appliance under its ID.
func (s *SQLiteProvider) AddAppliance(ctx context.Context, userID string, appliance types.Appliance) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if appliance.ID == "" {
		return fmt.Errorf("appliance id cannot be empty")
	}
	raw, err := json.Marshal(appliance)
	if err != nil {
		return fmt.Errorf("marshaling appliance: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO appliances (user_id, id, created_at, json) VALUES (?, ?, ?, ?)`,
		userID, appliance.ID, docID(appliance.CreatedAt), string(raw),
	)
	if err != nil {
		return fmt.Errorf("adding appliance: %w", err)
	}
	return nil
}

// DeleteAppliance removes an appliance, returning ErrApplianceNotFound if it
// doesn't exist.
func (s *SQLiteProvider) DeleteAppliance(ctx context.Context, userID, applianceID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM appliances WHERE user_id = ? AND id = ?`,
		userID, applianceID,
	)
	if err != nil {
		return fmt.Errorf("deleting appliance %s: %w", applianceID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrApplianceNotFound, applianceID)
	}
	return nil
}

// UpsertPowerReadings writes readings in a single transaction.
func (s *SQLiteProvider) UpsertPowerReadings(ctx context.Context, userID string, readings []types.PowerReading, version int) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO power_history (user_id, ts, version, json) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		if r.Timestamp.IsZero() {
			return fmt.Errorf("power reading missing timestamp")
		}
		raw, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshaling power reading: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, userID, docID(r.Timestamp), version, string(raw)); err != nil {
			return fmt.Errorf("upserting power reading: %w", err)
		}
	}
	return tx.Commit()
}

// GetPowerHistory returns readings within [start, end).
func (s *SQLiteProvider) GetPowerHistory(ctx context.Context, userID string, start, end time.Time) ([]types.PowerReading, error) {
	var readings []types.PowerReading
	err := s.rangeQuery(ctx, "power_history", userID, start, end, func(raw []byte) error {
		var r types.PowerReading
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		readings = append(readings, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading power history: %w", err)
	}
	return readings, nil
}

// InsertAlert stores an alert keyed by its timestamp.
func (s *SQLiteProvider) InsertAlert(ctx context.Context, userID string, alert types.Alert) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	raw, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO alert_history (user_id, ts, kind, json) VALUES (?, ?, ?, ?)`,
		userID, docID(alert.Timestamp), string(alert.Kind), string(raw),
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// GetAlertHistory returns alerts within [start, end).
func (s *SQLiteProvider) GetAlertHistory(ctx context.Context, userID string, start, end time.Time) ([]types.Alert, error) {
	var alerts []types.Alert
	err := s.rangeQuery(ctx, "alert_history", userID, start, end, func(raw []byte) error {
		var a types.Alert
		if err := json.Unmarshal(raw, &a); err != nil {
			return err
		}
		alerts = append(alerts, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading alert history: %w", err)
	}
	return alerts, nil
}

// InsertSuggestions stores a suggestion set keyed by its timestamp.
func (s *SQLiteProvider) InsertSuggestions(ctx context.Context, userID string, set types.SuggestionSet) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("marshaling suggestions: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO suggestion_history (user_id, ts, json) VALUES (?, ?, ?)`,
		userID, docID(set.Timestamp), string(raw),
	)
	if err != nil {
		return fmt.Errorf("inserting suggestions: %w", err)
	}
	return nil
}

// GetLatestSuggestions returns the newest suggestion set or nil.
func (s *SQLiteProvider) GetLatestSuggestions(ctx context.Context, userID string) (*types.SuggestionSet, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	var raw string
	err := s.conn.QueryRowContext(ctx,
		`SELECT json FROM suggestion_history WHERE user_id = ? ORDER BY ts DESC LIMIT 1`,
		userID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest suggestions: %w", err)
	}
	var set types.SuggestionSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return nil, fmt.Errorf("unmarshaling suggestions: %w", err)
	}
	return &set, nil
}

// InsertFeedback stores feedback under the submitting user.
func (s *SQLiteProvider) InsertFeedback(ctx context.Context, feedback types.Feedback) error {
	if err := validateUserID(feedback.UserID); err != nil {
		return err
	}
	raw, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("marshaling feedback: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO feedback (user_id, ts, sentiment, json) VALUES (?, ?, ?, ?)`,
		feedback.UserID, docID(feedback.Timestamp), feedback.Sentiment, string(raw),
	)
	if err != nil {
		return fmt.Errorf("inserting feedback: %w", err)
	}
	return nil
}

// historyTables are the tables rangeQuery may be called with.
var historyTables = map[string]bool{
	"power_history":      true,
	"alert_history":      true,
	"suggestion_history": true,
}

func (s *SQLiteProvider) rangeQuery(ctx context.Context, table, userID string, start, end time.Time, decode func([]byte) error) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if !historyTables[table] {
		return fmt.Errorf("unknown history table: %s", table)
	}
	var q strings.Builder
	q.WriteString("SELECT json FROM ")
	q.WriteString(table)
	q.WriteString(" WHERE user_id = ? AND ts >= ? AND ts < ? ORDER BY ts ASC")

	rows, err := s.conn.QueryContext(ctx, q.String(), userID, docID(start), docID(end))
	if err != nil {
		return err
	}
	return scanJSON(rows, decode)
}

// scanJSON feeds the single json column of every row to decode and closes rows.
func scanJSON(rows *sql.Rows, decode func([]byte) error) error {
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		if err := decode([]byte(raw)); err != nil {
			return err
		}
	}
	return rows.Err()
}
