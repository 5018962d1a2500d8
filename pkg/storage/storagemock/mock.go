package storagemock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/voltify/voltify/pkg/storage"
	"github.com/voltify/voltify/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetUser(ctx context.Context, userID string) (types.User, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *MockDatabase) CreateUser(ctx context.Context, user types.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockDatabase) UpdateUser(ctx context.Context, user types.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockDatabase) GetSettings(ctx context.Context, userID string) (types.Settings, int, error) {
	args := m.Called(ctx, userID)
	// return empty if not specified, or checks args
	if len(args) > 0 {
		return args.Get(0).(types.Settings), args.Int(1), args.Error(2)
	}
	return types.Settings{}, 0, nil
}

func (m *MockDatabase) SetSettings(ctx context.Context, userID string, settings types.Settings, version int) error {
	args := m.Called(ctx, userID, settings, version)
	return args.Error(0)
}

func (m *MockDatabase) ListAppliances(ctx context.Context, userID string) ([]types.Appliance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Appliance), args.Error(1)
}

func (m *MockDatabase) AddAppliance(ctx context.Context, userID string, appliance types.Appliance) error {
	args := m.Called(ctx, userID, appliance)
	return args.Error(0)
}

func (m *MockDatabase) DeleteAppliance(ctx context.Context, userID, applianceID string) error {
	args := m.Called(ctx, userID, applianceID)
	return args.Error(0)
}

func (m *MockDatabase) UpsertPowerReadings(ctx context.Context, userID string, readings []types.PowerReading, version int) error {
	args := m.Called(ctx, userID, readings, version)
	return args.Error(0)
}

func (m *MockDatabase) GetPowerHistory(ctx context.Context, userID string, start, end time.Time) ([]types.PowerReading, error) {
	args := m.Called(ctx, userID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.PowerReading), args.Error(1)
}

func (m *MockDatabase) InsertAlert(ctx context.Context, userID string, alert types.Alert) error {
	args := m.Called(ctx, userID, alert)
	return args.Error(0)
}

func (m *MockDatabase) GetAlertHistory(ctx context.Context, userID string, start, end time.Time) ([]types.Alert, error) {
	args := m.Called(ctx, userID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Alert), args.Error(1)
}

func (m *MockDatabase) InsertSuggestions(ctx context.Context, userID string, set types.SuggestionSet) error {
	args := m.Called(ctx, userID, set)
	return args.Error(0)
}

func (m *MockDatabase) GetLatestSuggestions(ctx context.Context, userID string) (*types.SuggestionSet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SuggestionSet), args.Error(1)
}

func (m *MockDatabase) InsertFeedback(ctx context.Context, feedback types.Feedback) error {
	args := m.Called(ctx, feedback)
	return args.Error(0)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
