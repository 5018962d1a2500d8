package simulator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/voltify/voltify/pkg/publisher"
	"github.com/voltify/voltify/pkg/storage"
	"github.com/voltify/voltify/pkg/storage/storagemock"
	"github.com/voltify/voltify/pkg/types"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreCurrent())
}

func newTestMap(db *storagemock.MockDatabase, now time.Time) *Map {
	var sdb storage.Database
	if db != nil {
		sdb = db
	}
	m := NewMap(sdb, publisher.Noop{})
	m.rand = sequence(0.45, 0.5)
	m.now = func() time.Time { return now }
	return m
}

func TestMapFeedAppliesSettings(t *testing.T) {
	m := newTestMap(nil, stepTime)

	f := m.Feed("user-1", testSettings(3, false))
	assert.Same(t, f, m.Feed("user-1", testSettings(4, true)))
	assert.Equal(t, 4.0, f.State().PeakThresholdKWH)
	assert.True(t, f.State().AutoCutoff)

	assert.NotSame(t, f, m.Feed("user-2", testSettings(3, false)))
}

func TestMapTickPersistsAndFansOut(t *testing.T) {
	db := &storagemock.MockDatabase{}
	m := newTestMap(db, stepTime)
	m.Feed("user-1", testSettings(1.5, false))

	db.On("UpsertPowerReadings", mock.Anything, "user-1", mock.MatchedBy(func(r []types.PowerReading) bool {
		return len(r) == 1 && r[0].Timestamp.Equal(stepTime)
	}), types.CurrentPowerHistoryVersion).Return(nil).Once()
	db.On("InsertAlert", mock.Anything, "user-1", mock.MatchedBy(func(a types.Alert) bool {
		return a.Kind == types.AlertKindPeakUsage
	})).Return(nil).Once()

	updates, cancel := m.Subscribe("user-1")
	defer cancel()

	m.Tick(context.Background())

	select {
	case u := <-updates:
		assert.Equal(t, "user-1", u.UserID)
		assert.Equal(t, "18:05", u.Point.Time)
		require.NotNil(t, u.Alert)
		assert.Equal(t, types.AlertKindPeakUsage, u.Alert.Kind)
	default:
		t.Fatal("expected an update")
	}
	db.AssertExpectations(t)
}

func TestMapTickPersistErrorsDoNotStop(t *testing.T) {
	db := &storagemock.MockDatabase{}
	m := newTestMap(db, stepTime)
	m.Feed("user-1", testSettings(3, false))

	db.On("UpsertPowerReadings", mock.Anything, "user-1", mock.Anything, mock.Anything).Return(errors.New("unavailable")).Twice()

	m.Tick(context.Background())
	m.Tick(context.Background())
	db.AssertExpectations(t)
}

func TestMapSubscribeDropsWhenFull(t *testing.T) {
	m := newTestMap(nil, stepTime)
	m.Feed("user-1", testSettings(3, false))

	updates, cancel := m.Subscribe("user-1")
	for range subscriberBuffer + 5 {
		m.Tick(context.Background())
	}
	assert.Len(t, updates, subscriberBuffer)

	cancel()
	// cancel is idempotent and closes the channel
	cancel()
	n := 0
	for range updates {
		n++
	}
	assert.Equal(t, subscriberBuffer, n)
}

func TestMapDropsIdleFeeds(t *testing.T) {
	now := stepTime
	m := newTestMap(nil, now)
	m.Feed("idle", testSettings(3, false))
	m.Feed("watched", testSettings(3, false))

	_, cancel := m.Subscribe("watched")
	defer cancel()

	m.now = func() time.Time { return now.Add(time.Hour) }
	m.Tick(context.Background())

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotContains(t, m.feeds, "idle")
	assert.Contains(t, m.feeds, "watched")
}

func TestMapRun(t *testing.T) {
	m := newTestMap(nil, stepTime)
	m.interval = 10 * time.Millisecond
	m.Feed("user-1", testSettings(3, false))

	updates, cancelSub := m.Subscribe("user-1")
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	select {
	case <-updates:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
