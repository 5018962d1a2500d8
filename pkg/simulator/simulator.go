package simulator

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/voltify/voltify/pkg/log"
	"github.com/voltify/voltify/pkg/publisher"
	"github.com/voltify/voltify/pkg/storage"
	"github.com/voltify/voltify/pkg/types"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultInterval matches the refresh rate of the dashboard chart.
	DefaultInterval = 5 * time.Second

	subscriberBuffer = 16
	persistWorkers   = 8
)

// Update is sent to subscribers after every step.
type Update struct {
	UserID  string               `json:"-"`
	Reading types.PowerReading   `json:"reading"`
	Point   types.PowerDataPoint `json:"point"`
	Alert   *types.Alert         `json:"alert,omitempty"`
	State   State                `json:"state"`
}

type subscriber struct {
	ch chan Update
}

// Map keeps one feed per user and advances all of them on every tick.
type Map struct {
	db  storage.Database
	pub publisher.Publisher

	interval    time.Duration
	idleTimeout time.Duration
	rand        func() float64
	now         func() time.Time

	mu    sync.Mutex
	feeds map[string]*Feed
	subs  map[string]map[*subscriber]struct{}
}

// Configured registers the simulator flags.
func Configured(db storage.Database, pub publisher.Publisher) *Map {
	interval := lflag.Duration("simulator-interval", DefaultInterval, "How often the live consumption feed advances")
	idleTimeout := lflag.Duration("simulator-idle-timeout", 30*time.Minute, "Drop feeds nobody has looked at for this long")

	m := NewMap(db, pub)
	lflag.Do(func() {
		m.interval = *interval
		m.idleTimeout = *idleTimeout
	})
	return m
}

// NewMap creates a Map with the default interval.
func NewMap(db storage.Database, pub publisher.Publisher) *Map {
	if pub == nil {
		pub = publisher.Noop{}
	}
	return &Map{
		db:          db,
		pub:         pub,
		interval:    DefaultInterval,
		idleTimeout: 30 * time.Minute,
		rand:        rand.Float64,
		now:         time.Now,
		feeds:       make(map[string]*Feed),
		subs:        make(map[string]map[*subscriber]struct{}),
	}
}

// Feed returns the feed for userID, creating it if needed, with settings
// applied.
func (m *Map) Feed(userID string, settings types.Settings) *Feed {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.feeds[userID]
	if ok {
		f.ApplySettings(settings)
	} else {
		f = NewFeed(settings, m.rand)
		m.feeds[userID] = f
	}
	f.touch(m.now())
	return f
}

// SetFeed sets the feed for a user. This is primarily used for testing.
func (m *Map) SetFeed(userID string, f *Feed) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feeds[userID] = f
}

// Subscribe returns a channel receiving the user's updates and a func that
// must be called to stop receiving them. Updates are dropped when the
// channel is full.
func (m *Map) Subscribe(userID string) (<-chan Update, func()) {
	s := &subscriber{ch: make(chan Update, subscriberBuffer)}

	m.mu.Lock()
	if m.subs[userID] == nil {
		m.subs[userID] = make(map[*subscriber]struct{})
	}
	m.subs[userID][s] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs[userID], s)
			if len(m.subs[userID]) == 0 {
				delete(m.subs, userID)
			}
			close(s.ch)
		})
	}
}

// Run advances every feed each interval until ctx is canceled.
func (m *Map) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Ctx(ctx).InfoContext(ctx, "simulator started", slog.Duration("interval", m.interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick advances all feeds once, persisting, publishing and fanning out the
// results. Feeds idle for longer than the idle timeout without subscribers
// are dropped.
func (m *Map) Tick(ctx context.Context) {
	now := m.now()

	m.mu.Lock()
	feeds := make(map[string]*Feed, len(m.feeds))
	for userID, f := range m.feeds {
		if len(m.subs[userID]) == 0 && f.idleSince(now) > m.idleTimeout {
			delete(m.feeds, userID)
			continue
		}
		feeds[userID] = f
	}
	m.mu.Unlock()

	updates := make([]Update, 0, len(feeds))
	for userID, f := range feeds {
		step := f.Step(now)
		updates = append(updates, Update{
			UserID:  userID,
			Reading: step.Reading,
			Point:   step.Point,
			Alert:   step.Alert,
			State:   step.State,
		})
	}

	for _, u := range updates {
		m.fanOut(ctx, u)
	}

	var eg errgroup.Group
	eg.SetLimit(persistWorkers)
	for _, u := range updates {
		eg.Go(func() error {
			m.persist(ctx, u)
			return nil
		})
	}
	eg.Wait()
}

func (m *Map) fanOut(ctx context.Context, u Update) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for s := range m.subs[u.UserID] {
		select {
		case s.ch <- u:
		default:
			log.Ctx(ctx).DebugContext(ctx, "dropping update for slow subscriber", slog.String("userID", u.UserID))
		}
	}
}

// persist logs failures instead of returning them so one user can't stall
// the others.
func (m *Map) persist(ctx context.Context, u Update) {
	ctx = log.WithAttrs(ctx, slog.String("userID", u.UserID))

	if m.db != nil {
		if err := m.db.UpsertPowerReadings(ctx, u.UserID, []types.PowerReading{u.Reading}, types.CurrentPowerHistoryVersion); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to persist reading", slog.Any("error", err))
		}
		if u.Alert != nil {
			if err := m.db.InsertAlert(ctx, u.UserID, *u.Alert); err != nil {
				log.Ctx(ctx).ErrorContext(ctx, "failed to persist alert", slog.Any("error", err))
			}
		}
	}

	if err := m.pub.PublishReading(ctx, u.UserID, u.Reading); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to publish reading", slog.Any("error", err))
	}
	if u.Alert != nil {
		if err := m.pub.PublishAlert(ctx, u.UserID, *u.Alert); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to publish alert", slog.Any("error", err))
		}
	}
}
