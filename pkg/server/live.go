package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/voltify/voltify/pkg/log"
	"github.com/voltify/voltify/pkg/simulator"
	"github.com/voltify/voltify/pkg/types"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
	liveReadLimit  = 512
)

const (
	liveMessageSnapshot = "snapshot"
	liveMessageUpdate   = "update"
)

// liveMessage is written to the websocket. The first message is a snapshot
// carrying the whole window, every later one is a single step.
type liveMessage struct {
	Type    string                 `json:"type"`
	Window  []types.PowerDataPoint `json:"window,omitempty"`
	Current float64                `json:"current"`
	State   simulator.State        `json:"state"`
	Point   *types.PowerDataPoint  `json:"point,omitempty"`
	Reading *types.PowerReading    `json:"reading,omitempty"`
	Alert   *types.Alert           `json:"alert,omitempty"`
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := s.getUser(r)
	if user.ID == "" {
		writeJSONError(w, "missing authentication", http.StatusUnauthorized)
		return
	}

	feed, _, err := s.feed(ctx, user.ID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	// subscribe before the snapshot so no step falls between them
	updates, cancel := s.simulator.Subscribe(user.ID)
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		log.Ctx(ctx).WarnContext(ctx, "websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()
	log.Ctx(ctx).DebugContext(ctx, "live feed connected")

	// the reader only handles control frames and notices when the client goes away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(liveReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(msg liveMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		return conn.WriteJSON(msg)
	}

	if err := write(liveMessage{
		Type:    liveMessageSnapshot,
		Window:  feed.Window(),
		Current: feed.Current(),
		State:   feed.State(),
	}); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to write live snapshot", slog.Any("error", err))
		return
	}

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(liveWriteWait),
			)
			return
		case <-closed:
			log.Ctx(ctx).DebugContext(ctx, "live feed disconnected")
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := write(liveMessage{
				Type:    liveMessageUpdate,
				Current: u.Reading.CurrentKWH,
				State:   u.State,
				Point:   &u.Point,
				Reading: &u.Reading,
				Alert:   u.Alert,
			}); err != nil {
				log.Ctx(ctx).WarnContext(ctx, "failed to write live update", slog.Any("error", err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
