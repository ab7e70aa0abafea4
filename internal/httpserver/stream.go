// internal/httpserver/stream.go
//
// WebSocket event stream: GET /game/{id}/events.
// Responsibilities:
//   - Hub fans committed game events out to every socket watching a session.
//     It implements session.Publisher, so the controller publishes straight
//     into it.
//   - Per-connection read/write pumps with ping/pong keepalive.
//
// Notes:
//   - Publish never blocks: a subscriber whose buffer is full is dropped.
//   - The stream is one-way; inbound frames are read only to detect close.

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/robalobadob/wordrush/internal/game"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
	sendBuffer     = 64
)

// subscriber is one connected socket.
type subscriber struct {
	session string
	conn    *websocket.Conn
	send    chan []byte
}

// Hub routes events to the sockets subscribed to their session.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
	log    zerolog.Logger
}

// NewHub returns an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[*subscriber]struct{}),
		log:  logger.With().Str("component", "stream").Logger(),
	}
}

// Publish implements session.Publisher.
func (h *Hub) Publish(sessionID string, events []game.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[sessionID]
	if len(subs) == 0 {
		return
	}
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.log.Error().Err(err).Msg("encode event")
			continue
		}
		for s := range subs {
			select {
			case s.send <- payload:
			default:
				h.removeLocked(s)
				h.log.Warn().Str("session", sessionID).Msg("slow subscriber dropped")
			}
		}
	}
}

// Subscribers reports how many sockets watch a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

func (h *Hub) register(s *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.subs[s.session]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[s.session] = set
	}
	set[s] = struct{}{}
	return true
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

func (h *Hub) removeLocked(s *subscriber) {
	set, ok := h.subs[s.session]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.send)
	if len(set) == 0 {
		delete(h.subs, s.session)
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for s := range set {
			h.removeLocked(s)
		}
	}
	h.closed = true
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleEvents upgrades to a WebSocket and streams the session's events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.ctl.State(r.Context(), id); err != nil {
		s.writeSessionError(w, err)
		return
	}
	up := upgrader
	up.CheckOrigin = s.checkOrigin
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	sub := &subscriber{session: id, conn: conn, send: make(chan []byte, sendBuffer)}
	if !s.hub.register(sub) {
		_ = conn.Close()
		return
	}
	go s.hub.writePump(sub)
	go s.hub.readPump(sub)
}

// readPump drains inbound frames so pongs and close frames are processed.
func (h *Hub) readPump(s *subscriber) {
	defer func() {
		h.unregister(s)
		_ = s.conn.Close()
	}()
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug().Err(err).Str("session", s.session).Msg("socket closed")
			}
			return
		}
	}
}

// writePump sends queued events, one JSON object per frame, and pings.
func (h *Hub) writePump(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
