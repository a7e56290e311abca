package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"wasteroute/internal/events"
)

const (
	// SnapshotEvent is the first message on a stream: the agent's current routes.
	SnapshotEvent = "routes.snapshot"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 20 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// AgentStreamHandler handles GET /v1/agents/{id}/routes/stream: a WebSocket
// carrying a snapshot of the agent's routes, then route.planned and
// route.updated events as they happen. Browsers may pass ?token= instead of
// an Authorization header.
func (s *Server) AgentStreamHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.Broker == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Streaming Disabled", "", r.URL.Path)
		return
	}
	if tok := r.URL.Query().Get("token"); tok != "" && r.Header.Get("Authorization") == "" {
		r.Header.Set("Authorization", "Bearer "+tok)
	}
	if !s.canSeeAgent(w, r, id) {
		return
	}
	routes, err := s.Store.ListRoutesForAgent(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	// Read loop: handles pongs and notices the client going away.
	closed := make(chan struct{})
	conn.SetReadLimit(1 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v)
	}
	if err := write(events.Event{Type: SnapshotEvent, Data: map[string]any{"agentId": id, "routes": routes}}); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := write(evt); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
