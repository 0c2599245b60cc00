package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// StatsFunc reports server state. It runs on the game loop.
type StatsFunc func() any

// NewRouter wires the WebSocket endpoint and the operational routes.
func NewRouter(hub *Hub, stats StatsFunc) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(hub.cfg.Path, hub.ServeWS)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/stats", hub.statsHandler(stats)).Methods(http.MethodGet)
	return r
}

// ServeWS upgrades the request and registers a new client on the game loop.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  h.cfg.ReadBufferSize,
		WriteBufferSize: h.cfg.WriteBufferSize,
		// Mobile clients do not send a browser Origin.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	c := newClient(uuid.NewString(), r.RemoteAddr, h, conn)
	if !h.post(func() { h.register(c) }) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) statsHandler(stats StatsFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var out any
		if err := h.Do(ctx, func() { out = stats() }); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(out); err != nil {
			h.logger.Warn("failed to write stats", zap.Error(err))
		}
	}
}
