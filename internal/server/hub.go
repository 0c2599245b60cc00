package server

import (
	"context"
	"errors"
	"time"

	"github.com/insect-cbnu/cardbattle-server/internal/config"
	"github.com/insect-cbnu/cardbattle-server/internal/protocol"
	"go.uber.org/zap"
)

// ErrHubClosed is returned when work is posted after the hub stopped.
var ErrHubClosed = errors.New("hub closed")

// Handler receives decoded client events on the hub goroutine.
type Handler interface {
	HandleJoin(connID string, req protocol.JoinQueue)
	HandleSelect(connID string, req protocol.SelectCard)
	HandleDisconnect(connID string)
}

// Hub is the game loop. Every client event, disconnect and scheduled battle turn
// runs as a task on the single goroutine inside Run, so the game core needs no
// locks. Hub implements protocol.Messenger and battle.Scheduler for that core;
// both must only be called from tasks.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *zap.Logger
	handler Handler

	clients map[string]*Client
	dropped []string

	tasks chan func()
	done  chan struct{}
}

// NewHub creates a hub. Call Run to start processing.
func NewHub(cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[string]*Client),
		tasks:   make(chan func(), 256),
		done:    make(chan struct{}),
	}
}

// Run processes tasks until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context, handler Handler) {
	h.handler = handler
	defer close(h.done)

	h.logger.Info("game loop started")
	for {
		select {
		case <-ctx.Done():
			for id, c := range h.clients {
				delete(h.clients, id)
				close(c.send)
			}
			h.logger.Info("game loop stopped")
			return
		case fn := <-h.tasks:
			h.exec(fn)
			h.flushDropped()
		}
	}
}

// Do runs fn on the game loop and waits for it.
func (h *Hub) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !h.post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrHubClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubClosed
	}
}

// Send encodes payload and queues it for connID. A client whose buffer is full
// is dropped and reported as disconnected after the current task.
func (h *Hub) Send(connID, event string, payload any) {
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	msg, err := protocol.Encode(event, payload)
	if err != nil {
		h.logger.Error("failed to encode message", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("client send buffer full, dropping connection", zap.String("conn_id", connID))
		h.remove(c)
		h.dropped = append(h.dropped, connID)
	}
}

// Connected reports whether connID is still registered
func (h *Hub) Connected(connID string) bool {
	_, ok := h.clients[connID]
	return ok
}

// After schedules fn on the game loop after d. Cancelling from the loop
// guarantees fn will not run, even if its timer already fired.
func (h *Hub) After(d time.Duration, fn func()) func() {
	cancelled := false
	timer := time.AfterFunc(d, func() {
		h.post(func() {
			if !cancelled {
				fn()
			}
		})
	})
	return func() {
		cancelled = true
		timer.Stop()
	}
}

// ClientCount returns the number of registered clients. Loop only.
func (h *Hub) ClientCount() int {
	return len(h.clients)
}

func (h *Hub) post(fn func()) bool {
	select {
	case h.tasks <- fn:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("recovered panic in game loop",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	fn()
}

func (h *Hub) register(c *Client) {
	h.clients[c.id] = c
	h.logger.Info("client connected",
		zap.String("conn_id", c.id),
		zap.String("remote", c.remote),
		zap.Int("clients", len(h.clients)),
	)
}

func (h *Hub) unregister(c *Client) {
	if current, ok := h.clients[c.id]; !ok || current != c {
		return
	}
	h.remove(c)
	h.logger.Info("client disconnected",
		zap.String("conn_id", c.id),
		zap.Int("clients", len(h.clients)),
	)
	h.exec(func() { h.handler.HandleDisconnect(c.id) })
}

func (h *Hub) remove(c *Client) {
	delete(h.clients, c.id)
	close(c.send)
}

func (h *Hub) flushDropped() {
	for len(h.dropped) > 0 {
		id := h.dropped[0]
		h.dropped = h.dropped[1:]
		h.exec(func() { h.handler.HandleDisconnect(id) })
	}
}
