package server

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/insect-cbnu/cardbattle-server/internal/protocol"
	"go.uber.org/zap"
)

// Client is one WebSocket connection. Only the hub touches send's lifecycle.
type Client struct {
	id     string
	remote string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
}

func newClient(id, remote string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:     id,
		remote: remote,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, hub.cfg.SendBuffer),
	}
}

// readPump decodes frames and posts them to the game loop. It reports the
// disconnect when the connection fails or the peer stops answering pings.
func (c *Client) readPump() {
	defer func() {
		c.hub.post(func() { c.hub.unregister(c) })
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}

		task, err := c.decode(message)
		if err != nil {
			c.hub.logger.Debug("malformed message", zap.String("conn_id", c.id), zap.Error(err))
			reason := err.Error()
			c.hub.post(func() {
				c.hub.Send(c.id, protocol.EventInvalidPayload, protocol.Message{Message: reason})
			})
			continue
		}
		if task != nil && !c.hub.post(task) {
			return
		}
	}
}

// decode turns a frame into a game loop task. Unknown event types yield nil.
func (c *Client) decode(message []byte) (func(), error) {
	var env protocol.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case protocol.EventJoinQueue:
		var req protocol.JoinQueue
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return nil, err
		}
		return func() { c.hub.handler.HandleJoin(c.id, req) }, nil
	case protocol.EventSelectCard:
		req, err := protocol.DecodeSelectCard(env.Data)
		if err != nil {
			return nil, err
		}
		return func() { c.hub.handler.HandleSelect(c.id, req) }, nil
	default:
		c.hub.logger.Debug("unknown message type", zap.String("conn_id", c.id), zap.String("type", env.Type))
		return nil, nil
	}
}

// writePump drains send and keeps the connection alive with pings.
func (c *Client) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
