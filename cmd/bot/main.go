// Command bot is a scripted player for exercising a running server. It joins the
// queue with a fixed deck, always picks its first remaining card and exits when
// the match is decided.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/insect-cbnu/cardbattle-server/internal/protocol"
	"go.uber.org/zap"
)

var (
	serverURL = flag.String("url", "ws://localhost:8080/ws", "server WebSocket URL")
	name      = flag.String("name", "", "display name (default bot-<random suffix>)")
	think     = flag.Duration("think", 500*time.Millisecond, "delay before each card selection")
	verbose   = flag.Bool("v", false, "log every event")
)

var deck = []protocol.CardStats{
	{Name: "Stag Beetle", HP: 120, Attack: 35, Defend: 10, Speed: 6, Type: "beetle"},
	{Name: "Mantis", HP: 80, Attack: 45, Defend: 5, Speed: 9, Type: "mantis"},
	{Name: "Pill Bug", HP: 150, Attack: 20, Defend: 20, Speed: 3, Type: "isopod"},
}

func main() {
	flag.Parse()
	if *name == "" {
		// round wins are keyed by display name, so bots must not share one
		*name = "bot-" + uuid.NewString()[:8]
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Error("bot stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(logger *zap.Logger) error {
	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", *serverURL, err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		conn.Close()
	}()

	logger.Info("connected", zap.String("url", *serverURL), zap.String("name", *name))
	if err := write(conn, protocol.EventJoinQueue, protocol.JoinQueue{DisplayName: *name, CardPool: deck}); err != nil {
		return err
	}

	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if *verbose {
			logger.Debug("event", zap.String("type", env.Type), zap.ByteString("data", env.Data))
		}

		switch env.Type {
		case protocol.EventCardsInfo, protocol.EventNextRound:
			time.Sleep(*think)
			if err := write(conn, protocol.EventSelectCard, protocol.SelectCard{Index: 0}); err != nil {
				return err
			}
		case protocol.EventStartBattle:
			var start protocol.StartBattle
			if err := json.Unmarshal(env.Data, &start); err == nil {
				logger.Info("battle started", zap.String("opponent_card", start.OpponentSelectedCard.Name))
			}
		case protocol.EventUpdateResult:
			logger.Info("round over", zap.String("result", message(env.Data)))
		case protocol.EventMatchResult:
			logger.Info("match over", zap.String("result", message(env.Data)))
			return nil
		case protocol.EventCardLengthError, protocol.EventInvalidPayload:
			return fmt.Errorf("join rejected: %s", message(env.Data))
		}
	}
}

func write(conn *websocket.Conn, event string, payload any) error {
	msg, err := protocol.Encode(event, payload)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func message(data json.RawMessage) string {
	var m protocol.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return string(data)
	}
	return m.Message
}
