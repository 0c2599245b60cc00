// Package matchmaking owns the player registry and the waiting queue. It pairs
// waiting players into rooms and routes each player's messages to the room that
// seats them.
//
// A Service is driven from a single goroutine and holds no locks; the transport
// serializes every call onto its event loop.
package matchmaking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/insect-cbnu/cardbattle-server/internal/battle"
	"github.com/insect-cbnu/cardbattle-server/internal/history"
	"github.com/insect-cbnu/cardbattle-server/internal/match"
	"github.com/insect-cbnu/cardbattle-server/internal/protocol"
	"go.uber.org/zap"
)

// ErrInMatch is returned when a seated player tries to join the queue again.
var ErrInMatch = errors.New("player is already in a match")

// Config holds the matchmaking rules
type Config struct {
	CardPoolSize int
	WinThreshold int
}

// Stats is a point-in-time view of the registry
type Stats struct {
	Players int `json:"players"`
	Waiting int `json:"waiting"`
	Rooms   int `json:"rooms"`
}

// Service is the matchmaking queue and player registry
type Service struct {
	cfg       Config
	messenger protocol.Messenger
	engine    *battle.Engine
	recorder  history.Recorder
	logger    *zap.Logger
	now       func() time.Time

	players map[string]*match.Player
	waiting []string
	rooms   map[string]*match.Room
}

// NewService creates an empty registry. A nil recorder discards results.
func NewService(cfg Config, messenger protocol.Messenger, engine *battle.Engine, recorder history.Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = history.Nop{}
	}
	return &Service{
		cfg:       cfg,
		messenger: messenger,
		engine:    engine,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
		players:   make(map[string]*match.Player),
		waiting:   make([]string, 0),
		rooms:     make(map[string]*match.Room),
	}
}

// RoomID derives a room id from the two identities in pairing order.
func RoomID(first, second string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(first+"|"+second)).String()
}

// Join registers connID with pool and queues it for pairing. An invalid request
// returns a *ValidationError and leaves the registry untouched.
func (s *Service) Join(connID, displayName string, pool []protocol.CardStats) error {
	if err := s.validate(displayName, pool); err != nil {
		return err
	}

	if existing, ok := s.players[connID]; ok && existing.InMatch() {
		return fmt.Errorf("join %s: %w", connID, ErrInMatch)
	}

	s.players[connID] = match.NewPlayer(connID, displayName, pool)
	if !s.isWaiting(connID) {
		s.waiting = append(s.waiting, connID)
	}

	s.logger.Info("player joined queue",
		zap.String("conn_id", connID),
		zap.String("display_name", displayName),
		zap.Int("waiting", len(s.waiting)),
	)

	s.pair()
	return nil
}

// SelectCard records a card choice for connID. It returns false, with no effect,
// for unknown players, players without a room, bad indexes or rooms that are not
// awaiting selection.
func (s *Service) SelectCard(connID string, index int) bool {
	p, ok := s.players[connID]
	if !ok || !p.InMatch() {
		return false
	}
	room, ok := s.rooms[p.RoomID]
	if !ok {
		return false
	}
	return room.Select(connID, index)
}

// Remove deletes connID from the registry and the queue. It reports whether the
// player was seated in a match.
func (s *Service) Remove(connID string) bool {
	s.dequeue(connID)
	p, ok := s.players[connID]
	if !ok {
		return false
	}
	delete(s.players, connID)
	return p.InMatch()
}

// Stats returns the registry sizes
func (s *Service) Stats() Stats {
	return Stats{
		Players: len(s.players),
		Waiting: len(s.waiting),
		Rooms:   len(s.rooms),
	}
}

// Waiting returns the queued identities, oldest first.
func (s *Service) Waiting() []string {
	return append([]string(nil), s.waiting...)
}

// Player returns the registered player for connID
func (s *Service) Player(connID string) (*match.Player, bool) {
	p, ok := s.players[connID]
	return p, ok
}

// Room returns the live room with id
func (s *Service) Room(id string) (*match.Room, bool) {
	r, ok := s.rooms[id]
	return r, ok
}

func (s *Service) validate(displayName string, pool []protocol.CardStats) error {
	if len(pool) != s.cfg.CardPoolSize {
		return &ValidationError{
			Field:  "cardPool",
			Reason: fmt.Sprintf("expected %d cards, got %d", s.cfg.CardPoolSize, len(pool)),
		}
	}
	if displayName == "" {
		return &ValidationError{Field: "displayName", Reason: "required"}
	}
	for i, c := range pool {
		field := fmt.Sprintf("cardPool[%d]", i)
		switch {
		case c.Name == "":
			return &ValidationError{Field: field + ".name", Reason: "required"}
		case c.HP <= 0:
			return &ValidationError{Field: field + ".hp", Reason: "must be positive"}
		case c.Attack < 0:
			return &ValidationError{Field: field + ".attack", Reason: "must not be negative"}
		case c.Defend < 0:
			return &ValidationError{Field: field + ".defend", Reason: "must not be negative"}
		case c.Speed < 0:
			return &ValidationError{Field: field + ".speed", Reason: "must not be negative"}
		}
	}
	return nil
}

func (s *Service) pair() {
	for len(s.waiting) >= 2 {
		id1, id2 := s.waiting[0], s.waiting[1]
		s.waiting = s.waiting[2:]

		p1, ok1 := s.players[id1]
		p2, ok2 := s.players[id2]
		if !ok1 || !ok2 {
			// queue and registry drifted; requeue whoever is still registered
			s.logger.Error("queued player missing from registry",
				zap.String("conn_a", id1),
				zap.String("conn_b", id2),
			)
			for _, id := range []string{id1, id2} {
				if _, ok := s.players[id]; ok {
					s.waiting = append([]string{id}, s.waiting...)
				}
			}
			continue
		}

		roomID := RoomID(id1, id2)
		room := match.NewRoom(roomID, p1, p2, s.engine, s.messenger,
			match.Rules{WinThreshold: s.cfg.WinThreshold}, s.matchOver, s.logger)
		s.rooms[roomID] = room
		room.Start()
	}
}

// matchOver tears the room down and releases both players.
func (s *Service) matchOver(o match.Outcome) {
	delete(s.rooms, o.RoomID)
	for _, p := range []*match.Player{o.Winner, o.Loser} {
		if current, ok := s.players[p.ID]; ok && current == p {
			delete(s.players, p.ID)
		}
	}

	s.recorder.Record(history.Result{
		RoomID:       o.RoomID,
		WinnerID:     o.Winner.ID,
		WinnerName:   o.Winner.DisplayName,
		LoserID:      o.Loser.ID,
		LoserName:    o.Loser.DisplayName,
		WinnerRounds: o.Winner.RoundWins,
		LoserRounds:  o.Loser.RoundWins,
		Reason:       string(o.Reason),
		Rounds:       o.Rounds,
		EndedAt:      s.now(),
	})
}

func (s *Service) isWaiting(connID string) bool {
	for _, id := range s.waiting {
		if id == connID {
			return true
		}
	}
	return false
}

func (s *Service) dequeue(connID string) bool {
	for i, id := range s.waiting {
		if id == connID {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			return true
		}
	}
	return false
}
