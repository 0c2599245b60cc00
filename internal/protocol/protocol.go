// Package protocol defines the message names and payload shapes exchanged with
// card battle clients, plus the narrow capability the game core uses to reach them.
//
// Every frame on the wire is an Envelope. The core never sees transport handles;
// it addresses players by connection id through a Messenger.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound events
const (
	EventJoinQueue  = "joinQueue"
	EventSelectCard = "selectCard"
)

// Outbound events
const (
	EventCardLengthError      = "card_length_error"
	EventInvalidPayload       = "invalid_payload"
	EventMatched              = "matched"
	EventCardsInfo            = "cardsInfo"
	EventStartBattle          = "startBattle"
	EventInitialStatus        = "initialStatus"
	EventCritical             = "critical"
	EventMiss                 = "miss"
	EventNormalAttack         = "normalAttack"
	EventUpdateStatus         = "updateStatus"
	EventUpdateResult         = "updateResult"
	EventMatchResult          = "matchResult"
	EventNextRound            = "nextRound"
	EventOpponentDisconnected = "opponent_disconnected"
)

// Messenger delivers events to connected players.
type Messenger interface {
	// Send queues payload for connID. Unknown or closed connections are ignored.
	Send(connID, event string, payload any)
	// Connected reports whether connID still has a live connection.
	Connected(connID string) bool
}

// Envelope is the JSON frame used in both directions
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Encode wraps payload in an envelope and marshals it.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Type: event, Data: data})
}

// CardStats is a card as clients describe it
type CardStats struct {
	Name   string `json:"name"`
	HP     int    `json:"hp"`
	Attack int    `json:"attack"`
	Defend int    `json:"defend"`
	Speed  int    `json:"speed"`
	Type   string `json:"type,omitempty"`
	Image  string `json:"image,omitempty"`
}

// JoinQueue is the joinQueue payload. The name/cards keys are accepted for
// older clients.
type JoinQueue struct {
	DisplayName string      `json:"displayName"`
	CardPool    []CardStats `json:"cardPool"`
	Name        string      `json:"name,omitempty"`
	Cards       []CardStats `json:"cards,omitempty"`
}

// Normalize folds the legacy keys into DisplayName and CardPool.
func (j JoinQueue) Normalize() JoinQueue {
	if j.DisplayName == "" {
		j.DisplayName = j.Name
	}
	if j.CardPool == nil {
		j.CardPool = j.Cards
	}
	j.Name, j.Cards = "", nil
	return j
}

// SelectCard is the selectCard payload
type SelectCard struct {
	Index int `json:"index"`
}

// ErrMissingIndex is returned when a selectCard payload carries no index.
var ErrMissingIndex = errors.New("selectCard: missing index")

// DecodeSelectCard accepts either {"index": n} or a bare integer. A null or
// absent index is an error, never card 0.
func DecodeSelectCard(data json.RawMessage) (SelectCard, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return SelectCard{}, ErrMissingIndex
	}

	var index int
	if err := json.Unmarshal(trimmed, &index); err == nil {
		return SelectCard{Index: index}, nil
	}

	var sc struct {
		Index *int `json:"index"`
	}
	if err := json.Unmarshal(trimmed, &sc); err != nil {
		return SelectCard{}, fmt.Errorf("decode selectCard: %w", err)
	}
	if sc.Index == nil {
		return SelectCard{}, ErrMissingIndex
	}
	return SelectCard{Index: *sc.Index}, nil
}

// Message carries a human-readable line
type Message struct {
	Message string `json:"message"`
}

// CardsInfo shows a player the opponent's pool
type CardsInfo struct {
	OpponentCardPool []CardStats `json:"opponentCardPool"`
}

// StartBattle announces the card the opponent picked for the round
type StartBattle struct {
	OpponentSelectedCard CardStats `json:"opponentSelectedCard"`
}

// InitialStatus is the opponent's stat block, sent once per round
type InitialStatus struct {
	EnemyName   string `json:"enemyName"`
	EnemyAttack int    `json:"enemyAttack"`
	EnemyHP     int    `json:"enemyHp"`
	EnemyDefend int    `json:"enemyDefend"`
	EnemySpeed  int    `json:"enemySpeed"`
}

// NormalAttack describes a regular hit
type NormalAttack struct {
	AttackerName string `json:"attackerName"`
	DefenderName string `json:"defenderName"`
	Damage       int    `json:"damage"`
}

// UpdateStatus is framed from the receiver's point of view
type UpdateStatus struct {
	SelfName  string `json:"selfName"`
	EnemyName string `json:"enemyName"`
	SelfHP    int    `json:"selfHp"`
	EnemyHP   int    `json:"enemyHp"`
}

// NextRound carries win counters by display name and the receiver's view of the
// opponent's remaining cards.
type NextRound struct {
	RoundWins        map[string]int `json:"roundWins"`
	OpponentCardPool []CardStats    `json:"opponentCardPool"`
}

// Empty is sent for events without a payload
type Empty struct{}

const (
	CriticalText = "critical!"
	MissText     = "miss!"
)
