package match

import (
	"fmt"

	"github.com/insect-cbnu/cardbattle-server/internal/battle"
	"github.com/insect-cbnu/cardbattle-server/internal/protocol"
	"go.uber.org/zap"
)

// State is the match state machine
type State int

const (
	StateAwaitingSelection State = iota
	StateResolvingRound
	StateMatchOver
)

func (s State) String() string {
	switch s {
	case StateAwaitingSelection:
		return "AWAITING_SELECTION"
	case StateResolvingRound:
		return "RESOLVING_ROUND"
	case StateMatchOver:
		return "MATCH_OVER"
	default:
		return "UNKNOWN"
	}
}

// EndReason explains why a match finished
type EndReason string

const (
	EndReasonDecided              EndReason = "decided"
	EndReasonOpponentDisconnected EndReason = "opponent_disconnected"
)

// Outcome is reported once when a match reaches MATCH_OVER
type Outcome struct {
	RoomID string
	Winner *Player
	Loser  *Player
	Reason EndReason
	Rounds int
}

// Rules configure when a match ends
type Rules struct {
	// WinThreshold is the number of round wins that ends the match.
	WinThreshold int
}

// Room is a match between two seated players. It is driven from the game loop
// and is not safe for concurrent use.
type Room struct {
	ID string

	players   [2]*Player
	state     State
	rules     Rules
	rounds    int
	engine    *battle.Engine
	battle    *battle.Battle
	messenger protocol.Messenger
	onOver    func(Outcome)
	logger    *zap.Logger
}

// NewRoom seats a and b. onOver is called once when the match ends.
func NewRoom(id string, a, b *Player, engine *battle.Engine, messenger protocol.Messenger, rules Rules, onOver func(Outcome), logger *zap.Logger) *Room {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Room{
		ID:        id,
		players:   [2]*Player{a, b},
		state:     StateAwaitingSelection,
		rules:     rules,
		engine:    engine,
		messenger: messenger,
		onOver:    onOver,
		logger:    logger.With(zap.String("room_id", id)),
	}
}

// State returns the current match state
func (r *Room) State() State { return r.state }

// Rounds returns the number of rounds started
func (r *Room) Rounds() int { return r.rounds }

// Players returns both seated players in seat order
func (r *Room) Players() [2]*Player { return r.players }

// Start seats both players and shows each the opponent's pool.
func (r *Room) Start() {
	for _, p := range r.players {
		p.RoomID = r.ID
		p.Selection = Selection{}
	}
	r.state = StateAwaitingSelection

	matched := protocol.Message{Message: "matching success! select card!"}
	for i, p := range r.players {
		r.messenger.Send(p.ID, protocol.EventMatched, matched)
		r.messenger.Send(p.ID, protocol.EventCardsInfo, protocol.CardsInfo{
			OpponentCardPool: r.players[1-i].Pool(),
		})
	}

	r.logger.Info("match started",
		zap.String("player_a", r.players[0].ID),
		zap.String("player_b", r.players[1].ID),
	)
}

// Select records a card choice. It returns false and changes nothing when the
// player is not seated here, the index is out of range or the room is not
// awaiting selection. A round starts once both players have chosen.
func (r *Room) Select(playerID string, index int) bool {
	if r.state != StateAwaitingSelection {
		return false
	}
	p := r.seat(playerID)
	if p == nil {
		return false
	}
	if index < 0 || index >= len(p.CardPool) {
		return false
	}

	p.Selection = Chosen(index)

	if _, ok := r.players[0].Selection.Index(); !ok {
		return true
	}
	if _, ok := r.players[1].Selection.Index(); !ok {
		return true
	}
	r.startRound()
	return true
}

// Forfeit ends the match because leaverID dropped. The opponent wins regardless of
// the score, and any round in progress is cancelled. It returns the remaining
// player, or false if leaverID is not seated or the match is already over.
func (r *Room) Forfeit(leaverID string) (*Player, bool) {
	if r.state == StateMatchOver {
		return nil, false
	}
	leaver := r.seat(leaverID)
	if leaver == nil {
		return nil, false
	}
	remaining := r.opponent(leaver)

	if r.battle != nil {
		r.battle.Cancel()
		r.battle = nil
	}

	r.messenger.Send(remaining.ID, protocol.EventOpponentDisconnected, protocol.Empty{})
	r.messenger.Send(remaining.ID, protocol.EventMatchResult, protocol.Message{
		Message: fmt.Sprintf("%s wins! (opponent disconnected)", remaining.DisplayName),
	})

	r.logger.Info("match forfeited",
		zap.String("leaver", leaver.ID),
		zap.String("winner", remaining.ID),
	)
	r.finish(remaining, leaver, EndReasonOpponentDisconnected)
	return remaining, true
}

func (r *Room) startRound() {
	p1, p2 := r.players[0], r.players[1]
	card1, ok1 := p1.SelectedCard()
	card2, ok2 := p2.SelectedCard()
	if !ok1 || !ok2 {
		return
	}

	r.state = StateResolvingRound
	r.rounds++
	r.logger.Info("round started",
		zap.Int("round", r.rounds),
		zap.String("card_a", card1.Name),
		zap.String("card_b", card2.Name),
	)

	r.battle = r.engine.Start(r.ID,
		battle.FromCard(p1.ID, card1),
		battle.FromCard(p2.ID, card2),
		r.roundComplete,
	)
}

func (r *Room) roundComplete(res battle.Result) {
	r.battle = nil
	if r.state != StateResolvingRound {
		return
	}
	winner := r.seat(res.Winner.Owner)
	if winner == nil {
		return
	}
	loser := r.opponent(winner)

	winner.RoundWins++

	if i, ok := loser.Selection.Index(); ok && i < len(loser.CardPool) {
		loser.removeCard(i)
	}
	loser.Selection = Selection{}

	if i, ok := winner.Selection.Index(); ok && i < len(winner.CardPool) {
		winner.CardPool[i].HP = res.Winner.HP
	}

	r.logger.Info("round complete",
		zap.Int("round", r.rounds),
		zap.String("winner", winner.ID),
		zap.Int("winner_round_wins", winner.RoundWins),
		zap.Int("loser_cards_left", len(loser.CardPool)),
	)

	if winner.RoundWins >= r.rules.WinThreshold || len(loser.CardPool) == 0 {
		result := protocol.Message{Message: fmt.Sprintf("%s wins!", winner.DisplayName)}
		for _, p := range r.players {
			r.messenger.Send(p.ID, protocol.EventMatchResult, result)
		}
		r.finish(winner, loser, EndReasonDecided)
		return
	}

	r.state = StateAwaitingSelection
	wins := map[string]int{
		r.players[0].DisplayName: r.players[0].RoundWins,
		r.players[1].DisplayName: r.players[1].RoundWins,
	}
	for i, p := range r.players {
		r.messenger.Send(p.ID, protocol.EventNextRound, protocol.NextRound{
			RoundWins:        wins,
			OpponentCardPool: r.players[1-i].Pool(),
		})
	}
}

func (r *Room) finish(winner, loser *Player, reason EndReason) {
	r.state = StateMatchOver
	for _, p := range r.players {
		p.RoomID = ""
		p.Selection = Selection{}
	}

	r.logger.Info("match over",
		zap.String("winner", winner.ID),
		zap.String("reason", string(reason)),
		zap.Int("rounds", r.rounds),
	)

	if r.onOver != nil {
		r.onOver(Outcome{
			RoomID: r.ID,
			Winner: winner,
			Loser:  loser,
			Reason: reason,
			Rounds: r.rounds,
		})
	}
}

func (r *Room) seat(playerID string) *Player {
	for _, p := range r.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (r *Room) opponent(p *Player) *Player {
	if r.players[0] == p {
		return r.players[1]
	}
	return r.players[0]
}
