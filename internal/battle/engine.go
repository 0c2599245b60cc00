package battle

import (
	"fmt"
	"time"

	"github.com/insect-cbnu/cardbattle-server/internal/protocol"
	"go.uber.org/zap"
)

// Roller yields uniform numbers in [0,1). *rand.Rand satisfies it.
type Roller interface {
	Float64() float64
}

// Scheduler runs fn after d on the same goroutine that owns game state.
// The returned func cancels fn if it has not run yet.
type Scheduler interface {
	After(d time.Duration, fn func()) (cancel func())
}

// Result is reported once per round that ends with a knockout
type Result struct {
	// Winner and Loser hold HP as it stood when the round ended.
	Winner Combatant
	Loser  Combatant
	Turns  int
}

// Engine resolves rounds between two combatants, pacing turns through a Scheduler.
// It keeps no state between rounds.
type Engine struct {
	messenger protocol.Messenger
	scheduler Scheduler
	roller    Roller
	rules     Rules
	delay     time.Duration
	logger    *zap.Logger
}

// NewEngine creates a battle engine. delay is the pause between turns.
func NewEngine(messenger protocol.Messenger, scheduler Scheduler, roller Roller, rules Rules, delay time.Duration, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		messenger: messenger,
		scheduler: scheduler,
		roller:    roller,
		rules:     rules,
		delay:     delay,
		logger:    logger,
	}
}

// Battle is a single round in progress
type Battle struct {
	engine   *Engine
	label    string
	attacker Combatant
	defender Combatant
	onDone   func(Result)
	cancel   func()
	turns    int
	finished bool
	aborted  bool
}

// Start begins a round between p1 and p2. The faster combatant attacks first and a
// speed tie goes to p1. Both sides get the opponent's card and stat block, then the
// first turn is scheduled immediately. onDone runs only if the round ends with a
// knockout; an aborted or cancelled round reports nothing.
func (e *Engine) Start(label string, p1, p2 Combatant, onDone func(Result)) *Battle {
	attacker, defender := p1, p2
	if p2.Speed > p1.Speed {
		attacker, defender = p2, p1
	}

	b := &Battle{
		engine:   e,
		label:    label,
		attacker: attacker,
		defender: defender,
		onDone:   onDone,
	}

	e.messenger.Send(p1.Owner, protocol.EventStartBattle, protocol.StartBattle{OpponentSelectedCard: p2.Card()})
	e.messenger.Send(p2.Owner, protocol.EventStartBattle, protocol.StartBattle{OpponentSelectedCard: p1.Card()})
	e.messenger.Send(attacker.Owner, protocol.EventInitialStatus, initialStatus(defender))
	e.messenger.Send(defender.Owner, protocol.EventInitialStatus, initialStatus(attacker))

	e.logger.Info("battle started",
		zap.String("room_id", label),
		zap.String("first_attacker", attacker.Name),
		zap.String("defender", defender.Name),
	)

	b.cancel = e.scheduler.After(0, b.step)
	return b
}

// Cancel stops the round without a winner. It is a no-op once the round finished.
func (b *Battle) Cancel() {
	if b.finished {
		return
	}
	b.finished = true
	b.aborted = true
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

// Finished reports whether the round is over, by knockout or abort
func (b *Battle) Finished() bool { return b.finished }

// Aborted reports whether the round ended without a winner
func (b *Battle) Aborted() bool { return b.aborted }

// Turns returns the number of attacks resolved so far
func (b *Battle) Turns() int { return b.turns }

func (b *Battle) step() {
	b.cancel = nil
	if b.finished {
		return
	}
	e := b.engine

	if !e.messenger.Connected(b.attacker.Owner) || !e.messenger.Connected(b.defender.Owner) {
		b.finished = true
		b.aborted = true
		e.logger.Info("battle aborted: player disconnected",
			zap.String("room_id", b.label),
			zap.Int("turns", b.turns),
		)
		return
	}

	critRoll := e.roller.Float64()
	missRoll := e.roller.Float64()
	base := BaseDamage(b.attacker.Attack, b.defender.Defend)
	damage, outcome := e.rules.Resolve(base, critRoll, missRoll)
	b.turns++

	e.logger.Debug("turn resolved",
		zap.String("room_id", b.label),
		zap.Int("turn", b.turns),
		zap.String("attacker", b.attacker.Name),
		zap.String("defender", b.defender.Name),
		zap.Float64("crit_roll", critRoll),
		zap.Float64("miss_roll", missRoll),
		zap.Stringer("outcome", outcome),
		zap.Int("damage", damage),
	)

	switch outcome {
	case OutcomeCritical:
		b.broadcast(protocol.EventCritical, protocol.CriticalText)
	case OutcomeMiss:
		b.broadcast(protocol.EventMiss, protocol.MissText)
	default:
		b.broadcast(protocol.EventNormalAttack, protocol.NormalAttack{
			AttackerName: b.attacker.Name,
			DefenderName: b.defender.Name,
			Damage:       damage,
		})
	}

	b.defender.HP -= damage

	e.messenger.Send(b.attacker.Owner, protocol.EventUpdateStatus, statusFor(b.attacker, b.defender))
	e.messenger.Send(b.defender.Owner, protocol.EventUpdateStatus, statusFor(b.defender, b.attacker))

	if !b.defender.Alive() {
		b.finished = true
		b.broadcast(protocol.EventUpdateResult, protocol.Message{Message: fmt.Sprintf("%s round win!", b.attacker.Name)})
		e.logger.Info("battle ended",
			zap.String("room_id", b.label),
			zap.String("winner", b.attacker.Name),
			zap.Int("winner_hp", b.attacker.HP),
			zap.Int("turns", b.turns),
		)
		if b.onDone != nil {
			b.onDone(Result{Winner: b.attacker, Loser: b.defender, Turns: b.turns})
		}
		return
	}

	b.attacker, b.defender = b.defender, b.attacker
	b.cancel = e.scheduler.After(e.delay, b.step)
}

func (b *Battle) broadcast(event string, payload any) {
	b.engine.messenger.Send(b.attacker.Owner, event, payload)
	b.engine.messenger.Send(b.defender.Owner, event, payload)
}

func initialStatus(enemy Combatant) protocol.InitialStatus {
	return protocol.InitialStatus{
		EnemyName:   enemy.Name,
		EnemyAttack: enemy.Attack,
		EnemyHP:     enemy.HP,
		EnemyDefend: enemy.Defend,
		EnemySpeed:  enemy.Speed,
	}
}

func statusFor(self, enemy Combatant) protocol.UpdateStatus {
	return protocol.UpdateStatus{
		SelfName:  self.Name,
		EnemyName: enemy.Name,
		SelfHP:    self.HP,
		EnemyHP:   enemy.HP,
	}
}
