package match

import (
	"testing"
	"time"

	"github.com/insect-cbnu/cardbattle-server/internal/battle"
	"github.com/insect-cbnu/cardbattle-server/internal/protocol"
	"github.com/insect-cbnu/cardbattle-server/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roomHarness struct {
	room      *Room
	a, b      *Player
	messenger *testkit.Messenger
	scheduler *testkit.Scheduler
	outcomes  []Outcome
}

func newRoomHarness(t *testing.T, winThreshold int, poolA, poolB []protocol.CardStats) *roomHarness {
	t.Helper()
	h := &roomHarness{
		messenger: testkit.NewMessenger(),
		scheduler: testkit.NewScheduler(),
		a:         NewPlayer("conn-a", "Alice", poolA),
		b:         NewPlayer("conn-b", "Bob", poolB),
	}
	engine := battle.NewEngine(h.messenger, h.scheduler, testkit.NewRoller(), battle.DefaultRules(), time.Second, nil)
	h.room = NewRoom("room-1", h.a, h.b, engine, h.messenger, Rules{WinThreshold: winThreshold}, func(o Outcome) {
		h.outcomes = append(h.outcomes, o)
	}, nil)
	h.room.Start()
	return h
}

// selectAndFight has both players choose and runs the round to completion.
func (h *roomHarness) selectAndFight(t *testing.T, indexA, indexB int) {
	t.Helper()
	require.True(t, h.room.Select(h.a.ID, indexA))
	require.True(t, h.room.Select(h.b.ID, indexB))
	h.scheduler.Drain(1000)
}

func strongPool() []protocol.CardStats {
	return []protocol.CardStats{
		{Name: "Stag", HP: 100, Attack: 50, Defend: 0, Speed: 10},
		{Name: "Rhino", HP: 100, Attack: 50, Defend: 0, Speed: 10},
		{Name: "Tiger", HP: 100, Attack: 50, Defend: 0, Speed: 10},
	}
}

func weakPool() []protocol.CardStats {
	return []protocol.CardStats{
		{Name: "Aphid", HP: 30, Attack: 5, Defend: 0, Speed: 1},
		{Name: "Gnat", HP: 30, Attack: 5, Defend: 0, Speed: 1},
		{Name: "Mite", HP: 30, Attack: 5, Defend: 0, Speed: 1},
	}
}

func TestStartShowsOpponentPool(t *testing.T) {
	h := newRoomHarness(t, 3, strongPool(), weakPool())

	assert.Equal(t, StateAwaitingSelection, h.room.State())
	seats := h.room.Players()
	assert.Same(t, h.a, seats[0])
	assert.Same(t, h.b, seats[1])
	assert.Equal(t, "room-1", h.a.RoomID)
	assert.Equal(t, "room-1", h.b.RoomID)

	for _, id := range []string{h.a.ID, h.b.ID} {
		assert.Equal(t, []string{protocol.EventMatched, protocol.EventCardsInfo}, h.messenger.Events(id))
	}

	info, _ := h.messenger.Last(h.a.ID, protocol.EventCardsInfo)
	assert.Equal(t, weakPool(), info.(protocol.CardsInfo).OpponentCardPool)
	info, _ = h.messenger.Last(h.b.ID, protocol.EventCardsInfo)
	assert.Equal(t, strongPool(), info.(protocol.CardsInfo).OpponentCardPool)
}

func TestSelectRejectsProtocolViolations(t *testing.T) {
	h := newRoomHarness(t, 3, strongPool(), weakPool())

	assert.False(t, h.room.Select("stranger", 0))
	assert.False(t, h.room.Select(h.a.ID, -1))
	assert.False(t, h.room.Select(h.a.ID, 3))
	_, chosen := h.a.Selection.Index()
	assert.False(t, chosen)

	require.True(t, h.room.Select(h.a.ID, 0))
	require.True(t, h.room.Select(h.b.ID, 0))
	assert.Equal(t, StateResolvingRound, h.room.State())

	// no changes while the round resolves
	assert.False(t, h.room.Select(h.a.ID, 1))
	i, _ := h.a.Selection.Index()
	assert.Equal(t, 0, i)
}

func TestSelectionCanChangeBeforeOpponentChooses(t *testing.T) {
	h := newRoomHarness(t, 3, strongPool(), weakPool())

	require.True(t, h.room.Select(h.a.ID, 0))
	require.True(t, h.room.Select(h.a.ID, 2))
	assert.Equal(t, StateAwaitingSelection, h.room.State())

	require.True(t, h.room.Select(h.b.ID, 1))
	start, ok := h.messenger.Last(h.b.ID, protocol.EventStartBattle)
	require.True(t, ok)
	assert.Equal(t, "Tiger", start.(protocol.StartBattle).OpponentSelectedCard.Name)
}

func TestRoundAttritionAndNextRound(t *testing.T) {
	h := newRoomHarness(t, 3, strongPool(), weakPool())
	h.selectAndFight(t, 0, 0)

	assert.Equal(t, StateAwaitingSelection, h.room.State())
	assert.Equal(t, 1, h.a.RoundWins)
	assert.Equal(t, 0, h.b.RoundWins)
	assert.Len(t, h.a.CardPool, 3)
	require.Len(t, h.b.CardPool, 2)
	assert.Equal(t, "Gnat", h.b.CardPool[0].Name)

	// winner stays on its card, loser must choose again
	i, ok := h.a.Selection.Index()
	assert.True(t, ok)
	assert.Equal(t, 0, i)
	_, ok = h.b.Selection.Index()
	assert.False(t, ok)

	next, ok := h.messenger.Last(h.a.ID, protocol.EventNextRound)
	require.True(t, ok)
	assert.Equal(t, map[string]int{"Alice": 1, "Bob": 0}, next.(protocol.NextRound).RoundWins)
	assert.Len(t, next.(protocol.NextRound).OpponentCardPool, 2)

	next, ok = h.messenger.Last(h.b.ID, protocol.EventNextRound)
	require.True(t, ok)
	assert.Len(t, next.(protocol.NextRound).OpponentCardPool, 3)

	// only the loser has to pick for the next round to start
	require.True(t, h.room.Select(h.b.ID, 1))
	assert.Equal(t, StateResolvingRound, h.room.State())
	assert.Equal(t, 2, h.room.Rounds())
}

func TestWinnerCardCarriesDamage(t *testing.T) {
	poolA := []protocol.CardStats{
		{Name: "Beetle", HP: 100, Attack: 40, Defend: 0, Speed: 10},
		{Name: "Ant", HP: 10, Attack: 1, Defend: 0, Speed: 1},
		{Name: "Fly", HP: 10, Attack: 1, Defend: 0, Speed: 1},
	}
	poolB := []protocol.CardStats{
		{Name: "Spider", HP: 50, Attack: 20, Defend: 0, Speed: 1},
		{Name: "Gnat", HP: 10, Attack: 1, Defend: 0, Speed: 1},
		{Name: "Mite", HP: 10, Attack: 1, Defend: 0, Speed: 1},
	}
	h := newRoomHarness(t, 3, poolA, poolB)
	h.selectAndFight(t, 0, 0)

	// Beetle hits 40, Spider hits 20, Beetle finishes
	assert.Equal(t, 80, h.a.CardPool[0].HP)
	assert.Equal(t, 1, h.a.RoundWins)

	next, _ := h.messenger.Last(h.b.ID, protocol.EventNextRound)
	assert.Equal(t, 80, next.(protocol.NextRound).OpponentCardPool[0].HP)
}

func TestMatchEndsAtWinThreshold(t *testing.T) {
	h := newRoomHarness(t, 2, strongPool(), weakPool())

	h.selectAndFight(t, 0, 0)
	require.Equal(t, StateAwaitingSelection, h.room.State())
	require.True(t, h.room.Select(h.b.ID, 0))
	h.scheduler.Drain(1000)

	assert.Equal(t, StateMatchOver, h.room.State())
	assert.Equal(t, 2, h.a.RoundWins)
	assert.Len(t, h.b.CardPool, 1)

	for _, id := range []string{h.a.ID, h.b.ID} {
		result, ok := h.messenger.Last(id, protocol.EventMatchResult)
		require.True(t, ok)
		assert.Equal(t, protocol.Message{Message: "Alice wins!"}, result)
	}
	assert.Equal(t, 1, h.messenger.Count(h.a.ID, protocol.EventNextRound))

	require.Len(t, h.outcomes, 1)
	assert.Equal(t, h.a, h.outcomes[0].Winner)
	assert.Equal(t, h.b, h.outcomes[0].Loser)
	assert.Equal(t, EndReasonDecided, h.outcomes[0].Reason)
	assert.Equal(t, 2, h.outcomes[0].Rounds)

	assert.Empty(t, h.a.RoomID)
	assert.Empty(t, h.b.RoomID)
	assert.False(t, h.room.Select(h.a.ID, 0))
	assert.False(t, h.room.Select(h.b.ID, 0))
}

func TestMatchEndsWhenLoserRunsOutOfCards(t *testing.T) {
	h := newRoomHarness(t, 5, strongPool(), weakPool())

	h.selectAndFight(t, 0, 0)
	for round := 2; round <= 3; round++ {
		require.Equal(t, StateAwaitingSelection, h.room.State(), "round %d", round)
		require.True(t, h.room.Select(h.b.ID, 0))
		h.scheduler.Drain(1000)
	}

	assert.Equal(t, StateMatchOver, h.room.State())
	assert.Equal(t, 3, h.a.RoundWins)
	assert.Empty(t, h.b.CardPool)
	require.Len(t, h.outcomes, 1)
	assert.Equal(t, 3, h.outcomes[0].Rounds)
}

func TestMatchNotOverBeforeThreshold(t *testing.T) {
	h := newRoomHarness(t, 3, strongPool(), weakPool())

	h.selectAndFight(t, 0, 0)
	require.True(t, h.room.Select(h.b.ID, 0))
	h.scheduler.Drain(1000)

	assert.Equal(t, StateAwaitingSelection, h.room.State())
	assert.Equal(t, 2, h.a.RoundWins)
	assert.Empty(t, h.outcomes)
	assert.Equal(t, 0, h.messenger.Count(h.a.ID, protocol.EventMatchResult))
}

func TestForfeitMidRound(t *testing.T) {
	long := []protocol.CardStats{
		{Name: "Tank", HP: 1000, Attack: 10, Defend: 0, Speed: 5},
		{Name: "Tank", HP: 1000, Attack: 10, Defend: 0, Speed: 5},
		{Name: "Tank", HP: 1000, Attack: 10, Defend: 0, Speed: 5},
	}
	h := newRoomHarness(t, 3, long, long)
	require.True(t, h.room.Select(h.a.ID, 0))
	require.True(t, h.room.Select(h.b.ID, 0))
	require.True(t, h.scheduler.Step())
	require.True(t, h.scheduler.Step())

	h.messenger.Disconnect(h.b.ID)
	remaining, ok := h.room.Forfeit(h.b.ID)
	require.True(t, ok)
	assert.Equal(t, h.a, remaining)
	assert.Equal(t, StateMatchOver, h.room.State())
	assert.Equal(t, 0, h.scheduler.Pending())

	assert.Equal(t, 1, h.messenger.Count(h.a.ID, protocol.EventOpponentDisconnected))
	result, ok := h.messenger.Last(h.a.ID, protocol.EventMatchResult)
	require.True(t, ok)
	assert.Equal(t, protocol.Message{Message: "Alice wins! (opponent disconnected)"}, result)
	assert.Equal(t, 0, h.messenger.Count(h.a.ID, protocol.EventUpdateResult))

	require.Len(t, h.outcomes, 1)
	assert.Equal(t, EndReasonOpponentDisconnected, h.outcomes[0].Reason)
	assert.Equal(t, 0, h.a.RoundWins)

	_, ok = h.room.Forfeit(h.a.ID)
	assert.False(t, ok)
}

func TestForfeitUnknownPlayer(t *testing.T) {
	h := newRoomHarness(t, 3, strongPool(), weakPool())
	_, ok := h.room.Forfeit("stranger")
	assert.False(t, ok)
	assert.Equal(t, StateAwaitingSelection, h.room.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AWAITING_SELECTION", StateAwaitingSelection.String())
	assert.Equal(t, "RESOLVING_ROUND", StateResolvingRound.String())
	assert.Equal(t, "MATCH_OVER", StateMatchOver.String())
	assert.Equal(t, "UNKNOWN", State(9).String())
}

func TestSelectionZeroValue(t *testing.T) {
	var s Selection
	_, ok := s.Index()
	assert.False(t, ok)

	i, ok := Chosen(0).Index()
	assert.True(t, ok)
	assert.Equal(t, 0, i)
}
