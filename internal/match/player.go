package match

import "github.com/insect-cbnu/cardbattle-server/internal/protocol"

// Selection is a player's chosen card for the coming round. The zero value means
// nothing is chosen, which is distinct from choosing index 0.
type Selection struct {
	index int
	set   bool
}

// Chosen returns a selection of index
func Chosen(index int) Selection {
	return Selection{index: index, set: true}
}

// Index returns the chosen index and whether a choice was made
func (s Selection) Index() (int, bool) {
	return s.index, s.set
}

// Player is a registered client and its card pool
type Player struct {
	ID          string
	DisplayName string
	CardPool    []protocol.CardStats
	Selection   Selection
	RoomID      string
	RoundWins   int
}

// NewPlayer registers a fresh player with a copy of pool.
func NewPlayer(id, displayName string, pool []protocol.CardStats) *Player {
	return &Player{
		ID:          id,
		DisplayName: displayName,
		CardPool:    append([]protocol.CardStats(nil), pool...),
	}
}

// InMatch reports whether the player is seated in a room
func (p *Player) InMatch() bool {
	return p.RoomID != ""
}

// SelectedCard returns the card at the player's selection.
func (p *Player) SelectedCard() (protocol.CardStats, bool) {
	i, ok := p.Selection.Index()
	if !ok || i < 0 || i >= len(p.CardPool) {
		return protocol.CardStats{}, false
	}
	return p.CardPool[i], true
}

// Pool returns a copy of the player's remaining cards. It is never nil.
func (p *Player) Pool() []protocol.CardStats {
	out := make([]protocol.CardStats, len(p.CardPool))
	copy(out, p.CardPool)
	return out
}

func (p *Player) removeCard(i int) {
	p.CardPool = append(p.CardPool[:i], p.CardPool[i+1:]...)
}
