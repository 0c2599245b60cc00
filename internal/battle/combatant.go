package battle

import "github.com/insect-cbnu/cardbattle-server/internal/protocol"

// Combatant is one card entering a round, tagged with the connection that owns it.
// HP is the only field that changes during a round.
type Combatant struct {
	Owner  string
	Name   string
	HP     int
	Attack int
	Defend int
	Speed  int
	Type   string
	Image  string
}

// FromCard builds a combatant snapshot of card for owner.
func FromCard(owner string, card protocol.CardStats) Combatant {
	return Combatant{
		Owner:  owner,
		Name:   card.Name,
		HP:     card.HP,
		Attack: card.Attack,
		Defend: card.Defend,
		Speed:  card.Speed,
		Type:   card.Type,
		Image:  card.Image,
	}
}

// Card converts the combatant back to its wire form, carrying the current HP.
func (c Combatant) Card() protocol.CardStats {
	return protocol.CardStats{
		Name:   c.Name,
		HP:     c.HP,
		Attack: c.Attack,
		Defend: c.Defend,
		Speed:  c.Speed,
		Type:   c.Type,
		Image:  c.Image,
	}
}

// Alive reports whether the combatant can keep fighting
func (c Combatant) Alive() bool {
	return c.HP > 0
}
