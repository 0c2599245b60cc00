package battle

import "math"

// Outcome classifies a single attack
type Outcome int

const (
	OutcomeNormal Outcome = iota
	OutcomeCritical
	OutcomeMiss
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNormal:
		return "NORMAL"
	case OutcomeCritical:
		return "CRITICAL"
	case OutcomeMiss:
		return "MISS"
	default:
		return "UNKNOWN"
	}
}

// Rules are the tunable numbers of the damage roll
type Rules struct {
	CritThreshold  float64
	MissThreshold  float64
	CritMultiplier float64
}

// DefaultRules: a roll in the top 10% crits for x1.3, otherwise a roll in the
// top 10% misses.
func DefaultRules() Rules {
	return Rules{
		CritThreshold:  0.9,
		MissThreshold:  0.9,
		CritMultiplier: 1.3,
	}
}

// BaseDamage is attack minus defend, floored at zero.
func BaseDamage(attack, defend int) int {
	return max(0, attack-defend)
}

// Resolve applies the crit and miss rolls to base. Crit is checked first, so a
// turn is never both.
func (r Rules) Resolve(base int, critRoll, missRoll float64) (int, Outcome) {
	switch {
	case critRoll >= r.CritThreshold:
		return int(math.Round(float64(base) * r.CritMultiplier)), OutcomeCritical
	case missRoll >= r.MissThreshold:
		return 0, OutcomeMiss
	default:
		return base, OutcomeNormal
	}
}
