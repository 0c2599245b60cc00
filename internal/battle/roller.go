package battle

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewSeed reads a seed for the battle PRNG from crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// NewRoller returns a PRNG seeded with seed. It is not safe for concurrent use;
// the engine only touches it from the game loop.
func NewRoller(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
