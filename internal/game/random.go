package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// NewRand returns the single random stream a session draws from. It is seeded
// once and only ever advanced afterwards.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
}

// Decide draws the outcome of a round: true with probability winChance.
// A winChance of 1 always wins, 0 never does.
func Decide(rng *rand.Rand, winChance float64) bool {
	return rng.Float64() < winChance
}
