package simulation

import (
	"encoding/binary"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Stream yields standard-normal draws. distuv.Normal satisfies it.
type Stream interface {
	Rand() float64
}

// RandomSource hands out one independent Stream per block of scenarios.
// The same block index must always map to the same sequence.
type RandomSource interface {
	Stream(block int) Stream
}

type seededSource struct {
	seed int64
}

// NewSeededSource returns a reproducible source. Each block gets its own
// ChaCha8 generator keyed by (seed, block).
func NewSeededSource(seed int64) RandomSource {
	return seededSource{seed: seed}
}

func (s seededSource) Stream(block int) Stream {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[0:8], uint64(s.seed))
	binary.LittleEndian.PutUint64(key[8:16], uint64(block))
	return distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewChaCha8(key)}
}

// freshSeed draws a seed from the runtime-seeded global generator.
func freshSeed() int64 {
	return rand.Int64()
}
