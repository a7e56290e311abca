package opt

import (
	"math/rand"
	"time"
)

// NewRand returns a seeded source. seed==0 picks a time-based seed.
// A *rand.Rand is not goroutine-safe: derive one per worker or cluster.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// DeriveRand creates an independent stream from base and a stream id.
// base.Int63 is consumed once, so deriving the same stream twice yields
// different children.
func DeriveRand(base *rand.Rand, stream uint64) *rand.Rand {
	var parent int64 = 1
	if base != nil {
		parent = base.Int63()
	}
	return rand.New(rand.NewSource(mixSeed(parent, stream)))
}

// mixSeed is a SplitMix64 finalizer over parent and stream.
func mixSeed(parent int64, stream uint64) int64 {
	x := uint64(parent) ^ (stream + 0x9e3779b97f4a7c15)
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31
	return int64(x)
}

// twoPositions returns two distinct indices in [0,n). n must be >= 2.
func twoPositions(n int, rng *rand.Rand) (int, int) {
	i := rng.Intn(n)
	j := rng.Intn(n)
	for i == j {
		j = rng.Intn(n)
	}
	return i, j
}
