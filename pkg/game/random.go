package game

import (
	"hash/fnv"
	"math/rand/v2"
	"strconv"
)

// Seed derives a stable seed from a room, round and phase label. Two calls
// with the same inputs always produce the same seed.
func Seed(room string, round int, phase string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(room))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.Itoa(round)))
	h.Write([]byte{'|'})
	h.Write([]byte(phase))
	return h.Sum64()
}

// NewRand returns a generator seeded from Seed(room, round, phase).
func NewRand(room string, round int, phase string) *rand.Rand {
	seed := Seed(room, round, phase)
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Pick returns a uniformly random element of ids, or "" when ids is empty.
func Pick(rng *rand.Rand, ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[rng.IntN(len(ids))]
}
