package random

import (
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"
)

// pcgIncrement is the fixed second PCG seed word; streams differ by seed.
const pcgIncrement = 0xda3e39cb94b95bdb

// Source is a seeded uniform [0, 1) stream, safe for concurrent use.
type Source struct {
	mu   sync.Mutex
	dist distuv.Uniform
}

// New returns a deterministic source for seed.
func New(seed uint64) *Source {
	return &Source{
		dist: distuv.Uniform{Min: 0, Max: 1, Src: rand.NewPCG(seed, pcgIncrement)},
	}
}

// Uniform returns the next variate.
func (s *Source) Uniform() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dist.Rand()
}
