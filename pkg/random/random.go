// Package random holds the seedable selection helpers used by game setup.
// Every function takes its Source explicitly so transitions can be replayed
// deterministically in tests.
package random

import (
	"math/rand"
	"sync"
	"time"
)

// Source yields uniformly distributed integers in [0, n).
type Source interface {
	Intn(n int) int
}

// LockedSource is a Source safe for concurrent use.
type LockedSource struct {
	lock sync.Mutex
	rand *rand.Rand
}

// NewSource returns a LockedSource seeded with seed, or with the current time if seed is 0.
func NewSource(seed int64) *LockedSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &LockedSource{
		rand: rand.New(rand.NewSource(seed)),
	}
}

func (s *LockedSource) Intn(n int) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.rand.Intn(n)
}

// Shuffle returns a Fisher-Yates shuffled copy of in.
func Shuffle[T any](src Source, in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	for i := len(out) - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Pick returns a uniformly chosen element of in. ok is false when in is empty.
func Pick[T any](src Source, in []T) (v T, ok bool) {
	if len(in) == 0 {
		return v, false
	}
	return in[src.Intn(len(in))], true
}

// Range returns the integers lo..hi inclusive.
func Range(lo, hi int) []int {
	if hi < lo {
		return nil
	}
	out := make([]int, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		out = append(out, n)
	}
	return out
}

// Sequence is a Source replaying fixed values, modulo n. Used to script outcomes in tests.
type Sequence struct {
	lock   sync.Mutex
	values []int
	next   int
}

func NewSequence(values ...int) *Sequence {
	return &Sequence{values: values}
}

func (s *Sequence) Intn(n int) int {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	if v < 0 {
		v = -v
	}
	return v % n
}
