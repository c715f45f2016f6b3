package service

import (
	"math/rand/v2"
	"time"

	"github.com/hugo-lorenzo-mato/mendbot/internal/core"
)

// Chooser returns an index in [0, n). n is always positive.
type Chooser func(n int) int

// NewRandomChooser returns a uniform chooser. A zero seed seeds from the clock.
func NewRandomChooser(seed int64) Chooser {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	return func(n int) int {
		return rng.IntN(n)
	}
}

// Selector picks the next failing test to attempt.
type Selector struct {
	choose Chooser
}

// NewSelector creates a selector. A nil chooser picks uniformly at random.
func NewSelector(choose Chooser) *Selector {
	if choose == nil {
		choose = NewRandomChooser(0)
	}
	return &Selector{choose: choose}
}

// Select picks uniformly among the failing tests, skipping the test of the
// immediately preceding attempt unless it is the only candidate. It reports
// false when nothing is failing.
func (s *Selector) Select(failing core.NameSet, attempts []core.AttemptRecord) (core.TestName, bool) {
	if len(failing) == 0 {
		return "", false
	}

	candidates := failing.Sorted()
	if last := core.LastAttempted(attempts); last != "" && len(candidates) > 1 {
		filtered := candidates[:0:0]
		for _, name := range candidates {
			if name != last {
				filtered = append(filtered, name)
			}
		}
		candidates = filtered
	}

	idx := s.choose(len(candidates))
	if idx < 0 || idx >= len(candidates) {
		idx = 0
	}
	return candidates[idx], true
}
