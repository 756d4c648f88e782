package dialogue

import (
	"math/rand/v2"
	"sync"
)

// Greeter picks one of the canned greetings.
type Greeter interface {
	Pick(options []string) string
}

// RotatingGreeter cycles through the options in order.
type RotatingGreeter struct {
	mu   sync.Mutex
	next int
}

func (g *RotatingGreeter) Pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := options[g.next%len(options)]
	g.next++
	return out
}

type RandomGreeter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomGreeter(seed uint64) *RandomGreeter {
	return &RandomGreeter{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *RandomGreeter) Pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return options[g.rng.IntN(len(options))]
}
