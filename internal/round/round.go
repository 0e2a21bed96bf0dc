// Package round holds the explicit round-scoped context passed to every
// component call of a dispatch-collect-crosscheck-score-aggregate cycle.
package round

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/veritas/internal/model"
)

// State is a round lifecycle state
type State int

const (
	Dispatched State = iota
	Collected
	CrossChecked
	Scored
	Aggregated
)

func (s State) String() string {
	switch s {
	case Dispatched:
		return "dispatched"
	case Collected:
		return "collected"
	case CrossChecked:
		return "cross_checked"
	case Scored:
		return "scored"
	case Aggregated:
		return "aggregated"
	default:
		return "unknown"
	}
}

// Context identifies one round. Its state only moves forward.
type Context struct {
	ID        string
	Seq       uint64
	StartedAt time.Time

	mu      sync.RWMutex
	state   State
	history []Transition
}

// Transition records when a round entered a state
type Transition struct {
	State State
	At    time.Time
}

// New starts a round in the Dispatched state
func New(seq uint64, now time.Time) *Context {
	return &Context{
		ID:        uuid.NewString(),
		Seq:       seq,
		StartedAt: now,
		state:     Dispatched,
		history:   []Transition{{State: Dispatched, At: now}},
	}
}

// State returns the current state
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Advance moves the round to the next state. CrossChecked may be skipped;
// any other skip or a backwards move returns model.ErrInvalidTransition.
func (c *Context) Advance(to State, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !allowed(c.state, to) {
		return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, c.state, to)
	}
	c.state = to
	c.history = append(c.history, Transition{State: to, At: now})
	return nil
}

// History returns a copy of the recorded transitions
func (c *Context) History() []Transition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Transition, len(c.history))
	copy(out, c.history)
	return out
}

func allowed(from, to State) bool {
	switch from {
	case Dispatched:
		return to == Collected
	case Collected:
		return to == CrossChecked || to == Scored
	case CrossChecked:
		return to == Scored
	case Scored:
		return to == Aggregated
	default:
		return false
	}
}
