package weights

import (
	"sync"
	"sync/atomic"

	"github.com/ppiankov/veritas/internal/model"
)

// Publisher holds the current weight vector. Publish builds a new vector and
// swaps it in; readers never see a partially written vector.
type Publisher struct {
	mu      sync.Mutex // serializes publishers
	version uint64
	current atomic.Pointer[model.WeightVector]
}

// NewPublisher creates a publisher with no vector
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Restore installs a previously published vector, e.g. loaded from the round
// log at startup. Later publishes continue from its version.
func (p *Publisher) Restore(v *model.WeightVector) {
	if v == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if v.Version > p.version {
		p.version = v.Version
	}
	p.current.Store(clone(v))
}

// Publish assigns the next version and makes v current. The caller's vector is
// copied, so later changes to it are not visible to readers.
func (p *Publisher) Publish(v model.WeightVector) *model.WeightVector {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.version++
	published := clone(&v)
	published.Version = p.version
	p.current.Store(published)
	return published
}

// Current returns the last published vector, or nil. Callers must not modify it.
func (p *Publisher) Current() *model.WeightVector {
	return p.current.Load()
}

func clone(v *model.WeightVector) *model.WeightVector {
	out := &model.WeightVector{
		Version:   v.Version,
		RoundSeq:  v.RoundSeq,
		Weights:   copyMap(v.Weights),
		Means:     copyMap(v.Means),
		Dampening: copyMap(v.Dampening),
	}
	if len(v.Suspects) > 0 {
		out.Suspects = append([]model.SuspectPair(nil), v.Suspects...)
	}
	return out
}

func copyMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
