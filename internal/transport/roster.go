package transport

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ppiankov/veritas/internal/model"
)

// Roster resolves miner ids to endpoints. Peer discovery happens elsewhere;
// the roster is replaced wholesale when membership changes.
type Roster struct {
	mu        sync.RWMutex
	endpoints map[string]string
	order     []string
	rates     []model.MinerEndpoint
}

// NewRoster builds a roster from configured endpoints
func NewRoster(miners []model.MinerEndpoint) (*Roster, error) {
	r := &Roster{}
	if err := r.Replace(miners); err != nil {
		return nil, err
	}
	return r, nil
}

// Replace swaps the roster contents
func (r *Roster) Replace(miners []model.MinerEndpoint) error {
	endpoints := make(map[string]string, len(miners))
	order := make([]string, 0, len(miners))
	var rates []model.MinerEndpoint
	for _, m := range miners {
		if m.ID == "" {
			return fmt.Errorf("roster: miner with empty id")
		}
		if _, dup := endpoints[m.ID]; dup {
			return fmt.Errorf("roster: duplicate miner id %q", m.ID)
		}
		endpoints[m.ID] = strings.TrimRight(m.Endpoint, "/")
		order = append(order, m.ID)
		if m.RequestsPerSecond > 0 {
			rates = append(rates, m)
		}
	}

	r.mu.Lock()
	r.endpoints = endpoints
	r.order = order
	r.rates = rates
	r.mu.Unlock()
	return nil
}

// Endpoint returns the base URL for a miner
func (r *Roster) Endpoint(minerID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	endpoint, ok := r.endpoints[minerID]
	if !ok {
		return "", fmt.Errorf("%w: %s", model.ErrUnknownMiner, minerID)
	}
	return endpoint, nil
}

// IDs returns miner ids in configuration order
func (r *Roster) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// SortedIDs returns miner ids in lexical order
func (r *Roster) SortedIDs() []string {
	ids := r.IDs()
	sort.Strings(ids)
	return ids
}

// Len returns the number of miners
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Rates returns the miners that carry their own call rate
func (r *Roster) Rates() []model.MinerEndpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.MinerEndpoint, len(r.rates))
	copy(out, r.rates)
	return out
}
