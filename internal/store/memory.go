package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/veritas/internal/model"
)

// MemoryLog is an in-process RoundLog
type MemoryLog struct {
	mu      sync.RWMutex
	keys    map[string]bool
	entries []model.RoundLogEntry
	weights *model.WeightVector
	marked  uint64
}

// NewMemoryLog creates an empty in-memory log
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{keys: make(map[string]bool)}
}

// Append stores entries
func (m *MemoryLog) Append(ctx context.Context, entries ...model.RoundLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make(map[string]bool, len(entries))
	for _, e := range entries {
		key := entryKey(e)
		if m.keys[key] || batch[key] {
			return fmt.Errorf("%w: %s", ErrDuplicate, key)
		}
		batch[key] = true
	}

	for key := range batch {
		m.keys[key] = true
	}
	m.entries = append(m.entries, entries...)
	return nil
}

// Round returns the entries of a round
func (m *MemoryLog) Round(ctx context.Context, roundID string) ([]model.RoundLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.RoundLogEntry
	for _, e := range m.entries {
		if e.RoundID == roundID {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("round %s: %w", roundID, ErrNotFound)
	}
	sortEntries(out)
	return out, nil
}

// Records returns score records from fromSeq on
func (m *MemoryLog) Records(ctx context.Context, fromSeq uint64) ([]model.MinerScoreRecord, error) {
	m.mu.RLock()
	entries := make([]model.RoundLogEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if e.RoundSeq >= fromSeq {
			entries = append(entries, e)
		}
	}
	m.mu.RUnlock()

	sortEntries(entries)
	records := make([]model.MinerScoreRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.Score)
	}
	return records, nil
}

// MarkSeq records an issued round sequence
func (m *MemoryLog) MarkSeq(ctx context.Context, seq uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq > m.marked {
		m.marked = seq
	}
	return nil
}

// LastSeq returns the highest issued or stored round sequence
func (m *MemoryLog) LastSeq(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	last := m.marked
	for _, e := range m.entries {
		if e.RoundSeq > last {
			last = e.RoundSeq
		}
	}
	return last, nil
}

// WindowStart returns the lowest sequence of the n most recent stored rounds
func (m *MemoryLog) WindowStart(ctx context.Context, n int) (uint64, error) {
	if n <= 0 {
		return 0, nil
	}

	m.mu.RLock()
	seen := make(map[uint64]bool)
	for _, e := range m.entries {
		seen[e.RoundSeq] = true
	}
	m.mu.RUnlock()

	seqs := make([]uint64, 0, len(seen))
	for seq := range seen {
		seqs = append(seqs, seq)
	}
	if len(seqs) == 0 {
		return 0, nil
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] > seqs[j] })
	return seqs[min(n, len(seqs))-1], nil
}

// SaveWeights stores the vector
func (m *MemoryLog) SaveWeights(ctx context.Context, vector *model.WeightVector) error {
	if vector == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *vector
	m.weights = &copied
	return nil
}

// LatestWeights returns the stored vector
func (m *MemoryLog) LatestWeights(ctx context.Context) (*model.WeightVector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.weights == nil {
		return nil, fmt.Errorf("weights: %w", ErrNotFound)
	}
	copied := *m.weights
	return &copied, nil
}

// Close is a no-op
func (m *MemoryLog) Close() error {
	return nil
}

// sortEntries orders entries like the badger key space
func sortEntries(entries []model.RoundLogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entryKey(entries[i]) < entryKey(entries[j])
	})
}
