// Package source supplies statements to verify
package source

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/veritas/internal/model"
)

// Source produces batches of statements, optionally tagged with ground truth
type Source interface {
	NextBatch(ctx context.Context, n int) ([]model.Statement, error)
}

// MemorySource draws random batches from a fixed statement set
type MemorySource struct {
	statements []model.Statement
	rng        *rand.Rand
	mu         sync.Mutex
}

// NewMemorySource creates a source over the given statements
func NewMemorySource(statements []model.Statement, seed int64) *MemorySource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	copied := make([]model.Statement, len(statements))
	copy(copied, statements)
	return &MemorySource{
		statements: copied,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// NextBatch returns up to n distinct statements in random order
func (s *MemorySource) NextBatch(ctx context.Context, n int) ([]model.Statement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.statements) == 0 || n <= 0 {
		return nil, model.ErrNoStatements
	}
	if n > len(s.statements) {
		n = len(s.statements)
	}

	s.mu.Lock()
	perm := s.rng.Perm(len(s.statements))
	s.mu.Unlock()

	batch := make([]model.Statement, 0, n)
	for _, idx := range perm[:n] {
		batch = append(batch, s.statements[idx])
	}
	return batch, nil
}

// Len returns the number of statements available
func (s *MemorySource) Len() int {
	return len(s.statements)
}

// LoadFile reads a YAML (or JSON) list of statements
func LoadFile(path string) ([]model.Statement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read statements: %w", err)
	}

	var doc struct {
		Statements []model.Statement `yaml:"statements"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse statements: %w", err)
	}

	seen := make(map[string]bool, len(doc.Statements))
	for i, st := range doc.Statements {
		if strings.TrimSpace(st.ID) == "" || strings.TrimSpace(st.Text) == "" {
			return nil, fmt.Errorf("statement %d: id and text are required", i)
		}
		if seen[st.ID] {
			return nil, fmt.Errorf("statement %d: duplicate id %q", i, st.ID)
		}
		seen[st.ID] = true
		if gt := st.GroundTruth; gt != nil && (gt.Confidence < 0 || gt.Confidence > 1) {
			return nil, fmt.Errorf("statement %q: ground truth confidence %v outside [0,1]", st.ID, gt.Confidence)
		}
	}

	return doc.Statements, nil
}

// NewFileSource loads statements from a file into a MemorySource
func NewFileSource(path string, seed int64) (*MemorySource, error) {
	statements, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewMemorySource(statements, seed), nil
}
