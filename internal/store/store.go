// Package store persists the round log: one entry per miner per statement per
// round, plus the last published weight vector.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppiankov/veritas/internal/model"
)

var (
	// ErrNotFound is returned when a round or weight vector does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an entry for the same key already exists
	ErrDuplicate = errors.New("round log entry already exists")
)

// RoundLog is the append-only audit log of rounds
type RoundLog interface {
	// Append stores entries atomically. Existing entries are never overwritten.
	Append(ctx context.Context, entries ...model.RoundLogEntry) error
	// Round returns every entry of a round
	Round(ctx context.Context, roundID string) ([]model.RoundLogEntry, error)
	// Records returns the score records of rounds with seq >= fromSeq, in round order
	Records(ctx context.Context, fromSeq uint64) ([]model.MinerScoreRecord, error)
	// MarkSeq records that a round sequence was issued, whether or not the
	// round wrote entries. The stored value never decreases.
	MarkSeq(ctx context.Context, seq uint64) error
	// LastSeq returns the highest issued or stored round sequence, or 0
	LastSeq(ctx context.Context) (uint64, error)
	// WindowStart returns the lowest sequence among the n most recent rounds
	// that have entries, or 0 when there are none
	WindowStart(ctx context.Context, n int) (uint64, error)
	// SaveWeights stores the last published weight vector
	SaveWeights(ctx context.Context, vector *model.WeightVector) error
	// LatestWeights returns the last stored weight vector
	LatestWeights(ctx context.Context) (*model.WeightVector, error)
	Close() error
}

// Open opens the configured round log backend
func Open(cfg model.StoreConfig, logger *slog.Logger) (RoundLog, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryLog(), nil
	case "badger":
		return OpenBadger(BadgerOptions{Path: cfg.Path, SyncWrites: true}, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func entryKey(e model.RoundLogEntry) string {
	return fmt.Sprintf("%s%020d/%s/%s/%s", roundPrefix, e.RoundSeq, e.RoundID, e.StatementID, e.MinerID)
}

const (
	roundPrefix = "round/"
	indexPrefix = "roundidx/"
	weightsKey  = "weights/latest"
	seqKey      = "seq/last"
)
