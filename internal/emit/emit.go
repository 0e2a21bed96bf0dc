// Package emit hands published weight vectors to the reward ledger.
package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
)

// Emitter consumes each published weight vector once. Emission is one-way:
// nothing flows back into scoring.
type Emitter interface {
	Emit(ctx context.Context, vector *model.WeightVector) error
}

// QuantizedWeight is a miner weight in ledger units
type QuantizedWeight struct {
	MinerID string `json:"miner_id"`
	Weight  uint16 `json:"weight"`
}

// Quantize converts weights to uint16 ledger units (w * 65535, rounded).
// The result is sorted by miner id.
func Quantize(vector *model.WeightVector) []QuantizedWeight {
	if vector == nil {
		return nil
	}

	ids := make([]string, 0, len(vector.Weights))
	for id := range vector.Weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]QuantizedWeight, 0, len(ids))
	for _, id := range ids {
		w := vector.Weights[id]
		if math.IsNaN(w) || w < 0 {
			w = 0
		}
		if w > 1 {
			w = 1
		}
		out = append(out, QuantizedWeight{MinerID: id, Weight: uint16(math.Round(w * math.MaxUint16))})
	}
	return out
}

// LogEmitter writes emissions to the logger
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a log emitter
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logging.Subsystem(logger, logging.SubsystemEmit)}
}

// Emit logs the quantized vector
func (e *LogEmitter) Emit(ctx context.Context, vector *model.WeightVector) error {
	if vector == nil {
		return nil
	}
	quantized := Quantize(vector)
	attrs := make([]any, 0, 2*len(quantized)+4)
	attrs = append(attrs, "version", vector.Version, "round_seq", vector.RoundSeq)
	for _, q := range quantized {
		attrs = append(attrs, q.MinerID, q.Weight)
	}
	e.logger.Info("weights emitted", attrs...)
	return nil
}

// Emission is one JSON line written by FileEmitter
type Emission struct {
	Version   uint64             `json:"version"`
	RoundSeq  uint64             `json:"round_seq"`
	EmittedAt time.Time          `json:"emitted_at"`
	Weights   map[string]float64 `json:"weights"`
	Quantized []QuantizedWeight  `json:"quantized"`
}

// FileEmitter appends one JSON line per vector to a file
type FileEmitter struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileEmitter creates a file emitter. The directory is created on first emit.
func NewFileEmitter(path string) *FileEmitter {
	return &FileEmitter{path: path, now: time.Now}
}

// Emit appends the vector
func (e *FileEmitter) Emit(ctx context.Context, vector *model.WeightVector) error {
	if vector == nil {
		return nil
	}

	line, err := json.Marshal(Emission{
		Version:   vector.Version,
		RoundSeq:  vector.RoundSeq,
		EmittedAt: e.now().UTC(),
		Weights:   vector.Weights,
		Quantized: Quantize(vector),
	})
	if err != nil {
		return fmt.Errorf("encode emission: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(e.path), 0750); err != nil {
		return fmt.Errorf("create emission directory: %w", err)
	}
	f, err := os.OpenFile(e.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open emission file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write emission: %w", err)
	}
	return nil
}

// Multi fans a vector out to several emitters and reports the first error
// after trying all of them
type Multi []Emitter

// Emit calls every emitter
func (m Multi) Emit(ctx context.Context, vector *model.WeightVector) error {
	var first error
	for _, e := range m {
		if err := e.Emit(ctx, vector); err != nil && first == nil {
			first = err
		}
	}
	return first
}
