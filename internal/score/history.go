package score

import (
	"sort"
	"sync"

	"github.com/ppiankov/veritas/internal/model"
)

// History is the append-only score record history. Records are never
// modified; windowed reads return copies. Rounds beyond the retention are
// dropped as a whole.
type History struct {
	mu      sync.RWMutex
	retain  int // rounds kept, 0 keeps everything
	records []model.MinerScoreRecord
	seqs    []uint64 // distinct round sequences, ascending
}

// NewHistory creates an empty history keeping the retain most recent rounds
func NewHistory(retain int) *History {
	if retain < 0 {
		retain = 0
	}
	return &History{retain: retain}
}

// Append adds records. Records of rounds older than the latest one are
// accepted, which lets a restart reload history from the round log.
func (h *History) Append(records ...model.MinerScoreRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, r := range records {
		h.records = append(h.records, r)
		h.addSeq(r.RoundSeq)
	}
	h.prune()
}

// prune drops the rounds older than the retained ones into a fresh slice
func (h *History) prune() {
	if h.retain == 0 || len(h.seqs) <= h.retain {
		return
	}

	cutoff := h.seqs[len(h.seqs)-h.retain]
	kept := make([]model.MinerScoreRecord, 0, len(h.records))
	for _, r := range h.records {
		if r.RoundSeq >= cutoff {
			kept = append(kept, r)
		}
	}
	h.records = kept
	h.seqs = append([]uint64(nil), h.seqs[len(h.seqs)-h.retain:]...)
}

func (h *History) addSeq(seq uint64) {
	i := sort.Search(len(h.seqs), func(i int) bool { return h.seqs[i] >= seq })
	if i < len(h.seqs) && h.seqs[i] == seq {
		return
	}
	h.seqs = append(h.seqs, 0)
	copy(h.seqs[i+1:], h.seqs[i:])
	h.seqs[i] = seq
}

// Window returns the records of the n most recent rounds
func (h *History) Window(n int) []model.MinerScoreRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || len(h.seqs) == 0 {
		return nil
	}

	from := h.seqs[0]
	if len(h.seqs) > n {
		from = h.seqs[len(h.seqs)-n]
	}

	out := make([]model.MinerScoreRecord, 0)
	for _, r := range h.records {
		if r.RoundSeq >= from {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of records
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// LastSeq returns the latest round sequence, or 0 when empty
func (h *History) LastSeq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.seqs) == 0 {
		return 0
	}
	return h.seqs[len(h.seqs)-1]
}
