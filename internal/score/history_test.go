package score

import (
	"testing"

	"github.com/ppiankov/veritas/internal/model"
)

func TestHistory_Window(t *testing.T) {
	h := NewHistory(0)
	for seq := uint64(1); seq <= 5; seq++ {
		h.Append(
			model.MinerScoreRecord{MinerID: "a", RoundSeq: seq},
			model.MinerScoreRecord{MinerID: "b", RoundSeq: seq},
		)
	}

	window := h.Window(2)
	if len(window) != 4 {
		t.Fatalf("expected 4 records in a 2-round window, got %d", len(window))
	}
	for _, r := range window {
		if r.RoundSeq < 4 {
			t.Errorf("record from round %d outside window", r.RoundSeq)
		}
	}

	if got := len(h.Window(10)); got != 10 {
		t.Errorf("expected all 10 records, got %d", got)
	}
	if h.Window(0) != nil {
		t.Error("expected nil for empty window")
	}
	if h.LastSeq() != 5 || h.Len() != 10 {
		t.Errorf("unexpected LastSeq=%d Len=%d", h.LastSeq(), h.Len())
	}
}

func TestHistory_OutOfOrderReload(t *testing.T) {
	h := NewHistory(0)
	h.Append(model.MinerScoreRecord{MinerID: "a", RoundSeq: 7})
	h.Append(model.MinerScoreRecord{MinerID: "a", RoundSeq: 3})
	h.Append(model.MinerScoreRecord{MinerID: "a", RoundSeq: 5})

	window := h.Window(2)
	if len(window) != 2 {
		t.Fatalf("expected rounds 5 and 7, got %+v", window)
	}
	for _, r := range window {
		if r.RoundSeq == 3 {
			t.Error("round 3 should be outside the window")
		}
	}
}

func TestHistory_WindowIsCopy(t *testing.T) {
	h := NewHistory(0)
	h.Append(model.MinerScoreRecord{MinerID: "a", RoundSeq: 1, CompositeScore: 0.5})

	window := h.Window(1)
	window[0].CompositeScore = 1

	if h.Window(1)[0].CompositeScore != 0.5 {
		t.Error("mutating a window must not change history")
	}
}

func TestHistory_Retention(t *testing.T) {
	h := NewHistory(10)
	for seq := uint64(1); seq <= 1000; seq++ {
		h.Append(
			model.MinerScoreRecord{MinerID: "a", RoundSeq: seq},
			model.MinerScoreRecord{MinerID: "b", RoundSeq: seq},
		)
	}

	if h.Len() != 20 {
		t.Fatalf("expected 10 rounds of 2 records retained, got %d", h.Len())
	}
	if got := len(h.Window(10)); got != 20 {
		t.Errorf("expected the full retained window, got %d records", got)
	}
	for _, r := range h.Window(100) {
		if r.RoundSeq <= 990 {
			t.Errorf("record from dropped round %d still present", r.RoundSeq)
		}
	}
	if h.LastSeq() != 1000 {
		t.Errorf("expected last seq 1000, got %d", h.LastSeq())
	}

	// A reloaded round older than the retained ones is dropped again
	h.Append(model.MinerScoreRecord{MinerID: "a", RoundSeq: 5})
	if h.Len() != 20 {
		t.Errorf("expected stale reload to be dropped, got %d records", h.Len())
	}
}

func TestHistory_RetentionKeepsEarlierWindows(t *testing.T) {
	h := NewHistory(3)
	h.Append(model.MinerScoreRecord{MinerID: "a", RoundSeq: 1, CompositeScore: 0.1})
	first := h.Window(3)

	for seq := uint64(2); seq <= 6; seq++ {
		h.Append(model.MinerScoreRecord{MinerID: "a", RoundSeq: seq})
	}

	if len(first) != 1 || first[0].CompositeScore != 0.1 {
		t.Errorf("a window read before pruning must not change, got %+v", first)
	}
}
