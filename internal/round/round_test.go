package round

import (
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/veritas/internal/model"
)

func TestNew(t *testing.T) {
	now := time.Now()
	a := New(1, now)
	b := New(2, now)

	if a.State() != Dispatched {
		t.Errorf("expected new round in %s, got %s", Dispatched, a.State())
	}
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected unique round ids, got %q and %q", a.ID, b.ID)
	}
	if a.Seq != 1 {
		t.Errorf("expected seq 1, got %d", a.Seq)
	}
}

func TestAdvance_FullPath(t *testing.T) {
	rc := New(1, time.Now())
	for _, s := range []State{Collected, CrossChecked, Scored, Aggregated} {
		if err := rc.Advance(s, time.Now()); err != nil {
			t.Fatalf("advance to %s: %v", s, err)
		}
	}
	if got := len(rc.History()); got != 5 {
		t.Errorf("expected 5 transitions, got %d", got)
	}
}

func TestAdvance_SkipCrossCheck(t *testing.T) {
	rc := New(1, time.Now())
	if err := rc.Advance(Collected, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := rc.Advance(Scored, time.Now()); err != nil {
		t.Fatalf("cross-check should be optional: %v", err)
	}
}

func TestAdvance_Invalid(t *testing.T) {
	tests := []struct {
		name string
		path []State
		bad  State
	}{
		{"skip collection", nil, Scored},
		{"backwards", []State{Collected, Scored}, Collected},
		{"repeat", []State{Collected}, Collected},
		{"after terminal", []State{Collected, Scored, Aggregated}, Dispatched},
		{"aggregate before scoring", []State{Collected, CrossChecked}, Aggregated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := New(1, time.Now())
			for _, s := range tt.path {
				if err := rc.Advance(s, time.Now()); err != nil {
					t.Fatalf("setup advance to %s: %v", s, err)
				}
			}
			before := rc.State()
			err := rc.Advance(tt.bad, time.Now())
			if !errors.Is(err, model.ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
			if rc.State() != before {
				t.Errorf("state changed on invalid transition: %s -> %s", before, rc.State())
			}
		})
	}
}
