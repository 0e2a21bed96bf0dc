package miner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/veritas/internal/cache"
	"github.com/ppiankov/veritas/internal/model"
)

var errDown = errors.New("down")

func fixed(claim model.Claim) Capability {
	return CapabilityFunc(func(ctx context.Context, stmt model.Statement) (model.Claim, error) {
		return claim, nil
	})
}

func failing(err error) Capability {
	return CapabilityFunc(func(ctx context.Context, stmt model.Statement) (model.Claim, error) {
		return model.Claim{}, err
	})
}

func TestComposite_FirstSuccessDecides(t *testing.T) {
	first := model.Claim{
		IsTrue:      true,
		Confidence:  0.9,
		Explanation: "first",
		Evidence:    []model.Evidence{{Source: "https://a.example"}, {Source: "https://b.example"}},
	}
	second := model.Claim{
		IsTrue:      false,
		Confidence:  0.4,
		Explanation: "second",
		Evidence:    []model.Evidence{{Source: "https://b.example"}, {Source: "https://c.example"}},
	}

	c := NewComposite(nil, failing(errDown), nil, fixed(first), fixed(second))
	if c.Len() != 3 {
		t.Errorf("expected nil capabilities to be skipped, got %d", c.Len())
	}

	claim, err := c.Verify(context.Background(), model.Statement{Text: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !claim.IsTrue || claim.Confidence != 0.9 || claim.Explanation != "first" {
		t.Errorf("expected first successful verdict, got %+v", claim)
	}

	var sources []string
	for _, e := range claim.Evidence {
		sources = append(sources, e.Source)
	}
	if len(sources) != 3 || sources[0] != "https://a.example" || sources[2] != "https://c.example" {
		t.Errorf("expected merged distinct evidence, got %v", sources)
	}
}

func TestComposite_AllFail(t *testing.T) {
	c := NewComposite(nil, failing(errDown), failing(errors.New("empty")))
	_, err := c.Verify(context.Background(), model.Statement{Text: "x"})
	if !errors.Is(err, ErrNoCapability) || !errors.Is(err, errDown) {
		t.Errorf("expected joined capability errors, got %v", err)
	}

	if _, err := NewComposite(nil).Verify(context.Background(), model.Statement{}); !errors.Is(err, ErrNoCapability) {
		t.Errorf("expected ErrNoCapability for empty composite, got %v", err)
	}
}

func TestComposite_EvidenceLimit(t *testing.T) {
	var evidence []model.Evidence
	for i := 0; i < maxEvidence+10; i++ {
		evidence = append(evidence, model.Evidence{Source: fmt.Sprintf("https://example.org/%d", i)})
	}

	claim, err := NewComposite(nil, fixed(model.Claim{Evidence: evidence})).Verify(context.Background(), model.Statement{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(claim.Evidence) != maxEvidence {
		t.Errorf("expected %d evidence items, got %d", maxEvidence, len(claim.Evidence))
	}
}

func TestCached(t *testing.T) {
	var calls atomic.Int32
	next := CapabilityFunc(func(ctx context.Context, stmt model.Statement) (model.Claim, error) {
		if calls.Add(1) == 1 {
			return model.Claim{}, errDown
		}
		return model.Claim{IsTrue: true, Confidence: 0.7, Evidence: []model.Evidence{{Source: "sec.gov"}}}, nil
	})

	c := NewCached(next, cache.NewMemoryCache(time.Minute, time.Minute), "claim", time.Minute)
	stmt := model.Statement{Text: "The SEC approved the ETF"}

	if _, err := c.Verify(context.Background(), stmt); !errors.Is(err, errDown) {
		t.Fatalf("expected first call to fail, got %v", err)
	}
	for i := 0; i < 3; i++ {
		claim, err := c.Verify(context.Background(), model.Statement{Text: "the SEC approved  the ETF"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !claim.IsTrue || claim.Evidence[0].Source != "sec.gov" {
			t.Errorf("unexpected claim %+v", claim)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("expected failure to be retried once then cached, got %d calls", calls.Load())
	}
}

func TestComposite_SingleCapabilityKeepsEvidence(t *testing.T) {
	only := model.Claim{
		IsTrue:     true,
		Confidence: 0.8,
		Evidence: []model.Evidence{
			{Source: "https://www.sec.gov/news", Snippet: "approved"},
			{Source: "https://www.reuters.com/markets", Snippet: "approval reported"},
		},
	}

	claim, err := NewComposite(nil, fixed(only)).Verify(context.Background(), model.Statement{Text: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(claim.Evidence) != 2 || claim.Evidence[0].Snippet != "approved" {
		t.Errorf("expected the only capability's evidence to be returned, got %+v", claim.Evidence)
	}
	if len(only.Evidence) != 2 {
		t.Errorf("caller's claim must not be modified, got %+v", only.Evidence)
	}
}
