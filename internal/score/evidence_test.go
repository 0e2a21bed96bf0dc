package score

import (
	"math"
	"testing"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/validate"
)

func TestEvidenceComponent(t *testing.T) {
	policy := model.EvidencePolicy{Cap: 5, DuplicateCredit: 0.25}
	authority := validate.NewAuthorityClassifier(&model.AuthorityConfig{
		PrimaryDomains:   []string{"sec.gov"},
		SecondaryDomains: []string{"reuters.com"},
	})

	tests := []struct {
		name     string
		evidence []model.Evidence
		expected float64
	}{
		{"empty", nil, 0},
		{"one primary", []model.Evidence{{Source: "https://www.sec.gov/a"}}, 1.0 / 5},
		{"one secondary", []model.Evidence{{Source: "reuters.com"}}, 0.8 / 5},
		{"one tertiary", []model.Evidence{{Source: "https://blog.example.com"}}, 0.6 / 5},
		{"repeat host", []model.Evidence{{Source: "https://www.sec.gov/a"}, {Source: "https://sec.gov/b"}}, 1.25 / 5},
		{"database name", []model.Evidence{{Source: "Bloomberg Terminal"}, {Source: "bloomberg  terminal"}}, 0.85 / 5},
		{"capped", []model.Evidence{
			{Source: "https://sec.gov"}, {Source: "https://a.gov"}, {Source: "https://b.gov"},
			{Source: "https://c.gov"}, {Source: "https://d.gov"}, {Source: "https://e.gov"},
		}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, signal := evidenceComponent(tt.evidence, policy, authority)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
			if signal.Type != model.SignalEvidence {
				t.Errorf("expected evidence signal, got %s", signal.Type)
			}
		})
	}
}

func TestEvidenceComponent_Monotonic(t *testing.T) {
	policy := model.EvidencePolicy{Cap: 5, DuplicateCredit: 0.25}
	authority := validate.NewAuthorityClassifier(nil)

	sources := []string{
		"https://www.sec.gov/x", "https://www.reuters.com/y", "https://apnews.com/z",
		"https://blog.example.com", "https://www.sec.gov/other",
	}

	prev := -1.0
	var evidence []model.Evidence
	for _, s := range sources {
		evidence = append(evidence, model.Evidence{Source: s})
		got, _ := evidenceComponent(evidence, policy, authority)
		if got <= prev {
			t.Errorf("evidence score not increasing after adding %s: %v <= %v", s, got, prev)
		}
		prev = got
	}
}
