package crosscheck

import "github.com/ppiankov/veritas/internal/model"

// Tally is the vote over a set of verdicts. Non-responding reviewers are
// excluded from every count.
type Tally struct {
	Responding      int
	Agreeing        int
	Dissenting      int
	WeightedDissent float64 // confidence-weighted share of dissent in [0,1]
	Agrees          bool
}

// Count tallies verdicts. The result disagrees when a strict majority of
// responding reviewers dissent, or when the confidence-weighted dissent
// reaches strongContradiction. Ties and empty votes agree.
func Count(verdicts []model.CrossValidationVerdict, strongContradiction float64) Tally {
	t := Tally{Agrees: true}

	var dissentWeight, totalWeight float64
	for _, v := range verdicts {
		if !v.Responded() {
			continue
		}
		t.Responding++
		totalWeight += v.Confidence
		if v.Agrees {
			t.Agreeing++
		} else {
			t.Dissenting++
			dissentWeight += v.Confidence
		}
	}

	if t.Responding == 0 {
		return t
	}
	if totalWeight > 0 {
		t.WeightedDissent = dissentWeight / totalWeight
	}

	majority := 2*t.Dissenting > t.Responding
	strong := t.Dissenting > 0 && strongContradiction > 0 && t.WeightedDissent >= strongContradiction
	t.Agrees = !(majority || strong)
	return t
}

// Strength is the fraction of responding reviewers that dissent
func (t Tally) Strength() float64 {
	if t.Responding == 0 {
		return 0
	}
	return float64(t.Dissenting) / float64(t.Responding)
}

// AgreementFraction is the fraction of responding reviewers that agree.
// ok is false when nobody responded.
func (t Tally) AgreementFraction() (float64, bool) {
	if t.Responding == 0 {
		return 0, false
	}
	return float64(t.Agreeing) / float64(t.Responding), true
}

// Label classifies the tally for metrics
func (t Tally) Label() string {
	switch {
	case t.Responding == 0:
		return "no_quorum"
	case t.Agrees:
		return "agree"
	default:
		return "disagree"
	}
}
