package score

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/veritas/internal/model"
)

// TextQuality rates a free-text field in [0,1]. Data carries the formula
// inputs for the score record's signals.
type TextQuality interface {
	Score(text string, stmt model.Statement) (float64, map[string]interface{})
}

// Heuristic is the default TextQuality: a length band, domain markers and a
// boilerplate penalty
type Heuristic struct {
	Policy  model.TextPolicy
	Markers []string
}

var explanationMarkers = []string{
	"because", "therefore", "according to", "since", "due to", "as a result",
	"which means", "reported", "announced", "data shows", "however", "consistent with",
}

var methodologyMarkers = []string{
	"searched", "compared", "checked", "cross-referenced", "verified", "queried",
	"analyzed", "reviewed", "consulted", "retrieved", "matched", "source",
}

var boilerplatePhrases = []string{
	"as an ai", "language model", "i cannot", "i can't", "lorem ipsum",
	"i'm not sure", "no information", "n/a",
}

// NewExplanationQuality returns the heuristic used for explanations
func NewExplanationQuality(policy model.TextPolicy) *Heuristic {
	return &Heuristic{Policy: policy, Markers: explanationMarkers}
}

// NewMethodologyQuality returns the heuristic used for methodology text
func NewMethodologyQuality(policy model.TextPolicy) *Heuristic {
	return &Heuristic{Policy: policy, Markers: methodologyMarkers}
}

// Score rates text as 0.6 * length band + 0.4 * marker coverage minus the
// boilerplate penalty, clamped to [0,1]. Empty text scores 0.
func (h *Heuristic) Score(text string, stmt model.Statement) (float64, map[string]interface{}) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, map[string]interface{}{"length": 0}
	}

	lower := strings.ToLower(text)
	length := utf8.RuneCountInString(text)

	band := h.lengthBand(length)
	markers := countMarkers(lower, h.Markers)
	markerScore := math.Min(float64(markers)/3, 1)
	penalty := boilerplatePenalty(lower, stmt.Text)

	score := clamp01(0.6*band + 0.4*markerScore - penalty)

	return score, map[string]interface{}{
		"length":      length,
		"length_band": band,
		"markers":     markers,
		"penalty":     penalty,
		"formula":     "clamp(0.6 * length_band + 0.4 * min(markers / 3, 1) - penalty)",
	}
}

// lengthBand scores length: ramps to 0.5 at MinLength, to 1 at IdealLength,
// stays 1 until MaxLength and drops to 0.5 beyond it
func (h *Heuristic) lengthBand(n int) float64 {
	p := h.Policy
	switch {
	case p.MinLength > 0 && n < p.MinLength:
		return 0.5 * float64(n) / float64(p.MinLength)
	case n < p.IdealLength:
		span := p.IdealLength - p.MinLength
		if span <= 0 {
			return 1
		}
		return 0.5 + 0.5*float64(n-p.MinLength)/float64(span)
	case p.MaxLength > 0 && n > p.MaxLength:
		return 0.5
	default:
		return 1
	}
}

func countMarkers(lower string, markers []string) int {
	found := 0
	for _, m := range markers {
		if strings.Contains(lower, m) {
			found++
		}
	}
	return found
}

// boilerplatePenalty penalizes refusal phrases, heavy repetition and text that
// merely restates the statement
func boilerplatePenalty(lower string, statement string) float64 {
	penalty := 0.0
	for _, phrase := range boilerplatePhrases {
		if strings.Contains(lower, phrase) {
			penalty += 0.3
			break
		}
	}

	words := strings.Fields(lower)
	if len(words) >= 10 {
		unique := make(map[string]bool, len(words))
		for _, w := range words {
			unique[w] = true
		}
		if ratio := float64(len(unique)) / float64(len(words)); ratio < 0.3 {
			penalty += 0.4
		}
	}

	restated := strings.ToLower(strings.TrimSpace(statement))
	if restated != "" && strings.TrimRight(lower, ". ") == strings.TrimRight(restated, ". ") {
		penalty += 0.5
	}

	return penalty
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
