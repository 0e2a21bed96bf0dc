package score

import (
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/validate"
)

// tierWeight is the credit of a distinct source per authority tier
var tierWeight = map[model.AuthorityTier]float64{
	model.TierPrimary:   1.0,
	model.TierSecondary: 0.8,
	model.TierTertiary:  0.6,
}

// evidenceComponent scores cited sources. Each distinct source (by host, or
// by normalized name for non-URL sources) earns its tier weight; repeats earn
// DuplicateCredit. The sum is capped at Cap and scaled to [0,1].
func evidenceComponent(evidence []model.Evidence, policy model.EvidencePolicy, authority *validate.AuthorityClassifier) (float64, model.Signal) {
	if len(evidence) == 0 {
		return 0, model.Signal{
			Type:        model.SignalEvidence,
			Severity:    model.SeverityWarning,
			Description: "No evidence cited",
			Data:        map[string]interface{}{"count": 0},
		}
	}

	seen := make(map[string]bool, len(evidence))
	tiers := map[string]int{}
	credit := 0.0
	duplicates := 0

	for _, e := range evidence {
		key := sourceKey(e.Source)
		if key == "" {
			continue
		}
		if seen[key] {
			duplicates++
			credit += policy.DuplicateCredit
			continue
		}
		seen[key] = true

		tier := authority.Classify(e.Source)
		tiers[tier.String()]++
		credit += tierWeight[tier]
	}

	capValue := policy.Cap
	if capValue <= 0 {
		capValue = 1
	}
	score := math.Min(credit, capValue) / capValue

	severity := model.SeverityInfo
	if tiers[model.TierPrimary.String()] == 0 {
		severity = model.SeverityWarning
	}

	return score, model.Signal{
		Type:        model.SignalEvidence,
		Severity:    severity,
		Description: fmt.Sprintf("%d distinct sources, %d repeats", len(seen), duplicates),
		Data: map[string]interface{}{
			"count":      len(evidence),
			"distinct":   len(seen),
			"duplicates": duplicates,
			"tiers":      tiers,
			"credit":     credit,
			"cap":        capValue,
			"formula":    "min(sum(tier_weight(distinct)) + duplicate_credit * repeats, cap) / cap",
		},
	}
}

// sourceKey identifies a source for distinctness
func sourceKey(source string) string {
	if host := validate.Host(source); host != "" {
		return host
	}
	return strings.Join(strings.Fields(strings.ToLower(source)), " ")
}
