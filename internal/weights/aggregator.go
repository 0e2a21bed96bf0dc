// Package weights turns windowed score history into normalized reward weights.
package weights

import (
	"sort"

	"github.com/ppiankov/veritas/internal/model"
)

// Aggregator computes weight vectors. Aggregate is a pure function of its
// inputs: no clocks, sorted iteration, same window gives the same bits.
type Aggregator struct {
	cfg model.AggregatorConfig
}

// NewAggregator creates an aggregator
func NewAggregator(cfg model.AggregatorConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Aggregate computes the weight vector for the roster from a score window.
// Every roster miner is present; miners without a positive adjusted mean get
// 0. Weights sum to 1, or are all 0 when nobody earned credit. The vector's
// Version is left for the publisher to assign.
func (a *Aggregator) Aggregate(window []model.MinerScoreRecord, roster []string) model.WeightVector {
	ids := sortedDistinct(roster)
	inRoster := make(map[string]bool, len(ids))
	for _, id := range ids {
		inRoster[id] = true
	}

	records := make([]model.MinerScoreRecord, 0, len(window))
	for _, r := range window {
		if inRoster[r.MinerID] {
			records = append(records, r)
		}
	}
	sortRecords(records)

	vector := model.WeightVector{
		Weights:   make(map[string]float64, len(ids)),
		Means:     make(map[string]float64, len(ids)),
		Dampening: make(map[string]float64, len(ids)),
	}

	sums := make(map[string]float64, len(ids))
	counts := make(map[string]int, len(ids))
	malformed := make(map[string]int, len(ids))
	for _, r := range records {
		sums[r.MinerID] += r.CompositeScore
		counts[r.MinerID]++
		if r.Outcome == model.OutcomeMalformed {
			malformed[r.MinerID]++
		}
		if r.RoundSeq > vector.RoundSeq {
			vector.RoundSeq = r.RoundSeq
		}
	}

	pairs, maxSimilarity := detectCollusion(records, a.cfg)
	vector.Suspects = pairs

	adjusted := make(map[string]float64, len(ids))
	for _, id := range ids {
		mean := 0.0
		if counts[id] > 0 {
			mean = sums[id] / float64(counts[id])
		}
		vector.Means[id] = mean

		factor := 1.0
		if sim, suspect := maxSimilarity[id]; suspect {
			factor = collusionFactor(sim, a.cfg)
		}
		if counts[id] > 0 {
			rate := float64(malformed[id]) / float64(counts[id])
			if rate > a.cfg.MalformedTolerance {
				factor *= 1 - rate*a.cfg.MalformedPenalty
			}
		}
		if factor < 0 {
			factor = 0
		}
		vector.Dampening[id] = factor
		adjusted[id] = mean * factor
	}

	total := 0.0
	for _, id := range ids {
		if adjusted[id] > 0 {
			total += adjusted[id]
		}
	}

	for _, id := range ids {
		if total > 0 && adjusted[id] > 0 {
			vector.Weights[id] = adjusted[id] / total
		} else {
			vector.Weights[id] = 0
		}
	}

	return vector
}

func collusionFactor(similarity float64, cfg model.AggregatorConfig) float64 {
	factor := 1 - cfg.DampenStrength*similarity
	if factor < cfg.DampenFloor {
		factor = cfg.DampenFloor
	}
	return factor
}

func sortRecords(records []model.MinerScoreRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.RoundSeq != b.RoundSeq {
			return a.RoundSeq < b.RoundSeq
		}
		if a.RoundID != b.RoundID {
			return a.RoundID < b.RoundID
		}
		if a.StatementID != b.StatementID {
			return a.StatementID < b.StatementID
		}
		return a.MinerID < b.MinerID
	})
}

func sortedDistinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
