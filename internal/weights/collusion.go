package weights

import (
	"sort"

	"github.com/ppiankov/veritas/internal/model"
)

type pairKey struct{ a, b string }

type pairStats struct {
	shared    int
	identical int
}

// detectCollusion compares fingerprints of miners that answered the same
// statements. A pair is suspect when it shared at least MinShared statements
// and the share of identical answers reaches SimilarityThreshold. It returns
// the suspect pairs and, per suspect miner, its highest pair similarity.
// records must be sorted.
func detectCollusion(records []model.MinerScoreRecord, cfg model.AggregatorConfig) ([]model.SuspectPair, map[string]float64) {
	type statementKey struct {
		round     string
		statement string
	}

	byStatement := make(map[statementKey][]model.MinerScoreRecord)
	var keys []statementKey
	for _, r := range records {
		if r.Outcome != model.OutcomeOK {
			continue
		}
		k := statementKey{round: r.RoundID, statement: r.StatementID}
		if _, ok := byStatement[k]; !ok {
			keys = append(keys, k)
		}
		byStatement[k] = append(byStatement[k], r)
	}

	stats := make(map[pairKey]*pairStats)
	for _, k := range keys {
		group := byStatement[k]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if a.MinerID == b.MinerID {
					continue
				}
				key := pairKey{a: a.MinerID, b: b.MinerID}
				if key.a > key.b {
					key.a, key.b = key.b, key.a
				}
				s, ok := stats[key]
				if !ok {
					s = &pairStats{}
					stats[key] = s
				}
				s.shared++
				if identical(a.Fingerprint, b.Fingerprint) {
					s.identical++
				}
			}
		}
	}

	pairKeys := make([]pairKey, 0, len(stats))
	for k := range stats {
		pairKeys = append(pairKeys, k)
	}
	sort.Slice(pairKeys, func(i, j int) bool {
		if pairKeys[i].a != pairKeys[j].a {
			return pairKeys[i].a < pairKeys[j].a
		}
		return pairKeys[i].b < pairKeys[j].b
	})

	var pairs []model.SuspectPair
	maxSimilarity := make(map[string]float64)
	for _, k := range pairKeys {
		s := stats[k]
		if s.shared < cfg.MinShared {
			continue
		}
		similarity := float64(s.identical) / float64(s.shared)
		if similarity < cfg.SimilarityThreshold {
			continue
		}

		pairs = append(pairs, model.SuspectPair{A: k.a, B: k.b, Shared: s.shared, Similarity: similarity})
		if similarity > maxSimilarity[k.a] {
			maxSimilarity[k.a] = similarity
		}
		if similarity > maxSimilarity[k.b] {
			maxSimilarity[k.b] = similarity
		}
	}

	return pairs, maxSimilarity
}

// identical reports whether two fingerprints match on a non-empty hash
func identical(a, b model.Fingerprint) bool {
	if a.Explanation != "" && a.Explanation == b.Explanation {
		return true
	}
	return a.Evidence != "" && a.Evidence == b.Evidence
}

// Partners returns the suspected colluding partners of a miner
func Partners(vector *model.WeightVector, minerID string) map[string]bool {
	partners := make(map[string]bool)
	if vector == nil {
		return partners
	}
	for _, p := range vector.Suspects {
		switch minerID {
		case p.A:
			partners[p.B] = true
		case p.B:
			partners[p.A] = true
		}
	}
	return partners
}
