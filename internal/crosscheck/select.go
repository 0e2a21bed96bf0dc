package crosscheck

import (
	"hash/fnv"
	"math/rand"
	"sort"
)

// SelectReviewers picks up to n reviewers for the original miner's result.
// The original miner is never selected. Suspected colluding partners are used
// only when not enough other candidates exist. The choice is deterministic for
// a given round, statement and original miner.
func SelectReviewers(roundID, statementID, original string, candidates []string, suspects map[string]bool, n int) []string {
	if n <= 0 {
		return nil
	}

	var preferred, fallback []string
	seen := make(map[string]bool, len(candidates))
	for _, id := range candidates {
		if id == original || seen[id] {
			continue
		}
		seen[id] = true
		if suspects[id] {
			fallback = append(fallback, id)
		} else {
			preferred = append(preferred, id)
		}
	}

	rng := seededRand(roundID, statementID, original)
	shuffle(rng, preferred)
	shuffle(rng, fallback)

	selected := append(preferred, fallback...)
	if len(selected) > n {
		selected = selected[:n]
	}
	return selected
}

// SampleTargets picks up to n miners whose results are cross-checked for a
// statement, deterministically per round and statement
func SampleTargets(roundID, statementID string, minerIDs []string, n int) []string {
	if n <= 0 || len(minerIDs) == 0 {
		return nil
	}

	ids := make([]string, len(minerIDs))
	copy(ids, minerIDs)
	shuffle(seededRand(roundID, statementID, ""), ids)

	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

func seededRand(parts ...string) *rand.Rand {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

// shuffle sorts first so the result does not depend on input order
func shuffle(rng *rand.Rand, ids []string) {
	sort.Strings(ids)
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}
