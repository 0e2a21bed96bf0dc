package score

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// fingerprint hashes normalized result content. The evidence hash is only set
// for two or more items so that a single shared citation never matches.
func fingerprint(result *model.VerificationResult) model.Fingerprint {
	var fp model.Fingerprint

	if text := normalize(result.Explanation); text != "" {
		fp.Explanation = digest(text)
	}

	if len(result.Evidence) >= 2 {
		items := make([]string, 0, len(result.Evidence))
		for _, e := range result.Evidence {
			items = append(items, normalize(e.Source)+"\x1f"+normalize(e.Snippet))
		}
		sort.Strings(items)
		fp.Evidence = digest(strings.Join(items, "\x1e"))
	}

	return fp
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}
