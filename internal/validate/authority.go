package validate

import (
	"net/url"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// AuthorityClassifier classifies evidence sources into authority tiers.
// Sources may be full URLs, bare hosts, or free-form database names.
type AuthorityClassifier struct {
	domainMap    map[string]model.AuthorityTier
	primaryMap   map[string]bool
	secondaryMap map[string]bool
}

// NewAuthorityClassifier creates a new authority classifier
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	classifier := &AuthorityClassifier{
		domainMap:    make(map[string]model.AuthorityTier),
		primaryMap:   make(map[string]bool),
		secondaryMap: make(map[string]bool),
	}

	for _, domain := range config.PrimaryDomains {
		classifier.primaryMap[strings.ToLower(domain)] = true
	}
	for _, domain := range config.SecondaryDomains {
		classifier.secondaryMap[strings.ToLower(domain)] = true
	}
	for domain, tier := range config.DomainMap {
		classifier.domainMap[strings.ToLower(domain)] = parseTierString(tier)
	}

	return classifier
}

// Classify classifies a source into an authority tier. Anything that does not
// resolve to a host is tertiary.
func (a *AuthorityClassifier) Classify(source string) model.AuthorityTier {
	host := Host(source)
	if host == "" {
		return model.TierTertiary
	}

	if tier, ok := a.domainMap[host]; ok {
		return tier
	}

	if matchDomain(host, a.primaryMap) {
		return model.TierPrimary
	}
	if matchDomain(host, a.secondaryMap) {
		return model.TierSecondary
	}

	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return model.TierPrimary
	}

	return model.TierTertiary
}

// Host extracts a normalized host from a URL or bare host. It returns "" when
// the source has no recognizable host.
func Host(source string) string {
	source = strings.TrimSpace(strings.ToLower(source))
	if source == "" {
		return ""
	}

	if !strings.Contains(source, "://") {
		source = "http://" + source
	}
	parsed, err := url.Parse(source)
	if err != nil {
		return ""
	}

	host := parsed.Hostname()
	host = strings.TrimPrefix(host, "www.")
	if !strings.Contains(host, ".") || strings.ContainsAny(host, " _") {
		return ""
	}
	return host
}

// matchDomain reports whether host equals or is a subdomain of any listed domain
func matchDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for domain := range domains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// parseTierString converts a tier string to AuthorityTier
func parseTierString(tier string) model.AuthorityTier {
	switch strings.ToLower(tier) {
	case "primary", "1":
		return model.TierPrimary
	case "secondary", "2":
		return model.TierSecondary
	default:
		return model.TierTertiary
	}
}
