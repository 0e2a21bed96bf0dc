package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

// maxCrawlDelay bounds the pause taken for one host
const maxCrawlDelay = 10 * time.Second

// RobotsDecision is the robots.txt answer for one URL
type RobotsDecision struct {
	Host       string
	Allowed    bool
	CrawlDelay time.Duration
}

// RobotsPolicy answers robots.txt questions for reference fetches and paces
// requests to each host by its advertised crawl delay. Parsed robots files
// are kept per host for the configured TTL.
type RobotsPolicy struct {
	rules      *gocache.Cache
	httpClient *http.Client
	userAgent  string
	token      string

	mu   sync.Mutex
	next map[string]time.Time
}

// NewRobotsPolicy creates a policy for the given User-Agent
func NewRobotsPolicy(userAgent string, timeout, ttl time.Duration) *RobotsPolicy {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RobotsPolicy{
		rules:      gocache.New(ttl, 2*ttl),
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		token:      ProductToken(userAgent),
		next:       make(map[string]time.Time),
	}
}

// Check reports whether rawURL may be fetched. A robots.txt that cannot be
// fetched or parsed allows everything.
func (p *RobotsPolicy) Check(ctx context.Context, rawURL string) (RobotsDecision, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return RobotsDecision{}, fmt.Errorf("parse URL: %w", err)
	}
	if u.Host == "" {
		return RobotsDecision{}, fmt.Errorf("parse URL: missing host in %q", rawURL)
	}

	decision := RobotsDecision{Host: u.Host, Allowed: true}
	rules, err := p.rulesFor(ctx, u)
	if err != nil {
		return decision, nil
	}

	decision.Allowed = rules.TestAgent(u.Path, p.token)
	if group := rules.FindGroup(p.token); group != nil {
		decision.CrawlDelay = group.CrawlDelay
	}
	return decision, nil
}

// Pace blocks until host may be fetched again. Each call reserves the next
// slot, so concurrent fetches to one host are spaced by delay.
func (p *RobotsPolicy) Pace(ctx context.Context, host string, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if delay > maxCrawlDelay {
		delay = maxCrawlDelay
	}

	p.mu.Lock()
	now := time.Now()
	slot := p.next[host]
	if slot.Before(now) {
		slot = now
	}
	p.next[host] = slot.Add(delay)
	p.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *RobotsPolicy) rulesFor(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	if cached, ok := p.rules.Get(u.Host); ok {
		return cached.(*robotstxt.RobotsData), nil
	}

	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rules, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	p.rules.SetDefault(u.Host, rules)
	return rules, nil
}

// ProductToken returns the product name of a User-Agent header, the part
// robots.txt groups match against: "Veritas-Miner/0.1 (+url)" is "Veritas-Miner".
func ProductToken(ua string) string {
	fields := strings.Fields(ua)
	if len(fields) == 0 {
		return ua
	}
	name, _, _ := strings.Cut(fields[0], "/")
	return name
}
