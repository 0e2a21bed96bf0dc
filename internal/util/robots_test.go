package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsPolicy_Check(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			atomic.AddInt32(&hits, 1)
			_, _ = w.Write([]byte("User-agent: Veritas-Miner\nDisallow: /private\nCrawl-delay: 2\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	policy := NewRobotsPolicy("Veritas-Miner/0.1", 5*time.Second, time.Minute)
	ctx := context.Background()

	decision, err := policy.Check(ctx, server.URL+"/public/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed {
		t.Error("expected /public/page to be allowed")
	}
	if decision.CrawlDelay != 2*time.Second {
		t.Errorf("expected crawl delay 2s, got %v", decision.CrawlDelay)
	}
	if !strings.HasPrefix(server.URL, "http://"+decision.Host) {
		t.Errorf("unexpected host %q for %s", decision.Host, server.URL)
	}

	decision, _ = policy.Check(ctx, server.URL+"/private/data")
	if decision.Allowed {
		t.Error("expected /private/data to be disallowed")
	}

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("expected robots.txt fetched once, got %d", got)
	}
}

func TestRobotsPolicy_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	policy := NewRobotsPolicy("Veritas-Miner/0.1", 5*time.Second, time.Minute)
	decision, err := policy.Check(context.Background(), server.URL+"/anything")
	if err != nil || !decision.Allowed {
		t.Errorf("expected fetch allowed when robots.txt is missing, got %+v (%v)", decision, err)
	}
}

func TestRobotsPolicy_InvalidURL(t *testing.T) {
	policy := NewRobotsPolicy("Veritas-Miner/0.1", time.Second, time.Minute)
	if _, err := policy.Check(context.Background(), "not a url"); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestRobotsPolicy_Pace(t *testing.T) {
	policy := NewRobotsPolicy("Veritas-Miner/0.1", time.Second, time.Minute)
	ctx := context.Background()

	start := time.Now()
	if err := policy.Pace(ctx, "example.org", 40*time.Millisecond); err != nil {
		t.Fatalf("first pace: %v", err)
	}
	if err := policy.Pace(ctx, "example.org", 40*time.Millisecond); err != nil {
		t.Fatalf("second pace: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Errorf("expected second fetch to wait for the crawl delay, waited %v", elapsed)
	}

	// Other hosts are not affected
	start = time.Now()
	_ = policy.Pace(ctx, "example.com", 40*time.Millisecond)
	if elapsed := time.Since(start); elapsed > 30*time.Millisecond {
		t.Errorf("expected no wait for a fresh host, waited %v", elapsed)
	}
}

func TestRobotsPolicy_PaceCancelled(t *testing.T) {
	policy := NewRobotsPolicy("Veritas-Miner/0.1", time.Second, time.Minute)
	_ = policy.Pace(context.Background(), "example.org", 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := policy.Pace(ctx, "example.org", 5*time.Second); err == nil {
		t.Error("expected pace to stop when the context expires")
	}
}

func TestProductToken(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Veritas-Miner/0.1", "Veritas-Miner"},
		{"Veritas-Miner/0.1 (+https://example.com)", "Veritas-Miner"},
		{"Veritas", "Veritas"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ProductToken(tt.input); got != tt.expected {
			t.Errorf("ProductToken(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
