package model

import (
	"strings"
	"testing"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero weights", func(c *Config) { c.Scoring.Weights = ComponentWeights{} }, "positive sum"},
		{"penalty of one", func(c *Config) { c.Scoring.MaxPenalty = 1 }, "MaxPenalty"},
		{"no timeout", func(c *Config) { c.Collector.Timeout = 0 }, "Timeout"},
		{"badger without path", func(c *Config) { c.Store.Backend = "badger" }, "Path"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "sqlite" }, "Backend"},
		{"tie threshold", func(c *Config) { c.CrossCheck.StrongContradiction = 0.5 }, "StrongContradiction"},
		{"duplicate miner", func(c *Config) {
			c.Roster = []MinerEndpoint{
				{ID: "m1", Endpoint: "http://127.0.0.1:1"},
				{ID: "m1", Endpoint: "http://127.0.0.1:2"},
			}
		}, "duplicate miner"},
		{"bad endpoint", func(c *Config) {
			c.Roster = []MinerEndpoint{{ID: "m1", Endpoint: "not a url"}}
		}, "Endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_MinerIDs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Roster = []MinerEndpoint{
		{ID: "b", Endpoint: "http://127.0.0.1:1"},
		{ID: "a", Endpoint: "http://127.0.0.1:2"},
	}
	ids := cfg.MinerIDs()
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "a" {
		t.Errorf("expected roster order [b a], got %v", ids)
	}
}

func TestWeightVector_Sum(t *testing.T) {
	v := WeightVector{Weights: map[string]float64{"a": 0.25, "b": 0.75}}
	if v.Sum() != 1.0 {
		t.Errorf("expected sum 1.0, got %v", v.Sum())
	}
	if (WeightVector{}).Sum() != 0 {
		t.Error("expected empty vector to sum to zero")
	}
}
