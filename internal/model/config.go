package model

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete veritas configuration
type Config struct {
	ValidatorID string `yaml:"validator_id" mapstructure:"validator_id" validate:"required"`

	Round      RoundConfig      `yaml:"round" mapstructure:"round"`
	Collector  CollectorConfig  `yaml:"collector" mapstructure:"collector"`
	CrossCheck CrossCheckConfig `yaml:"cross_check" mapstructure:"cross_check"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Aggregator AggregatorConfig `yaml:"aggregator" mapstructure:"aggregator"`
	Transport  TransportConfig  `yaml:"transport" mapstructure:"transport"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Source     SourceConfig     `yaml:"source" mapstructure:"source"`
	Emit       EmitConfig       `yaml:"emit" mapstructure:"emit"`
	Miner      MinerConfig      `yaml:"miner" mapstructure:"miner"`
	Authority  AuthorityConfig  `yaml:"authority" mapstructure:"authority"`

	// Roster is the static miner set; peer discovery is external
	Roster []MinerEndpoint `yaml:"roster" mapstructure:"roster" validate:"dive"`
}

// MinerEndpoint locates a miner
type MinerEndpoint struct {
	ID       string `yaml:"id" mapstructure:"id" validate:"required"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"required,url"`

	// Optional per-miner call rate; zero uses transport defaults
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst,omitempty" mapstructure:"burst" validate:"gte=0"`
}

// RoundConfig controls the round loop
type RoundConfig struct {
	Interval             time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
	BatchSize            int           `yaml:"batch_size" mapstructure:"batch_size" validate:"gte=1"`
	StatementConcurrency int           `yaml:"statement_concurrency" mapstructure:"statement_concurrency" validate:"gte=1"`
}

// CollectorConfig controls statement dispatch
type CollectorConfig struct {
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	Grace       time.Duration `yaml:"grace" mapstructure:"grace" validate:"gte=0"`
	MaxRetries  int           `yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0,lte=5"`
	BaseBackoff time.Duration `yaml:"base_backoff" mapstructure:"base_backoff" validate:"gte=0"`
	MaxInFlight int           `yaml:"max_in_flight" mapstructure:"max_in_flight" validate:"gte=0"` // 0 means one slot per miner; queued miners share the dispatch deadline
}

// CrossCheckConfig controls the cross-validation sub-protocol
type CrossCheckConfig struct {
	Enabled             bool          `yaml:"enabled" mapstructure:"enabled"`
	PerStatement        int           `yaml:"per_statement" mapstructure:"per_statement" validate:"gte=0"`
	Reviewers           int           `yaml:"reviewers" mapstructure:"reviewers" validate:"gte=1"`
	Timeout             time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	MinQuorum           int           `yaml:"min_quorum" mapstructure:"min_quorum" validate:"gte=1"`
	StrongContradiction float64       `yaml:"strong_contradiction" mapstructure:"strong_contradiction" validate:"gt=0.5,lte=1"`
}

// ComponentWeights are the policy weights of the composite score
type ComponentWeights struct {
	Accuracy    float64 `yaml:"accuracy" mapstructure:"accuracy" validate:"gte=0"`
	Evidence    float64 `yaml:"evidence" mapstructure:"evidence" validate:"gte=0"`
	Explanation float64 `yaml:"explanation" mapstructure:"explanation" validate:"gte=0"`
	Methodology float64 `yaml:"methodology" mapstructure:"methodology" validate:"gte=0"`
}

// Total returns the sum of all weights
func (w ComponentWeights) Total() float64 {
	return w.Accuracy + w.Evidence + w.Explanation + w.Methodology
}

// EvidencePolicy controls the evidence component
type EvidencePolicy struct {
	Cap             float64 `yaml:"cap" mapstructure:"cap" validate:"gt=0"`
	DuplicateCredit float64 `yaml:"duplicate_credit" mapstructure:"duplicate_credit" validate:"gte=0,lte=1"`
}

// TextPolicy controls a text-quality heuristic
type TextPolicy struct {
	MinLength   int `yaml:"min_length" mapstructure:"min_length" validate:"gte=0"`
	IdealLength int `yaml:"ideal_length" mapstructure:"ideal_length" validate:"gtefield=MinLength"`
	MaxLength   int `yaml:"max_length" mapstructure:"max_length" validate:"gtefield=IdealLength"`
}

// ScoringConfig holds the ScoringEngine tunables
type ScoringConfig struct {
	Weights     ComponentWeights `yaml:"weights" mapstructure:"weights"`
	ProxyWeight float64          `yaml:"proxy_weight" mapstructure:"proxy_weight" validate:"gte=0,lte=1"`
	MaxPenalty  float64          `yaml:"max_penalty" mapstructure:"max_penalty" validate:"gte=0,lt=1"`
	Evidence    EvidencePolicy   `yaml:"evidence" mapstructure:"evidence"`
	Explanation TextPolicy       `yaml:"explanation" mapstructure:"explanation"`
	Methodology TextPolicy       `yaml:"methodology" mapstructure:"methodology"`
}

// AggregatorConfig holds the WeightAggregator tunables
type AggregatorConfig struct {
	WindowRounds        int     `yaml:"window_rounds" mapstructure:"window_rounds" validate:"gte=1"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold" validate:"gt=0,lte=1"`
	MinShared           int     `yaml:"min_shared" mapstructure:"min_shared" validate:"gte=1"`
	DampenStrength      float64 `yaml:"dampen_strength" mapstructure:"dampen_strength" validate:"gte=0,lte=1"`
	DampenFloor         float64 `yaml:"dampen_floor" mapstructure:"dampen_floor" validate:"gte=0,lte=1"`
	MalformedTolerance  float64 `yaml:"malformed_tolerance" mapstructure:"malformed_tolerance" validate:"gte=0,lte=1"`
	MalformedPenalty    float64 `yaml:"malformed_penalty" mapstructure:"malformed_penalty" validate:"gte=0,lte=1"`
}

// TransportConfig configures the HTTP miner transport
type TransportConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int     `yaml:"burst" mapstructure:"burst" validate:"gte=1"`
	MaxBodyBytes      int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gt=0"`
	HTTPProxy         string  `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string  `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string  `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// StoreConfig selects the round log backend
type StoreConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend" validate:"oneof=memory badger"`
	Path    string `yaml:"path" mapstructure:"path" validate:"required_if=Backend badger"`
}

// ServerConfig configures the validator status API
type ServerConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr" validate:"required_if=Enabled true"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=text json"`
}

// SourceConfig locates statements
type SourceConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	Seed int64  `yaml:"seed" mapstructure:"seed"`
}

// EmitConfig configures the reward-emission collaborator
type EmitConfig struct {
	Path string `yaml:"path,omitempty" mapstructure:"path"` // JSON lines file; empty logs only
}

// MinerConfig configures the reference miner node
type MinerConfig struct {
	ID         string        `yaml:"id" mapstructure:"id"`
	Addr       string        `yaml:"addr" mapstructure:"addr"`
	Provider   string        `yaml:"provider" mapstructure:"provider"` // openai-compatible chat endpoint, or ""
	Model      string        `yaml:"model" mapstructure:"model"`
	BaseURL    string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	APIKey     string        `yaml:"-" mapstructure:"api_key"`
	References []string      `yaml:"references" mapstructure:"references"` // URL templates with %s for the query
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	CacheDir   string        `yaml:"cache_dir" mapstructure:"cache_dir"`
	CacheTTL   time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// AuthorityConfig maps evidence sources to authority tiers
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
}

// DefaultConfig returns the documented policy defaults
func DefaultConfig() *Config {
	return &Config{
		ValidatorID: "validator-0",
		Round: RoundConfig{
			Interval:             60 * time.Second,
			BatchSize:            1,
			StatementConcurrency: 4,
		},
		Collector: CollectorConfig{
			Timeout:     12 * time.Second,
			Grace:       500 * time.Millisecond,
			MaxRetries:  2,
			BaseBackoff: 200 * time.Millisecond,
		},
		CrossCheck: CrossCheckConfig{
			Enabled:             true,
			PerStatement:        1,
			Reviewers:           3,
			Timeout:             12 * time.Second,
			MinQuorum:           2,
			StrongContradiction: 0.8,
		},
		Scoring: ScoringConfig{
			Weights: ComponentWeights{
				Accuracy:    0.5,
				Evidence:    0.2,
				Explanation: 0.15,
				Methodology: 0.15,
			},
			ProxyWeight: 0.5,
			MaxPenalty:  0.5,
			Evidence: EvidencePolicy{
				Cap:             5,
				DuplicateCredit: 0.25,
			},
			Explanation: TextPolicy{MinLength: 40, IdealLength: 200, MaxLength: 4000},
			Methodology: TextPolicy{MinLength: 20, IdealLength: 120, MaxLength: 2000},
		},
		Aggregator: AggregatorConfig{
			WindowRounds:        10,
			SimilarityThreshold: 0.6,
			MinShared:           3,
			DampenStrength:      0.75,
			DampenFloor:         0.1,
			MalformedTolerance:  0.3,
			MalformedPenalty:    0.5,
		},
		Transport: TransportConfig{
			RequestsPerSecond: 10,
			Burst:             5,
			MaxBodyBytes:      1 << 20,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Server: ServerConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Miner: MinerConfig{
			ID:        "miner-0",
			Addr:      "127.0.0.1:8091",
			Model:     "gpt-4o-mini",
			UserAgent: "Veritas-Miner/0.1",
			CacheTTL:  time.Hour,
			Timeout:   30 * time.Second,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"federalreserve.gov", "sec.gov", "bls.gov", "europa.eu",
				"who.int", "nasa.gov", "arxiv.org", "doi.org",
			},
			SecondaryDomains: []string{
				"wikipedia.org", "reuters.com", "apnews.com", "bbc.co.uk",
				"bloomberg.com", "cnbc.com", "coindesk.com", "britannica.com",
			},
		},
	}
}

var configValidate = validator.New()

// Validate checks struct constraints and cross-field policy invariants
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if total := c.Scoring.Weights.Total(); total <= 0 || math.IsNaN(total) {
		return fmt.Errorf("invalid config: scoring weights must have a positive sum, got %v", total)
	}
	seen := make(map[string]bool, len(c.Roster))
	for _, m := range c.Roster {
		if seen[m.ID] {
			return fmt.Errorf("invalid config: duplicate miner id %q in roster", m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

// MinerIDs returns the roster ids in configuration order
func (c *Config) MinerIDs() []string {
	ids := make([]string, 0, len(c.Roster))
	for _, m := range c.Roster {
		ids = append(ids, m.ID)
	}
	return ids
}
