package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// DeepSeekBaseURL is the OpenAI-compatible DeepSeek endpoint
const DeepSeekBaseURL = "https://api.deepseek.com"

// New creates a capability for the configured provider. An empty provider
// disables the model and returns nil.
func New(config Config) (*Capability, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewCapability(config)

	case "deepseek":
		if config.BaseURL == "" {
			config.BaseURL = DeepSeekBaseURL
		}
		if config.Model == "" {
			config.Model = "deepseek-chat"
		}
		return NewCapability(config)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, deepseek)", config.Provider)
	}
}

// ConfigFromModel converts the miner configuration
func ConfigFromModel(m model.MinerConfig, transport model.TransportConfig) Config {
	cfg := DefaultConfig()
	cfg.Provider = m.Provider
	cfg.Model = m.Model
	cfg.APIKey = m.APIKey
	cfg.BaseURL = m.BaseURL
	if m.Timeout > 0 {
		cfg.Timeout = m.Timeout
	}
	cfg.HTTPProxy = transport.HTTPProxy
	cfg.HTTPSProxy = transport.HTTPSProxy
	cfg.NoProxy = transport.NoProxy
	return cfg
}
