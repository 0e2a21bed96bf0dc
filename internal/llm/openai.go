package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/util"
)

// Capability verifies statements with a chat completion
type Capability struct {
	client *openai.Client
	config Config
}

// NewCapability creates a chat-model capability
func NewCapability(config Config) (*Capability, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", config.Provider)
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: util.NewTransport(config.HTTPProxy, config.HTTPSProxy, config.NoProxy, 0),
	}

	return &Capability{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name
func (c *Capability) Name() string {
	return c.config.Provider
}

// IsAvailable checks that the endpoint accepts the API key
func (c *Capability) IsAvailable(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%s API check failed: %w", c.config.Provider, err)
	}
	return nil
}

// Verify asks the model for a verdict on the statement
func (c *Capability) Verify(ctx context.Context, stmt model.Statement) (model.Claim, error) {
	modelName := c.config.Model
	if modelName == "" {
		modelName = openai.GPT4oMini
	}

	maxTokens := c.config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1500
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(stmt.Text)},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return model.Claim{}, fmt.Errorf("%s API error: %w", c.config.Provider, err)
	}
	if len(resp.Choices) == 0 {
		return model.Claim{}, fmt.Errorf("%w: no choices returned", ErrBadAnswer)
	}

	claim, err := ParseAnswer(resp.Choices[0].Message.Content)
	if err != nil {
		return model.Claim{}, err
	}
	if claim.Methodology == "" {
		claim.Methodology = fmt.Sprintf("Asked %s to weigh published evidence for the statement.", modelName)
	}
	if claim.Explanation == "" {
		claim.Explanation = fmt.Sprintf("%s judged the statement %s with confidence %.2f based on %d cited sources.",
			modelName, verdictWord(claim.IsTrue), claim.Confidence, len(claim.Evidence))
	}
	return claim, nil
}

func verdictWord(isTrue bool) string {
	if isTrue {
		return "true"
	}
	return "false"
}
