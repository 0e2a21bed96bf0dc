// Package llm answers verification requests with an OpenAI-compatible chat model.
package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/veritas/internal/model"
)

// ErrBadAnswer is returned when the model reply is not a usable verdict
var ErrBadAnswer = errors.New("unusable model answer")

// Config holds chat model configuration
type Config struct {
	// Provider name: "openai", "deepseek" or "" for disabled
	Provider string

	// Model name (provider-specific)
	Model string

	APIKey string

	// BaseURL for OpenAI-compatible endpoints
	BaseURL string

	Timeout time.Duration

	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		MaxTokens: 1500,
	}
}

const systemPrompt = "You are an expert in research and analysis of statements."

const verifyPrompt = `Your main task is to verify the provided statement by determining if it is true or false with a confidence value.

### REQUIREMENT
1. Return only a JSON object, for example:
{
    "is_true": true,
    "confidence": 0.8,
    "evidence": [
        {"source": "example.com", "title": "Example Evidence", "content": "This is example evidence content.", "url": "https://example.com/evidence"}
    ],
    "explanation": "Why the evidence supports the verdict.",
    "methodology": "How the evidence was gathered and weighed."
}
2. Fields:
- is_true: boolean indicating if the statement is true.
- confidence: number between 0 and 1 indicating confidence.
- evidence: list of evidence supporting the determination (must contain at least 5 evidences).
- explanation: the reasoning behind the verdict.
- methodology: the approach used to reach it.

3. Importance
- Output must have at least 5 evidences

### STATEMENT
`

// BuildPrompt returns the user message for a statement
func BuildPrompt(statement string) string {
	return verifyPrompt + statement
}

type answer struct {
	IsTrue      *bool            `json:"is_true"`
	Confidence  *float64         `json:"confidence"`
	Evidence    []answerEvidence `json:"evidence"`
	Explanation string           `json:"explanation"`
	Methodology string           `json:"methodology"`
}

type answerEvidence struct {
	Source  string `json:"source"`
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// ParseAnswer decodes a model reply into a claim. Markdown fences and text
// around the JSON object are ignored.
func ParseAnswer(raw string) (model.Claim, error) {
	body := strings.TrimSpace(raw)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")

	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return model.Claim{}, fmt.Errorf("%w: no JSON object in reply", ErrBadAnswer)
	}

	var a answer
	if err := json.Unmarshal([]byte(body[start:end+1]), &a); err != nil {
		return model.Claim{}, fmt.Errorf("%w: %v", ErrBadAnswer, err)
	}
	if a.IsTrue == nil || a.Confidence == nil {
		return model.Claim{}, fmt.Errorf("%w: missing is_true or confidence", ErrBadAnswer)
	}
	if *a.Confidence < 0 || *a.Confidence > 1 {
		return model.Claim{}, fmt.Errorf("%w: confidence %v outside [0,1]", ErrBadAnswer, *a.Confidence)
	}

	claim := model.Claim{
		IsTrue:      *a.IsTrue,
		Confidence:  *a.Confidence,
		Explanation: strings.TrimSpace(a.Explanation),
		Methodology: strings.TrimSpace(a.Methodology),
	}
	for _, e := range a.Evidence {
		source := e.URL
		if source == "" {
			source = e.Source
		}
		if strings.TrimSpace(source) == "" {
			continue
		}

		snippet := e.Content
		if snippet == "" {
			snippet = e.Title
		}
		claim.Evidence = append(claim.Evidence, model.Evidence{Source: source, Snippet: snippet})
	}
	return claim, nil
}
