// Package wire defines the JSON messages exchanged between validator and miners.
//
// Response fields are pointers so that a missing field can be told apart from
// a zero value; the validator treats a missing field as a malformed response.
package wire

import "time"

const (
	// VerifyPath is the miner endpoint for statement verification
	VerifyPath = "/v1/verify"
	// ReviewPath is the miner endpoint for blind cross-validation review
	ReviewPath = "/v1/review"

	// HeaderValidatorID carries the calling validator's identity
	HeaderValidatorID = "X-Validator-ID"
	// HeaderRoundID carries the round id for miner-side logging
	HeaderRoundID = "X-Round-ID"
	// HeaderMinerVersion carries the miner software version
	HeaderMinerVersion = "X-Miner-Version"
)

// VerifyRequest asks a miner to verify a statement. Review requests use the
// same shape: the original miner's answer is never sent.
type VerifyRequest struct {
	StatementID   string    `json:"statement_id"`
	StatementText string    `json:"statement_text"`
	Deadline      time.Time `json:"deadline"`
}

// EvidenceItem is one cited source
type EvidenceItem struct {
	Source  string `json:"source" validate:"notblank,max=2048"`
	Snippet string `json:"snippet,omitempty" validate:"max=8192"`
}

// VerifyResponse is a miner's verification answer
type VerifyResponse struct {
	StatementID string         `json:"statement_id,omitempty"`
	IsTrue      *bool          `json:"is_true" validate:"required"`
	Confidence  *float64       `json:"confidence" validate:"required,gte=0,lte=1"`
	Evidence    []EvidenceItem `json:"evidence" validate:"max=64,dive"`
	Explanation *string        `json:"explanation" validate:"required,notblank,max=32768"`
	Methodology *string        `json:"methodology" validate:"required,max=16384"`
}

// ReviewResponse is a reviewer's blind judgment of a statement
type ReviewResponse struct {
	StatementID string         `json:"statement_id,omitempty"`
	IsTrue      *bool          `json:"is_true" validate:"required"`
	Confidence  *float64       `json:"confidence" validate:"required,gte=0,lte=1"`
	Evidence    []EvidenceItem `json:"evidence" validate:"max=64,dive"`
}

// ErrorResponse is returned by miners on failure
type ErrorResponse struct {
	Error string `json:"error"`
}

// Bool returns a pointer to b
func Bool(b bool) *bool { return &b }

// Float returns a pointer to f
func Float(f float64) *float64 { return &f }

// String returns a pointer to s
func String(s string) *string { return &s }
