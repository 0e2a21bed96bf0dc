package model

import "time"

// Outcome classifies what the validator got back from a single miner call
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeMalformed    Outcome = "malformed"
	OutcomeNetworkError Outcome = "network_error"
)

// Credited reports whether the outcome is eligible for component scoring
func (o Outcome) Credited() bool {
	return o == OutcomeOK
}

// VerificationResult is a miner's answer to a verification request.
// Immutable once received.
type VerificationResult struct {
	MinerID     string        `json:"miner_id"`
	StatementID string        `json:"statement_id"`
	RoundID     string        `json:"round_id"`
	IsTrue      bool          `json:"is_true"`
	Confidence  float64       `json:"confidence"`
	Evidence    []Evidence    `json:"evidence"`
	Explanation string        `json:"explanation"`
	Methodology string        `json:"methodology"`
	ReceivedAt  time.Time     `json:"received_at"`
	Latency     time.Duration `json:"latency"`
}

// MinerResponse is the per-miner entry of a collection: either a result or a
// failure marker. Exactly one of Result and Error is meaningful.
type MinerResponse struct {
	MinerID     string              `json:"miner_id"`
	StatementID string              `json:"statement_id"`
	RoundID     string              `json:"round_id"`
	Outcome     Outcome             `json:"outcome"`
	Result      *VerificationResult `json:"result,omitempty"`
	Error       string              `json:"error,omitempty"`
	Attempts    int                 `json:"attempts"`
	Latency     time.Duration       `json:"latency"`
}

// OK reports whether the response carries a valid result
func (r MinerResponse) OK() bool {
	return r.Outcome == OutcomeOK && r.Result != nil
}

// CrossValidationVerdict is one reviewer's blind re-judgment of a statement,
// compared post hoc against the original miner's hidden claim
type CrossValidationVerdict struct {
	ReviewerID        string              `json:"reviewer_id"`
	TargetMinerID     string              `json:"target_miner_id"`
	StatementID       string              `json:"statement_id"`
	RoundID           string              `json:"round_id"`
	Outcome           Outcome             `json:"outcome"` // Non-ok reviewers are excluded from the vote
	Agrees            bool                `json:"agrees"`
	Confidence        float64             `json:"confidence,omitempty"`
	AlternativeResult *VerificationResult `json:"alternative_result,omitempty"`
}

// Responded reports whether the verdict takes part in the vote
func (v CrossValidationVerdict) Responded() bool {
	return v.Outcome == OutcomeOK
}
