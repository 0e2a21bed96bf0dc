package model

import "time"

// GroundTruth is the validator-held answer for a statement, when known
type GroundTruth struct {
	IsTrue     bool    `json:"is_true" yaml:"is_true"`
	Confidence float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	Source     string  `json:"source,omitempty" yaml:"source,omitempty"` // Where the truth was established
}

// Statement is a factual assertion issued to miners for verification.
// Immutable once issued for a round.
type Statement struct {
	ID          string       `json:"id" yaml:"id"`
	Text        string       `json:"text" yaml:"text"`
	GroundTruth *GroundTruth `json:"ground_truth,omitempty" yaml:"ground_truth,omitempty"`
	CreatedAt   time.Time    `json:"created_at" yaml:"created_at"`
}

// HasGroundTruth reports whether the validator knows the answer
func (s Statement) HasGroundTruth() bool {
	return s.GroundTruth != nil
}

// VerificationRequest is created per dispatch and discarded after collection
type VerificationRequest struct {
	StatementID   string    `json:"statement_id"`
	StatementText string    `json:"statement_text"`
	RoundID       string    `json:"round_id"`
	Deadline      time.Time `json:"deadline"`
}
