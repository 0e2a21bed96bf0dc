package model

// MinerScoreRecord is the scored outcome of one miner for one statement of a
// round. Immutable once computed; the history of records is append-only.
type MinerScoreRecord struct {
	MinerID     string  `json:"miner_id"`
	RoundID     string  `json:"round_id"`
	RoundSeq    uint64  `json:"round_seq"`
	StatementID string  `json:"statement_id"`
	Outcome     Outcome `json:"outcome"`

	AccuracyComponent      float64 `json:"accuracy_component"`
	AccuracyAbstained      bool    `json:"accuracy_abstained"`
	EvidenceComponent      float64 `json:"evidence_component"`
	ExplanationComponent   float64 `json:"explanation_component"`
	MethodologyComponent   float64 `json:"methodology_component"`
	CrossValidationPenalty float64 `json:"cross_validation_penalty"`
	CompositeScore         float64 `json:"composite_score"`

	// Fingerprint of the result content, used for collusion detection
	Fingerprint Fingerprint `json:"fingerprint"`

	Signals []Signal `json:"signals,omitempty"`
}

// Fingerprint holds content hashes of a result. Empty hashes never match.
type Fingerprint struct {
	Evidence    string `json:"evidence,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// WeightVector maps miner ids to normalized reward weights.
// Superseded every round, never mutated after publication.
type WeightVector struct {
	Version   uint64             `json:"version"`
	RoundSeq  uint64             `json:"round_seq"`
	Weights   map[string]float64 `json:"weights"`
	Means     map[string]float64 `json:"means,omitempty"`
	Dampening map[string]float64 `json:"dampening,omitempty"`
	Suspects  []SuspectPair      `json:"suspect_pairs,omitempty"`
}

// SuspectPair is two miners whose results were identical too often
type SuspectPair struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	Shared     int     `json:"shared"`
	Similarity float64 `json:"similarity"`
}

// Sum returns the total weight
func (w WeightVector) Sum() float64 {
	var sum float64
	for _, v := range w.Weights {
		sum += v
	}
	return sum
}

// RoundLogEntry is the minimum durable audit record of one miner for one statement
type RoundLogEntry struct {
	RoundID     string                   `json:"round_id"`
	RoundSeq    uint64                   `json:"round_seq"`
	StatementID string                   `json:"statement_id"`
	MinerID     string                   `json:"miner_id"`
	Response    MinerResponse            `json:"result_or_failure"`
	Verdicts    []CrossValidationVerdict `json:"verdicts,omitempty"`
	Score       MinerScoreRecord         `json:"score"`
}
