package model

// Signal is a transparent scoring note attached to a score record
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // Formula inputs
}

// SignalType classifies a scoring signal
type SignalType string

const (
	SignalAccuracy          SignalType = "accuracy"
	SignalAccuracyProxy     SignalType = "accuracy_proxy"
	SignalAbstention        SignalType = "abstention"
	SignalEvidence          SignalType = "evidence"
	SignalExplanation       SignalType = "explanation"
	SignalMethodology       SignalType = "methodology"
	SignalCrossCheckDissent SignalType = "cross_check_dissent"
	SignalZeroCredit        SignalType = "zero_credit"
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
