// Package score turns miner responses into score records.
package score

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/ppiankov/veritas/internal/crosscheck"
	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/round"
	"github.com/ppiankov/veritas/internal/validate"
)

// Engine computes MinerScoreRecords
type Engine struct {
	cfg                 model.ScoringConfig
	strongContradiction float64
	minQuorum           int
	authority           *validate.AuthorityClassifier
	explanation         TextQuality
	methodology         TextQuality
	logger              *slog.Logger
}

// NewEngine creates a scoring engine. The cross-check settings decide how
// verdicts are tallied.
func NewEngine(cfg model.ScoringConfig, cross model.CrossCheckConfig, authority *validate.AuthorityClassifier, logger *slog.Logger) *Engine {
	if authority == nil {
		authority = validate.NewAuthorityClassifier(nil)
	}
	minQuorum := cross.MinQuorum
	if minQuorum <= 0 {
		minQuorum = 1
	}

	return &Engine{
		cfg:                 cfg,
		strongContradiction: cross.StrongContradiction,
		minQuorum:           minQuorum,
		authority:           authority,
		explanation:         NewExplanationQuality(cfg.Explanation),
		methodology:         NewMethodologyQuality(cfg.Methodology),
		logger:              logging.Subsystem(logger, logging.SubsystemScore),
	}
}

// WithTextQuality replaces the explanation and methodology heuristics
func (e *Engine) WithTextQuality(explanation, methodology TextQuality) *Engine {
	if explanation != nil {
		e.explanation = explanation
	}
	if methodology != nil {
		e.methodology = methodology
	}
	return e
}

// Score scores one miner's response to a statement. Failed responses score 0.
// Accuracy uses ground truth when present, the cross-check agreement fraction
// as a weaker proxy otherwise, and abstains when neither exists; an abstained
// component's weight is redistributed over the others.
func (e *Engine) Score(rc *round.Context, stmt model.Statement, resp model.MinerResponse, verdicts []model.CrossValidationVerdict) model.MinerScoreRecord {
	record := model.MinerScoreRecord{
		MinerID:     resp.MinerID,
		RoundID:     rc.ID,
		RoundSeq:    rc.Seq,
		StatementID: stmt.ID,
		Outcome:     resp.Outcome,
	}

	if !resp.OK() {
		record.AccuracyAbstained = true
		record.Signals = []model.Signal{{
			Type:        model.SignalZeroCredit,
			Severity:    zeroCreditSeverity(resp.Outcome),
			Description: fmt.Sprintf("No credit: %s", resp.Outcome),
			Data:        map[string]interface{}{"outcome": string(resp.Outcome), "error": resp.Error},
		}}
		return record
	}

	result := resp.Result
	tally := crosscheck.Count(verdicts, e.strongContradiction)
	weights := e.cfg.Weights

	var signals []model.Signal

	// 1. Accuracy
	accuracy, accuracyWeight, accuracySignal := e.accuracy(result, stmt.GroundTruth, tally)
	signals = append(signals, accuracySignal)
	record.AccuracyComponent = accuracy
	record.AccuracyAbstained = accuracyWeight == 0

	// 2. Evidence
	evidence, evidenceSignal := evidenceComponent(result.Evidence, e.cfg.Evidence, e.authority)
	signals = append(signals, evidenceSignal)
	record.EvidenceComponent = evidence

	// 3. Explanation and methodology
	explanation, explanationData := e.explanation.Score(result.Explanation, stmt)
	signals = append(signals, textSignal(model.SignalExplanation, explanation, explanationData))
	record.ExplanationComponent = explanation

	methodology, methodologyData := e.methodology.Score(result.Methodology, stmt)
	signals = append(signals, textSignal(model.SignalMethodology, methodology, methodologyData))
	record.MethodologyComponent = methodology

	// Renormalize over non-abstained components
	totalWeight := accuracyWeight + weights.Evidence + weights.Explanation + weights.Methodology
	base := 0.0
	if totalWeight > 0 {
		base = (accuracyWeight*accuracy +
			weights.Evidence*evidence +
			weights.Explanation*explanation +
			weights.Methodology*methodology) / totalWeight
	}

	// 4. Cross-validation penalty
	penalty := 0.0
	if !tally.Agrees {
		quorum := math.Min(1, float64(tally.Responding)/float64(e.minQuorum))
		fraction := e.cfg.MaxPenalty * tally.Strength() * quorum
		penalty = base * fraction
		signals = append(signals, model.Signal{
			Type:        model.SignalCrossCheckDissent,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d of %d reviewers disagreed", tally.Dissenting, tally.Responding),
			Data: map[string]interface{}{
				"responding":       tally.Responding,
				"dissenting":       tally.Dissenting,
				"weighted_dissent": tally.WeightedDissent,
				"fraction":         fraction,
				"formula":          "base * max_penalty * dissent_share * min(1, responding / min_quorum)",
			},
		})
	}

	record.CrossValidationPenalty = penalty
	record.CompositeScore = clamp01(base - penalty)
	record.Fingerprint = fingerprint(result)
	record.Signals = signals

	e.logger.Debug("scored",
		"round", rc.ID, "statement", stmt.ID, "miner", resp.MinerID,
		"composite", record.CompositeScore, "penalty", penalty, "abstained", record.AccuracyAbstained)

	return record
}

// accuracy returns the component, its effective weight and a signal.
// A zero weight means the component abstained.
func (e *Engine) accuracy(result *model.VerificationResult, truth *model.GroundTruth, tally crosscheck.Tally) (float64, float64, model.Signal) {
	if truth != nil {
		target := 0.0
		if result.IsTrue == truth.IsTrue {
			target = 1.0
		}
		accuracy := 1 - math.Abs(target-result.Confidence)
		return accuracy, e.cfg.Weights.Accuracy, model.Signal{
			Type:        model.SignalAccuracy,
			Severity:    accuracySeverity(accuracy),
			Description: fmt.Sprintf("Ground truth accuracy: %.2f", accuracy),
			Data: map[string]interface{}{
				"is_true":    result.IsTrue,
				"confidence": result.Confidence,
				"target":     target,
				"formula":    "1 - |target - confidence|",
			},
		}
	}

	if agreement, ok := tally.AgreementFraction(); ok {
		weight := e.cfg.Weights.Accuracy * e.cfg.ProxyWeight
		if weight > 0 {
			return agreement, weight, model.Signal{
				Type:        model.SignalAccuracyProxy,
				Severity:    accuracySeverity(agreement),
				Description: fmt.Sprintf("Cross-check agreement proxy: %.2f", agreement),
				Data: map[string]interface{}{
					"responding": tally.Responding,
					"agreeing":   tally.Agreeing,
					"weight":     weight,
					"formula":    "agreeing / responding, weight * proxy_weight",
				},
			}
		}
	}

	return 0, 0, model.Signal{
		Type:        model.SignalAbstention,
		Severity:    model.SeverityInfo,
		Description: "Accuracy abstained: no ground truth and no cross-check",
		Data:        map[string]interface{}{"redistributed_weight": e.cfg.Weights.Accuracy},
	}
}

func textSignal(t model.SignalType, score float64, data map[string]interface{}) model.Signal {
	severity := model.SeverityInfo
	if score < 0.3 {
		severity = model.SeverityWarning
	}
	return model.Signal{
		Type:        t,
		Severity:    severity,
		Description: fmt.Sprintf("%s quality: %.2f", t, score),
		Data:        data,
	}
}

func accuracySeverity(v float64) model.SignalSeverity {
	switch {
	case v < 0.3:
		return model.SeverityCritical
	case v < 0.6:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

func zeroCreditSeverity(outcome model.Outcome) model.SignalSeverity {
	if outcome == model.OutcomeMalformed {
		return model.SeverityWarning
	}
	return model.SeverityInfo
}
