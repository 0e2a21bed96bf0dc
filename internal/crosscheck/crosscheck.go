// Package crosscheck re-asks a statement to other miners blind and compares
// their answers with the original miner's hidden claim.
package crosscheck

import (
	"context"
	"log/slog"
	"time"

	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/metrics"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/round"
	"github.com/ppiankov/veritas/internal/transport"
	"github.com/ppiankov/veritas/internal/validate"
	"github.com/ppiankov/veritas/internal/wire"
	"github.com/ppiankov/veritas/internal/worker"
)

// CrossValidator runs blind reviews of verification results
type CrossValidator struct {
	client transport.Client
	cfg    model.CrossCheckConfig
	grace  time.Duration
	logger *slog.Logger

	// OnLate is called for verdicts that arrive after the review closed
	OnLate func(model.CrossValidationVerdict)
}

// New creates a cross-validator. grace is the slack after the per-reviewer
// timeout before the review closes.
func New(client transport.Client, cfg model.CrossCheckConfig, grace time.Duration, logger *slog.Logger) *CrossValidator {
	return &CrossValidator{
		client: client,
		cfg:    cfg,
		grace:  grace,
		logger: logging.Subsystem(logger, logging.SubsystemCrossCheck),
	}
}

// CrossCheck asks each reviewer to judge the statement without showing the
// original answer, and returns one verdict per distinct reviewer in input
// order. The original miner is never its own reviewer. The original result is
// read only.
func (v *CrossValidator) CrossCheck(ctx context.Context, rc *round.Context, stmt model.Statement, original *model.VerificationResult, reviewerIDs []string, timeout time.Duration) []model.CrossValidationVerdict {
	if original == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = v.cfg.Timeout
	}

	reviewers := make([]string, 0, len(reviewerIDs))
	for _, id := range reviewerIDs {
		if id != original.MinerID {
			reviewers = append(reviewers, id)
		}
	}

	fan := worker.FanOut[model.CrossValidationVerdict]{
		Timeout: timeout,
		Grace:   v.grace,
		OnLate: func(reviewerID string, verdict model.CrossValidationVerdict) {
			metrics.RecordLate(metrics.KindReview)
			v.logger.Info("late verdict discarded",
				"round", rc.ID, "statement", stmt.ID, "reviewer", reviewerID)
			if v.OnLate != nil {
				v.OnLate(verdict)
			}
		},
	}

	// Reviewers see the statement only
	ctx = transport.WithRoundID(ctx, rc.ID)
	verdicts, pending := fan.Run(ctx, reviewers, func(callCtx context.Context, reviewerID string, deadline time.Time) model.CrossValidationVerdict {
		return v.review(callCtx, rc, stmt, original, reviewerID, deadline)
	})

	for _, id := range pending {
		verdicts[id] = model.CrossValidationVerdict{
			ReviewerID:    id,
			TargetMinerID: original.MinerID,
			StatementID:   stmt.ID,
			RoundID:       rc.ID,
			Outcome:       model.OutcomeTimeout,
		}
	}

	ordered := make([]model.CrossValidationVerdict, 0, len(verdicts))
	seen := make(map[string]bool, len(reviewers))
	for _, id := range reviewers {
		if seen[id] {
			continue
		}
		seen[id] = true
		ordered = append(ordered, verdicts[id])
	}

	tally := Count(ordered, v.cfg.StrongContradiction)
	metrics.RecordTally(tally.Label())
	v.logger.Debug("cross-check tallied",
		"round", rc.ID, "statement", stmt.ID, "target", original.MinerID,
		"responding", tally.Responding, "dissenting", tally.Dissenting, "agrees", tally.Agrees)

	return ordered
}

func (v *CrossValidator) review(ctx context.Context, rc *round.Context, stmt model.Statement, original *model.VerificationResult, reviewerID string, deadline time.Time) model.CrossValidationVerdict {
	verdict := model.CrossValidationVerdict{
		ReviewerID:    reviewerID,
		TargetMinerID: original.MinerID,
		StatementID:   stmt.ID,
		RoundID:       rc.ID,
	}

	start := time.Now()
	req := wire.VerifyRequest{
		StatementID:   stmt.ID,
		StatementText: stmt.Text,
		Deadline:      deadline,
	}

	body, err := v.client.Review(ctx, reviewerID, req)
	var alt *model.VerificationResult
	if err == nil {
		now := time.Now()
		alt, err = validate.Review(reviewerID, rc.ID, stmt.ID, body, now, now.Sub(start))
	}
	metrics.RecordOutcome(metrics.KindReview, transport.OutcomeOf(err), time.Since(start))

	if err != nil {
		verdict.Outcome = transport.OutcomeOf(err)
		v.logger.Debug("reviewer failed",
			"round", rc.ID, "statement", stmt.ID, "reviewer", reviewerID, "error", err)
		return verdict
	}

	verdict.Outcome = model.OutcomeOK
	verdict.Agrees = alt.IsTrue == original.IsTrue
	verdict.Confidence = alt.Confidence
	verdict.AlternativeResult = alt
	return verdict
}
