// Package collect dispatches a statement to every miner and gathers their
// answers under an independent per-miner deadline.
package collect

import (
	"context"
	"errors"
	"fmt"
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

// retrySleep waits between NetworkError retries (injectable for tests)
var retrySleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Collector is the validator's response collector
type Collector struct {
	client transport.Client
	cfg    model.CollectorConfig
	logger *slog.Logger

	// OnLate is called for every response that arrives after its collection
	// closed. The response is never merged.
	OnLate func(model.MinerResponse)
}

// New creates a collector
func New(client transport.Client, cfg model.CollectorConfig, logger *slog.Logger) *Collector {
	return &Collector{
		client: client,
		cfg:    cfg,
		logger: logging.Subsystem(logger, logging.SubsystemCollector),
	}
}

// Collect sends the statement to every miner and returns exactly one entry per
// distinct miner id. A timeout <= 0 uses the configured per-miner timeout.
// Collect never fails: unreachable, slow and malformed miners are recorded as
// failure outcomes.
func (c *Collector) Collect(ctx context.Context, rc *round.Context, stmt model.Statement, minerIDs []string, timeout time.Duration) map[string]model.MinerResponse {
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}

	fan := worker.FanOut[model.MinerResponse]{
		Timeout:     timeout,
		Grace:       c.cfg.Grace,
		MaxInFlight: c.cfg.MaxInFlight,
		OnLate: func(minerID string, resp model.MinerResponse) {
			c.late(resp)
		},
	}

	ctx = transport.WithRoundID(ctx, rc.ID)
	responses, pending := fan.Run(ctx, minerIDs, func(callCtx context.Context, minerID string, deadline time.Time) model.MinerResponse {
		return c.dispatch(callCtx, rc, stmt, minerID, deadline)
	})

	for _, minerID := range pending {
		responses[minerID] = model.MinerResponse{
			MinerID:     minerID,
			StatementID: stmt.ID,
			RoundID:     rc.ID,
			Outcome:     model.OutcomeTimeout,
			Error:       "no response before collection closed",
			Latency:     timeout + c.cfg.Grace,
		}
	}

	for _, resp := range responses {
		metrics.RecordOutcome(metrics.KindVerify, resp.Outcome, resp.Latency)
		switch resp.Outcome {
		case model.OutcomeOK:
			c.logger.Debug("response collected",
				"round", rc.ID, "statement", stmt.ID, "miner", resp.MinerID,
				"latency", resp.Latency, "attempts", resp.Attempts)
		case model.OutcomeMalformed:
			c.logger.Warn("malformed response, zero credit",
				"round", rc.ID, "statement", stmt.ID, "miner", resp.MinerID, "error", resp.Error)
		default:
			c.logger.Info("miner failed",
				"round", rc.ID, "statement", stmt.ID, "miner", resp.MinerID,
				"outcome", resp.Outcome, "error", resp.Error)
		}
	}

	return responses
}

// dispatch calls one miner, retrying network errors while another attempt can
// still finish before the deadline
func (c *Collector) dispatch(ctx context.Context, rc *round.Context, stmt model.Statement, minerID string, deadline time.Time) model.MinerResponse {
	// Each miner gets its own copy of the request
	req := wire.VerifyRequest{
		StatementID:   stmt.ID,
		StatementText: stmt.Text,
		Deadline:      deadline,
	}

	start := time.Now()
	resp := model.MinerResponse{
		MinerID:     minerID,
		StatementID: stmt.ID,
		RoundID:     rc.ID,
	}

	backoff := c.cfg.BaseBackoff
	for {
		resp.Attempts++
		attemptStart := time.Now()

		var result *model.VerificationResult
		body, err := c.client.Verify(ctx, minerID, req)
		if err == nil {
			now := time.Now()
			result, err = validate.Verification(minerID, rc.ID, stmt.ID, body, now, now.Sub(start))
		}
		if err == nil && time.Now().After(deadline) {
			err = fmt.Errorf("%w: answered after deadline", model.ErrTimeout)
		}

		resp.Latency = time.Since(start)
		if err == nil {
			resp.Outcome = model.OutcomeOK
			resp.Result = result
			return resp
		}

		resp.Outcome = transport.OutcomeOf(err)
		resp.Error = err.Error()

		if !transport.Retryable(err) || resp.Attempts > c.cfg.MaxRetries {
			return resp
		}

		attempt := time.Since(attemptStart)
		if time.Now().Add(backoff + attempt).After(deadline) {
			return resp
		}

		metrics.RecordRetry()
		c.logger.Debug("retrying after network error",
			"miner", minerID, "attempt", resp.Attempts, "backoff", backoff, "error", err)

		if sleepErr := retrySleep(ctx, backoff); sleepErr != nil {
			if errors.Is(sleepErr, context.DeadlineExceeded) || errors.Is(sleepErr, context.Canceled) {
				resp.Outcome = model.OutcomeTimeout
				resp.Error = fmt.Errorf("%w: %v", model.ErrTimeout, sleepErr).Error()
			}
			return resp
		}
		backoff *= 2
	}
}

func (c *Collector) late(resp model.MinerResponse) {
	metrics.RecordLate(metrics.KindVerify)
	c.logger.Info("late response discarded",
		"round", resp.RoundID, "statement", resp.StatementID, "miner", resp.MinerID,
		"outcome", resp.Outcome, "latency", resp.Latency)
	if c.OnLate != nil {
		c.OnLate(resp)
	}
}
