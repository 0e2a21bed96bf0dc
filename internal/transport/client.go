// Package transport carries verification and review requests to miners over HTTP/JSON.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/util"
	"github.com/ppiankov/veritas/internal/wire"
	"github.com/ppiankov/veritas/internal/worker"
)

// Client sends requests to miners. Errors wrap model.ErrTimeout,
// model.ErrNetwork, model.ErrMalformed or model.ErrUnknownMiner.
type Client interface {
	Verify(ctx context.Context, minerID string, req wire.VerifyRequest) (*wire.VerifyResponse, error)
	Review(ctx context.Context, minerID string, req wire.VerifyRequest) (*wire.ReviewResponse, error)
}

// HTTPClient is the reference HTTP/JSON transport
type HTTPClient struct {
	roster       *Roster
	httpClient   *http.Client
	limiter      *worker.Limiter
	validatorID  string
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewHTTPClient creates a transport for the roster. Per-call deadlines come
// from the caller's context, not from the http.Client.
func NewHTTPClient(roster *Roster, cfg model.TransportConfig, validatorID string, logger *slog.Logger) *HTTPClient {
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	limiter := worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	for _, m := range roster.Rates() {
		limiter.SetMinerRate(m.ID, m.RequestsPerSecond, m.Burst)
	}

	return &HTTPClient{
		roster: roster,
		httpClient: &http.Client{
			Transport: util.NewTransport(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy, 0),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter:      limiter,
		validatorID:  validatorID,
		maxBodyBytes: maxBody,
		logger:       logging.Subsystem(logger, logging.SubsystemTransport),
	}
}

// Limiter exposes the per-miner limiter for tuning
func (c *HTTPClient) Limiter() *worker.Limiter {
	return c.limiter
}

// Verify asks a miner to verify a statement
func (c *HTTPClient) Verify(ctx context.Context, minerID string, req wire.VerifyRequest) (*wire.VerifyResponse, error) {
	var resp wire.VerifyResponse
	if err := c.post(ctx, minerID, wire.VerifyPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Review asks a miner for a blind judgment of a statement
func (c *HTTPClient) Review(ctx context.Context, minerID string, req wire.VerifyRequest) (*wire.ReviewResponse, error) {
	var resp wire.ReviewResponse
	if err := c.post(ctx, minerID, wire.ReviewPath, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) post(ctx context.Context, minerID, path string, body interface{}, out interface{}) error {
	endpoint, err := c.roster.Endpoint(minerID)
	if err != nil {
		return err
	}

	// The limiter fails before ctx expires when no token can arrive in time
	if err := c.limiter.Wait(ctx, minerID); err != nil {
		return fmt.Errorf("%w: rate limit: %v", model.ErrTimeout, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", model.ErrNetwork, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(wire.HeaderValidatorID, c.validatorID)
	if roundID := roundIDFromContext(ctx); roundID != "" {
		httpReq.Header.Set(wire.HeaderRoundID, roundID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		c.logger.Debug("miner returned error status",
			"miner", minerID, "path", path, "status", resp.StatusCode)
		return err
	}

	limited := io.LimitReader(resp.Body, c.maxBodyBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	if int64(len(data)) > c.maxBodyBytes {
		return fmt.Errorf("%w: body exceeds %d bytes", model.ErrMalformed, c.maxBodyBytes)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode body: %v", model.ErrMalformed, err)
	}
	return nil
}

// checkStatus maps HTTP status codes to outcome errors
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", model.ErrTimeout, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", model.ErrNetwork, resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", model.ErrMalformed, resp.StatusCode)
	}
}

// classifyTransportError maps a failed round-trip to Timeout or NetworkError.
// Refused and reset connections fall through to NetworkError.
func classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", model.ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", model.ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", model.ErrNetwork, err)
}

// OutcomeOf maps a transport or validation error to a response outcome
func OutcomeOf(err error) model.Outcome {
	switch {
	case err == nil:
		return model.OutcomeOK
	case errors.Is(err, model.ErrTimeout):
		return model.OutcomeTimeout
	case errors.Is(err, model.ErrMalformed):
		return model.OutcomeMalformed
	default:
		return model.OutcomeNetworkError
	}
}

// Retryable reports whether a failed call may be retried within its deadline
func Retryable(err error) bool {
	return OutcomeOf(err) == model.OutcomeNetworkError && !errors.Is(err, model.ErrUnknownMiner)
}

type roundIDKey struct{}

// WithRoundID attaches the round id sent to miners in a request header
func WithRoundID(ctx context.Context, roundID string) context.Context {
	return context.WithValue(ctx, roundIDKey{}, roundID)
}

func roundIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(roundIDKey{}).(string); ok {
		return id
	}
	return ""
}
