package miner

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/wire"
)

// Version is reported to validators in the miner version header
const Version = "0.1.0"

// Server answers validator requests with a capability
type Server struct {
	id         string
	capability Capability
	logger     *slog.Logger
	r          *gin.Engine
}

// NewServer creates a miner server
func NewServer(id string, capability Capability, logger *slog.Logger) *Server {
	r := gin.New()
	s := &Server{
		id:         id,
		capability: capability,
		logger:     logging.Subsystem(logger, logging.SubsystemMiner).With("miner", id),
		r:          r,
	}

	r.Use(gin.Recovery(), s.versionHeader, s.requestLog)
	r.GET("/healthz", s.health)
	r.POST(wire.VerifyPath, s.verify)
	r.POST(wire.ReviewPath, s.review)
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("miner listening", "addr", addr, "version", Version)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) versionHeader(c *gin.Context) {
	c.Header(wire.HeaderMinerVersion, Version)
	c.Next()
}

func (s *Server) requestLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"validator", c.GetHeader(wire.HeaderValidatorID),
		"round_id", c.GetHeader(wire.HeaderRoundID),
		"latency", time.Since(start))
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "miner": s.id, "version": Version})
}

func (s *Server) verify(c *gin.Context) {
	claim, req, ok := s.answer(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, wire.VerifyResponse{
		StatementID: req.StatementID,
		IsTrue:      wire.Bool(claim.IsTrue),
		Confidence:  wire.Float(claim.Confidence),
		Evidence:    toWire(claim.Evidence),
		Explanation: wire.String(claim.Explanation),
		Methodology: wire.String(claim.Methodology),
	})
}

// review runs the same capability blind: the request never carries the
// reviewed miner's answer
func (s *Server) review(c *gin.Context) {
	claim, req, ok := s.answer(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, wire.ReviewResponse{
		StatementID: req.StatementID,
		IsTrue:      wire.Bool(claim.IsTrue),
		Confidence:  wire.Float(claim.Confidence),
		Evidence:    toWire(claim.Evidence),
	})
}

// answer decodes the request and runs the capability before the validator's
// deadline. On failure the error response is already written.
func (s *Server) answer(c *gin.Context) (model.Claim, wire.VerifyRequest, bool) {
	var req wire.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, wire.ErrorResponse{Error: "invalid request: " + err.Error()})
		return model.Claim{}, req, false
	}
	req.StatementText = strings.TrimSpace(req.StatementText)
	if req.StatementText == "" {
		c.JSON(http.StatusBadRequest, wire.ErrorResponse{Error: "statement_text is required"})
		return model.Claim{}, req, false
	}

	ctx := c.Request.Context()
	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	claim, err := s.capability.Verify(ctx, model.Statement{ID: req.StatementID, Text: req.StatementText})
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.logger.Warn("verification failed", "statement", req.StatementID, "status", status, "error", err)
		c.JSON(status, wire.ErrorResponse{Error: err.Error()})
		return model.Claim{}, req, false
	}
	return claim, req, true
}

func toWire(evidence []model.Evidence) []wire.EvidenceItem {
	out := make([]wire.EvidenceItem, 0, len(evidence))
	for _, e := range evidence {
		out = append(out, wire.EvidenceItem{Source: e.Source, Snippet: e.Snippet})
	}
	return out
}
