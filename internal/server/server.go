// Package server exposes the validator status API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/store"
)

// WeightSource returns the last published weight vector, or nil
type WeightSource interface {
	Current() *model.WeightVector
}

// Server serves health, metrics, weights and round audit records
type Server struct {
	weights WeightSource
	log     store.RoundLog
	logger  *slog.Logger
	r       *gin.Engine
}

// New creates a status server
func New(weights WeightSource, log store.RoundLog, logger *slog.Logger) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		weights: weights,
		log:     log,
		logger:  logging.Subsystem(logger, logging.SubsystemServer),
		r:       r,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", s.health)
	s.r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.r.GET("/v1/weights", s.currentWeights)
	s.r.GET("/v1/rounds/:id", s.round)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.r
}

// ListenAndServe serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("status API listening", "addr", addr)

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

func (s *Server) health(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if current := s.weights.Current(); current != nil {
		status["weights_version"] = current.Version
		status["round_seq"] = current.RoundSeq
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) currentWeights(c *gin.Context) {
	current := s.weights.Current()
	if current == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no weights published yet"})
		return
	}
	c.JSON(http.StatusOK, current)
}

func (s *Server) round(c *gin.Context) {
	id := c.Param("id")
	entries, err := s.log.Round(c.Request.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "round not found", "round_id": id})
	case err != nil:
		s.logger.Error("round lookup failed", "round", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "round lookup failed"})
	default:
		c.JSON(http.StatusOK, gin.H{"round_id": id, "entries": entries})
	}
}
