// Package miner is the reference miner node: an HTTP service answering
// verification and blind review requests from validators.
package miner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/veritas/internal/cache"
	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/model"
)

// ErrNoCapability is returned when no capability could answer
var ErrNoCapability = errors.New("no capability answered")

// maxEvidence matches the validator's evidence list limit
const maxEvidence = 64

// Capability determines whether a statement is true
type Capability interface {
	Verify(ctx context.Context, stmt model.Statement) (model.Claim, error)
}

// CapabilityFunc adapts a function to Capability
type CapabilityFunc func(ctx context.Context, stmt model.Statement) (model.Claim, error)

// Verify calls f
func (f CapabilityFunc) Verify(ctx context.Context, stmt model.Statement) (model.Claim, error) {
	return f(ctx, stmt)
}

// Composite asks every capability in order. The first success decides the
// verdict; evidence of later successes is appended without duplicates.
type Composite struct {
	capabilities []Capability
	logger       *slog.Logger
}

// NewComposite creates a composite; nil capabilities are skipped
func NewComposite(logger *slog.Logger, capabilities ...Capability) *Composite {
	c := &Composite{logger: logging.Subsystem(logger, logging.SubsystemMiner)}
	for _, capability := range capabilities {
		if capability != nil {
			c.capabilities = append(c.capabilities, capability)
		}
	}
	return c
}

// Len returns the number of capabilities
func (c *Composite) Len() int {
	return len(c.capabilities)
}

// Verify implements Capability
func (c *Composite) Verify(ctx context.Context, stmt model.Statement) (model.Claim, error) {
	var primary *model.Claim
	var errs []error
	seen := make(map[string]bool)

	for i, capability := range c.capabilities {
		claim, err := capability.Verify(ctx, stmt)
		if err != nil {
			c.logger.Debug("capability failed", "index", i, "statement", stmt.ID, "error", err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		evidence := claim.Evidence
		if primary == nil {
			primary = &claim
			primary.Evidence = make([]model.Evidence, 0, min(len(evidence), maxEvidence))
		}
		for _, e := range evidence {
			if seen[e.Source] || len(primary.Evidence) >= maxEvidence {
				continue
			}
			seen[e.Source] = true
			primary.Evidence = append(primary.Evidence, e)
		}
	}

	if primary == nil && len(errs) == 0 {
		return model.Claim{}, ErrNoCapability
	}
	if primary == nil {
		return model.Claim{}, fmt.Errorf("%w: %w", ErrNoCapability, errors.Join(errs...))
	}
	return *primary, nil
}

// Cached answers repeated statements from a cache keyed by statement text
type Cached struct {
	next      Capability
	cache     cache.Cache
	namespace string
	ttl       time.Duration
}

// NewCached wraps next with a cache
func NewCached(next Capability, c cache.Cache, namespace string, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: c, namespace: namespace, ttl: ttl}
}

// Verify implements Capability. Failures are never cached.
func (c *Cached) Verify(ctx context.Context, stmt model.Statement) (model.Claim, error) {
	key := cache.Key(c.namespace, stmt.Text)
	if claim, ok := cache.GetJSON[model.Claim](c.cache, key); ok {
		return claim, nil
	}

	claim, err := c.next.Verify(ctx, stmt)
	if err != nil {
		return model.Claim{}, err
	}
	_ = cache.SetJSON(c.cache, key, claim, c.ttl)
	return claim, nil
}
