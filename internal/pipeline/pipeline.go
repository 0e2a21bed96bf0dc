// Package pipeline runs validator rounds end to end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/veritas/internal/collect"
	"github.com/ppiankov/veritas/internal/crosscheck"
	"github.com/ppiankov/veritas/internal/emit"
	"github.com/ppiankov/veritas/internal/logging"
	"github.com/ppiankov/veritas/internal/metrics"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/round"
	"github.com/ppiankov/veritas/internal/score"
	"github.com/ppiankov/veritas/internal/source"
	"github.com/ppiankov/veritas/internal/store"
	"github.com/ppiankov/veritas/internal/transport"
	"github.com/ppiankov/veritas/internal/validate"
	"github.com/ppiankov/veritas/internal/weights"
)

// Deps are the collaborators of a pipeline
type Deps struct {
	Source  source.Source
	Client  transport.Client
	Roster  *transport.Roster
	Log     store.RoundLog // optional, defaults to an in-memory log
	Emitter emit.Emitter   // optional
	Logger  *slog.Logger
}

// Pipeline orchestrates validator rounds
type Pipeline struct {
	cfg        *model.Config
	source     source.Source
	roster     *transport.Roster
	collector  *collect.Collector
	cross      *crosscheck.CrossValidator
	engine     *score.Engine
	history    *score.History
	aggregator *weights.Aggregator
	publisher  *weights.Publisher
	log        store.RoundLog
	emitter    emit.Emitter
	logger     *slog.Logger
	seq        atomic.Uint64
}

// StatementOutcome is everything a round learned about one statement
type StatementOutcome struct {
	Statement model.Statement
	Responses map[string]model.MinerResponse
	Verdicts  map[string][]model.CrossValidationVerdict // by target miner
	Records   []model.MinerScoreRecord
}

// RoundResult summarizes a finished round
type RoundResult struct {
	Round      *round.Context
	Statements []StatementOutcome
	Vector     *model.WeightVector
	Duration   time.Duration
}

// New creates a pipeline
func New(cfg *model.Config, deps Deps) *Pipeline {
	logger := deps.Logger
	log := deps.Log
	if log == nil {
		log = store.NewMemoryLog()
	}

	return &Pipeline{
		cfg:        cfg,
		source:     deps.Source,
		roster:     deps.Roster,
		collector:  collect.New(deps.Client, cfg.Collector, logger),
		cross:      crosscheck.New(deps.Client, cfg.CrossCheck, cfg.Collector.Grace, logger),
		engine:     score.NewEngine(cfg.Scoring, cfg.CrossCheck, validate.NewAuthorityClassifier(&cfg.Authority), logger),
		history:    score.NewHistory(cfg.Aggregator.WindowRounds),
		aggregator: weights.NewAggregator(cfg.Aggregator),
		publisher:  weights.NewPublisher(),
		log:        log,
		emitter:    deps.Emitter,
		logger:     logging.Subsystem(logger, logging.SubsystemPipeline),
	}
}

// Publisher exposes the current weight vector
func (p *Pipeline) Publisher() *weights.Publisher {
	return p.publisher
}

// Restore reloads the trailing window of score history, the round sequence
// and the last published vector from the round log
func (p *Pipeline) Restore(ctx context.Context) error {
	last, err := p.log.LastSeq(ctx)
	if err != nil {
		return fmt.Errorf("restore: last round: %w", err)
	}

	from, err := p.log.WindowStart(ctx, p.cfg.Aggregator.WindowRounds)
	if err != nil {
		return fmt.Errorf("restore: window start: %w", err)
	}

	records, err := p.log.Records(ctx, from)
	if err != nil {
		return fmt.Errorf("restore: records: %w", err)
	}
	p.history.Append(records...)
	p.seq.Store(last)

	vector, err := p.log.LatestWeights(ctx)
	switch {
	case err == nil:
		p.publisher.Restore(vector)
	case !errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("restore: weights: %w", err)
	}

	p.logger.Info("restored round history", "last_round", last, "records", len(records))
	return nil
}

// RunRound runs one full round: dispatch, collect, cross-check, score,
// aggregate, publish and emit. It fails only when no statement is available.
func (p *Pipeline) RunRound(ctx context.Context) (*RoundResult, error) {
	start := time.Now()
	rc := round.New(p.seq.Add(1), start)
	if err := p.log.MarkSeq(ctx, rc.Seq); err != nil {
		p.logger.Error("persisting round sequence failed", "seq", rc.Seq, "error", err)
	}

	result, err := p.runRound(ctx, rc)
	metrics.RecordRound(err, time.Since(start))
	if err != nil {
		p.logger.Error("round failed", "round", rc.ID, "seq", rc.Seq, "error", err)
		return nil, err
	}

	result.Duration = time.Since(start)
	p.logger.Info("round complete",
		"round", rc.ID, "seq", rc.Seq, "statements", len(result.Statements),
		"version", result.Vector.Version, "duration", result.Duration)
	return result, nil
}

func (p *Pipeline) runRound(ctx context.Context, rc *round.Context) (*RoundResult, error) {
	statements, err := p.source.NextBatch(ctx, p.cfg.Round.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("round %d: %w", rc.Seq, err)
	}
	if len(statements) == 0 {
		return nil, fmt.Errorf("round %d: %w", rc.Seq, model.ErrNoStatements)
	}

	minerIDs := p.roster.IDs()
	outcomes := make([]StatementOutcome, len(statements))
	for i, stmt := range statements {
		outcomes[i] = StatementOutcome{Statement: stmt, Verdicts: map[string][]model.CrossValidationVerdict{}}
	}

	// 1. Collect
	p.forEachStatement(ctx, outcomes, func(ctx context.Context, o *StatementOutcome) {
		o.Responses = p.collector.Collect(ctx, rc, o.Statement, minerIDs, 0)
	})
	if err := rc.Advance(round.Collected, time.Now()); err != nil {
		return nil, err
	}

	// 2. Cross-check
	if p.cfg.CrossCheck.Enabled && p.cfg.CrossCheck.PerStatement > 0 {
		current := p.publisher.Current()
		p.forEachStatement(ctx, outcomes, func(ctx context.Context, o *StatementOutcome) {
			p.crossCheck(ctx, rc, o, minerIDs, current)
		})
		if err := rc.Advance(round.CrossChecked, time.Now()); err != nil {
			return nil, err
		}
	}

	// 3. Score
	var records []model.MinerScoreRecord
	var entries []model.RoundLogEntry
	for i := range outcomes {
		o := &outcomes[i]
		for _, minerID := range sortedKeys(o.Responses) {
			resp := o.Responses[minerID]
			verdicts := o.Verdicts[minerID]
			record := p.engine.Score(rc, o.Statement, resp, verdicts)
			o.Records = append(o.Records, record)
			records = append(records, record)
			entries = append(entries, model.RoundLogEntry{
				RoundID:     rc.ID,
				RoundSeq:    rc.Seq,
				StatementID: o.Statement.ID,
				MinerID:     minerID,
				Response:    resp,
				Verdicts:    verdicts,
				Score:       record,
			})
		}
	}
	if err := rc.Advance(round.Scored, time.Now()); err != nil {
		return nil, err
	}

	p.history.Append(records...)
	if err := p.log.Append(ctx, entries...); err != nil {
		p.logger.Error("round log append failed", "round", rc.ID, "entries", len(entries), "error", err)
	}

	// 4. Aggregate and publish
	window := p.history.Window(p.cfg.Aggregator.WindowRounds)
	vector := p.publisher.Publish(p.aggregator.Aggregate(window, minerIDs))
	if err := rc.Advance(round.Aggregated, time.Now()); err != nil {
		return nil, err
	}
	metrics.RecordWeights(vector)

	if err := p.log.SaveWeights(ctx, vector); err != nil {
		p.logger.Error("saving weights failed", "version", vector.Version, "error", err)
	}
	if len(vector.Suspects) > 0 {
		p.logger.Warn("suspected collusion", "round", rc.ID, "pairs", len(vector.Suspects))
	}

	// 5. Emit
	if p.emitter != nil {
		if err := p.emitter.Emit(ctx, vector); err != nil {
			p.logger.Error("emission failed", "version", vector.Version, "error", err)
		}
	}

	return &RoundResult{Round: rc, Statements: outcomes, Vector: vector}, nil
}

// crossCheck reviews the sampled ok results of one statement
func (p *Pipeline) crossCheck(ctx context.Context, rc *round.Context, o *StatementOutcome, minerIDs []string, current *model.WeightVector) {
	var okIDs []string
	for _, id := range sortedKeys(o.Responses) {
		if o.Responses[id].OK() {
			okIDs = append(okIDs, id)
		}
	}

	targets := crosscheck.SampleTargets(rc.ID, o.Statement.ID, okIDs, p.cfg.CrossCheck.PerStatement)
	verdicts := make([][]model.CrossValidationVerdict, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		g.Go(func() error {
			reviewers := crosscheck.SelectReviewers(rc.ID, o.Statement.ID, target, minerIDs,
				weights.Partners(current, target), p.cfg.CrossCheck.Reviewers)
			verdicts[i] = p.cross.CrossCheck(gctx, rc, o.Statement, o.Responses[target].Result, reviewers, 0)
			return nil
		})
	}
	_ = g.Wait()

	for i, target := range targets {
		o.Verdicts[target] = verdicts[i]
	}
}

// forEachStatement runs fn for every statement with bounded concurrency.
// Each call owns its outcome slot.
func (p *Pipeline) forEachStatement(ctx context.Context, outcomes []StatementOutcome, fn func(context.Context, *StatementOutcome)) {
	g, gctx := errgroup.WithContext(ctx)
	if n := p.cfg.Round.StatementConcurrency; n > 0 {
		g.SetLimit(n)
	}
	for i := range outcomes {
		g.Go(func() error {
			fn(gctx, &outcomes[i])
			return nil
		})
	}
	_ = g.Wait()
}

// Run runs rounds every interval until ctx is cancelled. A failed round is
// logged and the loop continues.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = p.cfg.Round.Interval
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunRound(ctx); err != nil && ctx.Err() != nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func sortedKeys(m map[string]model.MinerResponse) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
