package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/veritas/internal/emit"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/pipeline"
	"github.com/ppiankov/veritas/internal/server"
	"github.com/ppiankov/veritas/internal/source"
	"github.com/ppiankov/veritas/internal/store"
	"github.com/ppiankov/veritas/internal/transport"
)

var (
	runOnce     bool
	runInterval time.Duration
	statements  string
)

var validatorCmd = &cobra.Command{
	Use:   "validator",
	Short: "Run the validator",
}

// validatorRunCmd runs validator rounds
var validatorRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run validator rounds against the configured miner roster",
	Long: `Run dispatches statements to every miner in the roster, collects their
answers, cross-checks a sample, scores every miner and publishes a new weight
vector each round.

Example:
  veritas validator run --statements statements.yaml
  veritas validator run --once
  veritas validator run --interval 2m`,
	RunE: runValidator,
}

func init() {
	rootCmd.AddCommand(validatorCmd)
	validatorCmd.AddCommand(validatorRunCmd)

	validatorRunCmd.Flags().BoolVar(&runOnce, "once", false, "run a single round and exit")
	validatorRunCmd.Flags().DurationVar(&runInterval, "interval", 0, "time between rounds (default: round.interval)")
	validatorRunCmd.Flags().StringVar(&statements, "statements", "", "statement file (overrides source.path)")
}

func runValidator(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if statements != "" {
		cfg.Source.Path = statements
	}
	if cfg.Source.Path == "" {
		return fmt.Errorf("no statement source: set source.path or pass --statements")
	}
	if len(cfg.Roster) == 0 {
		return fmt.Errorf("empty miner roster: add miners under 'roster' in the config file")
	}

	logger := newLogger(cfg)

	src, err := source.NewFileSource(cfg.Source.Path, cfg.Source.Seed)
	if err != nil {
		return fmt.Errorf("load statements: %w", err)
	}

	roster, err := transport.NewRoster(cfg.Roster)
	if err != nil {
		return err
	}

	roundLog, err := store.Open(cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open round log: %w", err)
	}
	defer func() { _ = roundLog.Close() }()

	emitters := emit.Multi{emit.NewLogEmitter(logger)}
	if cfg.Emit.Path != "" {
		emitters = append(emitters, emit.NewFileEmitter(cfg.Emit.Path))
	}

	p := pipeline.New(cfg, pipeline.Deps{
		Source:  src,
		Client:  transport.NewHTTPClient(roster, cfg.Transport, cfg.ValidatorID, logger),
		Roster:  roster,
		Log:     roundLog,
		Emitter: emitters,
		Logger:  logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Restore(ctx); err != nil {
		return err
	}

	if cfg.Server.Enabled && !runOnce {
		status := server.New(p.Publisher(), roundLog, logger)
		go func() {
			if err := status.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
				logger.Error("status API stopped", "error", err)
			}
		}()
	}

	if runOnce {
		result, err := p.RunRound(ctx)
		if err != nil {
			return err
		}
		printRound(cmd.OutOrStdout(), result)
		return nil
	}

	err = p.Run(ctx, runInterval)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printRound(w io.Writer, result *pipeline.RoundResult) {
	_, _ = fmt.Fprintf(w, "Round %s (seq %d) finished in %v\n\n", result.Round.ID, result.Round.Seq, result.Duration.Round(time.Millisecond))

	for _, o := range result.Statements {
		_, _ = fmt.Fprintf(w, "Statement %s: %s\n", o.Statement.ID, o.Statement.Text)
		for _, r := range o.Records {
			resp := o.Responses[r.MinerID]
			_, _ = fmt.Fprintf(w, "  %-16s %-14s composite=%.3f penalty=%.3f\n", r.MinerID, resp.Outcome, r.CompositeScore, r.CrossValidationPenalty)
		}
	}

	_, _ = fmt.Fprintln(w)
	printWeights(w, result.Vector)
}

func printWeights(w io.Writer, vector *model.WeightVector) {
	_, _ = fmt.Fprintf(w, "Weights v%d (round seq %d)\n", vector.Version, vector.RoundSeq)

	ids := make([]string, 0, len(vector.Weights))
	for id := range vector.Weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		line := fmt.Sprintf("  %-16s %.6f", id, vector.Weights[id])
		if d, ok := vector.Dampening[id]; ok && d < 1 {
			line += fmt.Sprintf("  dampened x%.2f", d)
		}
		_, _ = fmt.Fprintln(w, line)
	}
	for _, pair := range vector.Suspects {
		_, _ = fmt.Fprintf(w, "  suspect pair %s/%s: %d shared, similarity %.2f\n", pair.A, pair.B, pair.Shared, pair.Similarity)
	}
}
