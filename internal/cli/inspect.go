package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/store"
)

var inspectJSON bool

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Inspect published weight vectors",
}

var weightsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the last published weight vector from the round log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRoundLog(func(ctx context.Context, log store.RoundLog) error {
			vector, err := log.LatestWeights(ctx)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no weights published yet")
			}
			if err != nil {
				return err
			}
			if inspectJSON {
				return writeJSON(cmd.OutOrStdout(), vector)
			}
			printWeights(cmd.OutOrStdout(), vector)
			return nil
		})
	},
}

var roundsCmd = &cobra.Command{
	Use:   "rounds",
	Short: "Inspect the round log",
}

var roundsShowCmd = &cobra.Command{
	Use:   "show <round-id>",
	Short: "Show the audit entries of one round",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRoundLog(func(ctx context.Context, log store.RoundLog) error {
			entries, err := log.Round(ctx, args[0])
			if err != nil {
				return err
			}
			if inspectJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(weightsCmd, roundsCmd)
	weightsCmd.AddCommand(weightsShowCmd)
	roundsCmd.AddCommand(roundsShowCmd)

	weightsShowCmd.Flags().BoolVar(&inspectJSON, "json", false, "print JSON")
	roundsShowCmd.Flags().BoolVar(&inspectJSON, "json", false, "print JSON")
}

func withRoundLog(fn func(ctx context.Context, log store.RoundLog) error) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if cfg.Store.Backend != "badger" {
		return fmt.Errorf("the %q round log does not outlive the validator process; configure store.backend: badger", cfg.Store.Backend)
	}

	log, err := store.Open(cfg.Store, newLogger(cfg))
	if err != nil {
		return fmt.Errorf("open round log: %w", err)
	}
	defer func() { _ = log.Close() }()

	return fn(context.Background(), log)
}

func printEntries(w io.Writer, entries []model.RoundLogEntry) {
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s  %-16s %-14s composite=%.3f", e.StatementID, e.MinerID, e.Response.Outcome, e.Score.CompositeScore)
		if e.Response.Error != "" {
			_, _ = fmt.Fprintf(w, "  error=%q", e.Response.Error)
		}
		_, _ = fmt.Fprintln(w)

		for _, v := range e.Verdicts {
			_, _ = fmt.Fprintf(w, "    reviewer %-16s %-14s agrees=%v\n", v.ReviewerID, v.Outcome, v.Agrees)
		}
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
