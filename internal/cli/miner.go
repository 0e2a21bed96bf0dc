package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/veritas/internal/cache"
	"github.com/ppiankov/veritas/internal/extract"
	"github.com/ppiankov/veritas/internal/llm"
	"github.com/ppiankov/veritas/internal/miner"
	"github.com/ppiankov/veritas/internal/model"
)

var (
	minerAddr       string
	minerReferences []string
	noCache         bool
)

var minerCmd = &cobra.Command{
	Use:   "miner",
	Short: "Run the reference miner node",
}

// minerServeCmd serves verification and review requests
var minerServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve verification and blind review requests",
	Long: `Serve answers validator requests on POST /v1/verify and POST /v1/review.

Statements are verified by a chat model (miner.provider: openai or deepseek)
and by reference web pages (miner.references, URL templates where %s is the
statement). The first capability that answers decides the verdict; evidence
from the others is merged in.

Example:
  OPENAI_API_KEY=sk-... veritas miner serve --addr :8091
  veritas miner serve --reference "https://en.wikipedia.org/w/index.php?search=%s"`,
	RunE: runMiner,
}

func init() {
	rootCmd.AddCommand(minerCmd)
	minerCmd.AddCommand(minerServeCmd)

	minerServeCmd.Flags().StringVar(&minerAddr, "addr", "", "listen address (default: miner.addr)")
	minerServeCmd.Flags().StringSliceVar(&minerReferences, "reference", nil, "reference URL template, repeatable (adds to miner.references)")
	minerServeCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the answer cache")
}

func runMiner(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	capability, err := buildCapability(cfg, append(cfg.Miner.References, minerReferences...), !noCache)
	if err != nil {
		return err
	}

	addr := cfg.Miner.Addr
	if minerAddr != "" {
		addr = minerAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return miner.NewServer(cfg.Miner.ID, capability, logger).ListenAndServe(ctx, addr)
}

// buildCapability assembles the chat model and web capabilities behind an
// optional layered cache
func buildCapability(cfg *model.Config, references []string, cached bool) (miner.Capability, error) {
	logger := newLogger(cfg)

	chat, err := llm.New(llm.ConfigFromModel(cfg.Miner, cfg.Transport))
	if err != nil {
		return nil, err
	}

	var capabilities []miner.Capability
	if chat != nil {
		capabilities = append(capabilities, chat)
	}
	if len(references) > 0 {
		fetcher := extract.NewFetcher(cfg.Miner.Timeout, cfg.Miner.UserAgent, cfg.Transport.MaxBodyBytes, true,
			cfg.Transport.HTTPProxy, cfg.Transport.HTTPSProxy, cfg.Transport.NoProxy)
		capabilities = append(capabilities, extract.NewWebCapability(fetcher, references, logger))
	}

	composite := miner.NewComposite(logger, capabilities...)
	if composite.Len() == 0 {
		return nil, fmt.Errorf("no miner capability configured: set miner.provider or miner.references")
	}
	if !cached {
		return composite, nil
	}

	answers := cache.NewLayeredCache(cfg.Miner.CacheTTL, cfg.Miner.CacheDir, cfg.Miner.CacheTTL)
	return miner.NewCached(composite, answers, "claim", cfg.Miner.CacheTTL), nil
}
