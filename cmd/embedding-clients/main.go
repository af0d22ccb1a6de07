package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ontotext-AD/embedding-model-clients/internal/api"
	"github.com/Ontotext-AD/embedding-model-clients/internal/config"
	"github.com/Ontotext-AD/embedding-model-clients/internal/embedder"
	"github.com/Ontotext-AD/embedding-model-clients/internal/graphwise"
)

var (
	cfg        *config.Config
	configFile string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "embedding-clients",
		Short: "Text embedding clients for Graphwise Transformer, OpenAI and local models",
		Long: "embedding-clients turns text into vectors through one of several interchangeable providers. " +
			"The default provider talks to a Graphwise Transformer inference service over gRPC.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if configFile != "" {
				cfg, err = config.LoadFile(configFile)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $HOME/.embedding-clients/config.yaml)")

	rootCmd.AddCommand(
		embedCmd(),
		serveCmd(),
		healthCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch strings.ToLower(cfg.Logging.Level) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newEmbedder builds the embedder selected by the provider key. The caller
// owns the result and must Close it.
func newEmbedder(logger *slog.Logger) (embedder.Embedder, api.Info, error) {
	switch cfg.Provider {
	case config.ProviderGraphwise:
		clientCfg, err := cfg.Graphwise.ClientConfig()
		if err != nil {
			return nil, api.Info{}, err
		}
		c, err := graphwise.NewClient(clientCfg, logger)
		if err != nil {
			return nil, api.Info{}, err
		}
		return c, api.Info{Provider: cfg.Provider, Model: c.Model()}, nil

	case config.ProviderOpenAI:
		o := embedder.NewOpenAIEmbedderWithURL(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Dimensions, logger)
		return o, api.Info{Provider: cfg.Provider, Model: o.Model()}, nil

	case config.ProviderLocal:
		l, err := embedder.NewLocalEmbedder(cfg.Local.Model, cfg.Local.Dimension, logger)
		if err != nil {
			return nil, api.Info{}, err
		}
		return l, api.Info{Provider: cfg.Provider, Model: cfg.Local.Model}, nil

	case config.ProviderOllama:
		o := embedder.NewOllamaEmbedder(cfg.Ollama.BaseURL, cfg.Ollama.Model, cfg.Ollama.Dimension, logger)
		return o, api.Info{Provider: cfg.Provider, Model: cfg.Ollama.Model}, nil
	}
	return nil, api.Info{}, fmt.Errorf("unknown provider %q", cfg.Provider)
}
