package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const healthProbeText = "health check"

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the configured embedding provider answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			out := cmd.OutOrStdout()

			emb, info, err := newEmbedder(logger)
			if err != nil {
				_, _ = fmt.Fprintf(out, "%s: FAIL (%v)\n", cfg.Provider, err)
				return fmt.Errorf("health: %w", err)
			}
			defer func() { _ = emb.Close() }()

			start := time.Now()
			vec, err := emb.Embed(cmd.Context(), healthProbeText)
			if err != nil {
				_, _ = fmt.Fprintf(out, "%s (%s): FAIL (%v)\n", info.Provider, info.Model, err)
				return fmt.Errorf("health: %w", err)
			}
			_, _ = fmt.Fprintf(out, "%s (%s): OK dimension=%d latency=%s\n",
				info.Provider, info.Model, len(vec), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
