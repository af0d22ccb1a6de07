package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Ontotext-AD/embedding-model-clients/internal/api"
)

const httpShutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/JSON embedding API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			emb, info, err := newEmbedder(logger)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			srv := api.NewServer(emb, info, logger, cfg.API.AuthToken, cfg.API.MaxBodyBytes)
			if cfg.API.AuthToken == "" {
				logger.Warn("HTTP API: auth is DISABLED; set EMBEDDING_CLIENTS_API_AUTH_TOKEN or api.auth_token for production use")
			}

			httpSrv := &http.Server{
				Addr:              cfg.API.ListenAddr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      120 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				logger.Info("HTTP API server starting", "addr", cfg.API.ListenAddr, "provider", info.Provider, "model", info.Model)
				if listenErr := httpSrv.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
					return fmt.Errorf("serve: HTTP server: %w", listenErr)
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				logger.Info("shutting down")
				// Stop taking requests first so in-flight ones can still use the embedder.
				if shutdownErr := api.Shutdown(httpSrv, httpShutdownTimeout); shutdownErr != nil {
					logger.Warn("HTTP graceful shutdown incomplete", "error", shutdownErr)
				}
				if closeErr := emb.Close(); closeErr != nil && !errors.Is(closeErr, context.Canceled) {
					return fmt.Errorf("serve: closing embedder: %w", closeErr)
				}
				return nil
			})

			return g.Wait()
		},
	}
	return cmd
}
