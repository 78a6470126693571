package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/boovboyz/azurerag/cmd/cmdutil"
	"github.com/boovboyz/azurerag/internal/auth"
	"github.com/boovboyz/azurerag/internal/rag"
	"github.com/boovboyz/azurerag/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the RAG API server",
	Long:  `Starts the HTTP server with the query and identity endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bundle, err := cmdutil.NewBundle(cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()

		if !cfg.AuthConfigured() {
			return fmt.Errorf("auth is not configured: set RAG_TENANT_ID or the auth.* settings")
		}
		validator, err := auth.NewValidator(cfg.Auth)
		if err != nil {
			return fmt.Errorf("configure token validator: %w", err)
		}

		chain := rag.NewChain(bundle.LLM, bundle.Store, bundle.LLM, cfg.RAG.TopK)

		r := server.NewRouter(server.RouterOptions{
			Chain:     chain,
			Validator: validator,
			Cfg:       cfg,
		})

		// h2c lets gRPC-style and HTTP/2 clients connect without TLS at
		// the edge.
		h2cHandler := h2c.NewHandler(r, &http2.Server{})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      h2cHandler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s", cfg.ServerAddr)
			if cfg.Auth.AllowAnonymous {
				log.Printf("WARNING: anonymous access enabled on /ask/secure")
			}
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Printf("Received signal %v, shutting down gracefully", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Printf("Server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
