package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/describer/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the description API server",
		Long: `Starts the Describer HTTP API on the specified port.

Endpoints:
  POST   /api/scan                  list eligible images of a page
  POST   /api/analyze               analyze one image (JSON record or upload)
  POST   /api/analyze-all           start a background bulk run
  POST   /api/analyze-all/cancel    stop the bulk run before its next image
  GET    /api/analyze-all/progress  bulk run progress and results
  GET    /api/cache                 cached analysis count
  DELETE /api/cache                 clear cached analyses
  POST   /api/credentials/reload    re-read provider credentials
  GET    /api/providers             provider chain and rate limit headroom`,
		Example: `  # Start server on default port 8888
  describer serve

  # Start server on custom port
  describer serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			// Warm up OCR so the first request does not pay for it
			go func() {
				if err := p.OCR.Init(ctx); err != nil {
					slog.Warn("OCR initialization failed", "err", err)
				}
			}()

			handler := handlers.New(ctx, p)

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Describer API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-ctx.Done():
				slog.Info("Shutting down server...")
				p.Bulk.Cancel()
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")

	return cmd
}
