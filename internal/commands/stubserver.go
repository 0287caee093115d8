package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spendsense/operator-console/internal/logging"
	"github.com/spendsense/operator-console/internal/stubserver"
)

func newStubServerCmd() *cobra.Command {
	var (
		addr  string
		token string
	)

	cmd := &cobra.Command{
		Use:    "stub-server",
		Short:  "Run an in-memory SpendSense API for local development",
		Hidden: true,
		Long: `Run an in-memory SpendSense API seeded with demo users and
recommendations, including the realtime WebSocket channels.

  spendsense stub-server --addr :8000
  SPENDSENSE_API_URL=http://localhost:8000 SPENDSENSE_TOKEN=dev spendsense`,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := "info"
			if verbose {
				level = "debug"
			}
			logger := logging.New(false, level, cmd.ErrOrStderr())

			opts := []stubserver.Option{stubserver.WithLogger(logger)}
			if token != "" {
				opts = append(opts, stubserver.WithToken(token))
			}
			stub := stubserver.New(opts...)
			defer stub.Close()

			srv := &http.Server{Addr: addr, Handler: stub.Handler(), ReadHeaderTimeout: 5 * time.Second}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.WithField("addr", addr).Info("stub API listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("stub server failed: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down stub API")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8000", "Listen address")
	cmd.Flags().StringVar(&token, "token", "", "Require this bearer token")
	return cmd
}
