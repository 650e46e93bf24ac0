package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/torosent/apicontract/internal/stubapi"
)

func newStubCommand(stderr io.Writer) *cobra.Command {
	var (
		addr     string
		token    string
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve the built-in banking API that the sample cases target",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(stderr, logLevel)
			srv := &http.Server{
				Addr:              addr,
				Handler:           stubapi.New(stubapi.Options{Token: token, Logger: logger}),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("stub API listening", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			logger.Info("shutting down stub API")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&token, "token", "", "Require this bearer token on protected routes")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	return cmd
}
