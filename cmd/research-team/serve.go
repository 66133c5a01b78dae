package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/dshills/research-team/api"
)

func serveCmd(load loader) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)

			a, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(context.Background()); err != nil {
					logger.Printf("Close error: %v", err)
				}
			}()

			var mw []echo.MiddlewareFunc
			if a.tracer != nil {
				mw = append(mw, otelecho.Middleware("research-team", otelecho.WithTracerProvider(a.tracer)))
			}
			e := api.NewEcho(api.NewServer(a.engine, a.registry), mw...)

			server := &http.Server{
				Addr:         cfg.Addr(),
				Handler:      e,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			serverErrors := make(chan error, 1)
			go func() {
				logger.Printf("Server starting on %s (provider %s, store %s)", cfg.Addr(), cfg.Provider, cfg.StoreDriver)
				serverErrors <- server.ListenAndServe()
			}()

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(shutdown)

			select {
			case err := <-serverErrors:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case sig := <-shutdown:
				logger.Printf("Shutdown signal received: %v", sig)

				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				stopServer(ctx, server, logger)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides PORT)")
	return cmd
}

type stoppable interface {
	Shutdown(ctx context.Context) error
	Close() error
}

// stopServer drains in-flight requests and falls back to closing every
// connection when draining fails.
func stopServer(ctx context.Context, server stoppable, logger *log.Logger) {
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("Server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			logger.Printf("Server close error: %v", err)
		}
		return
	}
	logger.Printf("Server stopped gracefully")
}
