package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MrEthical07/authcore/httpapi"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the login API",
		Long: `Serve POST /api/auth/login, GET /api/auth/me, /healthz and /metrics.
The signing section of --config is reloaded when the file changes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts.loader(cmd))
			if err != nil {
				return err
			}
			defer a.Close()

			ln, err := net.Listen("tcp", a.cfg.HTTP.Addr)
			if err != nil {
				return err
			}
			return a.serve(ctx, ln)
		},
	}
}

func (a *app) handler() http.Handler {
	return httpapi.NewRouter(
		httpapi.NewHandler(a.engine, a.log.Named("http")),
		httpapi.RouterConfig{
			Metrics: promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
			Timeout: a.cfg.HTTP.RequestTimeout,
		},
	)
}

// serve runs the HTTP server on ln until ctx is done, then shuts it down
// gracefully.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	if err := a.watcher.Start(); err != nil {
		_ = ln.Close()
		return err
	}

	srv := &http.Server{
		Handler:           a.handler(),
		ReadHeaderTimeout: a.cfg.HTTP.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.log.Info("listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
