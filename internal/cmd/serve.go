package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmgilman/kryzon/internal/metrics"
	"github.com/jmgilman/kryzon/internal/slogger"
)

// Metrics server timeouts.
const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciliation daemon",
	Long: `Run the reconciliation daemon until interrupted.

On startup the challenge network is created if missing and port
reservations are rebuilt from running containers. The sweeper then runs
every sweeper.interval. When metrics.addr is set, Prometheus metrics are
served on /metrics alongside a /healthz probe.`,
	Example: `  # Sweep every 5 minutes and expose metrics on :9090
  kryzon serve --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := slogger.L(ctx)

	a, err := requireApp(ctx)
	if err != nil {
		return err
	}

	addr, err := cmd.Flags().GetString("metrics-addr")
	if err != nil {
		return fmt.Errorf("get metrics-addr flag: %w", err)
	}
	if addr == "" {
		addr = a.cfg.Metrics.Addr
	}

	if err := a.runtime.EnsureNetwork(ctx); err != nil {
		return fmt.Errorf("ensure network: %w", err)
	}

	reserved, err := a.sweeper.RebuildPorts(ctx)
	if err != nil {
		return fmt.Errorf("rebuild port reservations: %w", err)
	}
	log.Info("rebuilt port reservations", "reserved", reserved)

	metrics.Register()
	metrics.RecordReservedPorts(reserved)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.sweeper.Run(ctx)
	})

	g.Go(func() error {
		return recordStats(ctx, a)
	})

	if addr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, addr)
		})
	}

	err = g.Wait()
	log.Info("shutting down")
	return err
}

// recordStats refreshes the instance gauges every sweep interval.
func recordStats(ctx context.Context, a *app) error {
	ticker := time.NewTicker(a.cfg.Sweeper.Interval)
	defer ticker.Stop()

	for {
		stats, err := a.sweeper.Stats(ctx)
		if err != nil {
			slogger.L(ctx).Warn("collect stats", "error", err)
		} else {
			metrics.RecordStats(stats)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// serveMetrics serves /metrics and /healthz until ctx is done.
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slogger.L(ctx).Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("metrics-addr", "", "listen address for /metrics (overrides metrics.addr)")
}
