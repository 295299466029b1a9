package cmd

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
	"golang.org/x/sync/errgroup"

	"github.com/sambabib/depcheck/pkg/logger"
	"github.com/sambabib/depcheck/pkg/metrics"
)

var (
	watchPath     string
	watchInterval time.Duration
	metricsAddr   string
)

// watchCmd re-runs the analysis on an interval, reusing the engine's caches
// between runs, and serves Prometheus metrics.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-analyze dependencies periodically and serve metrics",
	Long: `Run the analysis every --interval until interrupted. Advisory results are
cached between runs for the configured TTL, and counters plus the latest health
score are exposed at /metrics for Prometheus.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchInterval <= 0 {
			return fmt.Errorf("interval must be positive, got %s", watchInterval)
		}
		cfg, err := loadConfig(watchPath)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := metrics.New()
		eng := newEngine(cfg, m)
		return serveAndWatch(ctx, metricsAddr, m, watchInterval, func(ctx context.Context) {
			if _, err := runAnalysis(ctx, eng, cfg, watchPath, cmd.OutOrStdout()); err != nil {
				logger.Errorf("analysis run failed: %v", err)
			}
		})
	},
}

// serveAndWatch serves m on addr (when set) and calls run immediately and
// then once per interval until ctx is done.
func serveAndWatch(ctx context.Context, addr string, m *metrics.Metrics, interval time.Duration, run func(context.Context)) error {
	g, ctx := errgroup.WithContext(ctx)

	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Infof("Serving metrics on %s/metrics", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			run(ctx)
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	return g.Wait()
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&watchPath, "path", "p", ".", "Path to project directory or manifest file to analyze")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Hour, "Time between analysis runs")
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Address for the /metrics endpoint (empty disables it)")
	watchCmd.Flags().StringP("format", "f", "text", "Output format: text, json or sarif")
	watchCmd.Flags().StringP("output", "o", "", "Write each report to this file instead of stdout")
	watchCmd.Flags().Int("concurrency", 0, "Dependencies analyzed at once (default from config)")
}
