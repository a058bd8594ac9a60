package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/cronexpr"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kebairia/bacli/internal/backup"
	"github.com/kebairia/bacli/internal/logger"
	"github.com/kebairia/bacli/internal/operations"
)

var errNoNextRun = errors.New("cron expression has no future run")

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run scheduled backups and retention on a cron schedule",
	Long: `schedule stays in the foreground, running a scheduled backup followed
by retention every time schedule.cron fires. When schedule.metrics_listen
is set, Prometheus metrics are served on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		s, err := openSession(cmd.Context(), reg)
		if err != nil {
			return err
		}
		defer s.close()

		expr, err := cronexpr.Parse(s.cfg.Schedule.Cron)
		if err != nil {
			return fmt.Errorf("parse schedule.cron %q: %w", s.cfg.Schedule.Cron, err)
		}

		if addr := s.cfg.Schedule.MetricsListen; addr != "" {
			stop := serveMetrics(addr, reg, s.log)
			defer stop()
		}

		sched := &scheduler{
			clock:   clock.WallClock,
			expr:    expr,
			jobs:    s.ops,
			policy:  retentionPolicy(s.cfg.Retention),
			timeout: s.cfg.Backup.Timeout,
			log:     s.log,
		}
		return sched.Run(cmd.Context())
	},
}

// scheduledJobs is the part of the operation manager the scheduler drives.
type scheduledJobs interface {
	RunFullBackup(ctx context.Context, t backup.Type) (*backup.Record, error)
	Prune(ctx context.Context, p operations.Policy) ([]string, error)
}

type scheduler struct {
	clock   clock.Clock
	expr    *cronexpr.Expression
	jobs    scheduledJobs
	policy  operations.Policy
	timeout time.Duration
	log     logger.Logger
}

// Run waits for each cron tick and runs one cycle, until ctx is done. A
// failed cycle is logged and the next tick still fires.
func (s *scheduler) Run(ctx context.Context) error {
	for {
		now := s.clock.Now()
		next := s.expr.Next(now)
		if next.IsZero() {
			return errNoNextRun
		}
		s.log.Info("next scheduled backup", "at", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case <-s.clock.After(next.Sub(now)):
		}
		s.cycle(ctx)
	}
}

// cycle gives the backup and retention a deadline each, so retention still
// runs after a backup that timed out.
func (s *scheduler) cycle(ctx context.Context) {
	backupCtx, cancel := context.WithTimeout(ctx, s.timeout)
	_, err := s.jobs.RunFullBackup(backupCtx, backup.Scheduled)
	cancel()
	if err != nil {
		s.log.Error("scheduled backup failed", "error", err.Error())
	}

	pruneCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.jobs.Prune(pruneCtx, s.policy); err != nil {
		s.log.Error("retention failed", "error", err.Error())
	}
}

// serveMetrics exposes reg on addr and returns a function shutting the
// server down.
func serveMetrics(addr string, reg *prometheus.Registry, log logger.Logger) func() {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err.Error())
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
