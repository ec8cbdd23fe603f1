// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/config"
	"github.com/orderdesk/orderdesk/internal/core"
	"github.com/orderdesk/orderdesk/internal/logging"
	"github.com/orderdesk/orderdesk/internal/observability"
	"github.com/orderdesk/orderdesk/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

// ObservabilityServer is the subset of observability.Server serve uses.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	SetVersion(version string)
}

// ServeDeps contains injectable dependencies for the serve command.
// Nil fields use their default implementations.
type ServeDeps struct {
	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, report observability.ReadinessReporter, logger *slog.Logger) ObservabilityServer

	// EngineFactory builds the engine from assembled options.
	// Default: core.NewEngine
	EngineFactory func(opts core.Options) (*core.Engine, error)
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmdWithDeps(nil)
}

func newServeCmdWithDeps(deps *ServeDeps) *cobra.Command {
	def := config.Default()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the security core until interrupted",
		Long: `Load configuration, seed the configured accounts, and run the engine
with its metrics and health endpoints until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, deps)
		},
	}

	cmd.Flags().String("log-format", def.Log.Format, "log format (json or text)")
	cmd.Flags().String("log-level", def.Log.Level, "log level (debug, info, warn, error)")
	cmd.Flags().String("metrics-addr", def.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().Bool("audit-mirror", def.Audit.Mirror, "mirror audit entries to a JSONL file")

	return cmd
}

func runServe(cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, report observability.ReadinessReporter, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, report, observability.WithLogger(logger))
		}
	}
	if deps.EngineFactory == nil {
		deps.EngineFactory = core.NewEngine
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return oops.Wrapf(err, "load configuration")
	}
	logger := logging.Setup("orderdesk", version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := buildEngine(cfg, logger, deps.EngineFactory)
	if err != nil {
		errutil.LogError(logger, "failed to build engine", err)
		return err
	}
	defer func() {
		if closeErr := engine.Close(); closeErr != nil {
			errutil.LogError(logger, "failed to close engine", closeErr)
		}
	}()

	accounts, err := cfg.SeedAccounts()
	if err != nil {
		return err
	}
	created, err := engine.Seed(ctx, accounts)
	if err != nil {
		errutil.LogError(logger, "failed to seed accounts", err)
		return err
	}
	logger.InfoContext(ctx, "accounts seeded", "created", created, "users", engine.Users().Count())

	if cfg.Metrics.Addr != "" {
		obs := deps.ObservabilityServerFactory(cfg.Metrics.Addr, readinessReport(engine), logger)
		obs.SetVersion(version)
		obsErrCh, err := obs.Start()
		if err != nil {
			return oops.With("addr", cfg.Metrics.Addr).Wrapf(err, "start observability server")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if stopErr := obs.Stop(shutdownCtx); stopErr != nil {
				errutil.LogError(logger, "error stopping observability server", stopErr)
			}
		}()
		go monitorServerErrors(ctx, stop, obsErrCh, logger)
		logger.InfoContext(ctx, "observability server started", "addr", obs.Addr())
	}

	cmd.Println("OrderDesk core ready")
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// buildEngine assembles an Engine from configuration. The audit log is
// closed again if newEngine fails, stopping any mirror it started.
func buildEngine(cfg config.Config, logger *slog.Logger, newEngine func(core.Options) (*core.Engine, error)) (*core.Engine, error) {
	params, err := cfg.ScryptParams()
	if err != nil {
		return nil, err
	}
	hasher, err := auth.NewScryptHasher(params)
	if err != nil {
		return nil, err
	}
	routes, err := cfg.RouteGate()
	if err != nil {
		return nil, err
	}

	logOpts := []audit.Option{audit.WithCapacity(cfg.Audit.Capacity), audit.WithLogger(logger)}
	if cfg.Audit.Mirror {
		sink, err := audit.NewFileSink(cfg.Audit.MirrorPath)
		if err != nil {
			return nil, err
		}
		logger.Info("mirroring audit log", "path", sink.Path())
		logOpts = append(logOpts, audit.WithSink(sink, cfg.Audit.MirrorQueue))
	}

	auditLog := audit.NewLog(logOpts...)
	engine, err := newEngine(core.Options{
		Hasher:         hasher,
		Lockout:        cfg.LockoutPolicy(),
		MinPasswordAge: cfg.Security.MinPasswordAge,
		HistoryLimit:   cfg.Security.PasswordHistory,
		Routes:         routes,
		Audit:          auditLog,
		Logger:         logger,
	})
	if err != nil {
		if closeErr := auditLog.Close(); closeErr != nil {
			errutil.LogError(logger, "failed to close audit log", closeErr)
		}
		return nil, err
	}
	return engine, nil
}

// monitorServerErrors stops the command when a background server fails.
func monitorServerErrors(ctx context.Context, stop context.CancelFunc, errCh <-chan error, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			errutil.LogError(logger, "observability server failed", err)
			stop()
		}
	case <-ctx.Done():
	}
}

// readinessReport exposes the engine's state on the readiness check.
func readinessReport(engine *core.Engine) observability.ReadinessReporter {
	return func() observability.Readiness {
		stats := engine.Stats()
		return observability.Readiness{
			Ready: engine.Ready(),
			Details: map[string]int{
				"users":         stats.Users,
				"sessions":      stats.Sessions,
				"orders":        stats.Orders,
				"audit_entries": stats.AuditEntries,
			},
		}
	}
}
