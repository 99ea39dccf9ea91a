package main

import (
	"context"
	"fmt"
	"time"

	"landedcost/internal/config"
	"landedcost/internal/core"
	"landedcost/internal/db"
	"landedcost/internal/logging"

	"github.com/jackc/pgx/v5/pgxpool"
)

// runtime bundles everything a subcommand needs, built fresh per invocation
// the way pgstorm's subcommands each call config.Load/logging.New rather
// than sharing mutable package-level state.
type runtime struct {
	cfg     *config.Config
	logger  logging.Logger
	pool    *pgxpool.Pool
	service *core.Service
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(logging.Config{Level: "info", Format: "console"})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database pool: %w", err)
	}

	loc, err := time.LoadLocation(cfg.ReportingTimezone)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("invalid reporting_timezone: %w", err)
	}

	svc := core.NewService(pool, logger, core.ServiceConfig{
		OrderLabel:        cfg.OrderLabel,
		ReportingTZ:       loc,
		AllowNegativeLots: cfg.AllowNegativeLots,
		WriterTimeout:     cfg.WriterTimeout,
		NonBlockingWriter: cfg.NonBlockingWriter,
	})

	return &runtime{cfg: cfg, logger: logger, pool: pool, service: svc}, nil
}

func (r *runtime) Close() {
	r.pool.Close()
	_ = r.logger.Sync()
}

func effectiveTenant() string {
	return core.DefaultTenant(tenant)
}

func printWarnings(warnings []core.Warning) {
	for _, w := range warnings {
		fmt.Printf("  warning[%s]: %s\n", w.Kind, w.Message)
	}
}
