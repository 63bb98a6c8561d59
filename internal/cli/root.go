// Package cli implements quizctl, the operator command line for a running
// quizroom deployment.
package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizroom/quizroom-backend/internal/config"
	"github.com/quizroom/quizroom-backend/internal/database"
	"github.com/quizroom/quizroom-backend/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var logLevel string

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "quizctl",
		Short:        "Operator tools for the quizroom backend",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.AddCommand(NewSummaryCmd())
	cmd.AddCommand(NewSweepCmd())
	cmd.AddCommand(NewExportCmd())
	return cmd
}

// deps holds the connections a subcommand needs. Redis is optional: rdb is
// nil when it could not be reached.
type deps struct {
	cfg  *config.Config
	log  zerolog.Logger
	pool *pgxpool.Pool
	rdb  *redis.Client
}

func connect(ctx context.Context, withRedis bool) (*deps, error) {
	cfg := config.Load()
	log := logger.Setup(logLevel, "pretty")

	pool, err := database.NewPostgresPool(ctx, database.PoolOptions{URL: cfg.DatabaseURL, MaxConns: 4}, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	d := &deps{cfg: cfg, log: log, pool: pool}

	if withRedis {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, continuing without it")
		} else {
			d.rdb = rdb
		}
	}
	return d, nil
}

func (d *deps) Close() {
	if d.rdb != nil {
		_ = d.rdb.Close()
	}
	d.pool.Close()
}
