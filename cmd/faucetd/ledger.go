package main

import (
	"context"
	"fmt"
	"log/slog"

	"faucet-gateway/faucet/domain"
	"faucet-gateway/faucet/infra"
	"faucet-gateway/internal/retry"

	"github.com/redis/go-redis/v9"
)

func openLedger(ctx context.Context, cfg config, log *slog.Logger, rdb *redis.Client) (domain.Ledger, error) {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.ledgerRetryAttempts

	switch cfg.ledgerBackend {
	case backendRedis:
		return infra.NewRedisLedger(rdb,
			infra.WithLedgerPrefix(cfg.ledgerRedisPrefix),
			infra.WithLedgerRetry(rc),
			infra.WithLedgerLogger(log),
		), nil

	case backendPostgres:
		pg := infra.PostgresConfig{
			Host:     cfg.postgresHost,
			Port:     cfg.postgresPort,
			Database: cfg.postgresDB,
			Username: cfg.postgresUser,
			Password: cfg.postgresPassword,
			SSLMode:  cfg.postgresSSLMode,
			MaxConns: int32(cfg.postgresMaxConns),
		}
		if cfg.postgresMigrate {
			if err := infra.MigratePostgres(pg.ConnString()); err != nil {
				return nil, err
			}
			log.Info("postgres migrations applied", "host", pg.Host, "database", pg.Database)
		}
		pool, err := infra.OpenPostgres(ctx, pg.ConnString(), pg.MaxConns)
		if err != nil {
			return nil, err
		}
		return infra.NewPostgresLedger(pool,
			infra.WithPostgresRetry(rc),
			infra.WithPostgresLogger(log),
		), nil

	case backendMemory:
		log.Warn("using in-memory ledger; state is lost on restart")
		return infra.NewMemoryLedger(), nil
	}
	return nil, fmt.Errorf("unknown ledger backend %q", cfg.ledgerBackend)
}

func newStatsStore(cfg config, rdb *redis.Client) domain.StatsStore {
	if !cfg.statsEnabled {
		return nil
	}
	if cfg.statsBackend == backendRedis {
		return infra.NewRedisStatsStore(rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
			infra.WithStatsTrackAssets(cfg.statsTrackAssets),
		)
	}
	return infra.NewMemoryStatsStore(infra.WithTrackAssets(cfg.statsTrackAssets))
}
