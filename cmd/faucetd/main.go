package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"faucet-gateway/faucet"
	"faucet-gateway/faucet/application"
	"faucet-gateway/faucet/authority"
	"faucet-gateway/faucet/infra"
	"faucet-gateway/faucet/metrics"
	"faucet-gateway/faucet/token"
	"faucet-gateway/internal/logger"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// Preenchidos via -ldflags no build.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	envFileFlag := flag.String("env-file", "", "load environment variables from this file before reading config")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("faucetd %s (%s)\n", version, commit)
		return nil
	}

	if *envFileFlag != "" {
		if err := godotenv.Load(*envFileFlag); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg, err := readConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	log := logger.New(logger.Options{Verbose: *verboseFlag, JSON: cfg.logJSON})
	metrics.BuildInfo.WithLabelValues(version, commit, cfg.ledgerBackend).Set(1)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rdb *redis.Client
	if cfg.usesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			return fmt.Errorf("redis ping error: %w", err)
		}
	}

	ledger, err := openLedger(ctx, cfg, log, rdb)
	if err != nil {
		return err
	}
	defer func() {
		if cfg.ledgerBackend != backendRedis {
			_ = ledger.Close()
		}
	}()

	engine, err := application.NewEngine(application.Config{
		Logger:  log,
		Ledger:  ledger,
		Deriver: authority.New(cfg.programID, cfg.cooldownScope),
		Token:   token.New(),
	})
	if err != nil {
		return err
	}

	store := infra.NewStore(cfg.rateRPS, cfg.rateBurst,
		infra.WithIdleTTL(cfg.rateIdleTTL),
		infra.WithCleanupEvery(cfg.rateCleanupEvery),
	)
	var throttle *faucet.ThrottleOptions
	if cfg.rateEnabled {
		throttle = &faucet.ThrottleOptions{
			Store:               store,
			KeyHeader:           cfg.rateKeyHeader,
			TrustXForwardedFor:  cfg.trustXFF,
			RejectStatus:        http.StatusTooManyRequests,
			RetryAfter:          cfg.retryAfter,
			AddRateLimitHeaders: cfg.addHeaders,
		}
	}

	h, err := faucet.NewHandler(faucet.Config{
		Logger:   log,
		Engine:   engine,
		Stats:    newStatsStore(cfg, rdb),
		Throttle: throttle,
		Concurrency: faucet.ConcurrencyOptions{
			Max:            cfg.concurrencyMax,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: cfg.concurrencyTimeout,
		},
		MaxBodyBytes: cfg.maxBodyBytes,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	log.Info("faucet listening",
		"addr", cfg.listenAddr, "program_id", cfg.programID, "cooldown_scope", cfg.cooldownScope,
		"ledger", cfg.ledgerBackend, "version", version)
	log.Info("rate", "enabled", cfg.rateEnabled, "rps", cfg.rateRPS, "burst", cfg.rateBurst,
		"key_header", cfg.rateKeyHeader, "trust_xff", cfg.trustXFF)
	log.Info("stats", "enabled", cfg.statsEnabled, "backend", cfg.statsBackend, "bucket", cfg.statsBucket,
		"ttl", cfg.statsTTL, "track_assets", cfg.statsTrackAssets)
	log.Info("concurrency", "max", cfg.concurrencyMax, "acquire_timeout", cfg.concurrencyTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	if cfg.rateEnabled {
		g.Go(func() error { return store.RunJanitor(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("faucet stopped")
	return nil
}
