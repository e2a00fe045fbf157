package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"faucet-gateway/faucet/authority"

	"github.com/gagliardetto/solana-go"
)

type config struct {
	listenAddr string
	logJSON    bool

	programID     solana.PublicKey
	cooldownScope authority.Scope

	ledgerBackend       string
	ledgerRetryAttempts int
	ledgerRedisPrefix   string

	redisAddr     string
	redisPassword string
	redisDB       int

	postgresHost     string
	postgresPort     string
	postgresDB       string
	postgresUser     string
	postgresPassword string
	postgresSSLMode  string
	postgresMaxConns int
	postgresMigrate  bool

	rateEnabled      bool
	rateRPS          float64
	rateBurst        int
	rateKeyHeader    string
	trustXFF         bool
	retryAfter       time.Duration
	addHeaders       bool
	rateIdleTTL      time.Duration
	rateCleanupEvery time.Duration

	concurrencyMax     int
	concurrencyTimeout time.Duration

	statsEnabled     bool
	statsBackend     string
	statsPrefix      string
	statsTTL         time.Duration
	statsBucket      string
	statsTrackAssets bool

	maxBodyBytes int64
}

const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendPostgres = "postgres"
)

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.logJSON = strings.EqualFold(os.Getenv("LOG_FORMAT"), "json")

	programID := strings.TrimSpace(os.Getenv("FAUCET_PROGRAM_ID"))
	if programID == "" {
		return config{}, errors.New("FAUCET_PROGRAM_ID is required")
	}
	id, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return config{}, fmt.Errorf("invalid FAUCET_PROGRAM_ID: %w", err)
	}
	cfg.programID = id

	scope, err := authority.ParseScope(os.Getenv("FAUCET_COOLDOWN_SCOPE"))
	if err != nil {
		return config{}, fmt.Errorf("invalid FAUCET_COOLDOWN_SCOPE: %w", err)
	}
	cfg.cooldownScope = scope

	cfg.ledgerBackend = strings.ToLower(getenvDefault("LEDGER_BACKEND", backendMemory))
	cfg.ledgerRetryAttempts = getenvIntDefault("LEDGER_RETRY_ATTEMPTS", 8)
	cfg.ledgerRedisPrefix = getenvDefault("LEDGER_REDIS_PREFIX", "faucet:ledger")

	cfg.redisAddr = os.Getenv("REDIS_ADDR")
	cfg.redisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.redisDB = getenvIntDefault("REDIS_DB", 0)

	cfg.postgresHost = getenvDefault("POSTGRES_HOST", "localhost")
	cfg.postgresPort = getenvDefault("POSTGRES_PORT", "5432")
	cfg.postgresDB = getenvDefault("POSTGRES_DB", "faucet")
	cfg.postgresUser = getenvDefault("POSTGRES_USER", "faucet")
	cfg.postgresPassword = os.Getenv("POSTGRES_PASSWORD")
	cfg.postgresSSLMode = getenvDefault("POSTGRES_SSLMODE", "disable")
	cfg.postgresMaxConns = getenvIntDefault("POSTGRES_MAX_CONNS", 16)
	cfg.postgresMigrate = getenvBoolDefault("POSTGRES_MIGRATE", true)

	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", true)
	cfg.rateRPS = getenvFloatDefault("RATE_RPS", 5)
	// IMPORTANTE: o "burst" permite uma rajada inicial de requisições.
	// Com RPS muito baixo (ex: 0.02), o padrão 10 pode dar a impressão de que
	// o limiter não está funcionando, porque as primeiras ~10 passam.
	if burst, ok := getenvInt("RATE_BURST"); ok {
		cfg.rateBurst = burst
	} else {
		cfg.rateBurst = 10
		if getenvIsSet("RATE_RPS") && cfg.rateRPS > 0 && cfg.rateRPS < 1 {
			cfg.rateBurst = 1
		}
	}
	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.trustXFF = getenvBoolDefault("TRUST_XFF", false)
	cfg.retryAfter = getenvDurationDefault("RETRY_AFTER", 1*time.Second)
	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)
	cfg.rateIdleTTL = getenvDurationDefault("RATE_IDLE_TTL", 15*time.Minute)
	cfg.rateCleanupEvery = getenvDurationDefault("RATE_CLEANUP_EVERY", 2*time.Minute)

	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 64)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 2*time.Second)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsBackend = strings.ToLower(getenvDefault("STATS_BACKEND", backendMemory))
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "faucet:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")
	cfg.statsTrackAssets = getenvBoolDefault("STATS_TRACK_ASSETS", false)

	cfg.maxBodyBytes = int64(getenvIntDefault("MAX_BODY_BYTES", 16<<10))

	switch cfg.ledgerBackend {
	case backendMemory, backendPostgres:
	case backendRedis:
		if strings.TrimSpace(cfg.redisAddr) == "" {
			return config{}, errors.New("REDIS_ADDR is required when LEDGER_BACKEND=redis")
		}
	default:
		return config{}, fmt.Errorf("LEDGER_BACKEND must be memory, redis or postgres, got %q", cfg.ledgerBackend)
	}
	if cfg.ledgerRetryAttempts < 1 {
		return config{}, errors.New("LEDGER_RETRY_ATTEMPTS must be >= 1")
	}

	if cfg.statsEnabled {
		switch cfg.statsBackend {
		case backendMemory:
		case backendRedis:
			if strings.TrimSpace(cfg.redisAddr) == "" {
				return config{}, errors.New("REDIS_ADDR is required when STATS_BACKEND=redis")
			}
		default:
			return config{}, fmt.Errorf("STATS_BACKEND must be memory or redis, got %q", cfg.statsBackend)
		}
	}

	if cfg.rateRPS <= 0 {
		return config{}, errors.New("RATE_RPS must be > 0")
	}
	if cfg.rateBurst <= 0 {
		return config{}, errors.New("RATE_BURST must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

// usesRedis diz se algum componente precisa do cliente Redis.
func (c config) usesRedis() bool {
	return c.ledgerBackend == backendRedis || (c.statsEnabled && c.statsBackend == backendRedis)
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvInt(k string) (int, bool) {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func getenvIsSet(k string) bool {
	v, ok := os.LookupEnv(k)
	return ok && v != ""
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
