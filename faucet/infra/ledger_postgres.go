package infra

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"faucet-gateway/faucet/domain"
	"faucet-gateway/faucet/metrics"
	"faucet-gateway/internal/retry"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver with database/sql
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// PostgresConfig holds the PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     string
	Database string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
}

func (cfg PostgresConfig) ConnString() string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, sslMode,
	)
}

// OpenPostgres creates and pings a connection pool.
func OpenPostgres(ctx context.Context, connStr string, maxConns int32) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

// MigratePostgres applies the embedded ledger migrations with goose.
func MigratePostgres(connStr string) error {
	goose.SetBaseFS(embedMigrations)

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// PostgresLedger roda cada Update numa transação SERIALIZABLE.
//
// Leituras usam FOR UPDATE; falhas de serialização, deadlocks e violações de
// unicidade viram domain.ErrConflict e a transação inteira é reexecutada.
type PostgresLedger struct {
	pool  *pgxpool.Pool
	retry retry.Config
	log   *slog.Logger
}

type PostgresLedgerOption func(*PostgresLedger)

func WithPostgresRetry(cfg retry.Config) PostgresLedgerOption {
	return func(l *PostgresLedger) { l.retry = cfg }
}

func WithPostgresLogger(log *slog.Logger) PostgresLedgerOption {
	return func(l *PostgresLedger) { l.log = log }
}

func NewPostgresLedger(pool *pgxpool.Pool, opts ...PostgresLedgerOption) *PostgresLedger {
	l := &PostgresLedger{
		pool:  pool,
		retry: retry.DefaultConfig(),
		log:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.retry.Retryable = isConflict
	return l
}

var _ domain.Ledger = (*PostgresLedger)(nil)

func (l *PostgresLedger) Update(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return retry.Do(ctx, l.retry, func() error {
		err := pgx.BeginTxFunc(ctx, l.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			return fn(ctx, &pgTx{tx: tx, lock: " FOR UPDATE"})
		})
		if isPgConflict(err) {
			metrics.LedgerConflictsTotal.WithLabelValues("postgres").Inc()
			l.log.Debug("ledger: serialization conflict, retrying", "backend", "postgres", "error", err)
			return fmt.Errorf("%w: %v", domain.ErrConflict, err)
		}
		return err
	})
}

func (l *PostgresLedger) View(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return pgx.BeginTxFunc(ctx, l.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx, readOnly: true})
	})
}

func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}

func isPgConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "23505":
		return true
	}
	return false
}

type pgTx struct {
	tx       pgx.Tx
	lock     string
	readOnly bool
}

func (t *pgTx) Pool(ctx context.Context, asset solana.PublicKey) (domain.Pool, error) {
	var (
		owner, vault      string
		amount, createdAt int64
		p                 = domain.Pool{Asset: asset}
	)
	err := t.tx.QueryRow(ctx,
		`SELECT owner, vault, amount, cooldown, created_at FROM faucet_pools WHERE asset = $1`+t.lock,
		asset.String(),
	).Scan(&owner, &vault, &amount, &p.Cooldown, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Pool{}, domain.ErrPoolNotFound
	}
	if err != nil {
		return domain.Pool{}, fmt.Errorf("load pool: %w", err)
	}
	if p.Owner, err = solana.PublicKeyFromBase58(owner); err != nil {
		return domain.Pool{}, fmt.Errorf("decode pool owner: %w", err)
	}
	if p.Vault, err = solana.PublicKeyFromBase58(vault); err != nil {
		return domain.Pool{}, fmt.Errorf("decode pool vault: %w", err)
	}
	p.Amount = uint64(amount)
	p.CreatedAt = createdAt
	return p, nil
}

func (t *pgTx) CreatePool(ctx context.Context, p domain.Pool) error {
	if t.readOnly {
		return errReadOnly
	}
	amount, err := toBigint(p.Amount)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx,
		`INSERT INTO faucet_pools (asset, owner, vault, amount, cooldown, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (asset) DO NOTHING`,
		p.Asset.String(), p.Owner.String(), p.Vault.String(), amount, p.Cooldown, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pool: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyInitialized
	}
	return nil
}

func (t *pgTx) Account(ctx context.Context, addr solana.PublicKey) (domain.TokenAccount, error) {
	var (
		mint, owner string
		amount      int64
		a           = domain.TokenAccount{Address: addr}
	)
	err := t.tx.QueryRow(ctx,
		`SELECT mint, owner, amount FROM faucet_token_accounts WHERE address = $1`+t.lock,
		addr.String(),
	).Scan(&mint, &owner, &amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TokenAccount{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.TokenAccount{}, fmt.Errorf("load account: %w", err)
	}
	if a.Mint, err = solana.PublicKeyFromBase58(mint); err != nil {
		return domain.TokenAccount{}, fmt.Errorf("decode account mint: %w", err)
	}
	if a.Owner, err = solana.PublicKeyFromBase58(owner); err != nil {
		return domain.TokenAccount{}, fmt.Errorf("decode account owner: %w", err)
	}
	a.Amount = uint64(amount)
	return a, nil
}

func (t *pgTx) PutAccount(ctx context.Context, a domain.TokenAccount) error {
	if t.readOnly {
		return errReadOnly
	}
	amount, err := toBigint(a.Amount)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx,
		`INSERT INTO faucet_token_accounts (address, mint, owner, amount)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (address) DO UPDATE SET mint = EXCLUDED.mint, owner = EXCLUDED.owner, amount = EXCLUDED.amount`,
		a.Address.String(), a.Mint.String(), a.Owner.String(), amount,
	)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

func (t *pgTx) Cooldown(ctx context.Context, addr solana.PublicKey) (domain.CooldownRecord, error) {
	var (
		asset, recipient string
		r                = domain.CooldownRecord{Address: addr}
	)
	err := t.tx.QueryRow(ctx,
		`SELECT asset, last_recipient, last_timestamp FROM faucet_cooldowns WHERE address = $1`+t.lock,
		addr.String(),
	).Scan(&asset, &recipient, &r.LastTimestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CooldownRecord{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.CooldownRecord{}, fmt.Errorf("load cooldown: %w", err)
	}
	if r.Asset, err = solana.PublicKeyFromBase58(asset); err != nil {
		return domain.CooldownRecord{}, fmt.Errorf("decode cooldown asset: %w", err)
	}
	if r.LastRecipient, err = solana.PublicKeyFromBase58(recipient); err != nil {
		return domain.CooldownRecord{}, fmt.Errorf("decode cooldown recipient: %w", err)
	}
	return r, nil
}

func (t *pgTx) PutCooldown(ctx context.Context, r domain.CooldownRecord) error {
	if t.readOnly {
		return errReadOnly
	}
	_, err := t.tx.Exec(ctx,
		`INSERT INTO faucet_cooldowns (address, asset, last_recipient, last_timestamp)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (address) DO UPDATE SET asset = EXCLUDED.asset, last_recipient = EXCLUDED.last_recipient, last_timestamp = EXCLUDED.last_timestamp`,
		r.Address.String(), r.Asset.String(), r.LastRecipient.String(), r.LastTimestamp,
	)
	if err != nil {
		return fmt.Errorf("upsert cooldown: %w", err)
	}
	return nil
}

// toBigint recusa valores que não cabem na coluna BIGINT.
func toBigint(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: amount %d exceeds postgres ledger range", domain.ErrInvalidArgument, v)
	}
	return int64(v), nil
}
