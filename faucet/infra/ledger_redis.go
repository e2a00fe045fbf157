package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"faucet-gateway/faucet/domain"
	"faucet-gateway/faucet/metrics"
	"faucet-gateway/internal/retry"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
)

// RedisLedger guarda os registros como JSON em chaves Redis.
//
// Atomicidade: compare-and-swap otimista. Toda leitura dentro de Update faz
// WATCH da chave antes do GET; as escritas ficam em buffer e vão num único
// MULTI/EXEC. Se outra transação mexeu em alguma chave observada, o EXEC falha
// e fn é reexecutada do zero sobre o estado novo.
type RedisLedger struct {
	rdb    *redis.Client
	prefix string
	retry  retry.Config
	log    *slog.Logger
}

type RedisLedgerOption func(*RedisLedger)

func WithLedgerPrefix(prefix string) RedisLedgerOption {
	return func(l *RedisLedger) { l.prefix = strings.Trim(prefix, ":") }
}

func WithLedgerRetry(cfg retry.Config) RedisLedgerOption {
	return func(l *RedisLedger) { l.retry = cfg }
}

func WithLedgerLogger(log *slog.Logger) RedisLedgerOption {
	return func(l *RedisLedger) { l.log = log }
}

func NewRedisLedger(rdb *redis.Client, opts ...RedisLedgerOption) *RedisLedger {
	l := &RedisLedger{
		rdb:    rdb,
		prefix: "faucet:ledger",
		retry:  retry.DefaultConfig(),
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.retry.Retryable = isConflict
	return l
}

var _ domain.Ledger = (*RedisLedger)(nil)

func (l *RedisLedger) Update(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return retry.Do(ctx, l.retry, func() error {
		err := l.rdb.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &redisTx{ledger: l, cmd: rtx, rtx: rtx, watched: make(map[string]bool), writes: make(map[string][]byte)}
			if err := fn(ctx, tx); err != nil {
				return err
			}
			if len(tx.order) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, key := range tx.order {
					pipe.Set(ctx, key, tx.writes[key], 0)
				}
				return nil
			})
			return err
		})
		if errors.Is(err, redis.TxFailedErr) {
			metrics.LedgerConflictsTotal.WithLabelValues("redis").Inc()
			l.log.Debug("ledger: optimistic conflict, retrying", "backend", "redis")
			return fmt.Errorf("%w: %v", domain.ErrConflict, err)
		}
		return err
	})
}

func (l *RedisLedger) View(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return fn(ctx, &redisTx{ledger: l, cmd: l.rdb, readOnly: true})
}

func (l *RedisLedger) Close() error { return l.rdb.Close() }

func (l *RedisLedger) poolKey(asset solana.PublicKey) string {
	return l.prefix + ":pool:" + asset.String()
}

func (l *RedisLedger) accountKey(addr solana.PublicKey) string {
	return l.prefix + ":account:" + addr.String()
}

func (l *RedisLedger) cooldownKey(addr solana.PublicKey) string {
	return l.prefix + ":cooldown:" + addr.String()
}

type redisTx struct {
	ledger   *RedisLedger
	cmd      redis.Cmdable
	rtx      *redis.Tx
	readOnly bool

	watched map[string]bool
	writes  map[string][]byte
	order   []string
}

// load lê key para dst. Retorna false se a chave não existe.
func (t *redisTx) load(ctx context.Context, key string, dst any) (bool, error) {
	if raw, ok := t.writes[key]; ok {
		return true, json.Unmarshal(raw, dst)
	}
	if t.rtx != nil && !t.watched[key] {
		if err := t.rtx.Watch(ctx, key).Err(); err != nil {
			return false, err
		}
		t.watched[key] = true
	}
	raw, err := t.cmd.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, dst)
}

func (t *redisTx) store(key string, v any) error {
	if t.readOnly {
		return errReadOnly
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, ok := t.writes[key]; !ok {
		t.order = append(t.order, key)
	}
	t.writes[key] = raw
	return nil
}

func (t *redisTx) Pool(ctx context.Context, asset solana.PublicKey) (domain.Pool, error) {
	var p domain.Pool
	ok, err := t.load(ctx, t.ledger.poolKey(asset), &p)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("load pool: %w", err)
	}
	if !ok {
		return domain.Pool{}, domain.ErrPoolNotFound
	}
	return p, nil
}

func (t *redisTx) CreatePool(ctx context.Context, p domain.Pool) error {
	_, err := t.Pool(ctx, p.Asset)
	switch {
	case err == nil:
		return domain.ErrAlreadyInitialized
	case !errors.Is(err, domain.ErrPoolNotFound):
		return err
	}
	return t.store(t.ledger.poolKey(p.Asset), p)
}

func (t *redisTx) Account(ctx context.Context, addr solana.PublicKey) (domain.TokenAccount, error) {
	var a domain.TokenAccount
	ok, err := t.load(ctx, t.ledger.accountKey(addr), &a)
	if err != nil {
		return domain.TokenAccount{}, fmt.Errorf("load account: %w", err)
	}
	if !ok {
		return domain.TokenAccount{}, domain.ErrAccountNotFound
	}
	return a, nil
}

func (t *redisTx) PutAccount(_ context.Context, a domain.TokenAccount) error {
	return t.store(t.ledger.accountKey(a.Address), a)
}

func (t *redisTx) Cooldown(ctx context.Context, addr solana.PublicKey) (domain.CooldownRecord, error) {
	var r domain.CooldownRecord
	ok, err := t.load(ctx, t.ledger.cooldownKey(addr), &r)
	if err != nil {
		return domain.CooldownRecord{}, fmt.Errorf("load cooldown: %w", err)
	}
	if !ok {
		return domain.CooldownRecord{}, domain.ErrRecordNotFound
	}
	return r, nil
}

func (t *redisTx) PutCooldown(_ context.Context, r domain.CooldownRecord) error {
	return t.store(t.ledger.cooldownKey(r.Address), r)
}

func isConflict(err error) bool { return errors.Is(err, domain.ErrConflict) }
