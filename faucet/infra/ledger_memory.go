package infra

import (
	"context"
	"errors"
	"sync"

	"faucet-gateway/faucet/domain"

	"github.com/gagliardetto/solana-go"
)

var errReadOnly = errors.New("ledger: write in read-only transaction")

// MemoryLedger é um ledger em memória.
//
// Update é serializado por um único mutex; as escritas ficam num overlay e só
// são aplicadas se fn retornar nil. Útil para testes e para o devnet.
type MemoryLedger struct {
	mu        sync.RWMutex
	pools     map[solana.PublicKey]domain.Pool
	accounts  map[solana.PublicKey]domain.TokenAccount
	cooldowns map[solana.PublicKey]domain.CooldownRecord
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		pools:     make(map[solana.PublicKey]domain.Pool),
		accounts:  make(map[solana.PublicKey]domain.TokenAccount),
		cooldowns: make(map[solana.PublicKey]domain.CooldownRecord),
	}
}

var _ domain.Ledger = (*MemoryLedger)(nil)

func (l *MemoryLedger) Update(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newMemTx(l, false)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for k, v := range tx.pools {
		l.pools[k] = v
	}
	for k, v := range tx.accounts {
		l.accounts[k] = v
	}
	for k, v := range tx.cooldowns {
		l.cooldowns[k] = v
	}
	return nil
}

func (l *MemoryLedger) View(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(ctx, newMemTx(l, true))
}

func (l *MemoryLedger) Close() error { return nil }

type memTx struct {
	base     *MemoryLedger
	readOnly bool

	pools     map[solana.PublicKey]domain.Pool
	accounts  map[solana.PublicKey]domain.TokenAccount
	cooldowns map[solana.PublicKey]domain.CooldownRecord
}

func newMemTx(base *MemoryLedger, readOnly bool) *memTx {
	return &memTx{
		base:      base,
		readOnly:  readOnly,
		pools:     make(map[solana.PublicKey]domain.Pool),
		accounts:  make(map[solana.PublicKey]domain.TokenAccount),
		cooldowns: make(map[solana.PublicKey]domain.CooldownRecord),
	}
}

func (t *memTx) Pool(_ context.Context, asset solana.PublicKey) (domain.Pool, error) {
	if p, ok := t.pools[asset]; ok {
		return p, nil
	}
	if p, ok := t.base.pools[asset]; ok {
		return p, nil
	}
	return domain.Pool{}, domain.ErrPoolNotFound
}

func (t *memTx) CreatePool(ctx context.Context, p domain.Pool) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, err := t.Pool(ctx, p.Asset); err == nil {
		return domain.ErrAlreadyInitialized
	}
	t.pools[p.Asset] = p
	return nil
}

func (t *memTx) Account(_ context.Context, addr solana.PublicKey) (domain.TokenAccount, error) {
	if a, ok := t.accounts[addr]; ok {
		return a, nil
	}
	if a, ok := t.base.accounts[addr]; ok {
		return a, nil
	}
	return domain.TokenAccount{}, domain.ErrAccountNotFound
}

func (t *memTx) PutAccount(_ context.Context, a domain.TokenAccount) error {
	if t.readOnly {
		return errReadOnly
	}
	t.accounts[a.Address] = a
	return nil
}

func (t *memTx) Cooldown(_ context.Context, addr solana.PublicKey) (domain.CooldownRecord, error) {
	if r, ok := t.cooldowns[addr]; ok {
		return r, nil
	}
	if r, ok := t.base.cooldowns[addr]; ok {
		return r, nil
	}
	return domain.CooldownRecord{}, domain.ErrRecordNotFound
}

func (t *memTx) PutCooldown(_ context.Context, r domain.CooldownRecord) error {
	if t.readOnly {
		return errReadOnly
	}
	t.cooldowns[r.Address] = r
	return nil
}
