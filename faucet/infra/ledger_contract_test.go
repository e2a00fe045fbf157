package infra

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"faucet-gateway/faucet/domain"
	"faucet-gateway/internal/retry"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

// contractRetry dá folga suficiente para os testes de contenção.
func contractRetry() retry.Config {
	return retry.Config{MaxAttempts: 500, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return k.PublicKey()
}

// runLedgerContract exercita o comportamento que todo domain.Ledger precisa ter.
func runLedgerContract(t *testing.T, newLedger func(t *testing.T) domain.Ledger) {
	t.Run("pool lifecycle", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		pool := domain.Pool{Asset: newKey(t), Owner: newKey(t), Vault: newKey(t), Amount: 100, Cooldown: 3600, CreatedAt: 42}

		err := l.View(ctx, func(ctx context.Context, tx domain.Tx) error {
			_, err := tx.Pool(ctx, pool.Asset)
			return err
		})
		require.ErrorIs(t, err, domain.ErrPoolNotFound)

		require.NoError(t, l.Update(ctx, func(ctx context.Context, tx domain.Tx) error {
			return tx.CreatePool(ctx, pool)
		}))

		err = l.Update(ctx, func(ctx context.Context, tx domain.Tx) error {
			return tx.CreatePool(ctx, domain.Pool{Asset: pool.Asset, Owner: newKey(t), Vault: newKey(t), Amount: 1})
		})
		require.ErrorIs(t, err, domain.ErrAlreadyInitialized)

		var got domain.Pool
		require.NoError(t, l.View(ctx, func(ctx context.Context, tx domain.Tx) error {
			var err error
			got, err = tx.Pool(ctx, pool.Asset)
			return err
		}))
		require.Equal(t, pool, got)
	})

	t.Run("accounts and cooldowns", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		acc := domain.TokenAccount{Address: newKey(t), Mint: newKey(t), Owner: newKey(t), Amount: 7}
		rec := domain.CooldownRecord{Address: newKey(t), Asset: newKey(t), LastRecipient: newKey(t), LastTimestamp: 1_700_000_000}

		require.NoError(t, l.Update(ctx, func(ctx context.Context, tx domain.Tx) error {
			if err := tx.PutAccount(ctx, acc); err != nil {
				return err
			}
			// leitura enxerga a própria escrita
			got, err := tx.Account(ctx, acc.Address)
			if err != nil {
				return err
			}
			if got != acc {
				return errors.New("read-your-writes violated")
			}
			return tx.PutCooldown(ctx, rec)
		}))

		require.NoError(t, l.View(ctx, func(ctx context.Context, tx domain.Tx) error {
			gotAcc, err := tx.Account(ctx, acc.Address)
			require.NoError(t, err)
			require.Equal(t, acc, gotAcc)

			gotRec, err := tx.Cooldown(ctx, rec.Address)
			require.NoError(t, err)
			require.Equal(t, rec, gotRec)

			_, err = tx.Account(ctx, newKey(t))
			require.ErrorIs(t, err, domain.ErrAccountNotFound)
			_, err = tx.Cooldown(ctx, newKey(t))
			require.ErrorIs(t, err, domain.ErrRecordNotFound)
			return nil
		}))
	})

	t.Run("failed update writes nothing", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		boom := errors.New("boom")
		acc := domain.TokenAccount{Address: newKey(t), Mint: newKey(t), Owner: newKey(t), Amount: 1}
		asset := newKey(t)

		err := l.Update(ctx, func(ctx context.Context, tx domain.Tx) error {
			if err := tx.PutAccount(ctx, acc); err != nil {
				return err
			}
			if err := tx.CreatePool(ctx, domain.Pool{Asset: asset, Owner: newKey(t), Vault: acc.Address, Amount: 1}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		require.NoError(t, l.View(ctx, func(ctx context.Context, tx domain.Tx) error {
			_, err := tx.Account(ctx, acc.Address)
			require.ErrorIs(t, err, domain.ErrAccountNotFound)
			_, err = tx.Pool(ctx, asset)
			require.ErrorIs(t, err, domain.ErrPoolNotFound)
			return nil
		}))
	})

	t.Run("view rejects writes", func(t *testing.T) {
		l := newLedger(t)
		err := l.View(context.Background(), func(ctx context.Context, tx domain.Tx) error {
			return tx.PutAccount(ctx, domain.TokenAccount{Address: newKey(t), Mint: newKey(t), Owner: newKey(t)})
		})
		require.Error(t, err)
	})

	t.Run("concurrent read-modify-write is serialized", func(t *testing.T) {
		l := newLedger(t)
		ctx := context.Background()
		addr := newKey(t)
		require.NoError(t, l.Update(ctx, func(ctx context.Context, tx domain.Tx) error {
			return tx.PutAccount(ctx, domain.TokenAccount{Address: addr, Mint: newKey(t), Owner: newKey(t)})
		}))

		const workers, rounds = 8, 5
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range rounds {
					err := l.Update(ctx, func(ctx context.Context, tx domain.Tx) error {
						acc, err := tx.Account(ctx, addr)
						if err != nil {
							return err
						}
						acc.Amount++
						return tx.PutAccount(ctx, acc)
					})
					if err != nil {
						t.Errorf("update: %v", err)
					}
				}
			}()
		}
		wg.Wait()

		require.NoError(t, l.View(ctx, func(ctx context.Context, tx domain.Tx) error {
			acc, err := tx.Account(ctx, addr)
			require.NoError(t, err)
			require.Equal(t, uint64(workers*rounds), acc.Amount)
			return nil
		}))
	})

	t.Run("canceled context", func(t *testing.T) {
		l := newLedger(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := l.Update(ctx, func(ctx context.Context, tx domain.Tx) error {
			_, err := tx.Pool(ctx, newKey(t))
			return err
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryLedger_Contract(t *testing.T) {
	t.Parallel()
	runLedgerContract(t, func(t *testing.T) domain.Ledger {
		return NewMemoryLedger()
	})
}
