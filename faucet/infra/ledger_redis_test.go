package infra

import (
	"context"
	"testing"

	"faucet-gateway/faucet/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisLedger_Contract(t *testing.T) {
	t.Parallel()
	runLedgerContract(t, func(t *testing.T) domain.Ledger {
		_, rdb := newMiniredis(t)
		return NewRedisLedger(rdb, WithLedgerRetry(contractRetry()))
	})
}

func TestRedisLedger_KeyLayout(t *testing.T) {
	t.Parallel()

	mr, rdb := newMiniredis(t)
	l := NewRedisLedger(rdb, WithLedgerPrefix("dev:ledger:"))
	asset := newKey(t)

	require.NoError(t, l.Update(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		return tx.CreatePool(ctx, domain.Pool{Asset: asset, Owner: newKey(t), Vault: newKey(t), Amount: 5})
	}))
	require.True(t, mr.Exists("dev:ledger:pool:"+asset.String()))

	raw, err := mr.Get("dev:ledger:pool:" + asset.String())
	require.NoError(t, err)
	require.Contains(t, raw, `"asset":"`+asset.String()+`"`)
}

func TestRedisLedger_NoWritesSkipsExec(t *testing.T) {
	t.Parallel()

	mr, rdb := newMiniredis(t)
	l := NewRedisLedger(rdb)

	err := l.Update(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Pool(ctx, newKey(t))
		if err != nil && err != domain.ErrPoolNotFound {
			return err
		}
		return nil
	})
	require.NoError(t, err)
	require.Empty(t, mr.Keys())
}
