package application

import (
	"context"
	"errors"

	"faucet-gateway/faucet/domain"

	"github.com/gagliardetto/solana-go"
)

// PoolView é um pool com o que dá para derivar dele: autoridade e saldo.
type PoolView struct {
	domain.Pool
	Authority    solana.PublicKey `json:"authority"`
	Bump         uint8            `json:"bump"`
	VaultBalance uint64           `json:"vault_balance"`
}

func (e *Engine) Pool(ctx context.Context, asset solana.PublicKey) (PoolView, error) {
	authority, bump, err := e.deriver.Derive(asset)
	if err != nil {
		return PoolView{}, err
	}

	var view PoolView
	err = e.ledger.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		pool, err := tx.Pool(ctx, asset)
		if err != nil {
			return err
		}
		vault, err := tx.Account(ctx, pool.Vault)
		if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}
		view = PoolView{Pool: pool, Authority: authority, Bump: bump, VaultBalance: vault.Amount}
		return nil
	})
	return view, err
}

// CooldownView é o registro de cooldown de um requester num pool.
type CooldownView struct {
	domain.CooldownRecord
	AvailableAt int64 `json:"available_at"`
}

func (e *Engine) Cooldown(ctx context.Context, asset, requester solana.PublicKey) (CooldownView, error) {
	slot, err := e.deriver.CooldownAddress(asset, requester)
	if err != nil {
		return CooldownView{}, err
	}

	var view CooldownView
	err = e.ledger.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		pool, err := tx.Pool(ctx, asset)
		if err != nil {
			return err
		}
		rec, err := tx.Cooldown(ctx, slot)
		if err != nil {
			return err
		}
		view = CooldownView{CooldownRecord: rec, AvailableAt: rec.AvailableAt(pool.Cooldown)}
		return nil
	})
	return view, err
}

func (e *Engine) Account(ctx context.Context, addr solana.PublicKey) (domain.TokenAccount, error) {
	var acc domain.TokenAccount
	err := e.ledger.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		acc, err = tx.Account(ctx, addr)
		return err
	})
	return acc, err
}

// Authority devolve a autoridade derivada do vault de asset.
func (e *Engine) Authority(asset solana.PublicKey) (solana.PublicKey, uint8, error) {
	return e.deriver.Derive(asset)
}
