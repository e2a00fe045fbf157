// Package token é a primitiva de movimentação de saldo usada pelo faucet.
//
// Ela opera sobre as token accounts guardadas no ledger, sempre dentro da
// transação do chamador: um erro aqui aborta a operação inteira.
package token

import (
	"context"
	"errors"
	"fmt"
	"math"

	"faucet-gateway/faucet/domain"

	"github.com/gagliardetto/solana-go"
)

type Program struct{}

func New() *Program { return &Program{} }

var _ domain.TokenProgram = (*Program)(nil)

// InitializeAccount cria uma token account vazia.
func (p *Program) InitializeAccount(ctx context.Context, tx domain.Tx, addr, mint, owner solana.PublicKey) error {
	if addr.IsZero() || mint.IsZero() || owner.IsZero() {
		return fmt.Errorf("%w: account, mint and owner are required", domain.ErrInvalidArgument)
	}
	_, err := tx.Account(ctx, addr)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", domain.ErrAccountExists, addr)
	case !errors.Is(err, domain.ErrAccountNotFound):
		return err
	}
	return tx.PutAccount(ctx, domain.TokenAccount{Address: addr, Mint: mint, Owner: owner})
}

// MintTo credita amount em addr. Não há autoridade de mint modelada aqui; só
// provisionamento (devnet e testes) chama isso.
func (p *Program) MintTo(ctx context.Context, tx domain.Tx, addr solana.PublicKey, amount uint64) error {
	acc, err := tx.Account(ctx, addr)
	if err != nil {
		return err
	}
	if acc.Amount > math.MaxUint64-amount {
		return fmt.Errorf("%w: balance overflow on %s", domain.ErrInvalidArgument, addr)
	}
	acc.Amount += amount
	return tx.PutAccount(ctx, acc)
}

// SetAuthority troca o Owner de account para next. A prova precisa reproduzir
// o Owner atual.
func (p *Program) SetAuthority(ctx context.Context, tx domain.Tx, account solana.PublicKey, proof domain.Proof, next solana.PublicKey) error {
	acc, err := tx.Account(ctx, account)
	if err != nil {
		return err
	}
	if err := verify(acc, proof); err != nil {
		return err
	}
	if next.IsZero() {
		return fmt.Errorf("%w: new authority is required", domain.ErrInvalidArgument)
	}
	acc.Owner = next
	return tx.PutAccount(ctx, acc)
}

// Transfer move amount de from para to, autorizado por proof.
func (p *Program) Transfer(ctx context.Context, tx domain.Tx, from, to solana.PublicKey, amount uint64, proof domain.Proof) error {
	src, err := tx.Account(ctx, from)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := verify(src, proof); err != nil {
		return err
	}
	dst, err := tx.Account(ctx, to)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if !src.Mint.Equals(dst.Mint) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrMintMismatch, src.Mint, dst.Mint)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", domain.ErrInsufficientFunds, from, src.Amount, amount)
	}
	if from.Equals(to) {
		return nil
	}
	if dst.Amount > math.MaxUint64-amount {
		return fmt.Errorf("%w: balance overflow on %s", domain.ErrInvalidArgument, to)
	}

	src.Amount -= amount
	dst.Amount += amount
	if err := tx.PutAccount(ctx, src); err != nil {
		return err
	}
	return tx.PutAccount(ctx, dst)
}

func verify(acc domain.TokenAccount, proof domain.Proof) error {
	authority, err := proof.Authority()
	if err != nil {
		return err
	}
	if !authority.Equals(acc.Owner) {
		return fmt.Errorf("%w: %s is not the authority of %s", domain.ErrUnauthorized, authority, acc.Address)
	}
	return nil
}
