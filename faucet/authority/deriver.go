// Package authority deriva os endereços controlados pelo programa do faucet.
//
// Nenhum desses endereços tem chave privada: eles são program derived addresses
// (sha256 de seeds + program id, fora da curva ed25519). Quem precisa "assinar"
// como a autoridade do vault apenas recomputa as seeds e o bump.
package authority

import (
	"fmt"
	"strings"

	"faucet-gateway/faucet/domain"

	"github.com/gagliardetto/solana-go"
)

var (
	vaultSeed    = []byte("wallet")
	cooldownSeed = []byte("last_drop")
)

// Scope define como o slot do registro de cooldown é chaveado.
type Scope string

const (
	// ScopePool mantém um registro por (pool, requester).
	ScopePool Scope = "pool"
	// ScopeRequester mantém um registro por requester, compartilhado entre pools.
	// Um saque em um pool consome o cooldown de todos os outros.
	ScopeRequester Scope = "requester"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopePool:
		return ScopePool, nil
	case ScopeRequester:
		return ScopeRequester, nil
	}
	return "", fmt.Errorf("%w: unknown cooldown scope %q", domain.ErrInvalidArgument, s)
}

type Deriver struct {
	ProgramID solana.PublicKey
	Scope     Scope
}

func New(programID solana.PublicKey, scope Scope) *Deriver {
	if scope == "" {
		scope = ScopePool
	}
	return &Deriver{ProgramID: programID, Scope: scope}
}

// Derive devolve a autoridade do vault de asset e o bump que a coloca fora da
// curva. É uma função pura: mesmas entradas, mesma saída.
func (d *Deriver) Derive(asset solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{vaultSeed, asset[:]}, d.ProgramID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: vault authority for %s: %v", domain.ErrDerivationExhausted, asset, err)
	}
	return addr, bump, nil
}

// Sign implementa domain.Signer.
func (d *Deriver) Sign(asset solana.PublicKey) (domain.Proof, error) {
	_, bump, err := d.Derive(asset)
	if err != nil {
		return domain.Proof{}, err
	}
	return domain.Proof{
		Seeds:     [][]byte{vaultSeed, asset.Bytes(), {bump}},
		ProgramID: d.ProgramID,
	}, nil
}

// CooldownAddress devolve o slot do registro de cooldown de requester.
// Com ScopeRequester, asset é ignorado.
func (d *Deriver) CooldownAddress(asset, requester solana.PublicKey) (solana.PublicKey, error) {
	seeds := [][]byte{cooldownSeed, asset.Bytes(), requester.Bytes()}
	if d.Scope == ScopeRequester {
		seeds = [][]byte{cooldownSeed, requester.Bytes()}
	}
	addr, _, err := solana.FindProgramAddress(seeds, d.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: cooldown slot for %s: %v", domain.ErrDerivationExhausted, requester, err)
	}
	return addr, nil
}

// RecordAsset é o ativo gravado no registro de cooldown (vazio por requester).
func (d *Deriver) RecordAsset(asset solana.PublicKey) solana.PublicKey {
	if d.Scope == ScopeRequester {
		return solana.PublicKey{}
	}
	return asset
}
