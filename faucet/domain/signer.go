package domain

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Proof atesta quem está autorizando uma instrução no token program.
//
// Há duas formas:
//   - Signer: uma chave que já foi autenticada (ex.: assinatura do request HTTP)
//   - Seeds + ProgramID: recomputa um endereço derivado, sem chave privada
type Proof struct {
	Signer solana.PublicKey

	Seeds     [][]byte
	ProgramID solana.PublicKey
}

// SignerProof é a prova de uma chave autenticada fora do engine.
func SignerProof(key solana.PublicKey) Proof { return Proof{Signer: key} }

// Authority resolve o endereço que a prova representa.
func (p Proof) Authority() (solana.PublicKey, error) {
	if len(p.Seeds) == 0 {
		if p.Signer.IsZero() {
			return solana.PublicKey{}, fmt.Errorf("%w: empty proof", ErrUnauthorized)
		}
		return p.Signer, nil
	}
	addr, err := solana.CreateProgramAddress(p.Seeds, p.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return addr, nil
}

// Signer produz a prova de que uma chamada parte da autoridade derivada para
// um ativo. Nenhuma chave privada é guardada: a prova é recomputada a cada uso.
type Signer interface {
	Sign(asset solana.PublicKey) (Proof, error)
}

// TokenProgram é a primitiva externa de movimentação de saldo.
//
// Transfer verifica que proof reproduz o Owner da conta de origem antes de
// debitar. SetAuthority troca o Owner de uma conta, exigindo prova do Owner atual.
type TokenProgram interface {
	Transfer(ctx context.Context, tx Tx, from, to solana.PublicKey, amount uint64, proof Proof) error
	SetAuthority(ctx context.Context, tx Tx, account solana.PublicKey, proof Proof, next solana.PublicKey) error
}
