package application

import (
	"context"

	"faucet-gateway/faucet/domain"

	"github.com/gagliardetto/solana-go"
)

// Executor move Pool.Amount do vault para o destino assinando como a
// autoridade derivada do pool. Não acrescenta regra nenhuma: erros do token
// program voltam exatamente como vieram.
type Executor struct {
	Signer domain.Signer
	Token  domain.TokenProgram
}

func (x Executor) Transfer(ctx context.Context, tx domain.Tx, pool domain.Pool, destination solana.PublicKey) error {
	proof, err := x.Signer.Sign(pool.Asset)
	if err != nil {
		return err
	}
	return x.Token.Transfer(ctx, tx, pool.Vault, destination, pool.Amount, proof)
}
