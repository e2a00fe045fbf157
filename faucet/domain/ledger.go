package domain

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Ledger é o armazenamento compartilhado de pools, token accounts e registros
// de cooldown.
//
// Update executa fn de forma atômica: ou todas as escritas de fn são
// confirmadas, ou nenhuma. Se fn retornar erro, nada é gravado. Duas chamadas
// concorrentes que tocam o mesmo registro nunca observam estados intercalados.
//
// View executa fn somente leitura sobre um snapshot consistente.
type Ledger interface {
	Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

// Tx é a visão transacional que o ledger entrega para a função de Update/View.
//
// Leituras retornam ErrPoolNotFound, ErrAccountNotFound ou ErrRecordNotFound
// quando o registro não existe. Em View, escritas retornam erro.
type Tx interface {
	Pool(ctx context.Context, asset solana.PublicKey) (Pool, error)
	// CreatePool falha com ErrAlreadyInitialized se já existir pool para o ativo.
	CreatePool(ctx context.Context, p Pool) error

	Account(ctx context.Context, addr solana.PublicKey) (TokenAccount, error)
	PutAccount(ctx context.Context, a TokenAccount) error

	Cooldown(ctx context.Context, addr solana.PublicKey) (CooldownRecord, error)
	PutCooldown(ctx context.Context, r CooldownRecord) error
}
