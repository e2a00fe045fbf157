package domain

import "github.com/gagliardetto/solana-go"

// Pool guarda os parâmetros de distribuição de um ativo.
//
// Existe no máximo um Pool por Asset e ele nunca é alterado depois de criado.
type Pool struct {
	Asset solana.PublicKey `json:"asset"`
	Owner solana.PublicKey `json:"owner"`
	// Vault é a token account que guarda o saldo distribuído.
	Vault solana.PublicKey `json:"vault"`

	Amount   uint64 `json:"amount"`
	Cooldown int64  `json:"cooldown"` // segundos

	CreatedAt int64 `json:"created_at"`
}

// TokenAccount é um saldo de um mint controlado por Owner.
//
// O vault de um pool é uma TokenAccount cujo Owner é a autoridade derivada.
type TokenAccount struct {
	Address solana.PublicKey `json:"address"`
	Mint    solana.PublicKey `json:"mint"`
	Owner   solana.PublicKey `json:"owner"`
	Amount  uint64           `json:"amount"`
}

// CooldownRecord registra o último saque bem-sucedido de um slot.
//
// O endereço do slot é derivado (ver authority.Deriver.CooldownAddress); Asset
// fica vazio quando o escopo é por requester.
type CooldownRecord struct {
	Address       solana.PublicKey `json:"address"`
	Asset         solana.PublicKey `json:"asset"`
	LastRecipient solana.PublicKey `json:"last_recipient"`
	LastTimestamp int64            `json:"last_timestamp"`
}

// AvailableAt retorna o primeiro instante (unix) em que um novo saque é permitido.
// A soma satura em vez de estourar para cooldowns enormes.
func (r CooldownRecord) AvailableAt(cooldown int64) int64 {
	if cooldown > 0 && r.LastTimestamp > maxInt64-cooldown {
		return maxInt64
	}
	return r.LastTimestamp + cooldown
}

const maxInt64 = int64(^uint64(0) >> 1)
