package domain

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
)

// ClaimEvent representa o resultado de uma tentativa de saque.
//
// Outcome é o código curto do erro ("rate_limited", "already_claimed", ...) ou
// "ok" quando o saque foi feito.
//
// Observação: cuidado com cardinalidade ao indexar por Requester em bases como
// Redis/Prometheus.
type ClaimEvent struct {
	Asset     solana.PublicKey
	Requester solana.PublicKey
	Operation string
	Outcome   string

	At time.Time
}

func (ev ClaimEvent) Allowed() bool { return ev.Outcome == "ok" }

// StatsStore é a estratégia de persistência das estatísticas de saque.
//
// Implementações podem armazenar em Redis, memória, etc.
// Quem chama trata erro como best-effort (não derruba o request).
type StatsStore interface {
	Record(ctx context.Context, ev ClaimEvent) error
}
