package domain

// Contratos da proteção de entrada da API (antes de chegar no engine).
//
// O cooldown do faucet é a regra de negócio; isto aqui só protege o serviço
// contra rajadas de um mesmo cliente e contra excesso de requests simultâneos.

import (
	"context"
	"time"
)

type Key string

// Limiter decide se uma ação é permitida agora.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave (ex: IP, API key).
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor devolvido em Retry-After quando bloquear.
	RetryAfter time.Duration
}

// SlotPool representa um recurso com capacidade finita (ex: requests simultâneos).
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
