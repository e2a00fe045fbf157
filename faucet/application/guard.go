package application

import (
	"context"
	"time"

	"faucet-gateway/faucet/domain"
)

// Throttle concentra a regra da porta da frente (rajadas por cliente).
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Throttle struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
}

// decider é implementado por stores que sabem calcular o Retry-After real
// (ex.: infra.Store).
type decider interface {
	Decide(domain.Key) domain.Decision
}

func (s Throttle) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}

	if d, ok := s.Store.(decider); ok {
		dec := d.Decide(key)
		if !dec.Allowed && dec.RetryAfter <= 0 {
			dec.RetryAfter = s.RetryAfter
		}
		return dec
	}

	lim := s.Store.Get(key)
	if lim == nil {
		return domain.Decision{Allowed: true}
	}
	if lim.Allow() {
		return domain.Decision{Allowed: true}
	}
	return domain.Decision{Allowed: false, RetryAfter: s.RetryAfter}
}

// Admission limita quantos saques chegam ao ledger ao mesmo tempo.
type Admission struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire tenta adquirir uma vaga.
// - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
// - Se `AcquireTimeout > 0`, espera até o timeout.
// Retorna (release, ok). Se ok=false, nenhuma vaga foi adquirida.
func (s Admission) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}

	if s.AcquireTimeout <= 0 {
		return s.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Pool.Acquire(acqCtx)
}
