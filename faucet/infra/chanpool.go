package infra

import (
	"context"

	"faucet-gateway/faucet/domain"
)

// ChanPool é um semáforo baseado em channel: no máximo `max` requests de
// saque simultâneos chegam ao ledger.
type ChanPool struct {
	sem chan struct{}
}

func NewChanPool(max int) *ChanPool {
	return &ChanPool{sem: make(chan struct{}, max)}
}

var _ domain.SlotPool = (*ChanPool)(nil)

func (p *ChanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, false
	}
	return func() { <-p.sem }, true
}

// InUse devolve quantas vagas estão ocupadas agora.
func (p *ChanPool) InUse() int { return len(p.sem) }

func (p *ChanPool) Capacity() int { return cap(p.sem) }
