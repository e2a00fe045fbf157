package infra

import (
	"context"
	"sync"

	"faucet-gateway/faucet/domain"
)

type Counters struct {
	Allowed int64
	Denied  int64
}

// MemoryStatsStore conta saques em memória, no total, por operação+resultado
// e (opcionalmente) por ativo.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu          sync.Mutex
	total       Counters
	byOutcome   map[string]int64
	byAsset     map[string]Counters
	trackAssets bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackAssets(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackAssets = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byOutcome: make(map[string]int64),
		byAsset:   make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.ClaimEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byOutcome[ev.Operation+":"+ev.Outcome]++

	bump := func(c Counters) Counters {
		if ev.Allowed() {
			c.Allowed++
		} else {
			c.Denied++
		}
		return c
	}
	s.total = bump(s.total)
	if s.trackAssets {
		key := ev.Asset.String()
		s.byAsset[key] = bump(s.byAsset[key])
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// ByOutcome devolve contadores chaveados por "operação:resultado".
func (s *MemoryStatsStore) ByOutcome() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.byOutcome))
	for k, v := range s.byOutcome {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByAsset() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byAsset))
	for k, v := range s.byAsset {
		out[k] = v
	}
	return out
}
