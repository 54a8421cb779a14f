package memory

import (
	"context"
	"sort"
	"sync"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

// MarketStatsStore is an in-memory implementation of storage.MarketStatsStore.
// The durable counterpart lives in storage/clickhouse.
type MarketStatsStore struct {
	mu   sync.RWMutex
	data []*domain.MarketStatsPoint
}

// NewMarketStatsStore creates a new in-memory market stats store.
func NewMarketStatsStore() *MarketStatsStore {
	return &MarketStatsStore{}
}

// Compile-time interface check.
var _ storage.MarketStatsStore = (*MarketStatsStore)(nil)

// Insert adds a stats point.
func (s *MarketStatsStore) Insert(_ context.Context, p *domain.MarketStatsPoint) error {
	if p == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.data = append(s.data, &cp)
	return nil
}

// GetByTimeRange retrieves points within [start, end] (inclusive, ms), ordered by timestamp ASC.
func (s *MarketStatsStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.MarketStatsPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketStatsPoint
	for _, p := range s.data {
		if p.TimestampMs >= start && p.TimestampMs <= end {
			cp := *p
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}
