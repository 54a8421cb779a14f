package amm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

// statsRefreshTimeout bounds one background stats refresh.
const statsRefreshTimeout = 10 * time.Second

// refreshStatsAsync runs RefreshStats on a detached context and swallows the
// error. Reporting consumes the refreshed stats; a failed refresh must never
// fail the swap that triggered it.
func (e *Engine) refreshStatsAsync() {
	ctx, cancel := context.WithTimeout(context.Background(), statsRefreshTimeout)
	defer cancel()

	if err := e.RefreshStats(ctx); err != nil {
		e.log("stats refresh failed: %v", err)
	}
}

// RefreshStats recomputes the derived market statistics: rolling 24h volume
// from confirmed transactions, and the 24h price change from the stats
// timeseries. The refreshed pool row is persisted and, when a stats store is
// configured, a new timeseries point is appended.
func (e *Engine) RefreshStats(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, err := e.pools.Get(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrPoolUninitialized
		}
		return fmt.Errorf("load pool: %w", err)
	}

	nowMs := e.now().UnixMilli()
	dayAgoMs := nowMs - 24*time.Hour.Milliseconds()

	txs, err := e.transactions.GetByTimeRange(ctx, dayAgoMs, nowMs)
	if err != nil {
		return fmt.Errorf("load 24h transactions: %w", err)
	}

	var volume24h float64
	var txCount int64
	for _, tx := range txs {
		if tx.Status != domain.TxStatusConfirmed {
			continue
		}
		txCount++
		if tx.Direction == domain.DirectionBuy {
			volume24h += tx.AmountIn
		} else {
			volume24h += tx.AmountOut
		}
	}

	priceChangePct := 0.0
	if e.stats != nil {
		points, err := e.stats.GetByTimeRange(ctx, dayAgoMs, nowMs)
		if err != nil {
			return fmt.Errorf("load 24h stats: %w", err)
		}
		if len(points) > 0 && points[0].Price > 0 {
			priceChangePct = (pool.Price - points[0].Price) / points[0].Price * 100
		}
	}

	pool.Volume24h = volume24h
	pool.UpdatedAt = nowMs
	if err := e.pools.Update(ctx, pool); err != nil {
		return fmt.Errorf("update pool: %w", err)
	}

	if e.stats != nil {
		point := &domain.MarketStatsPoint{
			TimestampMs:    nowMs,
			Price:          pool.Price,
			SolReserve:     pool.SolReserve,
			TokenReserve:   pool.TokenReserve,
			Volume24h:      volume24h,
			PriceChangePct: priceChangePct,
			TxCount24h:     txCount,
		}
		if err := e.stats.Insert(ctx, point); err != nil {
			return fmt.Errorf("insert stats point: %w", err)
		}
	}

	return nil
}

// Snapshot builds the read-only market view handed to participant actions.
func (e *Engine) Snapshot(ctx context.Context) (*domain.MarketSnapshot, error) {
	pool, err := e.pools.Get(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPoolUninitialized
		}
		return nil, fmt.Errorf("load pool: %w", err)
	}

	nowMs := e.now().UnixMilli()
	snap := &domain.MarketSnapshot{
		Price:        pool.Price,
		SolReserve:   pool.SolReserve,
		TokenReserve: pool.TokenReserve,
		Volume24h:    pool.Volume24h,
		LastTradeAt:  pool.LastTradeAt,
		TakenAt:      nowMs,
	}

	if e.stats != nil {
		dayAgoMs := nowMs - 24*time.Hour.Milliseconds()
		points, err := e.stats.GetByTimeRange(ctx, dayAgoMs, nowMs)
		if err == nil && len(points) > 0 && points[0].Price > 0 {
			snap.PriceChangePct = (pool.Price - points[0].Price) / points[0].Price * 100
		}
	}

	return snap, nil
}
