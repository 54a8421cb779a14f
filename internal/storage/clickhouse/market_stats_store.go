package clickhouse

import (
	"context"
	"fmt"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/storage"
)

// MarketStatsStore implements storage.MarketStatsStore using ClickHouse.
// The table is append-only: duplicates are not rejected, matching the
// in-memory implementation.
type MarketStatsStore struct {
	conn *Conn
}

// NewMarketStatsStore creates a new MarketStatsStore.
func NewMarketStatsStore(conn *Conn) *MarketStatsStore {
	return &MarketStatsStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MarketStatsStore = (*MarketStatsStore)(nil)

// Insert adds a stats point.
func (s *MarketStatsStore) Insert(ctx context.Context, p *domain.MarketStatsPoint) error {
	if p == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO market_stats (
			timestamp_ms, price, sol_reserve, token_reserve,
			volume_24h, price_change_pct, tx_count_24h
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		uint64(p.TimestampMs), p.Price, p.SolReserve, p.TokenReserve,
		p.Volume24h, p.PriceChangePct, uint64(p.TxCount24h),
	)
	if err != nil {
		return fmt.Errorf("insert market stats point: %w", err)
	}

	return nil
}

// InsertBulk adds multiple points in one batch.
func (s *MarketStatsStore) InsertBulk(ctx context.Context, points []*domain.MarketStatsPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_stats (
			timestamp_ms, price, sol_reserve, token_reserve,
			volume_24h, price_change_pct, tx_count_24h
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			uint64(p.TimestampMs), p.Price, p.SolReserve, p.TokenReserve,
			p.Volume24h, p.PriceChangePct, uint64(p.TxCount24h),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves points within [start, end] (inclusive, ms), ordered by timestamp ASC.
func (s *MarketStatsStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.MarketStatsPoint, error) {
	query := `
		SELECT timestamp_ms, price, sol_reserve, token_reserve,
		       volume_24h, price_change_pct, tx_count_24h
		FROM market_stats
		WHERE timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	var points []*domain.MarketStatsPoint
	for rows.Next() {
		var p domain.MarketStatsPoint
		var timestampMs, txCount uint64

		err := rows.Scan(
			&timestampMs, &p.Price, &p.SolReserve, &p.TokenReserve,
			&p.Volume24h, &p.PriceChangePct, &txCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan market stats row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		p.TxCount24h = int64(txCount)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market stats rows: %w", err)
	}

	return points, nil
}
