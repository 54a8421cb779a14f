package domain

// Trade direction constants.
const (
	DirectionBuy  = "buy"  // spend SOL, receive tokens
	DirectionSell = "sell" // spend tokens, receive SOL
)

// PoolState represents the shared constant-product liquidity pool.
// Corresponds to pool_state table in PostgreSQL; a single row per simulation.
type PoolState struct {
	SolReserve       float64 // base-currency reserve
	TokenReserve     float64 // secondary-asset reserve
	K                float64 // SolReserve * TokenReserve
	Price            float64 // SolReserve / TokenReserve
	CumulativeVolume float64 // lifetime volume in SOL terms
	Volume24h        float64 // rolling 24h volume in SOL terms
	LastTradeAt      int64   // Unix timestamp in milliseconds, 0 if never
	UpdatedAt        int64   // Unix timestamp in milliseconds
}

// CurrentPrice returns SolReserve/TokenReserve, or 0 for an empty pool.
func (p *PoolState) CurrentPrice() float64 {
	if p.TokenReserve <= 0 {
		return 0
	}
	return p.SolReserve / p.TokenReserve
}

// Initialized reports whether both reserves are non-zero.
func (p *PoolState) Initialized() bool {
	return p != nil && p.SolReserve > 0 && p.TokenReserve > 0
}
