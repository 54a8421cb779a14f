package domain

// MarketSnapshot is the read-only market view handed to participant actions.
type MarketSnapshot struct {
	Price          float64
	SolReserve     float64
	TokenReserve   float64
	Volume24h      float64
	PriceChangePct float64 // 24h price change percentage
	LastTradeAt    int64   // Unix timestamp in milliseconds
	TakenAt        int64   // Unix timestamp in milliseconds
}

// SocialContext is the shared per-phase batch of recent messages and
// aggregate sentiment, computed once per phase rather than once per
// participant.
type SocialContext struct {
	RecentMessages []*Message
	Sentiment      float64 // mean sentiment of RecentMessages, 0 if empty
}

// MarketStatsPoint is one derived market statistics sample.
// Corresponds to market_stats timeseries in ClickHouse.
type MarketStatsPoint struct {
	TimestampMs    int64
	Price          float64
	SolReserve     float64
	TokenReserve   float64
	Volume24h      float64
	PriceChangePct float64
	TxCount24h     int64
}
