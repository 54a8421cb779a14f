package reporting

import "time"

// Report is the aggregate view of one simulation run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	RunStatus   string
	RunPhase    string
	StartedAt   int64 // Unix ms
	EndedAt     int64 // Unix ms, 0 while open

	// Market
	Market MarketSummary

	// Activity
	Activity ActivitySummary

	// Population breakdown (sorted by personality)
	Personalities []PersonalityRow

	// Most active traders (sorted by trade count desc)
	TopTraders []TraderRow
}

// MarketSummary describes the pool at report time.
type MarketSummary struct {
	Price            float64
	SolReserve       float64
	TokenReserve     float64
	CumulativeVolume float64
	Volume24h        float64
	PriceChangePct   float64
	LastTradeAt      int64 // Unix ms, 0 if never traded
}

// ActivitySummary aggregates transactions and messages over the run window.
type ActivitySummary struct {
	TotalTransactions int
	Confirmed         int
	Failed            int
	Buys              int
	Sells             int
	VolumeSol         float64
	MessagesPosted    int
	AverageSentiment  float64
}

// PersonalityRow breaks population and trading down by personality.
type PersonalityRow struct {
	Personality  string
	Participants int
	Trades       int
	VolumeSol    float64
}

// TraderRow is one participant's trading summary.
type TraderRow struct {
	ParticipantID string
	Personality   string
	Trades        int
	VolumeSol     float64
	SolBalance    float64
	TokenBalance  float64
}
