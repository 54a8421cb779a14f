package domain

// Decision kinds for the last-decision record.
const (
	DecisionMarketAnalysis = "MARKET_ANALYSIS"
	DecisionSocial         = "SOCIAL"
	DecisionTrade          = "TRADE"
)

// DecisionInfo is a participant's most recent decision: a tagged union of
// MARKET_ANALYSIS | SOCIAL | TRADE with a timestamp and opaque payload.
type DecisionInfo struct {
	Kind      string // one of the Decision* constants
	Payload   string // opaque decision payload, persisted verbatim
	Timestamp int64  // Unix timestamp in milliseconds
}

// AnalysisResult is the structured outcome of a market-analysis decision.
type AnalysisResult struct {
	Outlook    string  // "bullish" | "bearish" | "neutral"
	Confidence float64 // 0..1
	Summary    string  // opaque reasoning payload
}

// SocialResult is the structured outcome of a social decision.
type SocialResult struct {
	WantsMessage bool
	Text         string
	Sentiment    float64 // -1..1
}

// TradeResult is the structured outcome of a trade decision.
type TradeResult struct {
	WantsTrade bool
	Direction  string  // "buy" | "sell", meaningful only when WantsTrade
	Amount     float64 // input amount, meaningful only when WantsTrade
	Reason     string  // opaque reasoning payload
}
