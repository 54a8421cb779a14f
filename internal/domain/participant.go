package domain

// Personality categories for simulated participants. Closed set.
const (
	PersonalityConservative = "CONSERVATIVE"
	PersonalityAggressive   = "AGGRESSIVE"
	PersonalityContrarian   = "CONTRARIAN"
	PersonalityMomentum     = "MOMENTUM"
	PersonalityWhale        = "WHALE"
)

// Personalities lists all valid personality categories in a stable order.
var Personalities = []string{
	PersonalityConservative,
	PersonalityAggressive,
	PersonalityContrarian,
	PersonalityMomentum,
	PersonalityWhale,
}

// Participant represents a simulated trader.
// Corresponds to participants table in PostgreSQL.
type Participant struct {
	ParticipantID string        // deterministic hash
	WalletAddress string        // base58 ed25519 public key
	Personality   string        // one of Personalities
	SolBalance    float64       // base-currency balance
	TokenBalance  float64       // secondary-asset balance
	Active        bool          // eligible for dispatch
	LastDecision  *DecisionInfo // most recent decision, nil if none yet
	CreatedAt     int64         // Unix timestamp in milliseconds
	UpdatedAt     int64         // Unix timestamp in milliseconds
}

// Traits describes the numeric behavior profile for a personality category.
type Traits struct {
	RiskTolerance    float64 // 0..1, scales position size
	TradeProbability float64 // 0..1, chance the local fallback trades at all
	PositionBias     float64 // fraction of available balance per trade
	BuyBias          float64 // 0..1, probability a fallback trade is a buy
}

// TraitsFor returns the behavior profile for a personality category.
// Unknown categories get the conservative profile.
func TraitsFor(personality string) Traits {
	switch personality {
	case PersonalityAggressive:
		return Traits{RiskTolerance: 0.9, TradeProbability: 0.60, PositionBias: 0.25, BuyBias: 0.6}
	case PersonalityContrarian:
		return Traits{RiskTolerance: 0.6, TradeProbability: 0.35, PositionBias: 0.15, BuyBias: 0.4}
	case PersonalityMomentum:
		return Traits{RiskTolerance: 0.7, TradeProbability: 0.45, PositionBias: 0.20, BuyBias: 0.7}
	case PersonalityWhale:
		return Traits{RiskTolerance: 0.5, TradeProbability: 0.20, PositionBias: 0.40, BuyBias: 0.5}
	default: // CONSERVATIVE
		return Traits{RiskTolerance: 0.3, TradeProbability: 0.25, PositionBias: 0.05, BuyBias: 0.5}
	}
}
