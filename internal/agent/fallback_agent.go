package agent

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"

	"solana-agent-sim/internal/domain"
)

// Social message templates for the local fallback, indexed by outlook.
var fallbackTemplates = map[string][]string{
	"bullish": {
		"chart looks strong, adding to my bag",
		"volume says it all, this is just the start",
	},
	"bearish": {
		"taking profits here, this looks toppy",
		"this level won't hold, reducing exposure",
	},
	"neutral": {
		"sideways chop, waiting for a signal",
		"nothing to do yet, watching the pool",
	},
}

// FallbackAgent is the cheap, local decision implementation. It is used both
// as a full substitute for the oracle and as the degraded-mode decision
// source while the oracle is throttling. Decisions are deterministic for a
// fixed participant and seed.
type FallbackAgent struct {
	participant *domain.Participant
	traits      domain.Traits

	mu  sync.Mutex
	rng *rand.Rand
}

// Compile-time interface check.
var _ Agent = (*FallbackAgent)(nil)

// NewFallbackFactory returns a Factory producing local fallback instances.
// Each instance's rand stream is derived from the shared seed and the
// participant ID, so populations replay identically for a fixed seed.
func NewFallbackFactory(seed int64) Factory {
	return func(_ context.Context, p *domain.Participant) (Agent, error) {
		return NewFallbackAgent(p, seed), nil
	}
}

// NewFallbackAgent creates a local fallback instance for a participant.
func NewFallbackAgent(p *domain.Participant, seed int64) *FallbackAgent {
	h := sha256.Sum256([]byte(p.ParticipantID))
	derived := seed ^ int64(binary.BigEndian.Uint64(h[:8]))

	return &FallbackAgent{
		participant: p,
		traits:      domain.TraitsFor(p.Personality),
		rng:         rand.New(rand.NewSource(derived)),
	}
}

// ParticipantID returns the durable participant this instance represents.
func (a *FallbackAgent) ParticipantID() string {
	return a.participant.ParticipantID
}

// AnalyzeMarket derives an outlook from the 24h price change. Contrarians
// read the same signal inverted.
func (a *FallbackAgent) AnalyzeMarket(_ context.Context, snap *domain.MarketSnapshot) (*domain.AnalysisResult, error) {
	outlook := outlookFor(snap.PriceChangePct, a.participant.Personality)

	a.mu.Lock()
	confidence := 0.4 + 0.4*a.rng.Float64()
	a.mu.Unlock()

	return &domain.AnalysisResult{
		Outlook:    outlook,
		Confidence: confidence,
		Summary:    fmt.Sprintf("%s read: price %.6f, 24h change %.2f%%", outlook, snap.Price, snap.PriceChangePct),
	}, nil
}

// Socialize posts a templated message with personality-scaled probability.
func (a *FallbackAgent) Socialize(_ context.Context, sc *domain.SocialContext) (*domain.SocialResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Chatty personalities post more; everyone posts less into silence.
	chance := 0.3 + 0.4*a.traits.RiskTolerance
	if a.rng.Float64() > chance {
		return &domain.SocialResult{WantsMessage: false}, nil
	}

	outlook := "neutral"
	sentiment := sc.Sentiment
	switch {
	case sentiment > 0.2:
		outlook = "bullish"
	case sentiment < -0.2:
		outlook = "bearish"
	}
	if a.participant.Personality == domain.PersonalityContrarian {
		outlook, sentiment = invertOutlook(outlook), -sentiment
	}

	templates := fallbackTemplates[outlook]
	text := templates[a.rng.Intn(len(templates))]

	return &domain.SocialResult{
		WantsMessage: true,
		Text:         text,
		Sentiment:    clampSentiment(sentiment + (a.rng.Float64()-0.5)*0.4),
	}, nil
}

// DecideTrade trades with TradeProbability; size is the personality's
// position bias scaled by risk tolerance against the input-side balance.
func (a *FallbackAgent) DecideTrade(_ context.Context, snap *domain.MarketSnapshot) (*domain.TradeResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rng.Float64() > a.traits.TradeProbability {
		return &domain.TradeResult{WantsTrade: false, Reason: "holding"}, nil
	}

	direction := domain.DirectionSell
	if a.rng.Float64() < buyChance(a.traits, a.participant.Personality, snap.PriceChangePct) {
		direction = domain.DirectionBuy
	}

	balance := a.participant.TokenBalance
	if direction == domain.DirectionBuy {
		balance = a.participant.SolBalance
	}

	amount := balance * a.traits.PositionBias * a.traits.RiskTolerance
	if amount <= 0 {
		return &domain.TradeResult{WantsTrade: false, Reason: "no balance"}, nil
	}

	return &domain.TradeResult{
		WantsTrade: true,
		Direction:  direction,
		Amount:     amount,
		Reason:     fmt.Sprintf("%s fallback trade", a.participant.Personality),
	}, nil
}

// Close is a no-op: fallback instances hold no external resources.
func (a *FallbackAgent) Close(_ context.Context) error {
	return nil
}

// buyChance biases direction by personality: momentum follows the trend,
// contrarians fade it, everyone else uses their static bias.
func buyChance(traits domain.Traits, personality string, priceChangePct float64) float64 {
	switch personality {
	case domain.PersonalityMomentum:
		if priceChangePct > 0 {
			return traits.BuyBias + 0.2
		}
		return traits.BuyBias - 0.2
	case domain.PersonalityContrarian:
		if priceChangePct > 0 {
			return traits.BuyBias - 0.2
		}
		return traits.BuyBias + 0.2
	default:
		return traits.BuyBias
	}
}

func outlookFor(priceChangePct float64, personality string) string {
	outlook := "neutral"
	switch {
	case priceChangePct > 1:
		outlook = "bullish"
	case priceChangePct < -1:
		outlook = "bearish"
	}
	if personality == domain.PersonalityContrarian {
		outlook = invertOutlook(outlook)
	}
	return outlook
}

func invertOutlook(outlook string) string {
	switch outlook {
	case "bullish":
		return "bearish"
	case "bearish":
		return "bullish"
	default:
		return "neutral"
	}
}

func clampSentiment(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
