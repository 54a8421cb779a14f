// Package agent provides live participant instances and the bounded cache
// that holds them. An instance may carry provider-side conversation state,
// so construction is expensive and instance count must stay bounded.
package agent

import (
	"context"

	"solana-agent-sim/internal/domain"
)

// Agent is a live, stateful participant instance. Implementations decide how
// the three phase actions are answered: by the external oracle or by a local
// deterministic fallback. Selection happens at construction time.
type Agent interface {
	// ParticipantID returns the durable participant this instance represents.
	ParticipantID() string

	// AnalyzeMarket produces a market read for the analysis phase.
	AnalyzeMarket(ctx context.Context, snap *domain.MarketSnapshot) (*domain.AnalysisResult, error)

	// Socialize produces an optional message for the social phase.
	Socialize(ctx context.Context, sc *domain.SocialContext) (*domain.SocialResult, error)

	// DecideTrade produces an optional trade for the trading phase.
	DecideTrade(ctx context.Context, snap *domain.MarketSnapshot) (*domain.TradeResult, error)

	// Close releases any held external resources (provider sessions).
	Close(ctx context.Context) error
}

// Factory constructs a live instance from a durable participant record.
type Factory func(ctx context.Context, p *domain.Participant) (Agent, error)
