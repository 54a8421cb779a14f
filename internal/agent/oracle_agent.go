package agent

import (
	"context"
	"fmt"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/oracle"
)

// OracleAgent answers phase actions via a provider-side oracle session.
type OracleAgent struct {
	participantID string
	session       *oracle.Session
}

// Compile-time interface check.
var _ Agent = (*OracleAgent)(nil)

// NewOracleFactory returns a Factory that opens one oracle session per
// constructed instance.
func NewOracleFactory(client *oracle.Client) Factory {
	return func(ctx context.Context, p *domain.Participant) (Agent, error) {
		session, err := client.OpenSession(ctx, p.ParticipantID, p.Personality)
		if err != nil {
			return nil, fmt.Errorf("open oracle session: %w", err)
		}
		return &OracleAgent{
			participantID: p.ParticipantID,
			session:       session,
		}, nil
	}
}

// ParticipantID returns the durable participant this instance represents.
func (a *OracleAgent) ParticipantID() string {
	return a.participantID
}

// AnalyzeMarket delegates to the oracle session.
func (a *OracleAgent) AnalyzeMarket(ctx context.Context, snap *domain.MarketSnapshot) (*domain.AnalysisResult, error) {
	return a.session.AnalyzeMarket(ctx, snap)
}

// Socialize delegates to the oracle session.
func (a *OracleAgent) Socialize(ctx context.Context, sc *domain.SocialContext) (*domain.SocialResult, error) {
	return a.session.Socialize(ctx, sc)
}

// DecideTrade delegates to the oracle session.
func (a *OracleAgent) DecideTrade(ctx context.Context, snap *domain.MarketSnapshot) (*domain.TradeResult, error) {
	return a.session.DecideTrade(ctx, snap)
}

// Close releases the provider session.
func (a *OracleAgent) Close(ctx context.Context) error {
	return a.session.Close(ctx)
}
