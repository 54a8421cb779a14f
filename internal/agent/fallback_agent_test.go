package agent

import (
	"context"
	"testing"

	"solana-agent-sim/internal/domain"
)

func testParticipant(personality string) *domain.Participant {
	return &domain.Participant{
		ParticipantID: "p-" + personality,
		WalletAddress: "wallet-" + personality,
		Personality:   personality,
		SolBalance:    100,
		TokenBalance:  50000,
		Active:        true,
	}
}

func TestFallbackAgent_Deterministic(t *testing.T) {
	ctx := context.Background()
	p := testParticipant(domain.PersonalityAggressive)
	snap := &domain.MarketSnapshot{Price: 0.001, PriceChangePct: 3.5}

	a := NewFallbackAgent(p, 42)
	b := NewFallbackAgent(p, 42)

	for i := 0; i < 10; i++ {
		ta, err := a.DecideTrade(ctx, snap)
		if err != nil {
			t.Fatalf("DecideTrade a: %v", err)
		}
		tb, err := b.DecideTrade(ctx, snap)
		if err != nil {
			t.Fatalf("DecideTrade b: %v", err)
		}
		if ta.WantsTrade != tb.WantsTrade || ta.Direction != tb.Direction || ta.Amount != tb.Amount {
			t.Fatalf("step %d diverged: %+v vs %+v", i, ta, tb)
		}
	}
}

func TestFallbackAgent_SeedChangesStream(t *testing.T) {
	ctx := context.Background()
	p := testParticipant(domain.PersonalityMomentum)
	snap := &domain.MarketSnapshot{Price: 0.001, PriceChangePct: 1.0}

	a := NewFallbackAgent(p, 1)
	b := NewFallbackAgent(p, 2)

	same := true
	for i := 0; i < 20; i++ {
		ta, _ := a.DecideTrade(ctx, snap)
		tb, _ := b.DecideTrade(ctx, snap)
		if ta.WantsTrade != tb.WantsTrade || ta.Direction != tb.Direction || ta.Amount != tb.Amount {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds should produce different decision streams")
	}
}

func TestFallbackAgent_OutlookFollowsTrend(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		personality    string
		priceChangePct float64
		want           string
	}{
		{domain.PersonalityMomentum, 5.0, "bullish"},
		{domain.PersonalityMomentum, -5.0, "bearish"},
		{domain.PersonalityMomentum, 0.1, "neutral"},
		{domain.PersonalityContrarian, 5.0, "bearish"},
		{domain.PersonalityContrarian, -5.0, "bullish"},
		{domain.PersonalityContrarian, 0.0, "neutral"},
	}

	for _, tc := range cases {
		a := NewFallbackAgent(testParticipant(tc.personality), 7)
		result, err := a.AnalyzeMarket(ctx, &domain.MarketSnapshot{Price: 0.001, PriceChangePct: tc.priceChangePct})
		if err != nil {
			t.Fatalf("AnalyzeMarket: %v", err)
		}
		if result.Outlook != tc.want {
			t.Errorf("%s at %.1f%%: outlook %q, want %q", tc.personality, tc.priceChangePct, result.Outlook, tc.want)
		}
		if result.Confidence < 0.4 || result.Confidence > 0.8 {
			t.Errorf("confidence %.2f out of expected range", result.Confidence)
		}
	}
}

func TestFallbackAgent_TradeProbabilityByPersonality(t *testing.T) {
	ctx := context.Background()
	snap := &domain.MarketSnapshot{Price: 0.001, PriceChangePct: 0.5}

	rate := func(personality string) float64 {
		a := NewFallbackAgent(testParticipant(personality), 99)
		traded := 0
		const rounds = 1000
		for i := 0; i < rounds; i++ {
			result, err := a.DecideTrade(ctx, snap)
			if err != nil {
				t.Fatalf("DecideTrade: %v", err)
			}
			if result.WantsTrade {
				traded++
			}
		}
		return float64(traded) / rounds
	}

	conservative := rate(domain.PersonalityConservative)
	aggressive := rate(domain.PersonalityAggressive)

	if conservative >= aggressive {
		t.Errorf("conservative trade rate %.2f should be below aggressive %.2f", conservative, aggressive)
	}
}

func TestFallbackAgent_TradeAmountWithinBalance(t *testing.T) {
	ctx := context.Background()
	p := testParticipant(domain.PersonalityWhale)
	a := NewFallbackAgent(p, 5)
	snap := &domain.MarketSnapshot{Price: 0.001, PriceChangePct: 2.0}

	for i := 0; i < 200; i++ {
		result, err := a.DecideTrade(ctx, snap)
		if err != nil {
			t.Fatalf("DecideTrade: %v", err)
		}
		if !result.WantsTrade {
			continue
		}
		if result.Amount <= 0 {
			t.Fatalf("trade amount must be positive, got %f", result.Amount)
		}
		switch result.Direction {
		case domain.DirectionBuy:
			if result.Amount > p.SolBalance {
				t.Fatalf("buy amount %f exceeds SOL balance %f", result.Amount, p.SolBalance)
			}
		case domain.DirectionSell:
			if result.Amount > p.TokenBalance {
				t.Fatalf("sell amount %f exceeds token balance %f", result.Amount, p.TokenBalance)
			}
		default:
			t.Fatalf("unexpected direction %q", result.Direction)
		}
	}
}

func TestFallbackAgent_ZeroBalanceNeverTrades(t *testing.T) {
	ctx := context.Background()
	p := testParticipant(domain.PersonalityAggressive)
	p.SolBalance = 0
	p.TokenBalance = 0

	a := NewFallbackAgent(p, 11)
	for i := 0; i < 100; i++ {
		result, err := a.DecideTrade(ctx, &domain.MarketSnapshot{Price: 0.001})
		if err != nil {
			t.Fatalf("DecideTrade: %v", err)
		}
		if result.WantsTrade {
			t.Fatal("broke participant should never produce a trade")
		}
	}
}

func TestFallbackAgent_SocializeSentimentBounded(t *testing.T) {
	ctx := context.Background()
	a := NewFallbackAgent(testParticipant(domain.PersonalityAggressive), 3)

	for i := 0; i < 200; i++ {
		result, err := a.Socialize(ctx, &domain.SocialContext{Sentiment: 0.95})
		if err != nil {
			t.Fatalf("Socialize: %v", err)
		}
		if !result.WantsMessage {
			continue
		}
		if result.Text == "" {
			t.Fatal("posted message must have text")
		}
		if result.Sentiment < -1 || result.Sentiment > 1 {
			t.Fatalf("sentiment %f out of [-1, 1]", result.Sentiment)
		}
	}
}
