package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"solana-agent-sim/internal/domain"
)

// oracleStub serves a minimal session-based decision API.
func oracleStub(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req openSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode open session: %v", err)
		}
		if req.ParticipantID == "" || req.Personality == "" {
			t.Error("open session missing participant identity")
		}
		json.NewEncoder(w).Encode(openSessionResponse{SessionID: "sess-" + req.ParticipantID})
	})
	mux.HandleFunc("POST /v1/sessions/{id}/analyze", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.AnalysisResult{Outlook: "bullish", Confidence: 0.8, Summary: "volume picking up"})
	})
	mux.HandleFunc("POST /v1/sessions/{id}/socialize", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.SocialResult{WantsMessage: true, Text: "to the moon", Sentiment: 0.9})
	})
	mux.HandleFunc("POST /v1/sessions/{id}/trade", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.TradeResult{WantsTrade: true, Direction: domain.DirectionBuy, Amount: 5})
	})
	mux.HandleFunc("DELETE /v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return httptest.NewServer(mux)
}

func TestClient_SessionRoundtrip(t *testing.T) {
	server := oracleStub(t)
	defer server.Close()

	client := NewClient(server.URL, WithAPIKey("test-key"))
	ctx := context.Background()

	sess, err := client.OpenSession(ctx, "p1", domain.PersonalityMomentum)
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}

	snap := &domain.MarketSnapshot{Price: 0.001}

	analysis, err := sess.AnalyzeMarket(ctx, snap)
	if err != nil {
		t.Fatalf("AnalyzeMarket failed: %v", err)
	}
	if analysis.Outlook != "bullish" || analysis.Confidence != 0.8 {
		t.Errorf("unexpected analysis: %+v", analysis)
	}

	social, err := sess.Socialize(ctx, &domain.SocialContext{Sentiment: 0.5})
	if err != nil {
		t.Fatalf("Socialize failed: %v", err)
	}
	if !social.WantsMessage || social.Text == "" {
		t.Errorf("unexpected social result: %+v", social)
	}

	trade, err := sess.DecideTrade(ctx, snap)
	if err != nil {
		t.Fatalf("DecideTrade failed: %v", err)
	}
	if !trade.WantsTrade || trade.Direction != domain.DirectionBuy || trade.Amount != 5 {
		t.Errorf("unexpected trade result: %+v", trade)
	}

	if err := sess.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestClient_429MapsToRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/v1/sessions" {
			json.NewEncoder(w).Encode(openSessionResponse{SessionID: "sess-1"})
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"quota exhausted"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	sess, err := client.OpenSession(ctx, "p1", domain.PersonalityWhale)
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}

	_, err = sess.DecideTrade(ctx, &domain.MarketSnapshot{})
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if !IsRateLimited(err) {
		t.Error("IsRateLimited should recognize the sentinel")
	}
}

func TestIsRateLimited_Patterns(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("connection refused"), false},
		{ErrRateLimited, true},
		{fmt.Errorf("wrap: %w", ErrRateLimited), true},
		{errors.New("provider said: Rate Limit reached"), true},
		{errors.New("HTTP 429 from upstream"), true},
		{errors.New("Too Many Requests"), true},
	}

	for _, tc := range cases {
		if got := IsRateLimited(tc.err); got != tc.want {
			t.Errorf("IsRateLimited(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
