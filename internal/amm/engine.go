// Package amm implements the constant-product swap engine with slippage
// protection. All pool mutations in the process go through Engine.Execute,
// which serializes read-compute-commit under a per-engine mutex.
package amm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"solana-agent-sim/internal/domain"
	"solana-agent-sim/internal/idhash"
	"solana-agent-sim/internal/observability"
	"solana-agent-sim/internal/storage"
)

// BalanceSource is the optional external ledger used for eligibility checks.
// When nil, the engine falls back to durable-store balances.
type BalanceSource interface {
	// GetSolBalance returns the SOL balance for a wallet address.
	GetSolBalance(ctx context.Context, address string) (float64, error)

	// GetTokenBalance returns the token balance for a wallet address.
	GetTokenBalance(ctx context.Context, address string) (float64, error)
}

// Engine converts trade requests into reserve updates and persists both the
// new pool state and a transaction record.
type Engine struct {
	pools        storage.PoolStore
	participants storage.ParticipantStore
	transactions storage.TransactionStore
	stats        storage.MarketStatsStore // optional
	ledger       BalanceSource            // optional

	// mu serializes read-compute-commit so two concurrent swaps never
	// both read the same pre-trade reserves.
	mu sync.Mutex

	nonce   atomic.Uint64
	now     func() time.Time
	logger  *log.Logger
	verbose bool
}

// Options for creating an Engine.
type Options struct {
	PoolStore        storage.PoolStore
	ParticipantStore storage.ParticipantStore
	TransactionStore storage.TransactionStore

	// Optional collaborators
	StatsStore storage.MarketStatsStore
	Ledger     BalanceSource
	Logger     *log.Logger
	Verbose    bool

	// Now is an injectable clock for deterministic tests.
	Now func() time.Time
}

// New creates a new swap engine.
func New(opts Options) *Engine {
	e := &Engine{
		pools:        opts.PoolStore,
		participants: opts.ParticipantStore,
		transactions: opts.TransactionStore,
		stats:        opts.StatsStore,
		ledger:       opts.Ledger,
		now:          opts.Now,
		logger:       opts.Logger,
		verbose:      opts.Verbose,
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	return e
}

// Quote holds the result of a swap quote. Quotes never mutate state.
type Quote struct {
	AmountIn       float64
	AmountOut      float64
	PriceImpactPct float64
	EffectivePrice float64 // AmountIn / AmountOut
}

// Quote computes the constant-product output and price impact for a trade
// without mutating state.
func (e *Engine) Quote(ctx context.Context, amountIn float64, direction string) (*Quote, error) {
	if err := validateTrade(amountIn, direction); err != nil {
		return nil, err
	}

	pool, err := e.pools.Get(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPoolUninitialized
		}
		return nil, fmt.Errorf("load pool: %w", err)
	}

	return computeQuote(pool, amountIn, direction)
}

// Execute performs a swap for a participant:
//  1. balance check (external ledger when configured, else stored balances)
//  2. quote + slippage check
//  3. atomic commit of pool reserves, balances and a CONFIRMED record
//
// Failures after the balance check append a FAILED transaction record before
// the error is returned. A successful commit triggers an asynchronous market
// stats refresh whose failure never fails the swap.
func (e *Engine) Execute(ctx context.Context, participantID string, amountIn float64, direction string, slippageTolerancePct float64) (*domain.TransactionRecord, error) {
	if err := validateTrade(amountIn, direction); err != nil {
		return nil, err
	}

	// One critical section covers the balance read through the commit, so a
	// deposit or withdraw landing mid-swap can never be overwritten by a
	// balance write computed from a stale snapshot.
	e.mu.Lock()
	defer e.mu.Unlock()

	// Step 1: balance check, before any quote is computed.
	participant, err := e.participants.GetByID(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("load participant %s: %w", participantID, err)
	}

	available, err := e.inputBalance(ctx, participant, direction)
	if err != nil {
		return nil, fmt.Errorf("resolve balance for %s: %w", participantID, err)
	}
	if available < amountIn {
		observability.RecordSwapRejected("insufficient_balance")
		return nil, fmt.Errorf("%w: have %f, need %f", ErrInsufficientBalance, available, amountIn)
	}

	pool, err := e.pools.Get(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = ErrPoolUninitialized
		}
		return nil, e.recordFailure(ctx, participantID, amountIn, direction, 0, err)
	}

	quote, err := computeQuote(pool, amountIn, direction)
	if err != nil {
		return nil, e.recordFailure(ctx, participantID, amountIn, direction, 0, err)
	}

	if quote.PriceImpactPct > slippageTolerancePct {
		err = fmt.Errorf("%w: impact %.4f%% > tolerance %.4f%%", ErrSlippageExceeded, quote.PriceImpactPct, slippageTolerancePct)
		return nil, e.recordFailure(ctx, participantID, amountIn, direction, quote.PriceImpactPct, err)
	}

	record, err := e.commit(ctx, participant, pool, quote, direction)
	if err != nil {
		return nil, e.recordFailure(ctx, participantID, amountIn, direction, quote.PriceImpactPct, err)
	}

	// Async derived-stats refresh; detached from the caller's context so a
	// canceled dispatch unit cannot abort it mid-write.
	go e.refreshStatsAsync()

	return record, nil
}

// inputBalance resolves the participant's input-side balance, preferring the
// external ledger when configured.
func (e *Engine) inputBalance(ctx context.Context, p *domain.Participant, direction string) (float64, error) {
	if e.ledger != nil {
		if direction == domain.DirectionBuy {
			return e.ledger.GetSolBalance(ctx, p.WalletAddress)
		}
		return e.ledger.GetTokenBalance(ctx, p.WalletAddress)
	}
	if direction == domain.DirectionBuy {
		return p.SolBalance, nil
	}
	return p.TokenBalance, nil
}

// commit applies the quoted swap: pool reserves, volume, price, participant
// balances and a CONFIRMED transaction record. Caller holds e.mu.
func (e *Engine) commit(ctx context.Context, p *domain.Participant, pool *domain.PoolState, q *Quote, direction string) (*domain.TransactionRecord, error) {
	nowMs := e.now().UnixMilli()

	// Volume is accounted in SOL terms on both sides.
	var volumeSol float64
	if direction == domain.DirectionBuy {
		pool.SolReserve += q.AmountIn
		pool.TokenReserve -= q.AmountOut
		volumeSol = q.AmountIn
	} else {
		pool.TokenReserve += q.AmountIn
		pool.SolReserve -= q.AmountOut
		volumeSol = q.AmountOut
	}
	pool.K = pool.SolReserve * pool.TokenReserve
	pool.Price = pool.CurrentPrice()
	pool.CumulativeVolume += volumeSol
	pool.Volume24h += volumeSol
	pool.LastTradeAt = nowMs
	pool.UpdatedAt = nowMs

	if err := e.pools.Update(ctx, pool); err != nil {
		return nil, fmt.Errorf("update pool: %w", err)
	}

	// Symmetric balance update: debit input side, credit output side.
	sol, token := p.SolBalance, p.TokenBalance
	if direction == domain.DirectionBuy {
		sol -= q.AmountIn
		token += q.AmountOut
	} else {
		token -= q.AmountIn
		sol += q.AmountOut
	}
	if err := e.participants.UpdateBalances(ctx, p.ParticipantID, sol, token); err != nil {
		return nil, fmt.Errorf("update balances: %w", err)
	}

	record := &domain.TransactionRecord{
		TxID:          idhash.ComputeTransactionID(p.ParticipantID, direction, q.AmountIn, nowMs, e.nonce.Add(1)),
		ParticipantID: p.ParticipantID,
		Direction:     direction,
		AmountIn:      q.AmountIn,
		AmountOut:     q.AmountOut,
		PriceImpact:   q.PriceImpactPct,
		Status:        domain.TxStatusConfirmed,
		Detail:        fmt.Sprintf("effective price %.9f", q.EffectivePrice),
		CreatedAt:     nowMs,
	}
	if err := e.transactions.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	observability.RecordSwapExecuted(volumeSol)
	e.log("swap committed: %s %s in=%f out=%f impact=%.4f%%",
		p.ParticipantID, direction, q.AmountIn, q.AmountOut, q.PriceImpactPct)
	return record, nil
}

// recordFailure appends a FAILED transaction record carrying the error reason
// and returns the original error. Record insertion problems are logged, not
// propagated; the caller's error wins.
func (e *Engine) recordFailure(ctx context.Context, participantID string, amountIn float64, direction string, priceImpact float64, cause error) error {
	nowMs := e.now().UnixMilli()
	record := &domain.TransactionRecord{
		TxID:          idhash.ComputeTransactionID(participantID, direction, amountIn, nowMs, e.nonce.Add(1)),
		ParticipantID: participantID,
		Direction:     direction,
		AmountIn:      amountIn,
		PriceImpact:   priceImpact,
		Status:        domain.TxStatusFailed,
		Detail:        cause.Error(),
		CreatedAt:     nowMs,
	}
	if err := e.transactions.Insert(ctx, record); err != nil {
		e.log("failed to record FAILED transaction for %s: %v", participantID, err)
	}
	observability.RecordSwapRejected(rejectionReason(cause))
	return cause
}

// rejectionReason maps a failure cause to its metric label.
func rejectionReason(cause error) string {
	switch {
	case errors.Is(cause, ErrSlippageExceeded):
		return "slippage"
	case errors.Is(cause, ErrPoolUninitialized):
		return "pool_uninitialized"
	case errors.Is(cause, ErrInvalidAmount), errors.Is(cause, ErrInvalidDirection):
		return "invalid_input"
	default:
		return "other"
	}
}

// validateTrade checks the shared preconditions of Quote and Execute.
func validateTrade(amountIn float64, direction string) error {
	if amountIn <= 0 || math.IsNaN(amountIn) || math.IsInf(amountIn, 0) {
		return ErrInvalidAmount
	}
	if direction != domain.DirectionBuy && direction != domain.DirectionSell {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
	return nil
}

// computeQuote applies the constant-product rule k = solReserve * tokenReserve.
// Price impact is the absolute relative change of the reserve ratio, as a
// percentage. Pure function of its inputs.
func computeQuote(pool *domain.PoolState, amountIn float64, direction string) (*Quote, error) {
	if !pool.Initialized() {
		return nil, ErrPoolUninitialized
	}

	k := pool.SolReserve * pool.TokenReserve
	prePrice := pool.SolReserve / pool.TokenReserve

	var newSol, newToken, amountOut float64
	if direction == domain.DirectionBuy {
		newSol = pool.SolReserve + amountIn
		newToken = k / newSol
		amountOut = pool.TokenReserve - newToken
	} else {
		newToken = pool.TokenReserve + amountIn
		newSol = k / newToken
		amountOut = pool.SolReserve - newSol
	}

	if amountOut <= 0 {
		return nil, ErrInvalidAmount
	}

	postPrice := newSol / newToken
	impact := math.Abs(postPrice-prePrice) / prePrice * 100

	return &Quote{
		AmountIn:       amountIn,
		AmountOut:      amountOut,
		PriceImpactPct: impact,
		EffectivePrice: amountIn / amountOut,
	}, nil
}

func (e *Engine) log(format string, args ...interface{}) {
	if e.verbose && e.logger != nil {
		e.logger.Printf(format, args...)
	}
}
