package amm

import (
	"context"
	"fmt"
	"math"
)

// Deposit credits a participant's balances. Amounts must be non-negative and
// at least one must be positive.
func (e *Engine) Deposit(ctx context.Context, participantID string, sol, token float64) error {
	if err := validateAdjustment(sol, token); err != nil {
		return err
	}

	// Same mutex as swap commits so a deposit never races a balance update.
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.participants.GetByID(ctx, participantID)
	if err != nil {
		return fmt.Errorf("load participant %s: %w", participantID, err)
	}

	if err := e.participants.UpdateBalances(ctx, participantID, p.SolBalance+sol, p.TokenBalance+token); err != nil {
		return fmt.Errorf("credit balances: %w", err)
	}
	e.log("deposit: %s +%f SOL +%f tokens", participantID, sol, token)
	return nil
}

// Withdraw debits a participant's balances, rejecting overdrafts.
func (e *Engine) Withdraw(ctx context.Context, participantID string, sol, token float64) error {
	if err := validateAdjustment(sol, token); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.participants.GetByID(ctx, participantID)
	if err != nil {
		return fmt.Errorf("load participant %s: %w", participantID, err)
	}
	if p.SolBalance < sol || p.TokenBalance < token {
		return fmt.Errorf("%w: have %f SOL / %f tokens, want %f / %f",
			ErrInsufficientBalance, p.SolBalance, p.TokenBalance, sol, token)
	}

	if err := e.participants.UpdateBalances(ctx, participantID, p.SolBalance-sol, p.TokenBalance-token); err != nil {
		return fmt.Errorf("debit balances: %w", err)
	}
	e.log("withdraw: %s -%f SOL -%f tokens", participantID, sol, token)
	return nil
}

// Balances returns the participant's current balances, preferring the external
// ledger when configured.
func (e *Engine) Balances(ctx context.Context, participantID string) (sol, token float64, err error) {
	p, err := e.participants.GetByID(ctx, participantID)
	if err != nil {
		return 0, 0, fmt.Errorf("load participant %s: %w", participantID, err)
	}
	if e.ledger == nil {
		return p.SolBalance, p.TokenBalance, nil
	}

	sol, err = e.ledger.GetSolBalance(ctx, p.WalletAddress)
	if err != nil {
		return 0, 0, fmt.Errorf("ledger sol balance: %w", err)
	}
	token, err = e.ledger.GetTokenBalance(ctx, p.WalletAddress)
	if err != nil {
		return 0, 0, fmt.Errorf("ledger token balance: %w", err)
	}
	return sol, token, nil
}

// validateAdjustment checks a deposit/withdraw amount pair.
func validateAdjustment(sol, token float64) error {
	for _, v := range []float64{sol, token} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidAmount
		}
	}
	if sol == 0 && token == 0 {
		return ErrInvalidAmount
	}
	return nil
}
