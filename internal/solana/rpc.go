// Package solana provides the on-chain ledger client used for authoritative
// balance lookups, plus wallet address helpers. When no RPC endpoint is
// configured the swap engine falls back to durable-store balances.
package solana

import "context"

// LamportsPerSol is the lamport denomination of one SOL.
const LamportsPerSol = 1_000_000_000

// BalanceClient defines the ledger balance lookup interface.
type BalanceClient interface {
	// GetSolBalance returns the SOL balance for a wallet address.
	GetSolBalance(ctx context.Context, address string) (float64, error)

	// GetTokenBalance returns the simulated token's balance for a wallet
	// address, summed over the owner's token accounts.
	GetTokenBalance(ctx context.Context, address string) (float64, error)
}
