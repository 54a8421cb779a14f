package domain

// Transaction status constants.
const (
	TxStatusConfirmed = "CONFIRMED"
	TxStatusFailed    = "FAILED"
)

// TransactionRecord is the append-only history of one swap attempt.
// Created for both successful and failed attempts; never updated or deleted.
// Corresponds to transactions table in PostgreSQL.
type TransactionRecord struct {
	TxID          string  // deterministic hash
	ParticipantID string  // FK to participants
	Direction     string  // "buy" | "sell"
	AmountIn      float64 // input amount
	AmountOut     float64 // output amount, 0 for failed attempts
	PriceImpact   float64 // computed price impact percentage
	Status        string  // CONFIRMED | FAILED
	Detail        string  // free-form detail, error reason for failures
	CreatedAt     int64   // Unix timestamp in milliseconds
}
