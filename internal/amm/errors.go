package amm

import "errors"

// Swap engine errors.
var (
	// ErrPoolUninitialized is returned when the pool has zero reserves.
	ErrPoolUninitialized = errors.New("pool uninitialized")

	// ErrInsufficientBalance is returned when the participant's input-side
	// balance cannot cover the requested input amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrSlippageExceeded is returned when the computed price impact is
	// above the caller's slippage tolerance.
	ErrSlippageExceeded = errors.New("slippage exceeded")

	// ErrInvalidAmount is returned when the input amount is not positive.
	ErrInvalidAmount = errors.New("input amount must be positive")

	// ErrInvalidDirection is returned for a direction other than buy/sell.
	ErrInvalidDirection = errors.New("invalid trade direction")
)
