package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTransactionID computes a deterministic tx_id using SHA256.
// Formula: SHA256(participant_id|direction|amount_in|timestamp_ms|nonce)
// The nonce disambiguates retries of the same logical trade within one
// millisecond. Returns hex-encoded hash (64 characters).
func ComputeTransactionID(
	participantID string,
	direction string,
	amountIn float64,
	timestampMs int64,
	nonce uint64,
) string {
	data := fmt.Sprintf("%s|%s|%.12g|%d|%d",
		participantID,
		direction,
		amountIn,
		timestampMs,
		nonce,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
