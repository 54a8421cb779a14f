package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeParticipantID computes a deterministic participant_id using SHA256.
// Formula: SHA256(run_seed|wallet_address|personality|index)
// Returns hex-encoded hash (64 characters).
func ComputeParticipantID(
	runSeed string,
	walletAddress string,
	personality string,
	index int,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		runSeed,
		walletAddress,
		personality,
		index,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
