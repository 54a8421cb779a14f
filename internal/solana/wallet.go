package solana

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// NewWalletAddress generates a fresh ed25519 keypair and returns the base58
// encoding of its public key. The private key is discarded: simulated
// participants never sign anything, the address only has to be a valid
// lookup key for ledger balance queries.
func NewWalletAddress() (string, error) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate keypair: %w", err)
	}
	return base58.Encode(pub), nil
}

// ValidateAddress checks that an address is well-formed: base58, 32 bytes,
// and a point on the ed25519 curve.
func ValidateAddress(address string) error {
	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("address is %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	if !isOnCurve(raw) {
		return fmt.Errorf("address is not a valid curve point")
	}
	return nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
