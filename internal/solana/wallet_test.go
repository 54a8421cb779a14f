package solana

import (
	"strings"
	"testing"
)

func TestNewWalletAddress_Valid(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		addr, err := NewWalletAddress()
		if err != nil {
			t.Fatalf("NewWalletAddress failed: %v", err)
		}
		if err := ValidateAddress(addr); err != nil {
			t.Errorf("generated address %s fails validation: %v", addr, err)
		}
		if seen[addr] {
			t.Errorf("duplicate address generated: %s", addr)
		}
		seen[addr] = true
	}
}

func TestValidateAddress_Rejects(t *testing.T) {
	cases := []struct {
		name string
		addr string
	}{
		{"empty", ""},
		{"not base58", "0OIl+/=="},
		{"too short", "abc"},
		{"too long", strings.Repeat("1", 50)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateAddress(tc.addr); err == nil {
				t.Errorf("expected validation error for %q", tc.addr)
			}
		})
	}
}
