package oracle

import (
	"errors"
	"strings"
)

// ErrRateLimited is the distinguished throttling failure. The dispatcher
// recognizes it to drive adaptive backoff.
var ErrRateLimited = errors.New("oracle rate limited")

// IsRateLimited reports whether an error is a throttling signal, either the
// sentinel itself or a provider message matching a known pattern.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "429")
}
