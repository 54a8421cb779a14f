package dispatch

import (
	"context"
	"sync"
	"time"

	"solana-agent-sim/internal/observability"
)

const (
	// DefaultBackoffFloor is the minimum inter-call spacing.
	DefaultBackoffFloor = 100 * time.Millisecond

	// DefaultBackoffCap bounds the adaptive delay.
	DefaultBackoffCap = 30 * time.Second

	// DefaultCooldown is how long dispatch pauses after a throttling signal.
	DefaultCooldown = 5 * time.Second
)

// Backoff is the single guarded holder of adaptive delay state. Every
// concurrent dispatch unit reads and writes it through its mutex; there is no
// other shared throttling state.
type Backoff struct {
	mu            sync.Mutex
	floor         time.Duration
	cap           time.Duration
	current       time.Duration
	cooldown      time.Duration
	cooldownUntil time.Time

	now func() time.Time
}

// BackoffOptions configures Backoff. Zero values take defaults.
type BackoffOptions struct {
	Floor    time.Duration
	Cap      time.Duration
	Cooldown time.Duration
}

// NewBackoff creates adaptive backoff state starting at the floor.
func NewBackoff(opts BackoffOptions) *Backoff {
	if opts.Floor <= 0 {
		opts.Floor = DefaultBackoffFloor
	}
	if opts.Cap <= 0 {
		opts.Cap = DefaultBackoffCap
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}

	return &Backoff{
		floor:    opts.Floor,
		cap:      opts.Cap,
		current:  opts.Floor,
		cooldown: opts.Cooldown,
		now:      time.Now,
	}
}

// Wait blocks for the current inter-call delay, extended to cover any active
// cooldown. Returns early with the context error on cancellation.
func (b *Backoff) Wait(ctx context.Context) error {
	b.mu.Lock()
	delay := b.current
	if until := b.cooldownUntil; until.After(b.now()) {
		if remaining := until.Sub(b.now()); remaining > delay {
			delay = remaining
		}
	}
	b.mu.Unlock()

	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Success moves the delay one halving step back toward the floor.
func (b *Backoff) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current /= 2
	if b.current < b.floor {
		b.current = b.floor
	}
	observability.UpdateBackoffDelay(b.current.Seconds())
}

// RateLimited doubles the delay up to the cap and arms the cooldown window.
func (b *Backoff) RateLimited() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current *= 2
	if b.current > b.cap {
		b.current = b.cap
	}
	b.cooldownUntil = b.now().Add(b.cooldown)
	observability.UpdateBackoffDelay(b.current.Seconds())
}

// Current returns the current adaptive delay.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// InCooldown reports whether the cooldown window is still active.
func (b *Backoff) InCooldown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cooldownUntil.After(b.now())
}
