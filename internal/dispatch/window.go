package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"solana-agent-sim/internal/storage"
)

// DefaultWindowTTL is how long a participant stays in the active window
// before rotating out.
const DefaultWindowTTL = 10 * time.Minute

// windowMember tracks when a participant entered the active window.
type windowMember struct {
	participantID string
	joinedAt      time.Time
}

// Window is the bounded, rotating subset of the population eligible for
// dispatch. Membership expires on a TTL and freed slots refill by random
// sampling of the active population, skipping current members.
type Window struct {
	participants storage.ParticipantStore
	maxSize      int
	ttl          time.Duration

	mu      sync.Mutex
	members []windowMember
	rng     *rand.Rand

	now func() time.Time
}

// WindowOptions configures Window.
type WindowOptions struct {
	Participants storage.ParticipantStore
	MaxSize      int
	TTL          time.Duration
	Seed         int64
}

// NewWindow creates an empty active window.
func NewWindow(opts WindowOptions) *Window {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 50
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultWindowTTL
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Window{
		participants: opts.Participants,
		maxSize:      opts.MaxSize,
		ttl:          opts.TTL,
		rng:          rand.New(rand.NewSource(seed)),
		now:          time.Now,
	}
}

// Batch expires stale members, refills free slots from the population and
// returns the window prefix up to batchSize.
func (w *Window) Batch(ctx context.Context, batchSize int) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.expireLocked()
	if err := w.refillLocked(ctx); err != nil {
		return nil, err
	}

	n := len(w.members)
	if batchSize < n {
		n = batchSize
	}
	batch := make([]string, 0, n)
	for _, m := range w.members[:n] {
		batch = append(batch, m.participantID)
	}
	return batch, nil
}

// Size returns the current window occupancy after expiring stale members.
func (w *Window) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.expireLocked()
	return len(w.members)
}

// expireLocked drops members older than the TTL. Caller holds mu.
func (w *Window) expireLocked() {
	cutoff := w.now().Add(-w.ttl)
	kept := w.members[:0]
	for _, m := range w.members {
		if m.joinedAt.After(cutoff) {
			kept = append(kept, m)
		}
	}
	w.members = kept
}

// refillLocked samples the active population into free slots, skipping
// current members. Caller holds mu.
func (w *Window) refillLocked(ctx context.Context) error {
	free := w.maxSize - len(w.members)
	if free <= 0 {
		return nil
	}

	ids, err := w.participants.GetActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("load active population: %w", err)
	}
	sort.Strings(ids)

	resident := make(map[string]bool, len(w.members))
	for _, m := range w.members {
		resident[m.participantID] = true
	}

	candidates := ids[:0]
	for _, id := range ids {
		if !resident[id] {
			candidates = append(candidates, id)
		}
	}

	w.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	if free > len(candidates) {
		free = len(candidates)
	}
	joined := w.now()
	for _, id := range candidates[:free] {
		w.members = append(w.members, windowMember{participantID: id, joinedAt: joined})
	}
	return nil
}
