package dispatch

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_GrowthIsCapped(t *testing.T) {
	b := NewBackoff(BackoffOptions{
		Floor:    100 * time.Millisecond,
		Cap:      time.Second,
		Cooldown: time.Second,
	})

	if b.Current() != 100*time.Millisecond {
		t.Fatalf("initial delay should be the floor, got %v", b.Current())
	}

	prev := b.Current()
	for i := 0; i < 10; i++ {
		b.RateLimited()
		current := b.Current()
		if current < prev {
			t.Fatalf("delay shrank after a throttle: %v -> %v", prev, current)
		}
		if current > time.Second {
			t.Fatalf("delay %v exceeded the cap", current)
		}
		prev = current
	}
	if b.Current() != time.Second {
		t.Errorf("repeated throttles should pin the delay at the cap, got %v", b.Current())
	}
}

func TestBackoff_SuccessDecaysTowardFloor(t *testing.T) {
	b := NewBackoff(BackoffOptions{
		Floor:    100 * time.Millisecond,
		Cap:      10 * time.Second,
		Cooldown: time.Second,
	})

	for i := 0; i < 4; i++ {
		b.RateLimited()
	}
	grown := b.Current()
	if grown != 1600*time.Millisecond {
		t.Fatalf("expected 1.6s after four doublings, got %v", grown)
	}

	b.Success()
	if b.Current() != 800*time.Millisecond {
		t.Errorf("one success should halve the delay, got %v", b.Current())
	}

	for i := 0; i < 10; i++ {
		b.Success()
	}
	if b.Current() != 100*time.Millisecond {
		t.Errorf("repeated successes should settle at the floor, got %v", b.Current())
	}
}

func TestBackoff_CooldownArmsAndExpires(t *testing.T) {
	b := NewBackoff(BackoffOptions{
		Floor:    time.Millisecond,
		Cap:      time.Second,
		Cooldown: time.Minute,
	})

	base := time.Now()
	clock := base
	b.now = func() time.Time { return clock }

	if b.InCooldown() {
		t.Fatal("fresh backoff should not be in cooldown")
	}

	b.RateLimited()
	if !b.InCooldown() {
		t.Error("throttle should arm the cooldown window")
	}

	clock = base.Add(2 * time.Minute)
	if b.InCooldown() {
		t.Error("cooldown should expire after its window")
	}
}

func TestBackoff_WaitHonorsCancellation(t *testing.T) {
	b := NewBackoff(BackoffOptions{
		Floor:    time.Hour,
		Cap:      time.Hour,
		Cooldown: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Wait(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}

func TestBackoff_WaitCoversCooldown(t *testing.T) {
	b := NewBackoff(BackoffOptions{
		Floor:    time.Millisecond,
		Cap:      time.Second,
		Cooldown: 50 * time.Millisecond,
	})
	b.RateLimited()

	started := time.Now()
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(started); elapsed < 40*time.Millisecond {
		t.Errorf("Wait returned in %v, before the cooldown elapsed", elapsed)
	}
}
