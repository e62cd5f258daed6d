package resilience

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestThrottleSpacesCalls(t *testing.T) {
	th := NewThrottle(20 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := th.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	// first call is immediate, the next three wait one interval each
	if elapsed := time.Since(start); elapsed < 55*time.Millisecond {
		t.Fatalf("calls not spaced: %v", elapsed)
	}
}

func TestThrottleSharedAcrossGoroutines(t *testing.T) {
	th := NewThrottle(10 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = th.Wait(ctx)
		}()
	}
	wg.Wait()
	if elapsed := time.Since(start); elapsed < 45*time.Millisecond {
		t.Fatalf("global rate exceeded: %v", elapsed)
	}
}

func TestThrottleDisabled(t *testing.T) {
	th := NewThrottle(0)
	if th.Interval() != 0 {
		t.Fatalf("interval = %v", th.Interval())
	}
	start := time.Now()
	for i := 0; i < 100; i++ {
		_ = th.Wait(context.Background())
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Fatal("disabled throttle should not block")
	}
}

func TestThrottleInterval(t *testing.T) {
	if got := NewThrottle(DefaultInterval).Interval(); got != DefaultInterval {
		t.Fatalf("interval = %v", got)
	}
}

func TestThrottleCancelled(t *testing.T) {
	th := NewThrottle(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	_ = th.Wait(ctx)
	cancel()
	if err := th.Wait(ctx); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}
