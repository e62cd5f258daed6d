package fn

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestOkAndErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok should be ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatal("wrong unwrap")
	}

	e := Err[int](errors.New("fail"))
	if e.IsOk() || !e.IsErr() {
		t.Fatal("Err should be err")
	}
	if _, err := e.Unwrap(); err == nil || err.Error() != "fail" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestTracedStagePassesResultThrough(t *testing.T) {
	double := TracedStage("double", func(_ context.Context, n int) Result[int] { return Ok(n * 2) })
	if v, _ := double(context.Background(), 21).Unwrap(); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}

	boom := errors.New("boom")
	failing := TracedStage("fail", func(context.Context, int) Result[int] { return Err[int](boom) })
	if _, err := failing(context.Background(), 1).Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestParMapResultKeepsOrder(t *testing.T) {
	items := []int{5, 1, 4, 2, 3}
	out := ParMapResult(items, 2, func(n int) Result[int] {
		time.Sleep(time.Duration(n) * time.Millisecond)
		if n == 4 {
			return Err[int](errors.New("four"))
		}
		return Ok(n * 10)
	})
	want := []int{50, 10, 0, 20, 30}
	for i, r := range out {
		v, err := r.Unwrap()
		if i == 2 {
			if err == nil {
				t.Fatal("expected error at index 2")
			}
			continue
		}
		if err != nil || v != want[i] {
			t.Fatalf("index %d: got %d, %v", i, v, err)
		}
	}
}

func TestParMapResultBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	items := make([]int, 20)
	ParMapResult(items, 3, func(int) Result[struct{}] {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		running.Add(-1)
		return Ok(struct{}{})
	})
	if peak.Load() > 3 {
		t.Fatalf("peak concurrency %d exceeds 3", peak.Load())
	}
}

func TestParMapResultEmpty(t *testing.T) {
	if out := ParMapResult(nil, 0, func(int) Result[int] { return Ok(1) }); len(out) != 0 {
		t.Fatalf("expected empty, got %d", len(out))
	}
}

func TestFanOut(t *testing.T) {
	out := FanOut(
		func() string { time.Sleep(2 * time.Millisecond); return "a" },
		func() string { return "b" },
	)
	if len(out) != 2 || out[0] != "a" || out[1] != "b" {
		t.Fatalf("unexpected %v", out)
	}
}

func TestRetrySucceedsEventually(t *testing.T) {
	var calls int
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
		func(context.Context) Result[string] {
			calls++
			if calls < 3 {
				return Err[string](errors.New("not yet"))
			}
			return Ok("done")
		})
	if v, err := r.Unwrap(); err != nil || v != "done" || calls != 3 {
		t.Fatalf("got %q, %v after %d calls", v, err, calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	var calls int
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Jitter: true},
		func(context.Context) Result[int] {
			calls++
			return Err[int](errors.New("down"))
		})
	if r.IsOk() || calls != 2 {
		t.Fatalf("expected failure after 2 calls, got %d", calls)
	}
}

func TestRetryStopsOnPermanent(t *testing.T) {
	denied := errors.New("denied")
	var calls int
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 5, InitialWait: time.Millisecond, MaxWait: time.Millisecond},
		func(context.Context) Result[int] {
			calls++
			return Err[int](fmt.Errorf("fetch: %w", Permanent(denied)))
		})
	_, err := r.Unwrap()
	if !errors.Is(err, denied) || calls != 1 {
		t.Fatalf("expected one call ending in denied, got %v after %d", err, calls)
	}
	if Permanent(nil) != nil {
		t.Fatal("Permanent(nil) should be nil")
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	r := Retry(ctx, RetryOpts{MaxAttempts: 5, InitialWait: time.Hour, MaxWait: time.Hour},
		func(context.Context) Result[int] {
			calls++
			cancel()
			return Err[int](errors.New("down"))
		})
	if _, err := r.Unwrap(); !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("expected cancellation after 1 call, got %v after %d", err, calls)
	}
}

func TestMapAndUnique(t *testing.T) {
	lens := Map([]string{"a", "bb", "ccc"}, func(s string) int { return len(s) })
	if len(lens) != 3 || lens[2] != 3 {
		t.Fatalf("unexpected %v", lens)
	}
	u := Unique([]string{"x", "y", "x", "z", "y"})
	if len(u) != 3 || u[0] != "x" || u[1] != "y" || u[2] != "z" {
		t.Fatalf("unexpected %v", u)
	}
}
