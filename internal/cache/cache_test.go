package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"attendtrack/internal/clock"
)

func compute(calls *int, v string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		*calls++
		return v, nil
	}
}

func TestHitWithinTTL(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	c := New[string](clk.Now)
	key := ReportKey("unit", []string{"u1"}, "2025-01-01", "2025-01-31")

	calls := 0
	v1, hit, err := c.GetOrCompute(context.Background(), key, []string{"u1"}, time.Minute, compute(&calls, "first"))
	if err != nil || hit || v1 != "first" {
		t.Fatalf("miss: v=%q hit=%v err=%v", v1, hit, err)
	}
	v2, hit, err := c.GetOrCompute(context.Background(), key, []string{"u1"}, time.Minute, compute(&calls, "second"))
	if err != nil || !hit || v2 != "first" {
		t.Fatalf("hit: v=%q hit=%v err=%v", v2, hit, err)
	}
	if calls != 1 {
		t.Fatalf("computeFn ran %d times, want 1", calls)
	}
}

func TestExpiryRecomputes(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	c := New[string](clk.Now)
	key := ReportKey("unit", []string{"u1"}, "2025-01-01", "2025-01-31")

	calls := 0
	if _, _, err := c.GetOrCompute(context.Background(), key, []string{"u1"}, time.Minute, compute(&calls, "first")); err != nil {
		t.Fatal(err)
	}
	clk.Advance(61 * time.Second)
	v, hit, err := c.GetOrCompute(context.Background(), key, []string{"u1"}, time.Minute, compute(&calls, "second"))
	if err != nil || hit || v != "second" {
		t.Fatalf("after expiry: v=%q hit=%v err=%v", v, hit, err)
	}
	if calls != 2 {
		t.Fatalf("computeFn ran %d times, want 2", calls)
	}
}

func TestInvalidateUnit(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	c := New[string](clk.Now)
	u1 := ReportKey("unit", []string{"u1"}, "2025-01-01", "2025-01-31")
	u2 := ReportKey("unit", []string{"u2"}, "2025-01-01", "2025-01-31")
	sys := ReportKey("all", nil, "2025-01-01", "2025-01-31")

	calls := 0
	ctx := context.Background()
	c.GetOrCompute(ctx, u1, []string{"u1"}, time.Minute, compute(&calls, "a"))
	c.GetOrCompute(ctx, u2, []string{"u2"}, time.Minute, compute(&calls, "b"))
	c.GetOrCompute(ctx, sys, nil, time.Minute, compute(&calls, "c"))
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}

	c.InvalidateUnit("u1")

	// u1 and the system-wide entry are gone, u2 survives.
	if _, hit, _ := c.GetOrCompute(ctx, u1, []string{"u1"}, time.Minute, compute(&calls, "a")); hit {
		t.Fatal("u1 served stale entry after invalidation")
	}
	if _, hit, _ := c.GetOrCompute(ctx, sys, nil, time.Minute, compute(&calls, "c")); hit {
		t.Fatal("system-wide entry survived unit invalidation")
	}
	if _, hit, _ := c.GetOrCompute(ctx, u2, []string{"u2"}, time.Minute, compute(&calls, "b")); !hit {
		t.Fatal("u2 entry should have survived")
	}
}

func TestDistinctScopesDistinctEntries(t *testing.T) {
	c := New[string](nil)
	ctx := context.Background()
	calls := 0
	self := ReportKey("self", []string{"p1"}, "2025-01-01", "2025-01-31")
	unit := ReportKey("unit", []string{"u1"}, "2025-01-01", "2025-01-31")

	c.GetOrCompute(ctx, self, []string{"u1"}, time.Minute, compute(&calls, "mine"))
	v, hit, _ := c.GetOrCompute(ctx, unit, []string{"u1"}, time.Minute, compute(&calls, "theirs"))
	if hit || v != "theirs" {
		t.Fatalf("scopes shared an entry: v=%q hit=%v", v, hit)
	}
	if calls != 2 {
		t.Fatalf("computeFn ran %d times, want 2", calls)
	}
}

func TestInvalidationDuringComputeDropsWriteBack(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	c := New[string](clk.Now)
	key := ReportKey("unit", []string{"u1"}, "2025-01-01", "2025-01-31")
	ctx := context.Background()

	started := make(chan struct{})
	proceed := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.GetOrCompute(ctx, key, []string{"u1"}, time.Minute, func(context.Context) (string, error) {
			close(started)
			<-proceed
			return "stale", nil
		})
	}()

	<-started
	c.InvalidateUnit("u1")
	close(proceed)
	wg.Wait()

	// The stale result must not have been written back.
	calls := 0
	if _, hit, _ := c.GetOrCompute(ctx, key, []string{"u1"}, time.Minute, compute(&calls, "fresh")); hit {
		t.Fatal("stale value written back after invalidation")
	}
	if calls != 1 {
		t.Fatal("fresh compute did not run")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int](nil)
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := ReportKey("unit", []string{"u1"}, "2025-01-01", "2025-01-31")
			for j := 0; j < 100; j++ {
				c.GetOrCompute(ctx, key, []string{"u1"}, time.Minute, func(context.Context) (int, error) { return i, nil })
				if j%10 == 0 {
					c.InvalidateUnit("u1")
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestComputeErrorNotCached(t *testing.T) {
	c := New[string](nil)
	ctx := context.Background()
	key := ReportKey("unit", []string{"u1"}, "2025-01-01", "2025-01-31")

	wantErr := context.DeadlineExceeded
	_, _, err := c.GetOrCompute(ctx, key, []string{"u1"}, time.Minute, func(context.Context) (string, error) {
		return "", wantErr
	})
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if c.Len() != 0 {
		t.Fatal("error result was cached")
	}
}
