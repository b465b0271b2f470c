package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"slotify/internal/clock"
)

func TestMemory_Acquire(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	ttl := 5 * time.Minute

	t.Run("grants free units", func(t *testing.T) {
		clk := clock.NewMock(now)
		l := NewMemory(clk)

		result, err := l.Acquire(context.Background(), "show-1", []string{"A1", "A2"}, "s1", ttl)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(result.Granted) != 2 || len(result.Conflicted) != 0 {
			t.Fatalf("expected 2 granted and 0 conflicted, got %v / %v", result.Granted, result.Conflicted)
		}
		if result.ExpiresAt != now.Add(ttl) {
			t.Fatalf("expected expiry %v, got %v", now.Add(ttl), result.ExpiresAt)
		}
	})

	t.Run("partial grant on contention", func(t *testing.T) {
		clk := clock.NewMock(now)
		l := NewMemory(clk)

		if _, err := l.Acquire(context.Background(), "show-1", []string{"A2"}, "s1", ttl); err != nil {
			t.Fatalf("setup acquire failed: %v", err)
		}

		result, err := l.Acquire(context.Background(), "show-1", []string{"A2", "A3"}, "s2", ttl)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(result.Granted) != 1 || result.Granted[0] != "A3" {
			t.Fatalf("expected only A3 granted, got %v", result.Granted)
		}
		if len(result.Conflicted) != 1 || result.Conflicted[0] != "A2" {
			t.Fatalf("expected A2 conflicted, got %v", result.Conflicted)
		}
	})

	t.Run("re-acquire by owner refreshes expiry", func(t *testing.T) {
		clk := clock.NewMock(now)
		l := NewMemory(clk)

		if _, err := l.Acquire(context.Background(), "show-1", []string{"A1"}, "s1", ttl); err != nil {
			t.Fatalf("setup acquire failed: %v", err)
		}

		clk.Advance(4 * time.Minute)
		result, err := l.Acquire(context.Background(), "show-1", []string{"A1"}, "s1", ttl)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(result.Granted) != 1 {
			t.Fatalf("expected refresh to be granted, got %v", result)
		}

		// The original TTL would have lapsed by now; the refresh keeps it alive.
		clk.Advance(2 * time.Minute)
		lapsed, err := l.Validate(context.Background(), "show-1", []string{"A1"}, "s1")
		if err != nil {
			t.Fatalf("validate failed: %v", err)
		}
		if len(lapsed) != 0 {
			t.Fatalf("expected hold still active after refresh, lapsed: %v", lapsed)
		}
	})

	t.Run("expired hold is reclaimed by next acquire", func(t *testing.T) {
		clk := clock.NewMock(now)
		l := NewMemory(clk)

		if _, err := l.Acquire(context.Background(), "show-1", []string{"A1"}, "s1", ttl); err != nil {
			t.Fatalf("setup acquire failed: %v", err)
		}

		clk.Advance(ttl + time.Second)
		result, err := l.Acquire(context.Background(), "show-1", []string{"A1"}, "s2", ttl)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(result.Granted) != 1 || result.Granted[0] != "A1" {
			t.Fatalf("expected A1 granted to s2 after expiry, got %v", result)
		}
	})

	t.Run("consumed unit conflicts forever", func(t *testing.T) {
		clk := clock.NewMock(now)
		l := NewMemory(clk)

		if _, err := l.Acquire(context.Background(), "show-1", []string{"A1"}, "s1", ttl); err != nil {
			t.Fatalf("setup acquire failed: %v", err)
		}
		if err := l.Consume(context.Background(), "show-1", []string{"A1"}, "s1"); err != nil {
			t.Fatalf("consume failed: %v", err)
		}

		clk.Advance(24 * time.Hour)
		result, err := l.Acquire(context.Background(), "show-1", []string{"A1"}, "s2", ttl)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(result.Conflicted) != 1 {
			t.Fatalf("expected consumed unit to conflict, got %v", result)
		}
	})

	t.Run("empty unit set rejected", func(t *testing.T) {
		l := NewMemory(clock.NewMock(now))
		if _, err := l.Acquire(context.Background(), "show-1", nil, "s1", ttl); err != ErrNoUnits {
			t.Fatalf("expected ErrNoUnits, got %v", err)
		}
	})
}

// Exactly one of N racing sessions may win a free unit.
func TestMemory_AcquireRace(t *testing.T) {
	t.Parallel()

	l := NewMemory(clock.NewSystem())
	const racers = 64

	var wg sync.WaitGroup
	winners := make(chan string, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sessionID := "session-" + string(rune('a'+n%26)) + "-" + string(rune('0'+n/26))
			result, err := l.Acquire(context.Background(), "show-1", []string{"A1"}, sessionID, time.Minute)
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			if len(result.Granted) == 1 {
				winners <- sessionID
			}
		}(i)
	}
	wg.Wait()
	close(winners)

	count := 0
	for range winners {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
}

func TestMemory_Release(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	ttl := 5 * time.Minute

	t.Run("release is idempotent", func(t *testing.T) {
		clk := clock.NewMock(now)
		l := NewMemory(clk)

		if _, err := l.Acquire(context.Background(), "show-1", []string{"A1"}, "s1", ttl); err != nil {
			t.Fatalf("setup acquire failed: %v", err)
		}

		for i := 0; i < 2; i++ {
			if err := l.Release(context.Background(), "show-1", []string{"A1"}, "s1"); err != nil {
				t.Fatalf("release %d errored: %v", i, err)
			}
		}

		states, err := l.States(context.Background(), "show-1", []string{"A1"})
		if err != nil {
			t.Fatalf("states failed: %v", err)
		}
		if states["A1"] != UnitFree {
			t.Fatalf("expected A1 free, got %s", states["A1"])
		}
	})

	t.Run("release after expiry is a no-op", func(t *testing.T) {
		clk := clock.NewMock(now)
		l := NewMemory(clk)

		if _, err := l.Acquire(context.Background(), "show-1", []string{"A1"}, "s1", ttl); err != nil {
			t.Fatalf("setup acquire failed: %v", err)
		}

		clk.Advance(ttl + time.Second)
		if _, err := l.Acquire(context.Background(), "show-1", []string{"A1"}, "s2", ttl); err != nil {
			t.Fatalf("reacquire failed: %v", err)
		}

		// s1's late release must not steal the unit from s2.
		if err := l.Release(context.Background(), "show-1", []string{"A1"}, "s1"); err != nil {
			t.Fatalf("late release errored: %v", err)
		}
		states, err := l.States(context.Background(), "show-1", []string{"A1"})
		if err != nil {
			t.Fatalf("states failed: %v", err)
		}
		if states["A1"] != UnitHeld {
			t.Fatalf("expected A1 still held by s2, got %s", states["A1"])
		}
	})

	t.Run("release by non-owner is a no-op", func(t *testing.T) {
		clk := clock.NewMock(now)
		l := NewMemory(clk)

		if _, err := l.Acquire(context.Background(), "show-1", []string{"A1"}, "s1", ttl); err != nil {
			t.Fatalf("setup acquire failed: %v", err)
		}
		if err := l.Release(context.Background(), "show-1", []string{"A1"}, "s2"); err != nil {
			t.Fatalf("non-owner release errored: %v", err)
		}

		lapsed, err := l.Validate(context.Background(), "show-1", []string{"A1"}, "s1")
		if err != nil {
			t.Fatalf("validate failed: %v", err)
		}
		if len(lapsed) != 0 {
			t.Fatalf("expected s1 hold intact, lapsed: %v", lapsed)
		}
	})
}

func TestMemory_Consume(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

	t.Run("all-or-nothing on partial expiry", func(t *testing.T) {
		clk := clock.NewMock(now)
		l := NewMemory(clk)

		// A expires well before B.
		if _, err := l.Acquire(context.Background(), "show-1", []string{"A"}, "s1", time.Minute); err != nil {
			t.Fatalf("acquire A failed: %v", err)
		}
		if _, err := l.Acquire(context.Background(), "show-1", []string{"B"}, "s1", 10*time.Minute); err != nil {
			t.Fatalf("acquire B failed: %v", err)
		}

		clk.Advance(2 * time.Minute)
		err := l.Consume(context.Background(), "show-1", []string{"A", "B"}, "s1")
		stale, ok := err.(*StaleHoldError)
		if !ok {
			t.Fatalf("expected StaleHoldError, got %v", err)
		}
		if len(stale.Units) != 1 || stale.Units[0] != "A" {
			t.Fatalf("expected only A stale, got %v", stale.Units)
		}

		states, err := l.States(context.Background(), "show-1", []string{"A", "B"})
		if err != nil {
			t.Fatalf("states failed: %v", err)
		}
		if states["A"] != UnitFree {
			t.Fatalf("expected A free after expiry, got %s", states["A"])
		}
		if states["B"] != UnitHeld {
			t.Fatalf("expected B untouched and held, got %s", states["B"])
		}
	})

	t.Run("succeeds for a fully held set", func(t *testing.T) {
		clk := clock.NewMock(now)
		l := NewMemory(clk)

		if _, err := l.Acquire(context.Background(), "show-1", []string{"A", "B"}, "s1", 10*time.Minute); err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		if err := l.Consume(context.Background(), "show-1", []string{"A", "B"}, "s1"); err != nil {
			t.Fatalf("consume failed: %v", err)
		}

		states, err := l.States(context.Background(), "show-1", []string{"A", "B"})
		if err != nil {
			t.Fatalf("states failed: %v", err)
		}
		if states["A"] != UnitConsumed || states["B"] != UnitConsumed {
			t.Fatalf("expected both consumed, got %v", states)
		}
	})

	t.Run("fails for a stolen unit", func(t *testing.T) {
		clk := clock.NewMock(now)
		l := NewMemory(clk)

		if _, err := l.Acquire(context.Background(), "show-1", []string{"A"}, "s1", time.Minute); err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		clk.Advance(2 * time.Minute)
		if _, err := l.Acquire(context.Background(), "show-1", []string{"A"}, "s2", 10*time.Minute); err != nil {
			t.Fatalf("steal failed: %v", err)
		}

		if err := l.Consume(context.Background(), "show-1", []string{"A"}, "s1"); !IsStale(err) {
			t.Fatalf("expected stale error for stolen unit, got %v", err)
		}
	})
}

func TestMemory_Reinstate(t *testing.T) {
	t.Parallel()

	clk := clock.NewMock(time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC))
	l := NewMemory(clk)

	if _, err := l.Acquire(context.Background(), "show-1", []string{"A"}, "s1", 10*time.Minute); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if err := l.Consume(context.Background(), "show-1", []string{"A"}, "s1"); err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if err := l.Reinstate(context.Background(), "show-1", []string{"A"}); err != nil {
		t.Fatalf("reinstate failed: %v", err)
	}

	// The unit goes straight back to free, not held.
	states, err := l.States(context.Background(), "show-1", []string{"A"})
	if err != nil {
		t.Fatalf("states failed: %v", err)
	}
	if states["A"] != UnitFree {
		t.Fatalf("expected A free after reinstate, got %s", states["A"])
	}
}

func TestMemory_Sweep(t *testing.T) {
	t.Parallel()

	clk := clock.NewMock(time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC))
	l := NewMemory(clk)

	if _, err := l.Acquire(context.Background(), "show-1", []string{"A", "B"}, "s1", time.Minute); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if _, err := l.Acquire(context.Background(), "show-2", []string{"C"}, "s2", time.Hour); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	clk.Advance(5 * time.Minute)
	if reclaimed := l.Sweep(); reclaimed != 2 {
		t.Fatalf("expected 2 holds reclaimed, got %d", reclaimed)
	}
	if reclaimed := l.Sweep(); reclaimed != 0 {
		t.Fatalf("expected second sweep to reclaim nothing, got %d", reclaimed)
	}

	lapsed, err := l.Validate(context.Background(), "show-2", []string{"C"}, "s2")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if len(lapsed) != 0 {
		t.Fatalf("expected unexpired hold to survive sweep, lapsed: %v", lapsed)
	}
}
