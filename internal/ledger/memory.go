package ledger

import (
	"context"
	"sync"
	"time"

	"slotify/internal/clock"
)

// Memory is an in-process ledger sharded by item. Each item carries its own
// mutex, so operations on unrelated items run in parallel while every
// mutation of a given item's units is serialized. Expired holds are treated
// as absent on every read; the Sweeper only reclaims memory.
type Memory struct {
	mu    sync.RWMutex
	items map[string]*memoryItem
	clock clock.Clock
}

type memoryItem struct {
	mu       sync.Mutex
	holds    map[string]*Hold
	consumed map[string]struct{}
}

// NewMemory creates an empty in-memory ledger.
func NewMemory(clk clock.Clock) *Memory {
	return &Memory{
		items: make(map[string]*memoryItem),
		clock: clk,
	}
}

func (m *Memory) item(itemID string) *memoryItem {
	m.mu.RLock()
	it, ok := m.items[itemID]
	m.mu.RUnlock()
	if ok {
		return it
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok = m.items[itemID]; ok {
		return it
	}
	it = &memoryItem{
		holds:    make(map[string]*Hold),
		consumed: make(map[string]struct{}),
	}
	m.items[itemID] = it
	return it
}

func (m *Memory) Acquire(_ context.Context, itemID string, unitIDs []string, sessionID string, ttl time.Duration) (AcquireResult, error) {
	if len(unitIDs) == 0 {
		return AcquireResult{}, ErrNoUnits
	}

	now := m.clock.Now()
	expiresAt := now.Add(ttl)
	it := m.item(itemID)

	it.mu.Lock()
	defer it.mu.Unlock()

	result := AcquireResult{ExpiresAt: expiresAt}
	for _, unitID := range unitIDs {
		if _, gone := it.consumed[unitID]; gone {
			result.Conflicted = append(result.Conflicted, unitID)
			continue
		}

		hold, held := it.holds[unitID]
		if held && hold.ExpiresAt.After(now) && hold.SessionID != sessionID {
			result.Conflicted = append(result.Conflicted, unitID)
			continue
		}

		// Free, expired, or an idempotent re-acquire by the same session.
		acquiredAt := now
		if held && hold.SessionID == sessionID && hold.ExpiresAt.After(now) {
			acquiredAt = hold.AcquiredAt
		}
		it.holds[unitID] = &Hold{
			UnitID:     unitID,
			SessionID:  sessionID,
			AcquiredAt: acquiredAt,
			ExpiresAt:  expiresAt,
		}
		result.Granted = append(result.Granted, unitID)
	}

	return result, nil
}

func (m *Memory) Release(_ context.Context, itemID string, unitIDs []string, sessionID string) error {
	it := m.item(itemID)

	it.mu.Lock()
	defer it.mu.Unlock()

	for _, unitID := range unitIDs {
		if hold, ok := it.holds[unitID]; ok && hold.SessionID == sessionID {
			delete(it.holds, unitID)
		}
	}
	return nil
}

func (m *Memory) Consume(_ context.Context, itemID string, unitIDs []string, sessionID string) error {
	if len(unitIDs) == 0 {
		return ErrNoUnits
	}

	now := m.clock.Now()
	it := m.item(itemID)

	it.mu.Lock()
	defer it.mu.Unlock()

	var stale []string
	for _, unitID := range unitIDs {
		if _, gone := it.consumed[unitID]; gone {
			stale = append(stale, unitID)
			continue
		}
		hold, held := it.holds[unitID]
		if !held || hold.SessionID != sessionID || !hold.ExpiresAt.After(now) {
			stale = append(stale, unitID)
		}
	}
	if len(stale) > 0 {
		return &StaleHoldError{Units: stale}
	}

	for _, unitID := range unitIDs {
		it.consumed[unitID] = struct{}{}
		delete(it.holds, unitID)
	}
	return nil
}

func (m *Memory) Reinstate(_ context.Context, itemID string, unitIDs []string) error {
	it := m.item(itemID)

	it.mu.Lock()
	defer it.mu.Unlock()

	for _, unitID := range unitIDs {
		delete(it.consumed, unitID)
	}
	return nil
}

func (m *Memory) Validate(_ context.Context, itemID string, unitIDs []string, sessionID string) ([]string, error) {
	now := m.clock.Now()
	it := m.item(itemID)

	it.mu.Lock()
	defer it.mu.Unlock()

	var lapsed []string
	for _, unitID := range unitIDs {
		hold, held := it.holds[unitID]
		if !held || hold.SessionID != sessionID || !hold.ExpiresAt.After(now) {
			lapsed = append(lapsed, unitID)
		}
	}
	return lapsed, nil
}

func (m *Memory) States(_ context.Context, itemID string, unitIDs []string) (map[string]UnitState, error) {
	now := m.clock.Now()
	it := m.item(itemID)

	it.mu.Lock()
	defer it.mu.Unlock()

	states := make(map[string]UnitState, len(unitIDs))
	for _, unitID := range unitIDs {
		switch {
		case contains(it.consumed, unitID):
			states[unitID] = UnitConsumed
		case heldNow(it.holds, unitID, now):
			states[unitID] = UnitHeld
		default:
			states[unitID] = UnitFree
		}
	}
	return states, nil
}

// Sweep drops every expired hold and returns how many were reclaimed. Lazy
// checks already treat expired holds as absent; this keeps the maps small.
func (m *Memory) Sweep() int {
	now := m.clock.Now()

	m.mu.RLock()
	items := make([]*memoryItem, 0, len(m.items))
	for _, it := range m.items {
		items = append(items, it)
	}
	m.mu.RUnlock()

	reclaimed := 0
	for _, it := range items {
		it.mu.Lock()
		for unitID, hold := range it.holds {
			if !hold.ExpiresAt.After(now) {
				delete(it.holds, unitID)
				reclaimed++
			}
		}
		it.mu.Unlock()
	}
	return reclaimed
}

func contains(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

func heldNow(holds map[string]*Hold, unitID string, now time.Time) bool {
	hold, ok := holds[unitID]
	return ok && hold.ExpiresAt.After(now)
}
