package ledger

import (
	"context"
	"time"
)

// UnitState describes what the ledger currently knows about a unit.
type UnitState string

const (
	UnitFree     UnitState = "FREE"
	UnitHeld     UnitState = "HELD"
	UnitConsumed UnitState = "CONSUMED"
)

// Hold is a time-bounded exclusive claim on a unit by one session.
type Hold struct {
	UnitID     string    `json:"unit_id"`
	SessionID  string    `json:"session_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// AcquireResult reports a partial grant: units not in conflict are granted
// even when others fail, and the caller decides whether to keep them.
type AcquireResult struct {
	Granted    []string  `json:"granted"`
	Conflicted []string  `json:"conflicted"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Ledger is the single source of truth for unit availability. All operations
// touching the same item are serialized against each other; Consume is
// additionally atomic across its whole unit set.
type Ledger interface {
	// Acquire holds each free unit for sessionID until now+ttl. A unit
	// already held by the same session has its expiry refreshed. Units held
	// by another session or consumed are reported as conflicts.
	Acquire(ctx context.Context, itemID string, unitIDs []string, sessionID string, ttl time.Duration) (AcquireResult, error)

	// Release frees units held by sessionID. Releasing a unit the session
	// does not hold is a no-op, never an error.
	Release(ctx context.Context, itemID string, unitIDs []string, sessionID string) error

	// Consume transitions held units to consumed, all or nothing. If any
	// unit is expired, stolen or already consumed the whole call fails with
	// a StaleHoldError and no unit changes state.
	Consume(ctx context.Context, itemID string, unitIDs []string, sessionID string) error

	// Reinstate returns consumed units straight to free. Only the Finalizer
	// calls this, to compensate a failed payment after a successful Consume.
	Reinstate(ctx context.Context, itemID string, unitIDs []string) error

	// Validate reports which of the given units are no longer actively held
	// by sessionID. Read-only; an expired hold counts as lapsed.
	Validate(ctx context.Context, itemID string, unitIDs []string, sessionID string) ([]string, error)

	// States returns the current state of each unit, treating expired holds
	// as free.
	States(ctx context.Context, itemID string, unitIDs []string) (map[string]UnitState, error)
}
