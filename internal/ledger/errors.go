package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoUnits is returned when an operation is called with an empty unit set.
	ErrNoUnits = errors.New("no units specified")
)

// StaleHoldError is returned by Consume when at least one unit in the set is
// expired, held by another session, or already consumed. The whole Consume is
// rejected; Units lists the offenders.
type StaleHoldError struct {
	Units []string
}

func (e *StaleHoldError) Error() string {
	return fmt.Sprintf("stale hold on units: %s", strings.Join(e.Units, ", "))
}

// IsStale reports whether err is a StaleHoldError.
func IsStale(err error) bool {
	var stale *StaleHoldError
	return errors.As(err, &stale)
}
