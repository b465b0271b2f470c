package finalize

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPaymentFailed means the charge was refused or errored and the held
	// units were reinstated. The session can retry from review.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrNotFinalizable means the input is missing something finalization
	// requires, such as an empty unit set or a zero breakdown.
	ErrNotFinalizable = errors.New("session is not finalizable")
)

// InventoryChangedError means one or more units were no longer validly held
// at consume time. Nothing was consumed and no charge was attempted.
type InventoryChangedError struct {
	Units []string
}

func (e *InventoryChangedError) Error() string {
	return fmt.Sprintf("inventory changed for units: %s", strings.Join(e.Units, ", "))
}

// IsInventoryChanged reports whether err carries an InventoryChangedError.
func IsInventoryChanged(err error) (*InventoryChangedError, bool) {
	var ice *InventoryChangedError
	if errors.As(err, &ice) {
		return ice, true
	}
	return nil, false
}

// PersistenceError means payment was captured but the booking record could
// not be written. The units stay consumed and the payment reference is
// preserved for manual reconciliation. This must never be presented as a
// plain payment failure.
type PersistenceError struct {
	BookingRef string
	PaymentRef string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("booking %s paid (payment_ref=%s) but not recorded: %v",
		e.BookingRef, e.PaymentRef, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
