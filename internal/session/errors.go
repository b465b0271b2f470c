package session

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotYourSession  = errors.New("session belongs to another shopper")
	ErrWrongStage      = errors.New("operation not allowed in current stage")

	// ErrScheduleRequired means the item is scheduled and no showtime was chosen.
	ErrScheduleRequired = errors.New("a showtime must be selected first")

	// ErrUnknownShowtime means the showtime does not belong to the session's item.
	ErrUnknownShowtime = errors.New("showtime does not belong to this item")

	ErrNoUnitsSelected = errors.New("at least one unit must be selected")

	// ErrParticipantsIncomplete means advancing to review was attempted with
	// missing or invalid participant details.
	ErrParticipantsIncomplete = errors.New("participant details are incomplete")

	// ErrSessionExpired means the ledger no longer honors one or more of the
	// session's own holds. The lapsed units have been dropped from the
	// selection and reported as conflicts.
	ErrSessionExpired = errors.New("session holds have lapsed")

	ErrSessionFinished = errors.New("session already confirmed or abandoned")
)
