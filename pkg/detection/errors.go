package detection

import "errors"

var (
	// ErrInvalidFrame is recorded when a frame carries unusable values.
	ErrInvalidFrame = errors.New("detection: invalid frame")

	// ErrPanic wraps a panic recovered while processing a frame.
	ErrPanic = errors.New("detection: panic while processing frame")

	// ErrInactive is returned by commands issued after stop or a fault.
	ErrInactive = errors.New("detection: session not active")

	// ErrNotApplicable is returned by commands that do not apply in the current state.
	ErrNotApplicable = errors.New("detection: command not applicable in current state")

	// ErrSchemaLocked is returned when negotiation is attempted after frames were processed.
	ErrSchemaLocked = errors.New("detection: schema already negotiated")
)
