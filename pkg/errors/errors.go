package errors

import (
	"fmt"
)

var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrForbidden    = fmt.Errorf("forbidden")
	ErrInvalidState = fmt.Errorf("invalid state")
	ErrInvalidArg   = fmt.Errorf("invalid arg")
	ErrNotSupported = fmt.Errorf("not supported")
	ErrMaxExceeded  = fmt.Errorf("max length exceeded")

	// lock
	ErrLockHeld = fmt.Errorf("lock held")
	ErrLockLost = fmt.Errorf("lock lost")

	// control commands
	ErrCannotPause  = fmt.Errorf("job cannot be paused: %w", ErrInvalidState)
	ErrCannotResume = fmt.Errorf("job cannot be resumed: %w", ErrInvalidState)
	ErrCannotStop   = fmt.Errorf("job cannot be stopped: %w", ErrInvalidState)

	// payloads, these end up in a job's error field verbatim
	ErrSourceMissing = fmt.Errorf("Source file missing")
	ErrSourceNoRead  = fmt.Errorf("Cannot read file")
	ErrSourceBadJSON = fmt.Errorf("Invalid JSON")
	ErrNoPayload     = fmt.Errorf("no payload given: %w", ErrInvalidArg)
)
