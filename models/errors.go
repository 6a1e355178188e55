package models

import "errors"

// Recoverable error taxonomy for the training arena. Every one of
// these is reported synchronously to the caller — none crash the
// process. Handlers map them to HTTP statuses with errors.Is.
var (
	ErrAlreadyQueued     = errors.New("participant already has a queue entry")
	ErrAlreadyInSession  = errors.New("participant already has an active session")
	ErrCapacityExceeded  = errors.New("active session capacity reached")
	ErrNoActiveSession   = errors.New("participant has no active session")
	ErrSessionNotActive  = errors.New("session is no longer active")
	ErrActionRateLimited = errors.New("action submitted before cooldown elapsed")
	ErrInvalidAction     = errors.New("unknown action type or missing ability")
	ErrAbilityOnCooldown = errors.New("ability is still on cooldown")
	ErrConsentRequired   = errors.New("participant has not consented to training")
)
