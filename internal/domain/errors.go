package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAlreadySettled      = errors.New("reservation already settled")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrUnknownProvider     = errors.New("unknown provider")
	ErrInvalidTransition   = errors.New("invalid job state transition")
)
