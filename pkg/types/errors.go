package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidObservationID = errors.New("invalid observation ID")
	ErrInvalidScore         = errors.New("score must be >= 0")
	ErrMissingProject       = errors.New("project is required")
	ErrMissingTitle         = errors.New("title is required")
)
