package reconcile

import "errors"

var (
	ErrNoActiveWorkout   = errors.New("no active workout")
	ErrInvalidStatus     = errors.New("invalid session status")
	ErrInvalidDifficulty = errors.New("difficulty must be between 1 and 10")
	ErrInvalidWeight     = errors.New("weight must be positive")
	ErrStalePlan         = errors.New("a newer plan was already applied")
	ErrNotOwner          = errors.New("working state belongs to another user")
)
