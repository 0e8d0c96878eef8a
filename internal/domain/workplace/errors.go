package workplace

import "errors"

// Workplace domain errors
var (
	ErrWorkplaceNotFound = errors.New("workplace not found")
	ErrShiftNotFound     = errors.New("no shift assigned for this user")
)
