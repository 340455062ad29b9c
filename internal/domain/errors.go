package domain

import "errors"

// ErrVersionConflict is returned when a conditional update observes a
// version other than the one the caller supplied.
var ErrVersionConflict = errors.New("version conflict")
