package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionMismatch is returned when a conditional update carries a
// stale version token.
var ErrVersionMismatch = errors.New("version mismatch")

// ErrHandleTaken is returned when an insert collides on the handle's
// unique constraint.
var ErrHandleTaken = errors.New("handle already taken")

// ErrHandleExhausted is returned when handle de-duplication gives up.
var ErrHandleExhausted = errors.New("handle suffix attempts exhausted")
