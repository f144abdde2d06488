package store

import "errors"

// ErrNotFound indicates no task row matched the requested id.
var ErrNotFound = errors.New("store: task not found")
