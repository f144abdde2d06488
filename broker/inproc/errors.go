package inproc

import "errors"

var (
	// ErrBusClosed is returned by Publish after Close.
	ErrBusClosed = errors.New("inproc: bus is closed")

	// ErrInvalidTopicPattern is returned by Subscribe for a malformed
	// topic pattern.
	ErrInvalidTopicPattern = errors.New("inproc: invalid topic pattern")
)
