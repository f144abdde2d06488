package correlation

import "errors"

var (
	// ErrTimeout indicates a pending request's deadline elapsed before a
	// final reply arrived. The broker never observes this timeout; a
	// reply that arrives afterward is treated as unsolicited.
	ErrTimeout = errors.New("correlation: timed out waiting for reply")

	// ErrClosed indicates Send (or SendHistory) was called, or a pending
	// request was still outstanding, after the proxy was disposed.
	ErrClosed = errors.New("correlation: proxy is closed")
)
