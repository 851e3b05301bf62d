package domain

import "errors"

var (
	// ErrClosed is returned by store operations after Close.
	ErrClosed = errors.New("store is closed")
)
