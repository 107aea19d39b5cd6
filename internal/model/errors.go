package model

import "errors"

// Common errors used across the application
var (
	// Registry errors
	ErrPlayerNotFound = errors.New("player not found")

	// Transport errors
	ErrConnectionNotFound = errors.New("connection not found")
	ErrMalformedEnvelope  = errors.New("malformed envelope")
	ErrUnknownCommand     = errors.New("unknown command")

	// Executor errors
	ErrExecutorStopped = errors.New("command executor stopped")
)
