package errors

import "fmt"

var (
	// Wire-facing: the exact text is returned in join acks.
	ErrNotAuthenticated = fmt.Errorf("Not authenticated")

	ErrAlreadyAuthenticated = fmt.Errorf("connection already authenticated")

	ErrMissingProject      = fmt.Errorf("missing project id")
	ErrInvalidToken        = fmt.Errorf("invalid or expired token")
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials")
	ErrInvalidPassword     = fmt.Errorf("password does not meet complexity requirements")
	ErrUserExists          = fmt.Errorf("user already exists")
	ErrUserNotFound        = fmt.Errorf("user not found")
	ErrNoBlockedWords      = fmt.Errorf("no blocked words have been provided")
	ErrSinkClosed          = fmt.Errorf("connection closed")
	ErrSinkFull            = fmt.Errorf("connection send buffer full")
	ErrCompletionExhausted = fmt.Errorf("completion retries exhausted")
	ErrWorkerPanic         = fmt.Errorf("worker panicked")
)
