package store

import "errors"

var (
	// ErrSessionNotFound indicates no session exists for the given id
	ErrSessionNotFound = errors.New("session not found")

	// ErrSecretMismatch indicates the presented session secret does not
	// match the stored hash
	ErrSecretMismatch = errors.New("session secret mismatch")

	// ErrSessionStale indicates the session exceeded the maximum session age
	ErrSessionStale = errors.New("session exceeded maximum age")
)
