package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrNoSession indicates no authenticated user id is available.
	ErrNoSession = errors.New("no session")
)
