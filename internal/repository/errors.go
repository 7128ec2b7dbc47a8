package repository

import "errors"

// ErrNotFound is returned when no record exists for a run id.
var ErrNotFound = errors.New("run record not found")

// ErrAlreadyQueued is returned by Create when the run id is still queued.
var ErrAlreadyQueued = errors.New("run is already queued")

// ErrInvalidToken is returned for a next token that cannot be decoded.
var ErrInvalidToken = errors.New("invalid next token")

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAlreadyQueued(err error) bool {
	return errors.Is(err, ErrAlreadyQueued)
}
