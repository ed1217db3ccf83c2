package domain

import "errors"

var (
	ErrNotExist        = errors.New("does not exist")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrSessionLimit    = errors.New("maximum number of sessions reached")
)
