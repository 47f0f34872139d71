package database

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateNoRM is returned when a patient's record number is taken.
	ErrDuplicateNoRM = errors.New("record number already exists")

	// ErrDuplicateEmail is returned when a user's email is taken.
	ErrDuplicateEmail = errors.New("email already exists")
)
