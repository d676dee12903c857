package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrVersionConflict is returned when a compare-and-set write loses
	// to a concurrent update.
	ErrVersionConflict = errors.New("version conflict")

	// ErrActiveConfirmationExists is returned when creating a second
	// non-terminal confirmation request for the same trip.
	ErrActiveConfirmationExists = errors.New("active confirmation request already exists")
)
