package storage

import "errors"

// ErrNotFound matches every NotFoundError through errors.Is.
var ErrNotFound = errors.New("exchange not found")

// NotFoundError is returned when an exchange doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return ErrNotFound.Error()
	}

	return ErrNotFound.Error() + ": " + e.ID
}

func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
