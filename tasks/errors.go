package tasks

import "errors"

var (
	// ErrNotFound is returned for an unknown task ID.
	ErrNotFound = errors.New("task not found")

	// ErrDuplicate is returned when creating a task whose ID already exists.
	ErrDuplicate = errors.New("task already exists")
)
