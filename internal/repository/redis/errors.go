package repository

import "errors"

var (
	ErrNotFound    = errors.New("record not found")
	ErrLockNotHeld = errors.New("lock not held")
)
