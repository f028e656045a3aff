package interfaces

import "errors"

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrNoMatch is returned by conditional updates whose guard matched no
	// document.
	ErrNoMatch = errors.New("no record matched the update condition")
	// ErrDriverBusy is returned when a transition would give a driver a second
	// active ride.
	ErrDriverBusy = errors.New("driver already has an active ride")
)
