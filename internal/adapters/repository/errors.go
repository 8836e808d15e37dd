package repository

import "errors"

// Sentinel kinds for device registry errors.
var (
	ErrNotFound      = errors.New("device not found")
	ErrMissingDevice = errors.New("event has no deviceId")
)
