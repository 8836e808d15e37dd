package story

import "errors"

// Sentinel kinds for story errors.
var (
	ErrNotFound       = errors.New("story not found")
	ErrFetch          = errors.New("story fetch failed")
	ErrDecode         = errors.New("story decode failed")
	ErrUnsupportedURL = errors.New("unsupported story url")
)
