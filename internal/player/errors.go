package player

import "errors"

var (
	// ErrInvalidRate is returned by SetRate for rates that are not finite
	// and positive.
	ErrInvalidRate = errors.New("playback rate must be a positive finite number")

	// ErrNoSource is returned by Play for an empty source.
	ErrNoSource = errors.New("no source given")
)
