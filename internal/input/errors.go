package input

import "errors"

var (
	// ErrNoSnapshot indicates no snapshot has been published yet.
	ErrNoSnapshot = errors.New("input: no snapshot available")

	// ErrDecodeFailed indicates a device state message could not be parsed.
	ErrDecodeFailed = errors.New("input: decode failed")
)
