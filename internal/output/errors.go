package output

import "errors"

var (
	// ErrCommitFailed indicates the driver shim rejected a write.
	ErrCommitFailed = errors.New("output: commit failed")

	// ErrEncodeFailed indicates a device state could not be serialized.
	ErrEncodeFailed = errors.New("output: encode failed")
)
