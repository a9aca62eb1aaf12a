package rebind

import "errors"

// Sentinel errors for rebind operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, rebind.ErrNotFound) {
//	    // Handle missing map
//	}
var (
	// ErrNotFound indicates the requested rebind map does not exist.
	ErrNotFound = errors.New("rebind: map not found")

	// ErrNoActiveMap indicates no rebind map is currently active.
	ErrNoActiveMap = errors.New("rebind: no active map")

	// ErrDuplicateID indicates a rebind ID appears more than once in a map.
	ErrDuplicateID = errors.New("rebind: duplicate rebind id")

	// ErrDuplicateSlug indicates the map slug is already taken.
	ErrDuplicateSlug = errors.New("rebind: duplicate slug")

	// ErrInvalidMap indicates a rebind map failed validation.
	ErrInvalidMap = errors.New("rebind: invalid map")

	// ErrInvalidRebind indicates a rebind definition failed validation.
	ErrInvalidRebind = errors.New("rebind: invalid rebind")

	// ErrInvalidTransform indicates transform parameters failed validation.
	ErrInvalidTransform = errors.New("rebind: invalid transform")

	// ErrInvalidReference indicates a channel reference is malformed for
	// its position (wrong class for the rebind kind, wrong value type).
	ErrInvalidReference = errors.New("rebind: invalid channel reference")

	// ErrUnknownDevice indicates a referenced device is not in the snapshot.
	ErrUnknownDevice = errors.New("rebind: unknown device")

	// ErrChannelRange indicates a channel index is out of range for its device.
	ErrChannelRange = errors.New("rebind: channel index out of range")

	// ErrUnknownRegister indicates a referenced logical register was never
	// defined by any logical rebind in the map.
	ErrUnknownRegister = errors.New("rebind: unknown logical register")
)
