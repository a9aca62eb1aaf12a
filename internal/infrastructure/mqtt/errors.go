package mqtt

import "errors"

var (
	// ErrConnectionFailed indicates the initial broker connection failed.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected indicates an operation was attempted while disconnected.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrPublishFailed indicates a publish was not acknowledged by the broker.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed indicates a subscribe or unsubscribe request failed.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrMarshalFailed indicates a payload could not be serialized to JSON.
	ErrMarshalFailed = errors.New("mqtt: marshal failed")

	// ErrInvalidTopic indicates a received topic did not match the expected scheme.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")
)
