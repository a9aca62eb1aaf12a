package mqtt

import (
	"encoding/json"
	"fmt"
)

// Publish sends a message to the specified topic.
//
// The payload is marshaled to JSON before publishing. Publishing uses the
// configured QoS level and waits for broker acknowledgment up to the
// publish timeout.
//
// Parameters:
//   - topic: Full topic path (use Topics methods for construction)
//   - payload: Any JSON-marshalable value
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: ErrNotConnected, marshal failure, or publish timeout/failure
func (c *Client) Publish(topic string, payload any, retained bool) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMarshalFailed, err)
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), retained, data)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishRaw sends pre-serialized bytes to the specified topic.
//
// Used by the output sink on the hot path, where the write-set encoder
// has already produced the payload.
func (c *Client) PublishRaw(topic string, payload []byte, retained bool) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
