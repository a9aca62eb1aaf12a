package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefix for all HOTAS Relay MQTT communication.
const topicPrefix = "hotasrelay"

// Topics provides type-safe topic construction for the relay's MQTT scheme.
//
// Topic structure:
//
//	hotasrelay/state/physical/{device}    - device snapshots from the polling agent
//	hotasrelay/output/virtual/{device}    - virtual device write-sets to the driver shim
//	hotasrelay/system/status              - relay online/offline status (retained, LWT)
//	hotasrelay/event/map                  - rebind map lifecycle events (activated, updated)
//	hotasrelay/event/shift                - shift mode transitions
//
// Device segments are sanitized: MQTT wildcards and separators are replaced
// so a device name can never fan out a publish.
type Topics struct{}

// PhysicalState returns the topic a polling agent publishes device snapshots to.
//
// Example: hotasrelay/state/physical/throttle-left
func (Topics) PhysicalState(deviceID string) string {
	return fmt.Sprintf("%s/state/physical/%s", topicPrefix, sanitizeSegment(deviceID))
}

// AllPhysicalStates returns the wildcard subscription for every physical device.
//
// Example: hotasrelay/state/physical/+
func (Topics) AllPhysicalStates() string {
	return topicPrefix + "/state/physical/+"
}

// VirtualOutput returns the topic the relay publishes virtual write-sets to.
//
// Example: hotasrelay/output/virtual/vjoy-1
func (Topics) VirtualOutput(deviceID string) string {
	return fmt.Sprintf("%s/output/virtual/%s", topicPrefix, sanitizeSegment(deviceID))
}

// SystemStatus returns the relay status topic (retained, also used for LWT).
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}

// MapEvent returns the topic for rebind map lifecycle events.
func (Topics) MapEvent() string {
	return topicPrefix + "/event/map"
}

// ShiftEvent returns the topic for shift mode transition events.
func (Topics) ShiftEvent() string {
	return topicPrefix + "/event/shift"
}

// DeviceFromStateTopic extracts the device ID from a physical state topic.
//
// Parameters:
//   - topic: A concrete topic as delivered by the broker (no wildcards)
//
// Returns:
//   - string: The device ID segment
//   - error: ErrInvalidTopic if the topic does not match the state scheme
func (Topics) DeviceFromStateTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != topicPrefix || parts[1] != "state" || parts[2] != "physical" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	if parts[3] == "" {
		return "", fmt.Errorf("%w: empty device segment in %q", ErrInvalidTopic, topic)
	}
	return parts[3], nil
}

// sanitizeSegment makes a string safe for use as a single topic segment.
//
// MQTT separators and wildcards are replaced with underscores so a device
// name can never alter topic structure.
func sanitizeSegment(s string) string {
	replacer := strings.NewReplacer("/", "_", "+", "_", "#", "_")
	return replacer.Replace(s)
}
