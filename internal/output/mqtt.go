package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/hotas-relay-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/hotas-relay-core/internal/rebind"
)

// Publisher is the subset of the MQTT client the sink needs.
type Publisher interface {
	PublishRaw(topic string, payload []byte, retained bool) error
}

// MQTTSink publishes committed virtual device state to the driver shim.
//
// Each virtual device gets one message on hotasrelay/output/virtual/{device}
// per tick in which its state changed. Unchanged devices are skipped, so
// a 250 Hz tick rate with idle controls publishes nothing.
//
// Not safe for concurrent use; the tick loop is the only caller.
type MQTTSink struct {
	publisher Publisher

	// lastPublished caches each device's last payload to suppress
	// republishing unchanged state.
	lastPublished map[string][]byte
}

// NewMQTTSink creates a sink publishing through the given client.
func NewMQTTSink(publisher Publisher) *MQTTSink {
	return &MQTTSink{
		publisher:     publisher,
		lastPublished: make(map[string][]byte),
	}
}

// Commit publishes every changed device's state.
//
// All devices are attempted even if one fails; the errors are joined so
// the tick loop can report them together.
func (s *MQTTSink) Commit(_ context.Context, ws rebind.WriteSet) error {
	var errs []error
	for deviceID, state := range ws {
		payload, err := json.Marshal(state)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrEncodeFailed, deviceID, err))
			continue
		}
		if prev, ok := s.lastPublished[deviceID]; ok && string(prev) == string(payload) {
			continue
		}

		topic := mqtt.Topics{}.VirtualOutput(deviceID)
		if err := s.publisher.PublishRaw(topic, payload, true); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrCommitFailed, deviceID, err))
			continue
		}
		s.lastPublished[deviceID] = payload
	}
	return errors.Join(errs...)
}
