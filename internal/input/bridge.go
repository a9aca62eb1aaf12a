package input

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/hotas-relay-core/internal/infrastructure/mqtt"
)

// Transport is the subset of the MQTT client the bridge needs.
type Transport interface {
	Subscribe(topic string, handler mqtt.MessageHandler) error
}

// Logger interface for optional logging support.
type Logger interface {
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Bridge turns per-device MQTT state messages into whole snapshots.
//
// The polling agent publishes one DeviceState per physical device to
// hotasrelay/state/physical/{device}. The bridge merges each message into
// its working state and publishes a fresh immutable Snapshot to the
// buffer. Devices that stop publishing keep their last-known-good state;
// the tick loop reports the staleness, not the bridge.
//
// Thread Safety:
//   - MQTT handlers run on the paho client's goroutines; the working state
//     is guarded by a mutex. Published snapshots are deep copies.
type Bridge struct {
	buffer *Buffer
	logger Logger

	mu       sync.Mutex
	physical map[string]DeviceState
	virtual  map[string]DeviceState
	seq      uint64
}

// NewBridge creates a bridge publishing into the given buffer.
func NewBridge(buffer *Buffer, logger Logger) *Bridge {
	return &Bridge{
		buffer:   buffer,
		logger:   logger,
		physical: make(map[string]DeviceState),
		virtual:  make(map[string]DeviceState),
	}
}

// Start subscribes to all physical device state topics.
//
// Parameters:
//   - transport: Connected MQTT client
//
// Returns:
//   - error: If the subscription fails
func (b *Bridge) Start(transport Transport) error {
	topic := mqtt.Topics{}.AllPhysicalStates()
	if err := transport.Subscribe(topic, b.handleStateMessage); err != nil {
		return fmt.Errorf("input bridge: subscribe: %w", err)
	}
	return nil
}

// handleStateMessage decodes one device state message and republishes the snapshot.
func (b *Bridge) handleStateMessage(topic string, payload []byte) error {
	deviceID, err := mqtt.Topics{}.DeviceFromStateTopic(topic)
	if err != nil {
		return err
	}

	var state DeviceState
	if err := json.Unmarshal(payload, &state); err != nil {
		return fmt.Errorf("%w: device %s: %w", ErrDecodeFailed, deviceID, err)
	}

	b.ApplyPhysical(deviceID, state)
	return nil
}

// ApplyPhysical merges one physical device's state and publishes a new snapshot.
//
// Also used directly by tests and by local (non-MQTT) device producers.
func (b *Bridge) ApplyPhysical(deviceID string, state DeviceState) {
	b.mu.Lock()
	if _, seen := b.physical[deviceID]; !seen && b.logger != nil {
		b.logger.Debug("physical device discovered",
			"device", deviceID,
			"buttons", len(state.Buttons),
			"axes", len(state.Axes),
			"hats", len(state.Hats),
		)
	}
	b.physical[deviceID] = state.Clone()
	b.publishLocked()
	b.mu.Unlock()
}

// SetVirtual records a virtual device's committed output state.
//
// The tick loop calls this after every successful commit so the next
// snapshot reflects what the driver shim was told, letting virtual-reading
// rebinds observe committed values.
func (b *Bridge) SetVirtual(deviceID string, state DeviceState) {
	b.mu.Lock()
	b.virtual[deviceID] = state.Clone()
	b.publishLocked()
	b.mu.Unlock()
}

// SeedVirtual registers a virtual device's initial (zeroed) state.
//
// Virtual devices must be seeded before the engine can target them; an
// unseeded device reference is a configuration fault.
func (b *Bridge) SeedVirtual(deviceID string, buttons, axes, hats int) {
	state := DeviceState{
		Buttons: make([]bool, buttons),
		Axes:    make([]float64, axes),
		Hats:    make([]HatDirection, hats),
	}
	for i := range state.Hats {
		state.Hats[i] = HatCentered
	}

	b.mu.Lock()
	b.virtual[deviceID] = state
	b.publishLocked()
	b.mu.Unlock()
}

// publishLocked builds an immutable snapshot from the working state.
// Caller must hold b.mu.
func (b *Bridge) publishLocked() {
	b.seq++
	snap := &Snapshot{
		Physical: make(map[string]DeviceState, len(b.physical)),
		Virtual:  make(map[string]DeviceState, len(b.virtual)),
		Taken:    time.Now(),
		Seq:      b.seq,
	}
	for id, dev := range b.physical {
		snap.Physical[id] = dev.Clone()
	}
	for id, dev := range b.virtual {
		snap.Virtual[id] = dev.Clone()
	}
	b.buffer.Publish(snap)
}
