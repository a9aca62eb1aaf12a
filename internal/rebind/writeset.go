package rebind

import (
	"fmt"

	"github.com/nerrad567/hotas-relay-core/internal/input"
)

// WriteSet is the in-progress virtual device state for one tick.
//
// It is seeded from the previous tick's committed virtual state, mutated
// in evaluation order, and committed once at the end of the tick. Reads
// during the tick see earlier writes from the same tick (last-writer-wins
// across the pipeline).
//
// Owned exclusively by the engine for the duration of a tick.
type WriteSet map[string]input.DeviceState

// NewWriteSet seeds a write-set from the committed virtual state.
func NewWriteSet(virtual map[string]input.DeviceState) WriteSet {
	ws := make(WriteSet, len(virtual))
	for id, dev := range virtual {
		ws[id] = dev.Clone()
	}
	return ws
}

// ReadButton returns a virtual button's in-progress value.
func (ws WriteSet) ReadButton(device string, index int) (bool, error) {
	dev, ok := ws[device]
	if !ok {
		return false, fmt.Errorf("%w: virtual device %q", ErrUnknownDevice, device)
	}
	if index < 0 || index >= len(dev.Buttons) {
		return false, fmt.Errorf("%w: %s button %d (device has %d)", ErrChannelRange, device, index, len(dev.Buttons))
	}
	return dev.Buttons[index], nil
}

// ReadAxis returns a virtual axis's in-progress value.
func (ws WriteSet) ReadAxis(device string, index int) (float64, error) {
	dev, ok := ws[device]
	if !ok {
		return 0, fmt.Errorf("%w: virtual device %q", ErrUnknownDevice, device)
	}
	if index < 0 || index >= len(dev.Axes) {
		return 0, fmt.Errorf("%w: %s axis %d (device has %d)", ErrChannelRange, device, index, len(dev.Axes))
	}
	return dev.Axes[index], nil
}

// ReadHat returns a virtual hat's in-progress value.
func (ws WriteSet) ReadHat(device string, index int) (input.HatDirection, error) {
	dev, ok := ws[device]
	if !ok {
		return "", fmt.Errorf("%w: virtual device %q", ErrUnknownDevice, device)
	}
	if index < 0 || index >= len(dev.Hats) {
		return "", fmt.Errorf("%w: %s hat %d (device has %d)", ErrChannelRange, device, index, len(dev.Hats))
	}
	return dev.Hats[index], nil
}

// WriteButton sets a virtual button. The device and channel must already
// exist; the engine never grows virtual devices.
func (ws WriteSet) WriteButton(device string, index int, value bool) error {
	dev, ok := ws[device]
	if !ok {
		return fmt.Errorf("%w: virtual device %q", ErrUnknownDevice, device)
	}
	if index < 0 || index >= len(dev.Buttons) {
		return fmt.Errorf("%w: %s button %d (device has %d)", ErrChannelRange, device, index, len(dev.Buttons))
	}
	dev.Buttons[index] = value
	return nil
}

// WriteAxis sets a virtual axis.
func (ws WriteSet) WriteAxis(device string, index int, value float64) error {
	dev, ok := ws[device]
	if !ok {
		return fmt.Errorf("%w: virtual device %q", ErrUnknownDevice, device)
	}
	if index < 0 || index >= len(dev.Axes) {
		return fmt.Errorf("%w: %s axis %d (device has %d)", ErrChannelRange, device, index, len(dev.Axes))
	}
	dev.Axes[index] = value
	return nil
}

// WriteHat sets a virtual hat.
func (ws WriteSet) WriteHat(device string, index int, value input.HatDirection) error {
	dev, ok := ws[device]
	if !ok {
		return fmt.Errorf("%w: virtual device %q", ErrUnknownDevice, device)
	}
	if index < 0 || index >= len(dev.Hats) {
		return fmt.Errorf("%w: %s hat %d (device has %d)", ErrChannelRange, device, index, len(dev.Hats))
	}
	dev.Hats[index] = value
	return nil
}

// WriteValue routes a typed value to the channel named by ref.
func (ws WriteSet) WriteValue(ref ChannelRef, v Value) error {
	switch ref.Channel {
	case ChannelButton:
		return ws.WriteButton(ref.Device, ref.Index, v.AsBool())
	case ChannelAxis:
		return ws.WriteAxis(ref.Device, ref.Index, v.AsAxis())
	case ChannelHat:
		if v.Kind != ValueHat {
			return fmt.Errorf("%w: cannot write %s value to hat channel", ErrInvalidReference, v.Kind)
		}
		return ws.WriteHat(ref.Device, ref.Index, v.Hat)
	default:
		return fmt.Errorf("%w: unknown channel type %q", ErrInvalidReference, ref.Channel)
	}
}

// Clone returns a deep copy of the write-set.
func (ws WriteSet) Clone() WriteSet {
	out := make(WriteSet, len(ws))
	for id, dev := range ws {
		out[id] = dev.Clone()
	}
	return out
}
