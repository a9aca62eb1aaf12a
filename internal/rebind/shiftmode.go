package rebind

import "github.com/nerrad567/hotas-relay-core/internal/input"

// ShiftMask is the 8-bit shift mode bitmask.
//
// A rebind executes iff every bit set in its ActiveMode is also set in
// the current mask; bits absent from ActiveMode are don't-care. A rebind
// with ActiveMode zero is always active.
type ShiftMask uint8

// DefaultShiftMask is the shift mode a fresh map starts in.
const DefaultShiftMask ShiftMask = 0b00000001

// ActiveUnder reports whether a rebind with this required mask executes
// under the given current mask (all-required-bits subset test).
func (m ShiftMask) ActiveUnder(current ShiftMask) bool {
	return current&m == m
}

// ResolveShiftMode produces the tick's active shift mask.
//
// It starts from the map's base mask and applies every momentary control
// whose button is currently held: Enable bits are set, Disable bits are
// cleared. Controls apply in configured order, so a later control can
// clear a bit an earlier one set. A control whose source cannot be read
// (device missing, index out of range) reads as released.
//
// Parameters:
//   - base: The map's configured shift mask
//   - controls: Momentary shift controls, in configured order
//   - snap: Current device snapshot
//
// Returns:
//   - ShiftMask: The mask in effect for this tick (always valid)
func ResolveShiftMode(base ShiftMask, controls []ShiftControl, snap *input.Snapshot) ShiftMask {
	mask := base
	for _, ctl := range controls {
		if !shiftSourcePressed(ctl.Source, snap) {
			continue
		}
		mask |= ctl.Enable
		mask &^= ctl.Disable
	}
	return mask
}

// shiftSourcePressed reads a shift control's physical button, treating
// any unresolvable reference as released.
func shiftSourcePressed(ref ChannelRef, snap *input.Snapshot) bool {
	if snap == nil || ref.Class != ClassPhysical || ref.Channel != ChannelButton {
		return false
	}
	dev, ok := snap.Physical[ref.Device]
	if !ok {
		return false
	}
	if ref.Index < 0 || ref.Index >= len(dev.Buttons) {
		return false
	}
	return dev.Buttons[ref.Index]
}
