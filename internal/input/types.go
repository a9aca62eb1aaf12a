package input

import "time"

// HatDirection is a discrete point-of-view hat position.
type HatDirection string

// Hat direction values.
const (
	HatCentered  HatDirection = "centered"
	HatNorth     HatDirection = "north"
	HatNorthEast HatDirection = "north-east"
	HatEast      HatDirection = "east"
	HatSouthEast HatDirection = "south-east"
	HatSouth     HatDirection = "south"
	HatSouthWest HatDirection = "south-west"
	HatWest      HatDirection = "west"
	HatNorthWest HatDirection = "north-west"
)

// DeviceState holds the channel values of one device at one instant.
//
// Buttons are booleans, axes are normalized floats ([-1,1] for centered
// axes, [0,1] for throttles - the engine does not distinguish), hats are
// discrete directions. The same shape serves physical devices (read-only
// input) and virtual devices (engine-driven output).
type DeviceState struct {
	Buttons []bool         `json:"buttons"`
	Axes    []float64      `json:"axes"`
	Hats    []HatDirection `json:"hats"`
}

// Clone returns a deep copy of the device state.
func (s DeviceState) Clone() DeviceState {
	out := DeviceState{}
	if s.Buttons != nil {
		out.Buttons = make([]bool, len(s.Buttons))
		copy(out.Buttons, s.Buttons)
	}
	if s.Axes != nil {
		out.Axes = make([]float64, len(s.Axes))
		copy(out.Axes, s.Axes)
	}
	if s.Hats != nil {
		out.Hats = make([]HatDirection, len(s.Hats))
		copy(out.Hats, s.Hats)
	}
	return out
}

// Snapshot is an immutable per-tick view of every device.
//
// Physical holds the raw state published by the polling agent. Virtual
// holds each virtual device's last committed output state, fed back after
// every commit so virtual-reading rebinds can observe it.
//
// A Snapshot is never mutated after publication. Producers build a fresh
// value and swap it in atomically; consumers treat it as read-only.
type Snapshot struct {
	Physical map[string]DeviceState `json:"physical"`
	Virtual  map[string]DeviceState `json:"virtual"`
	Taken    time.Time              `json:"taken"`
	Seq      uint64                 `json:"seq"`
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Physical: make(map[string]DeviceState, len(s.Physical)),
		Virtual:  make(map[string]DeviceState, len(s.Virtual)),
		Taken:    s.Taken,
		Seq:      s.Seq,
	}
	for id, dev := range s.Physical {
		out.Physical[id] = dev.Clone()
	}
	for id, dev := range s.Virtual {
		out.Virtual[id] = dev.Clone()
	}
	return out
}
