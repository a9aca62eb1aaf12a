package rebind

import (
	"time"

	"github.com/nerrad567/hotas-relay-core/internal/input"
)

// Kind identifies which of the three pipeline stages a rebind belongs to.
type Kind string

// Rebind kinds, in pipeline order.
const (
	// KindLogical produces derived scratch values in the logical register
	// space; never touches virtual device state directly.
	KindLogical Kind = "logical"

	// KindReroute maps physical channels or logical registers onto
	// virtual device channels.
	KindReroute Kind = "reroute"

	// KindVirtual maps virtual device channels (reading the in-progress
	// write-set) onto virtual device channels.
	KindVirtual Kind = "virtual"
)

// ChannelClass identifies where a channel reference resolves.
type ChannelClass string

// Channel classes.
const (
	ClassPhysical ChannelClass = "physical"
	ClassVirtual  ChannelClass = "virtual"
	ClassRegister ChannelClass = "register"
)

// Channel identifies a device channel type.
type Channel string

// Channel types.
const (
	ChannelButton Channel = "button"
	ChannelAxis   Channel = "axis"
	ChannelHat    Channel = "hat"
)

// ChannelRef addresses one signal: a physical or virtual device channel,
// or a logical register.
//
// For device classes, Device/Channel/Index select the channel. For
// ClassRegister, Register names the logical register (the ID of the
// logical rebind that writes it) and the other fields are unused.
type ChannelRef struct {
	Class    ChannelClass `json:"class"`
	Device   string       `json:"device,omitempty"`
	Channel  Channel      `json:"channel,omitempty"`
	Index    int          `json:"index,omitempty"`
	Register string       `json:"register,omitempty"`
}

// TransformKind selects a transform implementation.
type TransformKind string

// Transform kinds.
const (
	TransformPassthrough     TransformKind = "passthrough"
	TransformAxisFromButtons TransformKind = "axis_from_buttons"
	TransformTrim            TransformKind = "trim"
	TransformMerge           TransformKind = "merge"
	TransformTempo           TransformKind = "tempo"
	TransformToggle          TransformKind = "toggle"
)

// MergeOperator selects how merge combines its sources.
type MergeOperator string

// Merge operators.
const (
	// MergeSumClamp sums all sources then clamps to the configured range.
	MergeSumClamp MergeOperator = "sum_clamp"

	// MergeMaxMagnitude picks the source with the largest absolute value,
	// preserving its sign. Equal magnitudes resolve to the earlier source.
	MergeMaxMagnitude MergeOperator = "max_magnitude"

	// MergeMean averages all sources then clamps.
	MergeMean MergeOperator = "mean"
)

// Transform is a tagged variant selecting one transform kind with its
// parameters. Exactly the parameter struct matching Kind is set; the
// rest are nil.
type Transform struct {
	Kind TransformKind `json:"kind"`

	Passthrough     *PassthroughParams     `json:"passthrough,omitempty"`
	AxisFromButtons *AxisFromButtonsParams `json:"axis_from_buttons,omitempty"`
	Trim            *TrimParams            `json:"trim,omitempty"`
	Merge           *MergeParams           `json:"merge,omitempty"`
	Tempo           *TempoParams           `json:"tempo,omitempty"`
}

// PassthroughParams shapes a single axis or button source.
//
// For axis sources the pipeline is: deadzone → linearity curve → offset →
// invert → clamp. For button sources only Invert applies.
type PassthroughParams struct {
	// Invert negates an axis or logically negates a button.
	Invert bool `json:"invert,omitempty"`

	// Deadzone zeroes axis values whose magnitude is below this threshold.
	Deadzone float64 `json:"deadzone,omitempty"`

	// Linearity is the response-curve exponent. 1.0 (or 0, meaning unset)
	// is linear; >1 softens around center, <1 sharpens.
	Linearity float64 `json:"linearity,omitempty"`

	// Offset is added to the axis value before clamping.
	Offset float64 `json:"offset,omitempty"`

	// ClampMin/ClampMax bound the output. Both zero means [-1,1].
	ClampMin float64 `json:"clamp_min,omitempty"`
	ClampMax float64 `json:"clamp_max,omitempty"`
}

// AxisFromButtonsParams synthesizes an axis from two buttons.
//
// Sources: [0] = increase button, [1] = decrease button.
type AxisFromButtonsParams struct {
	// Rate is the value change per second while a button is held.
	Rate float64 `json:"rate"`

	// DecayRate drives the value back toward Center per second while
	// neither button is pressed. Zero holds the last value.
	DecayRate float64 `json:"decay_rate,omitempty"`

	// Center is the rest value decay converges to.
	Center float64 `json:"center,omitempty"`

	// Absolute skips accumulation entirely: increase pressed jumps to
	// ClampMax, decrease to ClampMin, neither to Center.
	Absolute bool `json:"absolute,omitempty"`

	// ClampMin/ClampMax bound the synthesized value. Both zero means [-1,1].
	ClampMin float64 `json:"clamp_min,omitempty"`
	ClampMax float64 `json:"clamp_max,omitempty"`
}

// TrimParams applies a persisted additive bias to an axis.
//
// Sources: [0] = axis, [1] = increment button, [2] = decrement button,
// [3] = optional reset button.
type TrimParams struct {
	// Rate is the bias change per second while a trim button is held.
	Rate float64 `json:"rate"`

	// ClampMin/ClampMax bound the biased output. Both zero means [-1,1].
	ClampMin float64 `json:"clamp_min,omitempty"`
	ClampMax float64 `json:"clamp_max,omitempty"`
}

// MergeParams combines N sources through an operator.
type MergeParams struct {
	Operator MergeOperator `json:"operator"`

	// ClampMin/ClampMax bound the merged value. Both zero means [-1,1].
	ClampMin float64 `json:"clamp_min,omitempty"`
	ClampMax float64 `json:"clamp_max,omitempty"`
}

// TempoParams converts a button press into a fixed-length pulse.
type TempoParams struct {
	// Duration is the pulse length in seconds. A rising edge while a
	// pulse is running restarts the full duration.
	Duration float64 `json:"duration"`
}

// TransformState is the persisted state cell of a stateful transform.
//
// The persisted fields round-trip through save/load: toggle latch, trim
// bias, and the accumulated axis value survive a restart. Timing fields
// are runtime-only; a tempo pulse in flight at shutdown is idle on load
// since elapsed wall-time is not meaningful across restarts.
type TransformState struct {
	// Latch is the toggle transform's persisted output.
	Latch bool `json:"latch,omitempty"`

	// Bias is the trim transform's persisted offset.
	Bias float64 `json:"bias,omitempty"`

	// Value is the axis-from-buttons accumulated output.
	Value float64 `json:"value,omitempty"`

	// PulseRemaining is the tempo pulse's remaining seconds. Runtime-only.
	PulseRemaining float64 `json:"-"`

	// LastInput is the previous tick's boolean source, for edge detection.
	// Runtime-only.
	LastInput bool `json:"-"`
}

// Clone returns a copy of the state cell.
func (s *TransformState) Clone() *TransformState {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// Rebind is one configured rule mapping source signal(s) to a target
// through a transform.
type Rebind struct {
	// ID is the stable identity keying persisted transform state. It must
	// survive edits and reorders for stateful transforms to survive them.
	ID string `json:"id"`

	Name string `json:"name,omitempty"`

	// ActiveMode holds the shift bits that must all be set for this
	// rebind to execute. Zero means always active.
	ActiveMode ShiftMask `json:"active_mode"`

	// Sources are read in order; the transform defines each position's role.
	Sources []ChannelRef `json:"sources"`

	// Target is a logical register (KindLogical) or a virtual device
	// channel (KindReroute/KindVirtual).
	Target ChannelRef `json:"target"`

	Transform Transform `json:"transform"`

	// State is the persisted transform state cell, present only for
	// stateful transforms. The engine owns the live copy during a
	// session; this field is the serialized form.
	State *TransformState `json:"state,omitempty"`
}

// Clone returns a deep copy of the rebind.
func (r Rebind) Clone() Rebind {
	out := r
	if r.Sources != nil {
		out.Sources = make([]ChannelRef, len(r.Sources))
		copy(out.Sources, r.Sources)
	}
	out.State = r.State.Clone()
	if r.Transform.Passthrough != nil {
		p := *r.Transform.Passthrough
		out.Transform.Passthrough = &p
	}
	if r.Transform.AxisFromButtons != nil {
		p := *r.Transform.AxisFromButtons
		out.Transform.AxisFromButtons = &p
	}
	if r.Transform.Trim != nil {
		p := *r.Transform.Trim
		out.Transform.Trim = &p
	}
	if r.Transform.Merge != nil {
		p := *r.Transform.Merge
		out.Transform.Merge = &p
	}
	if r.Transform.Tempo != nil {
		p := *r.Transform.Tempo
		out.Transform.Tempo = &p
	}
	return out
}

// ShiftControl maps a physical button onto momentary shift-mask changes.
//
// While the button is held, Enable bits are set and Disable bits are
// cleared on top of the map's base mask. Releasing the button reverts to
// the base mask (momentary, not latched).
type ShiftControl struct {
	Source  ChannelRef `json:"source"`
	Enable  ShiftMask  `json:"enable,omitempty"`
	Disable ShiftMask  `json:"disable,omitempty"`
}

// RebindMap is a complete configuration: three ordered rebind sequences,
// the base shift mask, and the momentary shift controls.
//
// Order within each sequence is the execution order. Rebind IDs are
// unique across all three sequences.
type RebindMap struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	// ShiftMode is the base shift mask, before momentary controls apply.
	ShiftMode ShiftMask `json:"shift_mode"`

	ShiftControls []ShiftControl `json:"shift_controls"`

	Logical []Rebind `json:"logical"`
	Reroute []Rebind `json:"reroute"`
	Virtual []Rebind `json:"virtual"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy returns a completely independent copy of the map.
func (m *RebindMap) DeepCopy() *RebindMap {
	if m == nil {
		return nil
	}
	out := *m
	if m.ShiftControls != nil {
		out.ShiftControls = make([]ShiftControl, len(m.ShiftControls))
		copy(out.ShiftControls, m.ShiftControls)
	}
	out.Logical = cloneRebinds(m.Logical)
	out.Reroute = cloneRebinds(m.Reroute)
	out.Virtual = cloneRebinds(m.Virtual)
	return &out
}

func cloneRebinds(rebinds []Rebind) []Rebind {
	if rebinds == nil {
		return nil
	}
	out := make([]Rebind, len(rebinds))
	for i := range rebinds {
		out[i] = rebinds[i].Clone()
	}
	return out
}

// RebindCount returns the total number of rebinds across all kinds.
func (m *RebindMap) RebindCount() int {
	return len(m.Logical) + len(m.Reroute) + len(m.Virtual)
}

// EachRebind calls fn for every rebind in pipeline order
// (logical, reroute, virtual; top to bottom within each).
func (m *RebindMap) EachRebind(fn func(kind Kind, r *Rebind)) {
	for i := range m.Logical {
		fn(KindLogical, &m.Logical[i])
	}
	for i := range m.Reroute {
		fn(KindReroute, &m.Reroute[i])
	}
	for i := range m.Virtual {
		fn(KindVirtual, &m.Virtual[i])
	}
}

// ValueKind tags what a Value carries.
type ValueKind string

// Value kinds.
const (
	ValueBool ValueKind = "bool"
	ValueAxis ValueKind = "axis"
	ValueHat  ValueKind = "hat"
)

// Value is one signal sample flowing through the pipeline.
type Value struct {
	Kind ValueKind
	Bool bool
	Axis float64
	Hat  input.HatDirection
}

// BoolValue wraps a button sample.
func BoolValue(b bool) Value { return Value{Kind: ValueBool, Bool: b} }

// AxisValue wraps an axis sample.
func AxisValue(f float64) Value { return Value{Kind: ValueAxis, Axis: f} }

// HatValue wraps a hat sample.
func HatValue(h input.HatDirection) Value { return Value{Kind: ValueHat, Hat: h} }

// AsBool coerces the value to a button sample. Axes read as pressed
// above 0.5 magnitude; hats read as pressed when not centered.
func (v Value) AsBool() bool {
	switch v.Kind {
	case ValueBool:
		return v.Bool
	case ValueAxis:
		return v.Axis > 0.5 || v.Axis < -0.5
	case ValueHat:
		return v.Hat != input.HatCentered && v.Hat != ""
	default:
		return false
	}
}

// AsAxis coerces the value to an axis sample. Buttons read as 1.0
// pressed, 0.0 released; hats read as 0.
func (v Value) AsAxis() float64 {
	switch v.Kind {
	case ValueAxis:
		return v.Axis
	case ValueBool:
		if v.Bool {
			return 1.0
		}
		return 0.0
	default:
		return 0.0
	}
}
