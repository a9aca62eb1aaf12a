package rebind

import (
	"fmt"

	"github.com/nerrad567/hotas-relay-core/internal/input"
)

// Logger interface for optional logging support.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Fault is one rebind's configuration fault, reported the tick it is
// first detected.
type Fault struct {
	RebindID string `json:"rebind_id"`
	Kind     Kind   `json:"kind"`
	Err      error  `json:"-"`
	Message  string `json:"message"`
}

// TickResult is everything one evaluation pass produced.
type TickResult struct {
	// Shift is the mask that gated this tick.
	Shift ShiftMask

	// WriteSet is the virtual device state to commit.
	WriteSet WriteSet

	// Evaluated counts rebinds that executed this tick.
	Evaluated int

	// Skipped counts rebinds gated out by shift mode or an earlier fault.
	Skipped int

	// Faults holds configuration faults first detected this tick.
	Faults []Fault
}

// Engine executes one deterministic evaluation pass per tick.
//
// The pass order is fixed: resolve shift mode, clear the register file,
// seed the write-set from committed virtual state, then evaluate logical,
// reroute, and virtual rebinds in sequence order. Multiple rebinds
// targeting the same virtual channel resolve last-writer-wins; later
// rebinds deliberately override earlier ones.
//
// The engine owns the live transform state cells in an arena keyed by
// rebind ID, so state survives map edits and reorders as long as the ID
// is stable. A rebind whose evaluation faults (dangling device, bad
// index, bad parameters) is reported once and treated as inactive until
// the map is next replaced.
//
// Not safe for concurrent use; the tick loop is the only caller.
type Engine struct {
	registers *RegisterFile

	// states is the transform-state arena, keyed by rebind ID.
	states map[string]*TransformState

	// faults maps rebind ID to its first configuration fault.
	faults map[string]error

	// registerIDs is the set of valid logical register names for the
	// active map, rebuilt when the map changes.
	registerIDs map[string]struct{}

	// activeMap tracks which map the caches above were built for.
	activeMap *RebindMap

	logger Logger
}

// NewEngine creates an engine with empty state.
func NewEngine(logger Logger) *Engine {
	return &Engine{
		registers: NewRegisterFile(),
		states:    make(map[string]*TransformState),
		faults:    make(map[string]error),
		logger:    logger,
	}
}

// Tick runs one evaluation pass.
//
// The caller guarantees the map is not mutated for the duration of the
// call and that the snapshot is immutable. dt is the measured seconds
// since the previous tick; the engine never reads a clock itself.
//
// Parameters:
//   - m: The active rebind map
//   - snap: The device snapshot for this tick
//   - dt: Elapsed seconds since the previous tick
//
// Returns:
//   - TickResult: Write-set, shift mask, counts, and new faults
func (e *Engine) Tick(m *RebindMap, snap *input.Snapshot, dt float64) TickResult {
	if e.activeMap != m {
		e.onMapReplaced(m)
	}

	result := TickResult{
		Shift: ResolveShiftMode(m.ShiftMode, m.ShiftControls, snap),
	}

	e.registers.BeginTick()
	result.WriteSet = NewWriteSet(snap.Virtual)

	for i := range m.Logical {
		e.evaluate(KindLogical, &m.Logical[i], snap, &result, dt)
	}
	for i := range m.Reroute {
		e.evaluate(KindReroute, &m.Reroute[i], snap, &result, dt)
	}
	for i := range m.Virtual {
		e.evaluate(KindVirtual, &m.Virtual[i], snap, &result, dt)
	}

	return result
}

// evaluate runs one rebind: gate, resolve sources, transform, write.
func (e *Engine) evaluate(kind Kind, r *Rebind, snap *input.Snapshot, result *TickResult, dt float64) {
	if _, faulted := e.faults[r.ID]; faulted {
		result.Skipped++
		return
	}
	if !r.ActiveMode.ActiveUnder(result.Shift) {
		result.Skipped++
		return
	}

	sources := make([]Value, len(r.Sources))
	for i, ref := range r.Sources {
		v, err := e.resolveSource(kind, ref, snap, result.WriteSet)
		if err != nil {
			e.recordFault(kind, r, result, err)
			return
		}
		sources[i] = v
	}

	out, err := ApplyTransform(r.Transform, sources, e.stateFor(r), dt)
	if err != nil {
		e.recordFault(kind, r, result, err)
		return
	}

	if kind == KindLogical {
		e.registers.Write(registerName(r), out)
	} else if err := result.WriteSet.WriteValue(r.Target, out); err != nil {
		e.recordFault(kind, r, result, err)
		return
	}

	result.Evaluated++
}

// resolveSource reads one source reference against the tick's state.
//
// Virtual reads see the in-progress write-set, not the previous tick's
// committed state, so earlier writes this tick are observable.
func (e *Engine) resolveSource(kind Kind, ref ChannelRef, snap *input.Snapshot, ws WriteSet) (Value, error) {
	switch ref.Class {
	case ClassPhysical:
		return readPhysical(ref, snap)

	case ClassRegister:
		if _, defined := e.registerIDs[ref.Register]; !defined {
			return Value{}, fmt.Errorf("%w: %q", ErrUnknownRegister, ref.Register)
		}
		if v, ok := e.registers.Read(ref.Register); ok {
			return v, nil
		}
		// Not written this tick: the writer was gated out or faulted, so
		// the register holds its zero default. A latched value must not
		// leak across a shift change.
		return BoolValue(false), nil

	case ClassVirtual:
		if kind != KindVirtual {
			return Value{}, fmt.Errorf("%w: %s rebinds cannot read virtual channels", ErrInvalidReference, kind)
		}
		return readWriteSet(ref, ws)

	default:
		return Value{}, fmt.Errorf("%w: unknown class %q", ErrInvalidReference, ref.Class)
	}
}

// readPhysical reads a channel from the physical snapshot.
func readPhysical(ref ChannelRef, snap *input.Snapshot) (Value, error) {
	dev, ok := snap.Physical[ref.Device]
	if !ok {
		return Value{}, fmt.Errorf("%w: physical device %q", ErrUnknownDevice, ref.Device)
	}
	switch ref.Channel {
	case ChannelButton:
		if ref.Index < 0 || ref.Index >= len(dev.Buttons) {
			return Value{}, fmt.Errorf("%w: %s button %d (device has %d)", ErrChannelRange, ref.Device, ref.Index, len(dev.Buttons))
		}
		return BoolValue(dev.Buttons[ref.Index]), nil
	case ChannelAxis:
		if ref.Index < 0 || ref.Index >= len(dev.Axes) {
			return Value{}, fmt.Errorf("%w: %s axis %d (device has %d)", ErrChannelRange, ref.Device, ref.Index, len(dev.Axes))
		}
		return AxisValue(dev.Axes[ref.Index]), nil
	case ChannelHat:
		if ref.Index < 0 || ref.Index >= len(dev.Hats) {
			return Value{}, fmt.Errorf("%w: %s hat %d (device has %d)", ErrChannelRange, ref.Device, ref.Index, len(dev.Hats))
		}
		return HatValue(dev.Hats[ref.Index]), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown channel type %q", ErrInvalidReference, ref.Channel)
	}
}

// readWriteSet reads a virtual channel from the in-progress write-set.
func readWriteSet(ref ChannelRef, ws WriteSet) (Value, error) {
	switch ref.Channel {
	case ChannelButton:
		b, err := ws.ReadButton(ref.Device, ref.Index)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	case ChannelAxis:
		a, err := ws.ReadAxis(ref.Device, ref.Index)
		if err != nil {
			return Value{}, err
		}
		return AxisValue(a), nil
	case ChannelHat:
		h, err := ws.ReadHat(ref.Device, ref.Index)
		if err != nil {
			return Value{}, err
		}
		return HatValue(h), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown channel type %q", ErrInvalidReference, ref.Channel)
	}
}

// recordFault marks a rebind inactive for the rest of the session and
// reports the fault once.
func (e *Engine) recordFault(kind Kind, r *Rebind, result *TickResult, err error) {
	e.faults[r.ID] = err
	result.Skipped++
	result.Faults = append(result.Faults, Fault{
		RebindID: r.ID,
		Kind:     kind,
		Err:      err,
		Message:  err.Error(),
	})
	if e.logger != nil {
		e.logger.Warn("rebind faulted, deactivated for session",
			"rebind_id", r.ID,
			"name", r.Name,
			"kind", string(kind),
			"error", err,
		)
	}
}

// stateFor returns the live state cell for a rebind, seeding the arena
// from the rebind's persisted cell on first touch.
func (e *Engine) stateFor(r *Rebind) *TransformState {
	if s, ok := e.states[r.ID]; ok {
		return s
	}
	s := r.State.Clone()
	if s == nil {
		s = &TransformState{}
	}
	e.states[r.ID] = s
	return s
}

// onMapReplaced rebuilds per-map caches after a staged swap.
//
// Faults clear because editing the map is the fix path for them. State
// cells for rebinds that no longer exist are discarded; surviving IDs
// keep their live state (reorders and parameter edits do not reset a
// toggle latch or trim bias).
func (e *Engine) onMapReplaced(m *RebindMap) {
	e.activeMap = m
	clear(e.faults)
	e.registers.Reset()

	e.registerIDs = make(map[string]struct{}, len(m.Logical))
	valid := make(map[string]struct{}, m.RebindCount())
	m.EachRebind(func(kind Kind, r *Rebind) {
		valid[r.ID] = struct{}{}
		if kind == KindLogical {
			e.registerIDs[registerName(r)] = struct{}{}
		}
	})

	for id := range e.states {
		if _, ok := valid[id]; !ok {
			delete(e.states, id)
		}
	}
}

// ExportState copies the live transform state cells for persistence.
//
// The registry folds these back into the map's rebinds before saving, so
// toggle latches and trim bias survive a restart.
func (e *Engine) ExportState() map[string]TransformState {
	out := make(map[string]TransformState, len(e.states))
	for id, s := range e.states {
		out[id] = *s
	}
	return out
}

// FaultedRebinds returns the IDs currently deactivated by faults.
func (e *Engine) FaultedRebinds() map[string]string {
	out := make(map[string]string, len(e.faults))
	for id, err := range e.faults {
		out[id] = err.Error()
	}
	return out
}

// registerName is the logical register a logical rebind writes: its
// target's explicit register name, defaulting to the rebind's own ID.
func registerName(r *Rebind) string {
	if r.Target.Register != "" {
		return r.Target.Register
	}
	return r.ID
}
