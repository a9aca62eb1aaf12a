package rebind

import (
	"fmt"
	"math"
)

// ApplyTransform evaluates one transform against its resolved sources.
//
// Every transform is a pure function of (sources, parameters,
// previous-state) producing (result, next-state); state is mutated in
// place on the supplied cell. Timed transforms take the tick's elapsed
// time as dt rather than reading a clock, so the engine stays the sole
// authority on time and sequences replay deterministically in tests.
//
// Parameters:
//   - t: The transform definition (kind + parameters)
//   - sources: Resolved source values, in configured order
//   - state: The rebind's state cell (ignored by stateless transforms);
//     nil gets a throwaway cell, so stateful kinds lose memory between
//     calls unless the caller supplies one
//   - dt: Seconds elapsed since the previous tick
//
// Returns:
//   - Value: The transform output
//   - error: Configuration faults (wrong source count, missing params)
func ApplyTransform(t Transform, sources []Value, state *TransformState, dt float64) (Value, error) {
	if state == nil {
		state = &TransformState{}
	}
	switch t.Kind {
	case TransformPassthrough:
		return applyPassthrough(t.Passthrough, sources)
	case TransformAxisFromButtons:
		return applyAxisFromButtons(t.AxisFromButtons, sources, state, dt)
	case TransformTrim:
		return applyTrim(t.Trim, sources, state, dt)
	case TransformMerge:
		return applyMerge(t.Merge, sources)
	case TransformTempo:
		return applyTempo(t.Tempo, sources, state, dt)
	case TransformToggle:
		return applyToggle(sources, state)
	default:
		return Value{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidTransform, t.Kind)
	}
}

// IsStateful reports whether a transform kind carries a state cell.
func IsStateful(kind TransformKind) bool {
	switch kind {
	case TransformAxisFromButtons, TransformTrim, TransformTempo, TransformToggle:
		return true
	default:
		return false
	}
}

func applyPassthrough(p *PassthroughParams, sources []Value) (Value, error) {
	if len(sources) != 1 {
		return Value{}, fmt.Errorf("%w: passthrough needs exactly 1 source, got %d", ErrInvalidTransform, len(sources))
	}
	if p == nil {
		p = &PassthroughParams{}
	}
	src := sources[0]

	switch src.Kind {
	case ValueBool:
		out := src.Bool
		if p.Invert {
			out = !out
		}
		return BoolValue(out), nil

	case ValueHat:
		return src, nil

	case ValueAxis:
		v := src.Axis
		if p.Deadzone > 0 && math.Abs(v) < p.Deadzone {
			v = 0
		}
		if p.Linearity > 0 && p.Linearity != 1 {
			v = math.Copysign(math.Pow(math.Abs(v), p.Linearity), v)
		}
		v += p.Offset
		if p.Invert {
			v = -v
		}
		lo, hi := clampRange(p.ClampMin, p.ClampMax)
		return AxisValue(clamp(v, lo, hi)), nil

	default:
		return Value{}, fmt.Errorf("%w: passthrough source has no value kind", ErrInvalidTransform)
	}
}

func applyAxisFromButtons(p *AxisFromButtonsParams, sources []Value, state *TransformState, dt float64) (Value, error) {
	if len(sources) != 2 {
		return Value{}, fmt.Errorf("%w: axis_from_buttons needs exactly 2 sources, got %d", ErrInvalidTransform, len(sources))
	}
	if p == nil {
		return Value{}, fmt.Errorf("%w: axis_from_buttons parameters missing", ErrInvalidTransform)
	}
	lo, hi := clampRange(p.ClampMin, p.ClampMax)
	increase := sources[0].AsBool()
	decrease := sources[1].AsBool()

	if p.Absolute {
		switch {
		case increase && !decrease:
			state.Value = hi
		case decrease && !increase:
			state.Value = lo
		default:
			state.Value = clamp(p.Center, lo, hi)
		}
		return AxisValue(state.Value), nil
	}

	switch {
	case increase && !decrease:
		state.Value = clamp(state.Value+p.Rate*dt, lo, hi)
	case decrease && !increase:
		state.Value = clamp(state.Value-p.Rate*dt, lo, hi)
	case p.DecayRate > 0:
		state.Value = decayToward(state.Value, clamp(p.Center, lo, hi), p.DecayRate*dt)
	}
	return AxisValue(state.Value), nil
}

func applyTrim(p *TrimParams, sources []Value, state *TransformState, dt float64) (Value, error) {
	if len(sources) < 3 || len(sources) > 4 {
		return Value{}, fmt.Errorf("%w: trim needs 3 or 4 sources (axis, inc, dec[, reset]), got %d", ErrInvalidTransform, len(sources))
	}
	if p == nil {
		return Value{}, fmt.Errorf("%w: trim parameters missing", ErrInvalidTransform)
	}
	lo, hi := clampRange(p.ClampMin, p.ClampMax)

	axis := sources[0].AsAxis()
	increment := sources[1].AsBool()
	decrement := sources[2].AsBool()
	reset := len(sources) == 4 && sources[3].AsBool()

	switch {
	case reset:
		state.Bias = 0
	case increment && !decrement:
		state.Bias = clamp(state.Bias+p.Rate*dt, lo, hi)
	case decrement && !increment:
		state.Bias = clamp(state.Bias-p.Rate*dt, lo, hi)
	}

	return AxisValue(clamp(axis+state.Bias, lo, hi)), nil
}

func applyMerge(p *MergeParams, sources []Value) (Value, error) {
	if len(sources) < 2 {
		return Value{}, fmt.Errorf("%w: merge needs at least 2 sources, got %d", ErrInvalidTransform, len(sources))
	}
	if p == nil {
		return Value{}, fmt.Errorf("%w: merge parameters missing", ErrInvalidTransform)
	}
	lo, hi := clampRange(p.ClampMin, p.ClampMax)

	switch p.Operator {
	case MergeSumClamp:
		sum := 0.0
		for _, s := range sources {
			sum += s.AsAxis()
		}
		return AxisValue(clamp(sum, lo, hi)), nil

	case MergeMaxMagnitude:
		// Strictly-greater comparison keeps the earliest source on ties.
		best := sources[0].AsAxis()
		for _, s := range sources[1:] {
			if v := s.AsAxis(); math.Abs(v) > math.Abs(best) {
				best = v
			}
		}
		return AxisValue(clamp(best, lo, hi)), nil

	case MergeMean:
		sum := 0.0
		for _, s := range sources {
			sum += s.AsAxis()
		}
		return AxisValue(clamp(sum/float64(len(sources)), lo, hi)), nil

	default:
		return Value{}, fmt.Errorf("%w: unknown merge operator %q", ErrInvalidTransform, p.Operator)
	}
}

func applyTempo(p *TempoParams, sources []Value, state *TransformState, dt float64) (Value, error) {
	if len(sources) != 1 {
		return Value{}, fmt.Errorf("%w: tempo needs exactly 1 source, got %d", ErrInvalidTransform, len(sources))
	}
	if p == nil || p.Duration <= 0 {
		return Value{}, fmt.Errorf("%w: tempo needs a positive duration", ErrInvalidTransform)
	}

	pressed := sources[0].AsBool()
	risingEdge := pressed && !state.LastInput
	state.LastInput = pressed

	if risingEdge {
		// Re-trigger: a new press restarts the full pulse even mid-flight.
		state.PulseRemaining = p.Duration
	} else if state.PulseRemaining > 0 {
		state.PulseRemaining = math.Max(0, state.PulseRemaining-dt)
	}

	return BoolValue(state.PulseRemaining > 0), nil
}

func applyToggle(sources []Value, state *TransformState) (Value, error) {
	if len(sources) != 1 {
		return Value{}, fmt.Errorf("%w: toggle needs exactly 1 source, got %d", ErrInvalidTransform, len(sources))
	}

	pressed := sources[0].AsBool()
	if pressed && !state.LastInput {
		state.Latch = !state.Latch
	}
	state.LastInput = pressed

	return BoolValue(state.Latch), nil
}

// clampRange resolves the configured clamp bounds, defaulting to [-1,1]
// when both are zero (unset).
func clampRange(min, max float64) (float64, float64) {
	if min == 0 && max == 0 {
		return -1, 1
	}
	return min, max
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// decayToward moves v toward target by at most step, without overshoot.
func decayToward(v, target, step float64) float64 {
	if math.Abs(v-target) <= step {
		return target
	}
	if v > target {
		return v - step
	}
	return v + step
}
