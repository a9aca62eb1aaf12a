package rebind

import (
	"math"
	"math/rand"
	"testing"
)

const floatTolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

// ─── Passthrough ───

func TestPassthroughAxis(t *testing.T) {
	tests := []struct {
		name   string
		params PassthroughParams
		in     float64
		want   float64
	}{
		{"identity", PassthroughParams{}, 0.5, 0.5},
		{"invert", PassthroughParams{Invert: true}, 0.5, -0.5},
		{"deadzone inside", PassthroughParams{Deadzone: 0.1}, 0.05, 0.0},
		{"deadzone outside", PassthroughParams{Deadzone: 0.1}, 0.5, 0.5},
		{"deadzone negative inside", PassthroughParams{Deadzone: 0.1}, -0.05, 0.0},
		{"offset", PassthroughParams{Offset: 0.25}, 0.5, 0.75},
		{"offset clamps", PassthroughParams{Offset: 0.8}, 0.5, 1.0},
		{"clamp range", PassthroughParams{ClampMin: -0.5, ClampMax: 0.5}, 0.9, 0.5},
		{"linearity softens", PassthroughParams{Linearity: 2}, 0.5, 0.25},
		{"linearity preserves sign", PassthroughParams{Linearity: 2}, -0.5, -0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transform := Transform{Kind: TransformPassthrough, Passthrough: &tt.params}
			out, err := ApplyTransform(transform, []Value{AxisValue(tt.in)}, nil, 0.004)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !almostEqual(out.Axis, tt.want) {
				t.Errorf("axis %g with %+v: got %g, want %g", tt.in, tt.params, out.Axis, tt.want)
			}
		})
	}
}

func TestPassthroughButton(t *testing.T) {
	transform := Transform{Kind: TransformPassthrough, Passthrough: &PassthroughParams{Invert: true}}

	out, err := ApplyTransform(transform, []Value{BoolValue(true)}, nil, 0.004)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Bool {
		t.Error("expected inverted button to read released")
	}
}

func TestPassthroughHat(t *testing.T) {
	transform := Transform{Kind: TransformPassthrough}

	out, err := ApplyTransform(transform, []Value{HatValue("north")}, nil, 0.004)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Hat != "north" {
		t.Errorf("expected hat north, got %s", out.Hat)
	}
}

// ─── Toggle ───

func TestToggleFlipsOncePerRisingEdge(t *testing.T) {
	transform := Transform{Kind: TransformToggle}
	state := &TransformState{}

	inputs := []bool{false, true, true, true, false, false, true, false}
	wantLatch := []bool{false, true, true, true, true, true, false, false}

	for i, pressed := range inputs {
		out, err := ApplyTransform(transform, []Value{BoolValue(pressed)}, state, 0.004)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if out.Bool != wantLatch[i] {
			t.Errorf("step %d (input %v): latch = %v, want %v", i, pressed, out.Bool, wantLatch[i])
		}
	}
}

func TestToggleProperty(t *testing.T) {
	// For any input sequence the latch changes exactly once per rising
	// edge and never otherwise.
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		state := &TransformState{}
		transform := Transform{Kind: TransformToggle}
		prev := false
		prevLatch := false

		for step := 0; step < 200; step++ {
			pressed := rng.Intn(2) == 1
			out, err := ApplyTransform(transform, []Value{BoolValue(pressed)}, state, 0.004)
			if err != nil {
				t.Fatalf("trial %d step %d: %v", trial, step, err)
			}

			risingEdge := pressed && !prev
			changed := out.Bool != prevLatch
			if risingEdge != changed {
				t.Fatalf("trial %d step %d: rising edge %v but latch changed %v", trial, step, risingEdge, changed)
			}
			prev = pressed
			prevLatch = out.Bool
		}
	}
}

// ─── Tempo ───

func TestTempoPulseDuration(t *testing.T) {
	transform := Transform{Kind: TransformTempo, Tempo: &TempoParams{Duration: 0.5}}
	state := &TransformState{}

	// Rising edge starts the pulse.
	out, _ := ApplyTransform(transform, []Value{BoolValue(true)}, state, 0.1)
	if !out.Bool {
		t.Fatal("expected pulse active on rising edge")
	}

	// dt steps summing to less than the duration keep it active.
	for i := 0; i < 4; i++ {
		out, _ = ApplyTransform(transform, []Value{BoolValue(false)}, state, 0.1)
		if !out.Bool {
			t.Fatalf("step %d: expected pulse still active (0.%d elapsed of 0.5)", i, (i+1))
		}
	}

	// One more step crosses the duration.
	out, _ = ApplyTransform(transform, []Value{BoolValue(false)}, state, 0.1)
	if out.Bool {
		t.Error("expected pulse ended after duration elapsed")
	}
}

func TestTempoReTrigger(t *testing.T) {
	transform := Transform{Kind: TransformTempo, Tempo: &TempoParams{Duration: 0.5}}
	state := &TransformState{}

	// Start a pulse, run it nearly out.
	ApplyTransform(transform, []Value{BoolValue(true)}, state, 0.1)  //nolint:errcheck
	ApplyTransform(transform, []Value{BoolValue(false)}, state, 0.3) //nolint:errcheck

	// Release then press again mid-pulse: full duration restarts.
	ApplyTransform(transform, []Value{BoolValue(false)}, state, 0.05) //nolint:errcheck
	out, _ := ApplyTransform(transform, []Value{BoolValue(true)}, state, 0.05)
	if !out.Bool {
		t.Fatal("expected pulse active after re-trigger")
	}

	// 0.4s more would have exhausted the original pulse but not the re-triggered one.
	out, _ = ApplyTransform(transform, []Value{BoolValue(true)}, state, 0.4)
	if !out.Bool {
		t.Error("expected re-triggered pulse to run the full configured duration")
	}
	out, _ = ApplyTransform(transform, []Value{BoolValue(true)}, state, 0.2)
	if out.Bool {
		t.Error("expected re-triggered pulse to end after its full duration")
	}
}

func TestTempoHeldButtonDoesNotRetrigger(t *testing.T) {
	transform := Transform{Kind: TransformTempo, Tempo: &TempoParams{Duration: 0.2}}
	state := &TransformState{}

	out, _ := ApplyTransform(transform, []Value{BoolValue(true)}, state, 0.1)
	if !out.Bool {
		t.Fatal("expected pulse on press")
	}

	// Holding must not extend the pulse.
	ApplyTransform(transform, []Value{BoolValue(true)}, state, 0.1) //nolint:errcheck
	out, _ = ApplyTransform(transform, []Value{BoolValue(true)}, state, 0.15)
	if out.Bool {
		t.Error("expected pulse to end while button held")
	}
}

// ─── Axis from buttons ───

func TestAxisFromButtonsAccumulates(t *testing.T) {
	// Holding increase for 1s at rate 2 with clamp [-1,1] reaches the clamp.
	transform := Transform{Kind: TransformAxisFromButtons, AxisFromButtons: &AxisFromButtonsParams{Rate: 2.0}}
	state := &TransformState{}

	var out Value
	for i := 0; i < 10; i++ {
		out, _ = ApplyTransform(transform,
			[]Value{BoolValue(true), BoolValue(false)}, state, 0.05)
	}
	// 0.5s at rate 2.0 = 1.0, exactly the clamp.
	if !almostEqual(out.Axis, 1.0) {
		t.Errorf("expected 1.0 after 0.5s at rate 2, got %g", out.Axis)
	}

	// Keep holding: clamp holds it.
	out, _ = ApplyTransform(transform,
		[]Value{BoolValue(true), BoolValue(false)}, state, 0.5)
	if !almostEqual(out.Axis, 1.0) {
		t.Errorf("expected clamp to hold 1.0, got %g", out.Axis)
	}

	// Decrease pulls it back down.
	out, _ = ApplyTransform(transform,
		[]Value{BoolValue(false), BoolValue(true)}, state, 0.25)
	if !almostEqual(out.Axis, 0.5) {
		t.Errorf("expected 0.5 after 0.25s decrease at rate 2, got %g", out.Axis)
	}
}

func TestAxisFromButtonsDecay(t *testing.T) {
	transform := Transform{Kind: TransformAxisFromButtons,
		AxisFromButtons: &AxisFromButtonsParams{Rate: 1.0, DecayRate: 2.0}}
	state := &TransformState{Value: 0.8}

	// Neither pressed: decays toward center (0) at decay rate.
	out, _ := ApplyTransform(transform,
		[]Value{BoolValue(false), BoolValue(false)}, state, 0.2)
	if !almostEqual(out.Axis, 0.4) {
		t.Errorf("expected 0.4 after 0.2s decay at rate 2 from 0.8, got %g", out.Axis)
	}

	// Decay never overshoots center.
	out, _ = ApplyTransform(transform,
		[]Value{BoolValue(false), BoolValue(false)}, state, 10)
	if !almostEqual(out.Axis, 0.0) {
		t.Errorf("expected decay to settle at center, got %g", out.Axis)
	}
}

func TestAxisFromButtonsHoldWithoutDecay(t *testing.T) {
	transform := Transform{Kind: TransformAxisFromButtons,
		AxisFromButtons: &AxisFromButtonsParams{Rate: 1.0}}
	state := &TransformState{Value: 0.6}

	out, _ := ApplyTransform(transform,
		[]Value{BoolValue(false), BoolValue(false)}, state, 5)
	if !almostEqual(out.Axis, 0.6) {
		t.Errorf("expected zero decay rate to hold 0.6, got %g", out.Axis)
	}
}

func TestAxisFromButtonsAbsolute(t *testing.T) {
	transform := Transform{Kind: TransformAxisFromButtons,
		AxisFromButtons: &AxisFromButtonsParams{Absolute: true}}
	state := &TransformState{}

	out, _ := ApplyTransform(transform, []Value{BoolValue(true), BoolValue(false)}, state, 0.004)
	if !almostEqual(out.Axis, 1.0) {
		t.Errorf("expected increase to jump to clamp max, got %g", out.Axis)
	}
	out, _ = ApplyTransform(transform, []Value{BoolValue(false), BoolValue(true)}, state, 0.004)
	if !almostEqual(out.Axis, -1.0) {
		t.Errorf("expected decrease to jump to clamp min, got %g", out.Axis)
	}
	out, _ = ApplyTransform(transform, []Value{BoolValue(false), BoolValue(false)}, state, 0.004)
	if !almostEqual(out.Axis, 0.0) {
		t.Errorf("expected release to return to center, got %g", out.Axis)
	}
}

// ─── Trim ───

func TestTrimBiasAccumulation(t *testing.T) {
	transform := Transform{Kind: TransformTrim, Trim: &TrimParams{Rate: 0.5}}
	state := &TransformState{}

	// Hold increment for 0.4s: bias = 0.2, applied to axis 0.1.
	var out Value
	for i := 0; i < 4; i++ {
		out, _ = ApplyTransform(transform,
			[]Value{AxisValue(0.1), BoolValue(true), BoolValue(false)}, state, 0.1)
	}
	if !almostEqual(out.Axis, 0.3) {
		t.Errorf("expected 0.1 axis + 0.2 bias = 0.3, got %g", out.Axis)
	}
	if !almostEqual(state.Bias, 0.2) {
		t.Errorf("expected bias 0.2, got %g", state.Bias)
	}

	// Bias persists while buttons are released.
	out, _ = ApplyTransform(transform,
		[]Value{AxisValue(0.5), BoolValue(false), BoolValue(false)}, state, 0.1)
	if !almostEqual(out.Axis, 0.7) {
		t.Errorf("expected 0.5 axis + 0.2 bias = 0.7, got %g", out.Axis)
	}
}

func TestTrimOutputClamped(t *testing.T) {
	transform := Transform{Kind: TransformTrim, Trim: &TrimParams{Rate: 1.0}}
	state := &TransformState{Bias: 0.5}

	out, _ := ApplyTransform(transform,
		[]Value{AxisValue(0.8), BoolValue(false), BoolValue(false)}, state, 0.004)
	if !almostEqual(out.Axis, 1.0) {
		t.Errorf("expected biased output clamped to 1.0, got %g", out.Axis)
	}
}

func TestTrimReset(t *testing.T) {
	transform := Transform{Kind: TransformTrim, Trim: &TrimParams{Rate: 1.0}}
	state := &TransformState{Bias: 0.4}

	out, _ := ApplyTransform(transform,
		[]Value{AxisValue(0.1), BoolValue(false), BoolValue(false), BoolValue(true)}, state, 0.004)
	if state.Bias != 0 {
		t.Errorf("expected reset to zero bias, got %g", state.Bias)
	}
	if !almostEqual(out.Axis, 0.1) {
		t.Errorf("expected passthrough after reset, got %g", out.Axis)
	}
}

// ─── Merge ───

func TestMergeOperators(t *testing.T) {
	tests := []struct {
		name     string
		operator MergeOperator
		sources  []float64
		want     float64
	}{
		{"sum clamps", MergeSumClamp, []float64{0.6, 0.6}, 1.0},
		{"sum within range", MergeSumClamp, []float64{0.2, 0.3}, 0.5},
		{"sum negative clamps", MergeSumClamp, []float64{-0.7, -0.8}, -1.0},
		{"max magnitude keeps sign", MergeMaxMagnitude, []float64{-0.3, 0.2}, -0.3},
		{"max magnitude positive", MergeMaxMagnitude, []float64{0.1, 0.9, -0.5}, 0.9},
		{"max magnitude tie keeps first", MergeMaxMagnitude, []float64{0.4, -0.4}, 0.4},
		{"mean", MergeMean, []float64{0.2, 0.6}, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transform := Transform{Kind: TransformMerge, Merge: &MergeParams{Operator: tt.operator}}
			sources := make([]Value, len(tt.sources))
			for i, v := range tt.sources {
				sources[i] = AxisValue(v)
			}

			out, err := ApplyTransform(transform, sources, nil, 0.004)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !almostEqual(out.Axis, tt.want) {
				t.Errorf("%s over %v: got %g, want %g", tt.operator, tt.sources, out.Axis, tt.want)
			}
		})
	}
}

func TestMergeButtonsAsAxes(t *testing.T) {
	// Buttons coerce to 0/1 so merge can combine buttons and axes.
	transform := Transform{Kind: TransformMerge, Merge: &MergeParams{Operator: MergeSumClamp}}

	out, err := ApplyTransform(transform, []Value{BoolValue(true), AxisValue(0.25)}, nil, 0.004)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(out.Axis, 1.0) {
		t.Errorf("expected 1.0 + 0.25 clamped to 1.0, got %g", out.Axis)
	}
}

// ─── Source count faults ───

func TestTransformSourceCountFaults(t *testing.T) {
	tests := []struct {
		name      string
		transform Transform
		sources   int
	}{
		{"passthrough two sources", Transform{Kind: TransformPassthrough}, 2},
		{"toggle no sources", Transform{Kind: TransformToggle}, 0},
		{"tempo two sources", Transform{Kind: TransformTempo, Tempo: &TempoParams{Duration: 1}}, 2},
		{"axis_from_buttons one source", Transform{Kind: TransformAxisFromButtons,
			AxisFromButtons: &AxisFromButtonsParams{Rate: 1}}, 1},
		{"trim two sources", Transform{Kind: TransformTrim, Trim: &TrimParams{Rate: 1}}, 2},
		{"merge one source", Transform{Kind: TransformMerge,
			Merge: &MergeParams{Operator: MergeSumClamp}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources := make([]Value, tt.sources)
			for i := range sources {
				sources[i] = BoolValue(false)
			}
			_, err := ApplyTransform(tt.transform, sources, &TransformState{}, 0.004)
			if err == nil {
				t.Error("expected source count error")
			}
		})
	}
}

func TestApplyTransformNilState(t *testing.T) {
	// Callers outside the engine may not hold a state cell; stateful
	// kinds run against a throwaway one instead of panicking.
	out, err := ApplyTransform(Transform{Kind: TransformToggle},
		[]Value{BoolValue(true)}, nil, 0.004)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Bool {
		t.Error("expected a fresh latch to flip on for a pressed source")
	}

	out, err = ApplyTransform(Transform{Kind: TransformTrim, Trim: &TrimParams{Rate: 1}},
		[]Value{AxisValue(0.25), BoolValue(false), BoolValue(false)}, nil, 0.004)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Axis != 0.25 {
		t.Errorf("expected zero bias from a throwaway cell, got %g", out.Axis)
	}
}
