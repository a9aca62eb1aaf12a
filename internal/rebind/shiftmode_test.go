package rebind

import (
	"testing"

	"github.com/nerrad567/hotas-relay-core/internal/input"
)

func TestActiveUnder(t *testing.T) {
	tests := []struct {
		name     string
		required ShiftMask
		current  ShiftMask
		want     bool
	}{
		{"zero always active", 0b00000000, 0b00000000, true},
		{"zero active under any mode", 0b00000000, 0b10101010, true},
		{"exact match", 0b00000001, 0b00000001, true},
		{"subset of current", 0b00000010, 0b00000011, true},
		{"missing required bit", 0b00000010, 0b00000001, false},
		{"all bits required all set", 0b00000110, 0b11111111, true},
		{"one of two required missing", 0b00000110, 0b00000010, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.required.ActiveUnder(tt.current); got != tt.want {
				t.Errorf("required %08b under current %08b: got %v, want %v",
					tt.required, tt.current, got, tt.want)
			}
		})
	}
}

func shiftSnapshot(t *testing.T, buttons ...bool) *input.Snapshot {
	t.Helper()
	return &input.Snapshot{
		Physical: map[string]input.DeviceState{
			"stick": {Buttons: buttons},
		},
		Virtual: map[string]input.DeviceState{},
	}
}

func TestResolveShiftModeDefault(t *testing.T) {
	snap := shiftSnapshot(t, false, false)

	got := ResolveShiftMode(DefaultShiftMask, nil, snap)
	if got != DefaultShiftMask {
		t.Errorf("expected default mask %08b, got %08b", DefaultShiftMask, got)
	}
}

func TestResolveShiftModeMomentaryEnable(t *testing.T) {
	controls := []ShiftControl{
		{
			Source: ChannelRef{Class: ClassPhysical, Device: "stick", Channel: ChannelButton, Index: 0},
			Enable: 0b00000010,
		},
	}

	// Released: base mask only.
	got := ResolveShiftMode(DefaultShiftMask, controls, shiftSnapshot(t, false))
	if got != 0b00000001 {
		t.Errorf("released: expected %08b, got %08b", 0b00000001, got)
	}

	// Held: enable bits added.
	got = ResolveShiftMode(DefaultShiftMask, controls, shiftSnapshot(t, true))
	if got != 0b00000011 {
		t.Errorf("held: expected %08b, got %08b", 0b00000011, got)
	}
}

func TestResolveShiftModeMomentaryDisable(t *testing.T) {
	controls := []ShiftControl{
		{
			Source:  ChannelRef{Class: ClassPhysical, Device: "stick", Channel: ChannelButton, Index: 0},
			Disable: 0b00000001,
		},
	}

	got := ResolveShiftMode(0b00000011, controls, shiftSnapshot(t, true))
	if got != 0b00000010 {
		t.Errorf("expected disable to clear bit 0: got %08b", got)
	}
}

func TestResolveShiftModeLaterControlWins(t *testing.T) {
	controls := []ShiftControl{
		{
			Source: ChannelRef{Class: ClassPhysical, Device: "stick", Channel: ChannelButton, Index: 0},
			Enable: 0b00000100,
		},
		{
			Source:  ChannelRef{Class: ClassPhysical, Device: "stick", Channel: ChannelButton, Index: 1},
			Disable: 0b00000100,
		},
	}

	got := ResolveShiftMode(DefaultShiftMask, controls, shiftSnapshot(t, true, true))
	if got&0b00000100 != 0 {
		t.Errorf("expected later disable to clear the bit an earlier enable set: got %08b", got)
	}
}

func TestResolveShiftModeUnresolvableReadsReleased(t *testing.T) {
	controls := []ShiftControl{
		{
			Source: ChannelRef{Class: ClassPhysical, Device: "missing", Channel: ChannelButton, Index: 0},
			Enable: 0b11111110,
		},
		{
			Source: ChannelRef{Class: ClassPhysical, Device: "stick", Channel: ChannelButton, Index: 99},
			Enable: 0b11111110,
		},
	}

	got := ResolveShiftMode(DefaultShiftMask, controls, shiftSnapshot(t, true))
	if got != DefaultShiftMask {
		t.Errorf("expected unresolvable controls to read released: got %08b", got)
	}

	// Nil snapshot is also safe.
	got = ResolveShiftMode(DefaultShiftMask, controls, nil)
	if got != DefaultShiftMask {
		t.Errorf("nil snapshot: expected %08b, got %08b", DefaultShiftMask, got)
	}
}
