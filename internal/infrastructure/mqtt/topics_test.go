package mqtt

import (
	"errors"
	"testing"
)

func TestTopicsConstruction(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"physical state", topics.PhysicalState("throttle-left"), "hotasrelay/state/physical/throttle-left"},
		{"virtual output", topics.VirtualOutput("vjoy-1"), "hotasrelay/output/virtual/vjoy-1"},
		{"all physical wildcard", topics.AllPhysicalStates(), "hotasrelay/state/physical/+"},
		{"system status", topics.SystemStatus(), "hotasrelay/system/status"},
		{"map event", topics.MapEvent(), "hotasrelay/event/map"},
		{"shift event", topics.ShiftEvent(), "hotasrelay/event/shift"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestTopicsSanitizesDeviceSegments(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name   string
		device string
		want   string
	}{
		{"slash replaced", "stick/left", "hotasrelay/state/physical/stick_left"},
		{"plus replaced", "stick+", "hotasrelay/state/physical/stick_"},
		{"hash replaced", "stick#1", "hotasrelay/state/physical/stick_1"},
		{"clean name unchanged", "stick-1", "hotasrelay/state/physical/stick-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := topics.PhysicalState(tt.device)
			if got != tt.want {
				t.Errorf("PhysicalState(%q) = %q, want %q", tt.device, got, tt.want)
			}
		})
	}
}

func TestDeviceFromStateTopic(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name    string
		topic   string
		want    string
		wantErr bool
	}{
		{"valid topic", "hotasrelay/state/physical/throttle-left", "throttle-left", false},
		{"wrong prefix", "other/state/physical/stick", "", true},
		{"wrong class", "hotasrelay/output/virtual/vjoy-1", "", true},
		{"too few segments", "hotasrelay/state/physical", "", true},
		{"too many segments", "hotasrelay/state/physical/stick/extra", "", true},
		{"empty device", "hotasrelay/state/physical/", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := topics.DeviceFromStateTopic(tt.topic)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got device %q", tt.topic, got)
				}
				if !errors.Is(err, ErrInvalidTopic) {
					t.Errorf("expected ErrInvalidTopic, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
