package rebind

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// slugPattern matches URL-safe map slugs.
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// GenerateID creates a new unique identifier for a rebind or map.
func GenerateID() string {
	return uuid.New().String()
}

// ValidateMap checks a rebind map for structural and parameter errors.
//
// Validation runs on every authoring write and on every staged swap, so
// the engine only ever evaluates structurally sound maps. Reference
// resolution against live devices is not validated here; dangling device
// references surface as per-rebind faults at evaluation time.
//
// Returns:
//   - error: The first problem found, wrapping ErrInvalidMap,
//     ErrInvalidRebind, ErrInvalidTransform, or ErrDuplicateID
func ValidateMap(m *RebindMap) error {
	if m == nil {
		return fmt.Errorf("%w: nil map", ErrInvalidMap)
	}
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidMap)
	}
	if m.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidMap)
	}
	if !slugPattern.MatchString(m.Slug) {
		return fmt.Errorf("%w: slug %q must be lowercase alphanumeric with hyphens", ErrInvalidMap, m.Slug)
	}

	for _, ctl := range m.ShiftControls {
		if ctl.Source.Class != ClassPhysical || ctl.Source.Channel != ChannelButton {
			return fmt.Errorf("%w: shift control source must be a physical button", ErrInvalidMap)
		}
		if ctl.Enable == 0 && ctl.Disable == 0 {
			return fmt.Errorf("%w: shift control must enable or disable at least one bit", ErrInvalidMap)
		}
	}

	seen := make(map[string]struct{}, m.RebindCount())
	var firstErr error
	m.EachRebind(func(kind Kind, r *Rebind) {
		if firstErr != nil {
			return
		}
		if _, dup := seen[r.ID]; dup {
			firstErr = fmt.Errorf("%w: %q", ErrDuplicateID, r.ID)
			return
		}
		seen[r.ID] = struct{}{}
		firstErr = validateRebind(kind, r)
	})

	return firstErr
}

// validateRebind checks one rebind's references and transform.
func validateRebind(kind Kind, r *Rebind) error {
	if r.ID == "" {
		return fmt.Errorf("%w: %s rebind missing id", ErrInvalidRebind, kind)
	}
	if len(r.Sources) == 0 {
		return fmt.Errorf("%w: %s: no sources", ErrInvalidRebind, r.ID)
	}

	for i, src := range r.Sources {
		if err := validateSourceRef(kind, src); err != nil {
			return fmt.Errorf("%w: %s source %d: %w", ErrInvalidRebind, r.ID, i, err)
		}
	}
	if err := validateTargetRef(kind, r.Target); err != nil {
		return fmt.Errorf("%w: %s target: %w", ErrInvalidRebind, r.ID, err)
	}
	if err := validateTransform(r.Transform); err != nil {
		return fmt.Errorf("%s: %w", r.ID, err)
	}

	return nil
}

// validateSourceRef checks that a source class is allowed for the rebind
// kind: physical channels everywhere, registers everywhere, virtual
// channels only for virtual rebinds.
func validateSourceRef(kind Kind, ref ChannelRef) error {
	switch ref.Class {
	case ClassPhysical:
		return validateDeviceRef(ref)
	case ClassRegister:
		if ref.Register == "" {
			return fmt.Errorf("%w: register name required", ErrInvalidReference)
		}
		return nil
	case ClassVirtual:
		if kind != KindVirtual {
			return fmt.Errorf("%w: %s rebinds cannot read virtual channels", ErrInvalidReference, kind)
		}
		return validateDeviceRef(ref)
	default:
		return fmt.Errorf("%w: unknown class %q", ErrInvalidReference, ref.Class)
	}
}

// validateTargetRef checks the target shape per kind: logical rebinds
// write registers, the rest write virtual channels.
func validateTargetRef(kind Kind, ref ChannelRef) error {
	if kind == KindLogical {
		if ref.Class != ClassRegister && ref.Class != "" {
			return fmt.Errorf("%w: logical target must be a register", ErrInvalidReference)
		}
		return nil
	}
	if ref.Class != ClassVirtual {
		return fmt.Errorf("%w: %s target must be a virtual channel", ErrInvalidReference, kind)
	}
	return validateDeviceRef(ref)
}

func validateDeviceRef(ref ChannelRef) error {
	if ref.Device == "" {
		return fmt.Errorf("%w: device required", ErrInvalidReference)
	}
	switch ref.Channel {
	case ChannelButton, ChannelAxis, ChannelHat:
	default:
		return fmt.Errorf("%w: unknown channel type %q", ErrInvalidReference, ref.Channel)
	}
	if ref.Index < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidReference, ref.Index)
	}
	return nil
}

// validateTransform checks kind-specific parameter ranges.
func validateTransform(t Transform) error {
	switch t.Kind {
	case TransformPassthrough:
		p := t.Passthrough
		if p == nil {
			return nil // all defaults
		}
		if p.Deadzone < 0 || p.Deadzone >= 1 {
			return fmt.Errorf("%w: deadzone %g must be in [0,1)", ErrInvalidTransform, p.Deadzone)
		}
		if p.Linearity < 0 {
			return fmt.Errorf("%w: linearity %g must be positive", ErrInvalidTransform, p.Linearity)
		}
		return validateClamp(p.ClampMin, p.ClampMax)

	case TransformAxisFromButtons:
		p := t.AxisFromButtons
		if p == nil {
			return fmt.Errorf("%w: axis_from_buttons parameters required", ErrInvalidTransform)
		}
		if !p.Absolute && p.Rate <= 0 {
			return fmt.Errorf("%w: rate %g must be positive", ErrInvalidTransform, p.Rate)
		}
		if p.DecayRate < 0 {
			return fmt.Errorf("%w: decay_rate %g must not be negative", ErrInvalidTransform, p.DecayRate)
		}
		return validateClamp(p.ClampMin, p.ClampMax)

	case TransformTrim:
		p := t.Trim
		if p == nil {
			return fmt.Errorf("%w: trim parameters required", ErrInvalidTransform)
		}
		if p.Rate <= 0 {
			return fmt.Errorf("%w: rate %g must be positive", ErrInvalidTransform, p.Rate)
		}
		return validateClamp(p.ClampMin, p.ClampMax)

	case TransformMerge:
		p := t.Merge
		if p == nil {
			return fmt.Errorf("%w: merge parameters required", ErrInvalidTransform)
		}
		switch p.Operator {
		case MergeSumClamp, MergeMaxMagnitude, MergeMean:
		default:
			return fmt.Errorf("%w: unknown merge operator %q", ErrInvalidTransform, p.Operator)
		}
		return validateClamp(p.ClampMin, p.ClampMax)

	case TransformTempo:
		p := t.Tempo
		if p == nil || p.Duration <= 0 {
			return fmt.Errorf("%w: tempo duration must be positive", ErrInvalidTransform)
		}
		return nil

	case TransformToggle:
		return nil

	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTransform, t.Kind)
	}
}

func validateClamp(min, max float64) error {
	if min == 0 && max == 0 {
		return nil // unset, defaults to [-1,1]
	}
	if min >= max {
		return fmt.Errorf("%w: clamp range [%g,%g] is empty", ErrInvalidTransform, min, max)
	}
	return nil
}
