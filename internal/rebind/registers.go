package rebind

// RegisterFile is the logical register space: per-tick scratch values
// written by logical rebinds and read by later rebinds.
//
// The space is cleared at the start of every tick. A register whose
// writer did not run this tick (gated out by shift mode, or faulted)
// reads as absent, and readers treat that as the zero default; latched
// transform state lives in the writer's state cell, never in the
// register itself.
//
// Owned exclusively by the engine; never shared across goroutines.
type RegisterFile struct {
	current map[string]Value
}

// NewRegisterFile creates an empty register file.
func NewRegisterFile() *RegisterFile {
	return &RegisterFile{
		current: make(map[string]Value),
	}
}

// BeginTick clears the register space for a fresh evaluation pass.
func (f *RegisterFile) BeginTick() {
	clear(f.current)
}

// Write stores a value in the current tick's space.
func (f *RegisterFile) Write(id string, v Value) {
	f.current[id] = v
}

// Read returns the value written this tick. Registers not written this
// tick read as absent.
func (f *RegisterFile) Read(id string) (Value, bool) {
	v, ok := f.current[id]
	return v, ok
}

// Reset clears the space. Used when the active map is replaced.
func (f *RegisterFile) Reset() {
	clear(f.current)
}
