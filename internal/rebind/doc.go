// Package rebind implements the rebind execution engine: the per-tick
// pipeline that evaluates an ordered set of rebind rules against live
// device state and produces deterministic virtual device output.
//
// A RebindMap holds three ordered rebind sequences evaluated in fixed
// order each tick: logical rebinds write scratch registers, reroute
// rebinds map physical channels and registers onto virtual channels, and
// virtual rebinds rewrite virtual channels reading the in-progress
// write-set. Conflicting writes to the same channel resolve
// last-writer-wins. An 8-bit shift mask gates which rebinds execute,
// letting one physical layout serve multiple logical functions.
//
// Transforms are pure functions of (sources, parameters, previous-state);
// stateful transforms (toggle, tempo, trim, axis-from-buttons) keep their
// state in an engine-owned arena keyed by rebind ID, so state survives
// map edits and reorders. Elapsed time enters as a dt argument, never a
// wall clock, so transform sequences replay deterministically.
package rebind
