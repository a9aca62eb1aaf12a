// Package runtime owns the engine's tick loop: fixed-rate evaluation
// with measured dt, staged-map swaps applied only between ticks, snapshot
// acquisition with last-known-good fallback, write-set commit, and
// periodic persistence of transform state.
package runtime
