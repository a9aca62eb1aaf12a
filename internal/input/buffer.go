package input

import "sync/atomic"

// Buffer hands whole snapshots from the producer side to the tick loop.
//
// The producer publishes a fully-formed Snapshot; the consumer reads the
// latest published one. The swap is a single atomic pointer store, so the
// tick loop can never observe a partially updated snapshot.
//
// Thread Safety:
//   - Publish and Latest are safe to call from different goroutines.
//   - Published snapshots must not be mutated afterwards.
type Buffer struct {
	current atomic.Pointer[Snapshot]
}

// NewBuffer creates an empty snapshot buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Publish makes snap the latest snapshot visible to consumers.
func (b *Buffer) Publish(snap *Snapshot) {
	b.current.Store(snap)
}

// Latest returns the most recently published snapshot.
//
// Returns:
//   - *Snapshot: The latest snapshot (do not mutate)
//   - bool: false if nothing has been published yet
func (b *Buffer) Latest() (*Snapshot, bool) {
	snap := b.current.Load()
	if snap == nil {
		return nil, false
	}
	return snap, true
}
