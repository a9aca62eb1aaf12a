package output

import (
	"context"

	"github.com/nerrad567/hotas-relay-core/internal/rebind"
)

// Sink accepts the engine's per-tick virtual device write-set.
//
// Commit is called once per tick after evaluation. Implementations must
// apply the write-set atomically from the consuming driver's perspective;
// a commit failure is reported to the tick loop but does not roll the
// tick back, since the next tick's write-set recovers naturally.
type Sink interface {
	Commit(ctx context.Context, ws rebind.WriteSet) error
}
