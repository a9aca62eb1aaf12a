package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/hotas-relay-core/internal/input"
	"github.com/nerrad567/hotas-relay-core/internal/output"
	"github.com/nerrad567/hotas-relay-core/internal/rebind"
	"github.com/nerrad567/hotas-relay-core/internal/telemetry"
)

// SnapshotProvider hands the tick loop the latest device snapshot.
type SnapshotProvider interface {
	Latest() (*input.Snapshot, bool)
}

// VirtualFeedback receives committed virtual state so the next snapshot
// reflects it. Optional.
type VirtualFeedback interface {
	SetVirtual(deviceID string, state input.DeviceState)
}

// Broadcaster pushes tick summaries to connected GUI clients. Optional.
type Broadcaster interface {
	BroadcastTickSummary(summary TickSummary)
}

// Logger interface for the manager's logging.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// TickSummary is the per-tick digest broadcast to GUI clients.
type TickSummary struct {
	Tick       uint64         `json:"tick"`
	MapSlug    string         `json:"map_slug"`
	Shift      uint8          `json:"shift"`
	Evaluated  int            `json:"evaluated"`
	Skipped    int            `json:"skipped"`
	DurationUs float64        `json:"duration_us"`
	Faults     []rebind.Fault `json:"faults,omitempty"`
}

// Config holds the manager's tuning knobs.
type Config struct {
	// TickInterval is the evaluation period.
	TickInterval time.Duration

	// SaveInterval is how often transform state is persisted. Zero
	// disables periodic saves (a final save still runs on Stop).
	SaveInterval time.Duration

	// BroadcastDivisor throttles tick summaries: one summary every N
	// ticks. Zero disables broadcasting.
	BroadcastDivisor int
}

// Manager runs the engine's tick loop.
//
// One goroutine owns the whole cycle: staged-map swap, snapshot
// acquisition, evaluation, commit, feedback, broadcast, telemetry, and
// periodic state saves. Nothing else ever calls the engine, so the
// engine itself needs no locking.
type Manager struct {
	cfg       Config
	engine    *rebind.Engine
	registry  *rebind.Registry
	snapshots SnapshotProvider
	sink      output.Sink
	feedback  VirtualFeedback
	recorder  telemetry.Recorder
	hub       Broadcaster
	logger    Logger

	// lastGood is the snapshot fallback when the provider has nothing
	// new (device disconnect, polling agent restart).
	lastGood     *input.Snapshot
	lastShift    rebind.ShiftMask
	tickCount    atomic.Uint64
	warnedNoSnap bool

	// faulted mirrors the engine's session faults behind a lock so the
	// API can read them without touching the engine.
	faulted map[string]string

	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped sync.Once
	running bool
	mu      sync.Mutex
}

// NewManager wires the tick loop's collaborators.
//
// feedback, recorder, and hub may be nil; the corresponding steps are
// skipped. A nil recorder is replaced with a no-op.
func NewManager(cfg Config, engine *rebind.Engine, registry *rebind.Registry,
	snapshots SnapshotProvider, sink output.Sink, feedback VirtualFeedback,
	recorder telemetry.Recorder, hub Broadcaster, logger Logger) *Manager {
	if recorder == nil {
		recorder = telemetry.NopRecorder{}
	}
	return &Manager{
		cfg:       cfg,
		engine:    engine,
		registry:  registry,
		snapshots: snapshots,
		sink:      sink,
		feedback:  feedback,
		recorder:  recorder,
		hub:       hub,
		logger:    logger,
		lastShift: rebind.DefaultShiftMask,
		faulted:   make(map[string]string),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the tick loop goroutine.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("tick loop starting",
			"interval", m.cfg.TickInterval.String(),
			"save_interval", m.cfg.SaveInterval.String(),
		)
	}

	go m.run(ctx)
}

// Stop halts the tick loop, waits for it to drain, and performs a final
// state save.
func (m *Manager) Stop(ctx context.Context) {
	m.stopped.Do(func() { close(m.stopCh) })
	<-m.doneCh

	m.saveState(ctx)
	if m.logger != nil {
		m.logger.Info("tick loop stopped", "ticks", m.tickCount.Load())
	}
}

// run is the tick loop body.
func (m *Manager) run(ctx context.Context) {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	var saveCh <-chan time.Time
	if m.cfg.SaveInterval > 0 {
		saveTicker := time.NewTicker(m.cfg.SaveInterval)
		defer saveTicker.Stop()
		saveCh = saveTicker.C
	}

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-saveCh:
			// Between ticks by construction: the loop goroutine owns both.
			m.saveState(ctx)
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			m.tick(ctx, dt)
		}
	}
}

// tick runs one full cycle: swap, snapshot, evaluate, commit, report.
func (m *Manager) tick(ctx context.Context, dt float64) {
	activeMap, swapped := m.registry.SwapStaged()
	if swapped {
		// The engine clears its faults on replacement; mirror that.
		m.mu.Lock()
		clear(m.faulted)
		m.mu.Unlock()
		if m.logger != nil {
			m.logger.Info("rebind map swapped in",
				"map", activeMap.Slug,
				"rebinds", activeMap.RebindCount(),
			)
		}
	}
	if activeMap == nil {
		return // idle until a map is activated
	}

	snap := m.acquireSnapshot()
	if snap == nil {
		return // nothing ever published; idle
	}

	started := time.Now()
	result := m.engine.Tick(activeMap, snap, dt)
	durationUs := float64(time.Since(started).Microseconds())

	m.tickCount.Add(1)

	if err := m.sink.Commit(ctx, result.WriteSet); err != nil {
		// Commit faults are reported but the tick stands; the next
		// tick's write-set recovers naturally.
		if m.logger != nil {
			m.logger.Warn("write-set commit failed", "error", err)
		}
	} else if m.feedback != nil {
		for deviceID, state := range result.WriteSet {
			m.feedback.SetVirtual(deviceID, state)
		}
	}

	m.report(activeMap.Slug, result, durationUs)
}

// acquireSnapshot returns the latest snapshot, falling back to the
// last-known-good one when the provider has nothing.
func (m *Manager) acquireSnapshot() *input.Snapshot {
	snap, ok := m.snapshots.Latest()
	if ok {
		m.lastGood = snap
		m.warnedNoSnap = false
		return snap
	}

	if m.lastGood != nil {
		if !m.warnedNoSnap {
			m.warnedNoSnap = true
			if m.logger != nil {
				m.logger.Warn("no fresh snapshot, reusing last-known-good",
					"seq", m.lastGood.Seq,
				)
			}
		}
		return m.lastGood
	}
	return nil
}

// report pushes telemetry and the throttled GUI broadcast.
func (m *Manager) report(mapSlug string, result rebind.TickResult, durationUs float64) {
	m.recorder.RecordTick(mapSlug, durationUs, result.Evaluated, result.Skipped)

	if result.Shift != m.lastShift {
		m.recorder.RecordShift(mapSlug, uint8(m.lastShift), uint8(result.Shift))
		if m.logger != nil {
			m.logger.Debug("shift mode changed",
				"previous", uint8(m.lastShift),
				"current", uint8(result.Shift),
			)
		}
		m.lastShift = result.Shift
	}

	if len(result.Faults) > 0 {
		m.mu.Lock()
		for _, fault := range result.Faults {
			m.faulted[fault.RebindID] = fault.Message
		}
		m.mu.Unlock()
	}
	for _, fault := range result.Faults {
		m.recorder.RecordFault(mapSlug, fault.RebindID, fault.Message)
	}

	tick := m.tickCount.Load()
	if m.hub != nil && m.cfg.BroadcastDivisor > 0 &&
		(len(result.Faults) > 0 || tick%uint64(m.cfg.BroadcastDivisor) == 0) {
		m.hub.BroadcastTickSummary(TickSummary{
			Tick:       tick,
			MapSlug:    mapSlug,
			Shift:      uint8(result.Shift),
			Evaluated:  result.Evaluated,
			Skipped:    result.Skipped,
			DurationUs: durationUs,
			Faults:     result.Faults,
		})
	}
}

// saveState harvests live transform state into the map and persists it.
func (m *Manager) saveState(ctx context.Context) {
	if m.registry.Active() == nil {
		return
	}
	m.registry.HarvestState(m.engine.ExportState())
	if err := m.registry.Save(ctx); err != nil {
		if m.logger != nil {
			m.logger.Error("state save failed", "error", err)
		}
		return
	}
	if m.logger != nil {
		m.logger.Debug("transform state saved")
	}
}

// Ticks returns how many evaluation passes have run.
func (m *Manager) Ticks() uint64 {
	return m.tickCount.Load()
}

// FaultedRebinds returns the rebinds deactivated by session faults,
// keyed by rebind ID.
func (m *Manager) FaultedRebinds() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.faulted))
	for id, msg := range m.faulted {
		out[id] = msg
	}
	return out
}
