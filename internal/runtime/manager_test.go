package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/hotas-relay-core/internal/input"
	"github.com/nerrad567/hotas-relay-core/internal/rebind"
)

// ─── Mock Dependencies ───

type mockProvider struct {
	mu   sync.Mutex
	snap *input.Snapshot
}

func (p *mockProvider) Latest() (*input.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snap == nil {
		return nil, false
	}
	return p.snap, true
}

func (p *mockProvider) set(snap *input.Snapshot) {
	p.mu.Lock()
	p.snap = snap
	p.mu.Unlock()
}

type mockSink struct {
	mu      sync.Mutex
	commits []rebind.WriteSet
	fail    error
}

func (s *mockSink) Commit(_ context.Context, ws rebind.WriteSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.commits = append(s.commits, ws.Clone())
	return nil
}

func (s *mockSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commits)
}

func (s *mockSink) lastCommit() rebind.WriteSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.commits) == 0 {
		return nil
	}
	return s.commits[len(s.commits)-1]
}

type mockFeedback struct {
	mu    sync.Mutex
	state map[string]input.DeviceState
}

func newMockFeedback() *mockFeedback {
	return &mockFeedback{state: make(map[string]input.DeviceState)}
}

func (f *mockFeedback) SetVirtual(deviceID string, state input.DeviceState) {
	f.mu.Lock()
	f.state[deviceID] = state.Clone()
	f.mu.Unlock()
}

type mockHub struct {
	mu        sync.Mutex
	summaries []TickSummary
}

func (h *mockHub) BroadcastTickSummary(summary TickSummary) {
	h.mu.Lock()
	h.summaries = append(h.summaries, summary)
	h.mu.Unlock()
}

// ─── Test Fixtures ───

func runtimeSnapshot() *input.Snapshot {
	return &input.Snapshot{
		Physical: map[string]input.DeviceState{
			"stick": {
				Buttons: []bool{false, false},
				Axes:    []float64{0.5},
			},
		},
		Virtual: map[string]input.DeviceState{
			"vjoy": {
				Buttons: []bool{false},
				Axes:    []float64{0},
			},
		},
		Seq: 1,
	}
}

func runtimeMap(t *testing.T) *rebind.RebindMap {
	t.Helper()
	return &rebind.RebindMap{
		ID:        rebind.GenerateID(),
		Name:      "Runtime Test",
		Slug:      "runtime-test",
		ShiftMode: rebind.DefaultShiftMask,
		Reroute: []rebind.Rebind{
			{
				ID: "x",
				Sources: []rebind.ChannelRef{
					{Class: rebind.ClassPhysical, Device: "stick", Channel: rebind.ChannelAxis, Index: 0},
				},
				Target:    rebind.ChannelRef{Class: rebind.ClassVirtual, Device: "vjoy", Channel: rebind.ChannelAxis, Index: 0},
				Transform: rebind.Transform{Kind: rebind.TransformPassthrough},
			},
		},
	}
}

// setupManager builds a manager with an activated map and a published
// snapshot, not yet started.
func setupManager(t *testing.T, sink *mockSink, feedback VirtualFeedback, hub Broadcaster) (*Manager, *mockProvider, *rebind.Registry) {
	t.Helper()

	repo := &stubRepo{}
	registry := rebind.NewRegistry(repo)
	if err := registry.Stage(runtimeMap(t)); err != nil {
		t.Fatalf("stage failed: %v", err)
	}

	provider := &mockProvider{}
	provider.set(runtimeSnapshot())

	mgr := NewManager(Config{
		TickInterval:     time.Millisecond,
		BroadcastDivisor: 1,
	}, rebind.NewEngine(nil), registry, provider, sink, feedback, nil, hub, nil)

	return mgr, provider, registry
}

// stubRepo satisfies rebind.Repository for registry construction; the
// manager tests drive tick() directly and never hit storage.
type stubRepo struct {
	mu      sync.Mutex
	updated *rebind.RebindMap
}

func (s *stubRepo) GetByID(context.Context, string) (*rebind.RebindMap, error) {
	return nil, rebind.ErrNotFound
}
func (s *stubRepo) GetBySlug(context.Context, string) (*rebind.RebindMap, error) {
	return nil, rebind.ErrNotFound
}
func (s *stubRepo) GetActive(context.Context) (*rebind.RebindMap, error) {
	return nil, rebind.ErrNoActiveMap
}
func (s *stubRepo) List(context.Context) ([]*rebind.RebindMap, error) { return nil, nil }
func (s *stubRepo) Create(context.Context, *rebind.RebindMap) error   { return nil }
func (s *stubRepo) Update(_ context.Context, m *rebind.RebindMap) error {
	s.mu.Lock()
	s.updated = m
	s.mu.Unlock()
	return nil
}
func (s *stubRepo) Delete(context.Context, string) error    { return nil }
func (s *stubRepo) SetActive(context.Context, string) error { return nil }

// ─── Tests ───

func TestManagerTickCommitsWriteSet(t *testing.T) {
	sink := &mockSink{}
	mgr, _, _ := setupManager(t, sink, nil, nil)

	mgr.tick(context.Background(), 0.004)

	if sink.count() != 1 {
		t.Fatalf("expected 1 commit, got %d", sink.count())
	}
	ws := sink.lastCommit()
	if ws["vjoy"].Axes[0] != 0.5 {
		t.Errorf("expected committed axis 0.5, got %g", ws["vjoy"].Axes[0])
	}
	if mgr.Ticks() != 1 {
		t.Errorf("expected tick count 1, got %d", mgr.Ticks())
	}
}

func TestManagerIdleWithoutActiveMap(t *testing.T) {
	sink := &mockSink{}
	registry := rebind.NewRegistry(&stubRepo{})
	provider := &mockProvider{}
	provider.set(runtimeSnapshot())

	mgr := NewManager(Config{TickInterval: time.Millisecond},
		rebind.NewEngine(nil), registry, provider, sink, nil, nil, nil, nil)

	mgr.tick(context.Background(), 0.004)

	if sink.count() != 0 {
		t.Errorf("expected no commits without an active map, got %d", sink.count())
	}
}

func TestManagerSnapshotFaultFallsBack(t *testing.T) {
	sink := &mockSink{}
	mgr, provider, _ := setupManager(t, sink, nil, nil)

	// First tick consumes the published snapshot.
	mgr.tick(context.Background(), 0.004)

	// Provider goes dark (device disconnected): last-known-good carries
	// the loop instead of crashing or skipping.
	provider.set(nil)
	mgr.tick(context.Background(), 0.004)

	if sink.count() != 2 {
		t.Fatalf("expected 2 commits via last-known-good fallback, got %d", sink.count())
	}
	ws := sink.lastCommit()
	if ws["vjoy"].Axes[0] != 0.5 {
		t.Errorf("expected fallback snapshot values, got %g", ws["vjoy"].Axes[0])
	}
}

func TestManagerNeverTicksWithoutAnySnapshot(t *testing.T) {
	sink := &mockSink{}
	mgr, provider, _ := setupManager(t, sink, nil, nil)
	provider.set(nil)

	mgr.tick(context.Background(), 0.004)

	if sink.count() != 0 {
		t.Errorf("expected no commits before any snapshot exists, got %d", sink.count())
	}
}

func TestManagerCommitFaultReportedTickStands(t *testing.T) {
	sink := &mockSink{fail: errors.New("driver rejected write")}
	feedback := newMockFeedback()
	mgr, _, _ := setupManager(t, sink, feedback, nil)

	mgr.tick(context.Background(), 0.004)

	// The tick completed despite the commit fault.
	if mgr.Ticks() != 1 {
		t.Errorf("expected tick to stand after commit fault, got %d ticks", mgr.Ticks())
	}
	// Feedback only runs on successful commits.
	if len(feedback.state) != 0 {
		t.Error("expected no virtual feedback after failed commit")
	}

	// Recovery on the next tick.
	sink.fail = nil
	mgr.tick(context.Background(), 0.004)
	if sink.count() != 1 {
		t.Errorf("expected next tick to commit, got %d", sink.count())
	}
	if len(feedback.state) != 1 {
		t.Error("expected virtual feedback after successful commit")
	}
}

func TestManagerBroadcastsSummaries(t *testing.T) {
	sink := &mockSink{}
	hub := &mockHub{}
	mgr, _, _ := setupManager(t, sink, nil, hub)

	mgr.tick(context.Background(), 0.004)

	hub.mu.Lock()
	defer hub.mu.Unlock()
	if len(hub.summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(hub.summaries))
	}
	s := hub.summaries[0]
	if s.MapSlug != "runtime-test" || s.Evaluated != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestManagerStagedSwapAppliesBetweenTicks(t *testing.T) {
	sink := &mockSink{}
	mgr, _, registry := setupManager(t, sink, nil, nil)

	mgr.tick(context.Background(), 0.004)

	// Stage an inverted passthrough; next tick must use it.
	edited := runtimeMap(t)
	edited.Reroute[0].Transform.Passthrough = &rebind.PassthroughParams{Invert: true}
	if err := registry.Stage(edited); err != nil {
		t.Fatalf("stage failed: %v", err)
	}

	mgr.tick(context.Background(), 0.004)

	ws := sink.lastCommit()
	if ws["vjoy"].Axes[0] != -0.5 {
		t.Errorf("expected swapped map's inverted output -0.5, got %g", ws["vjoy"].Axes[0])
	}
}

func TestManagerMirrorsFaultsAndClearsOnSwap(t *testing.T) {
	sink := &mockSink{}
	mgr, _, registry := setupManager(t, sink, nil, nil)

	// Point the rebind at a device that never appears in snapshots.
	broken := runtimeMap(t)
	broken.Reroute[0].Sources[0].Device = "ghost-stick"
	if err := registry.Stage(broken); err != nil {
		t.Fatalf("stage failed: %v", err)
	}

	mgr.tick(context.Background(), 0.004)

	faults := mgr.FaultedRebinds()
	if len(faults) != 1 {
		t.Fatalf("expected 1 mirrored fault, got %d", len(faults))
	}
	if _, ok := faults["x"]; !ok {
		t.Errorf("expected fault keyed by rebind ID, got %v", faults)
	}

	// Replacing the map is the fix path; the mirror clears with the swap.
	if err := registry.Stage(runtimeMap(t)); err != nil {
		t.Fatalf("stage failed: %v", err)
	}
	mgr.tick(context.Background(), 0.004)

	if len(mgr.FaultedRebinds()) != 0 {
		t.Errorf("expected faults cleared after map swap, got %v", mgr.FaultedRebinds())
	}
}

func TestManagerStartStopLifecycle(t *testing.T) {
	sink := &mockSink{}
	mgr, _, _ := setupManager(t, sink, nil, nil)

	ctx := context.Background()
	mgr.Start(ctx)

	// Let a few ticks run.
	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	mgr.Stop(ctx)

	if sink.count() < 3 {
		t.Errorf("expected at least 3 commits before stop, got %d", sink.count())
	}
}
