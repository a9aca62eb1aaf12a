package rebind

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// setupTestRepo creates an in-memory database with the rebind_maps schema.
func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `CREATE TABLE rebind_maps (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		active INTEGER NOT NULL DEFAULT 0,
		shift_mode INTEGER NOT NULL DEFAULT 1,
		shift_controls TEXT NOT NULL DEFAULT '[]',
		logical_rebinds TEXT NOT NULL DEFAULT '[]',
		reroute_rebinds TEXT NOT NULL DEFAULT '[]',
		virtual_rebinds TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	) STRICT`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return NewSQLiteRepository(db)
}

// statefulTestMap builds a map exercising every stateful transform with
// populated state cells.
func statefulTestMap(t *testing.T) *RebindMap {
	t.Helper()
	m := validTestMap(t)
	m.ShiftMode = 0b00000101
	m.ShiftControls = []ShiftControl{
		{
			Source: ChannelRef{Class: ClassPhysical, Device: "stick", Channel: ChannelButton, Index: 3},
			Enable: 0b00000010,
		},
	}
	m.Logical[0].ActiveMode = 0b00000100
	m.Logical[0].State = &TransformState{Latch: true, LastInput: true}
	m.Reroute = append(m.Reroute, Rebind{
		ID: "pitch-trim",
		Sources: []ChannelRef{
			{Class: ClassPhysical, Device: "stick", Channel: ChannelAxis, Index: 1},
			{Class: ClassPhysical, Device: "stick", Channel: ChannelButton, Index: 1},
			{Class: ClassPhysical, Device: "stick", Channel: ChannelButton, Index: 2},
		},
		Target:    ChannelRef{Class: ClassVirtual, Device: "vjoy", Channel: ChannelAxis, Index: 3},
		Transform: Transform{Kind: TransformTrim, Trim: &TrimParams{Rate: 0.25}},
		State:     &TransformState{Bias: -0.15},
	}, Rebind{
		ID: "flare",
		Sources: []ChannelRef{
			{Class: ClassPhysical, Device: "stick", Channel: ChannelButton, Index: 0},
		},
		Target:    ChannelRef{Class: ClassVirtual, Device: "vjoy", Channel: ChannelButton, Index: 1},
		Transform: Transform{Kind: TransformTempo, Tempo: &TempoParams{Duration: 0.75}},
		State:     &TransformState{PulseRemaining: 0.4, LastInput: true},
	})
	return m
}

func TestRepositoryCreateAndGet(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	m := validTestMap(t)
	if err := repo.Create(ctx, m); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != m.Name || got.Slug != m.Slug {
		t.Errorf("got %s/%s, want %s/%s", got.Name, got.Slug, m.Name, m.Slug)
	}

	bySlug, err := repo.GetBySlug(ctx, m.Slug)
	if err != nil {
		t.Fatalf("get by slug failed: %v", err)
	}
	if bySlug.ID != m.ID {
		t.Errorf("slug lookup returned %s, want %s", bySlug.ID, m.ID)
	}
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.GetByID(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	original := statefulTestMap(t)
	if err := repo.Create(ctx, original); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	loaded, err := repo.GetByID(ctx, original.ID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	// Shift configuration survives.
	if loaded.ShiftMode != original.ShiftMode {
		t.Errorf("shift mode: got %08b, want %08b", loaded.ShiftMode, original.ShiftMode)
	}
	if len(loaded.ShiftControls) != 1 || loaded.ShiftControls[0].Enable != 0b00000010 {
		t.Error("shift controls did not round-trip")
	}

	// Ordering and active_mode survive for every rebind.
	if len(loaded.Reroute) != len(original.Reroute) {
		t.Fatalf("reroute count: got %d, want %d", len(loaded.Reroute), len(original.Reroute))
	}
	for i := range original.Reroute {
		if loaded.Reroute[i].ID != original.Reroute[i].ID {
			t.Errorf("reroute %d: order changed (%s vs %s)", i, loaded.Reroute[i].ID, original.Reroute[i].ID)
		}
	}
	if loaded.Logical[0].ActiveMode != 0b00000100 {
		t.Errorf("active_mode: got %08b, want %08b", loaded.Logical[0].ActiveMode, 0b00000100)
	}

	// Transform parameters survive.
	if loaded.Reroute[1].Transform.Trim.Rate != 0.25 {
		t.Errorf("trim rate: got %g, want 0.25", loaded.Reroute[1].Transform.Trim.Rate)
	}
	if loaded.Reroute[2].Transform.Tempo.Duration != 0.75 {
		t.Errorf("tempo duration: got %g, want 0.75", loaded.Reroute[2].Transform.Tempo.Duration)
	}

	// Toggle latch and trim bias round-trip.
	if loaded.Logical[0].State == nil || !loaded.Logical[0].State.Latch {
		t.Error("toggle latch lost in round-trip")
	}
	if loaded.Reroute[1].State == nil || loaded.Reroute[1].State.Bias != -0.15 {
		t.Error("trim bias lost in round-trip")
	}

	// Tempo timers reset to idle on load.
	if loaded.Reroute[2].State != nil && loaded.Reroute[2].State.PulseRemaining != 0 {
		t.Errorf("tempo timer should be idle after load, got %g remaining",
			loaded.Reroute[2].State.PulseRemaining)
	}
}

func TestRepositoryUpdate(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	m := validTestMap(t)
	if err := repo.Create(ctx, m); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	m.Name = "Renamed Layout"
	m.ShiftMode = 0b00000011
	if err := repo.Update(ctx, m); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, _ := repo.GetByID(ctx, m.ID)
	if got.Name != "Renamed Layout" || got.ShiftMode != 0b00000011 {
		t.Errorf("update not persisted: %s %08b", got.Name, got.ShiftMode)
	}
}

func TestRepositoryUpdateMissing(t *testing.T) {
	repo := setupTestRepo(t)

	m := validTestMap(t)
	err := repo.Update(context.Background(), m)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryDuplicateSlug(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	first := validTestMap(t)
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	second := validTestMap(t)
	second.ID = GenerateID()
	err := repo.Create(ctx, second)
	if !errors.Is(err, ErrDuplicateSlug) {
		t.Errorf("expected ErrDuplicateSlug, got %v", err)
	}
}

func TestRepositoryDelete(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	m := validTestMap(t)
	if err := repo.Create(ctx, m); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Delete(ctx, m.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.GetByID(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestRepositorySetActive(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	first := validTestMap(t)
	second := validTestMap(t)
	second.ID = GenerateID()
	second.Slug = "second-layout"
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := repo.GetActive(ctx); !errors.Is(err, ErrNoActiveMap) {
		t.Errorf("expected ErrNoActiveMap before activation, got %v", err)
	}

	if err := repo.SetActive(ctx, first.ID); err != nil {
		t.Fatalf("set active failed: %v", err)
	}
	active, err := repo.GetActive(ctx)
	if err != nil {
		t.Fatalf("get active failed: %v", err)
	}
	if active.ID != first.ID {
		t.Errorf("expected %s active, got %s", first.ID, active.ID)
	}

	// Activating the second deactivates the first.
	if err := repo.SetActive(ctx, second.ID); err != nil {
		t.Fatalf("set active failed: %v", err)
	}
	active, _ = repo.GetActive(ctx)
	if active.ID != second.ID {
		t.Errorf("expected %s active, got %s", second.ID, active.ID)
	}

	if err := repo.SetActive(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepositoryList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	names := []string{"Bravo", "Alpha", "Charlie"}
	for i, name := range names {
		m := validTestMap(t)
		m.ID = GenerateID()
		m.Name = name
		m.Slug = []string{"bravo", "alpha", "charlie"}[i]
		if err := repo.Create(ctx, m); err != nil {
			t.Fatalf("create %s failed: %v", name, err)
		}
	}

	maps, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(maps) != 3 {
		t.Fatalf("expected 3 maps, got %d", len(maps))
	}
	if maps[0].Name != "Alpha" || maps[2].Name != "Charlie" {
		t.Errorf("expected name ordering, got %s..%s", maps[0].Name, maps[2].Name)
	}
}
