package rebind

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines persistence operations for rebind maps.
//
// Maps are loaded and saved wholesale; the engine never persists partial
// state. Transform state cells travel inside the serialized rebinds.
type Repository interface {
	// GetByID retrieves a map by its unique ID.
	GetByID(ctx context.Context, id string) (*RebindMap, error)

	// GetBySlug retrieves a map by its slug.
	GetBySlug(ctx context.Context, slug string) (*RebindMap, error)

	// GetActive retrieves the currently active map, or ErrNoActiveMap.
	GetActive(ctx context.Context) (*RebindMap, error)

	// List retrieves all maps ordered by name.
	List(ctx context.Context) ([]*RebindMap, error)

	// Create stores a new map.
	Create(ctx context.Context, m *RebindMap) error

	// Update replaces a map wholesale.
	Update(ctx context.Context, m *RebindMap) error

	// Delete removes a map and its persisted transform state.
	Delete(ctx context.Context, id string) error

	// SetActive marks one map active and deactivates all others.
	SetActive(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
//
// Each map is one row; the three rebind sequences and the shift controls
// are stored as JSON columns, preserving order and transform state cells
// exactly as serialized.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository backed by the given database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const mapColumns = `id, name, slug, active, shift_mode, shift_controls,
	logical_rebinds, reroute_rebinds, virtual_rebinds, created_at, updated_at`

// GetByID retrieves a map by its unique ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*RebindMap, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+mapColumns+` FROM rebind_maps WHERE id = ?`, id)
	m, err := scanMap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %q", ErrNotFound, id)
	}
	return m, err
}

// GetBySlug retrieves a map by its slug.
func (r *SQLiteRepository) GetBySlug(ctx context.Context, slug string) (*RebindMap, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+mapColumns+` FROM rebind_maps WHERE slug = ?`, slug)
	m, err := scanMap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: slug %q", ErrNotFound, slug)
	}
	return m, err
}

// GetActive retrieves the currently active map.
func (r *SQLiteRepository) GetActive(ctx context.Context) (*RebindMap, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+mapColumns+` FROM rebind_maps WHERE active = 1 LIMIT 1`)
	m, err := scanMap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveMap
	}
	return m, err
}

// List retrieves all maps ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]*RebindMap, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mapColumns+` FROM rebind_maps ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rebind: list maps: %w", err)
	}
	defer rows.Close()

	var maps []*RebindMap
	for rows.Next() {
		m, err := scanMap(rows)
		if err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	return maps, rows.Err()
}

// Create stores a new map after validation.
func (r *SQLiteRepository) Create(ctx context.Context, m *RebindMap) error {
	if err := ValidateMap(m); err != nil {
		return err
	}
	if err := r.checkSlugFree(ctx, m.Slug, m.ID); err != nil {
		return err
	}

	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	cols, err := marshalMap(m)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO rebind_maps (`+mapColumns+`)
		 VALUES (?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Slug, int(m.ShiftMode),
		cols.shiftControls, cols.logical, cols.reroute, cols.virtual,
		m.CreatedAt.Format(time.RFC3339), m.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("rebind: create map: %w", err)
	}
	return nil
}

// Update replaces a map wholesale.
func (r *SQLiteRepository) Update(ctx context.Context, m *RebindMap) error {
	if err := ValidateMap(m); err != nil {
		return err
	}
	if err := r.checkSlugFree(ctx, m.Slug, m.ID); err != nil {
		return err
	}

	m.UpdatedAt = time.Now().UTC()

	cols, err := marshalMap(m)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE rebind_maps
		 SET name = ?, slug = ?, shift_mode = ?, shift_controls = ?,
		     logical_rebinds = ?, reroute_rebinds = ?, virtual_rebinds = ?,
		     updated_at = ?
		 WHERE id = ?`,
		m.Name, m.Slug, int(m.ShiftMode),
		cols.shiftControls, cols.logical, cols.reroute, cols.virtual,
		m.UpdatedAt.Format(time.RFC3339), m.ID)
	if err != nil {
		return fmt.Errorf("rebind: update map: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %q", ErrNotFound, m.ID)
	}
	return nil
}

// Delete removes a map.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rebind_maps WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("rebind: delete map: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %q", ErrNotFound, id)
	}
	return nil
}

// SetActive marks one map active and deactivates all others, atomically.
func (r *SQLiteRepository) SetActive(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rebind: set active: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, `UPDATE rebind_maps SET active = 0 WHERE active = 1`); err != nil {
		return fmt.Errorf("rebind: set active: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE rebind_maps SET active = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("rebind: set active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %q", ErrNotFound, id)
	}

	return tx.Commit()
}

// checkSlugFree rejects a slug already used by a different map.
func (r *SQLiteRepository) checkSlugFree(ctx context.Context, slug, selfID string) error {
	var existing string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM rebind_maps WHERE slug = ?`, slug).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("rebind: check slug: %w", err)
	}
	if existing != selfID {
		return fmt.Errorf("%w: %q", ErrDuplicateSlug, slug)
	}
	return nil
}

// jsonColumns holds the serialized JSON column values for one map row.
type jsonColumns struct {
	shiftControls string
	logical       string
	reroute       string
	virtual       string
}

func marshalMap(m *RebindMap) (jsonColumns, error) {
	var cols jsonColumns
	var err error
	if cols.shiftControls, err = marshalJSON(m.ShiftControls); err != nil {
		return cols, err
	}
	if cols.logical, err = marshalJSON(m.Logical); err != nil {
		return cols, err
	}
	if cols.reroute, err = marshalJSON(m.Reroute); err != nil {
		return cols, err
	}
	if cols.virtual, err = marshalJSON(m.Virtual); err != nil {
		return cols, err
	}
	return cols, nil
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("rebind: marshal: %w", err)
	}
	if string(data) == "null" {
		return "[]", nil
	}
	return string(data), nil
}

// rowScanner matches both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanMap reads one rebind_maps row into a RebindMap.
//
// Tempo timers come back idle automatically: runtime-only state fields
// are excluded from the JSON serialization, so only latch, bias, and the
// accumulated axis value round-trip.
func scanMap(row rowScanner) (*RebindMap, error) {
	var (
		m                    RebindMap
		active, shiftMode    int
		controls, logical    string
		reroute, virtual     string
		createdAt, updatedAt string
	)

	err := row.Scan(&m.ID, &m.Name, &m.Slug, &active, &shiftMode, &controls,
		&logical, &reroute, &virtual, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	// #nosec G115 -- shift_mode is constrained to 8 bits by validation
	m.ShiftMode = ShiftMask(shiftMode)

	if err := json.Unmarshal([]byte(controls), &m.ShiftControls); err != nil {
		return nil, fmt.Errorf("rebind: unmarshal shift controls: %w", err)
	}
	if err := json.Unmarshal([]byte(logical), &m.Logical); err != nil {
		return nil, fmt.Errorf("rebind: unmarshal logical rebinds: %w", err)
	}
	if err := json.Unmarshal([]byte(reroute), &m.Reroute); err != nil {
		return nil, fmt.Errorf("rebind: unmarshal reroute rebinds: %w", err)
	}
	if err := json.Unmarshal([]byte(virtual), &m.Virtual); err != nil {
		return nil, fmt.Errorf("rebind: unmarshal virtual rebinds: %w", err)
	}

	if m.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("rebind: parse created_at: %w", err)
	}
	if m.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("rebind: parse updated_at: %w", err)
	}

	return &m, nil
}
