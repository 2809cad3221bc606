// Package registry persists layer records, their styles and global variable defaults in SQLite.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.ngs.io/ocean-wms/internal/adapter/store"
	"go.ngs.io/ocean-wms/internal/domain"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = store.ErrNotFound

const schema = `
CREATE TABLE IF NOT EXISTS layers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	dataset TEXT NOT NULL,
	var_name TEXT NOT NULL,
	kind INTEGER NOT NULL DEFAULT 0,
	std_name TEXT NOT NULL DEFAULT '',
	units TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1,
	logscale INTEGER,
	default_min REAL,
	default_max REAL,
	UNIQUE (dataset, var_name)
);

CREATE TABLE IF NOT EXISTS styles (
	code TEXT PRIMARY KEY,
	plot_type TEXT NOT NULL,
	colormap TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS layer_styles (
	layer_id INTEGER NOT NULL REFERENCES layers(id) ON DELETE CASCADE,
	style_code TEXT NOT NULL REFERENCES styles(code),
	position INTEGER NOT NULL,
	PRIMARY KEY (layer_id, style_code)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS variables (
	std_name TEXT NOT NULL,
	units TEXT NOT NULL,
	default_min REAL,
	default_max REAL,
	logscale INTEGER,
	PRIMARY KEY (std_name, units)
) WITHOUT ROWID;
`

const layerColumns = `id, dataset, var_name, kind, std_name, units, description, active, logscale, default_min, default_max`

// Registry is a SQLite backed layer registry.
type Registry struct {
	db *sql.DB
}

var _ store.LayerRegistry = (*Registry)(nil)

// Open opens (and creates when missing) the registry database at path.
func Open(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create registry dir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close closes the database.
func (r *Registry) Close() error { return r.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLayer(row rowScanner) (domain.Layer, error) {
	var (
		l        domain.Layer
		kind     int
		active   bool
		logScale sql.NullBool
		min, max sql.NullFloat64
	)
	if err := row.Scan(&l.ID, &l.Dataset, &l.VarName, &kind, &l.StdName, &l.Units, &l.Description, &active, &logScale, &min, &max); err != nil {
		return domain.Layer{}, err
	}
	l.Kind = domain.LayerKind(kind)
	l.Active = active
	if logScale.Valid {
		v := logScale.Bool
		l.LogScale = &v
	}
	if min.Valid {
		v := min.Float64
		l.DefaultMin = &v
	}
	if max.Valid {
		v := max.Float64
		l.DefaultMax = &v
	}
	return l, nil
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func (r *Registry) styles(ctx context.Context, layerID int64) ([]domain.Style, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.plot_type, s.colormap FROM layer_styles ls
		JOIN styles s ON s.code = ls.style_code
		WHERE ls.layer_id = ? ORDER BY ls.position`, layerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Style
	for rows.Next() {
		var s domain.Style
		var plot string
		if err := rows.Scan(&plot, &s.Colormap); err != nil {
			return nil, err
		}
		s.PlotType = domain.PlotType(plot)
		out = append(out, s)
	}
	return out, rows.Err()
}

func setStyles(ctx context.Context, tx *sql.Tx, layerID int64, styles []domain.Style) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM layer_styles WHERE layer_id = ?`, layerID); err != nil {
		return err
	}
	for i, s := range styles {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO styles (code, plot_type, colormap) VALUES (?, ?, ?)`,
			s.Code(), string(s.PlotType), s.Colormap); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO layer_styles (layer_id, style_code, position) VALUES (?, ?, ?)`,
			layerID, s.Code(), i); err != nil {
			return err
		}
	}
	return nil
}

// UpsertLayer inserts a layer or updates the record with the same (dataset, var_name).
// The stored record, including its id, is returned.
func (r *Registry) UpsertLayer(ctx context.Context, l domain.Layer) (domain.Layer, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Layer{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO layers (dataset, var_name, kind, std_name, units, description, active, logscale, default_min, default_max)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (dataset, var_name) DO UPDATE SET
			kind = excluded.kind,
			std_name = excluded.std_name,
			units = excluded.units,
			description = excluded.description,
			active = excluded.active,
			logscale = excluded.logscale,
			default_min = excluded.default_min,
			default_max = excluded.default_max
		RETURNING id`,
		l.Dataset, l.VarName, int(l.Kind), l.StdName, l.Units, l.Description, l.Active,
		nullBool(l.LogScale), nullFloat(l.DefaultMin), nullFloat(l.DefaultMax)).Scan(&id)
	if err != nil {
		return domain.Layer{}, fmt.Errorf("upsert layer %s/%s: %w", l.Dataset, l.VarName, err)
	}
	if err := setStyles(ctx, tx, id, l.Styles); err != nil {
		return domain.Layer{}, fmt.Errorf("set styles for %s/%s: %w", l.Dataset, l.VarName, err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Layer{}, err
	}
	return r.Layer(ctx, l.Dataset, l.VarName)
}

// RegisterVirtualLayer stores a derived layer unless a record with the same
// (dataset, var_name) already exists, and returns the stored record either way.
func (r *Registry) RegisterVirtualLayer(ctx context.Context, l domain.Layer) (domain.Layer, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Layer{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO layers (dataset, var_name, kind, std_name, units, description, active, logscale, default_min, default_max)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (dataset, var_name) DO NOTHING`,
		l.Dataset, l.VarName, int(domain.Virtual), l.StdName, l.Units, l.Description, l.Active,
		nullBool(l.LogScale), nullFloat(l.DefaultMin), nullFloat(l.DefaultMax))
	if err != nil {
		return domain.Layer{}, fmt.Errorf("register virtual layer %s/%s: %w", l.Dataset, l.VarName, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		id, err := res.LastInsertId()
		if err != nil {
			return domain.Layer{}, err
		}
		if err := setStyles(ctx, tx, id, l.Styles); err != nil {
			return domain.Layer{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Layer{}, err
	}
	return r.Layer(ctx, l.Dataset, l.VarName)
}

// Layer returns the layer with the exact variable name.
func (r *Registry) Layer(ctx context.Context, dataset, varName string) (domain.Layer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+layerColumns+` FROM layers WHERE dataset = ? AND var_name = ?`, dataset, varName)
	l, err := scanLayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Layer{}, fmt.Errorf("layer %s/%s: %w", dataset, varName, ErrNotFound)
	}
	if err != nil {
		return domain.Layer{}, err
	}
	if l.Styles, err = r.styles(ctx, l.ID); err != nil {
		return domain.Layer{}, err
	}
	return l, nil
}

// Layers returns every layer of a dataset ordered by id.
func (r *Registry) Layers(ctx context.Context, dataset string) ([]domain.Layer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+layerColumns+` FROM layers WHERE dataset = ? ORDER BY id`, dataset)
	if err != nil {
		return nil, err
	}
	var out []domain.Layer
	for rows.Next() {
		l, err := scanLayer(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		if out[i].Styles, err = r.styles(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SetActive toggles a layer's visibility in capabilities.
func (r *Registry) SetActive(ctx context.Context, dataset, varName string, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE layers SET active = ? WHERE dataset = ? AND var_name = ?`, active, dataset, varName)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("layer %s/%s: %w", dataset, varName, ErrNotFound)
	}
	return nil
}

// DeleteDataset removes every layer of a dataset.
func (r *Registry) DeleteDataset(ctx context.Context, dataset string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM layers WHERE dataset = ?`, dataset)
	return err
}

// VariableDefault returns the global defaults for a standard name and units.
func (r *Registry) VariableDefault(ctx context.Context, stdName, units string) (*domain.VariableDefault, error) {
	if strings.TrimSpace(stdName) == "" {
		return nil, nil
	}
	var (
		d        = domain.VariableDefault{StdName: stdName, Units: units}
		min, max sql.NullFloat64
		logScale sql.NullBool
	)
	err := r.db.QueryRowContext(ctx, `SELECT default_min, default_max, logscale FROM variables WHERE std_name = ? AND units = ?`,
		stdName, units).Scan(&min, &max, &logScale)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if min.Valid {
		d.DefaultMin = &min.Float64
	}
	if max.Valid {
		d.DefaultMax = &max.Float64
	}
	if logScale.Valid {
		d.LogScale = &logScale.Bool
	}
	return &d, nil
}

// PutVariableDefaults inserts or replaces global variable defaults in one transaction.
func (r *Registry) PutVariableDefaults(ctx context.Context, defaults ...domain.VariableDefault) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO variables (std_name, units, default_min, default_max, logscale) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range defaults {
		if _, err := stmt.ExecContext(ctx, d.StdName, d.Units, nullFloat(d.DefaultMin), nullFloat(d.DefaultMax), nullBool(d.LogScale)); err != nil {
			return fmt.Errorf("put variable default %s [%s]: %w", d.StdName, d.Units, err)
		}
	}
	return tx.Commit()
}
