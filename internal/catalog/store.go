package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"redline/internal/config"
	"redline/internal/entity"
)

//go:embed schema.sql
var schemaSQL string

// Store persists revision entities in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "catalog.db"))
}

// OpenPath opens the catalog database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const entityColumns = "id, revision_id, kind, idx, sheet_number, title, discipline, block_type, bounds_x, bounds_y, bounds_w, bounds_h, text_signature, metadata_name, raster_path"

// Put inserts or replaces one entity record.
func (s *Store) Put(ctx context.Context, rec *entity.Entity, rasterPath string) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	var bx, by, bw, bh any
	if rec.Bounds != nil {
		bx, by, bw, bh = rec.Bounds.X, rec.Bounds.Y, rec.Bounds.Width, rec.Bounds.Height
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO entities (`+entityColumns+`, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.RevisionID,
		rec.Kind,
		rec.Index,
		nullable(rec.SheetNumber),
		nullable(rec.Title),
		nullable(rec.Discipline),
		nullable(rec.BlockType),
		bx, by, bw, bh,
		nullable(rec.TextSignature),
		nullable(rec.MetadataName),
		nullable(rasterPath),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put entity: %w", err)
	}
	return nil
}

// Get fetches one entity by ID. Returns nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*entity.Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	rec, _, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return rec, nil
}

// RasterPath resolves the stored raster location for an entity, or "".
func (s *Store) RasterPath(ctx context.Context, id string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT raster_path FROM entities WHERE id = ?`, id)
	var path sql.NullString
	if err := row.Scan(&path); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("raster path: %w", err)
	}
	return path.String, nil
}

// ByRevision returns a revision's entities of one kind in original order.
func (s *Store) ByRevision(ctx context.Context, revisionID string, kind entity.Kind) ([]*entity.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE revision_id = ? AND kind = ? ORDER BY idx, id`,
		revisionID, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("query revision entities: %w", err)
	}
	defer rows.Close()

	var out []*entity.Entity
	for rows.Next() {
		rec, _, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanEntity(scanner interface{ Scan(dest ...any) error }) (*entity.Entity, string, error) {
	var (
		id         string
		revisionID string
		kind       string
		idx        int
		sheetNum   sql.NullString
		title      sql.NullString
		discipline sql.NullString
		blockType  sql.NullString
		bx, by     sql.NullFloat64
		bw, bh     sql.NullFloat64
		signature  sql.NullString
		metaName   sql.NullString
		rasterPath sql.NullString
	)
	if err := scanner.Scan(
		&id, &revisionID, &kind, &idx,
		&sheetNum, &title, &discipline, &blockType,
		&bx, &by, &bw, &bh,
		&signature, &metaName, &rasterPath,
	); err != nil {
		return nil, "", err
	}

	rec := &entity.Entity{
		ID:            id,
		RevisionID:    revisionID,
		Kind:          entity.Kind(kind),
		Index:         idx,
		SheetNumber:   sheetNum.String,
		Title:         title.String,
		Discipline:    discipline.String,
		BlockType:     blockType.String,
		TextSignature: signature.String,
		MetadataName:  metaName.String,
	}
	if bw.Valid && bh.Valid {
		rec.Bounds = &entity.Bounds{X: bx.Float64, Y: by.Float64, Width: bw.Float64, Height: bh.Float64}
	}
	return rec, rasterPath.String, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
