package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/hlsx/internal/models"
	"github.com/desertthunder/hlsx/internal/shared"
)

const cachedFileColumns = `id, sequence, resource, uri, path, size, created_at`

// CachedFileRepository implements models.ResourceRepository[*models.CachedFile] for the content index.
type CachedFileRepository struct {
	db *sql.DB
}

var _ models.ResourceRepository[*models.CachedFile] = (*CachedFileRepository)(nil)

// NewCachedFileRepository creates a new CachedFileRepository with the given database connection
func NewCachedFileRepository(db *sql.DB) *CachedFileRepository {
	return &CachedFileRepository{db: db}
}

// Create inserts a new [models.CachedFile] with generated ID and sequence
func (r *CachedFileRepository) Create(file *models.CachedFile) error {
	if err := file.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "cached_files")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO cached_files (id, sequence, resource, uri, path, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		string(file.Resource()),
		file.URI(),
		file.Path(),
		file.Size(),
		file.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cached file: %w", err)
	}

	file.SetID(id)
	file.SetSequence(sequence)
	return nil
}

// Get retrieves a cached file by ID
func (r *CachedFileRepository) Get(id string) (*models.CachedFile, error) {
	query := `SELECT ` + cachedFileColumns + ` FROM cached_files WHERE id = ?`
	return r.scanOne(r.db.QueryRow(query, id), id)
}

// GetByPath retrieves the cached file stored at path
func (r *CachedFileRepository) GetByPath(path string) (*models.CachedFile, error) {
	query := `SELECT ` + cachedFileColumns + ` FROM cached_files WHERE path = ?`
	return r.scanOne(r.db.QueryRow(query, path), path)
}

// Delete removes a cached file row by ID
func (r *CachedFileRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM cached_files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cached file: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: cached file %s", shared.ErrNotFound, id)
	}
	return nil
}

// DeleteByPath removes the row for path, if any
func (r *CachedFileRepository) DeleteByPath(path string) error {
	if _, err := r.db.Exec(`DELETE FROM cached_files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("failed to delete cached file: %w", err)
	}
	return nil
}

// DeleteByResource removes every row of resource and returns how many were deleted
func (r *CachedFileRepository) DeleteByResource(resource models.ResourceID) (int, error) {
	result, err := r.db.Exec(`DELETE FROM cached_files WHERE resource = ?`, string(resource))
	if err != nil {
		return 0, fmt.Errorf("failed to delete cached files: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(rows), nil
}

// List retrieves all cached files matching the given criteria.
//
// Supported criteria: "resource" (string or [models.ResourceID]).
func (r *CachedFileRepository) List(criteria map[string]any) ([]*models.CachedFile, error) {
	query := `SELECT ` + cachedFileColumns + ` FROM cached_files WHERE 1 = 1`
	args := []any{}

	switch resource := criteria["resource"].(type) {
	case string:
		if resource != "" {
			query += " AND resource = ?"
			args = append(args, resource)
		}
	case models.ResourceID:
		if resource != "" {
			query += " AND resource = ?"
			args = append(args, string(resource))
		}
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached files: %w", err)
	}
	defer rows.Close()

	var files []*models.CachedFile
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return files, nil
}

// ListByResource retrieves the files of resource in insertion order
func (r *CachedFileRepository) ListByResource(resource models.ResourceID) ([]*models.CachedFile, error) {
	return r.List(map[string]any{"resource": resource})
}

// Stats summarizes indexed files per resource, ordered by resource
func (r *CachedFileRepository) Stats() ([]models.ResourceStats, error) {
	query := `
		SELECT resource, COUNT(*), COALESCE(SUM(size), 0)
		FROM cached_files
		GROUP BY resource
		ORDER BY resource ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache stats: %w", err)
	}
	defer rows.Close()

	var stats []models.ResourceStats
	for rows.Next() {
		var (
			resource string
			s        models.ResourceStats
		)
		if err := rows.Scan(&resource, &s.Files, &s.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan cache stats: %w", err)
		}
		s.Resource = models.ResourceID(resource)
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return stats, nil
}

// StatsFor summarizes the indexed files of one resource. Unknown resources report zero files.
func (r *CachedFileRepository) StatsFor(resource models.ResourceID) (models.ResourceStats, error) {
	s := models.ResourceStats{Resource: resource}
	err := r.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM cached_files WHERE resource = ?`,
		string(resource),
	).Scan(&s.Files, &s.Bytes)
	if err != nil {
		return s, fmt.Errorf("failed to query cache stats: %w", err)
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *CachedFileRepository) scanOne(row *sql.Row, key string) (*models.CachedFile, error) {
	file, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: cached file %s", shared.ErrNotFound, key)
	}
	return file, err
}

// scanFile scans a single row into a [models.CachedFile]
func scanFile(s scanner) (*models.CachedFile, error) {
	var (
		id        string
		sequence  int
		resource  string
		uri       string
		path      string
		size      int64
		createdAt time.Time
	)

	if err := s.Scan(&id, &sequence, &resource, &uri, &path, &size, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan cached file: %w", err)
	}

	return models.RestoreCachedFile(id, sequence, models.ResourceID(resource), uri, path, size, createdAt), nil
}
