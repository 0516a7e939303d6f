package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
)

const analysisColumns = `id, sequence, analysis_id, url, status, progress, current_analyzer, results, created_at, updated_at, completed_at, deleted_at`

// AnalysisRepository implements models.Repository[*models.AnalysisRecord] for the local analysis cache.
//
// Records are unique on analysis_id. Soft-deleted records are revived by [AnalysisRepository.Upsert]
// when the same analysis is observed again.
type AnalysisRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.AnalysisRecord] = (*AnalysisRepository)(nil)

// NewAnalysisRepository creates a new AnalysisRepository with the given database connection
func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Create inserts a new [models.AnalysisRecord] into the database with generated ID and sequence
func (r *AnalysisRepository) Create(record *models.AnalysisRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "analyses")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()

	query := `
		INSERT INTO analyses (id, sequence, analysis_id, url, status, progress, current_analyzer, results, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		record.AnalysisID(),
		record.URL(),
		string(record.Status()),
		record.Progress(),
		record.CurrentAnalyzer(),
		record.Results(),
		record.CreatedAt(),
		record.UpdatedAt(),
		nullTime(record.CompletedAt()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	record.SetID(id)
	record.SetSequence(sequence)
	return nil
}

// Get retrieves a record by its local ID, excluding soft-deleted records
func (r *AnalysisRepository) Get(id string) (*models.AnalysisRecord, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id), id)
}

// GetByAnalysisID retrieves a record by the backend's analysis ID, excluding soft-deleted records
func (r *AnalysisRepository) GetByAnalysisID(analysisID string) (*models.AnalysisRecord, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE analysis_id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, analysisID), analysisID)
}

// Update modifies an existing record in the database
func (r *AnalysisRepository) Update(record *models.AnalysisRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now()
	record.SetUpdatedAt(now)

	query := `
		UPDATE analyses
		SET url = ?, status = ?, progress = ?, current_analyzer = ?, results = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		record.URL(),
		string(record.Status()),
		record.Progress(),
		record.CurrentAnalyzer(),
		record.Results(),
		now,
		nullTime(record.CompletedAt()),
		record.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update analysis: %w", err)
	}

	return expectRow(result, record.ID())
}

// Upsert stores a snapshot of a, creating the record on first sight and updating it afterwards.
func (r *AnalysisRepository) Upsert(a *models.Analysis) (*models.AnalysisRecord, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE analysis_id = ?`
	existing, err := r.scanOne(r.db.QueryRow(query, a.ID), a.ID)
	if errors.Is(err, shared.ErrNotFound) {
		record, err := models.RecordFromAnalysis(a)
		if err != nil {
			return nil, err
		}
		if err := r.Create(record); err != nil {
			return nil, err
		}
		return record, nil
	}
	if err != nil {
		return nil, err
	}

	if existing.DeletedAt() != nil {
		if _, err := r.db.Exec(`UPDATE analyses SET deleted_at = NULL WHERE id = ?`, existing.ID()); err != nil {
			return nil, fmt.Errorf("failed to restore analysis: %w", err)
		}
		existing.SetDeletedAt(nil)
	}

	if err := existing.ApplySnapshot(a); err != nil {
		return nil, err
	}
	if err := r.Update(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Delete soft-deletes a record by its local ID
func (r *AnalysisRepository) Delete(id string) error {
	query := `
		UPDATE analyses
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}

	return expectRow(result, id)
}

// Purge permanently removes every record, soft-deleted or not, and returns how many were removed.
func (r *AnalysisRepository) Purge() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM analyses`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge analyses: %w", err)
	}
	return result.RowsAffected()
}

// List retrieves records matching the given criteria, newest first, excluding soft-deleted records.
//
// Supported criteria: "status" (string or [models.Status]), "url" (string), "limit" (int).
func (r *AnalysisRepository) List(criteria map[string]any) ([]*models.AnalysisRecord, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE deleted_at IS NULL`
	args := []any{}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.Status:
		if status != "" {
			query += " AND status = ?"
			args = append(args, string(status))
		}
	}

	if url, ok := criteria["url"].(string); ok && url != "" {
		query += " AND url = ?"
		args = append(args, url)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var records []*models.AnalysisRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// scanOne scans a single [sql.Row] into a [models.AnalysisRecord]
func (r *AnalysisRepository) scanOne(row *sql.Row, key string) (*models.AnalysisRecord, error) {
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: analysis %s", shared.ErrNotFound, key)
	}
	return record, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.AnalysisRecord, error) {
	var (
		id              string
		sequence        int
		analysisID      string
		url             string
		status          string
		progress        float64
		currentAnalyzer sql.NullString
		results         sql.NullString
		createdAt       time.Time
		updatedAt       time.Time
		completedAt     sql.NullTime
		deletedAt       sql.NullTime
	)

	err := s.Scan(&id, &sequence, &analysisID, &url, &status, &progress, &currentAnalyzer, &results,
		&createdAt, &updatedAt, &completedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan analysis: %w", err)
	}

	record := models.NewAnalysisRecord(sequence, analysisID, url, models.Status(status))
	record.SetID(id)
	record.SetProgress(progress)
	record.SetCurrentAnalyzer(currentAnalyzer.String)
	record.SetResults(results.String)
	record.SetCreatedAt(createdAt)
	record.SetUpdatedAt(updatedAt)
	if completedAt.Valid {
		record.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		record.SetDeletedAt(&deletedAt.Time)
	}

	return record, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: analysis not found or already deleted: %s", shared.ErrNotFound, id)
	}
	return nil
}
