package repository

import (
	"context"
	"database/sql"

	"github.com/interpolis/tourpoule/internal/models"
)

// ==================== Stage Methods ====================

const stageColumns = `s.id, s.sequence, s.start_location, s.finish_location, s.stage_date, s.distance_km, s.neutralized, s.cancelled, s.is_final`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStage(row rowScanner) (models.Stage, error) {
	var s models.Stage
	err := row.Scan(&s.ID, &s.Sequence, &s.StartLocation, &s.FinishLocation, &s.Date, &s.DistanceKM, &s.Neutralized, &s.Cancelled, &s.IsFinal)
	return s, err
}

func (r *Repository) listStages(ctx context.Context, query string, args ...any) ([]models.Stage, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := []models.Stage{}
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

// ListStages returns all stages in race order
func (r *Repository) ListStages(ctx context.Context) ([]models.Stage, error) {
	return r.listStages(ctx, `SELECT `+stageColumns+` FROM stages s ORDER BY s.sequence`)
}

// ListScoredStages returns non-cancelled stages that have results, in race order
func (r *Repository) ListScoredStages(ctx context.Context) ([]models.Stage, error) {
	return r.listStages(ctx, `
		SELECT `+stageColumns+` FROM stages s
		WHERE s.cancelled = ? AND EXISTS (SELECT 1 FROM stage_results sr WHERE sr.stage_id = s.id)
		ORDER BY s.sequence
	`, false)
}

// GetStage returns a stage by ID
func (r *Repository) GetStage(ctx context.Context, id int) (*models.Stage, error) {
	s, err := scanStage(r.queryRow(ctx, `SELECT `+stageColumns+` FROM stages s WHERE s.id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// LatestResultStage returns the highest-sequence non-cancelled stage with
// results, or ErrNotFound before the first commit.
func (r *Repository) LatestResultStage(ctx context.Context) (*models.Stage, error) {
	s, err := scanStage(r.queryRow(ctx, `
		SELECT `+stageColumns+` FROM stages s
		WHERE s.cancelled = ? AND EXISTS (SELECT 1 FROM stage_results sr WHERE sr.stage_id = s.id)
		ORDER BY s.sequence DESC
		LIMIT 1
	`, false))
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// CreateStage inserts a stage and returns its ID
func (r *Repository) CreateStage(ctx context.Context, s models.Stage) (int, error) {
	var id int
	err := r.queryRow(ctx, `
		INSERT INTO stages (sequence, start_location, finish_location, stage_date, distance_km, neutralized, cancelled, is_final)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, s.Sequence, s.StartLocation, s.FinishLocation, s.Date, s.DistanceKM, s.Neutralized, s.Cancelled, s.IsFinal).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	return id, err
}

// UpdateStage updates a stage
func (r *Repository) UpdateStage(ctx context.Context, s models.Stage) error {
	res, err := r.exec(ctx, `
		UPDATE stages SET sequence = ?, start_location = ?, finish_location = ?, stage_date = ?,
			distance_km = ?, neutralized = ?, cancelled = ?, is_final = ?
		WHERE id = ?
	`, s.Sequence, s.StartLocation, s.FinishLocation, s.Date, s.DistanceKM, s.Neutralized, s.Cancelled, s.IsFinal, s.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return requireAffected(res, err)
}

// DeleteStage deletes a stage together with its results and points
func (r *Repository) DeleteStage(ctx context.Context, id int) error {
	return requireAffected(r.exec(ctx, `DELETE FROM stages WHERE id = ?`, id))
}

// requireAffected turns an update that touched no rows into ErrNotFound.
func requireAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
