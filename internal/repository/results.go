package repository

import (
	"context"
	"database/sql"

	"github.com/interpolis/tourpoule/internal/models"
)

// ==================== Result Methods ====================

// ListStageResults returns a stage's results, ranked riders first
func (r *Repository) ListStageResults(ctx context.Context, stageID int) ([]models.StageResult, error) {
	rows, err := r.query(ctx, `
		SELECT stage_id, rider_id, position, time_seconds, gap
		FROM stage_results
		WHERE stage_id = ?
		ORDER BY CASE WHEN position IS NULL THEN 1 ELSE 0 END, position, rider_id
	`, stageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []models.StageResult{}
	for rows.Next() {
		var res models.StageResult
		var position, timeSeconds sql.NullInt64
		if err := rows.Scan(&res.StageID, &res.RiderID, &position, &timeSeconds, &res.Gap); err != nil {
			return nil, err
		}
		if position.Valid {
			res.Position = int(position.Int64)
		}
		if timeSeconds.Valid {
			t := int(timeSeconds.Int64)
			res.TimeSeconds = &t
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// ListJerseyWearers returns the jersey assignments after a stage
func (r *Repository) ListJerseyWearers(ctx context.Context, stageID int) ([]models.JerseyWearer, error) {
	rows, err := r.query(ctx, `SELECT stage_id, jersey_type, rider_id FROM jersey_wearers WHERE stage_id = ? ORDER BY jersey_type`, stageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jerseys := []models.JerseyWearer{}
	for rows.Next() {
		var jw models.JerseyWearer
		if err := rows.Scan(&jw.StageID, &jw.JerseyType, &jw.RiderID); err != nil {
			return nil, err
		}
		jerseys = append(jerseys, jw)
	}
	return jerseys, rows.Err()
}

// CountStageResults returns the number of results stored for a stage
func (r *Repository) CountStageResults(ctx context.Context, stageID int) (int, error) {
	var count int
	err := r.queryRow(ctx, `SELECT COUNT(*) FROM stage_results WHERE stage_id = ?`, stageID).Scan(&count)
	return count, err
}

// ReplaceStageResults deletes the stage's results and jerseys and inserts
// the given ones. It returns the number of results that were replaced.
// Callers wanting atomicity run it inside WithTx.
func (r *Repository) ReplaceStageResults(ctx context.Context, stageID int, results []models.StageResult, jerseys []models.JerseyWearer) (int, error) {
	existing, err := r.CountStageResults(ctx, stageID)
	if err != nil {
		return 0, err
	}
	if _, err := r.exec(ctx, `DELETE FROM stage_results WHERE stage_id = ?`, stageID); err != nil {
		return 0, err
	}
	if _, err := r.exec(ctx, `DELETE FROM jersey_wearers WHERE stage_id = ?`, stageID); err != nil {
		return 0, err
	}

	for _, res := range results {
		var position any
		if res.Position > 0 {
			position = res.Position
		}
		var timeSeconds any
		if res.TimeSeconds != nil {
			timeSeconds = *res.TimeSeconds
		}
		if _, err := r.exec(ctx, `
			INSERT INTO stage_results (stage_id, rider_id, position, time_seconds, gap)
			VALUES (?, ?, ?, ?, ?)
		`, stageID, res.RiderID, position, timeSeconds, res.Gap); err != nil {
			if isUniqueViolation(err) {
				return 0, ErrDuplicate
			}
			return 0, err
		}
	}

	for _, jw := range jerseys {
		if _, err := r.exec(ctx, `
			INSERT INTO jersey_wearers (stage_id, jersey_type, rider_id) VALUES (?, ?, ?)
		`, stageID, string(jw.JerseyType), jw.RiderID); err != nil {
			if isUniqueViolation(err) {
				return 0, ErrDuplicate
			}
			return 0, err
		}
	}

	return existing, nil
}

// ListFinalPositions returns the final general classification
func (r *Repository) ListFinalPositions(ctx context.Context) ([]models.FinalPosition, error) {
	rows, err := r.query(ctx, `SELECT position, rider_id FROM final_positions ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []models.FinalPosition{}
	for rows.Next() {
		var fp models.FinalPosition
		if err := rows.Scan(&fp.Position, &fp.RiderID); err != nil {
			return nil, err
		}
		positions = append(positions, fp)
	}
	return positions, rows.Err()
}

// ListFinalJerseys returns the final jersey winners
func (r *Repository) ListFinalJerseys(ctx context.Context) ([]models.FinalJersey, error) {
	rows, err := r.query(ctx, `SELECT jersey_type, rider_id FROM final_jerseys ORDER BY jersey_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jerseys := []models.FinalJersey{}
	for rows.Next() {
		var fj models.FinalJersey
		if err := rows.Scan(&fj.JerseyType, &fj.RiderID); err != nil {
			return nil, err
		}
		jerseys = append(jerseys, fj)
	}
	return jerseys, rows.Err()
}

// ReplaceFinalStandings replaces the final classification and jersey
// winners, returning how many classification rows were replaced.
func (r *Repository) ReplaceFinalStandings(ctx context.Context, positions []models.FinalPosition, jerseys []models.FinalJersey) (int, error) {
	var existing int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM final_positions`).Scan(&existing); err != nil {
		return 0, err
	}
	if _, err := r.exec(ctx, `DELETE FROM final_positions`); err != nil {
		return 0, err
	}
	if _, err := r.exec(ctx, `DELETE FROM final_jerseys`); err != nil {
		return 0, err
	}
	for _, fp := range positions {
		if _, err := r.exec(ctx, `INSERT INTO final_positions (position, rider_id) VALUES (?, ?)`, fp.Position, fp.RiderID); err != nil {
			if isUniqueViolation(err) {
				return 0, ErrDuplicate
			}
			return 0, err
		}
	}
	for _, fj := range jerseys {
		if _, err := r.exec(ctx, `INSERT INTO final_jerseys (jersey_type, rider_id) VALUES (?, ?)`, string(fj.JerseyType), fj.RiderID); err != nil {
			if isUniqueViolation(err) {
				return 0, ErrDuplicate
			}
			return 0, err
		}
	}
	return existing, nil
}
