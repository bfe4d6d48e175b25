package repository

import (
	"context"

	"github.com/interpolis/tourpoule/internal/models"
)

// ==================== Points Methods ====================

// ReplaceStagePoints replaces the derived points of one stage
func (r *Repository) ReplaceStagePoints(ctx context.Context, stageID int, totals []models.StagePoints, breakdown []models.RiderPoints) error {
	if _, err := r.exec(ctx, `DELETE FROM rider_points WHERE stage_id = ?`, stageID); err != nil {
		return err
	}
	if _, err := r.exec(ctx, `DELETE FROM stage_points WHERE stage_id = ?`, stageID); err != nil {
		return err
	}
	for _, sp := range totals {
		if _, err := r.exec(ctx, `INSERT INTO stage_points (participant_id, stage_id, points) VALUES (?, ?, ?)`,
			sp.ParticipantID, stageID, sp.Points); err != nil {
			return err
		}
	}
	for _, rp := range breakdown {
		if _, err := r.exec(ctx, `
			INSERT INTO rider_points (participant_id, stage_id, rider_id, reason, points) VALUES (?, ?, ?, ?, ?)
		`, rp.ParticipantID, stageID, rp.RiderID, rp.Reason, rp.Points); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceFinalPoints replaces the final bonus breakdown
func (r *Repository) ReplaceFinalPoints(ctx context.Context, breakdown []models.RiderPoints) error {
	if _, err := r.exec(ctx, `DELETE FROM final_points`); err != nil {
		return err
	}
	for _, rp := range breakdown {
		if _, err := r.exec(ctx, `
			INSERT INTO final_points (participant_id, rider_id, reason, points) VALUES (?, ?, ?, ?)
		`, rp.ParticipantID, rp.RiderID, rp.Reason, rp.Points); err != nil {
			return err
		}
	}
	return nil
}

// ClearPoints deletes every derived points row
func (r *Repository) ClearPoints(ctx context.Context) error {
	for _, table := range []string{"rider_points", "stage_points", "final_points"} {
		if _, err := r.exec(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) listStagePoints(ctx context.Context, query string, args ...any) ([]models.StagePoints, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []models.StagePoints{}
	for rows.Next() {
		var sp models.StagePoints
		if err := rows.Scan(&sp.ParticipantID, &sp.StageID, &sp.Points); err != nil {
			return nil, err
		}
		points = append(points, sp)
	}
	return points, rows.Err()
}

// ListStagePoints returns all stage totals
func (r *Repository) ListStagePoints(ctx context.Context) ([]models.StagePoints, error) {
	return r.listStagePoints(ctx, `SELECT participant_id, stage_id, points FROM stage_points ORDER BY stage_id, participant_id`)
}

// ListStagePointsForStage returns the totals of one stage
func (r *Repository) ListStagePointsForStage(ctx context.Context, stageID int) ([]models.StagePoints, error) {
	return r.listStagePoints(ctx, `SELECT participant_id, stage_id, points FROM stage_points WHERE stage_id = ? ORDER BY participant_id`, stageID)
}

func (r *Repository) listRiderPoints(ctx context.Context, query string, args ...any) ([]models.RiderPoints, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []models.RiderPoints{}
	for rows.Next() {
		var rp models.RiderPoints
		if err := rows.Scan(&rp.ParticipantID, &rp.StageID, &rp.RiderID, &rp.Reason, &rp.Points); err != nil {
			return nil, err
		}
		points = append(points, rp)
	}
	return points, rows.Err()
}

// ListFinalPoints returns the final bonus breakdown of every participant
func (r *Repository) ListFinalPoints(ctx context.Context) ([]models.RiderPoints, error) {
	return r.listRiderPoints(ctx, `
		SELECT participant_id, 0, rider_id, reason, points FROM final_points ORDER BY participant_id, rider_id, reason
	`)
}

// ListRiderPoints returns a participant's breakdown including final bonuses
// (stage 0)
func (r *Repository) ListRiderPoints(ctx context.Context, participantID int) ([]models.RiderPoints, error) {
	return r.listRiderPoints(ctx, `
		SELECT participant_id, stage_id, rider_id, reason, points FROM rider_points WHERE participant_id = ?
		UNION ALL
		SELECT participant_id, 0, rider_id, reason, points FROM final_points WHERE participant_id = ?
		ORDER BY 2, 3, 4
	`, participantID, participantID)
}

// TopRiders returns riders by total points produced for teams across all
// stages, highest first. Points of a rider are counted once per stage, not
// once per team.
func (r *Repository) TopRiders(ctx context.Context, limit int) ([]RiderCountRow, error) {
	return r.riderCounts(ctx, `
		SELECT r.id, r.first_name, r.last_name, r.team, r.nationality, r.photo_url, SUM(p.points) AS total
		FROM riders r
		JOIN (
			SELECT DISTINCT stage_id, rider_id, reason, points FROM rider_points
		) p ON p.rider_id = r.id
		GROUP BY r.id, r.first_name, r.last_name, r.team, r.nationality, r.photo_url
		ORDER BY total DESC, r.last_name, r.id
		LIMIT ?
	`, limit)
}

// HasPoints reports whether a participant has any derived points
func (r *Repository) HasPoints(ctx context.Context, participantID int) (bool, error) {
	var count int
	err := r.queryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM stage_points WHERE participant_id = ? AND points > 0)
		     + (SELECT COUNT(*) FROM final_points WHERE participant_id = ?)
	`, participantID, participantID).Scan(&count)
	return count > 0, err
}
