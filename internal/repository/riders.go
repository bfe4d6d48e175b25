package repository

import (
	"context"

	"github.com/interpolis/tourpoule/internal/models"
)

// ==================== Rider Methods ====================

const riderColumns = `id, first_name, last_name, team, nationality, photo_url`

// ListRiders returns all riders ordered by last name
func (r *Repository) ListRiders(ctx context.Context) ([]models.Rider, error) {
	rows, err := r.query(ctx, `SELECT `+riderColumns+` FROM riders ORDER BY last_name, first_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	riders := []models.Rider{}
	for rows.Next() {
		var rider models.Rider
		if err := rows.Scan(&rider.ID, &rider.FirstName, &rider.LastName, &rider.Team, &rider.Nationality, &rider.PhotoURL); err != nil {
			return nil, err
		}
		riders = append(riders, rider)
	}
	return riders, rows.Err()
}

// GetRider returns a rider by ID
func (r *Repository) GetRider(ctx context.Context, id int) (*models.Rider, error) {
	var rider models.Rider
	err := r.queryRow(ctx, `SELECT `+riderColumns+` FROM riders WHERE id = ?`, id).
		Scan(&rider.ID, &rider.FirstName, &rider.LastName, &rider.Team, &rider.Nationality, &rider.PhotoURL)
	if err != nil {
		return nil, notFound(err)
	}
	return &rider, nil
}

// CreateRider inserts a rider and returns its ID
func (r *Repository) CreateRider(ctx context.Context, rider models.Rider) (int, error) {
	var id int
	err := r.queryRow(ctx, `
		INSERT INTO riders (first_name, last_name, team, nationality, photo_url)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, rider.FirstName, rider.LastName, rider.Team, rider.Nationality, rider.PhotoURL).Scan(&id)
	return id, err
}

// UpdateRider updates a rider
func (r *Repository) UpdateRider(ctx context.Context, rider models.Rider) error {
	res, err := r.exec(ctx, `
		UPDATE riders SET first_name = ?, last_name = ?, team = ?, nationality = ?, photo_url = ?
		WHERE id = ?
	`, rider.FirstName, rider.LastName, rider.Team, rider.Nationality, rider.PhotoURL, rider.ID)
	return requireAffected(res, err)
}

// DeleteRider deletes a rider that no roster or result references
func (r *Repository) DeleteRider(ctx context.Context, id int) error {
	res, err := r.exec(ctx, `DELETE FROM riders WHERE id = ?`, id)
	if isForeignKeyViolation(err) {
		return ErrInUse
	}
	return requireAffected(res, err)
}

// CountTeamsForRider returns how many rosters include the rider
func (r *Repository) CountTeamsForRider(ctx context.Context, riderID int) (int, error) {
	var count int
	err := r.queryRow(ctx, `SELECT COUNT(*) FROM team_riders WHERE rider_id = ?`, riderID).Scan(&count)
	return count, err
}
