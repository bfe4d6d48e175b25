package repository

import (
	"context"
	"database/sql"

	"github.com/interpolis/tourpoule/internal/models"
)

// ==================== Team Methods ====================

const teamRiderQuery = `
	SELECT tr.participant_id, tr.rider_id, tr.slot_type, tr.slot_number, tr.state, tr.active_from, tr.inactive_from,
	       r.first_name, r.last_name, r.team, r.nationality, r.photo_url
	FROM team_riders tr
	JOIN riders r ON r.id = tr.rider_id
`

func (r *Repository) listTeamRiders(ctx context.Context, query string, args ...any) ([]models.TeamRider, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	riders := []models.TeamRider{}
	for rows.Next() {
		var tr models.TeamRider
		var rider models.Rider
		var inactiveFrom sql.NullInt64
		if err := rows.Scan(&tr.ParticipantID, &tr.RiderID, &tr.SlotType, &tr.SlotNumber, &tr.State, &tr.ActiveFrom, &inactiveFrom,
			&rider.FirstName, &rider.LastName, &rider.Team, &rider.Nationality, &rider.PhotoURL); err != nil {
			return nil, err
		}
		if inactiveFrom.Valid {
			v := int(inactiveFrom.Int64)
			tr.InactiveFrom = &v
		}
		rider.ID = tr.RiderID
		tr.Rider = &rider
		riders = append(riders, tr)
	}
	return riders, rows.Err()
}

// ListTeamRiders returns a participant's roster, main slots first
func (r *Repository) ListTeamRiders(ctx context.Context, participantID int) ([]models.TeamRider, error) {
	return r.listTeamRiders(ctx, teamRiderQuery+`
		WHERE tr.participant_id = ?
		ORDER BY tr.slot_type, tr.slot_number
	`, participantID)
}

// ListAllTeamRiders returns every roster entry grouped by participant
func (r *Repository) ListAllTeamRiders(ctx context.Context) ([]models.TeamRider, error) {
	return r.listTeamRiders(ctx, teamRiderQuery+`
		ORDER BY tr.participant_id, tr.slot_type, tr.slot_number
	`)
}

// ReplaceRoster replaces a participant's roster entries
func (r *Repository) ReplaceRoster(ctx context.Context, participantID int, riders []models.TeamRider) error {
	if _, err := r.exec(ctx, `DELETE FROM team_riders WHERE participant_id = ?`, participantID); err != nil {
		return err
	}
	for _, tr := range riders {
		var inactiveFrom any
		if tr.InactiveFrom != nil {
			inactiveFrom = *tr.InactiveFrom
		}
		_, err := r.exec(ctx, `
			INSERT INTO team_riders (participant_id, rider_id, slot_type, slot_number, state, active_from, inactive_from)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, participantID, tr.RiderID, string(tr.SlotType), tr.SlotNumber, string(tr.State), tr.ActiveFrom, inactiveFrom)
		switch {
		case isUniqueViolation(err):
			return ErrDuplicate
		case isForeignKeyViolation(err):
			return ErrNotFound
		case err != nil:
			return err
		}
	}
	return nil
}

// UpdateTeamRiderState persists a slot state transition and counting window
func (r *Repository) UpdateTeamRiderState(ctx context.Context, tr models.TeamRider) error {
	var inactiveFrom any
	if tr.InactiveFrom != nil {
		inactiveFrom = *tr.InactiveFrom
	}
	return requireAffected(r.exec(ctx, `
		UPDATE team_riders SET state = ?, active_from = ?, inactive_from = ?
		WHERE participant_id = ? AND rider_id = ?
	`, string(tr.State), tr.ActiveFrom, inactiveFrom, tr.ParticipantID, tr.RiderID))
}

// RiderPopularity returns riders with the number of teams selecting them,
// most popular first
func (r *Repository) RiderPopularity(ctx context.Context) ([]RiderCountRow, error) {
	return r.riderCounts(ctx, `
		SELECT r.id, r.first_name, r.last_name, r.team, r.nationality, r.photo_url, COUNT(tr.participant_id) AS cnt
		FROM riders r
		JOIN team_riders tr ON tr.rider_id = r.id
		GROUP BY r.id, r.first_name, r.last_name, r.team, r.nationality, r.photo_url
		ORDER BY cnt DESC, r.last_name, r.id
	`)
}

func (r *Repository) riderCounts(ctx context.Context, query string, args ...any) ([]RiderCountRow, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RiderCountRow{}
	for rows.Next() {
		var row RiderCountRow
		if err := rows.Scan(&row.Rider.ID, &row.Rider.FirstName, &row.Rider.LastName, &row.Rider.Team,
			&row.Rider.Nationality, &row.Rider.PhotoURL, &row.Count); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
