package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/interpolis/tourpoule/internal/models"
)

// ==================== Participant Methods ====================

const participantColumns = `id, public_id, team_name, email, avatar_url, opt_in, subject, created_at`

func scanParticipant(row rowScanner) (models.Participant, error) {
	var p models.Participant
	var subject sql.NullString
	var createdAt sql.NullString
	err := row.Scan(&p.ID, &p.PublicID, &p.TeamName, &p.Email, &p.AvatarURL, &p.OptIn, &subject, &createdAt)
	p.Subject = subject.String
	p.CreatedAt = createdAt.String
	return p, err
}

// teamNameKey is the case-insensitive uniqueness key of a team name.
func teamNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ListParticipants returns all participants ordered by team name
func (r *Repository) ListParticipants(ctx context.Context) ([]models.Participant, error) {
	rows, err := r.query(ctx, `SELECT `+participantColumns+` FROM participants ORDER BY team_name_key, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := []models.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *Repository) getParticipantWhere(ctx context.Context, where string, arg any) (*models.Participant, error) {
	p, err := scanParticipant(r.queryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE `+where+` = ?`, arg))
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// GetParticipant returns a participant by ID
func (r *Repository) GetParticipant(ctx context.Context, id int) (*models.Participant, error) {
	return r.getParticipantWhere(ctx, "id", id)
}

// GetParticipantByPublicID returns a participant by its share-link ID
func (r *Repository) GetParticipantByPublicID(ctx context.Context, publicID string) (*models.Participant, error) {
	return r.getParticipantWhere(ctx, "public_id", publicID)
}

// GetParticipantBySubject returns the participant linked to an identity
// provider subject
func (r *Repository) GetParticipantBySubject(ctx context.Context, subject string) (*models.Participant, error) {
	if subject == "" {
		return nil, ErrNotFound
	}
	return r.getParticipantWhere(ctx, "subject", subject)
}

// CreateParticipant inserts a participant. Team names and subjects are
// unique; violations return ErrDuplicate.
func (r *Repository) CreateParticipant(ctx context.Context, p models.Participant) (int, error) {
	var id int
	err := r.queryRow(ctx, `
		INSERT INTO participants (public_id, team_name, team_name_key, email, avatar_url, opt_in, subject)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`, p.PublicID, strings.TrimSpace(p.TeamName), teamNameKey(p.TeamName), p.Email, p.AvatarURL, p.OptIn, nullIfEmpty(p.Subject)).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	return id, err
}

// UpdateParticipant updates a participant's profile
func (r *Repository) UpdateParticipant(ctx context.Context, p models.Participant) error {
	res, err := r.exec(ctx, `
		UPDATE participants SET team_name = ?, team_name_key = ?, email = ?, opt_in = ?
		WHERE id = ?
	`, strings.TrimSpace(p.TeamName), teamNameKey(p.TeamName), p.Email, p.OptIn, p.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return requireAffected(res, err)
}

// SetParticipantAvatar stores the avatar URL
func (r *Repository) SetParticipantAvatar(ctx context.Context, id int, avatarURL string) error {
	return requireAffected(r.exec(ctx, `UPDATE participants SET avatar_url = ? WHERE id = ?`, avatarURL, id))
}

// DeleteParticipant deletes a participant, its roster and its points
func (r *Repository) DeleteParticipant(ctx context.Context, id int) error {
	return requireAffected(r.exec(ctx, `DELETE FROM participants WHERE id = ?`, id))
}

// LockParticipant takes a row lock on the participant for the rest of the
// transaction. On SQLite the single connection already serialises writers,
// so it only checks existence.
func (r *Repository) LockParticipant(ctx context.Context, id int) error {
	query := `SELECT id FROM participants WHERE id = ?`
	if r.Dialect() == DialectPostgres {
		query += ` FOR UPDATE`
	}
	var got int
	return notFound(r.queryRow(ctx, query, id).Scan(&got))
}
