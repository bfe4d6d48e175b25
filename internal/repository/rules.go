package repository

import (
	"context"

	"github.com/interpolis/tourpoule/internal/models"
)

// ==================== Scoring Rule Methods ====================

// ListRules returns the rule table
func (r *Repository) ListRules(ctx context.Context) ([]models.ScoringRule, error) {
	rows, err := r.query(ctx, `SELECT id, kind, position, jersey_type, points FROM scoring_rules ORDER BY kind, position, jersey_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []models.ScoringRule{}
	for rows.Next() {
		var rule models.ScoringRule
		if err := rows.Scan(&rule.ID, &rule.Kind, &rule.Position, &rule.JerseyType, &rule.Points); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// GetRule returns a rule by ID
func (r *Repository) GetRule(ctx context.Context, id int) (*models.ScoringRule, error) {
	var rule models.ScoringRule
	err := r.queryRow(ctx, `SELECT id, kind, position, jersey_type, points FROM scoring_rules WHERE id = ?`, id).
		Scan(&rule.ID, &rule.Kind, &rule.Position, &rule.JerseyType, &rule.Points)
	if err != nil {
		return nil, notFound(err)
	}
	return &rule, nil
}

// CreateRule inserts a rule; a second rule for the same condition returns
// ErrDuplicate
func (r *Repository) CreateRule(ctx context.Context, rule models.ScoringRule) (int, error) {
	var id int
	err := r.queryRow(ctx, `
		INSERT INTO scoring_rules (kind, position, jersey_type, points) VALUES (?, ?, ?, ?)
		RETURNING id
	`, rule.Kind, rule.Position, string(rule.JerseyType), rule.Points).Scan(&id)
	if isUniqueViolation(err) {
		return 0, ErrDuplicate
	}
	return id, err
}

// UpdateRule updates a rule
func (r *Repository) UpdateRule(ctx context.Context, rule models.ScoringRule) error {
	res, err := r.exec(ctx, `
		UPDATE scoring_rules SET kind = ?, position = ?, jersey_type = ?, points = ? WHERE id = ?
	`, rule.Kind, rule.Position, string(rule.JerseyType), rule.Points, rule.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return requireAffected(res, err)
}

// DeleteRule deletes a rule
func (r *Repository) DeleteRule(ctx context.Context, id int) error {
	return requireAffected(r.exec(ctx, `DELETE FROM scoring_rules WHERE id = ?`, id))
}
