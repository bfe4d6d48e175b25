package services

import (
	"context"

	"github.com/interpolis/tourpoule/internal/errors"
	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/repository"
	"github.com/interpolis/tourpoule/internal/scoring"
)

// RuleService manages the scoring rule table. Every change rescores all
// committed stages so stored points always follow the current rules.
type RuleService struct {
	log      logger.Logger
	repo     repository.FullRepository
	notifier ChangeNotifier
}

// NewRuleService creates a new RuleService
func NewRuleService(log logger.Logger, repo repository.FullRepository, notifier ChangeNotifier) *RuleService {
	return &RuleService{log: log, repo: repo, notifier: notifierOrNop(notifier)}
}

// ListRules returns the rule table
func (s *RuleService) ListRules(ctx context.Context) ([]models.ScoringRule, error) {
	return s.repo.ListRules(ctx)
}

// CreateRule adds a rule and rescores
func (s *RuleService) CreateRule(ctx context.Context, rule models.ScoringRule) (*models.ScoringRule, error) {
	rule.ID = 0
	err := s.change(ctx, func(tx repository.FullRepository, rows []models.ScoringRule) error {
		if err := checkRules(append(rows, rule)); err != nil {
			return err
		}
		id, err := tx.CreateRule(ctx, normalizeRule(rule))
		if err != nil {
			return mapRepoErr(err, "rule", rule.Kind)
		}
		rule.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	rule = normalizeRule(rule)
	return &rule, nil
}

// UpdateRule replaces a rule and rescores
func (s *RuleService) UpdateRule(ctx context.Context, rule models.ScoringRule) error {
	return s.change(ctx, func(tx repository.FullRepository, rows []models.ScoringRule) error {
		found := false
		for i := range rows {
			if rows[i].ID == rule.ID {
				rows[i], found = rule, true
			}
		}
		if !found {
			return errors.NotFoundf("rule %d not found", rule.ID)
		}
		if err := checkRules(rows); err != nil {
			return err
		}
		return mapRepoErr(tx.UpdateRule(ctx, normalizeRule(rule)), "rule", rule.ID)
	})
}

// DeleteRule removes a rule and rescores
func (s *RuleService) DeleteRule(ctx context.Context, id int) error {
	return s.change(ctx, func(tx repository.FullRepository, _ []models.ScoringRule) error {
		return mapRepoErr(tx.DeleteRule(ctx, id), "rule", id)
	})
}

// change runs a rule edit and the full rescore in one transaction.
func (s *RuleService) change(ctx context.Context, edit func(tx repository.FullRepository, rows []models.ScoringRule) error) error {
	var result *RecomputeResult
	err := s.repo.WithTx(ctx, func(tx repository.FullRepository) error {
		rows, err := tx.ListRules(ctx)
		if err != nil {
			return err
		}
		if err := edit(tx, rows); err != nil {
			return err
		}
		result, err = rescoreAll(ctx, tx)
		return err
	})
	if err != nil {
		return err
	}
	s.log.Info("scoring rules changed, points recomputed", "stages", result.StagesScored)
	s.notifier.Changed(ctx)
	return nil
}

// checkRules validates a candidate rule table as a whole.
func checkRules(rows []models.ScoringRule) error {
	if _, err := scoring.NewRuleSet(rows); err != nil {
		return errors.Validation(err.Error())
	}
	return nil
}

func normalizeRule(r models.ScoringRule) models.ScoringRule {
	if jt, ok := models.ParseJerseyType(string(r.JerseyType)); ok {
		r.JerseyType = jt
	}
	return r
}
