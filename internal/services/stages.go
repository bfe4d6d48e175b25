package services

import (
	"context"
	"strings"
	"time"

	"github.com/interpolis/tourpoule/internal/errors"
	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/repository"
)

// StageService handles stage CRUD and the effect of stage flags on points
type StageService struct {
	log      logger.Logger
	repo     repository.FullRepository
	notifier ChangeNotifier
}

// NewStageService creates a new StageService
func NewStageService(log logger.Logger, repo repository.FullRepository, notifier ChangeNotifier) *StageService {
	return &StageService{log: log, repo: repo, notifier: notifierOrNop(notifier)}
}

// ListStages returns all stages in sequence order
func (s *StageService) ListStages(ctx context.Context) ([]models.Stage, error) {
	return s.repo.ListStages(ctx)
}

// GetStage returns a stage by ID
func (s *StageService) GetStage(ctx context.Context, id int) (*models.Stage, error) {
	stage, err := s.repo.GetStage(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "stage", id)
	}
	return stage, nil
}

// StageResults returns the committed results and jerseys of a stage
func (s *StageService) StageResults(ctx context.Context, id int) ([]models.StageResult, []models.JerseyWearer, error) {
	if _, err := s.GetStage(ctx, id); err != nil {
		return nil, nil, err
	}
	results, err := s.repo.ListStageResults(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	jerseys, err := s.repo.ListJerseyWearers(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return results, jerseys, nil
}

func validateStage(st *models.Stage) error {
	st.StartLocation = strings.TrimSpace(st.StartLocation)
	st.FinishLocation = strings.TrimSpace(st.FinishLocation)
	st.Date = strings.TrimSpace(st.Date)
	if st.Sequence < 1 {
		return errors.Validationf("stage sequence must be at least 1, got %d", st.Sequence)
	}
	if st.Date != "" {
		if _, err := time.Parse("2006-01-02", st.Date); err != nil {
			return errors.Validationf("date %q is not YYYY-MM-DD", st.Date)
		}
	}
	if st.DistanceKM < 0 {
		return errors.Validation("distance cannot be negative")
	}
	if st.Neutralized && st.Cancelled {
		return errors.Validation("a stage cannot be both neutralized and cancelled")
	}
	return nil
}

// checkSingleFinal rejects a second stage flagged final.
func checkSingleFinal(ctx context.Context, repo repository.StageRepository, st models.Stage) error {
	if !st.IsFinal {
		return nil
	}
	stages, err := repo.ListStages(ctx)
	if err != nil {
		return err
	}
	for _, other := range stages {
		if other.IsFinal && other.ID != st.ID {
			return errors.Conflictf("stage %d is already the final stage", other.Sequence)
		}
	}
	return nil
}

// CreateStage validates and stores a new stage
func (s *StageService) CreateStage(ctx context.Context, stage models.Stage) (*models.Stage, error) {
	if err := validateStage(&stage); err != nil {
		return nil, err
	}
	if err := checkSingleFinal(ctx, s.repo, stage); err != nil {
		return nil, err
	}
	id, err := s.repo.CreateStage(ctx, stage)
	if err != nil {
		return nil, mapRepoErr(err, "stage", stage.Sequence)
	}
	stage.ID = id
	s.log.Info("stage created", "stage_id", id, "sequence", stage.Sequence)
	return &stage, nil
}

// UpdateStage replaces a stage. Changing the neutralized, cancelled or final
// flags of a stage with results rescores it.
func (s *StageService) UpdateStage(ctx context.Context, stage models.Stage) error {
	if err := validateStage(&stage); err != nil {
		return err
	}
	rescored := false
	err := s.repo.WithTx(ctx, func(tx repository.FullRepository) error {
		current, err := tx.GetStage(ctx, stage.ID)
		if err != nil {
			return mapRepoErr(err, "stage", stage.ID)
		}
		if err := checkSingleFinal(ctx, tx, stage); err != nil {
			return err
		}
		if err := tx.UpdateStage(ctx, stage); err != nil {
			return mapRepoErr(err, "stage", stage.ID)
		}
		if current.Sequence == stage.Sequence && current.Neutralized == stage.Neutralized &&
			current.Cancelled == stage.Cancelled && current.IsFinal == stage.IsFinal {
			return nil
		}
		n, err := tx.CountStageResults(ctx, stage.ID)
		if err != nil || n == 0 {
			return err
		}
		rescored = true
		if err := scoreStage(ctx, tx, stage); err != nil {
			return err
		}
		_, err = scoreFinal(ctx, tx)
		return err
	})
	if err != nil {
		return err
	}
	if rescored {
		s.log.Info("stage flags changed, points rescored", "stage", stage.Sequence,
			"neutralized", stage.Neutralized, "cancelled", stage.Cancelled, "final", stage.IsFinal)
		s.notifier.Changed(ctx)
	}
	return nil
}

// DeleteStage removes a stage without results
func (s *StageService) DeleteStage(ctx context.Context, id int) error {
	n, err := s.repo.CountStageResults(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return errors.Conflictf("stage %d has results and cannot be deleted", id)
	}
	if err := s.repo.DeleteStage(ctx, id); err != nil {
		return mapRepoErr(err, "stage", id)
	}
	s.log.Info("stage deleted", "stage_id", id)
	return nil
}
