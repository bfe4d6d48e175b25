package services

import (
	"context"
	"fmt"

	"github.com/interpolis/tourpoule/internal/errors"
	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/repository"
	"github.com/interpolis/tourpoule/internal/scoring"
)

// ScoringRepository is what stage and final scoring read and write.
type ScoringRepository interface {
	repository.StageRepository
	repository.ResultRepository
	repository.ParticipantRepository
	repository.TeamRepository
	repository.RuleRepository
	repository.PointsRepository
}

// ScoringService recomputes derived points
type ScoringService struct {
	log      logger.Logger
	repo     repository.FullRepository
	notifier ChangeNotifier
}

// NewScoringService creates a new ScoringService
func NewScoringService(log logger.Logger, repo repository.FullRepository, notifier ChangeNotifier) *ScoringService {
	return &ScoringService{log: log, repo: repo, notifier: notifierOrNop(notifier)}
}

// RecomputeResult summarises a full recompute
type RecomputeResult struct {
	OK           bool `json:"ok"`
	StagesScored int  `json:"stagesScored"`
	FinalApplied bool `json:"finalApplied"`
}

// RecomputeStage rescores one stage
func (s *ScoringService) RecomputeStage(ctx context.Context, stageID int) error {
	err := s.repo.WithTx(ctx, func(tx repository.FullRepository) error {
		stage, err := tx.GetStage(ctx, stageID)
		if err != nil {
			return mapRepoErr(err, "stage", stageID)
		}
		return scoreStage(ctx, tx, *stage)
	})
	if err != nil {
		return err
	}
	s.notifier.Changed(ctx)
	return nil
}

// RecomputeAll deletes every derived point and rescores all stages with
// results, followed by the final bonuses.
func (s *ScoringService) RecomputeAll(ctx context.Context) (*RecomputeResult, error) {
	var result *RecomputeResult
	err := s.repo.WithTx(ctx, func(tx repository.FullRepository) error {
		var err error
		result, err = rescoreAll(ctx, tx)
		return err
	})
	if err != nil {
		s.log.Error("recompute failed", "error", err)
		return nil, err
	}
	s.log.Info("points recomputed", "stages", result.StagesScored, "final", result.FinalApplied)
	s.notifier.Changed(ctx)
	return result, nil
}

// RecomputeFinal rescores the final bonuses
func (s *ScoringService) RecomputeFinal(ctx context.Context) (bool, error) {
	var applied bool
	err := s.repo.WithTx(ctx, func(tx repository.FullRepository) error {
		var err error
		applied, err = scoreFinal(ctx, tx)
		return err
	})
	if err != nil {
		return false, err
	}
	s.notifier.Changed(ctx)
	return applied, nil
}

// rescoreAll clears every derived point and scores all stages with results,
// followed by the final bonuses. It must run inside a transaction.
func rescoreAll(ctx context.Context, tx ScoringRepository) (*RecomputeResult, error) {
	result := &RecomputeResult{OK: true}
	if err := tx.ClearPoints(ctx); err != nil {
		return nil, err
	}
	stages, err := tx.ListScoredStages(ctx)
	if err != nil {
		return nil, err
	}
	for _, stage := range stages {
		if err := scoreStage(ctx, tx, stage); err != nil {
			return nil, fmt.Errorf("scoring stage %d: %w", stage.Sequence, err)
		}
	}
	result.StagesScored = len(stages)
	if result.FinalApplied, err = scoreFinal(ctx, tx); err != nil {
		return nil, err
	}
	return result, nil
}

func loadRuleSet(ctx context.Context, repo repository.RuleRepository) (*scoring.RuleSet, error) {
	rows, err := repo.ListRules(ctx)
	if err != nil {
		return nil, err
	}
	rs, err := scoring.NewRuleSet(rows)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "stored scoring rules are invalid")
	}
	return rs, nil
}

// loadTeams returns every participant's roster, including participants
// without riders so each gets a points row.
func loadTeams(ctx context.Context, repo ScoringRepository) ([]scoring.Team, error) {
	participants, err := repo.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}
	all, err := repo.ListAllTeamRiders(ctx)
	if err != nil {
		return nil, err
	}
	byParticipant := make(map[int][]models.TeamRider)
	for _, tr := range all {
		byParticipant[tr.ParticipantID] = append(byParticipant[tr.ParticipantID], tr)
	}
	teams := make([]scoring.Team, 0, len(participants))
	for _, p := range participants {
		teams = append(teams, scoring.Team{ParticipantID: p.ID, Riders: byParticipant[p.ID]})
	}
	return teams, nil
}

// scoreStage replaces the stage's points. Cancelled stages and stages
// without results end up with no points at all.
func scoreStage(ctx context.Context, repo ScoringRepository, stage models.Stage) error {
	results, err := repo.ListStageResults(ctx, stage.ID)
	if err != nil {
		return err
	}
	if stage.Cancelled || len(results) == 0 {
		return repo.ReplaceStagePoints(ctx, stage.ID, nil, nil)
	}
	jerseys, err := repo.ListJerseyWearers(ctx, stage.ID)
	if err != nil {
		return err
	}
	rules, err := loadRuleSet(ctx, repo)
	if err != nil {
		return err
	}
	teams, err := loadTeams(ctx, repo)
	if err != nil {
		return err
	}

	scores := rules.ScoreStage(scoring.StageInput{Stage: stage, Results: results, Jerseys: jerseys}, teams)
	totals := make([]models.StagePoints, 0, len(scores))
	var breakdown []models.RiderPoints
	for _, sc := range scores {
		totals = append(totals, models.StagePoints{ParticipantID: sc.ParticipantID, StageID: stage.ID, Points: sc.Points})
		breakdown = append(breakdown, sc.Breakdown...)
	}
	return repo.ReplaceStagePoints(ctx, stage.ID, totals, breakdown)
}

// scoreFinal replaces the final bonuses. It reports whether any were
// applied: that needs a stage flagged final with results and a committed
// final classification.
func scoreFinal(ctx context.Context, repo ScoringRepository) (bool, error) {
	positions, err := repo.ListFinalPositions(ctx)
	if err != nil {
		return false, err
	}
	jerseys, err := repo.ListFinalJerseys(ctx)
	if err != nil {
		return false, err
	}
	final, err := finalStage(ctx, repo)
	if err != nil {
		return false, err
	}
	if final == nil || (len(positions) == 0 && len(jerseys) == 0) {
		return false, repo.ReplaceFinalPoints(ctx, nil)
	}

	rules, err := loadRuleSet(ctx, repo)
	if err != nil {
		return false, err
	}
	teams, err := loadTeams(ctx, repo)
	if err != nil {
		return false, err
	}
	var breakdown []models.RiderPoints
	for _, sc := range rules.ScoreFinal(*final, scoring.FinalInput{Positions: positions, Jerseys: jerseys}, teams) {
		breakdown = append(breakdown, sc.Breakdown...)
	}
	return true, repo.ReplaceFinalPoints(ctx, breakdown)
}

// finalStage returns the scored stage flagged final, or nil.
func finalStage(ctx context.Context, repo repository.StageRepository) (*models.Stage, error) {
	stages, err := repo.ListScoredStages(ctx)
	if err != nil {
		return nil, err
	}
	for i := range stages {
		if stages[i].IsFinal {
			return &stages[i], nil
		}
	}
	return nil, nil
}
