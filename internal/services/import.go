package services

import (
	"context"

	"github.com/interpolis/tourpoule/internal/errors"
	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/repository"
	"github.com/interpolis/tourpoule/internal/stageimport"
)

// ImportService validates and commits stage results and final standings
type ImportService struct {
	log      logger.Logger
	repo     repository.FullRepository
	locks    *ParticipantLocks
	notifier ChangeNotifier
}

// NewImportService creates a new ImportService
func NewImportService(log logger.Logger, repo repository.FullRepository, locks *ParticipantLocks, notifier ChangeNotifier) *ImportService {
	return &ImportService{log: log, repo: repo, locks: locks, notifier: notifierOrNop(notifier)}
}

// ValidateResult is the reply of Validate
type ValidateResult struct {
	OK bool `json:"ok"`
	stageimport.Validation
}

// CommitRequest carries the reviewed results of a stage
type CommitRequest struct {
	Results []models.StageResult  `json:"results"`
	Jerseys []models.JerseyWearer `json:"jerseys"`
}

// FinalRequest carries the final classification and jersey winners
type FinalRequest struct {
	Positions []models.FinalPosition `json:"positions"`
	Jerseys   []models.FinalJersey   `json:"jerseys"`
}

// CommitResult is the reply of a commit
type CommitResult struct {
	OK               bool `json:"ok"`
	ReplacedExisting bool `json:"replacedExisting"`
	ExistingCount    int  `json:"existingCount"`
}

// Validate parses pasted result text against the rider list. Per-line
// problems are reported in the result, not as an error.
func (s *ImportService) Validate(ctx context.Context, stageID int, text string) (*ValidateResult, error) {
	if _, err := s.repo.GetStage(ctx, stageID); err != nil {
		return nil, mapRepoErr(err, "stage", stageID)
	}
	riders, err := s.repo.ListRiders(ctx)
	if err != nil {
		return nil, err
	}
	v := stageimport.Parse(text, stageimport.NewMatcher(riders))
	s.log.Debug("stage results validated", "stage_id", stageID, "matched", len(v.Results), "errors", len(v.Errors))
	return &ValidateResult{OK: true, Validation: v}, nil
}

// Commit replaces the stage's results and jerseys, withdraws riders that
// did not finish, promotes reserves and rescores the stage, all in one
// transaction.
func (s *ImportService) Commit(ctx context.Context, stageID int, req CommitRequest) (*CommitResult, error) {
	stage, err := s.repo.GetStage(ctx, stageID)
	if err != nil {
		return nil, mapRepoErr(err, "stage", stageID)
	}
	if stage.Cancelled {
		return nil, ErrStageCancelled
	}
	if len(req.Results) == 0 {
		return nil, ErrNoResults
	}
	if err := s.checkResults(ctx, req); err != nil {
		return nil, err
	}

	ids, err := participantIDs(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	unlock, err := s.locks.Lock(ctx, ids...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	results := make([]models.StageResult, len(req.Results))
	for i, r := range req.Results {
		r.StageID = stageID
		results[i] = r
	}
	jerseys := make([]models.JerseyWearer, len(req.Jerseys))
	for i, j := range req.Jerseys {
		j.StageID = stageID
		j.JerseyType, _ = models.ParseJerseyType(string(j.JerseyType))
		jerseys[i] = j
	}

	result := &CommitResult{OK: true}
	var activated, withdrawn int
	err = s.repo.WithTx(ctx, func(tx repository.FullRepository) error {
		activated, withdrawn = 0, 0
		existing, err := tx.ReplaceStageResults(ctx, stageID, results, jerseys)
		if err != nil {
			return mapRepoErr(err, "result", stageID)
		}
		result.ExistingCount = existing
		result.ReplacedExisting = existing > 0

		latest, err := latestStage(ctx, tx)
		if err != nil {
			return err
		}
		// Only the newest stage withdraws riders; re-committing an older
		// stage must not reach back past later results.
		var withdrawFor *models.Stage
		activeFrom := stage.Sequence + 1
		if latest != nil && latest.Sequence > stage.Sequence {
			activeFrom = latest.Sequence + 1
		} else {
			withdrawFor = stage
		}
		finished := make(map[int]bool, len(results))
		for _, r := range results {
			if r.Finished() {
				finished[r.RiderID] = true
			}
		}

		current, err := participantIDs(ctx, tx)
		if err != nil {
			return err
		}
		for _, id := range current {
			team, err := activateTeam(ctx, tx, id, withdrawFor, finished, activeFrom)
			if err != nil {
				return err
			}
			activated += team.ActivatedCount
			withdrawn += team.DeactivatedCount
		}

		if err := scoreStage(ctx, tx, *stage); err != nil {
			return err
		}
		_, err = scoreFinal(ctx, tx)
		return err
	})
	if err != nil {
		s.log.Error("stage commit failed", "stage", stage.Sequence, "error", err)
		return nil, err
	}

	s.log.Info("stage results committed",
		"stage", stage.Sequence,
		"results", len(results),
		"replaced", result.ExistingCount,
		"withdrawn", withdrawn,
		"reserves_activated", activated,
	)
	s.notifier.Changed(ctx)
	return result, nil
}

// checkResults enforces the commit preconditions that do not need a
// transaction.
func (s *ImportService) checkResults(ctx context.Context, req CommitRequest) error {
	riders, err := s.repo.ListRiders(ctx)
	if err != nil {
		return err
	}
	known := make(map[int]bool, len(riders))
	for _, r := range riders {
		known[r.ID] = true
	}

	seenRider := make(map[int]bool)
	seenPosition := make(map[int]bool)
	for _, r := range req.Results {
		if !known[r.RiderID] {
			return errors.Preconditionf("rider %d does not exist", r.RiderID)
		}
		if seenRider[r.RiderID] {
			return errors.Validationf("rider %d appears more than once", r.RiderID)
		}
		seenRider[r.RiderID] = true
		if r.Position < 0 {
			return errors.Validationf("rider %d has a negative position", r.RiderID)
		}
		if r.Position > 0 {
			if seenPosition[r.Position] {
				return errors.Validationf("position %d appears more than once", r.Position)
			}
			seenPosition[r.Position] = true
		}
		if r.TimeSeconds != nil && *r.TimeSeconds <= 0 {
			return errors.Validationf("rider %d has time %d; use null for riders that did not finish", r.RiderID, *r.TimeSeconds)
		}
	}

	return checkJerseys(len(req.Jerseys), func(i int) (models.JerseyType, int) {
		return req.Jerseys[i].JerseyType, req.Jerseys[i].RiderID
	}, known)
}

// checkJerseys requires exactly one existing rider per jersey type.
func checkJerseys(n int, at func(int) (models.JerseyType, int), known map[int]bool) error {
	seen := make(map[models.JerseyType]bool)
	for i := 0; i < n; i++ {
		jt, riderID := at(i)
		parsed, ok := models.ParseJerseyType(string(jt))
		if !ok {
			return errors.Validationf("unknown jersey %q", jt)
		}
		if seen[parsed] {
			return errors.Preconditionf("jersey %s is assigned more than once", parsed)
		}
		seen[parsed] = true
		if !known[riderID] {
			return errors.Preconditionf("rider %d wearing %s does not exist", riderID, parsed)
		}
	}
	for _, jt := range models.JerseyTypes {
		if !seen[jt] {
			return errors.Preconditionf("jersey %s has no rider", jt)
		}
	}
	return nil
}

// CommitFinal replaces the final classification and rescores the final
// bonuses.
func (s *ImportService) CommitFinal(ctx context.Context, req FinalRequest) (*CommitResult, error) {
	if len(req.Positions) == 0 {
		return nil, ErrNoResults
	}
	riders, err := s.repo.ListRiders(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[int]bool, len(riders))
	for _, r := range riders {
		known[r.ID] = true
	}
	seenRider := make(map[int]bool)
	seenPosition := make(map[int]bool)
	for _, fp := range req.Positions {
		if !known[fp.RiderID] {
			return nil, errors.Preconditionf("rider %d does not exist", fp.RiderID)
		}
		if fp.Position < 1 {
			return nil, errors.Validationf("final position must be at least 1, got %d", fp.Position)
		}
		if seenRider[fp.RiderID] || seenPosition[fp.Position] {
			return nil, errors.Validationf("duplicate final position %d for rider %d", fp.Position, fp.RiderID)
		}
		seenRider[fp.RiderID] = true
		seenPosition[fp.Position] = true
	}
	if err := checkJerseys(len(req.Jerseys), func(i int) (models.JerseyType, int) {
		return req.Jerseys[i].JerseyType, req.Jerseys[i].RiderID
	}, known); err != nil {
		return nil, err
	}

	jerseys := make([]models.FinalJersey, len(req.Jerseys))
	for i, j := range req.Jerseys {
		j.JerseyType, _ = models.ParseJerseyType(string(j.JerseyType))
		jerseys[i] = j
	}

	result := &CommitResult{OK: true}
	var applied bool
	err = s.repo.WithTx(ctx, func(tx repository.FullRepository) error {
		existing, err := tx.ReplaceFinalStandings(ctx, req.Positions, jerseys)
		if err != nil {
			return mapRepoErr(err, "final standing", "")
		}
		result.ExistingCount = existing
		result.ReplacedExisting = existing > 0
		applied, err = scoreFinal(ctx, tx)
		return err
	})
	if err != nil {
		s.log.Error("final standings commit failed", "error", err)
		return nil, err
	}

	s.log.Info("final standings committed", "positions", len(req.Positions), "bonuses_applied", applied)
	s.notifier.Changed(ctx)
	return result, nil
}

