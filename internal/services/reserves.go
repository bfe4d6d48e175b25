package services

import (
	"context"
	stderrors "errors"
	"sort"

	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/repository"
	"github.com/interpolis/tourpoule/internal/reserves"
)

// ReserveService runs reserve activation on demand
type ReserveService struct {
	log      logger.Logger
	repo     repository.FullRepository
	locks    *ParticipantLocks
	notifier ChangeNotifier
}

// NewReserveService creates a new ReserveService
func NewReserveService(log logger.Logger, repo repository.FullRepository, locks *ParticipantLocks, notifier ChangeNotifier) *ReserveService {
	return &ReserveService{log: log, repo: repo, locks: locks, notifier: notifierOrNop(notifier)}
}

// ActivateRequest selects one participant (nil for all). Force also
// withdraws counting riders that did not finish the latest stage.
type ActivateRequest struct {
	ParticipantID *int `json:"participantId"`
	Force         bool `json:"force"`
}

// TeamActivation is the outcome for one participant
type TeamActivation struct {
	ParticipantID    int `json:"participantId"`
	ActivatedCount   int `json:"activatedCount"`
	DeactivatedCount int `json:"deactivatedCount"`
}

// ActivateResult is the reply of Activate
type ActivateResult struct {
	OK                     bool             `json:"ok"`
	Teams                  []TeamActivation `json:"teams"`
	TotalReservesActivated int              `json:"totalReservesActivated"`
}

// Activate fills empty counting slots from reserves. Promoted riders count
// from the stage after the latest stage with results.
func (s *ReserveService) Activate(ctx context.Context, req ActivateRequest) (*ActivateResult, error) {
	var ids []int
	if req.ParticipantID != nil {
		if _, err := s.repo.GetParticipant(ctx, *req.ParticipantID); err != nil {
			return nil, mapRepoErr(err, "participant", *req.ParticipantID)
		}
		ids = []int{*req.ParticipantID}
	} else {
		var err error
		if ids, err = participantIDs(ctx, s.repo); err != nil {
			return nil, err
		}
	}

	unlock, err := s.locks.Lock(ctx, ids...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	result := &ActivateResult{OK: true, Teams: []TeamActivation{}}
	err = s.repo.WithTx(ctx, func(tx repository.FullRepository) error {
		result.Teams = result.Teams[:0]
		result.TotalReservesActivated = 0

		latest, err := latestStage(ctx, tx)
		if err != nil {
			return err
		}
		activeFrom := 1
		var withdrawFor *models.Stage
		var finished map[int]bool
		if latest != nil {
			activeFrom = latest.Sequence + 1
			if req.Force {
				withdrawFor = latest
				if finished, err = finishedRiders(ctx, tx, latest.ID); err != nil {
					return err
				}
			}
		}

		teams := ids
		if req.ParticipantID == nil {
			if teams, err = participantIDs(ctx, tx); err != nil {
				return err
			}
		}
		withdrew := false
		for _, id := range teams {
			team, err := activateTeam(ctx, tx, id, withdrawFor, finished, activeFrom)
			if err != nil {
				return err
			}
			withdrew = withdrew || team.DeactivatedCount > 0
			result.Teams = append(result.Teams, team)
			result.TotalReservesActivated += team.ActivatedCount
		}
		// Withdrawals shrink the latest stage's counting window.
		if withdrew {
			return scoreStage(ctx, tx, *latest)
		}
		return nil
	})
	if err != nil {
		s.log.Error("reserve activation failed", "error", err)
		return nil, err
	}

	s.log.Info("reserves activated", "teams", len(result.Teams), "activated", result.TotalReservesActivated, "force", req.Force)
	if result.TotalReservesActivated > 0 || req.Force {
		s.notifier.Changed(ctx)
	}
	return result, nil
}

// latestStage returns the latest stage with results, or nil before the
// first commit.
func latestStage(ctx context.Context, repo repository.StageRepository) (*models.Stage, error) {
	stage, err := repo.LatestResultStage(ctx)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return stage, err
}

func finishedRiders(ctx context.Context, repo repository.ResultRepository, stageID int) (map[int]bool, error) {
	results, err := repo.ListStageResults(ctx, stageID)
	if err != nil {
		return nil, err
	}
	finished := make(map[int]bool, len(results))
	for _, r := range results {
		if r.Finished() {
			finished[r.RiderID] = true
		}
	}
	return finished, nil
}

// participantIDs lists every participant inside tx, in id order. It can
// include participants registered after the caller took the in-process
// locks; activateTeam's row lock still serialises those against roster
// edits.
func participantIDs(ctx context.Context, tx repository.ParticipantRepository) ([]int, error) {
	participants, err := tx.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ID)
	}
	sort.Ints(ids)
	return ids, nil
}

// activateTeam locks the participant row, plans and persists withdrawals and
// promotions. It must run inside a transaction.
func activateTeam(ctx context.Context, tx repository.FullRepository, participantID int, stage *models.Stage, finished map[int]bool, activeFrom int) (TeamActivation, error) {
	team := TeamActivation{ParticipantID: participantID}
	if err := tx.LockParticipant(ctx, participantID); err != nil {
		return team, mapRepoErr(err, "participant", participantID)
	}
	roster, err := tx.ListTeamRiders(ctx, participantID)
	if err != nil {
		return team, err
	}
	plan, err := reserves.PlanFor(roster, stage, finished, activeFrom)
	if err != nil {
		return team, err
	}
	// Re-check the cap against the stored roster before writing.
	updated, err := reserves.Apply(roster, plan.Changes())
	if err != nil {
		return team, err
	}
	changed := make(map[int]bool)
	for _, c := range plan.Changes() {
		changed[c.RiderID] = true
	}
	for _, tr := range updated {
		if !changed[tr.RiderID] {
			continue
		}
		if err := tx.UpdateTeamRiderState(ctx, tr); err != nil {
			return team, err
		}
	}
	team.ActivatedCount = len(plan.Promoted)
	team.DeactivatedCount = len(plan.Withdrawn)
	return team, nil
}
