package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/interpolis/tourpoule/internal/errors"
	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/repository"
	"github.com/interpolis/tourpoule/internal/repository/mock"
	"github.com/interpolis/tourpoule/internal/services"
	"github.com/interpolis/tourpoule/internal/testutil"
)

func TestImportService_Validate(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	for _, r := range []models.Rider{
		{FirstName: "Tadej", LastName: "Pogačar", Team: "UAE Team Emirates"},
		{FirstName: "Remco", LastName: "Evenepoel", Team: "Soudal Quick-Step"},
	} {
		if _, err := s.repo.CreateRider(ctx, r); err != nil {
			t.Fatalf("CreateRider failed: %v", err)
		}
	}
	stageID := testutil.SeedStage(t, s.repo, 1)

	res, err := s.imports.Validate(ctx, stageID, "1 Tadej Pogacar 3:53:11\n2 Remco Evenepoel + 0:12")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !res.OK || !res.Valid || len(res.Results) != 2 {
		t.Fatalf("expected 2 valid results, got %+v", res)
	}

	res, err = s.imports.Validate(ctx, stageID, "1 Tadej Pogacar 3:53:11\n2 Mark Cavendish 0:05")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if res.Valid || len(res.Errors) != 1 || res.Errors[0].Line != 2 {
		t.Errorf("expected an error on line 2, got %+v", res.Errors)
	}

	if _, err := s.imports.Validate(ctx, 999, "1 Tadej Pogacar 3:53:11"); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected not found for unknown stage, got %v", err)
	}
}

func TestImportService_CommitScoresStage(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 4)
	stageID := testutil.SeedStage(t, s.repo, 1)
	a := testutil.SeedParticipant(t, s.repo, "Alpha")
	b := testutil.SeedParticipant(t, s.repo, "Bravo")
	testutil.SeedRoster(t, s.repo, a, riders[:2], nil)
	testutil.SeedRoster(t, s.repo, b, riders[2:3], nil)

	res, err := s.imports.Commit(ctx, stageID, services.CommitRequest{
		Results: []models.StageResult{
			finished(stageID, riders[0], 1, 14000),
			finished(stageID, riders[1], 2, 14000),
			finished(stageID, riders[2], 3, 14012),
			finished(stageID, riders[3], 4, 14100),
		},
		Jerseys: allJerseys(riders[0]),
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if res.ReplacedExisting || res.ExistingCount != 0 {
		t.Errorf("first commit should not replace anything, got %+v", res)
	}

	// 50 + 40 for positions, 10 + 6 + 6 + 4 for the jerseys.
	if got := stagePoints(t, s.repo, stageID, a); got != 116 {
		t.Errorf("Alpha stage points = %d, want 116", got)
	}
	if got := stagePoints(t, s.repo, stageID, b); got != 32 {
		t.Errorf("Bravo stage points = %d, want 32", got)
	}
	if s.notifier.count() != 1 {
		t.Errorf("expected one change notification, got %d", s.notifier.count())
	}
}

func TestImportService_CommitTwiceReplaces(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 3)
	stageID := testutil.SeedStage(t, s.repo, 1)
	a := testutil.SeedParticipant(t, s.repo, "Alpha")
	b := testutil.SeedParticipant(t, s.repo, "Bravo")
	testutil.SeedRoster(t, s.repo, a, riders[:1], nil)
	testutil.SeedRoster(t, s.repo, b, riders[2:3], nil)

	first := services.CommitRequest{
		Results: []models.StageResult{
			finished(stageID, riders[0], 1, 14000),
			finished(stageID, riders[1], 2, 14005),
			finished(stageID, riders[2], 3, 14010),
		},
		Jerseys: allJerseys(riders[0]),
	}
	if _, err := s.imports.Commit(ctx, stageID, first); err != nil {
		t.Fatalf("first Commit failed: %v", err)
	}

	second := services.CommitRequest{
		Results: []models.StageResult{
			finished(stageID, riders[2], 1, 14000),
			finished(stageID, riders[0], 2, 14003),
		},
		Jerseys: allJerseys(riders[2]),
	}
	res, err := s.imports.Commit(ctx, stageID, second)
	if err != nil {
		t.Fatalf("second Commit failed: %v", err)
	}
	if !res.ReplacedExisting || res.ExistingCount != 3 {
		t.Errorf("expected 3 replaced rows, got %+v", res)
	}

	results, err := s.repo.ListStageResults(ctx, stageID)
	if err != nil {
		t.Fatalf("ListStageResults failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected only the second commit's 2 results, got %d", len(results))
	}
	if got := stagePoints(t, s.repo, stageID, a); got != 40 {
		t.Errorf("Alpha stage points = %d, want 40", got)
	}
	if got := stagePoints(t, s.repo, stageID, b); got != 76 {
		t.Errorf("Bravo stage points = %d, want 76", got)
	}
}

func TestImportService_CommitWithdrawsAndPromotes(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 3)
	stageID := testutil.SeedStage(t, s.repo, 1)
	testutil.SeedStage(t, s.repo, 2)
	p := testutil.SeedParticipant(t, s.repo, "Alpha")
	testutil.SeedRoster(t, s.repo, p, riders[:2], riders[2:])

	_, err := s.imports.Commit(ctx, stageID, services.CommitRequest{
		Results: []models.StageResult{
			finished(stageID, riders[0], 1, 14000),
			finished(stageID, riders[2], 2, 14000),
			dnf(stageID, riders[1]),
		},
		Jerseys: allJerseys(riders[0]),
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	roster := rosterByRider(t, s.repo, p)
	out := roster[riders[1]]
	if out.State != models.StateInactive || out.InactiveFrom == nil || *out.InactiveFrom != 1 {
		t.Errorf("DNF rider = %+v, want inactive from stage 1", out)
	}
	in := roster[riders[2]]
	if in.State != models.StateActiveReserve || in.ActiveFrom != 2 {
		t.Errorf("reserve = %+v, want active reserve from stage 2", in)
	}

	// The DNF rider scores nothing and the promoted reserve does not count
	// for the stage it was promoted after.
	if got := stagePoints(t, s.repo, stageID, p); got != 76 {
		t.Errorf("stage points = %d, want 76", got)
	}
}

// lateRegistration runs register right after the first participant
// listing, as a registration landing mid-commit would.
type lateRegistration struct {
	repository.FullRepository
	once     sync.Once
	register func()
}

func (l *lateRegistration) ListParticipants(ctx context.Context) ([]models.Participant, error) {
	participants, err := l.FullRepository.ListParticipants(ctx)
	l.once.Do(l.register)
	return participants, err
}

func TestImportService_CommitCoversLateRegistration(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, repo, 3)
	stageID := testutil.SeedStage(t, repo, 1)
	testutil.SeedParticipant(t, repo, "Alpha")

	var late int
	wrapped := &lateRegistration{FullRepository: repo, register: func() {
		late = testutil.SeedParticipant(t, repo, "Late")
		testutil.SeedRoster(t, repo, late, riders[:2], riders[2:])
	}}
	imports := services.NewImportService(logger.NewDiscard(), wrapped, services.NewParticipantLocks(time.Second), nil)

	if _, err := imports.Commit(ctx, stageID, services.CommitRequest{
		Results: []models.StageResult{finished(stageID, riders[0], 1, 14000), dnf(stageID, riders[1])},
		Jerseys: allJerseys(riders[0]),
	}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if late == 0 {
		t.Fatal("late participant was not registered")
	}

	roster := rosterByRider(t, repo, late)
	if tr := roster[riders[1]]; tr.State != models.StateInactive {
		t.Errorf("late team's DNF rider = %+v, want inactive", tr)
	}
	if tr := roster[riders[2]]; tr.State != models.StateActiveReserve || tr.ActiveFrom != 2 {
		t.Errorf("late team's reserve = %+v, want active reserve from stage 2", tr)
	}
	if got := stagePoints(t, repo, stageID, late); got != 76 {
		t.Errorf("late team stage points = %d, want 76", got)
	}
}

func TestImportService_OlderStageDoesNotWithdraw(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 2)
	stage1 := testutil.SeedStage(t, s.repo, 1)
	stage2 := testutil.SeedStage(t, s.repo, 2)
	p := testutil.SeedParticipant(t, s.repo, "Alpha")
	testutil.SeedRoster(t, s.repo, p, riders, nil)

	for _, id := range []int{stage1, stage2} {
		_, err := s.imports.Commit(ctx, id, services.CommitRequest{
			Results: []models.StageResult{finished(id, riders[0], 1, 14000), finished(id, riders[1], 2, 14000)},
			Jerseys: allJerseys(riders[0]),
		})
		if err != nil {
			t.Fatalf("Commit stage %d failed: %v", id, err)
		}
	}

	_, err := s.imports.Commit(ctx, stage1, services.CommitRequest{
		Results: []models.StageResult{finished(stage1, riders[0], 1, 14000), dnf(stage1, riders[1])},
		Jerseys: allJerseys(riders[0]),
	})
	if err != nil {
		t.Fatalf("re-commit failed: %v", err)
	}

	if tr := rosterByRider(t, s.repo, p)[riders[1]]; tr.State != models.StateActiveMain {
		t.Errorf("rider should stay active after an older stage is corrected, got %s", tr.State)
	}
	if got := stagePoints(t, s.repo, stage1, p); got != 76 {
		t.Errorf("stage 1 points = %d, want 76", got)
	}
	if got := stagePoints(t, s.repo, stage2, p); got != 116 {
		t.Errorf("stage 2 points = %d, want 116", got)
	}
}

func TestImportService_CommitPreconditions(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 2)
	stageID := testutil.SeedStage(t, s.repo, 1)
	cancelled, err := s.repo.CreateStage(ctx, models.Stage{Sequence: 2, Cancelled: true})
	if err != nil {
		t.Fatalf("CreateStage failed: %v", err)
	}

	ok := []models.StageResult{finished(stageID, riders[0], 1, 100)}
	tests := []struct {
		name    string
		stageID int
		req     services.CommitRequest
		kind    apperrors.Kind
	}{
		{"unknown stage", 999, services.CommitRequest{Results: ok, Jerseys: allJerseys(riders[0])}, apperrors.ErrNotFound},
		{"cancelled stage", cancelled, services.CommitRequest{Results: ok, Jerseys: allJerseys(riders[0])}, apperrors.ErrPrecondition},
		{"empty results", stageID, services.CommitRequest{Jerseys: allJerseys(riders[0])}, apperrors.ErrPrecondition},
		{"unknown rider", stageID, services.CommitRequest{
			Results: []models.StageResult{finished(stageID, 999, 1, 100)},
			Jerseys: allJerseys(riders[0]),
		}, apperrors.ErrPrecondition},
		{"duplicate rider", stageID, services.CommitRequest{
			Results: []models.StageResult{finished(stageID, riders[0], 1, 100), finished(stageID, riders[0], 2, 100)},
			Jerseys: allJerseys(riders[0]),
		}, apperrors.ErrValidation},
		{"duplicate position", stageID, services.CommitRequest{
			Results: []models.StageResult{finished(stageID, riders[0], 1, 100), finished(stageID, riders[1], 1, 100)},
			Jerseys: allJerseys(riders[0]),
		}, apperrors.ErrValidation},
		{"zero time", stageID, services.CommitRequest{
			Results: []models.StageResult{finished(stageID, riders[0], 1, 0)},
			Jerseys: allJerseys(riders[0]),
		}, apperrors.ErrValidation},
		{"missing jersey", stageID, services.CommitRequest{Results: ok, Jerseys: allJerseys(riders[0])[:3]}, apperrors.ErrPrecondition},
		{"jersey twice", stageID, services.CommitRequest{Results: ok, Jerseys: append(allJerseys(riders[0]), models.JerseyWearer{JerseyType: models.JerseyYellow, RiderID: riders[1]})}, apperrors.ErrPrecondition},
		{"unknown jersey", stageID, services.CommitRequest{Results: ok, Jerseys: []models.JerseyWearer{{JerseyType: "roze", RiderID: riders[0]}}}, apperrors.ErrValidation},
		{"jersey on unknown rider", stageID, services.CommitRequest{Results: ok, Jerseys: jerseysOf(999, riders[0], riders[0], riders[0])}, apperrors.ErrPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.imports.Commit(ctx, tt.stageID, tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if kind := apperrors.KindOf(err); kind != tt.kind {
				t.Errorf("kind = %s, want %s (%v)", kind, tt.kind, err)
			}
		})
	}

	if n, _ := s.repo.CountStageResults(ctx, stageID); n != 0 {
		t.Errorf("rejected commits must not store results, found %d", n)
	}
}

func TestImportService_CommitRollsBackOnFailure(t *testing.T) {
	repo := mock.NewRepository(testutil.NewTestRepository(t))
	s := newSuite(t, repo)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, repo, 2)
	stageID := testutil.SeedStage(t, repo, 1)
	p := testutil.SeedParticipant(t, repo, "Alpha")
	testutil.SeedRoster(t, repo, p, riders, nil)

	repo.ReplaceStagePointsError = errors.New("disk full")
	_, err := s.imports.Commit(ctx, stageID, services.CommitRequest{
		Results: []models.StageResult{finished(stageID, riders[0], 1, 100), dnf(stageID, riders[1])},
		Jerseys: allJerseys(riders[0]),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	repo.ReplaceStagePointsError = nil

	if n, _ := repo.CountStageResults(ctx, stageID); n != 0 {
		t.Errorf("results should be rolled back, found %d", n)
	}
	if tr := rosterByRider(t, repo, p)[riders[1]]; tr.State != models.StateActiveMain {
		t.Errorf("withdrawal should be rolled back, rider is %s", tr.State)
	}
	if s.notifier.count() != 0 {
		t.Error("failed commit must not notify")
	}
}

func TestImportService_CommitFinal(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 2)
	stageID, err := s.repo.CreateStage(ctx, models.Stage{Sequence: 1, IsFinal: true})
	if err != nil {
		t.Fatalf("CreateStage failed: %v", err)
	}
	p := testutil.SeedParticipant(t, s.repo, "Alpha")
	testutil.SeedRoster(t, s.repo, p, riders[:1], nil)

	final := services.FinalRequest{
		Positions: []models.FinalPosition{{Position: 1, RiderID: riders[0]}, {Position: 2, RiderID: riders[1]}},
		Jerseys: []models.FinalJersey{
			{JerseyType: models.JerseyYellow, RiderID: riders[0]},
			{JerseyType: models.JerseyGreen, RiderID: riders[1]},
			{JerseyType: models.JerseyPolka, RiderID: riders[1]},
			{JerseyType: models.JerseyWhite, RiderID: riders[1]},
		},
	}
	if _, err := s.imports.CommitFinal(ctx, final); err != nil {
		t.Fatalf("CommitFinal failed: %v", err)
	}
	// No results for the final stage yet, so no bonuses.
	if has, _ := s.repo.HasPoints(ctx, p); has {
		t.Error("final bonuses need the final stage to have results")
	}

	if _, err := s.imports.Commit(ctx, stageID, services.CommitRequest{
		Results: []models.StageResult{finished(stageID, riders[0], 1, 100), finished(stageID, riders[1], 2, 100)},
		Jerseys: allJerseys(riders[1]),
	}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	standings, err := s.standings.Standings(ctx)
	if err != nil {
		t.Fatalf("Standings failed: %v", err)
	}
	// 50 for the stage win, 150 + 60 for the final classification and yellow.
	if len(standings) != 1 || standings[0].TotalPoints != 260 {
		t.Errorf("standings = %+v, want 260 points", standings)
	}

	bad := []services.FinalRequest{
		{},
		{Positions: []models.FinalPosition{{Position: 0, RiderID: riders[0]}}, Jerseys: final.Jerseys},
		{Positions: []models.FinalPosition{{Position: 1, RiderID: riders[0]}, {Position: 1, RiderID: riders[1]}}, Jerseys: final.Jerseys},
		{Positions: final.Positions, Jerseys: final.Jerseys[:2]},
	}
	for i, req := range bad {
		if _, err := s.imports.CommitFinal(ctx, req); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
