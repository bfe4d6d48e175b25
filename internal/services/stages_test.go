package services_test

import (
	"context"
	"testing"

	apperrors "github.com/interpolis/tourpoule/internal/errors"
	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/services"
	"github.com/interpolis/tourpoule/internal/testutil"
)

func TestStageService_CreateValidation(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()

	if _, err := s.stages.CreateStage(ctx, models.Stage{Sequence: 1, Date: "2025-07-05", DistanceKM: 184.9, IsFinal: true}); err != nil {
		t.Fatalf("CreateStage failed: %v", err)
	}

	tests := []struct {
		name  string
		stage models.Stage
		kind  apperrors.Kind
	}{
		{"zero sequence", models.Stage{Sequence: 0}, apperrors.ErrValidation},
		{"bad date", models.Stage{Sequence: 2, Date: "05-07-2025"}, apperrors.ErrValidation},
		{"negative distance", models.Stage{Sequence: 2, DistanceKM: -1}, apperrors.ErrValidation},
		{"neutralized and cancelled", models.Stage{Sequence: 2, Neutralized: true, Cancelled: true}, apperrors.ErrValidation},
		{"second final", models.Stage{Sequence: 2, IsFinal: true}, apperrors.ErrConflict},
		{"duplicate sequence", models.Stage{Sequence: 1}, apperrors.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.stages.CreateStage(ctx, tt.stage)
			if kind := apperrors.KindOf(err); err == nil || kind != tt.kind {
				t.Errorf("got %v (%s), want %s", err, kind, tt.kind)
			}
		})
	}

	stages, err := s.stages.ListStages(ctx)
	if err != nil || len(stages) != 1 {
		t.Errorf("ListStages = %d stages, %v", len(stages), err)
	}
}

func TestStageService_FlagChangeRescores(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 1)
	stageID := testutil.SeedStage(t, s.repo, 1)
	p := testutil.SeedParticipant(t, s.repo, "Alpha")
	testutil.SeedRoster(t, s.repo, p, riders, nil)
	if _, err := s.imports.Commit(ctx, stageID, services.CommitRequest{
		Results: []models.StageResult{finished(stageID, riders[0], 1, 100)},
		Jerseys: allJerseys(riders[0]),
	}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	stage, _ := s.stages.GetStage(ctx, stageID)
	tests := []struct {
		name   string
		mutate func(*models.Stage)
		want   int
	}{
		{"neutralized keeps jerseys only", func(st *models.Stage) { st.Neutralized = true }, 26},
		{"cancelled scores nothing", func(st *models.Stage) { st.Neutralized, st.Cancelled = false, true }, 0},
		{"restored", func(st *models.Stage) { st.Cancelled = false }, 76},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mutate(stage)
			if err := s.stages.UpdateStage(ctx, *stage); err != nil {
				t.Fatalf("UpdateStage failed: %v", err)
			}
			if got := stagePoints(t, s.repo, stageID, p); got != tt.want {
				t.Errorf("stage points = %d, want %d", got, tt.want)
			}
		})
	}

	before := s.notifier.count()
	stage.FinishLocation = "Paris"
	if err := s.stages.UpdateStage(ctx, *stage); err != nil {
		t.Fatalf("UpdateStage failed: %v", err)
	}
	if s.notifier.count() != before {
		t.Error("a cosmetic edit should not rescore")
	}
}

func TestStageService_Delete(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 1)
	played := testutil.SeedStage(t, s.repo, 1)
	empty := testutil.SeedStage(t, s.repo, 2)
	if _, err := s.imports.Commit(ctx, played, services.CommitRequest{
		Results: []models.StageResult{finished(played, riders[0], 1, 100)},
		Jerseys: allJerseys(riders[0]),
	}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if err := s.stages.DeleteStage(ctx, played); !apperrors.Is(err, apperrors.ErrConflict) {
		t.Errorf("expected conflict for a stage with results, got %v", err)
	}
	if err := s.stages.DeleteStage(ctx, empty); err != nil {
		t.Errorf("DeleteStage failed: %v", err)
	}
	if err := s.stages.DeleteStage(ctx, empty); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}

	results, jerseys, err := s.stages.StageResults(ctx, played)
	if err != nil || len(results) != 1 || len(jerseys) != 4 {
		t.Errorf("StageResults = %d results, %d jerseys, %v", len(results), len(jerseys), err)
	}
}
