package services_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	apperrors "github.com/interpolis/tourpoule/internal/errors"
	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/services"
	"github.com/interpolis/tourpoule/internal/testutil"
)

func TestTeamService_Register(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()

	p, err := s.teams.Register(ctx, "sub-1", services.ProfileRequest{TeamName: "  De Knechten ", Email: "a@b.nl", OptIn: true})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if p.TeamName != "De Knechten" || p.PublicID == "" || p.Subject != "sub-1" {
		t.Errorf("unexpected participant %+v", p)
	}

	got, err := s.teams.GetBySubject(ctx, "sub-1")
	if err != nil || got.ID != p.ID {
		t.Errorf("GetBySubject = %+v, %v", got, err)
	}
	byPublic, err := s.teams.GetByPublicID(ctx, p.PublicID)
	if err != nil || byPublic.ID != p.ID {
		t.Errorf("GetByPublicID = %+v, %v", byPublic, err)
	}

	tests := []struct {
		name    string
		subject string
		req     services.ProfileRequest
		kind    apperrors.Kind
	}{
		{"not signed in", "", services.ProfileRequest{TeamName: "Solo"}, apperrors.ErrUnauthorized},
		{"second team", "sub-1", services.ProfileRequest{TeamName: "Another"}, apperrors.ErrConflict},
		{"name taken, other case", "sub-2", services.ProfileRequest{TeamName: "de knechten"}, apperrors.ErrConflict},
		{"name too short", "sub-2", services.ProfileRequest{TeamName: "X"}, apperrors.ErrValidation},
		{"bad email", "sub-2", services.ProfileRequest{TeamName: "Waaiers", Email: "nope"}, apperrors.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.teams.Register(ctx, tt.subject, tt.req)
			if kind := apperrors.KindOf(err); err == nil || kind != tt.kind {
				t.Errorf("got %v (%s), want kind %s", err, kind, tt.kind)
			}
		})
	}

	if _, err := s.teams.GetBySubject(ctx, "nobody"); !errors.Is(err, services.ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
}

func TestTeamService_RegistrationClosed(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	if err := s.settings.SetRegistrationOpen(ctx, false); err != nil {
		t.Fatalf("SetRegistrationOpen failed: %v", err)
	}
	if _, err := s.teams.Register(ctx, "sub-1", services.ProfileRequest{TeamName: "Late"}); !errors.Is(err, services.ErrRegistrationClosed) {
		t.Errorf("expected ErrRegistrationClosed, got %v", err)
	}
	// Admins can still add teams.
	if _, err := s.teams.CreateParticipant(ctx, services.ProfileRequest{TeamName: "Late"}); err != nil {
		t.Errorf("CreateParticipant failed: %v", err)
	}
}

func TestTeamService_UpdateAndDelete(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 1)
	stageID := testutil.SeedStage(t, s.repo, 1)
	a, _ := s.teams.CreateParticipant(ctx, services.ProfileRequest{TeamName: "Alpha"})
	b, _ := s.teams.CreateParticipant(ctx, services.ProfileRequest{TeamName: "Bravo"})

	updated, err := s.teams.UpdateProfile(ctx, a.ID, services.ProfileRequest{TeamName: "Alpha Pro", Email: "x@y.z"})
	if err != nil || updated.TeamName != "Alpha Pro" {
		t.Fatalf("UpdateProfile = %+v, %v", updated, err)
	}
	if _, err := s.teams.UpdateProfile(ctx, a.ID, services.ProfileRequest{TeamName: "BRAVO"}); !apperrors.Is(err, apperrors.ErrConflict) {
		t.Errorf("expected conflict on taken name, got %v", err)
	}
	if _, err := s.teams.UpdateProfile(ctx, 999, services.ProfileRequest{TeamName: "Ghost"}); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	testutil.SeedRoster(t, s.repo, a.ID, riders, nil)
	if _, err := s.imports.Commit(ctx, stageID, services.CommitRequest{
		Results: []models.StageResult{finished(stageID, riders[0], 1, 100)},
		Jerseys: allJerseys(riders[0]),
	}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := s.teams.DeleteParticipant(ctx, a.ID); !errors.Is(err, services.ErrTeamHasPoints) {
		t.Errorf("expected ErrTeamHasPoints, got %v", err)
	}
	if err := s.teams.DeleteParticipant(ctx, b.ID); err != nil {
		t.Errorf("DeleteParticipant failed: %v", err)
	}
	if _, err := s.teams.GetParticipant(ctx, b.ID); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("deleted team should be gone, got %v", err)
	}
}

func TestTeamService_SetRoster(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 17)
	p := testutil.SeedParticipant(t, s.repo, "Alpha")

	roster, err := s.teams.SetRoster(ctx, p, services.RosterRequest{Main: riders[:10], Reserve: riders[10:15]}, false)
	if err != nil {
		t.Fatalf("SetRoster failed: %v", err)
	}
	if len(roster) != 15 {
		t.Fatalf("expected 15 riders, got %d", len(roster))
	}

	tests := []struct {
		name string
		req  services.RosterRequest
	}{
		{"too many mains", services.RosterRequest{Main: riders[:11]}},
		{"too many reserves", services.RosterRequest{Main: riders[:1], Reserve: riders[1:7]}},
		{"duplicate rider", services.RosterRequest{Main: []int{riders[0], riders[0]}}},
		{"rider in both lists", services.RosterRequest{Main: riders[:1], Reserve: riders[:1]}},
		{"unknown rider", services.RosterRequest{Main: []int{9999}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.teams.SetRoster(ctx, p, tt.req, false)
			if !apperrors.Is(err, apperrors.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	if got := rosterByRider(t, s.repo, p); len(got) != 15 {
		t.Errorf("rejected rosters must not change anything, have %d riders", len(got))
	}
	if _, err := s.teams.SetRoster(ctx, 999, services.RosterRequest{Main: riders[:1]}, false); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestTeamService_RosterLock(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 3)
	p := testutil.SeedParticipant(t, s.repo, "Alpha")
	if err := s.settings.SetRosterLocked(ctx, true); err != nil {
		t.Fatalf("SetRosterLocked failed: %v", err)
	}

	if _, err := s.teams.SetRoster(ctx, p, services.RosterRequest{Main: riders}, false); !errors.Is(err, services.ErrRosterLocked) {
		t.Errorf("expected ErrRosterLocked, got %v", err)
	}
	if _, err := s.teams.SetSlot(ctx, p, services.SlotRequest{SlotType: models.SlotMain, SlotNumber: 1, RiderID: riders[0]}, false); !errors.Is(err, services.ErrRosterLocked) {
		t.Errorf("expected ErrRosterLocked, got %v", err)
	}
	if _, err := s.teams.SetRoster(ctx, p, services.RosterRequest{Main: riders}, true); err != nil {
		t.Errorf("admins may edit locked rosters: %v", err)
	}
}

func TestTeamService_RosterKeepsState(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 4)
	stageID := testutil.SeedStage(t, s.repo, 1)
	p := testutil.SeedParticipant(t, s.repo, "Alpha")
	testutil.SeedRoster(t, s.repo, p, riders[:2], nil)

	if _, err := s.imports.Commit(ctx, stageID, services.CommitRequest{
		Results: []models.StageResult{finished(stageID, riders[0], 1, 100), dnf(stageID, riders[1])},
		Jerseys: allJerseys(riders[0]),
	}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// Reorder, keep the withdrawn rider and add a new one.
	_, err := s.teams.SetRoster(ctx, p, services.RosterRequest{Main: []int{riders[1], riders[0], riders[2]}}, true)
	if err != nil {
		t.Fatalf("SetRoster failed: %v", err)
	}
	roster := rosterByRider(t, s.repo, p)
	if tr := roster[riders[1]]; tr.State != models.StateInactive || tr.SlotNumber != 1 {
		t.Errorf("withdrawn rider must stay inactive, got %+v", tr)
	}
	if tr := roster[riders[2]]; tr.State != models.StateActiveMain || tr.ActiveFrom != 2 {
		t.Errorf("new rider should count from stage 2, got %+v", tr)
	}
	if tr := roster[riders[0]]; tr.SlotNumber != 2 || tr.State != models.StateActiveMain {
		t.Errorf("kept rider should move to slot 2, got %+v", tr)
	}
	if got := stagePoints(t, s.repo, stageID, p); got != 76 {
		t.Errorf("roster edits must not change past points, got %d", got)
	}
}

func TestTeamService_ScoredRiderCannotBeReplaced(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 4)
	stageID := testutil.SeedStage(t, s.repo, 1)
	p := testutil.SeedParticipant(t, s.repo, "Alpha")
	testutil.SeedRoster(t, s.repo, p, riders[:1], riders[1:2])

	if _, err := s.imports.Commit(ctx, stageID, services.CommitRequest{
		Results: []models.StageResult{finished(stageID, riders[0], 1, 100)},
		Jerseys: allJerseys(riders[0]),
	}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	before := stagePoints(t, s.repo, stageID, p)
	if before == 0 {
		t.Fatal("expected stage 1 points for the winner")
	}

	edits := []struct {
		name string
		edit func() error
	}{
		{"swap main slot", func() error {
			_, err := s.teams.SetSlot(ctx, p, services.SlotRequest{SlotType: models.SlotMain, SlotNumber: 1, RiderID: riders[2]}, true)
			return err
		}},
		{"drop from roster", func() error {
			_, err := s.teams.SetRoster(ctx, p, services.RosterRequest{Main: riders[2:3], Reserve: riders[1:2]}, true)
			return err
		}},
		{"move to reserves", func() error {
			_, err := s.teams.SetRoster(ctx, p, services.RosterRequest{Reserve: []int{riders[1], riders[0]}}, true)
			return err
		}},
	}
	for _, tt := range edits {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.edit(); !apperrors.Is(err, apperrors.ErrConflict) {
				t.Errorf("expected conflict, got %v", err)
			}
		})
	}

	// The reserve never counted, so it may still be swapped out.
	if _, err := s.teams.SetSlot(ctx, p, services.SlotRequest{SlotType: models.SlotReserve, SlotNumber: 1, RiderID: riders[3]}, true); err != nil {
		t.Fatalf("replacing an unused reserve failed: %v", err)
	}

	if _, err := s.scoring.RecomputeAll(ctx); err != nil {
		t.Fatalf("RecomputeAll failed: %v", err)
	}
	if got := stagePoints(t, s.repo, stageID, p); got != before {
		t.Errorf("stage 1 points changed after roster edits: before %d, after recompute %d", before, got)
	}
	if tr, ok := rosterByRider(t, s.repo, p)[riders[0]]; !ok || tr.State != models.StateActiveMain || tr.ActiveFrom > 1 {
		t.Errorf("scoring rider must keep their roster entry, got %+v (present %v)", tr, ok)
	}
}

func TestTeamService_SetSlot(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 3)
	p := testutil.SeedParticipant(t, s.repo, "Alpha")
	testutil.SeedRoster(t, s.repo, p, riders[:2], nil)

	roster, err := s.teams.SetSlot(ctx, p, services.SlotRequest{SlotType: models.SlotMain, SlotNumber: 2, RiderID: riders[2]}, false)
	if err != nil {
		t.Fatalf("SetSlot failed: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected 2 riders, got %d", len(roster))
	}
	byRider := rosterByRider(t, s.repo, p)
	if _, ok := byRider[riders[1]]; ok {
		t.Error("replaced rider should be gone")
	}
	if tr := byRider[riders[2]]; tr.SlotNumber != 2 || tr.SlotType != models.SlotMain {
		t.Errorf("new rider = %+v", tr)
	}

	if _, err := s.teams.SetSlot(ctx, p, services.SlotRequest{SlotType: models.SlotReserve, SlotNumber: 1, RiderID: riders[1]}, false); err != nil {
		t.Fatalf("adding a reserve failed: %v", err)
	}
	if tr := rosterByRider(t, s.repo, p)[riders[1]]; tr.State != models.StateReserve {
		t.Errorf("reserve should start in reserve, got %s", tr.State)
	}

	bad := []services.SlotRequest{
		{SlotType: "bench", SlotNumber: 1, RiderID: riders[0]},
		{SlotType: models.SlotMain, SlotNumber: 0, RiderID: riders[0]},
	}
	for _, req := range bad {
		if _, err := s.teams.SetSlot(ctx, p, req, false); !apperrors.Is(err, apperrors.ErrValidation) {
			t.Errorf("SetSlot(%+v): expected validation error, got %v", req, err)
		}
	}
}

func TestTeamService_SetRiderState(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 3)
	stageID := testutil.SeedStage(t, s.repo, 1)
	p := testutil.SeedParticipant(t, s.repo, "Alpha")
	testutil.SeedRoster(t, s.repo, p, riders[:2], nil)
	if _, err := s.imports.Commit(ctx, stageID, services.CommitRequest{
		Results: []models.StageResult{finished(stageID, riders[0], 1, 100), finished(stageID, riders[1], 2, 100)},
		Jerseys: allJerseys(riders[0]),
	}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	tr, err := s.teams.SetRiderState(ctx, p, riders[1], models.StateInactive)
	if err != nil {
		t.Fatalf("SetRiderState failed: %v", err)
	}
	if tr.InactiveFrom == nil || *tr.InactiveFrom != 2 {
		t.Errorf("manual withdrawal should apply from stage 2, got %+v", tr)
	}
	if got := stagePoints(t, s.repo, stageID, p); got != 116 {
		t.Errorf("stage 1 points must be kept, got %d", got)
	}

	if _, err := s.teams.SetRiderState(ctx, p, riders[1], models.StateActiveMain); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("withdrawn riders cannot come back, got %v", err)
	}
	if _, err := s.teams.SetRiderState(ctx, p, riders[2], models.StateInactive); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected not found for rider off the roster, got %v", err)
	}
	if _, err := s.teams.SetRiderState(ctx, p, riders[0], "retired"); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error for unknown state, got %v", err)
	}
}

type fakeAvatarStore struct {
	err      error
	uploaded []byte
}

func (f *fakeAvatarStore) Upload(_ context.Context, publicID string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploaded = data
	return "https://cdn.example.com/avatars/" + publicID + ".png", nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

func TestTeamService_UploadAvatar(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	log := logger.NewDiscard()
	store := &fakeAvatarStore{}
	settings := services.NewSettingsService(log, repo)
	svc := services.NewTeamService(log, repo, settings, services.NewParticipantLocks(time.Second), store, nil)
	ctx := context.Background()
	p := testutil.SeedParticipant(t, repo, "Alpha")

	res, err := svc.UploadAvatar(ctx, p, pngBytes(t))
	if err != nil {
		t.Fatalf("UploadAvatar failed: %v", err)
	}
	if res.Warning != "" || res.AvatarURL != "https://cdn.example.com/avatars/public-Alpha.png" {
		t.Errorf("unexpected result %+v", res)
	}
	got, _ := repo.GetParticipant(ctx, p)
	if got.AvatarURL != res.AvatarURL {
		t.Errorf("avatar URL not stored, got %q", got.AvatarURL)
	}

	if _, err := svc.UploadAvatar(ctx, p, []byte("not an image")); !apperrors.Is(err, apperrors.ErrValidation) {
		t.Errorf("expected validation error for non-image, got %v", err)
	}

	store.err = errors.New("bucket unreachable")
	res, err = svc.UploadAvatar(ctx, p, pngBytes(t))
	if err != nil {
		t.Fatalf("storage failures must not be errors: %v", err)
	}
	if res.Warning == "" || res.AvatarURL != "" {
		t.Errorf("expected a warning, got %+v", res)
	}
}

func TestTeamService_ShareQR(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	p := testutil.SeedParticipant(t, s.repo, "Alpha")

	if _, err := s.teams.ShareQR(ctx, p); !apperrors.Is(err, apperrors.ErrPrecondition) {
		t.Errorf("expected precondition error without base URL, got %v", err)
	}

	s.teams.SetBaseURL("https://poule.example.com/")
	participant, _ := s.teams.GetParticipant(ctx, p)
	if url := s.teams.ShareURL(participant); url != "https://poule.example.com/teams/public-Alpha" {
		t.Errorf("ShareURL = %q", url)
	}
	img, err := s.teams.ShareQR(ctx, p)
	if err != nil {
		t.Fatalf("ShareQR failed: %v", err)
	}
	if !bytes.HasPrefix(img, []byte("\x89PNG")) {
		t.Error("expected a PNG image")
	}
}
