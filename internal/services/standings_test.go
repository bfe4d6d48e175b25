package services_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/interpolis/tourpoule/internal/cache"
	apperrors "github.com/interpolis/tourpoule/internal/errors"
	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/services"
	"github.com/interpolis/tourpoule/internal/testutil"
)

// twoStageRace commits two stages for three single-rider teams:
//
//	stage 1: Alpha 50, Bravo 40, Charlie 58
//	stage 2: Alpha 40, Bravo 50, Charlie 58
type twoStageRace struct {
	s                *suite
	riders           []int
	stage1, stage2   int
	alpha, bravo, ch int
}

func newTwoStageRace(t *testing.T) *twoStageRace {
	t.Helper()
	s := newTestSuite(t)
	r := &twoStageRace{s: s}
	r.riders = testutil.SeedRiders(t, s.repo, 3)
	r.stage1 = testutil.SeedStage(t, s.repo, 1)
	r.stage2 = testutil.SeedStage(t, s.repo, 2)
	r.alpha = testutil.SeedParticipant(t, s.repo, "Alpha")
	r.bravo = testutil.SeedParticipant(t, s.repo, "bravo")
	r.ch = testutil.SeedParticipant(t, s.repo, "Charlie")
	testutil.SeedRoster(t, s.repo, r.alpha, r.riders[0:1], nil)
	testutil.SeedRoster(t, s.repo, r.bravo, r.riders[1:2], nil)
	testutil.SeedRoster(t, s.repo, r.ch, r.riders[2:3], nil)

	ctx := context.Background()
	order := map[int][]int{r.stage1: {0, 1, 2}, r.stage2: {1, 0, 2}}
	for _, stageID := range []int{r.stage1, r.stage2} {
		var results []models.StageResult
		for pos, idx := range order[stageID] {
			results = append(results, finished(stageID, r.riders[idx], pos+1, 10000+pos))
		}
		if _, err := s.imports.Commit(ctx, stageID, services.CommitRequest{Results: results, Jerseys: allJerseys(r.riders[2])}); err != nil {
			t.Fatalf("Commit stage %d failed: %v", stageID, err)
		}
	}
	return r
}

func TestStandingsService_Standings(t *testing.T) {
	r := newTwoStageRace(t)
	standings, err := r.s.standings.Standings(context.Background())
	if err != nil {
		t.Fatalf("Standings failed: %v", err)
	}

	want := []struct {
		id, total, rank, change int
	}{
		{r.ch, 116, 1, 0},
		{r.alpha, 90, 2, 0},
		{r.bravo, 90, 2, 1}, // tie broken by name, rank shared
	}
	if len(standings) != len(want) {
		t.Fatalf("expected %d rows, got %+v", len(want), standings)
	}
	for i, w := range want {
		got := standings[i]
		if got.ParticipantID != w.id || got.TotalPoints != w.total || got.Rank != w.rank || got.PositionChange != w.change {
			t.Errorf("row %d = %+v, want id=%d total=%d rank=%d change=%d", i, got, w.id, w.total, w.rank, w.change)
		}
	}
}

func TestStandingsService_SingleStageHasNoMovement(t *testing.T) {
	s := newTestSuite(t)
	ctx := context.Background()
	riders := testutil.SeedRiders(t, s.repo, 2)
	stageID := testutil.SeedStage(t, s.repo, 1)
	a := testutil.SeedParticipant(t, s.repo, "Alpha")
	b := testutil.SeedParticipant(t, s.repo, "Bravo")
	testutil.SeedParticipant(t, s.repo, "Empty")
	testutil.SeedRoster(t, s.repo, a, riders[:1], nil)
	testutil.SeedRoster(t, s.repo, b, riders[1:], nil)
	if _, err := s.imports.Commit(ctx, stageID, services.CommitRequest{
		Results: []models.StageResult{finished(stageID, riders[1], 1, 100), finished(stageID, riders[0], 2, 100)},
		Jerseys: allJerseys(riders[1]),
	}); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	standings, err := s.standings.Standings(ctx)
	if err != nil {
		t.Fatalf("Standings failed: %v", err)
	}
	if len(standings) != 3 {
		t.Fatalf("every participant should be listed, got %d", len(standings))
	}
	for _, st := range standings {
		if st.PositionChange != 0 {
			t.Errorf("%s moved %d after a single stage", st.TeamName, st.PositionChange)
		}
	}
	if standings[2].TeamName != "Empty" || standings[2].TotalPoints != 0 {
		t.Errorf("team without riders should be last with 0, got %+v", standings[2])
	}
}

func TestStandingsService_StageLeaderboard(t *testing.T) {
	r := newTwoStageRace(t)
	board, err := r.s.standings.StageLeaderboard(context.Background(), r.stage2)
	if err != nil {
		t.Fatalf("StageLeaderboard failed: %v", err)
	}
	if board.Stage.Sequence != 2 || len(board.Entries) != 3 {
		t.Fatalf("unexpected board %+v", board)
	}
	wantIDs := []int{r.ch, r.bravo, r.alpha}
	wantPoints := []int{58, 50, 40}
	for i, e := range board.Entries {
		if e.ParticipantID != wantIDs[i] || e.Points != wantPoints[i] || e.Rank != i+1 {
			t.Errorf("entry %d = %+v, want id=%d points=%d", i, e, wantIDs[i], wantPoints[i])
		}
	}

	if _, err := r.s.standings.StageLeaderboard(context.Background(), 999); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestStandingsService_TeamAndCompare(t *testing.T) {
	r := newTwoStageRace(t)
	ctx := context.Background()

	team, err := r.s.standings.Team(ctx, r.alpha)
	if err != nil {
		t.Fatalf("Team failed: %v", err)
	}
	if len(team.Riders) != 1 || team.Riders[0].Points != 90 {
		t.Errorf("rider points = %+v, want 90", team.Riders)
	}
	if len(team.StagePoints) != 2 || team.Standing == nil || team.Standing.Rank != 2 {
		t.Errorf("unexpected team detail %+v", team)
	}

	cmp, err := r.s.standings.Compare(ctx, r.alpha, r.bravo)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if cmp.A.TotalPoints != 90 || cmp.B.TotalPoints != 90 || len(cmp.Stages) != 2 {
		t.Fatalf("unexpected comparison %+v", cmp)
	}
	if cmp.Stages[0].A != 50 || cmp.Stages[0].B != 40 || cmp.Stages[1].A != 40 || cmp.Stages[1].B != 50 {
		t.Errorf("per-stage comparison = %+v", cmp.Stages)
	}

	if _, err := r.s.standings.Compare(ctx, r.alpha, 999); !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestStandingsService_RiderStats(t *testing.T) {
	r := newTwoStageRace(t)
	ctx := context.Background()

	popular, err := r.s.standings.PopularRiders(ctx)
	if err != nil {
		t.Fatalf("PopularRiders failed: %v", err)
	}
	if len(popular) != 3 || popular[0].Count != 1 {
		t.Errorf("unexpected popularity %+v", popular)
	}

	top, err := r.s.standings.TopRiders(ctx, 1)
	if err != nil {
		t.Fatalf("TopRiders failed: %v", err)
	}
	if len(top) != 1 || top[0].Rider.ID != r.riders[2] || top[0].Count != 116 {
		t.Errorf("unexpected top riders %+v", top)
	}
}

func TestStandingsService_CacheAndBroadcast(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	c, err := cache.NewRedisCache(ctx, "redis://"+mr.Addr(), 0)
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	defer c.Close()

	r := newTwoStageRace(t)
	svc := services.NewStandingsService(logger.NewDiscard(), r.s.repo, c)
	b := &recordingBroadcaster{}
	svc.SetBroadcaster(b)

	if _, err := svc.Standings(ctx); err != nil {
		t.Fatalf("Standings failed: %v", err)
	}
	if !mr.Exists(cache.KeyStandings) {
		t.Fatal("standings should be cached")
	}

	// Change points behind the service's back: the cached copy still wins.
	if err := r.s.repo.ReplaceStagePoints(ctx, r.stage2, []models.StagePoints{{ParticipantID: r.alpha, StageID: r.stage2, Points: 500}}, nil); err != nil {
		t.Fatalf("ReplaceStagePoints failed: %v", err)
	}
	cached, _ := svc.Standings(ctx)
	if cached[0].ParticipantID != r.ch {
		t.Errorf("expected cached standings, got %+v", cached)
	}

	svc.Changed(ctx)
	if b.calls != 1 || b.last[0].ParticipantID != r.alpha || b.last[0].TotalPoints != 550 {
		t.Errorf("broadcast should carry fresh standings, got %+v", b.last)
	}
	fresh, _ := svc.Standings(ctx)
	if fresh[0].ParticipantID != r.alpha {
		t.Errorf("expected refreshed standings after Changed, got %+v", fresh)
	}
}
