package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/repository"
	"github.com/interpolis/tourpoule/internal/scoring"
	"github.com/interpolis/tourpoule/internal/services"
	"github.com/interpolis/tourpoule/internal/testutil"
)

// countingNotifier records how often a change was announced.
type countingNotifier struct {
	mu sync.Mutex
	n  int
}

func (c *countingNotifier) Changed(context.Context) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// recordingBroadcaster keeps the last standings pushed to clients.
type recordingBroadcaster struct {
	mu    sync.Mutex
	calls int
	last  []scoring.Standing
}

func (b *recordingBroadcaster) BroadcastStandings(s []scoring.Standing) {
	b.mu.Lock()
	b.calls++
	b.last = s
	b.mu.Unlock()
}

// suite bundles the services the way the app wires them.
type suite struct {
	repo      repository.FullRepository
	notifier  *countingNotifier
	settings  *services.SettingsService
	imports   *services.ImportService
	reserves  *services.ReserveService
	scoring   *services.ScoringService
	rules     *services.RuleService
	stages    *services.StageService
	riders    *services.RiderService
	teams     *services.TeamService
	standings *services.StandingsService
}

func newSuite(t *testing.T, repo repository.FullRepository) *suite {
	t.Helper()
	log := logger.NewDiscard()
	locks := services.NewParticipantLocks(time.Second)
	n := &countingNotifier{}
	settings := services.NewSettingsService(log, repo)
	return &suite{
		repo:      repo,
		notifier:  n,
		settings:  settings,
		imports:   services.NewImportService(log, repo, locks, n),
		reserves:  services.NewReserveService(log, repo, locks, n),
		scoring:   services.NewScoringService(log, repo, n),
		rules:     services.NewRuleService(log, repo, n),
		stages:    services.NewStageService(log, repo, n),
		riders:    services.NewRiderService(log, repo),
		teams:     services.NewTeamService(log, repo, settings, locks, nil, n),
		standings: services.NewStandingsService(log, repo, nil),
	}
}

func newTestSuite(t *testing.T) *suite {
	t.Helper()
	return newSuite(t, testutil.NewTestRepository(t))
}

func finished(stageID, riderID, position, seconds int) models.StageResult {
	return models.StageResult{StageID: stageID, RiderID: riderID, Position: position, TimeSeconds: testutil.IntPtr(seconds)}
}

func dnf(stageID, riderID int) models.StageResult {
	return models.StageResult{StageID: stageID, RiderID: riderID}
}

// allJerseys hands every jersey to the given rider.
func allJerseys(riderID int) []models.JerseyWearer {
	var out []models.JerseyWearer
	for _, jt := range models.JerseyTypes {
		out = append(out, models.JerseyWearer{JerseyType: jt, RiderID: riderID})
	}
	return out
}

func jerseysOf(yellow, green, polka, white int) []models.JerseyWearer {
	return []models.JerseyWearer{
		{JerseyType: models.JerseyYellow, RiderID: yellow},
		{JerseyType: models.JerseyGreen, RiderID: green},
		{JerseyType: models.JerseyPolka, RiderID: polka},
		{JerseyType: models.JerseyWhite, RiderID: white},
	}
}

func stagePoints(t *testing.T, repo repository.PointsRepository, stageID, participantID int) int {
	t.Helper()
	rows, err := repo.ListStagePointsForStage(context.Background(), stageID)
	if err != nil {
		t.Fatalf("ListStagePointsForStage failed: %v", err)
	}
	for _, r := range rows {
		if r.ParticipantID == participantID {
			return r.Points
		}
	}
	return 0
}

func rosterByRider(t *testing.T, repo repository.TeamRepository, participantID int) map[int]models.TeamRider {
	t.Helper()
	roster, err := repo.ListTeamRiders(context.Background(), participantID)
	if err != nil {
		t.Fatalf("ListTeamRiders failed: %v", err)
	}
	out := make(map[int]models.TeamRider, len(roster))
	for _, tr := range roster {
		out[tr.RiderID] = tr
	}
	return out
}
