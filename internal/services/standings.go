package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/interpolis/tourpoule/internal/cache"
	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/repository"
	"github.com/interpolis/tourpoule/internal/scoring"
)

// DefaultTopRiders is the size of the top riders list when none is given.
const DefaultTopRiders = 20

// Broadcaster defines the interface for pushing standings to clients
type Broadcaster interface {
	BroadcastStandings(standings []scoring.Standing)
}

// ChangeNotifier is told whenever points or rosters change.
type ChangeNotifier interface {
	Changed(ctx context.Context)
}

type nopNotifier struct{}

func (nopNotifier) Changed(context.Context) {}

func notifierOrNop(n ChangeNotifier) ChangeNotifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

// StandingsServiceRepository defines the repository methods needed by StandingsService
type StandingsServiceRepository interface {
	repository.StageRepository
	repository.ParticipantRepository
	repository.TeamRepository
	repository.PointsRepository
}

// StandingsService serves the read paths: standings, leaderboards, stats
// and team views
type StandingsService struct {
	log         logger.Logger
	repo        StandingsServiceRepository
	cache       cache.Cache
	broadcaster Broadcaster
}

// NewStandingsService creates a new StandingsService. A nil cache disables
// caching.
func NewStandingsService(log logger.Logger, repo StandingsServiceRepository, c cache.Cache) *StandingsService {
	if c == nil {
		c = cache.Nop{}
	}
	return &StandingsService{log: log, repo: repo, cache: c}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *StandingsService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// LeaderboardEntry is one participant's result in a single stage
type LeaderboardEntry struct {
	ParticipantID int    `json:"participantId"`
	TeamName      string `json:"teamName"`
	Points        int    `json:"points"`
	Rank          int    `json:"rank"`
}

// StageLeaderboard ranks participants by the points of one stage
type StageLeaderboard struct {
	Stage   models.Stage       `json:"stage"`
	Entries []LeaderboardEntry `json:"entries"`
}

// TeamRiderDetail is a roster entry with the points it produced
type TeamRiderDetail struct {
	models.TeamRider
	Points int `json:"points"`
}

// TeamDetail is the public view of a team
type TeamDetail struct {
	Participant models.Participant   `json:"participant"`
	Standing    *scoring.Standing    `json:"standing,omitempty"`
	Riders      []TeamRiderDetail    `json:"riders"`
	StagePoints []models.StagePoints `json:"stagePoints"`
	FinalPoints int                  `json:"finalPoints"`
	Breakdown   []models.RiderPoints `json:"breakdown"`
}

// StageComparison holds two teams' points for one stage
type StageComparison struct {
	StageID  int `json:"stageId"`
	Sequence int `json:"sequence"`
	A        int `json:"a"`
	B        int `json:"b"`
}

// Comparison is a side-by-side view of two teams
type Comparison struct {
	A      TeamSummary       `json:"a"`
	B      TeamSummary       `json:"b"`
	Stages []StageComparison `json:"stages"`
}

// TeamSummary identifies one side of a comparison
type TeamSummary struct {
	ParticipantID int    `json:"participantId"`
	TeamName      string `json:"teamName"`
	TotalPoints   int    `json:"totalPoints"`
	Rank          int    `json:"rank"`
}

// Standings returns the ranked overall standings
func (s *StandingsService) Standings(ctx context.Context) ([]scoring.Standing, error) {
	var cached []scoring.Standing
	if found, err := s.cache.GetJSON(ctx, cache.KeyStandings, &cached); err != nil {
		s.log.Warn("standings cache read failed", "error", err)
	} else if found {
		return cached, nil
	}

	standings, err := s.computeStandings(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, cache.KeyStandings, standings)
	return standings, nil
}

func (s *StandingsService) computeStandings(ctx context.Context) ([]scoring.Standing, error) {
	participants, err := s.repo.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}
	stages, err := s.repo.ListScoredStages(ctx)
	if err != nil {
		return nil, err
	}
	points, err := s.repo.ListStagePoints(ctx)
	if err != nil {
		return nil, err
	}
	finals, err := s.repo.ListFinalPoints(ctx)
	if err != nil {
		return nil, err
	}

	counted := make(map[int]bool, len(stages))
	for _, st := range stages {
		counted[st.ID] = true
	}
	var latest *models.Stage
	if len(stages) > 0 {
		latest = &stages[len(stages)-1]
	}

	totals := make(map[int]int)
	latestPoints := make(map[int]int)
	for _, sp := range points {
		if !counted[sp.StageID] {
			continue
		}
		totals[sp.ParticipantID] += sp.Points
		if latest != nil && sp.StageID == latest.ID {
			latestPoints[sp.ParticipantID] += sp.Points
		}
	}
	for _, fp := range finals {
		totals[fp.ParticipantID] += fp.Points
		// Final bonuses land together with the final stage.
		if latest != nil && latest.IsFinal {
			latestPoints[fp.ParticipantID] += fp.Points
		}
	}

	entries := make([]scoring.Entry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, scoring.Entry{
			ParticipantID: p.ID,
			TeamName:      p.TeamName,
			Total:         totals[p.ID],
			Previous:      totals[p.ID] - latestPoints[p.ID],
		})
	}
	return scoring.Rank(entries, len(stages) > 1), nil
}

// StageLeaderboard ranks participants by their points in one stage
func (s *StandingsService) StageLeaderboard(ctx context.Context, stageID int) (*StageLeaderboard, error) {
	key := cache.LeaderboardKey(stageID)
	var cached StageLeaderboard
	if found, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.log.Warn("leaderboard cache read failed", "error", err)
	} else if found {
		return &cached, nil
	}

	stage, err := s.repo.GetStage(ctx, stageID)
	if err != nil {
		return nil, mapRepoErr(err, "stage", stageID)
	}
	participants, err := s.repo.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}
	points, err := s.repo.ListStagePointsForStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	byParticipant := make(map[int]int, len(points))
	for _, sp := range points {
		byParticipant[sp.ParticipantID] = sp.Points
	}

	entries := make([]scoring.Entry, 0, len(participants))
	for _, p := range participants {
		entries = append(entries, scoring.Entry{ParticipantID: p.ID, TeamName: p.TeamName, Total: byParticipant[p.ID]})
	}
	board := &StageLeaderboard{Stage: *stage, Entries: []LeaderboardEntry{}}
	for _, st := range scoring.Rank(entries, false) {
		board.Entries = append(board.Entries, LeaderboardEntry{
			ParticipantID: st.ParticipantID,
			TeamName:      st.TeamName,
			Points:        st.TotalPoints,
			Rank:          st.Rank,
		})
	}
	s.store(ctx, key, board)
	return board, nil
}

// PopularRiders returns riders by the number of teams selecting them
func (s *StandingsService) PopularRiders(ctx context.Context) ([]repository.RiderCountRow, error) {
	var cached []repository.RiderCountRow
	if found, err := s.cache.GetJSON(ctx, cache.KeyPopular, &cached); err != nil {
		s.log.Warn("popular riders cache read failed", "error", err)
	} else if found {
		return cached, nil
	}
	rows, err := s.repo.RiderPopularity(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, cache.KeyPopular, rows)
	return rows, nil
}

// TopRiders returns riders by points produced for teams
func (s *StandingsService) TopRiders(ctx context.Context, limit int) ([]repository.RiderCountRow, error) {
	if limit <= 0 {
		limit = DefaultTopRiders
	}
	key := fmt.Sprintf("%s:%d", cache.KeyTopRiders, limit)
	var cached []repository.RiderCountRow
	if found, err := s.cache.GetJSON(ctx, key, &cached); err != nil {
		s.log.Warn("top riders cache read failed", "error", err)
	} else if found {
		return cached, nil
	}
	rows, err := s.repo.TopRiders(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rows)
	return rows, nil
}

// Team returns a team's roster, points and current standing
func (s *StandingsService) Team(ctx context.Context, participantID int) (*TeamDetail, error) {
	p, err := s.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, mapRepoErr(err, "team", participantID)
	}
	roster, err := s.repo.ListTeamRiders(ctx, participantID)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.repo.ListRiderPoints(ctx, participantID)
	if err != nil {
		return nil, err
	}
	stagePoints, err := s.participantStagePoints(ctx, participantID)
	if err != nil {
		return nil, err
	}

	perRider := make(map[int]int)
	detail := &TeamDetail{Participant: *p, Riders: []TeamRiderDetail{}, StagePoints: stagePoints, Breakdown: breakdown}
	for _, line := range breakdown {
		perRider[line.RiderID] += line.Points
		if line.StageID == 0 {
			detail.FinalPoints += line.Points
		}
	}
	for _, tr := range roster {
		detail.Riders = append(detail.Riders, TeamRiderDetail{TeamRider: tr, Points: perRider[tr.RiderID]})
	}

	standings, err := s.Standings(ctx)
	if err != nil {
		return nil, err
	}
	for i := range standings {
		if standings[i].ParticipantID == participantID {
			detail.Standing = &standings[i]
			break
		}
	}
	return detail, nil
}

func (s *StandingsService) participantStagePoints(ctx context.Context, participantID int) ([]models.StagePoints, error) {
	all, err := s.repo.ListStagePoints(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.StagePoints{}
	for _, sp := range all {
		if sp.ParticipantID == participantID {
			out = append(out, sp)
		}
	}
	return out, nil
}

// Compare puts two teams side by side per stage
func (s *StandingsService) Compare(ctx context.Context, a, b int) (*Comparison, error) {
	pa, err := s.repo.GetParticipant(ctx, a)
	if err != nil {
		return nil, mapRepoErr(err, "team", a)
	}
	pb, err := s.repo.GetParticipant(ctx, b)
	if err != nil {
		return nil, mapRepoErr(err, "team", b)
	}
	stages, err := s.repo.ListScoredStages(ctx)
	if err != nil {
		return nil, err
	}
	points, err := s.repo.ListStagePoints(ctx)
	if err != nil {
		return nil, err
	}
	type key struct{ participant, stage int }
	byKey := make(map[key]int, len(points))
	for _, sp := range points {
		byKey[key{sp.ParticipantID, sp.StageID}] = sp.Points
	}

	standings, err := s.Standings(ctx)
	if err != nil {
		return nil, err
	}
	summary := func(p *models.Participant) TeamSummary {
		ts := TeamSummary{ParticipantID: p.ID, TeamName: p.TeamName}
		for _, st := range standings {
			if st.ParticipantID == p.ID {
				ts.TotalPoints, ts.Rank = st.TotalPoints, st.Rank
			}
		}
		return ts
	}

	cmp := &Comparison{A: summary(pa), B: summary(pb), Stages: []StageComparison{}}
	for _, st := range stages {
		cmp.Stages = append(cmp.Stages, StageComparison{
			StageID:  st.ID,
			Sequence: st.Sequence,
			A:        byKey[key{a, st.ID}],
			B:        byKey[key{b, st.ID}],
		})
	}
	sort.Slice(cmp.Stages, func(i, j int) bool { return cmp.Stages[i].Sequence < cmp.Stages[j].Sequence })
	return cmp, nil
}

// Changed drops cached read paths and pushes fresh standings to clients.
func (s *StandingsService) Changed(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("standings cache invalidation failed", "error", err)
	}
	if s.broadcaster == nil {
		return
	}
	standings, err := s.Standings(ctx)
	if err != nil {
		s.log.Error("failed to compute standings for broadcast", "error", err)
		return
	}
	s.broadcaster.BroadcastStandings(standings)
}

func (s *StandingsService) store(ctx context.Context, key string, v any) {
	if err := s.cache.SetJSON(ctx, key, v); err != nil {
		s.log.Warn("cache write failed", "key", key, "error", err)
	}
}
