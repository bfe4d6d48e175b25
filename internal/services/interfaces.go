package services

import (
	"context"

	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/repository"
	"github.com/interpolis/tourpoule/internal/scoring"
)

// RiderServicer defines the interface for rider operations
type RiderServicer interface {
	ListRiders(ctx context.Context) ([]models.Rider, error)
	GetRider(ctx context.Context, id int) (*models.Rider, error)
	GetRiderPhoto(ctx context.Context, id int) (*PhotoData, error)
	CreateRider(ctx context.Context, rider models.Rider) (*models.Rider, error)
	UpdateRider(ctx context.Context, rider models.Rider) error
	DeleteRider(ctx context.Context, id int) error
}

// StageServicer defines the interface for stage operations
type StageServicer interface {
	ListStages(ctx context.Context) ([]models.Stage, error)
	GetStage(ctx context.Context, id int) (*models.Stage, error)
	StageResults(ctx context.Context, id int) ([]models.StageResult, []models.JerseyWearer, error)
	CreateStage(ctx context.Context, stage models.Stage) (*models.Stage, error)
	UpdateStage(ctx context.Context, stage models.Stage) error
	DeleteStage(ctx context.Context, id int) error
}

// ImportServicer defines the interface for result import operations
type ImportServicer interface {
	Validate(ctx context.Context, stageID int, text string) (*ValidateResult, error)
	Commit(ctx context.Context, stageID int, req CommitRequest) (*CommitResult, error)
	CommitFinal(ctx context.Context, req FinalRequest) (*CommitResult, error)
}

// ReserveServicer defines the interface for reserve activation
type ReserveServicer interface {
	Activate(ctx context.Context, req ActivateRequest) (*ActivateResult, error)
}

// ScoringServicer defines the interface for recomputing points
type ScoringServicer interface {
	RecomputeStage(ctx context.Context, stageID int) error
	RecomputeAll(ctx context.Context) (*RecomputeResult, error)
	RecomputeFinal(ctx context.Context) (bool, error)
}

// RuleServicer defines the interface for scoring rule operations
type RuleServicer interface {
	ListRules(ctx context.Context) ([]models.ScoringRule, error)
	CreateRule(ctx context.Context, rule models.ScoringRule) (*models.ScoringRule, error)
	UpdateRule(ctx context.Context, rule models.ScoringRule) error
	DeleteRule(ctx context.Context, id int) error
}

// TeamServicer defines the interface for participant and roster operations
type TeamServicer interface {
	Register(ctx context.Context, subject string, req ProfileRequest) (*models.Participant, error)
	CreateParticipant(ctx context.Context, req ProfileRequest) (*models.Participant, error)
	UpdateProfile(ctx context.Context, id int, req ProfileRequest) (*models.Participant, error)
	DeleteParticipant(ctx context.Context, id int) error
	ListParticipants(ctx context.Context) ([]models.Participant, error)
	GetParticipant(ctx context.Context, id int) (*models.Participant, error)
	GetByPublicID(ctx context.Context, publicID string) (*models.Participant, error)
	GetBySubject(ctx context.Context, subject string) (*models.Participant, error)
	Roster(ctx context.Context, id int) ([]models.TeamRider, error)
	SetRoster(ctx context.Context, id int, req RosterRequest, asAdmin bool) ([]models.TeamRider, error)
	SetSlot(ctx context.Context, id int, req SlotRequest, asAdmin bool) ([]models.TeamRider, error)
	SetRiderState(ctx context.Context, id, riderID int, to models.SlotState) (*models.TeamRider, error)
	UploadAvatar(ctx context.Context, id int, data []byte) (*AvatarResult, error)
	ShareURL(p *models.Participant) string
	ShareQR(ctx context.Context, id int) ([]byte, error)
}

// StandingsServicer defines the interface for the read paths
type StandingsServicer interface {
	Standings(ctx context.Context) ([]scoring.Standing, error)
	StageLeaderboard(ctx context.Context, stageID int) (*StageLeaderboard, error)
	PopularRiders(ctx context.Context) ([]repository.RiderCountRow, error)
	TopRiders(ctx context.Context, limit int) ([]repository.RiderCountRow, error)
	Team(ctx context.Context, participantID int) (*TeamDetail, error)
	Compare(ctx context.Context, a, b int) (*Comparison, error)
	SetBroadcaster(b Broadcaster)
}

// SettingsServicer defines the interface for settings operations
type SettingsServicer interface {
	IsRegistrationOpen(ctx context.Context) (bool, error)
	SetRegistrationOpen(ctx context.Context, open bool) error
	IsRosterLocked(ctx context.Context) (bool, error)
	SetRosterLocked(ctx context.Context, locked bool) error
	AllSettings(ctx context.Context) (map[string]interface{}, error)
	UpdateSettings(ctx context.Context, settings Settings) error
}

// Ensure concrete types implement interfaces
var (
	_ RiderServicer     = (*RiderService)(nil)
	_ StageServicer     = (*StageService)(nil)
	_ ImportServicer    = (*ImportService)(nil)
	_ ReserveServicer   = (*ReserveService)(nil)
	_ ScoringServicer   = (*ScoringService)(nil)
	_ RuleServicer      = (*RuleService)(nil)
	_ TeamServicer      = (*TeamService)(nil)
	_ StandingsServicer = (*StandingsService)(nil)
	_ SettingsServicer  = (*SettingsService)(nil)
	_ ChangeNotifier    = (*StandingsService)(nil)
)
