package repository

import (
	"context"

	"github.com/interpolis/tourpoule/internal/models"
)

// RiderRepository defines rider data operations
type RiderRepository interface {
	ListRiders(ctx context.Context) ([]models.Rider, error)
	GetRider(ctx context.Context, id int) (*models.Rider, error)
	CreateRider(ctx context.Context, rider models.Rider) (int, error)
	UpdateRider(ctx context.Context, rider models.Rider) error
	DeleteRider(ctx context.Context, id int) error
	CountTeamsForRider(ctx context.Context, riderID int) (int, error)
}

// StageRepository defines stage data operations
type StageRepository interface {
	ListStages(ctx context.Context) ([]models.Stage, error)
	GetStage(ctx context.Context, id int) (*models.Stage, error)
	CreateStage(ctx context.Context, stage models.Stage) (int, error)
	UpdateStage(ctx context.Context, stage models.Stage) error
	DeleteStage(ctx context.Context, id int) error
	LatestResultStage(ctx context.Context) (*models.Stage, error)
	ListScoredStages(ctx context.Context) ([]models.Stage, error)
}

// ResultRepository defines stage result, jersey and final standing operations
type ResultRepository interface {
	ListStageResults(ctx context.Context, stageID int) ([]models.StageResult, error)
	ListJerseyWearers(ctx context.Context, stageID int) ([]models.JerseyWearer, error)
	CountStageResults(ctx context.Context, stageID int) (int, error)
	ReplaceStageResults(ctx context.Context, stageID int, results []models.StageResult, jerseys []models.JerseyWearer) (int, error)
	ListFinalPositions(ctx context.Context) ([]models.FinalPosition, error)
	ListFinalJerseys(ctx context.Context) ([]models.FinalJersey, error)
	ReplaceFinalStandings(ctx context.Context, positions []models.FinalPosition, jerseys []models.FinalJersey) (int, error)
}

// ParticipantRepository defines participant data operations
type ParticipantRepository interface {
	ListParticipants(ctx context.Context) ([]models.Participant, error)
	GetParticipant(ctx context.Context, id int) (*models.Participant, error)
	GetParticipantByPublicID(ctx context.Context, publicID string) (*models.Participant, error)
	GetParticipantBySubject(ctx context.Context, subject string) (*models.Participant, error)
	CreateParticipant(ctx context.Context, p models.Participant) (int, error)
	UpdateParticipant(ctx context.Context, p models.Participant) error
	SetParticipantAvatar(ctx context.Context, id int, avatarURL string) error
	DeleteParticipant(ctx context.Context, id int) error
	LockParticipant(ctx context.Context, id int) error
}

// TeamRepository defines roster data operations
type TeamRepository interface {
	ListTeamRiders(ctx context.Context, participantID int) ([]models.TeamRider, error)
	ListAllTeamRiders(ctx context.Context) ([]models.TeamRider, error)
	ReplaceRoster(ctx context.Context, participantID int, riders []models.TeamRider) error
	UpdateTeamRiderState(ctx context.Context, tr models.TeamRider) error
	RiderPopularity(ctx context.Context) ([]RiderCountRow, error)
}

// RuleRepository defines scoring rule data operations
type RuleRepository interface {
	ListRules(ctx context.Context) ([]models.ScoringRule, error)
	GetRule(ctx context.Context, id int) (*models.ScoringRule, error)
	CreateRule(ctx context.Context, rule models.ScoringRule) (int, error)
	UpdateRule(ctx context.Context, rule models.ScoringRule) error
	DeleteRule(ctx context.Context, id int) error
}

// PointsRepository defines derived points operations
type PointsRepository interface {
	ReplaceStagePoints(ctx context.Context, stageID int, totals []models.StagePoints, breakdown []models.RiderPoints) error
	ReplaceFinalPoints(ctx context.Context, breakdown []models.RiderPoints) error
	ClearPoints(ctx context.Context) error
	ListStagePoints(ctx context.Context) ([]models.StagePoints, error)
	ListStagePointsForStage(ctx context.Context, stageID int) ([]models.StagePoints, error)
	ListFinalPoints(ctx context.Context) ([]models.RiderPoints, error)
	ListRiderPoints(ctx context.Context, participantID int) ([]models.RiderPoints, error)
	TopRiders(ctx context.Context, limit int) ([]RiderCountRow, error)
	HasPoints(ctx context.Context, participantID int) (bool, error)
}

// SettingsRepository defines settings data operations
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Transactor runs a unit of work atomically
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx FullRepository) error) error
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	RiderRepository
	StageRepository
	ResultRepository
	ParticipantRepository
	TeamRepository
	RuleRepository
	PointsRepository
	SettingsRepository
	Transactor
}

// RiderCountRow pairs a rider with a count: teams selecting the rider for
// popularity, or points produced for the top riders list.
type RiderCountRow struct {
	Rider models.Rider `json:"rider"`
	Count int          `json:"count"`
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
