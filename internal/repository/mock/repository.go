package mock

import (
	"context"

	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without complex database manipulation.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.ReplaceStagePointsError = errors.New("database error")
//	svc := services.NewScoringService(log, mockRepo)
//	_, err := svc.RecomputeStage(ctx, stageID)
//	// err will now contain the injected error
type Repository struct {
	repository.FullRepository

	// ===== Rider Errors =====
	ListRidersError         error
	GetRiderError           error
	CreateRiderError        error
	UpdateRiderError        error
	DeleteRiderError        error
	CountTeamsForRiderError error

	// ===== Stage Errors =====
	ListStagesError        error
	GetStageError          error
	CreateStageError       error
	UpdateStageError       error
	LatestResultStageError error
	ListScoredStagesError  error

	// ===== Result Errors =====
	ListStageResultsError      error
	ListJerseyWearersError     error
	ReplaceStageResultsError   error
	ListFinalPositionsError    error
	ListFinalJerseysError      error
	ReplaceFinalStandingsError error

	// ===== Participant Errors =====
	ListParticipantsError     error
	GetParticipantError       error
	CreateParticipantError    error
	UpdateParticipantError    error
	SetParticipantAvatarError error
	DeleteParticipantError    error
	LockParticipantError      error

	// ===== Team Errors =====
	ListTeamRidersError       error
	ListAllTeamRidersError    error
	ReplaceRosterError        error
	UpdateTeamRiderStateError error
	RiderPopularityError      error

	// ===== Rule Errors =====
	ListRulesError  error
	CreateRuleError error
	UpdateRuleError error

	// ===== Points Errors =====
	ReplaceStagePointsError error
	ReplaceFinalPointsError error
	ClearPointsError        error
	ListStagePointsError    error
	ListRiderPointsError    error
	TopRidersError          error
	HasPointsError          error

	// ===== Settings Errors =====
	GetSettingError error
	SetSettingError error

	// ===== Transaction Errors =====
	WithTxError error
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// WithTx runs fn against the real transaction wrapped in a copy of this mock,
// so injected errors also apply inside the unit of work.
func (m *Repository) WithTx(ctx context.Context, fn func(tx repository.FullRepository) error) error {
	if m.WithTxError != nil {
		return m.WithTxError
	}
	return m.FullRepository.WithTx(ctx, func(tx repository.FullRepository) error {
		wrapped := *m
		wrapped.FullRepository = tx
		return fn(&wrapped)
	})
}

// ===== Rider Methods =====

func (m *Repository) ListRiders(ctx context.Context) ([]models.Rider, error) {
	if m.ListRidersError != nil {
		return nil, m.ListRidersError
	}
	return m.FullRepository.ListRiders(ctx)
}

func (m *Repository) GetRider(ctx context.Context, id int) (*models.Rider, error) {
	if m.GetRiderError != nil {
		return nil, m.GetRiderError
	}
	return m.FullRepository.GetRider(ctx, id)
}

func (m *Repository) CreateRider(ctx context.Context, rider models.Rider) (int, error) {
	if m.CreateRiderError != nil {
		return 0, m.CreateRiderError
	}
	return m.FullRepository.CreateRider(ctx, rider)
}

func (m *Repository) UpdateRider(ctx context.Context, rider models.Rider) error {
	if m.UpdateRiderError != nil {
		return m.UpdateRiderError
	}
	return m.FullRepository.UpdateRider(ctx, rider)
}

func (m *Repository) DeleteRider(ctx context.Context, id int) error {
	if m.DeleteRiderError != nil {
		return m.DeleteRiderError
	}
	return m.FullRepository.DeleteRider(ctx, id)
}

func (m *Repository) CountTeamsForRider(ctx context.Context, riderID int) (int, error) {
	if m.CountTeamsForRiderError != nil {
		return 0, m.CountTeamsForRiderError
	}
	return m.FullRepository.CountTeamsForRider(ctx, riderID)
}

// ===== Stage Methods =====

func (m *Repository) ListStages(ctx context.Context) ([]models.Stage, error) {
	if m.ListStagesError != nil {
		return nil, m.ListStagesError
	}
	return m.FullRepository.ListStages(ctx)
}

func (m *Repository) GetStage(ctx context.Context, id int) (*models.Stage, error) {
	if m.GetStageError != nil {
		return nil, m.GetStageError
	}
	return m.FullRepository.GetStage(ctx, id)
}

func (m *Repository) CreateStage(ctx context.Context, stage models.Stage) (int, error) {
	if m.CreateStageError != nil {
		return 0, m.CreateStageError
	}
	return m.FullRepository.CreateStage(ctx, stage)
}

func (m *Repository) UpdateStage(ctx context.Context, stage models.Stage) error {
	if m.UpdateStageError != nil {
		return m.UpdateStageError
	}
	return m.FullRepository.UpdateStage(ctx, stage)
}

func (m *Repository) LatestResultStage(ctx context.Context) (*models.Stage, error) {
	if m.LatestResultStageError != nil {
		return nil, m.LatestResultStageError
	}
	return m.FullRepository.LatestResultStage(ctx)
}

func (m *Repository) ListScoredStages(ctx context.Context) ([]models.Stage, error) {
	if m.ListScoredStagesError != nil {
		return nil, m.ListScoredStagesError
	}
	return m.FullRepository.ListScoredStages(ctx)
}

// ===== Result Methods =====

func (m *Repository) ListStageResults(ctx context.Context, stageID int) ([]models.StageResult, error) {
	if m.ListStageResultsError != nil {
		return nil, m.ListStageResultsError
	}
	return m.FullRepository.ListStageResults(ctx, stageID)
}

func (m *Repository) ListJerseyWearers(ctx context.Context, stageID int) ([]models.JerseyWearer, error) {
	if m.ListJerseyWearersError != nil {
		return nil, m.ListJerseyWearersError
	}
	return m.FullRepository.ListJerseyWearers(ctx, stageID)
}

func (m *Repository) ReplaceStageResults(ctx context.Context, stageID int, results []models.StageResult, jerseys []models.JerseyWearer) (int, error) {
	if m.ReplaceStageResultsError != nil {
		return 0, m.ReplaceStageResultsError
	}
	return m.FullRepository.ReplaceStageResults(ctx, stageID, results, jerseys)
}

func (m *Repository) ListFinalPositions(ctx context.Context) ([]models.FinalPosition, error) {
	if m.ListFinalPositionsError != nil {
		return nil, m.ListFinalPositionsError
	}
	return m.FullRepository.ListFinalPositions(ctx)
}

func (m *Repository) ListFinalJerseys(ctx context.Context) ([]models.FinalJersey, error) {
	if m.ListFinalJerseysError != nil {
		return nil, m.ListFinalJerseysError
	}
	return m.FullRepository.ListFinalJerseys(ctx)
}

func (m *Repository) ReplaceFinalStandings(ctx context.Context, positions []models.FinalPosition, jerseys []models.FinalJersey) (int, error) {
	if m.ReplaceFinalStandingsError != nil {
		return 0, m.ReplaceFinalStandingsError
	}
	return m.FullRepository.ReplaceFinalStandings(ctx, positions, jerseys)
}

// ===== Participant Methods =====

func (m *Repository) ListParticipants(ctx context.Context) ([]models.Participant, error) {
	if m.ListParticipantsError != nil {
		return nil, m.ListParticipantsError
	}
	return m.FullRepository.ListParticipants(ctx)
}

func (m *Repository) GetParticipant(ctx context.Context, id int) (*models.Participant, error) {
	if m.GetParticipantError != nil {
		return nil, m.GetParticipantError
	}
	return m.FullRepository.GetParticipant(ctx, id)
}

func (m *Repository) CreateParticipant(ctx context.Context, p models.Participant) (int, error) {
	if m.CreateParticipantError != nil {
		return 0, m.CreateParticipantError
	}
	return m.FullRepository.CreateParticipant(ctx, p)
}

func (m *Repository) UpdateParticipant(ctx context.Context, p models.Participant) error {
	if m.UpdateParticipantError != nil {
		return m.UpdateParticipantError
	}
	return m.FullRepository.UpdateParticipant(ctx, p)
}

func (m *Repository) SetParticipantAvatar(ctx context.Context, id int, avatarURL string) error {
	if m.SetParticipantAvatarError != nil {
		return m.SetParticipantAvatarError
	}
	return m.FullRepository.SetParticipantAvatar(ctx, id, avatarURL)
}

func (m *Repository) DeleteParticipant(ctx context.Context, id int) error {
	if m.DeleteParticipantError != nil {
		return m.DeleteParticipantError
	}
	return m.FullRepository.DeleteParticipant(ctx, id)
}

func (m *Repository) LockParticipant(ctx context.Context, id int) error {
	if m.LockParticipantError != nil {
		return m.LockParticipantError
	}
	return m.FullRepository.LockParticipant(ctx, id)
}

// ===== Team Methods =====

func (m *Repository) ListTeamRiders(ctx context.Context, participantID int) ([]models.TeamRider, error) {
	if m.ListTeamRidersError != nil {
		return nil, m.ListTeamRidersError
	}
	return m.FullRepository.ListTeamRiders(ctx, participantID)
}

func (m *Repository) ListAllTeamRiders(ctx context.Context) ([]models.TeamRider, error) {
	if m.ListAllTeamRidersError != nil {
		return nil, m.ListAllTeamRidersError
	}
	return m.FullRepository.ListAllTeamRiders(ctx)
}

func (m *Repository) ReplaceRoster(ctx context.Context, participantID int, riders []models.TeamRider) error {
	if m.ReplaceRosterError != nil {
		return m.ReplaceRosterError
	}
	return m.FullRepository.ReplaceRoster(ctx, participantID, riders)
}

func (m *Repository) UpdateTeamRiderState(ctx context.Context, tr models.TeamRider) error {
	if m.UpdateTeamRiderStateError != nil {
		return m.UpdateTeamRiderStateError
	}
	return m.FullRepository.UpdateTeamRiderState(ctx, tr)
}

func (m *Repository) RiderPopularity(ctx context.Context) ([]repository.RiderCountRow, error) {
	if m.RiderPopularityError != nil {
		return nil, m.RiderPopularityError
	}
	return m.FullRepository.RiderPopularity(ctx)
}

// ===== Rule Methods =====

func (m *Repository) ListRules(ctx context.Context) ([]models.ScoringRule, error) {
	if m.ListRulesError != nil {
		return nil, m.ListRulesError
	}
	return m.FullRepository.ListRules(ctx)
}

func (m *Repository) CreateRule(ctx context.Context, rule models.ScoringRule) (int, error) {
	if m.CreateRuleError != nil {
		return 0, m.CreateRuleError
	}
	return m.FullRepository.CreateRule(ctx, rule)
}

func (m *Repository) UpdateRule(ctx context.Context, rule models.ScoringRule) error {
	if m.UpdateRuleError != nil {
		return m.UpdateRuleError
	}
	return m.FullRepository.UpdateRule(ctx, rule)
}

// ===== Points Methods =====

func (m *Repository) ReplaceStagePoints(ctx context.Context, stageID int, totals []models.StagePoints, breakdown []models.RiderPoints) error {
	if m.ReplaceStagePointsError != nil {
		return m.ReplaceStagePointsError
	}
	return m.FullRepository.ReplaceStagePoints(ctx, stageID, totals, breakdown)
}

func (m *Repository) ReplaceFinalPoints(ctx context.Context, breakdown []models.RiderPoints) error {
	if m.ReplaceFinalPointsError != nil {
		return m.ReplaceFinalPointsError
	}
	return m.FullRepository.ReplaceFinalPoints(ctx, breakdown)
}

func (m *Repository) ClearPoints(ctx context.Context) error {
	if m.ClearPointsError != nil {
		return m.ClearPointsError
	}
	return m.FullRepository.ClearPoints(ctx)
}

func (m *Repository) ListStagePoints(ctx context.Context) ([]models.StagePoints, error) {
	if m.ListStagePointsError != nil {
		return nil, m.ListStagePointsError
	}
	return m.FullRepository.ListStagePoints(ctx)
}

func (m *Repository) ListRiderPoints(ctx context.Context, participantID int) ([]models.RiderPoints, error) {
	if m.ListRiderPointsError != nil {
		return nil, m.ListRiderPointsError
	}
	return m.FullRepository.ListRiderPoints(ctx, participantID)
}

func (m *Repository) TopRiders(ctx context.Context, limit int) ([]repository.RiderCountRow, error) {
	if m.TopRidersError != nil {
		return nil, m.TopRidersError
	}
	return m.FullRepository.TopRiders(ctx, limit)
}

func (m *Repository) HasPoints(ctx context.Context, participantID int) (bool, error) {
	if m.HasPointsError != nil {
		return false, m.HasPointsError
	}
	return m.FullRepository.HasPoints(ctx, participantID)
}

// ===== Settings Methods =====

func (m *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	if m.GetSettingError != nil {
		return "", m.GetSettingError
	}
	return m.FullRepository.GetSetting(ctx, key)
}

func (m *Repository) SetSetting(ctx context.Context, key, value string) error {
	if m.SetSettingError != nil {
		return m.SetSettingError
	}
	return m.FullRepository.SetSetting(ctx, key, value)
}

// Ensure Repository implements FullRepository
var _ repository.FullRepository = (*Repository)(nil)
