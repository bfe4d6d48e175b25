package services

import (
	"context"

	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/repository"
)

// SettingsService handles settings-related business logic
type SettingsService struct {
	log  logger.Logger
	repo repository.SettingsRepository
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(log logger.Logger, repo repository.SettingsRepository) *SettingsService {
	return &SettingsService{log: log, repo: repo}
}

// Settings represents the admin-editable switches. Nil fields are left
// unchanged by UpdateSettings.
type Settings struct {
	RegistrationOpen *bool `json:"registrationOpen,omitempty"`
	RosterLocked     *bool `json:"rosterLocked,omitempty"`
}

func (s *SettingsService) getBool(ctx context.Context, key string, def bool) (bool, error) {
	value, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		if err == repository.ErrNotFound {
			return def, nil
		}
		return false, err
	}
	return value == "true", nil
}

func (s *SettingsService) setBool(ctx context.Context, key string, v bool) error {
	value := "false"
	if v {
		value = "true"
	}
	return s.repo.SetSetting(ctx, key, value)
}

// IsRegistrationOpen reports whether new teams may register
func (s *SettingsService) IsRegistrationOpen(ctx context.Context) (bool, error) {
	return s.getBool(ctx, repository.SettingRegistrationOpen, true)
}

// SetRegistrationOpen opens or closes registration
func (s *SettingsService) SetRegistrationOpen(ctx context.Context, open bool) error {
	return s.setBool(ctx, repository.SettingRegistrationOpen, open)
}

// IsRosterLocked reports whether participants can no longer edit rosters
func (s *SettingsService) IsRosterLocked(ctx context.Context) (bool, error) {
	return s.getBool(ctx, repository.SettingRosterLocked, false)
}

// SetRosterLocked locks or unlocks rosters
func (s *SettingsService) SetRosterLocked(ctx context.Context, locked bool) error {
	return s.setBool(ctx, repository.SettingRosterLocked, locked)
}

// AllSettings returns every setting with its effective value
func (s *SettingsService) AllSettings(ctx context.Context) (map[string]interface{}, error) {
	open, err := s.IsRegistrationOpen(ctx)
	if err != nil {
		return nil, err
	}
	locked, err := s.IsRosterLocked(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"registrationOpen": open,
		"rosterLocked":     locked,
	}, nil
}

// UpdateSettings applies the non-nil fields
func (s *SettingsService) UpdateSettings(ctx context.Context, settings Settings) error {
	if settings.RegistrationOpen != nil {
		if err := s.SetRegistrationOpen(ctx, *settings.RegistrationOpen); err != nil {
			return err
		}
		s.log.Info("registration toggled", "open", *settings.RegistrationOpen)
	}
	if settings.RosterLocked != nil {
		if err := s.SetRosterLocked(ctx, *settings.RosterLocked); err != nil {
			return err
		}
		s.log.Info("roster lock toggled", "locked", *settings.RosterLocked)
	}
	return nil
}
