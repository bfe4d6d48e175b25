package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/interpolis/tourpoule/internal/errors"
	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/repository"
)

// RiderService handles rider-related business logic
type RiderService struct {
	log    logger.Logger
	repo   repository.RiderRepository
	client *http.Client
}

// NewRiderService creates a new RiderService
func NewRiderService(log logger.Logger, repo repository.RiderRepository) *RiderService {
	return &RiderService{
		log:    log,
		repo:   repo,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// SetHTTPClient replaces the client used to fetch rider photos
func (s *RiderService) SetHTTPClient(c *http.Client) {
	s.client = c
}

// PhotoData contains photo metadata and content
type PhotoData struct {
	Data        []byte
	ContentType string
}

// ListRiders returns all riders by last name
func (s *RiderService) ListRiders(ctx context.Context) ([]models.Rider, error) {
	return s.repo.ListRiders(ctx)
}

// GetRider returns a rider by ID
func (s *RiderService) GetRider(ctx context.Context, id int) (*models.Rider, error) {
	rider, err := s.repo.GetRider(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "rider", id)
	}
	return rider, nil
}

func validateRider(r *models.Rider) error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Team = strings.TrimSpace(r.Team)
	r.Nationality = strings.ToUpper(strings.TrimSpace(r.Nationality))
	if r.LastName == "" {
		return errors.Validation("last name is required")
	}
	if r.PhotoURL != "" && !strings.HasPrefix(r.PhotoURL, "http://") && !strings.HasPrefix(r.PhotoURL, "https://") {
		return errors.Validation("photo URL must be http or https")
	}
	return nil
}

// CreateRider validates and stores a new rider
func (s *RiderService) CreateRider(ctx context.Context, rider models.Rider) (*models.Rider, error) {
	if err := validateRider(&rider); err != nil {
		return nil, err
	}
	id, err := s.repo.CreateRider(ctx, rider)
	if err != nil {
		return nil, mapRepoErr(err, "rider", rider.FullName())
	}
	rider.ID = id
	s.log.Info("rider created", "rider_id", id, "name", rider.FullName())
	return &rider, nil
}

// UpdateRider validates and replaces a rider
func (s *RiderService) UpdateRider(ctx context.Context, rider models.Rider) error {
	if err := validateRider(&rider); err != nil {
		return err
	}
	if err := s.repo.UpdateRider(ctx, rider); err != nil {
		return mapRepoErr(err, "rider", rider.ID)
	}
	return nil
}

// DeleteRider removes a rider that no team has selected
func (s *RiderService) DeleteRider(ctx context.Context, id int) error {
	teams, err := s.repo.CountTeamsForRider(ctx, id)
	if err != nil {
		return err
	}
	if teams > 0 {
		return errors.Conflictf("rider %d is selected by %d team(s)", id, teams)
	}
	if err := s.repo.DeleteRider(ctx, id); err != nil {
		return mapRepoErr(err, "rider", id)
	}
	s.log.Info("rider deleted", "rider_id", id)
	return nil
}

// GetRiderPhoto fetches the photo for a rider from its source URL
func (s *RiderService) GetRiderPhoto(ctx context.Context, id int) (*PhotoData, error) {
	rider, err := s.repo.GetRider(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "rider", id)
	}
	if rider.PhotoURL == "" {
		return nil, errors.NotFoundf("rider %d has no photo", id)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rider.PhotoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build photo request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("rider photo fetch failed", "rider_id", id, "error", err)
		return nil, fmt.Errorf("failed to fetch photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photo fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read photo data: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return &PhotoData{Data: data, ContentType: contentType}, nil
}
