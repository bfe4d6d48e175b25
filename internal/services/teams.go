package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	"github.com/interpolis/tourpoule/internal/avatars"
	"github.com/interpolis/tourpoule/internal/errors"
	"github.com/interpolis/tourpoule/internal/logger"
	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/repository"
	"github.com/interpolis/tourpoule/internal/reserves"
)

// Team name length bounds, in characters.
const (
	MinTeamNameLength = 2
	MaxTeamNameLength = 50
)

// TeamService handles participants and their rosters
type TeamService struct {
	log      logger.Logger
	repo     repository.FullRepository
	settings *SettingsService
	locks    *ParticipantLocks
	avatars  avatars.Store
	notifier ChangeNotifier
	baseURL  string
	newID    func() string
}

// NewTeamService creates a new TeamService. A nil avatar store disables
// avatar uploads.
func NewTeamService(log logger.Logger, repo repository.FullRepository, settings *SettingsService, locks *ParticipantLocks, store avatars.Store, notifier ChangeNotifier) *TeamService {
	if store == nil {
		store = avatars.Nop{}
	}
	return &TeamService{
		log:      log,
		repo:     repo,
		settings: settings,
		locks:    locks,
		avatars:  store,
		notifier: notifierOrNop(notifier),
		newID:    uuid.NewString,
	}
}

// SetBaseURL sets the public URL used in share links
func (s *TeamService) SetBaseURL(url string) {
	s.baseURL = strings.TrimSuffix(url, "/")
}

// ProfileRequest is the editable part of a participant
type ProfileRequest struct {
	TeamName string `json:"teamName"`
	Email    string `json:"email"`
	OptIn    bool   `json:"optIn"`
}

// RosterRequest lists rider IDs in slot order
type RosterRequest struct {
	Main    []int `json:"main"`
	Reserve []int `json:"reserve"`
}

// SlotRequest puts one rider into one slot
type SlotRequest struct {
	SlotType   models.SlotType `json:"slotType"`
	SlotNumber int             `json:"slotNumber"`
	RiderID    int             `json:"riderId"`
}

// AvatarResult is the reply of an avatar upload. Storage failures are
// reported as a warning instead of an error.
type AvatarResult struct {
	AvatarURL string `json:"avatarUrl,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

func (p *ProfileRequest) validate() error {
	p.TeamName = strings.TrimSpace(p.TeamName)
	p.Email = strings.TrimSpace(p.Email)
	n := utf8.RuneCountInString(p.TeamName)
	if n < MinTeamNameLength || n > MaxTeamNameLength {
		return errors.Validationf("team name must be %d to %d characters", MinTeamNameLength, MaxTeamNameLength)
	}
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return errors.Validation("email address is invalid")
	}
	return nil
}

// Register creates a team for a signed-in participant
func (s *TeamService) Register(ctx context.Context, subject string, req ProfileRequest) (*models.Participant, error) {
	if subject == "" {
		return nil, errors.Unauthorized("sign in to register a team")
	}
	open, err := s.settings.IsRegistrationOpen(ctx)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, ErrRegistrationClosed
	}
	if _, err := s.repo.GetParticipantBySubject(ctx, subject); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !stderrors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return s.create(ctx, subject, req)
}

// CreateParticipant creates a team on behalf of a participant
func (s *TeamService) CreateParticipant(ctx context.Context, req ProfileRequest) (*models.Participant, error) {
	return s.create(ctx, "", req)
}

func (s *TeamService) create(ctx context.Context, subject string, req ProfileRequest) (*models.Participant, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	p := models.Participant{
		PublicID: s.newID(),
		TeamName: req.TeamName,
		Email:    req.Email,
		OptIn:    req.OptIn,
		Subject:  subject,
	}
	id, err := s.repo.CreateParticipant(ctx, p)
	if err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.Conflictf("team name %q is taken", p.TeamName)
		}
		return nil, err
	}
	p.ID = id
	s.log.Info("team registered", "participant_id", id, "team", p.TeamName)
	s.notifier.Changed(ctx)
	return &p, nil
}

// UpdateProfile changes a team's name, email and opt-in
func (s *TeamService) UpdateProfile(ctx context.Context, id int, req ProfileRequest) (*models.Participant, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	p, err := s.GetParticipant(ctx, id)
	if err != nil {
		return nil, err
	}
	p.TeamName, p.Email, p.OptIn = req.TeamName, req.Email, req.OptIn
	if err := s.repo.UpdateParticipant(ctx, *p); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.Conflictf("team name %q is taken", p.TeamName)
		}
		return nil, mapRepoErr(err, "team", id)
	}
	s.notifier.Changed(ctx)
	return p, nil
}

// DeleteParticipant removes a team that has not scored yet
func (s *TeamService) DeleteParticipant(ctx context.Context, id int) error {
	has, err := s.repo.HasPoints(ctx, id)
	if err != nil {
		return err
	}
	if has {
		return ErrTeamHasPoints
	}
	if err := s.repo.DeleteParticipant(ctx, id); err != nil {
		return mapRepoErr(err, "team", id)
	}
	s.log.Info("team deleted", "participant_id", id)
	s.notifier.Changed(ctx)
	return nil
}

// ListParticipants returns all teams
func (s *TeamService) ListParticipants(ctx context.Context) ([]models.Participant, error) {
	return s.repo.ListParticipants(ctx)
}

// GetParticipant returns a team by ID
func (s *TeamService) GetParticipant(ctx context.Context, id int) (*models.Participant, error) {
	p, err := s.repo.GetParticipant(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "team", id)
	}
	return p, nil
}

// GetByPublicID returns a team by its share ID
func (s *TeamService) GetByPublicID(ctx context.Context, publicID string) (*models.Participant, error) {
	p, err := s.repo.GetParticipantByPublicID(ctx, publicID)
	if err != nil {
		return nil, mapRepoErr(err, "team", publicID)
	}
	return p, nil
}

// GetBySubject returns the team owned by a signed-in participant
func (s *TeamService) GetBySubject(ctx context.Context, subject string) (*models.Participant, error) {
	p, err := s.repo.GetParticipantBySubject(ctx, subject)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotRegistered
	}
	return p, err
}

// Roster returns a team's riders
func (s *TeamService) Roster(ctx context.Context, id int) ([]models.TeamRider, error) {
	if _, err := s.GetParticipant(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListTeamRiders(ctx, id)
}

// SetRoster replaces a team's roster. Riders already on the roster in the
// same slot type keep their state; new riders count from the stage after
// the latest stage with results.
func (s *TeamService) SetRoster(ctx context.Context, id int, req RosterRequest, asAdmin bool) ([]models.TeamRider, error) {
	return s.editRoster(ctx, id, asAdmin, func(current []models.TeamRider, activeFrom int) []models.TeamRider {
		kept := make(map[int]models.TeamRider, len(current))
		for _, tr := range current {
			kept[tr.RiderID] = tr
		}
		var out []models.TeamRider
		add := func(slot models.SlotType, number, riderID int) {
			out = append(out, placeRider(kept, id, slot, number, riderID, activeFrom))
		}
		for i, riderID := range req.Main {
			add(models.SlotMain, i+1, riderID)
		}
		for i, riderID := range req.Reserve {
			add(models.SlotReserve, i+1, riderID)
		}
		return out
	})
}

// SetSlot puts a rider into a single slot, replacing whoever held it. A
// rider who has already scored cannot be replaced.
func (s *TeamService) SetSlot(ctx context.Context, id int, req SlotRequest, asAdmin bool) ([]models.TeamRider, error) {
	if !req.SlotType.Valid() {
		return nil, errors.Validationf("unknown slot type %q", req.SlotType)
	}
	if req.SlotNumber < 1 {
		return nil, errors.Validation("slot number must be at least 1")
	}
	return s.editRoster(ctx, id, asAdmin, func(current []models.TeamRider, activeFrom int) []models.TeamRider {
		kept := make(map[int]models.TeamRider, len(current))
		out := make([]models.TeamRider, 0, len(current)+1)
		for _, tr := range current {
			kept[tr.RiderID] = tr
			if tr.SlotType == req.SlotType && tr.SlotNumber == req.SlotNumber {
				continue
			}
			if tr.RiderID == req.RiderID {
				continue
			}
			out = append(out, tr)
		}
		return append(out, placeRider(kept, id, req.SlotType, req.SlotNumber, req.RiderID, activeFrom))
	})
}

func placeRider(kept map[int]models.TeamRider, participantID int, slot models.SlotType, number, riderID, activeFrom int) models.TeamRider {
	if tr, ok := kept[riderID]; ok && tr.SlotType == slot {
		tr.SlotNumber = number
		tr.Rider = nil
		return tr
	}
	return models.TeamRider{
		ParticipantID: participantID,
		RiderID:       riderID,
		SlotType:      slot,
		SlotNumber:    number,
		State:         models.InitialState(slot),
		ActiveFrom:    activeFrom,
	}
}

// scoredFor reports whether tr has counted for any stage up to latest.
func scoredFor(tr models.TeamRider, latest int) bool {
	first := tr.ActiveFrom
	if first < 1 {
		first = 1
	}
	return first <= latest && tr.CountsFor(first)
}

// keepsHistory rejects an edit that drops a rider who already scored, or
// resets their counting window. Recomputes rebuild points from the roster,
// so such a rider must stay; mid-race changes go through withdrawal.
func keepsHistory(current, next []models.TeamRider, latest int) error {
	byRider := make(map[int]models.TeamRider, len(next))
	for _, tr := range next {
		byRider[tr.RiderID] = tr
	}
	for _, tr := range current {
		if !scoredFor(tr, latest) {
			continue
		}
		n, ok := byRider[tr.RiderID]
		if !ok || n.SlotType != tr.SlotType || n.State != tr.State || n.ActiveFrom != tr.ActiveFrom || !sameStage(n.InactiveFrom, tr.InactiveFrom) {
			return errors.Conflictf("rider %d has scored for this team and cannot be removed; withdraw the rider instead", tr.RiderID)
		}
	}
	return nil
}

func sameStage(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// editRoster applies build to the current roster under the participant lock
// and stores the result.
func (s *TeamService) editRoster(ctx context.Context, id int, asAdmin bool, build func(current []models.TeamRider, activeFrom int) []models.TeamRider) ([]models.TeamRider, error) {
	if !asAdmin {
		locked, err := s.settings.IsRosterLocked(ctx)
		if err != nil {
			return nil, err
		}
		if locked {
			return nil, ErrRosterLocked
		}
	}
	riders, err := s.repo.ListRiders(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[int]bool, len(riders))
	for _, r := range riders {
		known[r.ID] = true
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var roster []models.TeamRider
	err = s.repo.WithTx(ctx, func(tx repository.FullRepository) error {
		if err := tx.LockParticipant(ctx, id); err != nil {
			return mapRepoErr(err, "team", id)
		}
		current, err := tx.ListTeamRiders(ctx, id)
		if err != nil {
			return err
		}
		latest, err := latestStage(ctx, tx)
		if err != nil {
			return err
		}
		activeFrom := 1
		if latest != nil {
			activeFrom = latest.Sequence + 1
		}

		roster = build(current, activeFrom)
		if latest != nil {
			if err := keepsHistory(current, roster, latest.Sequence); err != nil {
				return err
			}
		}
		for _, tr := range roster {
			if !known[tr.RiderID] {
				return errors.Validationf("rider %d does not exist", tr.RiderID)
			}
		}
		if err := reserves.Validate(roster); err != nil {
			return errors.Validation(err.Error())
		}
		return mapRepoErr(tx.ReplaceRoster(ctx, id, roster), "roster entry", id)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("roster updated", "participant_id", id, "riders", len(roster), "admin", asAdmin)
	s.notifier.Changed(ctx)
	return s.repo.ListTeamRiders(ctx, id)
}

// SetRiderState moves a roster entry through the slot state machine. The
// change takes effect from the stage after the latest stage with results.
func (s *TeamService) SetRiderState(ctx context.Context, id, riderID int, to models.SlotState) (*models.TeamRider, error) {
	if !to.Valid() {
		return nil, errors.Validationf("unknown state %q", to)
	}
	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated models.TeamRider
	err = s.repo.WithTx(ctx, func(tx repository.FullRepository) error {
		if err := tx.LockParticipant(ctx, id); err != nil {
			return mapRepoErr(err, "team", id)
		}
		roster, err := tx.ListTeamRiders(ctx, id)
		if err != nil {
			return err
		}
		latest, err := latestStage(ctx, tx)
		if err != nil {
			return err
		}
		next := 1
		if latest != nil {
			next = latest.Sequence + 1
		}

		idx := -1
		for i := range roster {
			if roster[i].RiderID == riderID {
				idx = i
			}
		}
		if idx < 0 {
			return errors.NotFoundf("rider %d is not on team %d", riderID, id)
		}
		tr := roster[idx]
		if err := tr.Transition(to); err != nil {
			return errors.Validation(err.Error())
		}
		if to == models.StateInactive {
			tr.InactiveFrom = &next
		} else {
			tr.ActiveFrom = next
		}
		roster[idx] = tr
		if n := reserves.CountingRiders(roster); n > models.MaxCountingRiders {
			return errors.Conflictf("team would have %d counting riders", n)
		}
		updated = tr
		return tx.UpdateTeamRiderState(ctx, tr)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("rider state changed", "participant_id", id, "rider_id", riderID, "state", to)
	s.notifier.Changed(ctx)
	return &updated, nil
}

// UploadAvatar stores a team avatar. The image is validated; storage
// failures only produce a warning.
func (s *TeamService) UploadAvatar(ctx context.Context, id int, data []byte) (*AvatarResult, error) {
	p, err := s.GetParticipant(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, _, err := avatars.Detect(data); err != nil {
		return nil, errors.Validation(err.Error())
	}

	url, err := s.avatars.Upload(ctx, p.PublicID, data)
	if err != nil {
		s.log.Warn("avatar upload failed", "participant_id", id, "error", err)
		return &AvatarResult{Warning: "avatar could not be stored, try again later"}, nil
	}
	if err := s.repo.SetParticipantAvatar(ctx, id, url); err != nil {
		s.log.Warn("avatar url not saved", "participant_id", id, "error", err)
		return &AvatarResult{Warning: "avatar could not be saved, try again later"}, nil
	}
	return &AvatarResult{AvatarURL: url}, nil
}

// ShareURL returns the public URL of a team page
func (s *TeamService) ShareURL(p *models.Participant) string {
	return fmt.Sprintf("%s/teams/%s", s.baseURL, p.PublicID)
}

// ShareQR returns a PNG QR code of the team's public URL
func (s *TeamService) ShareQR(ctx context.Context, id int) ([]byte, error) {
	if s.baseURL == "" {
		return nil, errors.Precondition("public base URL is not configured")
	}
	p, err := s.GetParticipant(ctx, id)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(s.ShareURL(p), qrcode.Medium, 256)
}
