package services

import (
	stderrors "errors"
	"fmt"

	"github.com/interpolis/tourpoule/internal/errors"
	"github.com/interpolis/tourpoule/internal/repository"
)

// Service errors
var (
	ErrRegistrationClosed = errors.Precondition("registration is closed")
	ErrRosterLocked       = errors.Precondition("rosters are locked")
	ErrAlreadyRegistered  = errors.Conflict("you already have a team")
	ErrNotRegistered      = errors.NotFound("you have no team yet")
	ErrTeamHasPoints      = errors.Conflict("team has points and cannot be deleted")
	ErrStageCancelled     = errors.Precondition("stage is cancelled")
	ErrNoResults          = errors.Precondition("results are empty")
)

// mapRepoErr converts repository sentinels into application errors naming
// the entity involved.
func mapRepoErr(err error, entity string, id any) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, repository.ErrNotFound):
		return errors.NotFound(fmt.Sprintf("%s %v not found", entity, id))
	case stderrors.Is(err, repository.ErrDuplicate):
		return errors.Conflict(fmt.Sprintf("%s already exists", entity))
	case stderrors.Is(err, repository.ErrInUse):
		return errors.Conflict(fmt.Sprintf("%s %v is still in use", entity, id))
	}
	return err
}
