package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/interpolis/tourpoule/internal/models"
	"github.com/interpolis/tourpoule/internal/repository"
)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// SeedRiders inserts n riders named "Rider<i> Last<i>" and returns their IDs
// in insertion order.
func SeedRiders(t *testing.T, repo repository.RiderRepository, n int) []int {
	t.Helper()
	ids := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		id, err := repo.CreateRider(context.Background(), models.Rider{
			FirstName:   fmt.Sprintf("Rider%d", i),
			LastName:    fmt.Sprintf("Last%d", i),
			Team:        "Team",
			Nationality: "NED",
		})
		if err != nil {
			t.Fatalf("failed to seed rider %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	return ids
}

// SeedStage inserts a stage with the given sequence number.
func SeedStage(t *testing.T, repo repository.StageRepository, seq int) int {
	t.Helper()
	id, err := repo.CreateStage(context.Background(), models.Stage{
		Sequence:       seq,
		StartLocation:  "Start",
		FinishLocation: "Finish",
		Date:           fmt.Sprintf("2025-07-%02d", seq+4),
		DistanceKM:     180,
	})
	if err != nil {
		t.Fatalf("failed to seed stage %d: %v", seq, err)
	}
	return id
}

// SeedParticipant inserts a participant with the given team name.
func SeedParticipant(t *testing.T, repo repository.ParticipantRepository, teamName string) int {
	t.Helper()
	id, err := repo.CreateParticipant(context.Background(), models.Participant{
		PublicID: "public-" + teamName,
		TeamName: teamName,
	})
	if err != nil {
		t.Fatalf("failed to seed participant %q: %v", teamName, err)
	}
	return id
}

// SeedRoster gives a participant the listed main riders and reserves, in slot
// order, in their initial states.
func SeedRoster(t *testing.T, repo repository.TeamRepository, participantID int, mains, reserves []int) {
	t.Helper()
	var roster []models.TeamRider
	for i, id := range mains {
		roster = append(roster, models.TeamRider{
			RiderID: id, SlotType: models.SlotMain, SlotNumber: i + 1, State: models.InitialState(models.SlotMain),
		})
	}
	for i, id := range reserves {
		roster = append(roster, models.TeamRider{
			RiderID: id, SlotType: models.SlotReserve, SlotNumber: i + 1, State: models.InitialState(models.SlotReserve),
		})
	}
	if err := repo.ReplaceRoster(context.Background(), participantID, roster); err != nil {
		t.Fatalf("failed to seed roster: %v", err)
	}
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
