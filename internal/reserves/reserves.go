// Package reserves plans withdrawals and reserve promotions for a roster.
// It is pure: callers load the roster, apply the plan and persist it.
package reserves

import (
	"fmt"
	"sort"

	"github.com/interpolis/tourpoule/internal/models"
)

// Change is a single state transition for one roster entry.
type Change struct {
	RiderID      int              `json:"riderId"`
	From         models.SlotState `json:"from"`
	To           models.SlotState `json:"to"`
	ActiveFrom   int              `json:"activeFrom"`
	InactiveFrom *int             `json:"inactiveFrom,omitempty"`
}

// Plan is the set of changes for one participant.
type Plan struct {
	Withdrawn []Change
	Promoted  []Change
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Withdrawn) == 0 && len(p.Promoted) == 0
}

// Changes returns withdrawals followed by promotions.
func (p Plan) Changes() []Change {
	out := make([]Change, 0, len(p.Withdrawn)+len(p.Promoted))
	out = append(out, p.Withdrawn...)
	return append(out, p.Promoted...)
}

// Withdrawals returns the riders counting for stage that have no finishing
// result in it. finished holds the ids of riders with a non-null time.
func Withdrawals(riders []models.TeamRider, stage models.Stage, finished map[int]bool) []Change {
	var out []Change
	for _, tr := range riders {
		if !tr.State.Counting() || !tr.CountsFor(stage.Sequence) {
			continue
		}
		if finished[tr.RiderID] {
			continue
		}
		seq := stage.Sequence
		out = append(out, Change{
			RiderID:      tr.RiderID,
			From:         tr.State,
			To:           models.StateInactive,
			ActiveFrom:   tr.ActiveFrom,
			InactiveFrom: &seq,
		})
	}
	return out
}

// Promotions fills empty counting slots from untouched reserves in slot
// order. Promoted riders count from activeFrom onward.
func Promotions(riders []models.TeamRider, activeFrom int) []Change {
	counting := 0
	var reserves []models.TeamRider
	for _, tr := range riders {
		switch {
		case tr.State.Counting():
			counting++
		case tr.State == models.StateReserve:
			reserves = append(reserves, tr)
		}
	}
	sort.Slice(reserves, func(i, j int) bool { return reserves[i].SlotNumber < reserves[j].SlotNumber })

	var out []Change
	for _, tr := range reserves {
		if counting >= models.MaxCountingRiders {
			break
		}
		out = append(out, Change{
			RiderID:    tr.RiderID,
			From:       models.StateReserve,
			To:         models.StateActiveReserve,
			ActiveFrom: activeFrom,
		})
		counting++
	}
	return out
}

// PlanFor withdraws non-finishers of stage (when stage is non-nil) and then
// promotes reserves, counting from activeFrom.
func PlanFor(riders []models.TeamRider, stage *models.Stage, finished map[int]bool, activeFrom int) (Plan, error) {
	var plan Plan
	current := riders
	if stage != nil {
		plan.Withdrawn = Withdrawals(riders, *stage, finished)
		var err error
		if current, err = Apply(riders, plan.Withdrawn); err != nil {
			return Plan{}, err
		}
	}
	plan.Promoted = Promotions(current, activeFrom)
	return plan, nil
}

// Apply returns a copy of riders with the changes applied. Every change must
// follow the slot transition table.
func Apply(riders []models.TeamRider, changes []Change) ([]models.TeamRider, error) {
	out := append([]models.TeamRider(nil), riders...)
	index := make(map[int]int, len(out))
	for i, tr := range out {
		index[tr.RiderID] = i
	}
	for _, c := range changes {
		i, ok := index[c.RiderID]
		if !ok {
			return nil, fmt.Errorf("rider %d not on roster", c.RiderID)
		}
		if out[i].State != c.From {
			return nil, fmt.Errorf("rider %d is %s, expected %s", c.RiderID, out[i].State, c.From)
		}
		if err := out[i].Transition(c.To); err != nil {
			return nil, err
		}
		out[i].ActiveFrom = c.ActiveFrom
		out[i].InactiveFrom = c.InactiveFrom
	}
	if n := CountingRiders(out); n > models.MaxCountingRiders {
		return nil, fmt.Errorf("roster would have %d counting riders", n)
	}
	return out, nil
}

// CountingRiders returns the number of riders in a counting state.
func CountingRiders(riders []models.TeamRider) int {
	n := 0
	for _, tr := range riders {
		if tr.State.Counting() {
			n++
		}
	}
	return n
}

// Validate checks the roster invariants.
func Validate(riders []models.TeamRider) error {
	var mainCount, reserveCount int
	seenRider := make(map[int]bool)
	seenSlot := make(map[string]bool)
	for _, tr := range riders {
		if seenRider[tr.RiderID] {
			return fmt.Errorf("rider %d selected more than once", tr.RiderID)
		}
		seenRider[tr.RiderID] = true

		if !tr.SlotType.Valid() {
			return fmt.Errorf("unknown slot type %q", tr.SlotType)
		}
		if !tr.State.AllowedFor(tr.SlotType) {
			return fmt.Errorf("state %s not allowed for %s slot", tr.State, tr.SlotType)
		}
		slot := fmt.Sprintf("%s/%d", tr.SlotType, tr.SlotNumber)
		if seenSlot[slot] {
			return fmt.Errorf("slot %s used more than once", slot)
		}
		seenSlot[slot] = true

		if tr.SlotType == models.SlotMain {
			mainCount++
		} else {
			reserveCount++
		}
	}
	if mainCount > models.MaxMainRiders {
		return fmt.Errorf("at most %d main riders allowed, got %d", models.MaxMainRiders, mainCount)
	}
	if reserveCount > models.MaxReserveRiders {
		return fmt.Errorf("at most %d reserve riders allowed, got %d", models.MaxReserveRiders, reserveCount)
	}
	if n := CountingRiders(riders); n > models.MaxCountingRiders {
		return fmt.Errorf("at most %d counting riders allowed, got %d", models.MaxCountingRiders, n)
	}
	return nil
}
