package models

import "fmt"

// SlotState is the scoring state of a roster entry.
//
//	ActiveMain    --withdraw--> Inactive
//	ActiveReserve --withdraw--> Inactive
//	Reserve       --promote---> ActiveReserve
//
// There are no other edges; a withdrawn rider is never reactivated.
type SlotState string

const (
	StateActiveMain    SlotState = "active_main"
	StateInactive      SlotState = "inactive"
	StateReserve       SlotState = "reserve"
	StateActiveReserve SlotState = "active_reserve"
)

var slotTransitions = map[SlotState][]SlotState{
	StateActiveMain:    {StateInactive},
	StateActiveReserve: {StateInactive},
	StateReserve:       {StateActiveReserve},
}

// Valid reports whether the state is known.
func (s SlotState) Valid() bool {
	switch s {
	case StateActiveMain, StateInactive, StateReserve, StateActiveReserve:
		return true
	}
	return false
}

// Counting reports whether a rider in this state currently scores.
func (s SlotState) Counting() bool {
	return s == StateActiveMain || s == StateActiveReserve
}

// CanTransition reports whether to is reachable from s in one step.
func (s SlotState) CanTransition(to SlotState) bool {
	for _, next := range slotTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedFor reports whether the state may be held by a rider selected
// into the given slot type.
func (s SlotState) AllowedFor(slot SlotType) bool {
	switch s {
	case StateActiveMain:
		return slot == SlotMain
	case StateReserve, StateActiveReserve:
		return slot == SlotReserve
	case StateInactive:
		return slot.Valid()
	}
	return false
}

// InitialState is the state a freshly selected rider starts in.
func InitialState(slot SlotType) SlotState {
	if slot == SlotReserve {
		return StateReserve
	}
	return StateActiveMain
}

// TeamRider is a rider's membership in a participant's roster.
// ActiveFrom and InactiveFrom bound the stage sequences the rider counts for.
type TeamRider struct {
	ParticipantID int       `json:"participantId"`
	RiderID       int       `json:"riderId"`
	SlotType      SlotType  `json:"slotType"`
	SlotNumber    int       `json:"slotNumber"`
	State         SlotState `json:"state"`
	ActiveFrom    int       `json:"activeFrom"`
	InactiveFrom  *int      `json:"inactiveFrom,omitempty"`
	Rider         *Rider    `json:"rider,omitempty"`
}

// CountsFor reports whether the rider scores for the stage with the given
// sequence number.
func (tr TeamRider) CountsFor(sequence int) bool {
	if tr.State == StateReserve || !tr.State.Valid() {
		return false
	}
	if sequence < tr.ActiveFrom {
		return false
	}
	return tr.InactiveFrom == nil || sequence < *tr.InactiveFrom
}

// Transition moves the rider to a new state, enforcing the transition table.
func (tr *TeamRider) Transition(to SlotState) error {
	if !tr.State.CanTransition(to) {
		return fmt.Errorf("illegal slot transition %s -> %s for rider %d", tr.State, to, tr.RiderID)
	}
	if !to.AllowedFor(tr.SlotType) {
		return fmt.Errorf("state %s not allowed for %s slot", to, tr.SlotType)
	}
	tr.State = to
	return nil
}
