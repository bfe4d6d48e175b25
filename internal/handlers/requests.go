package handlers

import "github.com/interpolis/tourpoule/internal/models"

// LoginRequest is the admin login body
type LoginRequest struct {
	Password string `json:"password"`
}

// ValidateRequest carries pasted stage results
type ValidateRequest struct {
	ResultsText string `json:"resultsText"`
}

// RiderRequest creates or updates a rider
type RiderRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Team        string `json:"team"`
	Nationality string `json:"nationality"`
	PhotoURL    string `json:"photoUrl"`
}

func (r RiderRequest) toModel(id int) models.Rider {
	return models.Rider{
		ID:          id,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Team:        r.Team,
		Nationality: r.Nationality,
		PhotoURL:    r.PhotoURL,
	}
}

// StageRequest creates or updates a stage
type StageRequest struct {
	Sequence       int     `json:"sequence"`
	StartLocation  string  `json:"startLocation"`
	FinishLocation string  `json:"finishLocation"`
	Date           string  `json:"date"`
	DistanceKM     float64 `json:"distanceKm"`
	Neutralized    bool    `json:"neutralized"`
	Cancelled      bool    `json:"cancelled"`
	IsFinal        bool    `json:"isFinal"`
}

func (r StageRequest) toModel(id int) models.Stage {
	return models.Stage{
		ID:             id,
		Sequence:       r.Sequence,
		StartLocation:  r.StartLocation,
		FinishLocation: r.FinishLocation,
		Date:           r.Date,
		DistanceKM:     r.DistanceKM,
		Neutralized:    r.Neutralized,
		Cancelled:      r.Cancelled,
		IsFinal:        r.IsFinal,
	}
}

// RuleRequest creates or updates a scoring rule
type RuleRequest struct {
	Kind       string `json:"kind"`
	Position   int    `json:"position"`
	JerseyType string `json:"jerseyType"`
	Points     int    `json:"points"`
}

func (r RuleRequest) toModel(id int) models.ScoringRule {
	return models.ScoringRule{
		ID:         id,
		Kind:       r.Kind,
		Position:   r.Position,
		JerseyType: models.JerseyType(r.JerseyType),
		Points:     r.Points,
	}
}

// RiderStateRequest moves a rostered rider to another state
type RiderStateRequest struct {
	State models.SlotState `json:"state"`
}

// SettingsUpdateRequest represents a request to update settings
type SettingsUpdateRequest struct {
	RegistrationOpen *bool `json:"registrationOpen"`
	RosterLocked     *bool `json:"rosterLocked"`
}
