package handlers

import "github.com/interpolis/tourpoule/internal/models"

// StageResultsResponse is a stage with its committed results
type StageResultsResponse struct {
	Stage   *models.Stage         `json:"stage"`
	Results []models.StageResult  `json:"results"`
	Jerseys []models.JerseyWearer `json:"jerseys"`
}

// TeamResponse is a participant with its roster
type TeamResponse struct {
	*models.Participant
	ShareURL string             `json:"shareUrl,omitempty"`
	Roster   []models.TeamRider `json:"roster"`
}

// MeResponse describes the signed-in user and their team, if any
type MeResponse struct {
	Subject    string        `json:"subject"`
	Email      string        `json:"email,omitempty"`
	Name       string        `json:"name,omitempty"`
	Registered bool          `json:"registered"`
	Team       *TeamResponse `json:"team,omitempty"`
}

// RosterResponse is the reply of a roster edit
type RosterResponse struct {
	OK     bool               `json:"ok"`
	Roster []models.TeamRider `json:"roster"`
}

// StatusResponse reports the public competition status
type StatusResponse struct {
	RegistrationOpen bool `json:"registrationOpen"`
	RosterLocked     bool `json:"rosterLocked"`
}
