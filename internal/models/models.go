package models

import "strings"

// Roster limits per participant.
const (
	MaxMainRiders     = 10
	MaxReserveRiders  = 5
	MaxCountingRiders = 10
)

// JerseyType is one of the four leader jerseys.
type JerseyType string

const (
	JerseyYellow JerseyType = "geel"      // general classification
	JerseyGreen  JerseyType = "groen"     // points
	JerseyPolka  JerseyType = "bolletjes" // mountains
	JerseyWhite  JerseyType = "wit"       // youth
)

// JerseyTypes lists every jersey in display order. A stage commit must
// assign exactly one rider to each of them.
var JerseyTypes = []JerseyType{JerseyYellow, JerseyGreen, JerseyPolka, JerseyWhite}

// ParseJerseyType accepts a jersey name case-insensitively.
func ParseJerseyType(s string) (JerseyType, bool) {
	jt := JerseyType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range JerseyTypes {
		if jt == known {
			return jt, true
		}
	}
	return "", false
}

// Rider is a professional cyclist available for selection.
type Rider struct {
	ID          int    `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Team        string `json:"team"`
	Nationality string `json:"nationality"`
	PhotoURL    string `json:"photoUrl,omitempty"`
}

// FullName returns "First Last".
func (r Rider) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Stage is one leg of the race.
type Stage struct {
	ID             int     `json:"id"`
	Sequence       int     `json:"sequence"`
	StartLocation  string  `json:"startLocation"`
	FinishLocation string  `json:"finishLocation"`
	Date           string  `json:"date"` // YYYY-MM-DD
	DistanceKM     float64 `json:"distanceKm"`
	Neutralized    bool    `json:"neutralized"`
	Cancelled      bool    `json:"cancelled"`
	IsFinal        bool    `json:"isFinal"`
}

// StageResult is a rider's finish in a stage. Position 0 means unranked.
// A nil TimeSeconds marks a DNF/DNS and is never stored as zero.
type StageResult struct {
	StageID     int    `json:"stageId"`
	RiderID     int    `json:"riderId"`
	Position    int    `json:"position"`
	TimeSeconds *int   `json:"timeSeconds"`
	Gap         string `json:"gap,omitempty"`
}

// Finished reports whether the rider completed the stage.
func (r StageResult) Finished() bool {
	return r.TimeSeconds != nil
}

// JerseyWearer names the rider wearing a jersey after a stage.
type JerseyWearer struct {
	StageID    int        `json:"stageId"`
	JerseyType JerseyType `json:"jerseyType"`
	RiderID    int        `json:"riderId"`
}

// FinalPosition is a row of the final general classification.
type FinalPosition struct {
	Position int `json:"position"`
	RiderID  int `json:"riderId"`
}

// FinalJersey is the final winner of a jersey classification.
type FinalJersey struct {
	JerseyType JerseyType `json:"jerseyType"`
	RiderID    int        `json:"riderId"`
}

// Participant is a registered fantasy team.
type Participant struct {
	ID        int    `json:"id"`
	PublicID  string `json:"publicId"`
	TeamName  string `json:"teamName"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	OptIn     bool   `json:"optIn"`
	Subject   string `json:"-"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// SlotType is the roster slot a rider was selected into.
type SlotType string

const (
	SlotMain    SlotType = "main"
	SlotReserve SlotType = "reserve"
)

// Valid reports whether the slot type is known.
func (s SlotType) Valid() bool {
	return s == SlotMain || s == SlotReserve
}

// ScoringRule is the persisted, flat form of a rule. The scoring package
// decodes it into a typed condition.
type ScoringRule struct {
	ID         int        `json:"id"`
	Kind       string     `json:"kind"`
	Position   int        `json:"position,omitempty"`
	JerseyType JerseyType `json:"jerseyType,omitempty"`
	Points     int        `json:"points"`
}

// StagePoints is the derived total of a participant for one stage.
type StagePoints struct {
	ParticipantID int `json:"participantId"`
	StageID       int `json:"stageId"`
	Points        int `json:"points"`
}

// RiderPoints is one line of a points breakdown. StageID is 0 for final
// bonuses.
type RiderPoints struct {
	ParticipantID int    `json:"participantId"`
	StageID       int    `json:"stageId"`
	RiderID       int    `json:"riderId"`
	Reason        string `json:"reason"`
	Points        int    `json:"points"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
