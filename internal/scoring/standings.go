package scoring

import (
	"sort"
	"strings"
)

// Entry is a participant's cumulative total before ranking. Previous is the
// total without the latest counted stage.
type Entry struct {
	ParticipantID int
	TeamName      string
	Total         int
	Previous      int
}

// Standing is a ranked entry.
type Standing struct {
	ParticipantID  int    `json:"participantId"`
	TeamName       string `json:"teamName"`
	TotalPoints    int    `json:"totalPoints"`
	Rank           int    `json:"rank"`
	PositionChange int    `json:"positionChange"`
}

// Rank orders entries by total descending, then team name
// (case-insensitive), then participant id. Equal totals share a rank.
// When hasPrevious is false every PositionChange is 0.
func Rank(entries []Entry, hasPrevious bool) []Standing {
	current := rankBy(entries, func(e Entry) int { return e.Total })

	var previous map[int]int
	if hasPrevious {
		previous = make(map[int]int, len(entries))
		for _, s := range rankBy(entries, func(e Entry) int { return e.Previous }) {
			previous[s.ParticipantID] = s.Rank
		}
	}

	for i := range current {
		if prev, ok := previous[current[i].ParticipantID]; ok {
			current[i].PositionChange = prev - current[i].Rank
		}
	}
	return current
}

func rankBy(entries []Entry, total func(Entry) int) []Standing {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if total(a) != total(b) {
			return total(a) > total(b)
		}
		an, bn := strings.ToLower(a.TeamName), strings.ToLower(b.TeamName)
		if an != bn {
			return an < bn
		}
		return a.ParticipantID < b.ParticipantID
	})

	out := make([]Standing, len(sorted))
	for i, e := range sorted {
		rank := i + 1
		if i > 0 && total(sorted[i-1]) == total(e) {
			rank = out[i-1].Rank
		}
		out[i] = Standing{
			ParticipantID: e.ParticipantID,
			TeamName:      e.TeamName,
			TotalPoints:   total(e),
			Rank:          rank,
		}
	}
	return out
}
