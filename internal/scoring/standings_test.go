package scoring

import "testing"

func TestRank_TieBreaksAndCompetitionRanking(t *testing.T) {
	entries := []Entry{
		{ParticipantID: 1, TeamName: "zebra", Total: 100},
		{ParticipantID: 2, TeamName: "Alpha", Total: 100},
		{ParticipantID: 3, TeamName: "middle", Total: 90},
		{ParticipantID: 4, TeamName: "alpha", Total: 100},
	}

	got := Rank(entries, false)

	wantOrder := []int{2, 4, 1, 3}
	wantRank := []int{1, 1, 1, 4}
	for i, s := range got {
		if s.ParticipantID != wantOrder[i] {
			t.Errorf("position %d: participant %d, want %d", i, s.ParticipantID, wantOrder[i])
		}
		if s.Rank != wantRank[i] {
			t.Errorf("participant %d: rank %d, want %d", s.ParticipantID, s.Rank, wantRank[i])
		}
		if s.PositionChange != 0 {
			t.Errorf("participant %d: position change %d without previous stage", s.ParticipantID, s.PositionChange)
		}
	}
}

func TestRank_PositionChange(t *testing.T) {
	entries := []Entry{
		{ParticipantID: 1, TeamName: "a", Total: 120, Previous: 60},
		{ParticipantID: 2, TeamName: "b", Total: 110, Previous: 100},
		{ParticipantID: 3, TeamName: "c", Total: 90, Previous: 80},
	}

	got := Rank(entries, true)
	want := map[int]int{1: 2, 2: -1, 3: -1}
	for _, s := range got {
		if s.PositionChange != want[s.ParticipantID] {
			t.Errorf("participant %d: change %d, want %d", s.ParticipantID, s.PositionChange, want[s.ParticipantID])
		}
	}
	if got[0].TotalPoints != 120 {
		t.Errorf("total points must reflect current total, got %d", got[0].TotalPoints)
	}
}

func TestRank_Empty(t *testing.T) {
	if got := Rank(nil, true); len(got) != 0 {
		t.Errorf("expected empty standings, got %+v", got)
	}
}
