package scoring

import (
	"sort"

	"github.com/interpolis/tourpoule/internal/models"
)

// StageInput is everything needed to score one stage.
type StageInput struct {
	Stage   models.Stage
	Results []models.StageResult
	Jerseys []models.JerseyWearer
}

// FinalInput holds the final classification and jersey winners.
type FinalInput struct {
	Positions []models.FinalPosition
	Jerseys   []models.FinalJersey
}

// Team is a participant's roster as seen by the engine.
type Team struct {
	ParticipantID int
	Riders        []models.TeamRider
}

// TeamScore is the outcome for one participant. Breakdown only contains
// lines worth more than zero points.
type TeamScore struct {
	ParticipantID int
	Points        int
	Breakdown     []models.RiderPoints
}

// ScoreStage computes stage points for every team. Cancelled stages yield an
// empty slice.
func (rs *RuleSet) ScoreStage(in StageInput, teams []Team) []TeamScore {
	if in.Stage.Cancelled {
		return nil
	}

	riderPoints := make(map[int][]models.RiderPoints)
	if !in.Stage.Neutralized {
		for _, res := range in.Results {
			if !res.Finished() || res.Position < 1 {
				continue
			}
			cond := StagePosition{N: res.Position}
			if pts := rs.Points(cond); pts > 0 {
				riderPoints[res.RiderID] = append(riderPoints[res.RiderID], models.RiderPoints{
					StageID: in.Stage.ID, RiderID: res.RiderID, Reason: Describe(cond), Points: pts,
				})
			}
		}
	}
	for _, jw := range sortedJerseys(in.Jerseys) {
		cond := Jersey{Type: jw.JerseyType}
		if pts := rs.Points(cond); pts > 0 {
			riderPoints[jw.RiderID] = append(riderPoints[jw.RiderID], models.RiderPoints{
				StageID: in.Stage.ID, RiderID: jw.RiderID, Reason: Describe(cond), Points: pts,
			})
		}
	}

	scores := make([]TeamScore, 0, len(teams))
	for _, team := range teams {
		score := TeamScore{ParticipantID: team.ParticipantID}
		for _, tr := range countingRiders(team.Riders, in.Stage.Sequence) {
			for _, line := range riderPoints[tr.RiderID] {
				line.ParticipantID = team.ParticipantID
				score.Points += line.Points
				score.Breakdown = append(score.Breakdown, line)
			}
		}
		scores = append(scores, score)
	}
	return scores
}

// ScoreFinal computes the one-off final bonuses, counting the riders that
// count for the stage flagged as final.
func (rs *RuleSet) ScoreFinal(final models.Stage, in FinalInput, teams []Team) []TeamScore {
	riderPoints := make(map[int][]models.RiderPoints)
	positions := append([]models.FinalPosition(nil), in.Positions...)
	sort.Slice(positions, func(i, j int) bool { return positions[i].Position < positions[j].Position })
	for _, fp := range positions {
		cond := FinalPosition{N: fp.Position}
		if pts := rs.Points(cond); pts > 0 {
			riderPoints[fp.RiderID] = append(riderPoints[fp.RiderID], models.RiderPoints{
				RiderID: fp.RiderID, Reason: Describe(cond), Points: pts,
			})
		}
	}
	for _, jt := range models.JerseyTypes {
		for _, fj := range in.Jerseys {
			if fj.JerseyType != jt {
				continue
			}
			cond := FinalJersey{Type: jt}
			if pts := rs.Points(cond); pts > 0 {
				riderPoints[fj.RiderID] = append(riderPoints[fj.RiderID], models.RiderPoints{
					RiderID: fj.RiderID, Reason: Describe(cond), Points: pts,
				})
			}
		}
	}

	scores := make([]TeamScore, 0, len(teams))
	for _, team := range teams {
		score := TeamScore{ParticipantID: team.ParticipantID}
		for _, tr := range countingRiders(team.Riders, final.Sequence) {
			for _, line := range riderPoints[tr.RiderID] {
				line.ParticipantID = team.ParticipantID
				score.Points += line.Points
				score.Breakdown = append(score.Breakdown, line)
			}
		}
		scores = append(scores, score)
	}
	return scores
}

// countingRiders returns the riders counting for a stage, ordered by slot.
// At most MaxCountingRiders are returned.
func countingRiders(riders []models.TeamRider, sequence int) []models.TeamRider {
	var out []models.TeamRider
	for _, tr := range riders {
		if tr.CountsFor(sequence) {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SlotType != out[j].SlotType {
			return out[i].SlotType == models.SlotMain
		}
		return out[i].SlotNumber < out[j].SlotNumber
	})
	if len(out) > models.MaxCountingRiders {
		out = out[:models.MaxCountingRiders]
	}
	return out
}

func sortedJerseys(jerseys []models.JerseyWearer) []models.JerseyWearer {
	order := make(map[models.JerseyType]int, len(models.JerseyTypes))
	for i, jt := range models.JerseyTypes {
		order[jt] = i
	}
	out := append([]models.JerseyWearer(nil), jerseys...)
	sort.SliceStable(out, func(i, j int) bool { return order[out[i].JerseyType] < order[out[j].JerseyType] })
	return out
}
