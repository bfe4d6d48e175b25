// Package scoring turns stage results, jersey assignments and final standings
// into points using a configurable rule table.
package scoring

import (
	"fmt"

	"github.com/interpolis/tourpoule/internal/models"
)

// Rule kinds as stored in the database.
const (
	KindStagePosition = "stage_position"
	KindJersey        = "jersey"
	KindFinalPosition = "final_position"
	KindFinalJersey   = "final_jersey"
)

// Condition is the closed set of things a rule can award points for.
type Condition interface {
	Kind() string
	isCondition()
}

// StagePosition matches a rider finishing a stage in position N.
type StagePosition struct{ N int }

// Jersey matches a rider wearing the jersey after a stage.
type Jersey struct{ Type models.JerseyType }

// FinalPosition matches a rider finishing the race in position N.
type FinalPosition struct{ N int }

// FinalJersey matches the final winner of a jersey classification.
type FinalJersey struct{ Type models.JerseyType }

func (StagePosition) Kind() string { return KindStagePosition }
func (Jersey) Kind() string        { return KindJersey }
func (FinalPosition) Kind() string { return KindFinalPosition }
func (FinalJersey) Kind() string   { return KindFinalJersey }

func (StagePosition) isCondition() {}
func (Jersey) isCondition()        {}
func (FinalPosition) isCondition() {}
func (FinalJersey) isCondition()   {}

// Rule awards Points when Condition holds.
type Rule struct {
	ID        int
	Condition Condition
	Points    int
}

// Decode converts a stored rule row into a Rule, validating it.
func Decode(r models.ScoringRule) (Rule, error) {
	var cond Condition
	switch r.Kind {
	case KindStagePosition, KindFinalPosition:
		if r.Position < 1 {
			return Rule{}, fmt.Errorf("rule %s: position must be at least 1, got %d", r.Kind, r.Position)
		}
		if r.JerseyType != "" {
			return Rule{}, fmt.Errorf("rule %s: unexpected jersey type %q", r.Kind, r.JerseyType)
		}
		if r.Kind == KindStagePosition {
			cond = StagePosition{N: r.Position}
		} else {
			cond = FinalPosition{N: r.Position}
		}
	case KindJersey, KindFinalJersey:
		jt, ok := models.ParseJerseyType(string(r.JerseyType))
		if !ok {
			return Rule{}, fmt.Errorf("rule %s: unknown jersey type %q", r.Kind, r.JerseyType)
		}
		if r.Position != 0 {
			return Rule{}, fmt.Errorf("rule %s: unexpected position %d", r.Kind, r.Position)
		}
		if r.Kind == KindJersey {
			cond = Jersey{Type: jt}
		} else {
			cond = FinalJersey{Type: jt}
		}
	default:
		return Rule{}, fmt.Errorf("unknown rule kind %q", r.Kind)
	}
	if r.Points < 0 {
		return Rule{}, fmt.Errorf("rule %s: points must not be negative", r.Kind)
	}
	return Rule{ID: r.ID, Condition: cond, Points: r.Points}, nil
}

// Encode converts a Rule back to its stored form.
func Encode(rule Rule) models.ScoringRule {
	row := models.ScoringRule{ID: rule.ID, Points: rule.Points}
	switch c := rule.Condition.(type) {
	case StagePosition:
		row.Kind, row.Position = KindStagePosition, c.N
	case FinalPosition:
		row.Kind, row.Position = KindFinalPosition, c.N
	case Jersey:
		row.Kind, row.JerseyType = KindJersey, c.Type
	case FinalJersey:
		row.Kind, row.JerseyType = KindFinalJersey, c.Type
	}
	return row
}

// RuleSet is a validated rule table indexed for lookup.
type RuleSet struct {
	stagePosition map[int]int
	jersey        map[models.JerseyType]int
	finalPosition map[int]int
	finalJersey   map[models.JerseyType]int
}

// NewRuleSet decodes and indexes rows. Two rules with the same condition are
// rejected.
func NewRuleSet(rows []models.ScoringRule) (*RuleSet, error) {
	rs := &RuleSet{
		stagePosition: make(map[int]int),
		jersey:        make(map[models.JerseyType]int),
		finalPosition: make(map[int]int),
		finalJersey:   make(map[models.JerseyType]int),
	}
	seen := make(map[Condition]bool)
	for _, row := range rows {
		rule, err := Decode(row)
		if err != nil {
			return nil, err
		}
		if seen[rule.Condition] {
			return nil, fmt.Errorf("duplicate rule %s", Describe(rule.Condition))
		}
		seen[rule.Condition] = true

		switch c := rule.Condition.(type) {
		case StagePosition:
			rs.stagePosition[c.N] = rule.Points
		case Jersey:
			rs.jersey[c.Type] = rule.Points
		case FinalPosition:
			rs.finalPosition[c.N] = rule.Points
		case FinalJersey:
			rs.finalJersey[c.Type] = rule.Points
		}
	}
	return rs, nil
}

// Points returns the points awarded for a condition, 0 when no rule matches.
func (rs *RuleSet) Points(c Condition) int {
	switch c := c.(type) {
	case StagePosition:
		return rs.stagePosition[c.N]
	case Jersey:
		return rs.jersey[c.Type]
	case FinalPosition:
		return rs.finalPosition[c.N]
	case FinalJersey:
		return rs.finalJersey[c.Type]
	}
	return 0
}

// Describe renders a condition as a breakdown reason, e.g. "stage_position:3"
// or "jersey:geel".
func Describe(c Condition) string {
	switch c := c.(type) {
	case StagePosition:
		return fmt.Sprintf("%s:%d", KindStagePosition, c.N)
	case Jersey:
		return fmt.Sprintf("%s:%s", KindJersey, c.Type)
	case FinalPosition:
		return fmt.Sprintf("%s:%d", KindFinalPosition, c.N)
	case FinalJersey:
		return fmt.Sprintf("%s:%s", KindFinalJersey, c.Type)
	}
	return "unknown"
}

// DefaultRules is the rule table seeded into an empty database.
func DefaultRules() []models.ScoringRule {
	var rows []models.ScoringRule
	for i, pts := range []int{50, 40, 32, 26, 22, 18, 14, 10, 6, 2} {
		rows = append(rows, models.ScoringRule{Kind: KindStagePosition, Position: i + 1, Points: pts})
	}
	jerseyPoints := map[models.JerseyType]int{
		models.JerseyYellow: 10, models.JerseyGreen: 6, models.JerseyPolka: 6, models.JerseyWhite: 4,
	}
	for _, jt := range models.JerseyTypes {
		rows = append(rows, models.ScoringRule{Kind: KindJersey, JerseyType: jt, Points: jerseyPoints[jt]})
	}
	for i, pts := range []int{150, 120, 100, 80, 70, 60, 50, 40, 30, 20} {
		rows = append(rows, models.ScoringRule{Kind: KindFinalPosition, Position: i + 1, Points: pts})
	}
	finalJerseyPoints := map[models.JerseyType]int{
		models.JerseyYellow: 60, models.JerseyGreen: 40, models.JerseyPolka: 40, models.JerseyWhite: 30,
	}
	for _, jt := range models.JerseyTypes {
		rows = append(rows, models.ScoringRule{Kind: KindFinalJersey, JerseyType: jt, Points: finalJerseyPoints[jt]})
	}
	return rows
}
