package stageimport

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/interpolis/tourpoule/internal/models"
)

// maxNameTokens bounds the prefix search for rider names in space-separated
// lines.
const maxNameTokens = 6

var (
	timePattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)
	gapPattern  = regexp.MustCompile(`^\+\s*(\d{1,2}:\d{2}(?::\d{2})?)$`)
	// timeLike catches tokens meant as a time column, valid or not.
	timeLike = regexp.MustCompile(`^(\+|\d+:)`)

	sameTimeTokens = map[string]bool{"s.t.": true, "s.t": true, "st": true, ",,": true}
	statusTokens   = map[string]bool{"dnf": true, "dns": true, "otl": true, "dsq": true, "dnq": true, "hd": true, "-": true}
	headerTokens   = map[string]bool{"rnk": true, "rank": true, "pos": true, "#": true, "rider": true, "renner": true, "naam": true, "name": true}
)

// Result is a successfully matched line.
type Result struct {
	Line        int    `json:"line"`
	Position    int    `json:"position"`
	RiderID     int    `json:"riderId"`
	TimeSeconds *int   `json:"timeSeconds"`
	Gap         string `json:"gap,omitempty"`
	MatchedName string `json:"matchedName"`
}

// LineError describes a line that could not be turned into a result.
type LineError struct {
	Line    int    `json:"line"`
	Content string `json:"content"`
	Error   string `json:"error"`
}

// Validation is the outcome of parsing a block of result text.
type Validation struct {
	Valid         bool        `json:"valid"`
	Results       []Result    `json:"results"`
	Errors        []LineError `json:"errors"`
	UnmatchedText string      `json:"unmatchedText"`
}

// ParseTime parses H:MM:SS or M:SS into seconds.
func ParseTime(s string) (int, bool) {
	m := timePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	if b >= 60 {
		return 0, false
	}
	if m[3] == "" {
		return a*60 + b, true
	}
	c, _ := strconv.Atoi(m[3])
	if c >= 60 {
		return 0, false
	}
	return a*3600 + b*60 + c, true
}

// timeState tracks the leader's and the previous finisher's time so gap
// notations can be resolved to absolute times.
type timeState struct {
	leader *int
	prev   *int
}

// resolve interprets a time column. It returns nil for DNF/DNS markers and
// missing times; a time is never zero. Gaps and same-time markers need an
// earlier time to resolve against.
func (ts *timeState) resolve(tok string) (*int, string, error) {
	lower := strings.ToLower(tok)
	switch {
	case tok == "":
		return nil, "", nil
	case statusTokens[lower]:
		return nil, strings.ToUpper(tok), nil
	case sameTimeTokens[lower]:
		if ts.prev == nil {
			return nil, "", fmt.Errorf("same-time marker %q without a previous finisher time", tok)
		}
		v := *ts.prev
		return &v, tok, nil
	}

	if m := gapPattern.FindStringSubmatch(tok); m != nil {
		gap, ok := ParseTime(m[1])
		if !ok {
			return nil, "", fmt.Errorf("malformed time gap %q", tok)
		}
		if ts.leader == nil {
			return nil, "", fmt.Errorf("time gap %q without a leader time", tok)
		}
		v := *ts.leader + gap
		ts.prev = &v
		return &v, tok, nil
	}

	secs, ok := ParseTime(tok)
	if !ok {
		return nil, "", fmt.Errorf("malformed time %q", tok)
	}
	// Rows after the leader often carry the gap without a plus sign.
	if ts.leader != nil && secs < *ts.leader {
		v := *ts.leader + secs
		ts.prev = &v
		return &v, "+" + tok, nil
	}
	if secs == 0 {
		return nil, "", fmt.Errorf("time gap %q without a leader time", tok)
	}
	v := secs
	if ts.leader == nil {
		ts.leader = &v
	}
	ts.prev = &v
	return &v, "", nil
}

func isTimeToken(tok string) bool {
	lower := strings.ToLower(tok)
	if sameTimeTokens[lower] || gapPattern.MatchString(tok) {
		return true
	}
	_, ok := ParseTime(tok)
	return ok
}

// Parse validates pasted result text against the matcher. Blank lines and
// header lines are skipped; every other line yields either a Result or a
// LineError.
func Parse(text string, m *Matcher) Validation {
	v := Validation{Results: []Result{}, Errors: []LineError{}}
	seenRider := make(map[int]int)
	seenPosition := make(map[int]int)
	var ts timeState
	var failed []string

	fail := func(lineNo int, content, msg string) {
		v.Errors = append(v.Errors, LineError{Line: lineNo, Content: content, Error: msg})
		failed = append(failed, content)
	}

	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		content := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(content) == "" {
			continue
		}

		tabbed := strings.Contains(content, "\t")
		fields := splitFields(content, tabbed)
		if isHeader(fields) {
			continue
		}

		position, status, err := parsePosition(fields[0])
		if err != nil {
			fail(lineNo, content, err.Error())
			continue
		}
		rest := fields[1:]

		timeTok := ""
		if status != "" {
			timeTok = status
		}
		nameFields := rest
		if n := len(rest); n > 0 && status == "" {
			last := rest[n-1]
			switch {
			case n >= 2 && rest[n-2] == "+":
				timeTok = "+" + last
				nameFields = rest[:n-2]
			case isTimeToken(last) || statusTokens[strings.ToLower(last)] || timeLike.MatchString(last):
				timeTok = last
				nameFields = rest[:n-1]
			}
		}

		rider, name, err := matchName(m, nameFields, tabbed)
		if err != nil {
			fail(lineNo, content, err.Error())
			continue
		}

		if prev, dup := seenRider[rider.ID]; dup {
			fail(lineNo, content, fmt.Sprintf("duplicate rider %s (already on line %d)", rider.FullName(), prev))
			continue
		}
		if prev, dup := seenPosition[position]; dup && position > 0 {
			fail(lineNo, content, fmt.Sprintf("duplicate position %d (already on line %d)", position, prev))
			continue
		}

		secs, gap, err := ts.resolve(timeTok)
		if err != nil {
			fail(lineNo, content, err.Error())
			continue
		}
		if position > 0 {
			seenPosition[position] = lineNo
		}
		seenRider[rider.ID] = lineNo

		v.Results = append(v.Results, Result{
			Line:        lineNo,
			Position:    position,
			RiderID:     rider.ID,
			TimeSeconds: secs,
			Gap:         gap,
			MatchedName: name,
		})
	}

	v.Valid = len(v.Errors) == 0 && len(v.Results) > 0
	v.UnmatchedText = strings.Join(failed, "\n")
	return v
}

func splitFields(line string, tabbed bool) []string {
	if !tabbed {
		return strings.Fields(line)
	}
	var out []string
	for _, f := range strings.Split(line, "\t") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isHeader(fields []string) bool {
	if _, err := strconv.Atoi(fields[0]); err == nil {
		return false
	}
	for _, f := range fields {
		if headerTokens[strings.ToLower(strings.Trim(f, ".:"))] {
			return true
		}
	}
	return false
}

// parsePosition reads the leading rank. Status markers such as DNF yield
// position 0 and the marker itself.
func parsePosition(tok string) (int, string, error) {
	tok = strings.TrimSuffix(tok, ".")
	if statusTokens[strings.ToLower(tok)] {
		return 0, strings.ToUpper(tok), nil
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, "", fmt.Errorf("missing position: %q is not a number", tok)
	}
	if n < 1 {
		return 0, "", fmt.Errorf("invalid position %d", n)
	}
	return n, "", nil
}

func matchName(m *Matcher, fields []string, tabbed bool) (models.Rider, string, error) {
	if len(fields) == 0 {
		return models.Rider{}, "", fmt.Errorf("missing rider name")
	}
	if tabbed {
		r, ok, ambiguous := m.Match(fields[0])
		switch {
		case ambiguous:
			return models.Rider{}, "", fmt.Errorf("ambiguous rider name %q", fields[0])
		case !ok:
			return models.Rider{}, "", fmt.Errorf("unknown rider %q", fields[0])
		}
		return r, r.FullName(), nil
	}

	limit := len(fields)
	if limit > maxNameTokens {
		limit = maxNameTokens
	}
	for n := limit; n >= 1; n-- {
		candidate := strings.Join(fields[:n], " ")
		r, ok, ambiguous := m.Match(candidate)
		if ambiguous {
			return models.Rider{}, "", fmt.Errorf("ambiguous rider name %q", candidate)
		}
		if ok {
			return r, r.FullName(), nil
		}
	}

	guess := fields[0]
	if len(fields) > 1 {
		guess += " " + fields[1]
	}
	return models.Rider{}, "", fmt.Errorf("unknown rider %q", guess)
}
