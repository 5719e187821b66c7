package selector

import (
	"regexp"
	"strings"
)

// Rating buckets a reliability score.
type Rating string

const (
	RatingPoor Rating = "Poor"
	RatingFair Rating = "Fair"
	RatingGood Rating = "Good"
)

// Reliability is a heuristic estimate of how well a selector survives page
// changes. It depends only on the selector string.
type Reliability struct {
	Score    int      `json:"score"`
	Rating   Rating   `json:"rating"`
	Feedback []string `json:"feedback"`
}

// maxDepth is the number of child combinators tolerated before the score is
// penalised.
const maxDepth = 4

var genericTagPrefix = regexp.MustCompile(`^(div|span)\b`)

type scoreRule struct {
	matches  func(sel string) bool
	points   int
	feedback string
}

var scoreRules = []scoreRule{
	{
		matches:  func(s string) bool { return strings.Contains(s, "#") },
		points:   40,
		feedback: "Uses an ID (+40)",
	},
	{
		matches:  func(s string) bool { return strings.Contains(s, "[data-") },
		points:   30,
		feedback: "Uses a data attribute (+30)",
	},
	{
		matches:  func(s string) bool { return strings.Contains(s, ".") },
		points:   20,
		feedback: "Uses a class (+20)",
	},
	{
		matches:  func(s string) bool { return strings.Contains(s, ":nth-of-type") },
		points:   -10,
		feedback: "Depends on element position (-10)",
	},
	{
		matches:  func(s string) bool { return genericTagPrefix.MatchString(s) },
		points:   -5,
		feedback: "Starts with a generic tag (-5)",
	},
	{
		matches:  func(s string) bool { return strings.Count(s, ">") > maxDepth },
		points:   -10,
		feedback: "Deeply nested path (-10)",
	},
}

// Score rates a selector from 0 to 100.
func Score(sel string) Reliability {
	sel = strings.TrimSpace(sel)
	r := Reliability{Feedback: []string{}}
	for _, rule := range scoreRules {
		if rule.matches(sel) {
			r.Score += rule.points
			r.Feedback = append(r.Feedback, rule.feedback)
		}
	}
	r.Score = min(max(r.Score, 0), 100)
	r.Rating = rate(r.Score)
	return r
}

func rate(score int) Rating {
	switch {
	case score < 30:
		return RatingPoor
	case score < 60:
		return RatingFair
	default:
		return RatingGood
	}
}
