// Package achievement evaluates student achievements after exam results are
// imported.
//
// Evaluation is split in two: the Checker loads the facts of one attempt from
// PostgreSQL, and the rules decide on those facts alone. Awards are stored
// once per student and achievement; re-importing an exam never awards twice.
package achievement

import (
	"github.com/JonMunkholm/examimport/internal/layout"
)

// Achievement codes seeded by the schema.
const (
	CodeFirstExam        = "first_exam"
	CodeNetThreshold     = "net_threshold"
	CodeClassTop         = "class_top"
	CodeScoreImprovement = "score_improvement"
)

// DefaultNetThresholds is the total net that unlocks net_threshold per exam type.
var DefaultNetThresholds = map[layout.ExamType]float64{
	layout.LGS: 70,
	layout.TYT: 80,
	layout.AYT: 60,
}

// Facts is everything the rules know about one attempt.
type Facts struct {
	StudentID    string
	AttemptID    string
	ExamType     layout.ExamType
	AttemptCount int // attempts of the student across all exams, this one included
	TotalNet     float64

	// BestClassRank is the best positive class rank over the attempt's
	// scores, zero when none was reported.
	BestClassRank int

	Scores         map[string]float64 // score type -> score
	PreviousScores map[string]float64 // same, for the previous exam of the same type
}

// Rule awards one achievement when Match holds.
type Rule struct {
	Code  string
	Name  string
	Match func(Facts) bool
}

// DefaultRules returns the built-in rule set. thresholds may be nil.
func DefaultRules(thresholds map[layout.ExamType]float64) []Rule {
	if thresholds == nil {
		thresholds = DefaultNetThresholds
	}
	return []Rule{
		{
			Code:  CodeFirstExam,
			Name:  "İlk Sınav",
			Match: func(f Facts) bool { return f.AttemptCount == 1 },
		},
		{
			Code: CodeNetThreshold,
			Name: "Net Avcısı",
			Match: func(f Facts) bool {
				limit, ok := thresholds[f.ExamType]
				return ok && limit > 0 && f.TotalNet >= limit
			},
		},
		{
			Code:  CodeClassTop,
			Name:  "Sınıf Birincisi",
			Match: func(f Facts) bool { return f.BestClassRank == 1 },
		},
		{
			Code:  CodeScoreImprovement,
			Name:  "Yükselişte",
			Match: improved,
		},
	}
}

func improved(f Facts) bool {
	for typ, score := range f.Scores {
		if prev, ok := f.PreviousScores[typ]; ok && score > prev {
			return true
		}
	}
	return false
}

// Evaluate returns the rules that match f, skipping codes already earned.
func Evaluate(rules []Rule, f Facts, earned map[string]bool) []Rule {
	var out []Rule
	for _, r := range rules {
		if earned[r.Code] {
			continue
		}
		if r.Match(f) {
			out = append(out, r)
		}
	}
	return out
}
