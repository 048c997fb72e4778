// Package result turns a backend-computed result into what the user sees.
// The only arithmetic here is the display percentage; score and pass/fail
// are the backend's.
package result

import (
	"context"
	"math"

	"github.com/skillcheck-dev/skillcheck/internal/model"
)

// Band classifies a display percentage.
type Band string

const (
	BandGood Band = "good"
	BandFair Band = "fair"
	BandPoor Band = "poor"
)

// BandFor returns good from 80, fair from 60, poor below.
func BandFor(percent int) Band {
	switch {
	case percent >= 80:
		return BandGood
	case percent >= 60:
		return BandFair
	default:
		return BandPoor
	}
}

// Fetcher fetches a result by assessment ID.
type Fetcher interface {
	GetResult(ctx context.Context, assessmentID int) (*model.Result, error)
}

// Report is the display model of a Result.
type Report struct {
	AssessmentID int
	Result       model.Result
}

// Load fetches the result of assessmentID.
func Load(ctx context.Context, f Fetcher, assessmentID int) (*Report, error) {
	r, err := f.GetResult(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	return NewReport(assessmentID, r), nil
}

// NewReport wraps r.
func NewReport(assessmentID int, r *model.Result) *Report {
	if assessmentID == 0 {
		assessmentID = r.Assessment
	}
	return &Report{AssessmentID: assessmentID, Result: *r}
}

// Title is the assessment title.
func (r *Report) Title() string {
	return r.Result.AssessmentTitle
}

// Status is the backend's status label.
func (r *Report) Status() string {
	return r.Result.Status.Label()
}

// Passed is the backend's verdict.
func (r *Report) Passed() bool {
	return r.Result.Passed()
}

// Correct counts correctly answered questions.
func (r *Report) Correct() int {
	n := 0
	for _, q := range r.Result.Questions {
		if q.IsCorrect {
			n++
		}
	}
	return n
}

// Total is the number of questions in the result.
func (r *Report) Total() int {
	return len(r.Result.Questions)
}

// Percent is round(correct/total*100), or 0 without questions.
func (r *Report) Percent() int {
	return percent(r.Correct(), r.Total())
}

// Band classifies Percent.
func (r *Report) Band() Band {
	return BandFor(r.Percent())
}

// SubtopicStat is the per-subtopic tally.
type SubtopicStat struct {
	Name    string
	Correct int
	Total   int
}

// Percent is the subtopic's display percentage.
func (s SubtopicStat) Percent() int {
	return percent(s.Correct, s.Total)
}

// Subtopics tallies correctness per subtopic in first-seen order.
func (r *Report) Subtopics() []SubtopicStat {
	var stats []SubtopicStat
	index := make(map[string]int)
	for _, q := range r.Result.Questions {
		i, ok := index[q.Subtopic]
		if !ok {
			i = len(stats)
			index[q.Subtopic] = i
			stats = append(stats, SubtopicStat{Name: q.Subtopic})
		}
		stats[i].Total++
		if q.IsCorrect {
			stats[i].Correct++
		}
	}
	return stats
}

// Detail is one line of the details view. CorrectText is only set when
// the answer was wrong.
type Detail struct {
	Number       int
	QuestionID   int
	Question     string
	Selected     string
	Correct      bool
	CorrectText  string
	EarnedPoints int
	Points       int
}

// Details lists every question with the user's answer.
func (r *Report) Details() []Detail {
	details := make([]Detail, 0, len(r.Result.Questions))
	for i, q := range r.Result.Questions {
		d := Detail{
			Number:       i + 1,
			QuestionID:   q.QuestionID,
			Question:     q.QuestionText,
			Selected:     q.SelectedText,
			Correct:      q.IsCorrect,
			EarnedPoints: q.EarnedPoints,
			Points:       q.Points,
		}
		if !q.IsCorrect {
			d.CorrectText = q.CorrectText
		}
		details = append(details, d)
	}
	return details
}

// RetakePath leads back into the taking view.
func (r *Report) RetakePath() string {
	return model.TakePath(r.AssessmentID)
}

// BackPath leads to the assessment list.
func (r *Report) BackPath() string {
	return "/assessments"
}

func percent(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
