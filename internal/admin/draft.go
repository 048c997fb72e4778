// Package admin holds the administrator's assessment authoring and the
// management overview.
package admin

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/skillcheck-dev/skillcheck/internal/model"
)

// Draft defaults.
const (
	DefaultDurationMinutes = 30
	DefaultPassingScore    = 70
	DefaultPoints          = 1
)

// Draft is the editable form of an assessment. Each question lists its
// options and names the correct one by text.
type Draft struct {
	Title           string          `yaml:"title"`
	Description     string          `yaml:"description"`
	Language        int             `yaml:"language"`
	DurationMinutes int             `yaml:"duration_minutes"`
	PassingScore    int             `yaml:"passing_score"`
	Published       bool            `yaml:"published"`
	Questions       []QuestionDraft `yaml:"questions"`
}

// QuestionDraft is one question of a Draft.
type QuestionDraft struct {
	ID       int      `yaml:"id,omitempty"`
	Text     string   `yaml:"text"`
	Options  []string `yaml:"options"`
	Correct  string   `yaml:"correct"`
	Subtopic int      `yaml:"subtopic,omitempty"`
	Points   int      `yaml:"points,omitempty"`
}

// NewDraft returns an empty Draft with the default duration and passing
// score.
func NewDraft() *Draft {
	return &Draft{
		DurationMinutes: DefaultDurationMinutes,
		PassingScore:    DefaultPassingScore,
	}
}

// LoadDraft decodes a YAML draft. Fields left out keep their defaults and
// unknown fields are rejected.
func LoadDraft(r io.Reader) (*Draft, error) {
	d := NewDraft()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(d); err != nil {
		if err == io.EOF {
			return d, nil
		}
		return nil, fmt.Errorf("failed to parse draft: %w", err)
	}
	return d, nil
}

// Marshal encodes the draft as YAML.
func (d *Draft) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// FieldError is one invalid draft field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldErrors is every problem found by Validate.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d problems in draft:", len(e))
	for _, fe := range e {
		sb.WriteString("\n  - ")
		sb.WriteString(fe.Error())
	}
	return sb.String()
}

// Validate checks the draft the way the authoring form does before saving.
// It returns nil or a FieldErrors.
func (d *Draft) Validate() error {
	var errs FieldErrors
	add := func(field, msg string) { errs = append(errs, FieldError{Field: field, Message: msg}) }

	if strings.TrimSpace(d.Title) == "" {
		add("title", "is required")
	}
	if d.DurationMinutes <= 0 {
		add("duration_minutes", "must be positive")
	}
	if d.PassingScore < 0 || d.PassingScore > 100 {
		add("passing_score", "must be between 0 and 100")
	}
	if len(d.Questions) == 0 {
		add("questions", "add at least one question")
	} else if d.Questions[0].Subtopic == 0 {
		add("questions[0].subtopic", "select a subtopic for at least the first question")
	}

	for i, q := range d.Questions {
		field := fmt.Sprintf("questions[%d]", i)
		if strings.TrimSpace(q.Text) == "" {
			add(field+".text", "is required")
		}
		if len(q.Options) < 2 {
			add(field+".options", "needs at least two options")
		}
		seen := make(map[string]bool)
		for j, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				add(fmt.Sprintf("%s.options[%d]", field, j), "is empty")
			}
			if seen[opt] {
				add(fmt.Sprintf("%s.options[%d]", field, j), "duplicates another option")
			}
			seen[opt] = true
		}
		if q.Correct == "" {
			add(field+".correct", "mark the correct option")
		} else if !seen[q.Correct] {
			add(field+".correct", fmt.Sprintf("%q is not one of the options", q.Correct))
		}
		if q.Points < 0 {
			add(field+".points", "must not be negative")
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Request builds the API payload.
func (d *Draft) Request() *model.Assessment {
	a := &model.Assessment{
		Title:           strings.TrimSpace(d.Title),
		Description:     strings.TrimSpace(d.Description),
		Language:        d.Language,
		DurationMinutes: d.DurationMinutes,
		PassingScore:    d.PassingScore,
		IsPublished:     d.Published,
	}
	for _, q := range d.Questions {
		question := model.Question{
			ID:     q.ID,
			Text:   strings.TrimSpace(q.Text),
			Points: q.Points,
		}
		if question.Points == 0 {
			question.Points = DefaultPoints
		}
		if q.Subtopic != 0 {
			st := q.Subtopic
			question.Subtopic = &st
		}
		for _, opt := range q.Options {
			correct := opt == q.Correct
			question.Choices = append(question.Choices, model.Choice{Text: opt, IsCorrect: &correct})
		}
		a.Questions = append(a.Questions, question)
	}
	return a
}

// FromAssessment turns an existing assessment into a Draft for editing.
func FromAssessment(a *model.Assessment) *Draft {
	d := &Draft{
		Title:           a.Title,
		Description:     a.Description,
		Language:        a.Language,
		DurationMinutes: a.DurationMinutes,
		PassingScore:    a.PassingScore,
		Published:       a.IsPublished,
	}
	for _, q := range a.Questions {
		qd := QuestionDraft{ID: q.ID, Text: q.Text, Points: q.Points}
		if q.Subtopic != nil {
			qd.Subtopic = *q.Subtopic
		}
		for _, c := range q.Choices {
			qd.Options = append(qd.Options, c.Text)
			if c.Correct() && qd.Correct == "" {
				qd.Correct = c.Text
			}
		}
		d.Questions = append(d.Questions, qd)
	}
	return d
}
