// Package flow implements assessment browsing and taking: listing the
// published assessments with the action each one offers, starting an
// attempt, collecting answers and submitting them one by one.
package flow

import (
	"context"
	"strings"

	"github.com/gobwas/glob"

	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/logging"
	"github.com/skillcheck-dev/skillcheck/internal/model"
)

// API is the subset of the backend client the flow uses.
type API interface {
	ListAssessments(ctx context.Context) ([]model.Assessment, error)
	GetAssessment(ctx context.Context, id int) (*model.Assessment, error)
	ListUserAssessments(ctx context.Context) ([]model.UserAssessment, error)
	StartUserAssessment(ctx context.Context, assessmentID int) (*model.UserAssessment, error)
	SubmitAnswer(ctx context.Context, sub model.AnswerSubmission, idempotencyKey string) (*model.AnswerReceipt, error)
	DashboardStats(ctx context.Context) (*model.DashboardStats, error)
}

// Action is what the list offers for an assessment.
type Action string

const (
	ActionStart       Action = "Start"
	ActionContinue    Action = "Continue"
	ActionViewResults Action = "View Results"
)

// ActionFor derives the action from the user's attempt, if any.
func ActionFor(attempt *model.UserAssessment) Action {
	if attempt == nil {
		return ActionStart
	}
	switch s := attempt.Status.Normalize(); {
	case s == model.StatusInProgress:
		return ActionContinue
	case s.Completed():
		return ActionViewResults
	default:
		return ActionStart
	}
}

// Entry is one row of the assessment list.
type Entry struct {
	Assessment model.Assessment
	Attempt    *model.UserAssessment
	Action     Action
}

// Target is the path the entry's action leads to.
func (e Entry) Target() string {
	if e.Action == ActionViewResults {
		return model.ResultsPath(e.Assessment.ID)
	}
	return model.TakePath(e.Assessment.ID)
}

// Listing is the result of Browser.List.
type Listing struct {
	Entries []Entry
	// Sample is set when the entries are built-in sample data shown because
	// the backend could not be reached.
	Sample bool
	// Cause is the backend failure that triggered the sample data.
	Cause error
}

// SampleNotice is shown above sample listings.
const SampleNotice = "Showing sample data: the server could not be reached."

// Browser lists and starts assessments.
type Browser struct {
	api            API
	logger         *logging.Logger
	sampleFallback bool
}

// BrowserOption configures a Browser.
type BrowserOption func(*Browser)

// WithSampleFallback enables the built-in sample listing when the backend
// is unreachable. It is a development affordance and off by default.
func WithSampleFallback(enabled bool) BrowserOption {
	return func(b *Browser) { b.sampleFallback = enabled }
}

// WithBrowserLogger sets the Browser's logger.
func WithBrowserLogger(l *logging.Logger) BrowserOption {
	return func(b *Browser) { b.logger = l.WithComponent("flow") }
}

// NewBrowser creates a Browser.
func NewBrowser(api API, opts ...BrowserOption) *Browser {
	b := &Browser{api: api, logger: logging.NopLogger()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// List returns the published assessments, optionally narrowed by a
// case-insensitive glob on the title, each with the current user's attempt
// and the action it offers. A filter without glob metacharacters matches
// as a substring.
func (b *Browser) List(ctx context.Context, filter string) (*Listing, error) {
	match, err := compileFilter(filter)
	if err != nil {
		return nil, err
	}

	assessments, err := b.api.ListAssessments(ctx)
	if err != nil {
		return b.fallback(err, match)
	}
	attempts, err := b.api.ListUserAssessments(ctx)
	if err != nil {
		return b.fallback(err, match)
	}

	return &Listing{Entries: buildEntries(assessments, attempts, match)}, nil
}

func (b *Browser) fallback(err error, match func(string) bool) (*Listing, error) {
	if !b.sampleFallback || !errors.IsRetryable(err) {
		return nil, err
	}
	b.logger.Warn("backend unreachable, showing sample assessments", "error", err.Error())
	return &Listing{
		Entries: buildEntries(SampleAssessments(), SampleAttempts(), match),
		Sample:  true,
		Cause:   err,
	}, nil
}

func buildEntries(assessments []model.Assessment, attempts []model.UserAssessment, match func(string) bool) []Entry {
	entries := make([]Entry, 0, len(assessments))
	for _, a := range assessments {
		if !a.IsPublished || !match(a.Title) {
			continue
		}
		attempt := FindAttempt(attempts, a.ID)
		entries = append(entries, Entry{
			Assessment: a,
			Attempt:    attempt,
			Action:     ActionFor(attempt),
		})
	}
	return entries
}

func compileFilter(filter string) (func(string) bool, error) {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return func(string) bool { return true }, nil
	}
	if !strings.ContainsAny(filter, "*?[{") {
		filter = "*" + filter + "*"
	}
	g, err := glob.Compile(filter)
	if err != nil {
		return nil, errors.NewValidationError("invalid title filter").WithField("match").WithValue(filter).WithCause(err)
	}
	return func(title string) bool { return g.Match(strings.ToLower(title)) }, nil
}

// FindAttempt returns the user's attempt of assessmentID. When several
// exist the most recent (highest ID) wins.
func FindAttempt(attempts []model.UserAssessment, assessmentID int) *model.UserAssessment {
	var found *model.UserAssessment
	for i := range attempts {
		ua := attempts[i]
		if ua.Assessment != assessmentID {
			continue
		}
		if found == nil || ua.ID > found.ID {
			found = &ua
		}
	}
	return found
}

// Start makes sure an attempt exists for assessmentID, asking the backend
// to create one if needed.
func (b *Browser) Start(ctx context.Context, assessmentID int) (*model.UserAssessment, error) {
	return resolveAttempt(ctx, b.api, b.logger, assessmentID)
}

// Dashboard returns the user dashboard summary.
func (b *Browser) Dashboard(ctx context.Context) (*model.DashboardStats, bool, error) {
	stats, err := b.api.DashboardStats(ctx)
	if err != nil {
		if b.sampleFallback && errors.IsRetryable(err) {
			b.logger.Warn("backend unreachable, showing sample dashboard", "error", err.Error())
			return SampleDashboard(), true, nil
		}
		return nil, false, err
	}
	return stats, false, nil
}

func resolveAttempt(ctx context.Context, api API, logger *logging.Logger, assessmentID int) (*model.UserAssessment, error) {
	attempts, err := api.ListUserAssessments(ctx)
	if err != nil {
		return nil, err
	}
	if ua := FindAttempt(attempts, assessmentID); ua != nil {
		return ua, nil
	}

	ua, err := api.StartUserAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	logger.Info("attempt created", "assessment_id", assessmentID, "user_assessment_id", ua.ID)
	return ua, nil
}
