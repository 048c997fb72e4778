package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/model"
)

// -----------------------------------------------------------------------------
// Auth
// -----------------------------------------------------------------------------

// Login exchanges credentials for a token and user record.
func (c *Client) Login(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	var resp model.LoginResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "auth/login/",
		body:   model.LoginRequest{Email: email, Password: password},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account. It does not log the user in.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) error {
	return c.do(ctx, request{method: http.MethodPost, path: "auth/register/", body: req}, nil)
}

// ForgotPassword asks the backend to send a password reset email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "auth/forgot-password/",
		body:   map[string]string{"email": email},
	}, nil)
}

// Me returns the backend's current record of the logged-in user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "users/me/"}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DashboardStats returns the current user's dashboard summary.
func (c *Client) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	var stats model.DashboardStats
	if err := c.do(ctx, request{method: http.MethodGet, path: "users/user_dashboard_stats/"}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// -----------------------------------------------------------------------------
// Assessments
// -----------------------------------------------------------------------------

// ListAssessments returns every assessment visible to the caller, published
// or not. Filtering is the caller's job.
func (c *Client) ListAssessments(ctx context.Context) ([]model.Assessment, error) {
	return list[model.Assessment](ctx, c, "assessments/", nil)
}

// GetAssessment returns one assessment with its questions and choices.
func (c *Client) GetAssessment(ctx context.Context, id int) (*model.Assessment, error) {
	var a model.Assessment
	if err := c.do(ctx, request{method: http.MethodGet, path: assessmentPath(id)}, &a); err != nil {
		return nil, notFound(err, "assessment", id)
	}
	return &a, nil
}

// notFound turns a 404 for a single resource into a NotFoundError.
func notFound(err error, resource string, id int) error {
	if errors.Is(err, errors.ErrNotFound) {
		return errors.NewNotFoundError(resource, strconv.Itoa(id)).WithCause(err)
	}
	return err
}

// CreateAssessment creates an assessment (admin).
func (c *Client) CreateAssessment(ctx context.Context, a *model.Assessment) (*model.Assessment, error) {
	var created model.Assessment
	if err := c.do(ctx, request{method: http.MethodPost, path: "assessments/", body: a}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateAssessment replaces an assessment (admin).
func (c *Client) UpdateAssessment(ctx context.Context, id int, a *model.Assessment) (*model.Assessment, error) {
	var updated model.Assessment
	if err := c.do(ctx, request{method: http.MethodPut, path: assessmentPath(id), body: a}, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetPublished toggles an assessment's visibility to users (admin).
func (c *Client) SetPublished(ctx context.Context, id int, published bool) (*model.Assessment, error) {
	var updated model.Assessment
	err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   assessmentPath(id),
		body:   model.PublishUpdate{IsPublished: published},
	}, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteAssessment removes an assessment (admin).
func (c *Client) DeleteAssessment(ctx context.Context, id int) error {
	return c.do(ctx, request{method: http.MethodDelete, path: assessmentPath(id)}, nil)
}

func assessmentPath(id int) string {
	return fmt.Sprintf("assessments/%d/", id)
}

// -----------------------------------------------------------------------------
// Attempts
// -----------------------------------------------------------------------------

// ListUserAssessments returns the current user's attempts.
func (c *Client) ListUserAssessments(ctx context.Context) ([]model.UserAssessment, error) {
	return list[model.UserAssessment](ctx, c, "user-assessments/", nil)
}

// StartUserAssessment asks the backend to create an attempt record.
func (c *Client) StartUserAssessment(ctx context.Context, assessmentID int) (*model.UserAssessment, error) {
	var ua model.UserAssessment
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "user-assessments/start/",
		body:   map[string]int{"assessment": assessmentID},
	}, &ua)
	if err != nil {
		return nil, err
	}
	return &ua, nil
}

// SubmitAnswer stores a single answer. The idempotency key lets the backend
// recognize a resubmission of the same answer; an empty key is not sent.
func (c *Client) SubmitAnswer(ctx context.Context, sub model.AnswerSubmission, idempotencyKey string) (*model.AnswerReceipt, error) {
	req := request{method: http.MethodPost, path: "user-answers/", body: sub}
	if idempotencyKey != "" {
		req.headers = map[string]string{IdempotencyHeader: idempotencyKey}
	}

	var receipt model.AnswerReceipt
	if err := c.do(ctx, req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// GetResult returns the computed result of the current user's attempt of
// the given assessment.
func (c *Client) GetResult(ctx context.Context, assessmentID int) (*model.Result, error) {
	var r model.Result
	path := fmt.Sprintf("user-assessments/by-assessment/%d/", assessmentID)
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &r); err != nil {
		return nil, notFound(err, "result for assessment", assessmentID)
	}
	return &r, nil
}

// -----------------------------------------------------------------------------
// Catalog
// -----------------------------------------------------------------------------

// ListLanguages returns the languages assessments can target.
func (c *Client) ListLanguages(ctx context.Context) ([]model.Language, error) {
	return list[model.Language](ctx, c, "languages/", nil)
}

// ListSubtopics returns the subtopics of a language. A zero languageID
// returns every subtopic.
func (c *Client) ListSubtopics(ctx context.Context, languageID int) ([]model.Subtopic, error) {
	var q url.Values
	if languageID != 0 {
		q = url.Values{"language": {strconv.Itoa(languageID)}}
	}
	return list[model.Subtopic](ctx, c, "subtopics/", q)
}

// CreateLanguage adds a language (admin).
func (c *Client) CreateLanguage(ctx context.Context, l model.Language) (*model.Language, error) {
	var created model.Language
	if err := c.do(ctx, request{method: http.MethodPost, path: "languages/", body: l}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateSubtopic adds a subtopic to a language (admin).
func (c *Client) CreateSubtopic(ctx context.Context, st model.Subtopic) (*model.Subtopic, error) {
	var created model.Subtopic
	if err := c.do(ctx, request{method: http.MethodPost, path: "subtopics/", body: st}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// -----------------------------------------------------------------------------
// Admin users
// -----------------------------------------------------------------------------

// ListUsers returns every account (admin).
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	return list[model.User](ctx, c, "admin/users/", nil)
}

// SetUserRole changes a user's role (admin).
func (c *Client) SetUserRole(ctx context.Context, userID int, role model.Role) (*model.User, error) {
	var u model.User
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   fmt.Sprintf("admin/users/%d/role/", userID),
		body:   model.RoleUpdate{Role: role},
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
