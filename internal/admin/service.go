package admin

import (
	"context"

	"github.com/skillcheck-dev/skillcheck/internal/model"
)

// API is the subset of the backend client the admin views use.
type API interface {
	ListAssessments(ctx context.Context) ([]model.Assessment, error)
	GetAssessment(ctx context.Context, id int) (*model.Assessment, error)
	CreateAssessment(ctx context.Context, a *model.Assessment) (*model.Assessment, error)
	UpdateAssessment(ctx context.Context, id int, a *model.Assessment) (*model.Assessment, error)
	SetPublished(ctx context.Context, id int, published bool) (*model.Assessment, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	SetUserRole(ctx context.Context, userID int, role model.Role) (*model.User, error)
}

// Save validates the draft and creates it, or updates assessment id when
// id is non-zero.
func Save(ctx context.Context, api API, id int, d *Draft) (*model.Assessment, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if id != 0 {
		return api.UpdateAssessment(ctx, id, d.Request())
	}
	return api.CreateAssessment(ctx, d.Request())
}

// TogglePublished flips the published flag of a.
func TogglePublished(ctx context.Context, api API, a model.Assessment) (*model.Assessment, error) {
	return api.SetPublished(ctx, a.ID, !a.IsPublished)
}

// ToggleRole swaps a user between the admin and user roles.
func ToggleRole(ctx context.Context, api API, u model.User) (*model.User, error) {
	role := model.RoleAdmin
	if u.IsAdminUser() {
		role = model.RoleUser
	}
	return api.SetUserRole(ctx, u.ID, role)
}

// Overview is the admin dashboard summary.
type Overview struct {
	TotalUsers           int
	Admins               int
	TotalAssessments     int
	PublishedAssessments int
}

// LoadOverview counts users and assessments.
func LoadOverview(ctx context.Context, api API) (*Overview, error) {
	users, err := api.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	assessments, err := api.ListAssessments(ctx)
	if err != nil {
		return nil, err
	}

	o := &Overview{TotalUsers: len(users), TotalAssessments: len(assessments)}
	for _, u := range users {
		if u.IsAdminUser() {
			o.Admins++
		}
	}
	for _, a := range assessments {
		if a.IsPublished {
			o.PublishedAssessments++
		}
	}
	return o, nil
}
