// Package route maps application paths to views and decides, on every
// navigation, whether the current session may see them.
package route

import (
	"strings"

	"github.com/skillcheck-dev/skillcheck/internal/model"
)

// Access is the gate a route sits behind.
type Access int

const (
	// Public routes render for anyone.
	Public Access = iota
	// Protected routes need a current user.
	Protected
)

// Name identifies a view.
type Name string

const (
	Home             Name = "home"
	About            Name = "about"
	Login            Name = "login"
	Register         Name = "register"
	ForgotPassword   Name = "forgot-password"
	ResetPassword    Name = "reset-password"
	Dashboard        Name = "dashboard"
	Assessments      Name = "assessments"
	AssessmentDetail Name = "assessment"
	TakeAssessment   Name = "take"
	Results          Name = "results"
	AdminDashboard   Name = "admin-dashboard"
	AdminAssessments Name = "admin-assessments"
	AdminNew         Name = "admin-assessment-new"
	AdminEdit        Name = "admin-assessment-edit"
	AdminUsers       Name = "admin-users"
	NotFound         Name = "not-found"
)

// Well-known paths.
const (
	PathHome           = "/"
	PathLogin          = "/login"
	PathRegister       = "/register"
	PathForgotPassword = "/forgot-password"
	PathDashboard      = "/dashboard"
	PathAssessments    = "/assessments"
	PathAdminDashboard = "/admin/dashboard"
	PathAdminAssess    = "/admin/assessments"
	PathAdminNew       = "/admin/assessments/new"
	PathAdminUsers     = "/admin/users"
)

// Route is one entry of the route table. Pattern segments starting with
// ":" capture a parameter.
type Route struct {
	Name    Name
	Pattern string
	Access  Access
	// Role is the role the view itself insists on. The guard ignores it;
	// views call RequireRole.
	Role model.Role
}

// Params holds captured path parameters.
type Params map[string]string

// Table is the application's route table, in match order.
var Table = []Route{
	{Name: Home, Pattern: "/", Access: Public},
	{Name: About, Pattern: "/about", Access: Public},
	{Name: Login, Pattern: PathLogin, Access: Public},
	{Name: Register, Pattern: PathRegister, Access: Public},
	{Name: ForgotPassword, Pattern: PathForgotPassword, Access: Public},
	{Name: ResetPassword, Pattern: "/reset-password", Access: Public},

	{Name: Dashboard, Pattern: PathDashboard, Access: Protected},
	{Name: Assessments, Pattern: PathAssessments, Access: Protected},
	{Name: AssessmentDetail, Pattern: "/assessments/:id", Access: Protected},
	{Name: TakeAssessment, Pattern: "/assessments/:id/take", Access: Protected},
	{Name: Results, Pattern: "/assessments/:id/results", Access: Protected},

	{Name: AdminDashboard, Pattern: PathAdminDashboard, Access: Protected, Role: model.RoleAdmin},
	{Name: AdminAssessments, Pattern: PathAdminAssess, Access: Protected, Role: model.RoleAdmin},
	{Name: AdminNew, Pattern: PathAdminNew, Access: Protected, Role: model.RoleAdmin},
	{Name: AdminEdit, Pattern: "/admin/assessments/:id/edit", Access: Protected, Role: model.RoleAdmin},
	{Name: AdminUsers, Pattern: PathAdminUsers, Access: Protected, Role: model.RoleAdmin},
}

// Match finds the route for path. Query strings and a trailing slash are
// ignored. Unknown paths report false and the NotFound route.
func Match(path string) (Route, Params, bool) {
	segs := split(path)
	for _, r := range Table {
		if params, ok := matchPattern(split(r.Pattern), segs); ok {
			return r, params, true
		}
	}
	return Route{Name: NotFound, Pattern: path, Access: Public}, nil, false
}

func matchPattern(pattern, segs []string) (Params, bool) {
	if len(pattern) != len(segs) {
		return nil, false
	}
	var params Params
	for i, p := range pattern {
		if strings.HasPrefix(p, ":") {
			if segs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(Params)
			}
			params[p[1:]] = segs[i]
			continue
		}
		if p != segs[i] {
			return nil, false
		}
	}
	return params, true
}

func split(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Landing returns the home view for user: the admin dashboard for admins,
// the user dashboard otherwise, and login when nobody is logged in.
func Landing(user *model.User) string {
	switch {
	case user == nil:
		return PathLogin
	case user.IsAdminUser():
		return PathAdminDashboard
	default:
		return PathDashboard
	}
}

// RequireRole is the view-level role check. It returns the path to redirect
// to when user does not have role.
func RequireRole(user *model.User, role model.Role) (redirect string, ok bool) {
	if role == "" {
		return "", true
	}
	if user == nil {
		return PathLogin, false
	}
	if user.EffectiveRole() == role {
		return "", true
	}
	return Landing(user), false
}
