package route

import (
	"reflect"
	"testing"

	"github.com/skillcheck-dev/skillcheck/internal/model"
)

type fakeSession struct {
	user    *model.User
	loading bool
}

func (f *fakeSession) Current() (*model.User, bool) { return f.user, f.user != nil }
func (f *fakeSession) Loading() bool                { return f.loading }

func TestMatch(t *testing.T) {
	tests := []struct {
		path   string
		want   Name
		params Params
		found  bool
	}{
		{"/", Home, nil, true},
		{"", Home, nil, true},
		{"/login", Login, nil, true},
		{"/login/", Login, nil, true},
		{"/dashboard?tab=recent", Dashboard, nil, true},
		{"/assessments/12", AssessmentDetail, Params{"id": "12"}, true},
		{"/assessments/12/take", TakeAssessment, Params{"id": "12"}, true},
		{"/assessments/Basics/results", Results, Params{"id": "Basics"}, true},
		{"/admin/assessments/new", AdminNew, nil, true},
		{"/admin/assessments/3/edit", AdminEdit, Params{"id": "3"}, true},
		{"/nope", NotFound, nil, false},
		{"/assessments/1/take/extra", NotFound, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, params, found := Match(tt.path)
			if r.Name != tt.want || found != tt.found {
				t.Errorf("Match(%q) = %s, %v; want %s, %v", tt.path, r.Name, found, tt.want, tt.found)
			}
			if !reflect.DeepEqual(params, tt.params) {
				t.Errorf("params = %v, want %v", params, tt.params)
			}
		})
	}
}

func TestGuard_Check(t *testing.T) {
	user := &model.User{ID: 1, Role: model.RoleUser}
	admin := &model.User{ID: 2, Role: model.RoleAdmin}

	tests := []struct {
		name    string
		session fakeSession
		path    string
		want    Decision
	}{
		{"public anonymous", fakeSession{}, "/login", Decision{Allow: true}},
		{"public while loading", fakeSession{loading: true}, "/about", Decision{Allow: true}},
		{"protected while loading", fakeSession{loading: true}, "/dashboard", Decision{Wait: true}},
		{"protected anonymous", fakeSession{}, "/dashboard", Decision{Redirect: PathLogin, Replace: true}},
		{"protected user", fakeSession{user: user}, "/assessments/1/take", Decision{Allow: true}},
		// The guard does not check roles.
		{"admin route as user", fakeSession{user: user}, "/admin/users", Decision{Allow: true}},
		{"admin route as admin", fakeSession{user: admin}, "/admin/users", Decision{Allow: true}},
		{"unknown path", fakeSession{}, "/missing", Decision{Allow: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuard(&tt.session)
			if got := g.Check(tt.path); got != tt.want {
				t.Errorf("Check(%q) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

func TestLandingAndRequireRole(t *testing.T) {
	user := &model.User{Role: model.RoleUser}
	admin := &model.User{Role: model.RoleAdmin}
	legacyAdmin := &model.User{IsAdmin: true}

	if Landing(nil) != PathLogin || Landing(user) != PathDashboard || Landing(admin) != PathAdminDashboard {
		t.Error("Landing returned wrong paths")
	}
	if Landing(legacyAdmin) != PathAdminDashboard {
		t.Error("is_admin users should land on the admin dashboard")
	}

	if redirect, ok := RequireRole(user, model.RoleAdmin); ok || redirect != PathDashboard {
		t.Errorf("RequireRole(user, admin) = %q, %v", redirect, ok)
	}
	if _, ok := RequireRole(admin, model.RoleAdmin); !ok {
		t.Error("RequireRole(admin, admin) should pass")
	}
	if redirect, ok := RequireRole(nil, model.RoleUser); ok || redirect != PathLogin {
		t.Errorf("RequireRole(nil) = %q, %v", redirect, ok)
	}
	if redirect, ok := RequireRole(nil, ""); !ok || redirect != "" {
		t.Errorf("RequireRole(nil, \"\") = %q, %v; want public access", redirect, ok)
	}
	if _, ok := RequireRole(user, ""); !ok {
		t.Error("RequireRole(user, \"\") should pass")
	}
}

func TestNavigator_AnonymousRedirectReplacesHistory(t *testing.T) {
	nav := NewNavigator(NewGuard(&fakeSession{}), "/")

	d := nav.Navigate("/dashboard")
	if d.Redirect != PathLogin {
		t.Fatalf("Navigate() = %+v", d)
	}
	if got := nav.History(); !reflect.DeepEqual(got, []string{"/", "/login"}) {
		t.Errorf("History() = %v", got)
	}

	if path, ok := nav.Back(); !ok || path != "/" {
		t.Errorf("Back() = %q, %v; want /", path, ok)
	}
}

func TestNavigator_LogoutThenProtectedCheckRedirects(t *testing.T) {
	sess := &fakeSession{user: &model.User{ID: 1}}
	nav := NewNavigator(NewGuard(sess), "/")

	nav.Navigate("/dashboard")
	nav.Navigate("/assessments")

	// Logout clears the user synchronously.
	sess.user = nil

	if d := nav.Navigate("/assessments/1/take"); d.Redirect != PathLogin {
		t.Errorf("Navigate after logout = %+v", d)
	}

	// Going back onto a protected entry is re-checked too.
	path, _ := nav.Back()
	if path != PathLogin {
		t.Errorf("Back() after logout landed on %q", path)
	}
}

func TestNavigator_WaitsWhileLoading(t *testing.T) {
	sess := &fakeSession{loading: true}
	nav := NewNavigator(NewGuard(sess), "/")

	if d := nav.Navigate("/dashboard"); !d.Wait {
		t.Fatalf("Navigate while loading = %+v", d)
	}
	if nav.Current() != "/" {
		t.Errorf("Current() = %q while loading", nav.Current())
	}

	sess.loading = false
	sess.user = &model.User{ID: 1}
	if d := nav.Resume(); !d.Allow {
		t.Errorf("Resume() = %+v", d)
	}
	if nav.Current() != "/dashboard" {
		t.Errorf("Current() = %q after Resume", nav.Current())
	}
}

func TestNavigator_ResumeRedirectsStartPath(t *testing.T) {
	nav := NewNavigator(NewGuard(&fakeSession{}), "/assessments")

	if d := nav.Resume(); d.Redirect != PathLogin {
		t.Errorf("Resume() = %+v", d)
	}
	if got := nav.History(); !reflect.DeepEqual(got, []string{"/login"}) {
		t.Errorf("History() = %v", got)
	}
}

func TestNavigator_ForceLoginAndReset(t *testing.T) {
	sess := &fakeSession{user: &model.User{ID: 1}}
	nav := NewNavigator(NewGuard(sess), "/")
	nav.Navigate("/dashboard")
	nav.Navigate("/assessments")

	nav.ForceLogin()
	if got := nav.History(); !reflect.DeepEqual(got, []string{"/login"}) {
		t.Errorf("History() after ForceLogin = %v", got)
	}

	nav.Reset("/dashboard")
	if got := nav.History(); !reflect.DeepEqual(got, []string{"/dashboard"}) {
		t.Errorf("History() after Reset = %v", got)
	}
	if _, ok := nav.Back(); ok {
		t.Error("Back() should fail on single-entry history")
	}
}
