package admin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/skillcheck-dev/skillcheck/internal/model"
)

const goBasicsYAML = `
title: Go Basics
description: Fundamentals of the Go language
language: 1
passing_score: 60
questions:
  - text: What is the zero value of an int?
    subtopic: 3
    options: ["0", "nil", "undefined"]
    correct: "0"
  - text: Which keyword starts a goroutine?
    points: 2
    options: [go, async, spawn]
    correct: go
`

func TestLoadDraft(t *testing.T) {
	d, err := LoadDraft(strings.NewReader(goBasicsYAML))
	if err != nil {
		t.Fatalf("LoadDraft() error = %v", err)
	}
	if d.DurationMinutes != DefaultDurationMinutes {
		t.Errorf("DurationMinutes = %d, want default", d.DurationMinutes)
	}
	if d.PassingScore != 60 {
		t.Errorf("PassingScore = %d", d.PassingScore)
	}
	if len(d.Questions) != 2 || d.Questions[1].Correct != "go" {
		t.Errorf("Questions = %+v", d.Questions)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadDraft_RejectsUnknownFields(t *testing.T) {
	if _, err := LoadDraft(strings.NewReader("title: x\ntimelimit: 5\n")); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestDraft_Validate(t *testing.T) {
	valid := func() *Draft {
		d, _ := LoadDraft(strings.NewReader(goBasicsYAML))
		return d
	}

	tests := []struct {
		name   string
		mutate func(d *Draft)
		field  string
	}{
		{"missing title", func(d *Draft) { d.Title = "  " }, "title"},
		{"no questions", func(d *Draft) { d.Questions = nil }, "questions"},
		{"first question without subtopic", func(d *Draft) { d.Questions[0].Subtopic = 0 }, "questions[0].subtopic"},
		{"one option", func(d *Draft) { d.Questions[1].Options = []string{"go"} }, "questions[1].options"},
		{"no correct option", func(d *Draft) { d.Questions[1].Correct = "" }, "questions[1].correct"},
		{"correct not an option", func(d *Draft) { d.Questions[1].Correct = "thread" }, "questions[1].correct"},
		{"duplicate options", func(d *Draft) { d.Questions[1].Options = []string{"go", "go", "spawn"} }, "questions[1].options[1]"},
		{"passing score range", func(d *Draft) { d.PassingScore = 101 }, "passing_score"},
		{"duration", func(d *Draft) { d.DurationMinutes = 0 }, "duration_minutes"},
		{"question text", func(d *Draft) { d.Questions[0].Text = "" }, "questions[0].text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(d)

			err := d.Validate()
			var fields FieldErrors
			if !errors.As(err, &fields) {
				t.Fatalf("Validate() = %v, want FieldErrors", err)
			}
			found := false
			for _, fe := range fields {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for %s in %v", tt.field, fields)
			}
		})
	}
}

func TestDraft_RequestAndBack(t *testing.T) {
	d, err := LoadDraft(strings.NewReader(goBasicsYAML))
	if err != nil {
		t.Fatal(err)
	}

	a := d.Request()
	if a.Title != "Go Basics" || a.IsPublished || a.Language != 1 {
		t.Errorf("assessment = %+v", a)
	}
	q := a.Questions[0]
	if q.Subtopic == nil || *q.Subtopic != 3 || q.Points != DefaultPoints {
		t.Errorf("question 0 = %+v", q)
	}
	if !q.Choices[0].Correct() || q.Choices[1].Correct() {
		t.Errorf("choices = %+v", q.Choices)
	}
	if a.Questions[1].Subtopic != nil {
		t.Error("question without subtopic should send none")
	}

	back := FromAssessment(a)
	if back.Questions[1].Correct != "go" || back.Questions[0].Subtopic != 3 || back.Questions[1].Points != 2 {
		t.Errorf("FromAssessment() = %+v", back)
	}
}

type fakeAdminAPI struct {
	API
	created   *model.Assessment
	updatedID int
	published map[int]bool
	roles     map[int]model.Role
	users     []model.User
	list      []model.Assessment
}

func (f *fakeAdminAPI) CreateAssessment(_ context.Context, a *model.Assessment) (*model.Assessment, error) {
	f.created = a
	out := *a
	out.ID = 11
	return &out, nil
}

func (f *fakeAdminAPI) UpdateAssessment(_ context.Context, id int, a *model.Assessment) (*model.Assessment, error) {
	f.updatedID = id
	return a, nil
}

func (f *fakeAdminAPI) SetPublished(_ context.Context, id int, published bool) (*model.Assessment, error) {
	if f.published == nil {
		f.published = map[int]bool{}
	}
	f.published[id] = published
	return &model.Assessment{ID: id, IsPublished: published}, nil
}

func (f *fakeAdminAPI) SetUserRole(_ context.Context, id int, role model.Role) (*model.User, error) {
	if f.roles == nil {
		f.roles = map[int]model.Role{}
	}
	f.roles[id] = role
	return &model.User{ID: id, Role: role}, nil
}

func (f *fakeAdminAPI) ListUsers(context.Context) ([]model.User, error) { return f.users, nil }

func (f *fakeAdminAPI) ListAssessments(context.Context) ([]model.Assessment, error) {
	return f.list, nil
}

func TestSave(t *testing.T) {
	api := &fakeAdminAPI{}
	d, _ := LoadDraft(strings.NewReader(goBasicsYAML))

	created, err := Save(context.Background(), api, 0, d)
	if err != nil || created.ID != 11 || api.created == nil {
		t.Fatalf("Save(create) = %+v, %v", created, err)
	}
	if _, err := Save(context.Background(), api, 5, d); err != nil || api.updatedID != 5 {
		t.Fatalf("Save(update) err = %v, updated %d", err, api.updatedID)
	}

	d.Title = ""
	api.created = nil
	if _, err := Save(context.Background(), api, 0, d); err == nil || api.created != nil {
		t.Error("invalid drafts must not be sent")
	}
}

func TestTogglesAndOverview(t *testing.T) {
	api := &fakeAdminAPI{
		users: []model.User{{ID: 1, Role: model.RoleAdmin}, {ID: 2, Role: model.RoleUser}, {ID: 3, IsAdmin: true}},
		list:  []model.Assessment{{ID: 1, IsPublished: true}, {ID: 2}},
	}
	ctx := context.Background()

	if _, err := TogglePublished(ctx, api, model.Assessment{ID: 2}); err != nil || !api.published[2] {
		t.Errorf("TogglePublished: %v, %v", err, api.published)
	}
	if _, err := ToggleRole(ctx, api, model.User{ID: 1, Role: model.RoleAdmin}); err != nil || api.roles[1] != model.RoleUser {
		t.Errorf("ToggleRole(admin): %v, %v", err, api.roles)
	}
	if _, err := ToggleRole(ctx, api, model.User{ID: 2, Role: model.RoleUser}); err != nil || api.roles[2] != model.RoleAdmin {
		t.Errorf("ToggleRole(user): %v, %v", err, api.roles)
	}

	o, err := LoadOverview(ctx, api)
	if err != nil {
		t.Fatal(err)
	}
	want := Overview{TotalUsers: 3, Admins: 2, TotalAssessments: 2, PublishedAssessments: 1}
	if *o != want {
		t.Errorf("Overview = %+v, want %+v", *o, want)
	}
}
