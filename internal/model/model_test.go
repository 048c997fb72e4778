package model

import (
	"encoding/json"
	"testing"
)

func TestUser_EffectiveRole(t *testing.T) {
	tests := []struct {
		name string
		user User
		want Role
	}{
		{"explicit admin", User{Role: RoleAdmin}, RoleAdmin},
		{"explicit user wins over flag", User{Role: RoleUser, IsAdmin: true}, RoleUser},
		{"flag only", User{IsAdmin: true}, RoleAdmin},
		{"unknown role", User{Role: "evaluator"}, RoleUser},
		{"empty", User{}, RoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.EffectiveRole(); got != tt.want {
				t.Errorf("EffectiveRole() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUser_DisplayName(t *testing.T) {
	if got := (&User{Username: "ada_l", FirstName: "Ada", LastName: "Lovelace"}).DisplayName(); got != "Ada Lovelace" {
		t.Errorf("DisplayName() = %q", got)
	}
	if got := (&User{Username: "ada_l"}).DisplayName(); got != "ada_l" {
		t.Errorf("DisplayName() fallback = %q", got)
	}
}

func TestStatus_Normalize(t *testing.T) {
	tests := []struct {
		in        Status
		want      Status
		completed bool
		label     string
	}{
		{"PASSED", StatusPassed, true, "Passed"},
		{"failed", StatusFailed, true, "Failed"},
		{"in progress", StatusInProgress, false, "In progress"},
		{"in-progress", StatusInProgress, false, "In progress"},
		{"", "", false, "Not started"},
		{"not_started", StatusNotStarted, false, "Not started"},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
			if got := tt.in.Completed(); got != tt.completed {
				t.Errorf("Completed() = %v, want %v", got, tt.completed)
			}
			if got := tt.in.Label(); got != tt.label {
				t.Errorf("Label() = %q, want %q", got, tt.label)
			}
		})
	}
}

func TestQuestion_Choices(t *testing.T) {
	q := Question{ID: 1, Choices: []Choice{{ID: 10, Text: "A"}, {ID: 11, Text: "B"}}}

	if !q.HasChoice(11) || q.HasChoice(12) {
		t.Error("HasChoice returned wrong membership")
	}
	if q.ChoiceText(10) != "A" || q.ChoiceText(99) != "" {
		t.Error("ChoiceText returned wrong text")
	}
}

func TestChoice_IsCorrectOmittedForUsers(t *testing.T) {
	data, err := json.Marshal(Choice{ID: 1, Text: "A"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"id":1,"text":"A"}` {
		t.Errorf("Marshal() = %s", data)
	}

	yes := true
	if !(Choice{IsCorrect: &yes}).Correct() {
		t.Error("Correct() = false for is_correct=true")
	}
}

func TestResult_DecodesBackendShape(t *testing.T) {
	payload := `{
		"assessment": 4,
		"assessment_title": "Go Basics",
		"status": "PASSED",
		"score": 66.7,
		"passing_score": 60,
		"time_taken": "00:04:12",
		"questions": [
			{"questionId": 1, "questionText": "Zero value of int?", "subtopic": "types",
			 "isCorrect": true, "points": 1, "earnedPoints": 1, "selectedText": "0", "correctText": "0"}
		]
	}`

	var r Result
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !r.Passed() {
		t.Error("Passed() = false for status PASSED")
	}
	if r.TimeTaken != 252 {
		t.Errorf("TimeTaken = %d, want 252", r.TimeTaken)
	}
	if len(r.Questions) != 1 || r.Questions[0].Subtopic != "types" || !r.Questions[0].IsCorrect {
		t.Errorf("questions decoded wrong: %+v", r.Questions)
	}
}

func TestPaths(t *testing.T) {
	if ResultsPath(3) != "/assessments/3/results" {
		t.Errorf("ResultsPath = %q", ResultsPath(3))
	}
	if TakePath(3) != "/assessments/3/take" {
		t.Errorf("TakePath = %q", TakePath(3))
	}
}

func TestSeconds_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Seconds
	}{
		{`252`, 252},
		{`61.9`, 61},
		{`"00:04:12"`, 252},
		{`"1 00:00:05"`, 86405},
		{`"00:00:07.250000"`, 7},
		{`null`, 0},
	}
	for _, tt := range tests {
		var s Seconds
		if err := json.Unmarshal([]byte(tt.in), &s); err != nil {
			t.Errorf("Unmarshal(%s) error = %v", tt.in, err)
			continue
		}
		if s != tt.want {
			t.Errorf("Unmarshal(%s) = %d, want %d", tt.in, s, tt.want)
		}
	}

	var s Seconds
	if err := json.Unmarshal([]byte(`"soon"`), &s); err == nil {
		t.Error("expected error for malformed duration")
	}
	if Seconds(125).String() != "2 minutes 5 seconds" {
		t.Errorf("String() = %q", Seconds(125).String())
	}
}
