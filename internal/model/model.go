// Package model defines the records exchanged with the assessment backend.
// The JSON tags follow the backend's REST contract; both the client and the
// development backend encode and decode through these types.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is the cached record of who is logged in.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	IsAdmin   bool   `json:"is_admin,omitempty"`
}

// EffectiveRole returns the user's role. Backends that only send is_admin
// are mapped onto the admin/user roles.
func (u *User) EffectiveRole() Role {
	if u.Role.Valid() {
		return u.Role
	}
	if u.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// IsAdminUser reports whether the user has the admin role.
func (u *User) IsAdminUser() bool {
	return u.EffectiveRole() == RoleAdmin
}

// DisplayName returns "First Last", falling back to the username.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return u.Username
}

// Choice is one selectable option of a question. IsCorrect is only sent to
// admin tooling.
type Choice struct {
	ID        int    `json:"id,omitempty"`
	Text      string `json:"text"`
	IsCorrect *bool  `json:"is_correct,omitempty"`
}

// Correct reports whether the choice is marked correct.
func (c Choice) Correct() bool {
	return c.IsCorrect != nil && *c.IsCorrect
}

// Question is a single item of an assessment.
type Question struct {
	ID           int      `json:"id,omitempty"`
	Text         string   `json:"text"`
	Choices      []Choice `json:"choices"`
	Subtopic     *int     `json:"subtopic,omitempty"`
	SubtopicName string   `json:"subtopic_name,omitempty"`
	Points       int      `json:"points,omitempty"`
}

// HasChoice reports whether choiceID belongs to the question.
func (q Question) HasChoice(choiceID int) bool {
	for _, c := range q.Choices {
		if c.ID == choiceID {
			return true
		}
	}
	return false
}

// ChoiceText returns the text of the given choice, or "" if unknown.
func (q Question) ChoiceText(choiceID int) string {
	for _, c := range q.Choices {
		if c.ID == choiceID {
			return c.Text
		}
	}
	return ""
}

// Assessment is a named, ordered set of questions owned by the backend.
type Assessment struct {
	ID              int        `json:"id,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Language        int        `json:"language,omitempty"`
	LanguageName    string     `json:"language_name,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	PassingScore    int        `json:"passing_score"`
	IsPublished     bool       `json:"is_published"`
	Questions       []Question `json:"questions,omitempty"`
	CreatedAt       time.Time  `json:"created_at,omitzero"`
}

// Question returns the question with the given ID.
func (a *Assessment) Question(id int) (Question, bool) {
	for _, q := range a.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Status is the backend-owned state of an attempt.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusPassed     Status = "passed"
	StatusFailed     Status = "failed"
)

// Normalize maps backend spellings ("PASSED", "in progress") onto the
// canonical status values. Unknown values are returned lowercased.
func (s Status) Normalize() Status {
	v := strings.ToLower(strings.TrimSpace(string(s)))
	v = strings.ReplaceAll(v, " ", "_")
	v = strings.ReplaceAll(v, "-", "_")
	return Status(v)
}

// Completed reports whether the attempt has a final outcome.
func (s Status) Completed() bool {
	n := s.Normalize()
	return n == StatusPassed || n == StatusFailed
}

// Label returns a human readable status.
func (s Status) Label() string {
	switch s.Normalize() {
	case StatusNotStarted, "":
		return "Not started"
	case StatusInProgress:
		return "In progress"
	case StatusPassed:
		return "Passed"
	case StatusFailed:
		return "Failed"
	default:
		return string(s)
	}
}

// UserAssessment links a user to one attempt of an assessment.
type UserAssessment struct {
	ID          int        `json:"id"`
	User        int        `json:"user"`
	Assessment  int        `json:"assessment"`
	Status      Status     `json:"status"`
	Score       *float64   `json:"score,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// AnswerSubmission is the body of a single answer submission.
type AnswerSubmission struct {
	UserAssessment int `json:"user_assessment"`
	Question       int `json:"question"`
	SelectedChoice int `json:"selected_choice"`
}

// AnswerReceipt is the backend's acknowledgement of a stored answer.
type AnswerReceipt struct {
	ID             int  `json:"id"`
	UserAssessment int  `json:"user_assessment"`
	Question       int  `json:"question"`
	SelectedChoice int  `json:"selected_choice"`
	IsCorrect      bool `json:"is_correct"`
}

// QuestionResult is the per-question outcome within a Result.
type QuestionResult struct {
	QuestionID   int    `json:"questionId"`
	QuestionText string `json:"questionText"`
	Subtopic     string `json:"subtopic"`
	IsCorrect    bool   `json:"isCorrect"`
	Points       int    `json:"points"`
	EarnedPoints int    `json:"earnedPoints"`
	SelectedText string `json:"selectedText"`
	CorrectText  string `json:"correctText"`
}

// Result is the backend-computed outcome of an attempt.
type Result struct {
	UserAssessment  int              `json:"user_assessment,omitempty"`
	Assessment      int              `json:"assessment"`
	AssessmentTitle string           `json:"assessment_title"`
	Status          Status           `json:"status"`
	Score           float64          `json:"score"`
	PassingScore    int              `json:"passing_score"`
	TimeTaken       Seconds          `json:"time_taken,omitempty"`
	Questions       []QuestionResult `json:"questions"`
}

// Seconds is a duration sent either as a number of seconds or as a
// "[D ]HH:MM:SS" string.
type Seconds int

// UnmarshalJSON accepts both encodings.
func (s *Seconds) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*s = Seconds(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("time_taken: %w", err)
	}
	v, err := parseClock(str)
	if err != nil {
		return fmt.Errorf("time_taken: %w", err)
	}
	*s = v
	return nil
}

func parseClock(str string) (Seconds, error) {
	str = strings.TrimSpace(str)
	if str == "" {
		return 0, nil
	}
	var days int
	if day, rest, ok := strings.Cut(str, " "); ok {
		d, err := strconv.Atoi(day)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", str)
		}
		days, str = d, rest
	}
	parts := strings.Split(str, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration %q", str)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, fmt.Errorf("invalid duration %q", str)
	}
	return Seconds(days*86400 + h*3600 + m*60 + int(sec)), nil
}

// Duration converts to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(s) * time.Second
}

// String renders "N minutes M seconds".
func (s Seconds) String() string {
	return fmt.Sprintf("%d minutes %d seconds", int(s)/60, int(s)%60)
}

// Passed reports the backend's verdict.
func (r *Result) Passed() bool {
	return r.Status.Normalize() == StatusPassed
}

// DashboardCounts are the per-status attempt counts of the current user.
type DashboardCounts struct {
	CompletedAssessments  int `json:"completedAssessments"`
	InProgressAssessments int `json:"inProgressAssessments"`
	NotStartedAssessments int `json:"notStartedAssessments"`
}

// RecentAssessment is one row of the dashboard's recent activity.
type RecentAssessment struct {
	ID     int      `json:"id,omitempty"`
	Title  string   `json:"title"`
	Status Status   `json:"status"`
	Score  *float64 `json:"score,omitempty"`
	Date   string   `json:"date"`
}

// DashboardStats is the user dashboard summary.
type DashboardStats struct {
	Stats             DashboardCounts    `json:"stats"`
	RecentAssessments []RecentAssessment `json:"recentAssessments"`
}

// Language is a programming language assessments are grouped by.
type Language struct {
	ID          int    `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Subtopic is a topic within a language that questions are tagged with.
type Subtopic struct {
	ID          int    `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Language    int    `json:"language"`
}

// LoginRequest is the body of POST auth/login/.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token and the user record.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// RegisterRequest is the body of POST auth/register/.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsAdmin   bool   `json:"is_admin"`
}

// RoleUpdate is the body of PUT admin/users/{id}/role/.
type RoleUpdate struct {
	Role Role `json:"role"`
}

// PublishUpdate is the body of PATCH assessments/{id}/.
type PublishUpdate struct {
	IsPublished bool `json:"is_published"`
}

// ResultsPath is the route of an assessment's result view.
func ResultsPath(assessmentID int) string {
	return fmt.Sprintf("/assessments/%d/results", assessmentID)
}

// TakePath is the route of an assessment's taking view.
func TakePath(assessmentID int) string {
	return fmt.Sprintf("/assessments/%d/take", assessmentID)
}
