package devserver

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/skillcheck-dev/skillcheck/internal/model"
)

type account struct {
	user model.User
	hash []byte
}

type answer struct {
	receipt model.AnswerReceipt
}

// store is the in-memory backend state. Every method takes the lock.
type store struct {
	mu  sync.RWMutex
	now func() time.Time

	cost int

	accounts    map[int]*account
	languages   []model.Language
	subtopics   []model.Subtopic
	assessments map[int]*model.Assessment
	attempts    map[int]*model.UserAssessment
	answers     map[int]*answer
	idempotency map[string]int

	nextID int
}

func newStore(now func() time.Time, cost int) *store {
	return &store{
		now:         now,
		cost:        cost,
		accounts:    make(map[int]*account),
		assessments: make(map[int]*model.Assessment),
		attempts:    make(map[int]*model.UserAssessment),
		answers:     make(map[int]*answer),
		idempotency: make(map[string]int),
	}
}

// id hands out IDs from one sequence so questions and choices never clash.
// Callers hold the lock.
func (s *store) id() int {
	s.nextID++
	return s.nextID
}

// -----------------------------------------------------------------------------
// Accounts
// -----------------------------------------------------------------------------

func (s *store) createUser(u model.User, password string) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return model.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if !u.Role.Valid() {
		u.Role = model.RoleUser
	}
	u.IsAdmin = u.Role == model.RoleAdmin
	s.accounts[u.ID] = &account{user: u, hash: hash}
	return u, nil
}

func (s *store) emailTaken(email string) bool {
	_, ok := s.userByEmail(email)
	return ok
}

func (s *store) usernameTaken(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.user.Username, username) {
			return true
		}
	}
	return false
}

func (s *store) userByEmail(email string) (*account, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.user.Email == email {
			cp := *a
			return &cp, true
		}
	}
	return nil, false
}

// authenticate checks credentials. Unknown emails still pay for a bcrypt
// comparison so timing does not reveal which accounts exist.
func (s *store) authenticate(email, password string) (model.User, bool) {
	acct, ok := s.userByEmail(email)
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return model.User{}, false
	}
	if bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		return model.User{}, false
	}
	return acct.user, true
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("skillcheck-dummy"), bcrypt.MinCost)

func (s *store) user(id int) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return model.User{}, false
	}
	return a.user, true
}

func (s *store) users() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) setRole(id int, role model.Role) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return model.User{}, false
	}
	a.user.Role = role
	a.user.IsAdmin = role == model.RoleAdmin
	return a.user, true
}

// -----------------------------------------------------------------------------
// Catalog
// -----------------------------------------------------------------------------

func (s *store) addLanguage(l model.Language) model.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.ID = s.id()
	s.languages = append(s.languages, l)
	return l
}

func (s *store) listLanguages() []model.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Language(nil), s.languages...)
}

func (s *store) language(id int) (model.Language, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.languages {
		if l.ID == id {
			return l, true
		}
	}
	return model.Language{}, false
}

func (s *store) addSubtopic(st model.Subtopic) model.Subtopic {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.ID = s.id()
	s.subtopics = append(s.subtopics, st)
	return st
}

func (s *store) listSubtopics(languageID int) []model.Subtopic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Subtopic
	for _, st := range s.subtopics {
		if languageID == 0 || st.Language == languageID {
			out = append(out, st)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Assessments
// -----------------------------------------------------------------------------

// putAssessment stores a, assigning IDs to the assessment (when id is 0),
// its questions and its choices.
func (s *store) putAssessment(id int, a model.Assessment) model.Assessment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == 0 {
		id = s.id()
		a.CreatedAt = s.now()
	} else if prev, ok := s.assessments[id]; ok {
		a.CreatedAt = prev.CreatedAt
	}
	a.ID = id
	for i := range a.Questions {
		q := &a.Questions[i]
		if q.ID == 0 {
			q.ID = s.id()
		}
		if q.Points == 0 {
			q.Points = 1
		}
		for j := range q.Choices {
			if q.Choices[j].ID == 0 {
				q.Choices[j].ID = s.id()
			}
			if q.Choices[j].IsCorrect == nil {
				f := false
				q.Choices[j].IsCorrect = &f
			}
		}
	}
	stored := a
	s.assessments[id] = &stored
	return stored
}

func (s *store) assessment(id int) (model.Assessment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assessments[id]
	if !ok {
		return model.Assessment{}, false
	}
	return *a, true
}

func (s *store) listAssessments() []model.Assessment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Assessment, 0, len(s.assessments))
	for _, a := range s.assessments {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) setPublished(id int, published bool) (model.Assessment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[id]
	if !ok {
		return model.Assessment{}, false
	}
	a.IsPublished = published
	return *a, true
}

func (s *store) deleteAssessment(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assessments[id]; !ok {
		return false
	}
	delete(s.assessments, id)
	for aid, ua := range s.attempts {
		if ua.Assessment == id {
			delete(s.attempts, aid)
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Attempts and answers
// -----------------------------------------------------------------------------

func (s *store) attemptsOf(userID int) []model.UserAssessment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.UserAssessment
	for _, ua := range s.attempts {
		if ua.User == userID {
			out = append(out, *ua)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) attemptFor(userID, assessmentID int) (model.UserAssessment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ua := s.findAttemptLocked(userID, assessmentID)
	if ua == nil {
		return model.UserAssessment{}, false
	}
	return *ua, true
}

func (s *store) findAttemptLocked(userID, assessmentID int) *model.UserAssessment {
	var found *model.UserAssessment
	for _, ua := range s.attempts {
		if ua.User == userID && ua.Assessment == assessmentID && (found == nil || ua.ID > found.ID) {
			found = ua
		}
	}
	return found
}

// startAttempt returns the user's attempt of assessmentID, creating it if
// needed. created reports whether a new record was made.
func (s *store) startAttempt(userID, assessmentID int) (ua model.UserAssessment, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.findAttemptLocked(userID, assessmentID); existing != nil {
		return *existing, false
	}
	now := s.now()
	rec := &model.UserAssessment{
		ID:         s.id(),
		User:       userID,
		Assessment: assessmentID,
		Status:     model.StatusNotStarted,
		StartedAt:  &now,
	}
	s.attempts[rec.ID] = rec
	return *rec, true
}

// answerError is a client error from recordAnswer.
type answerError struct {
	status int
	field  string
	msg    string
}

func (e *answerError) Error() string { return e.msg }

// recordAnswer stores an answer, replacing any earlier answer to the same
// question in the attempt. A repeated idempotency key returns the first
// receipt without touching state.
func (s *store) recordAnswer(userID int, sub model.AnswerSubmission, key string) (model.AnswerReceipt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scoped := ""
	if key != "" {
		scoped = keyScope(userID, key)
		if id, ok := s.idempotency[scoped]; ok {
			if ans, ok := s.answers[id]; ok {
				return ans.receipt, true, nil
			}
		}
	}

	ua, ok := s.attempts[sub.UserAssessment]
	if !ok || ua.User != userID {
		return model.AnswerReceipt{}, false, &answerError{status: 400, field: "user_assessment", msg: "Invalid user assessment."}
	}
	a, ok := s.assessments[ua.Assessment]
	if !ok {
		return model.AnswerReceipt{}, false, &answerError{status: 400, field: "user_assessment", msg: "Assessment no longer exists."}
	}
	q, ok := a.Question(sub.Question)
	if !ok {
		return model.AnswerReceipt{}, false, &answerError{status: 400, field: "question", msg: "Question does not belong to this assessment."}
	}
	var choice *model.Choice
	for i := range q.Choices {
		if q.Choices[i].ID == sub.SelectedChoice {
			choice = &q.Choices[i]
		}
	}
	if choice == nil {
		return model.AnswerReceipt{}, false, &answerError{status: 400, field: "selected_choice", msg: "Choice does not belong to this question."}
	}

	var rec *answer
	for _, ans := range s.answers {
		if ans.receipt.UserAssessment == ua.ID && ans.receipt.Question == q.ID {
			rec = ans
		}
	}
	if rec == nil {
		rec = &answer{receipt: model.AnswerReceipt{ID: s.id(), UserAssessment: ua.ID, Question: q.ID}}
		s.answers[rec.receipt.ID] = rec
	}
	rec.receipt.SelectedChoice = choice.ID
	rec.receipt.IsCorrect = choice.Correct()
	if scoped != "" {
		s.idempotency[scoped] = rec.receipt.ID
	}

	s.updateAttemptLocked(ua, a)
	return rec.receipt, false, nil
}

func keyScope(userID int, key string) string {
	return strconv.Itoa(userID) + ":" + key
}

// updateAttemptLocked moves the attempt to in_progress, or scores it once
// every question has an answer.
func (s *store) updateAttemptLocked(ua *model.UserAssessment, a *model.Assessment) {
	answers := s.answersLocked(ua.ID)
	if len(answers) < len(a.Questions) {
		ua.Status = model.StatusInProgress
		return
	}

	score := scoreAttempt(a, answers)
	now := s.now()
	ua.Score = &score
	ua.CompletedAt = &now
	if score >= float64(a.PassingScore) {
		ua.Status = model.StatusPassed
	} else {
		ua.Status = model.StatusFailed
	}
}

func (s *store) answersLocked(attemptID int) map[int]model.AnswerReceipt {
	out := make(map[int]model.AnswerReceipt)
	for _, ans := range s.answers {
		if ans.receipt.UserAssessment == attemptID {
			out[ans.receipt.Question] = ans.receipt
		}
	}
	return out
}

// scoreAttempt is earned points over total points, as a percentage rounded
// to two decimals.
func scoreAttempt(a *model.Assessment, answers map[int]model.AnswerReceipt) float64 {
	var earned, total int
	for _, q := range a.Questions {
		total += q.Points
		if ans, ok := answers[q.ID]; ok && ans.IsCorrect {
			earned += q.Points
		}
	}
	if total == 0 {
		return 0
	}
	return math.Round(float64(earned)/float64(total)*10000) / 100
}

// result builds the result view of the user's attempt of assessmentID.
func (s *store) result(userID, assessmentID int) (model.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ua := s.findAttemptLocked(userID, assessmentID)
	a, ok := s.assessments[assessmentID]
	if ua == nil || !ok {
		return model.Result{}, false
	}
	answers := s.answersLocked(ua.ID)

	r := model.Result{
		UserAssessment:  ua.ID,
		Assessment:      a.ID,
		AssessmentTitle: a.Title,
		Status:          model.Status(strings.ToUpper(string(ua.Status))),
		PassingScore:    a.PassingScore,
	}
	if ua.Score != nil {
		r.Score = *ua.Score
	}
	if ua.StartedAt != nil {
		end := s.now()
		if ua.CompletedAt != nil {
			end = *ua.CompletedAt
		}
		r.TimeTaken = model.Seconds(end.Sub(*ua.StartedAt) / time.Second)
	}

	for _, q := range a.Questions {
		qr := model.QuestionResult{
			QuestionID:   q.ID,
			QuestionText: q.Text,
			Points:       q.Points,
		}
		if q.Subtopic != nil {
			qr.Subtopic = s.subtopicNameLocked(*q.Subtopic)
		}
		for _, c := range q.Choices {
			if c.Correct() && qr.CorrectText == "" {
				qr.CorrectText = c.Text
			}
		}
		if ans, ok := answers[q.ID]; ok {
			qr.SelectedText = q.ChoiceText(ans.SelectedChoice)
			qr.IsCorrect = ans.IsCorrect
			if ans.IsCorrect {
				qr.EarnedPoints = q.Points
			}
		}
		r.Questions = append(r.Questions, qr)
	}
	return r, true
}

func (s *store) subtopicNameLocked(id int) string {
	for _, st := range s.subtopics {
		if st.ID == id {
			return st.Name
		}
	}
	return ""
}

// dashboard summarizes the user's attempts over published assessments.
func (s *store) dashboard(userID int) model.DashboardStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats model.DashboardStats
	var recent []model.UserAssessment
	for _, a := range s.assessments {
		if !a.IsPublished {
			continue
		}
		ua := s.findAttemptLocked(userID, a.ID)
		switch {
		case ua == nil || ua.Status.Normalize() == model.StatusNotStarted:
			stats.Stats.NotStartedAssessments++
		case ua.Status.Completed():
			stats.Stats.CompletedAssessments++
		default:
			stats.Stats.InProgressAssessments++
		}
		if ua != nil {
			recent = append(recent, *ua)
		}
	}

	sort.Slice(recent, func(i, j int) bool { return recent[i].ID > recent[j].ID })
	if len(recent) > 5 {
		recent = recent[:5]
	}
	stats.RecentAssessments = []model.RecentAssessment{}
	for _, ua := range recent {
		ra := model.RecentAssessment{
			ID:     ua.Assessment,
			Title:  s.assessments[ua.Assessment].Title,
			Status: ua.Status,
			Score:  ua.Score,
		}
		if ua.StartedAt != nil {
			ra.Date = ua.StartedAt.Format("2006-01-02")
		}
		stats.RecentAssessments = append(stats.RecentAssessments, ra)
	}
	return stats
}
