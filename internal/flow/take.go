package flow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/logging"
	"github.com/skillcheck-dev/skillcheck/internal/model"
)

// Answer is one selected choice.
type Answer struct {
	QuestionID int
	ChoiceID   int
}

// Session is one sitting of an assessment. It holds the Answer map in
// memory only; nothing is sent until Submit.
//
// Submit sends the answers one request at a time in presentation order and
// stops at the first failure. Each answer carries an idempotency key that
// stays the same across retries until the answer itself changes, and
// answers the backend already acknowledged are not sent again.
type Session struct {
	api    API
	logger *logging.Logger
	now    func() time.Time
	newKey func() string

	mu         sync.Mutex
	assessment *model.Assessment
	attempt    *model.UserAssessment
	answers    map[int]int
	keys       map[int]string
	acked      map[int]int
	opened     time.Time
	submitted  bool
	submitting bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionClock replaces time.Now for elapsed time.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithKeyGenerator replaces the idempotency key generator.
func WithKeyGenerator(gen func() string) SessionOption {
	return func(s *Session) { s.newKey = gen }
}

// WithSessionLogger sets the Session's logger.
func WithSessionLogger(l *logging.Logger) SessionOption {
	return func(s *Session) { s.logger = l.WithComponent("take") }
}

// Open fetches the assessment and starts an empty Answer map.
func Open(ctx context.Context, api API, assessmentID int, opts ...SessionOption) (*Session, error) {
	s := &Session{
		api:     api,
		logger:  logging.NopLogger(),
		now:     time.Now,
		newKey:  uuid.NewString,
		answers: make(map[int]int),
		keys:    make(map[int]string),
		acked:   make(map[int]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	a, err := api.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	s.assessment = a
	s.opened = s.now()
	s.logger.Info("assessment opened", "assessment_id", a.ID, "questions", len(a.Questions))
	return s, nil
}

// Assessment returns the assessment being taken.
func (s *Session) Assessment() *model.Assessment {
	return s.assessment
}

// Questions returns the questions in presentation order.
func (s *Session) Questions() []model.Question {
	return s.assessment.Questions
}

// Elapsed is the time since Open.
func (s *Session) Elapsed() time.Duration {
	return s.now().Sub(s.opened)
}

// Select records choiceID as the answer to questionID, replacing any earlier
// choice for that question.
func (s *Session) Select(questionID, choiceID int) error {
	q, ok := s.assessment.Question(questionID)
	if !ok {
		return errors.Wrapf(errors.ErrUnknownQuestion, "question %d", questionID)
	}
	if !q.HasChoice(choiceID) {
		return errors.Wrapf(errors.ErrUnknownChoice, "choice %d for question %d", choiceID, questionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return errors.ErrNothingToSubmit
	}
	if prev, ok := s.answers[questionID]; ok && prev == choiceID {
		return nil
	}
	s.answers[questionID] = choiceID
	s.keys[questionID] = s.newKey()
	return nil
}

// Selected returns the chosen choice for questionID.
func (s *Session) Selected(questionID int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.answers[questionID]
	return c, ok
}

// Answered is the number of questions with a selected choice.
func (s *Session) Answered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}

// Unanswered returns the IDs of questions without a choice, in order.
func (s *Session) Unanswered() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int
	for _, q := range s.assessment.Questions {
		if _, ok := s.answers[q.ID]; !ok {
			ids = append(ids, q.ID)
		}
	}
	return ids
}

// Answers returns the Answer map in presentation order.
func (s *Session) Answers() []Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderedLocked()
}

func (s *Session) orderedLocked() []Answer {
	var out []Answer
	for _, q := range s.assessment.Questions {
		if c, ok := s.answers[q.ID]; ok {
			out = append(out, Answer{QuestionID: q.ID, ChoiceID: c})
		}
	}
	return out
}

// Pending returns the answers Submit would still send.
func (s *Session) Pending() []Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Answer
	for _, a := range s.orderedLocked() {
		if acked, ok := s.acked[a.QuestionID]; !ok || acked != a.ChoiceID {
			out = append(out, a)
		}
	}
	return out
}

// CanSubmit reports why Submit would refuse, or nil.
func (s *Session) CanSubmit() error {
	if len(s.assessment.Questions) == 0 {
		return errors.ErrNoQuestions
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted || len(s.answers) == 0 {
		return errors.ErrNothingToSubmit
	}
	if s.submitting {
		return errors.Wrap(errors.ErrNothingToSubmit, "submission in progress")
	}
	return nil
}

// Submitting reports whether Submit is running.
func (s *Session) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// Submit resolves the attempt (creating it if still missing) and sends
// every unacknowledged answer, one at a time, in presentation order. On the
// first failure it stops and returns a *errors.SubmissionError; the Answer
// map is left intact and a later Submit resumes from the failed answer. On
// success the Answer map is discarded and the results path is returned.
func (s *Session) Submit(ctx context.Context) (string, error) {
	if err := s.CanSubmit(); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.submitting = true
	ordered := s.orderedLocked()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
	}()

	if s.attempt == nil {
		ua, err := resolveAttempt(ctx, s.api, s.logger, s.assessment.ID)
		if err != nil {
			return "", errors.Wrap(err, "failed to start attempt")
		}
		s.attempt = ua
	}

	total := len(ordered)
	for i, a := range ordered {
		s.mu.Lock()
		acked, done := s.acked[a.QuestionID]
		key := s.keys[a.QuestionID]
		s.mu.Unlock()
		if done && acked == a.ChoiceID {
			continue
		}

		sub := model.AnswerSubmission{
			UserAssessment: s.attempt.ID,
			Question:       a.QuestionID,
			SelectedChoice: a.ChoiceID,
		}
		if _, err := s.api.SubmitAnswer(ctx, sub, key); err != nil {
			s.logger.Warn("answer submission failed",
				"assessment_id", s.assessment.ID,
				"position", i+1,
				"total", total,
				"question_id", a.QuestionID,
				"error", err.Error(),
			)
			return "", errors.NewSubmissionError(i+1, total, a.QuestionID, err)
		}

		s.mu.Lock()
		s.acked[a.QuestionID] = a.ChoiceID
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.answers = make(map[int]int)
	s.keys = make(map[int]string)
	s.submitted = true
	s.mu.Unlock()

	s.logger.Info("assessment submitted", "assessment_id", s.assessment.ID, "answers", total)
	return model.ResultsPath(s.assessment.ID), nil
}

// Submitted reports whether every answer was acknowledged.
func (s *Session) Submitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}
