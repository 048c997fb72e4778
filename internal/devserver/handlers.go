package devserver

import (
	"net/http"
	"net/mail"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skillcheck-dev/skillcheck/internal/api"
	"github.com/skillcheck-dev/skillcheck/internal/model"
)

func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

func fieldErrors(c *gin.Context, errs map[string][]string) {
	c.JSON(http.StatusBadRequest, errs)
}

// paramID parses a positive integer path parameter, answering 404 when it
// is not one.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		detail(c, http.StatusNotFound, "Not found.")
		return 0, false
	}
	return id, true
}

// -----------------------------------------------------------------------------
// Auth
// -----------------------------------------------------------------------------

func (s *Server) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "Email and password are required.")
		return
	}

	u, ok := s.store.authenticate(req.Email, req.Password)
	if !ok {
		s.logger.Info("login rejected", "email", req.Email)
		detail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	token, err := s.tokens.issue(u)
	if err != nil {
		s.logger.Error("failed to sign token", "error", err)
		detail(c, http.StatusInternalServerError, "Could not issue token.")
		return
	}
	s.logger.Info("login", "user_id", u.ID)
	c.JSON(http.StatusOK, model.LoginResponse{Token: token, User: u})
}

func (s *Server) register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "Malformed request body.")
		return
	}

	errs := map[string][]string{}
	add := func(field, msg string) { errs[field] = append(errs[field], msg) }

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	switch {
	case req.Username == "":
		add("username", "This field may not be blank.")
	case s.store.usernameTaken(req.Username):
		add("username", "A user with that username already exists.")
	}
	switch {
	case req.Email == "":
		add("email", "This field may not be blank.")
	case !validEmail(req.Email):
		add("email", "Enter a valid email address.")
	case s.store.emailTaken(req.Email):
		add("email", "A user with this email already exists.")
	}
	if len(req.Password) < minPasswordLength {
		add("password", "This password is too short. It must contain at least 8 characters.")
	}
	if req.Password != req.Password2 {
		add("password2", "Password fields didn't match.")
	}
	if len(errs) > 0 {
		fieldErrors(c, errs)
		return
	}

	role := model.RoleUser
	if req.IsAdmin {
		role = model.RoleAdmin
	}
	u, err := s.store.createUser(model.User{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      role,
	}, req.Password)
	if err != nil {
		s.logger.Error("failed to create user", "error", err)
		detail(c, http.StatusInternalServerError, "Could not create user.")
		return
	}
	s.logger.Info("registered", "user_id", u.ID, "role", u.Role)
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": u})
}

const minPasswordLength = 8

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// forgotPassword always answers the same way so it cannot be used to probe
// for accounts.
func (s *Server) forgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fieldErrors(c, map[string][]string{"email": {"This field is required."}})
		return
	}
	if s.store.emailTaken(req.Email) {
		s.logger.Info("password reset requested", "email", req.Email)
	}
	c.JSON(http.StatusOK, gin.H{"message": "If an account exists for this email, a reset link has been sent."})
}

func (s *Server) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (s *Server) dashboardStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.dashboard(currentUser(c).ID))
}

// -----------------------------------------------------------------------------
// Assessments
// -----------------------------------------------------------------------------

// view decorates an assessment for u. Only admins see which choices are
// correct.
func (s *Server) view(a model.Assessment, u model.User) model.Assessment {
	if l, ok := s.store.language(a.Language); ok {
		a.LanguageName = l.Name
	}
	subtopics := make(map[int]string)
	for _, st := range s.store.listSubtopics(0) {
		subtopics[st.ID] = st.Name
	}

	admin := u.IsAdminUser()
	questions := make([]model.Question, len(a.Questions))
	for i, q := range a.Questions {
		if q.Subtopic != nil {
			q.SubtopicName = subtopics[*q.Subtopic]
		}
		choices := make([]model.Choice, len(q.Choices))
		for j, ch := range q.Choices {
			if !admin {
				ch.IsCorrect = nil
			}
			choices[j] = ch
		}
		q.Choices = choices
		questions[i] = q
	}
	a.Questions = questions
	return a
}

func (s *Server) listAssessments(c *gin.Context) {
	u := currentUser(c)
	out := []model.Assessment{}
	for _, a := range s.store.listAssessments() {
		out = append(out, s.view(a, u))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getAssessment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	u := currentUser(c)
	a, ok := s.store.assessment(id)
	if !ok || (!a.IsPublished && !u.IsAdminUser()) {
		detail(c, http.StatusNotFound, "Not found.")
		return
	}
	c.JSON(http.StatusOK, s.view(a, u))
}

func (s *Server) bindAssessment(c *gin.Context) (model.Assessment, bool) {
	var a model.Assessment
	if err := c.ShouldBindJSON(&a); err != nil {
		detail(c, http.StatusBadRequest, "Malformed request body.")
		return a, false
	}
	errs := map[string][]string{}
	if strings.TrimSpace(a.Title) == "" {
		errs["title"] = []string{"This field may not be blank."}
	}
	if a.Language != 0 {
		if _, ok := s.store.language(a.Language); !ok {
			errs["language"] = []string{"Invalid pk \"" + strconv.Itoa(a.Language) + "\" - object does not exist."}
		}
	}
	for i, q := range a.Questions {
		if strings.TrimSpace(q.Text) == "" {
			errs["questions"] = append(errs["questions"], "Question "+strconv.Itoa(i+1)+" has no text.")
		}
		if len(q.Choices) < 2 {
			errs["questions"] = append(errs["questions"], "Question "+strconv.Itoa(i+1)+" needs at least two choices.")
		}
	}
	if len(errs) > 0 {
		fieldErrors(c, errs)
		return a, false
	}
	return a, true
}

func (s *Server) createAssessment(c *gin.Context) {
	a, ok := s.bindAssessment(c)
	if !ok {
		return
	}
	created := s.store.putAssessment(0, a)
	s.logger.Info("assessment created", "assessment_id", created.ID)
	c.JSON(http.StatusCreated, s.view(created, currentUser(c)))
}

func (s *Server) updateAssessment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, ok := s.store.assessment(id); !ok {
		detail(c, http.StatusNotFound, "Not found.")
		return
	}
	a, ok := s.bindAssessment(c)
	if !ok {
		return
	}
	updated := s.store.putAssessment(id, a)
	c.JSON(http.StatusOK, s.view(updated, currentUser(c)))
}

func (s *Server) patchAssessment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		IsPublished *bool `json:"is_published"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.IsPublished == nil {
		fieldErrors(c, map[string][]string{"is_published": {"This field is required."}})
		return
	}
	a, ok := s.store.setPublished(id, *req.IsPublished)
	if !ok {
		detail(c, http.StatusNotFound, "Not found.")
		return
	}
	c.JSON(http.StatusOK, s.view(a, currentUser(c)))
}

func (s *Server) deleteAssessment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if !s.store.deleteAssessment(id) {
		detail(c, http.StatusNotFound, "Not found.")
		return
	}
	c.Status(http.StatusNoContent)
}

// -----------------------------------------------------------------------------
// Attempts
// -----------------------------------------------------------------------------

func (s *Server) listUserAssessments(c *gin.Context) {
	out := s.store.attemptsOf(currentUser(c).ID)
	if out == nil {
		out = []model.UserAssessment{}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) startUserAssessment(c *gin.Context) {
	var req struct {
		Assessment int `json:"assessment" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fieldErrors(c, map[string][]string{"assessment": {"This field is required."}})
		return
	}
	u := currentUser(c)
	a, ok := s.store.assessment(req.Assessment)
	if !ok || (!a.IsPublished && !u.IsAdminUser()) {
		fieldErrors(c, map[string][]string{"assessment": {"Assessment is not available."}})
		return
	}

	ua, created := s.store.startAttempt(u.ID, a.ID)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.logger.Info("attempt started", "user_id", u.ID, "assessment_id", a.ID, "attempt_id", ua.ID)
	}
	c.JSON(status, ua)
}

func (s *Server) submitAnswer(c *gin.Context) {
	var sub model.AnswerSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		detail(c, http.StatusBadRequest, "Malformed request body.")
		return
	}
	u := currentUser(c)
	key := strings.TrimSpace(c.GetHeader(api.IdempotencyHeader))

	receipt, replayed, err := s.store.recordAnswer(u.ID, sub, key)
	if err != nil {
		if ae, ok := err.(*answerError); ok {
			c.JSON(ae.status, gin.H{ae.field: []string{ae.msg}})
			return
		}
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if replayed {
		s.logger.Debug("idempotent replay", "user_id", u.ID, "key", key)
		c.JSON(http.StatusOK, receipt)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (s *Server) result(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	r, ok := s.store.result(currentUser(c).ID, id)
	if !ok {
		detail(c, http.StatusNotFound, "No attempt found for this assessment.")
		return
	}
	c.JSON(http.StatusOK, r)
}

// -----------------------------------------------------------------------------
// Catalog
// -----------------------------------------------------------------------------

func (s *Server) listLanguages(c *gin.Context) {
	out := s.store.listLanguages()
	if out == nil {
		out = []model.Language{}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createLanguage(c *gin.Context) {
	var l model.Language
	if err := c.ShouldBindJSON(&l); err != nil || strings.TrimSpace(l.Name) == "" {
		fieldErrors(c, map[string][]string{"name": {"This field may not be blank."}})
		return
	}
	c.JSON(http.StatusCreated, s.store.addLanguage(l))
}

func (s *Server) listSubtopics(c *gin.Context) {
	var languageID int
	if raw := c.Query("language"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			fieldErrors(c, map[string][]string{"language": {"A valid integer is required."}})
			return
		}
		languageID = id
	}
	out := s.store.listSubtopics(languageID)
	if out == nil {
		out = []model.Subtopic{}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createSubtopic(c *gin.Context) {
	var st model.Subtopic
	if err := c.ShouldBindJSON(&st); err != nil || strings.TrimSpace(st.Name) == "" {
		fieldErrors(c, map[string][]string{"name": {"This field may not be blank."}})
		return
	}
	if _, ok := s.store.language(st.Language); !ok {
		fieldErrors(c, map[string][]string{"language": {"Invalid language."}})
		return
	}
	c.JSON(http.StatusCreated, s.store.addSubtopic(st))
}

// -----------------------------------------------------------------------------
// Admin users
// -----------------------------------------------------------------------------

func (s *Server) listUsers(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.users())
}

func (s *Server) setUserRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req model.RoleUpdate
	if err := c.ShouldBindJSON(&req); err != nil || !req.Role.Valid() {
		fieldErrors(c, map[string][]string{"role": {"Role must be \"admin\" or \"user\"."}})
		return
	}
	u, ok := s.store.setRole(id, req.Role)
	if !ok {
		detail(c, http.StatusNotFound, "Not found.")
		return
	}
	s.logger.Info("role changed", "user_id", id, "role", req.Role, "by", currentUser(c).ID)
	c.JSON(http.StatusOK, u)
}
