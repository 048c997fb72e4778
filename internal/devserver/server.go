// Package devserver is a self-contained assessment backend for local
// development and tests. It serves the same REST contract the client speaks,
// keeping all state in memory.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/skillcheck-dev/skillcheck/internal/logging"
)

// Options configures a Server.
type Options struct {
	// Secret signs tokens. Empty generates a random secret.
	Secret string
	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
	// Seed loads the sample users, catalog and assessments.
	Seed bool
	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Logger     *logging.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server is the development backend.
type Server struct {
	engine *gin.Engine
	store  *store
	tokens *tokens
	logger *logging.Logger
}

// New builds a Server with its routes registered.
func New(opts Options) (*Server, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}

	tok, err := newTokens(opts.Secret, opts.TokenTTL, opts.Now)
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:  newStore(opts.Now, opts.BcryptCost),
		tokens: tok,
		logger: opts.Logger.WithComponent("devserver"),
	}
	if opts.Seed {
		if err := seed(s.store); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.requestLog())
	s.engine.Use(cors.New(corsConfig(opts.CORSOrigins)))
	s.engine.NoRoute(func(c *gin.Context) { detail(c, http.StatusNotFound, "Not found.") })
	s.routes()
	return s, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func (s *Server) routes() {
	r := s.engine.Group("/api")

	r.POST("/auth/login/", s.login)
	r.POST("/auth/register/", s.register)
	r.POST("/auth/forgot-password/", s.forgotPassword)

	authed := r.Group("/", s.requireAuth())
	{
		authed.GET("/users/me/", s.me)
		authed.GET("/users/user_dashboard_stats/", s.dashboardStats)

		authed.GET("/assessments/", s.listAssessments)
		authed.GET("/assessments/:id/", s.getAssessment)

		authed.GET("/user-assessments/", s.listUserAssessments)
		authed.POST("/user-assessments/start/", s.startUserAssessment)
		authed.GET("/user-assessments/by-assessment/:id/", s.result)
		authed.POST("/user-answers/", s.submitAnswer)

		authed.GET("/languages/", s.listLanguages)
		authed.GET("/subtopics/", s.listSubtopics)
	}

	admin := authed.Group("/", s.requireAdmin())
	{
		admin.POST("/assessments/", s.createAssessment)
		admin.PUT("/assessments/:id/", s.updateAssessment)
		admin.PATCH("/assessments/:id/", s.patchAssessment)
		admin.DELETE("/assessments/:id/", s.deleteAssessment)

		admin.POST("/languages/", s.createLanguage)
		admin.POST("/subtopics/", s.createSubtopic)

		admin.GET("/admin/users/", s.listUsers)
		admin.PUT("/admin/users/:id/role/", s.setUserRole)
	}
}

// requestLog writes one debug line per request.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Handler returns the HTTP handler serving the API under /api/.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// Banner prints the startup banner and the seeded accounts.
func Banner(w io.Writer, addr string, seeded bool) {
	fig := figure.NewFigure("SKILLCHECK", "", true)
	_, _ = fmt.Fprintln(w, fig.String())
	_, _ = fmt.Fprintf(w, "development backend on %s (API root /api/)\n", addr)
	if seeded {
		_, _ = fmt.Fprintf(w, "  admin: %s / %s\n", SeedAdminEmail, SeedAdminPassword)
		_, _ = fmt.Fprintf(w, "  user:  %s / %s\n", SeedUserEmail, SeedUserPassword)
	}
}
