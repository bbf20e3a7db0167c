// Package webserver provides the web frontend HTTP server implementation
package webserver

import (
	"context"
	"crypto/subtle"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alchemorsel/recipeview/internal/application/recipeview"
	"github.com/alchemorsel/recipeview/internal/domain/user"
	"github.com/alchemorsel/recipeview/internal/infrastructure/config"
	"github.com/alchemorsel/recipeview/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/recipeview/internal/infrastructure/monitoring"
	apperrors "github.com/alchemorsel/recipeview/pkg/errors"
	"github.com/alchemorsel/recipeview/pkg/healthcheck"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

type contextKey string

const sessionContextKey contextKey = "session"

const csrfFormField = "csrf_token"

// WebServer represents the web frontend HTTP server
type WebServer struct {
	config      *config.Config
	logger      *zap.Logger
	server      *http.Server
	router      *chi.Mux
	apiClient   *APIClient
	sessions    *SessionManager
	views       *ViewRegistry
	templates   *template.Template
	healthCheck *healthcheck.HealthCheck
	middleware  *middleware.Middleware
	metrics     *monitoring.MetricsCollector
	tracing     *monitoring.TracingProvider
	settings    recipeview.Settings
}

// pageData is the data every template receives
type pageData struct {
	Title         string
	User          *user.CurrentUser
	CSRFToken     string
	RecipeID      string
	Page          recipeview.Page
	Ingredients   []string
	ConfirmPrompt string
	Redirect      string
	Error         string
}

// NewWebServer creates a new web frontend server instance
func NewWebServer(
	cfg *config.Config,
	log *zap.Logger,
	apiClient *APIClient,
	sessions *SessionManager,
	views *ViewRegistry,
	healthCheck *healthcheck.HealthCheck,
	metrics *monitoring.MetricsCollector,
	tracing *monitoring.TracingProvider,
) (*WebServer, error) {
	templates, err := parseTemplates()
	if err != nil {
		log.Error("Failed to parse templates", zap.Error(err))
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	server := &WebServer{
		config:      cfg,
		logger:      log.Named("web"),
		apiClient:   apiClient,
		sessions:    sessions,
		views:       views,
		templates:   templates,
		healthCheck: healthCheck,
		middleware:  middleware.New(cfg, log),
		metrics:     metrics,
		tracing:     tracing,
		settings:    cfg.ViewSettings(),
	}

	server.router = server.setupRoutes()
	server.server = &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// Router exposes the HTTP handler
func (s *WebServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures the web frontend routes
func (s *WebServer) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.middleware.Tracing())
	if s.metrics != nil {
		r.Use(s.metrics.HTTPMiddleware)
	}
	r.Use(s.middleware.Logger())
	r.Use(s.middleware.Recovery())
	r.Use(s.middleware.Compression())
	r.Use(s.middleware.Security())
	r.Use(s.middleware.HTMX())

	r.Group(func(r chi.Router) {
		r.Use(s.middleware.RateLimit())

		// Health check endpoints
		r.Get("/health", s.healthCheck.Handler())
		r.Get("/ready", s.healthCheck.ReadinessHandler())
		r.Get("/live", s.healthCheck.LivenessHandler())
		if s.metrics != nil && s.config.Monitoring.EnableMetrics {
			r.Handle("/metrics", s.metrics.Handler())
		}

		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)
			r.Use(s.csrfMiddleware)

			r.Get("/", s.handleHome)
			r.Get("/login", s.handleLoginPage)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)

			r.Get("/my-recipes", s.handleMyRecipes)
			r.Get("/recipes/{id}", s.handleRecipeDetail)
			r.With(s.requireAuth).Get("/recipes/{id}/edit", s.handleEditRecipePage)

			// HTMX endpoints act on the view mounted by the page load
			r.Get("/htmx/recipes/{id}/navigate", s.handleHTMXNavigate)
			r.With(s.requireAuth).Post("/htmx/recipes/{id}/comments", s.handleHTMXAddComment)
			r.With(s.requireAuth).Delete("/htmx/recipes/{id}", s.handleHTMXDelete)
		})
	})

	// Drafts are saved while the user types
	r.Group(func(r chi.Router) {
		r.Use(s.middleware.DraftRateLimit())
		r.Use(s.sessionMiddleware)
		r.Use(s.csrfMiddleware)

		r.Post("/htmx/recipes/{id}/draft", s.handleHTMXDraft)
	})

	return r
}

// Start starts the web frontend HTTP server
func (s *WebServer) Start() error {
	s.logger.Info("Starting Web Frontend server",
		zap.String("address", s.server.Addr),
		zap.String("api", s.apiClient.BaseURL()),
	)

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the web server and closes mounted views
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down Web Frontend server...")
	err := s.server.Shutdown(ctx)
	s.views.Close()
	return err
}

// RunMaintenance sweeps idle views and rate limiters until ctx is done
func (s *WebServer) RunMaintenance(ctx context.Context) {
	interval := s.config.RateLimit.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.views.Sweep()
			s.middleware.CleanupLimiters(10 * interval)
		}
	}
}

// parseTemplates parses all HTML templates from the embedded filesystem
func parseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"millis": func(d time.Duration) int64 {
			return d.Milliseconds()
		},
	}

	return template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html")
}

// Middleware

func (s *WebServer) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessions.Load(w, r)
		if err != nil {
			s.logger.Error("Failed to start session", zap.Error(err))
			http.Error(w, "Session unavailable", http.StatusServiceUnavailable)
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *WebServer) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := sessionFrom(r)
		if session.CurrentUser() == nil || session.AccessToken == "" {
			if middleware.IsHTMX(r) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`<div class="error">Authentication required. Please <a href="/login">login</a> to continue.</div>`))
				return
			}
			http.Redirect(w, r, "/login?redirect="+url.QueryEscape(r.URL.Path), http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// csrfMiddleware rejects state-changing requests without the session's token
func (s *WebServer) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		session := sessionFrom(r)
		token := r.Header.Get("X-CSRF-Token")
		if token == "" {
			token = r.FormValue(csrfFormField)
		}

		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(session.CSRFToken)) != 1 {
			s.logger.Warn("CSRF token mismatch",
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)
			http.Error(w, "Invalid CSRF token", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func sessionFrom(r *http.Request) *Session {
	session, _ := r.Context().Value(sessionContextKey).(*Session)
	if session == nil {
		return &Session{}
	}
	return session
}

// Handler functions

func (s *WebServer) handleHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.settings.RedirectPath, http.StatusSeeOther)
}

func (s *WebServer) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, r, http.StatusOK, "login", pageData{
		Title:    "Log in",
		Redirect: safeRedirect(r.URL.Query().Get("redirect")),
	})
}

func (s *WebServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")
	redirect := safeRedirect(r.URL.Query().Get("redirect"))

	resp, err := s.apiClient.Login(r.Context(), email, password)
	if err != nil {
		s.logger.Info("Login failed", zap.Error(err))
		s.renderTemplate(w, r, http.StatusUnauthorized, "login", pageData{
			Title:    "Log in",
			Redirect: redirect,
			Error:    "Invalid credentials",
		})
		return
	}

	session := sessionFrom(r)
	// Views mounted while anonymous were built for another user
	s.views.UnmountSession(session.ID)
	session.SignIn(resp.User.ID, resp.User.Name, resp.AccessToken)
	// The pre-login session ID and CSRF token must not carry the new user
	if err := s.sessions.Renew(w, r, session); err != nil {
		s.renderError(w, r, "Failed to save session", err)
		return
	}

	if redirect == "" {
		redirect = s.settings.RedirectPath
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func (s *WebServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r)
	s.views.UnmountSession(session.ID)
	if err := s.sessions.Destroy(w, r, session); err != nil {
		s.logger.Warn("Failed to delete session", zap.Error(err))
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *WebServer) handleMyRecipes(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, r, http.StatusOK, "my-recipes", pageData{Title: "My Recipes"})
}

func (s *WebServer) handleEditRecipePage(w http.ResponseWriter, r *http.Request) {
	s.renderTemplate(w, r, http.StatusOK, "recipe-edit", pageData{
		Title:    "Edit recipe",
		RecipeID: chi.URLParam(r, "id"),
	})
}

// handleRecipeDetail mounts a fresh view for the recipe and renders it.
// The view replaces the one the session had for the same recipe.
func (s *WebServer) handleRecipeDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session := sessionFrom(r)
	client := s.apiClient.ForToken(session.AccessToken)

	opts := []recipeview.Option{
		recipeview.WithLogger(s.logger),
		recipeview.WithSettings(s.settings),
	}
	if s.metrics != nil {
		opts = append(opts, recipeview.WithMetrics(s.metrics))
	}
	if s.tracing != nil {
		opts = append(opts, recipeview.WithTracer(s.tracing.Tracer()))
	}

	status := http.StatusOK
	view := recipeview.New(id, session.CurrentUser(), client, client, opts...)
	if err := view.Mount(r.Context()); err != nil {
		s.logger.Warn("Recipe view mounted without a recipe",
			zap.String("recipe_id", id),
			zap.Error(err),
		)
		status = apperrors.HTTPStatus(err, http.StatusOK)
	}
	s.views.Mount(session.ID, view)

	page := view.Page()
	title := page.Name
	if title == "" {
		title = "Recipe"
	}
	s.renderTemplate(w, r, status, "recipe-detail", s.viewData(title, view, page))
}

func (s *WebServer) handleHTMXDraft(w http.ResponseWriter, r *http.Request) {
	view, ok := s.mountedView(w, r)
	if !ok {
		return
	}

	s.applyDraft(r, view)
	w.WriteHeader(http.StatusNoContent)
}

func (s *WebServer) handleHTMXAddComment(w http.ResponseWriter, r *http.Request) {
	view, ok := s.mountedView(w, r)
	if !ok {
		return
	}

	s.applyDraft(r, view)

	var message string
	if err := view.PostComment(r.Context()); err != nil {
		message = s.mutationError("post comment", err)
	}

	data := s.viewData("", view, view.Page())
	data.Error = message
	s.renderTemplate(w, r, http.StatusOK, "comment-feed", data)
}

func (s *WebServer) handleHTMXDelete(w http.ResponseWriter, r *http.Request) {
	view, ok := s.mountedView(w, r)
	if !ok {
		return
	}

	if !view.State().ShowEditDelete {
		http.Error(w, "Only the owner can delete this recipe", http.StatusForbidden)
		return
	}

	// The browser asked for confirmation before issuing the request
	var message string
	if err := view.Delete(r.Context()); err != nil {
		message = s.mutationError("delete recipe", err)
	}

	data := s.viewData("", view, view.Page())
	data.Error = message
	s.renderTemplate(w, r, http.StatusOK, "flash", data)
}

// handleHTMXNavigate follows the redirect a delete scheduled and unmounts the
// view. htmx turns HX-Redirect into a full page load.
func (s *WebServer) handleHTMXNavigate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session := sessionFrom(r)

	to := s.settings.RedirectPath
	if view, ok := s.views.Get(session.ID, id); ok {
		if redirect := view.State().Redirect; redirect != nil {
			to = redirect.Path
		}
		s.views.Unmount(session.ID, id)
	}

	if middleware.IsHTMX(r) {
		w.Header().Set("HX-Redirect", to)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// mountedView finds the view the session mounted for the route's recipe
func (s *WebServer) mountedView(w http.ResponseWriter, r *http.Request) (*recipeview.View, bool) {
	id := chi.URLParam(r, "id")
	session := sessionFrom(r)

	view, ok := s.views.Get(session.ID, id)
	if !ok {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(recipeview.ErrClosed.StatusCode())
		_, _ = w.Write([]byte(`<div class="error">This page has expired. Please reload it.</div>`))
		return nil, false
	}
	return view, true
}

// applyDraft copies the submitted composer fields into the view's draft
func (s *WebServer) applyDraft(r *http.Request, view *recipeview.View) {
	if err := r.ParseForm(); err != nil {
		s.logger.Debug("Failed to parse draft form", zap.Error(err))
		return
	}
	for name, values := range r.PostForm {
		if name == csrfFormField || len(values) == 0 {
			continue
		}
		view.ChangeDraft(name, values[len(values)-1])
	}
}

// mutationError turns a mutation failure into a short user-facing message.
// Failures leave the view state unchanged.
func (s *WebServer) mutationError(action string, err error) string {
	switch {
	case errors.Is(err, recipeview.ErrBusy):
		return "Please wait for the previous request to finish."
	case errors.Is(err, recipeview.ErrClosed):
		return "This page has expired. Please reload it."
	case errors.Is(err, recipeview.ErrAnonymous):
		return "Please log in to continue."
	default:
		s.logger.Warn("Mutation failed",
			zap.String("action", action),
			zap.String("code", string(apperrors.GetCode(err))),
			zap.Error(err),
		)
		return ""
	}
}

func (s *WebServer) viewData(title string, view *recipeview.View, page recipeview.Page) pageData {
	return pageData{
		Title:         title,
		RecipeID:      view.ID(),
		Page:          page,
		Ingredients:   recipeview.IngredientLines(page.Ingredients),
		ConfirmPrompt: s.settings.ConfirmPrompt,
	}
}

// Helper methods

func (s *WebServer) renderTemplate(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	session := sessionFrom(r)
	data.User = session.CurrentUser()
	data.CSRFToken = session.CSRFToken
	if data.Title == "" {
		data.Title = "Recipes"
	}

	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("Failed to execute template",
			zap.String("template", name),
			zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

func (s *WebServer) renderError(w http.ResponseWriter, r *http.Request, message string, err error) {
	s.logger.Error(message, zap.Error(err))
	s.renderTemplate(w, r, http.StatusInternalServerError, "error", pageData{
		Title: "Error",
		Error: message,
	})
}

// safeRedirect only allows local absolute paths
func safeRedirect(path string) string {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return ""
	}
	return path
}
