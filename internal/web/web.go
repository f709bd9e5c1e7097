// ABOUTME: HTTP transport for folio: chi routes, form decoding and response mapping
// ABOUTME: Translates cms.Result values into status codes, redirects and rendered pages

package web

import (
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389/folio/internal/assets"
	"github.com/2389/folio/internal/cms"
	"github.com/2389/folio/internal/session"
)

const (
	// maxFormBytes caps request bodies; documents are submitted whole.
	maxFormBytes = 10 << 20

	// fileParam is the route parameter naming a document.
	fileParam = "file"
)

// Recorder receives per-request metrics.
type Recorder interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordRateLimited(route string)
}

// Server routes HTTP requests to the cms handlers.
type Server struct {
	svc      *cms.Service
	sessions *session.Manager
	limiter  *RateLimiter
	recorder Recorder
	logger   *slog.Logger
	pages    map[string]*template.Template

	health         http.Handler
	ready          http.Handler
	metricsPath    string
	metricsHandler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimiter limits login and signup submissions.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) {
		s.limiter = rl
	}
}

// WithRecorder records request metrics.
func WithRecorder(r Recorder) Option {
	return func(s *Server) {
		s.recorder = r
	}
}

// WithHealth mounts the liveness probe at /health and, when non-nil, the
// readiness probe at /health/ready.
func WithHealth(live, ready http.Handler) Option {
	return func(s *Server) {
		s.health = live
		s.ready = ready
	}
}

// WithMetrics mounts the metrics handler at path.
func WithMetrics(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metricsHandler = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates the transport. Templates are parsed once here.
func New(svc *cms.Service, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		svc:      svc,
		sessions: sessions,
		logger:   slog.Default().With("component", "web"),
		pages:    loadTemplates(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter != nil && s.recorder != nil {
		s.limiter.onLimited = s.recorder.RecordRateLimited
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	if s.health != nil {
		r.Method(http.MethodGet, "/health", s.health)
	}
	if s.ready != nil {
		r.Method(http.MethodGet, "/health/ready", s.ready)
	}
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, s.metricsPath, s.metricsHandler)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", assets.FileServer()))

	r.Group(func(r chi.Router) {
		r.Use(s.sessions.Middleware)

		r.Get("/", s.handle(s.index))
		r.Get("/new", s.handle(s.newForm))
		r.With(s.csrf).Post("/new", s.handle(s.create))

		r.Get("/user/login", s.handle(s.loginForm))
		r.With(s.limit("/user/login"), s.csrf).Post("/user/login", s.handle(s.login))
		r.With(s.csrf).Post("/user/logout", s.handle(s.logout))
		r.Get("/user/new", s.handle(s.signupForm))
		r.With(s.limit("/user/new"), s.csrf).Post("/user/new", s.handle(s.signup))

		r.Get("/{file}", s.handle(s.view))
		r.Get("/{file}/edit", s.handle(s.editForm))
		r.With(s.csrf).Post("/{file}/edit", s.handle(s.update))
		r.With(s.csrf).Post("/{file}/delete", s.handle(s.remove))
	})

	return r
}

// limit applies the rate limiter when one is configured.
func (s *Server) limit(route string) func(http.Handler) http.Handler {
	if s.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.limiter.Middleware(route)
}

type cmsFunc func(r *http.Request, sess *session.Session) (*cms.Result, error)

// handle adapts a cms call to an http.HandlerFunc.
func (s *Server) handle(fn cmsFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := session.FromContext(r.Context())
		if sess == nil {
			s.logger.Error("no session in request context", "path", r.URL.Path)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		res, err := fn(r, sess)
		if err != nil {
			s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.respond(w, r, sess, res)
	}
}

// respond writes a cms.Result.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, sess *session.Session, res *cms.Result) {
	switch res.Status {
	case cms.StatusRedirect:
		http.Redirect(w, r, res.Location, http.StatusFound)
	case cms.StatusValidationFailure:
		s.render(w, http.StatusUnprocessableEntity, sess, res)
	default:
		if res.Page == "" {
			w.Header().Set("Content-Type", res.ContentType)
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write(res.Body); err != nil {
				s.logger.Debug("failed to write body", "error", err)
			}
			return
		}
		s.render(w, http.StatusOK, sess, res)
	}
}

// docName returns the decoded document name from the route. chi matches
// against RawPath when it is set and against the already decoded Path
// otherwise, so the parameter is unescaped only in the first case.
func docName(r *http.Request) string {
	param := chi.URLParam(r, fileParam)
	if r.URL.RawPath == "" {
		return param
	}
	if name, err := url.PathUnescape(param); err == nil {
		return name
	}
	return param
}

func parseForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	_ = r.ParseForm()
}

func (s *Server) index(r *http.Request, sess *session.Session) (*cms.Result, error) {
	return s.svc.List(r.Context(), sess)
}

func (s *Server) view(r *http.Request, sess *session.Session) (*cms.Result, error) {
	return s.svc.View(r.Context(), sess, docName(r))
}

func (s *Server) newForm(r *http.Request, sess *session.Session) (*cms.Result, error) {
	return s.svc.NewForm(r.Context(), sess)
}

func (s *Server) create(r *http.Request, sess *session.Session) (*cms.Result, error) {
	return s.svc.Create(r.Context(), sess, r.PostFormValue("file_name"), r.PostFormValue("file_content"))
}

func (s *Server) editForm(r *http.Request, sess *session.Session) (*cms.Result, error) {
	return s.svc.EditForm(r.Context(), sess, docName(r))
}

func (s *Server) update(r *http.Request, sess *session.Session) (*cms.Result, error) {
	return s.svc.Update(r.Context(), sess, docName(r), r.PostFormValue("file_content"))
}

func (s *Server) remove(r *http.Request, sess *session.Session) (*cms.Result, error) {
	return s.svc.Delete(r.Context(), sess, docName(r))
}

func (s *Server) loginForm(r *http.Request, sess *session.Session) (*cms.Result, error) {
	return s.svc.LoginForm(r.Context(), sess)
}

func (s *Server) login(r *http.Request, sess *session.Session) (*cms.Result, error) {
	return s.svc.Login(r.Context(), sess, r.PostFormValue("username"), r.PostFormValue("password"))
}

func (s *Server) logout(r *http.Request, sess *session.Session) (*cms.Result, error) {
	return s.svc.Logout(r.Context(), sess)
}

func (s *Server) signupForm(r *http.Request, sess *session.Session) (*cms.Result, error) {
	return s.svc.SignupForm(r.Context(), sess)
}

func (s *Server) signup(r *http.Request, sess *session.Session) (*cms.Result, error) {
	return s.svc.Signup(r.Context(), sess,
		r.PostFormValue("username"), r.PostFormValue("pass1"), r.PostFormValue("pass2"))
}
