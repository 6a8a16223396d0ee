package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/goliatone/go-arena/internal/locale"
	"github.com/goliatone/go-arena/internal/logging"
	"github.com/goliatone/go-arena/internal/proxy"
	"github.com/goliatone/go-arena/internal/sessions"
	"github.com/goliatone/go-arena/internal/settings"
	"github.com/goliatone/go-arena/internal/templates"
	"github.com/goliatone/go-arena/internal/themes"
	"github.com/goliatone/go-arena/pkg/interfaces"
)

// landingTemplate is the page served at the root route.
const landingTemplate = "index.html"

// Config carries the HTTP-facing settings.
type Config struct {
	Addr string
	// ProxyHops is the trusted reverse-proxy configuration; zero disables
	// header rewriting.
	ProxyHops proxy.Hops
	// ScriptRoot mounts the application under a path prefix.
	ScriptRoot string
	// CookieName and Secure configure the session cookie.
	CookieName   string
	SecureCookie bool
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// Deps are the constructed subsystems the router serves from.
type Deps struct {
	Engine       interfaces.TemplateEngine
	Settings     interfaces.SettingsStore
	Themes       *themes.Service
	SessionStore interfaces.SessionStore
	Locales      *locale.Selector
	Logger       interfaces.Logger
}

// Server is the HTTP front of the platform.
type Server struct {
	cfg    Config
	deps   Deps
	router chi.Router
	http   *http.Server
	logger interfaces.Logger
}

// New assembles the middleware stack and routes.
func New(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NoOp()
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	s.router = s.buildRouter()
	s.http = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.router,
	}
	return s
}

// Router exposes the handler, mainly for plugin mounting and tests.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	if s.cfg.ProxyHops.Enabled() {
		r.Use(proxy.Fix(s.cfg.ProxyHops))
	}
	r.Use(proxy.ScriptRoot(s.cfg.ScriptRoot))
	if s.deps.SessionStore != nil {
		r.Use(sessions.Middleware(s.deps.SessionStore, sessions.MiddlewareConfig{
			CookieName: s.cfg.CookieName,
			Secure:     s.cfg.SecureCookie,
			Logger:     s.logger,
		}))
	}
	if s.deps.Locales != nil {
		r.Use(s.deps.Locales.Middleware)
	}

	r.Get("/", s.handleLanding)
	r.Get("/healthz", s.handleHealth)
	if s.deps.Themes != nil {
		r.Get("/themes/{theme}/static/*", s.handleThemeAsset)
	}

	return r
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := map[string]any{
		"locale":      locale.FromContext(ctx),
		"script_root": proxy.ScriptRootFromContext(ctx),
	}
	if s.deps.Settings != nil {
		data["theme"] = s.deps.Settings.GetDefault(ctx, settings.KeyTheme, "")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.deps.Engine.Render(w, landingTemplate, data); err != nil {
		if errors.Is(err, templates.ErrTemplateNotFound) {
			http.Error(w, "landing template not installed", http.StatusNotFound)
			return
		}
		s.logger.Error("landing render failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleThemeAsset(w http.ResponseWriter, r *http.Request) {
	theme := chi.URLParam(r, "theme")
	if !s.deps.Themes.Exists(theme) {
		http.NotFound(w, r)
		return
	}

	prefix := "/themes/" + theme + "/static/"
	fileServer := http.StripPrefix(prefix, http.FileServer(http.Dir(s.deps.Themes.StaticDir(theme))))
	fileServer.ServeHTTP(w, r)
}

// Start serves until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.cfg.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
