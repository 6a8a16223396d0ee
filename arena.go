// Package arena is the application factory for the competition platform. New
// wires the subsystems from a Config; Boot brings persisted state, themes,
// templates, and plugins to a servable instance.
package arena

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-arena/internal/commands"
	"github.com/goliatone/go-arena/internal/di"
	"github.com/goliatone/go-arena/internal/locale"
	"github.com/goliatone/go-arena/internal/logging"
	"github.com/goliatone/go-arena/internal/platform"
	"github.com/goliatone/go-arena/internal/server"
	"github.com/goliatone/go-arena/internal/sessions"
	"github.com/goliatone/go-arena/internal/settings"
	"github.com/goliatone/go-arena/internal/templates"
	"github.com/goliatone/go-arena/internal/themes"
	"github.com/goliatone/go-arena/pkg/interfaces"
)

// Module is the top level platform runtime.
type Module struct {
	container *di.Container
	server    *server.Server
	logger    interfaces.Logger
	runID     string
	booted    bool
}

// New constructs the module from the configuration plus optional DI
// overrides. The instance is inert until Boot runs.
func New(cfg Config, opts ...di.Option) (*Module, error) {
	base := []di.Option{
		di.WithMigrations(GetMigrationsFS(), MigrationsDir),
		di.WithUpdateChannel(Channel),
	}
	container, err := di.New(cfg, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Module{
		container: container,
		logger:    logging.ModuleLogger(container.LoggerProvider(), "arena"),
		runID:     NewRunID(),
	}, nil
}

// Boot prepares the instance for serving. The sequence is fixed: schema
// first, then the import gate, then version reconciliation, and only then
// the request-serving surfaces. Boot is not safe to call twice.
func (m *Module) Boot(ctx context.Context) error {
	if m.booted {
		return fmt.Errorf("arena: module already booted")
	}

	if migrator := m.container.Migrator(); migrator != nil {
		if err := migrator.Run(ctx); err != nil {
			return err
		}
	}

	cfg := m.container.Config()
	store := m.container.Settings()

	if err := platform.WaitForImport(ctx, store, platform.ImportGateConfig{
		PollInterval: cfg.Bootstrap.ImportPollInterval,
		Timeout:      cfg.Bootstrap.ImportWaitTimeout,
	}, m.logger); err != nil {
		return err
	}

	if err := m.ensureVersion(ctx); err != nil {
		return err
	}

	if err := m.container.Themes().LoadAll(); err != nil {
		return err
	}
	if err := m.ensureTheme(ctx); err != nil {
		return err
	}

	m.registerGlobals()
	m.server = m.buildServer()

	if err := m.container.Plugins().Load(m.pluginHost(), m.server.Router(), m.container.Templates()); err != nil {
		return err
	}

	// Update checks are best effort; a dead endpoint must not block startup.
	if checker := m.container.UpdateChecker(); checker != nil {
		if err := checker.Check(ctx, Version, m.runID); err != nil {
			m.logger.Warn("update check failed", "error", err)
		}
	}

	m.booted = true
	return nil
}

func (m *Module) ensureVersion(ctx context.Context) error {
	built, err := platform.ParseVersion(Version)
	if err != nil {
		return fmt.Errorf("arena: built version %q: %w", Version, err)
	}

	var upgrade platform.UpgradeFunc
	if migrator := m.container.Migrator(); migrator != nil {
		handler := commands.NewUpgradePlatformHandler(migrator, m.container.Settings(), m.logger)
		upgrade = func(ctx context.Context, from, to platform.Version) error {
			return handler.Execute(ctx, commands.UpgradePlatformCommand{From: from, To: to})
		}
	}
	return platform.EnsureVersion(ctx, m.container.Settings(), built, upgrade, m.logger)
}

// ensureTheme records the configured default theme on first boot. A stored
// theme pointing at a directory that no longer exists is kept but flagged,
// since wiping an operator's choice is worse than rendering fallbacks.
func (m *Module) ensureTheme(ctx context.Context) error {
	store := m.container.Settings()
	cfg := m.container.Config()

	current, err := store.Get(ctx, settings.KeyTheme)
	if err != nil {
		if !errors.Is(err, settings.ErrSettingNotFound) {
			return fmt.Errorf("arena: read active theme: %w", err)
		}
		if !m.container.Themes().Exists(cfg.Themes.DefaultTheme) {
			return fmt.Errorf("arena: default theme %q is not installed", cfg.Themes.DefaultTheme)
		}
		return store.Set(ctx, settings.KeyTheme, cfg.Themes.DefaultTheme)
	}

	if !m.container.Themes().Exists(current) {
		m.logger.Warn("active theme is not installed", "theme", current)
	}
	return nil
}

func (m *Module) registerGlobals() {
	engine := m.container.Templates()
	themeSvc := m.container.Themes()
	store := m.container.Settings()
	defaultTheme := m.container.Config().Themes.DefaultTheme

	engine.SetGlobal("url_for", m.container.URLs().TemplateGlobal())
	engine.SetGlobal("theme_asset", func(asset string) string {
		active := store.GetDefault(context.Background(), settings.KeyTheme, defaultTheme)
		return themeSvc.AssetURL(active, asset)
	})
}

func (m *Module) buildServer() *server.Server {
	cfg := m.container.Config()
	return server.New(server.Config{
		Addr:         cfg.Server.Addr,
		ProxyHops:    m.container.ProxyHops(),
		ScriptRoot:   cfg.Proxy.ScriptRoot,
		CookieName:   cfg.Session.CookieName,
		SecureCookie: cfg.Session.Secure,
	}, server.Deps{
		Engine:       m.container.Templates(),
		Settings:     m.container.Settings(),
		Themes:       m.container.Themes(),
		SessionStore: m.container.Sessions(),
		Locales:      m.container.Locales(),
		Logger:       logging.ServerLogger(m.container.LoggerProvider()),
	})
}

type pluginHost struct {
	container *di.Container
	logger    interfaces.Logger
}

func (h pluginHost) Settings() interfaces.SettingsStore   { return h.container.Settings() }
func (h pluginHost) Cache() interfaces.CacheProvider      { return h.container.Cache() }
func (h pluginHost) Templates() interfaces.TemplateEngine { return h.container.Templates() }
func (h pluginHost) Logger() interfaces.Logger            { return h.logger }

func (m *Module) pluginHost() interfaces.PluginHost {
	return pluginHost{
		container: m.container,
		logger:    logging.PluginsLogger(m.container.LoggerProvider()),
	}
}

// RegisterPlugin adds a plugin to the registry. Registration must happen
// before Boot.
func (m *Module) RegisterPlugin(p interfaces.Plugin) error {
	return m.container.Plugins().Register(p)
}

// Container exposes the underlying DI container for advanced integrations.
func (m *Module) Container() *di.Container { return m.container }

// Settings returns the persisted configuration service.
func (m *Module) Settings() interfaces.SettingsStore { return m.container.Settings() }

// Cache returns the shared key/value cache.
func (m *Module) Cache() interfaces.CacheProvider { return m.container.Cache() }

// Templates returns the theme-aware template engine.
func (m *Module) Templates() interfaces.TemplateEngine { return m.container.Templates() }

// Themes returns the installed-theme registry.
func (m *Module) Themes() *themes.Service { return m.container.Themes() }

// Sessions returns the cache-backed session store.
func (m *Module) Sessions() *sessions.Store { return m.container.Sessions() }

// DB returns the connected database handle.
func (m *Module) DB() *bun.DB { return m.container.DB() }

// Logger returns the module-scoped root logger.
func (m *Module) Logger() interfaces.Logger { return m.logger }

// Locales returns the per-request locale selector.
func (m *Module) Locales() *locale.Selector { return m.container.Locales() }

// Router returns the HTTP handler. It is nil before Boot.
func (m *Module) Router() chi.Router {
	if m.server == nil {
		return nil
	}
	return m.server.Router()
}

// Start serves HTTP until the listener fails or Shutdown runs. Boot must
// have completed.
func (m *Module) Start() error {
	if !m.booted {
		return fmt.Errorf("arena: module must boot before serving")
	}
	return m.server.Start()
}

// Shutdown drains the HTTP server and releases external connections.
func (m *Module) Shutdown(ctx context.Context) error {
	var firstErr error
	if m.server != nil {
		if err := m.server.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if err := m.container.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ErrTemplateNotFound reports a template name no loader in the chain can
// serve. Re-exported so embedders can branch without importing internals.
var ErrTemplateNotFound = templates.ErrTemplateNotFound
