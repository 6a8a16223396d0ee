package di

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"time"

	repocache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-arena/internal/cache"
	"github.com/goliatone/go-arena/internal/database"
	"github.com/goliatone/go-arena/internal/locale"
	"github.com/goliatone/go-arena/internal/logging"
	"github.com/goliatone/go-arena/internal/logging/console"
	"github.com/goliatone/go-arena/internal/logging/gologger"
	"github.com/goliatone/go-arena/internal/plugins"
	"github.com/goliatone/go-arena/internal/proxy"
	"github.com/goliatone/go-arena/internal/runtimeconfig"
	"github.com/goliatone/go-arena/internal/server"
	"github.com/goliatone/go-arena/internal/sessions"
	"github.com/goliatone/go-arena/internal/settings"
	"github.com/goliatone/go-arena/internal/templates"
	"github.com/goliatone/go-arena/internal/themes"
	"github.com/goliatone/go-arena/internal/updates"
	"github.com/goliatone/go-arena/pkg/interfaces"
)

// Container wires the platform subsystems together. Every field has a
// default construction path driven by the config; options replace individual
// pieces for embedding and tests.
type Container struct {
	cfg runtimeconfig.Config

	loggerProvider interfaces.LoggerProvider

	bunDB  *bun.DB
	driver string

	cacheProvider interfaces.CacheProvider
	cacheService  repocache.CacheService
	keySerializer repocache.KeySerializer

	settingsRepo settings.Repository
	settingsSvc  *settings.Service

	themeSvc  *themes.Service
	engine    *templates.Engine
	sessions  *sessions.Store
	locales   *locale.Selector
	plugins   *plugins.Registry
	urls      *server.URLBuilder
	proxyHops proxy.Hops

	migrationFiles fs.FS
	migrationDir   string
	models         []any
	migrator       *database.Migrator

	updateChannel string
	updateChecker *updates.Checker
}

// Option mutates the container before it is finalised.
type Option func(*Container)

// WithBunDB supplies an already-connected database. The driver string must
// match what database.Connect would report for the connection.
func WithBunDB(db *bun.DB, driver string) Option {
	return func(c *Container) {
		c.bunDB = db
		c.driver = driver
	}
}

// WithCacheProvider overrides the shared key/value cache.
func WithCacheProvider(provider interfaces.CacheProvider) Option {
	return func(c *Container) {
		c.cacheProvider = provider
	}
}

// WithRepositoryCache overrides the repository-level read cache.
func WithRepositoryCache(service repocache.CacheService, serializer repocache.KeySerializer) Option {
	return func(c *Container) {
		c.cacheService = service
		c.keySerializer = serializer
	}
}

// WithSettingsRepository overrides the settings persistence backend.
func WithSettingsRepository(repo settings.Repository) Option {
	return func(c *Container) {
		c.settingsRepo = repo
	}
}

// WithLoggerProvider overrides the configured logging backend.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		c.loggerProvider = provider
	}
}

// WithMigrations supplies the migration scripts applied at boot.
func WithMigrations(files fs.FS, dir string) Option {
	return func(c *Container) {
		c.migrationFiles = files
		c.migrationDir = dir
	}
}

// WithModels registers additional models created directly on embedded
// database engines.
func WithModels(models ...any) Option {
	return func(c *Container) {
		c.models = append(c.models, models...)
	}
}

// WithUpdateChannel sets the release channel reported by the update check.
func WithUpdateChannel(channel string) Option {
	return func(c *Container) {
		c.updateChannel = channel
	}
}

// New validates the config and constructs every subsystem that has no
// override. Construction touches the database and, for the redis provider,
// the cache backend; it does not run migrations or load themes.
func New(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.configureLogging(); err != nil {
		return nil, err
	}
	if err := c.configureDatabase(); err != nil {
		return nil, err
	}
	if err := c.configureCache(); err != nil {
		return nil, err
	}
	c.configureSettings()
	c.configureThemes()
	c.configureTemplates()
	c.configureSessions()
	c.configureLocales()

	hops, err := proxy.ParseHops(cfg.Proxy.ReverseProxy)
	if err != nil {
		return nil, err
	}
	c.proxyHops = hops

	c.plugins = plugins.NewRegistry(logging.PluginsLogger(c.loggerProvider))
	c.urls = server.NewURLBuilder(cfg.Proxy.ScriptRoot)
	c.configureMigrator()
	c.configureUpdates()
	return c, nil
}

func (c *Container) configureLogging() error {
	if c.loggerProvider != nil || !c.cfg.Logging.Enabled {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(c.cfg.Logging.Provider)) {
	case "gologger":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     c.cfg.Logging.Level,
			Format:    c.cfg.Logging.Format,
			AddSource: c.cfg.Logging.AddSource,
			Focus:     c.cfg.Logging.Focus,
		})
		if err != nil {
			return fmt.Errorf("di: configure gologger: %w", err)
		}
		c.loggerProvider = provider
	default:
		level := consoleLevel(c.cfg.Logging.Level)
		c.loggerProvider = console.NewProvider(console.Options{MinLevel: &level})
	}
	return nil
}

func consoleLevel(value string) console.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trace":
		return console.LevelTrace
	case "debug":
		return console.LevelDebug
	case "warn", "warning":
		return console.LevelWarn
	case "error":
		return console.LevelError
	case "fatal":
		return console.LevelFatal
	default:
		return console.LevelInfo
	}
}

func (c *Container) configureDatabase() error {
	if c.bunDB != nil {
		return nil
	}
	db, driver, err := database.Connect(c.cfg.Database.URL, c.cfg.Database.MaxOpenConns, c.cfg.Database.MaxIdleConns)
	if err != nil {
		return err
	}
	c.bunDB = db
	c.driver = driver
	return nil
}

func (c *Container) configureCache() error {
	if c.cacheProvider == nil {
		switch strings.ToLower(strings.TrimSpace(c.cfg.Cache.Provider)) {
		case "redis":
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			provider, err := cache.NewRedis(ctx, cache.RedisConfig{
				Addr:     c.cfg.Cache.RedisAddr,
				Password: c.cfg.Cache.RedisPassword,
				DB:       c.cfg.Cache.RedisDB,
			})
			if err != nil {
				return err
			}
			c.cacheProvider = provider
		default:
			c.cacheProvider = cache.NewMemory()
		}
	}

	if c.cacheService == nil {
		cacheCfg := repocache.DefaultConfig()
		if c.cfg.Cache.DefaultTTL > 0 {
			cacheCfg.TTL = c.cfg.Cache.DefaultTTL
		}
		service, err := repocache.NewCacheService(cacheCfg)
		if err == nil {
			c.cacheService = service
		}
	}
	if c.cacheService != nil && c.keySerializer == nil {
		c.keySerializer = repocache.NewDefaultKeySerializer()
	}
	return nil
}

func (c *Container) configureSettings() {
	if c.settingsRepo == nil {
		c.settingsRepo = settings.NewBunRepositoryWithCache(c.bunDB, c.cacheService, c.keySerializer)
	}
	c.settingsSvc = settings.NewService(
		c.settingsRepo,
		settings.WithCache(c.cacheProvider, c.cfg.Cache.DefaultTTL),
		settings.WithLogger(logging.ModuleLogger(c.loggerProvider, "arena.settings")),
	)
}

func (c *Container) configureThemes() {
	c.themeSvc = themes.NewService(themes.Config{
		BasePath:     c.cfg.Themes.BasePath,
		DefaultTheme: c.cfg.Themes.DefaultTheme,
		AdminTheme:   c.cfg.Themes.AdminTheme,
	}, logging.ModuleLogger(c.loggerProvider, "arena.themes"))
}

func (c *Container) configureTemplates() {
	// The active theme is read from settings on every resolution so a theme
	// switch takes effect without restarting.
	activeTheme := func() string {
		return c.settingsSvc.GetDefault(context.Background(), settings.KeyTheme, c.cfg.Themes.DefaultTheme)
	}
	c.engine = templates.NewEngine(templates.Config{
		ActiveTheme:  activeTheme,
		AutoReload:   c.cfg.Templates.AutoReload,
		CacheEnabled: c.cfg.Templates.CacheEnabled,
		Themes: templates.ThemeLoaderConfig{
			BasePath:          c.cfg.Themes.BasePath,
			DefaultTheme:      c.cfg.Themes.DefaultTheme,
			AdminTheme:        c.cfg.Themes.AdminTheme,
			FallbackToDefault: c.cfg.Themes.FallbackToDefault,
		},
		Logger: logging.TemplatesLogger(c.loggerProvider),
	})
	for name, source := range c.cfg.Templates.Overrides {
		c.engine.SetOverride(name, source)
	}
}

func (c *Container) configureSessions() {
	c.sessions = sessions.NewStore(c.cacheProvider, sessions.Config{
		KeyPrefix: c.cfg.Session.KeyPrefix,
		TTL:       c.cfg.Session.TTL,
	})
}

func (c *Container) configureLocales() {
	c.locales = locale.NewSelector(locale.Config{
		Default:    c.cfg.Locale.Default,
		Supported:  c.cfg.Locale.Supported,
		QueryParam: c.cfg.Locale.QueryParam,
	})
}

func (c *Container) configureMigrator() {
	if c.migrationFiles == nil {
		return
	}
	models := append([]any{(*settings.Setting)(nil)}, c.models...)
	c.migrator = database.NewMigrator(database.MigratorConfig{
		DB:     c.bunDB,
		Driver: c.driver,
		Files:  c.migrationFiles,
		Dir:    c.migrationDir,
		Models: models,
		Logger: logging.DatabaseLogger(c.loggerProvider),
	})
}

func (c *Container) configureUpdates() {
	if !c.cfg.Update.Enabled {
		return
	}
	c.updateChecker = updates.NewChecker(updates.Config{
		URL:     c.cfg.Update.Endpoint,
		Channel: c.updateChannel,
		Timeout: c.cfg.Update.Timeout,
	}, c.settingsSvc, logging.UpdatesLogger(c.loggerProvider))
}

// Config returns the validated configuration the container was built from.
func (c *Container) Config() runtimeconfig.Config { return c.cfg }

// LoggerProvider returns the configured logging backend, which is nil when
// logging is disabled.
func (c *Container) LoggerProvider() interfaces.LoggerProvider { return c.loggerProvider }

// DB returns the connected database handle.
func (c *Container) DB() *bun.DB { return c.bunDB }

// Driver reports the database driver selected from the connection URL.
func (c *Container) Driver() string { return c.driver }

// Cache returns the shared key/value cache.
func (c *Container) Cache() interfaces.CacheProvider { return c.cacheProvider }

// Settings returns the persisted configuration service.
func (c *Container) Settings() *settings.Service { return c.settingsSvc }

// Themes returns the installed-theme registry.
func (c *Container) Themes() *themes.Service { return c.themeSvc }

// Templates returns the theme-aware template engine.
func (c *Container) Templates() *templates.Engine { return c.engine }

// Sessions returns the cache-backed session store.
func (c *Container) Sessions() *sessions.Store { return c.sessions }

// Locales returns the per-request locale selector.
func (c *Container) Locales() *locale.Selector { return c.locales }

// Plugins returns the plugin registry.
func (c *Container) Plugins() *plugins.Registry { return c.plugins }

// URLs returns the named-route URL builder.
func (c *Container) URLs() *server.URLBuilder { return c.urls }

// ProxyHops returns the parsed reverse-proxy trust configuration.
func (c *Container) ProxyHops() proxy.Hops { return c.proxyHops }

// Migrator returns the schema migrator, nil when no migrations were supplied.
func (c *Container) Migrator() *database.Migrator { return c.migrator }

// UpdateChecker returns the startup version checker, nil when disabled.
func (c *Container) UpdateChecker() *updates.Checker { return c.updateChecker }

// Close releases the container's external connections.
func (c *Container) Close() error {
	var firstErr error
	if closer, ok := c.cacheProvider.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			firstErr = err
		}
	}
	if c.bunDB != nil {
		if err := c.bunDB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
