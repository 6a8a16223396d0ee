package runtimeconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDatabaseURLRequired indicates the persistence layer cannot be constructed.
var ErrDatabaseURLRequired = errors.New("arena config: database URL is required")

// ErrCacheProviderUnknown indicates an unsupported cache backend name.
var ErrCacheProviderUnknown = errors.New("arena config: cache provider is invalid")

// ErrRedisAddrRequired ensures the redis cache backend has an address to dial.
var ErrRedisAddrRequired = errors.New("arena config: redis address is required for the redis cache provider")

var ErrDefaultThemeRequired = errors.New("arena config: default theme name is required")
var ErrSessionTTLInvalid = errors.New("arena config: session TTL must be positive")
var ErrReverseProxyInvalid = errors.New("arena config: reverse proxy must be empty, a hop count, or four comma separated hop counts")
var ErrLoggingProviderRequired = errors.New("arena config: logging provider is required when logging is enabled")
var ErrLoggingProviderUnknown = errors.New("arena config: logging provider is invalid")
var ErrLoggingLevelInvalid = errors.New("arena config: logging level is invalid")
var ErrLoggingFormatInvalid = errors.New("arena config: logging format is invalid")
var ErrImportPollIntervalInvalid = errors.New("arena config: import poll interval must be positive")

// Config aggregates the settings consumed by the application factory.
// Fields intentionally use simple types so host applications can extend them later.
type Config struct {
	Database  DatabaseConfig
	Cache     CacheConfig
	Session   SessionConfig
	Themes    ThemeConfig
	Templates TemplateConfig
	Proxy     ProxyConfig
	Locale    LocaleConfig
	Logging   LoggingConfig
	Update    UpdateConfig
	Bootstrap BootstrapConfig
	Server    ServerConfig
}

// DatabaseConfig locates the relational store. The URL scheme selects both the
// driver and the schema strategy (embedded engines are created directly,
// server engines run incremental migrations).
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// CacheConfig selects the process-wide key/value cache backend.
type CacheConfig struct {
	Provider      string
	DefaultTTL    time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// SessionConfig captures behaviour of the cache-backed session store.
type SessionConfig struct {
	CookieName string
	KeyPrefix  string
	TTL        time.Duration
	Secure     bool
}

// ThemeConfig captures the on-disk theme layout and runtime defaults.
type ThemeConfig struct {
	BasePath     string
	DefaultTheme string
	AdminTheme   string
	// FallbackToDefault retries the default theme when the active theme is
	// missing a template. Off by default: a missing template fails resolution.
	FallbackToDefault bool
}

// TemplateConfig tunes the compilation cache of the resolution engine.
type TemplateConfig struct {
	AutoReload   bool
	CacheEnabled bool
	// Overrides seeds the in-memory override table consulted before any
	// on-disk template source.
	Overrides map[string]string
}

// ProxyConfig captures reverse-proxy trust and mount-point settings supplied
// by the hosting layer.
type ProxyConfig struct {
	// ReverseProxy is empty, a single hop count, or four comma separated hop
	// counts for the For/Proto/Host/Prefix forwarded headers.
	ReverseProxy string
	ScriptRoot   string
}

// LocaleConfig drives per-request display language selection.
type LocaleConfig struct {
	Default    string
	Supported  []string
	QueryParam string
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Enabled   bool
	Provider  string
	Level     string
	Format    string
	AddSource bool
	Focus     []string
}

// UpdateConfig controls the best-effort startup version check.
type UpdateConfig struct {
	Enabled  bool
	Endpoint string
	Timeout  time.Duration
}

// BootstrapConfig tunes the startup import gate. A zero wait timeout restores
// the original unbounded wait.
type BootstrapConfig struct {
	ImportPollInterval time.Duration
	ImportWaitTimeout  time.Duration
}

// ServerConfig captures the HTTP listener settings used by cmd/arena.
type ServerConfig struct {
	Addr string
}

// DefaultConfig returns opinionated defaults for an embedded deployment.
func DefaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			URL: "sqlite://file::memory:?cache=shared",
		},
		Cache: CacheConfig{
			Provider:   "memory",
			DefaultTTL: time.Minute,
		},
		Session: SessionConfig{
			CookieName: "arena_session",
			KeyPrefix:  "session",
			TTL:        24 * time.Hour,
		},
		Themes: ThemeConfig{
			BasePath:     "themes",
			DefaultTheme: "core-beta",
			AdminTheme:   "admin",
		},
		Templates: TemplateConfig{
			AutoReload:   false,
			CacheEnabled: true,
		},
		Locale: LocaleConfig{
			Default:    "en",
			Supported:  []string{"en"},
			QueryParam: "lang",
		},
		Logging: LoggingConfig{
			Enabled:  true,
			Provider: "console",
			Level:    "info",
		},
		Update: UpdateConfig{
			Enabled: false,
			Timeout: 10 * time.Second,
		},
		Bootstrap: BootstrapConfig{
			ImportPollInterval: 5 * time.Second,
			ImportWaitTimeout:  10 * time.Minute,
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
	}
}

// Validate performs high-level consistency checks.
func (cfg Config) Validate() error {
	if strings.TrimSpace(cfg.Database.URL) == "" {
		return ErrDatabaseURLRequired
	}
	switch normalize(cfg.Cache.Provider) {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(cfg.Cache.RedisAddr) == "" {
			return ErrRedisAddrRequired
		}
	default:
		return fmt.Errorf("%w: %s", ErrCacheProviderUnknown, cfg.Cache.Provider)
	}
	if strings.TrimSpace(cfg.Themes.DefaultTheme) == "" {
		return ErrDefaultThemeRequired
	}
	if cfg.Session.TTL <= 0 {
		return ErrSessionTTLInvalid
	}
	if err := validateReverseProxy(cfg.Proxy.ReverseProxy); err != nil {
		return err
	}
	if cfg.Bootstrap.ImportPollInterval <= 0 {
		return ErrImportPollIntervalInvalid
	}
	if cfg.Logging.Enabled {
		provider := normalize(cfg.Logging.Provider)
		if provider == "" {
			return ErrLoggingProviderRequired
		}
		if !isSupportedProvider(provider) {
			return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider)
		}
		if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
			return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
		}
		if provider == "gologger" {
			if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedFormat(format) {
				return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
			}
		}
	}
	return nil
}

func validateReverseProxy(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, ",")
	if len(parts) != 1 && len(parts) != 4 {
		return fmt.Errorf("%w: %s", ErrReverseProxyInvalid, value)
	}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return fmt.Errorf("%w: %s", ErrReverseProxyInvalid, value)
		}
		for _, r := range part {
			if r < '0' || r > '9' {
				return fmt.Errorf("%w: %s", ErrReverseProxyInvalid, value)
			}
		}
	}
	return nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isSupportedProvider(provider string) bool {
	switch provider {
	case "console", "gologger":
		return true
	default:
		return false
	}
}

func isSupportedLevel(level string) bool {
	switch normalize(level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(format string) bool {
	switch normalize(format) {
	case "json", "console", "pretty":
		return true
	default:
		return false
	}
}
