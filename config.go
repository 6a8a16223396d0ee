package arena

import "github.com/goliatone/go-arena/internal/runtimeconfig"

// Config aggregates the settings consumed by the application factory.
type Config = runtimeconfig.Config

// Per-section aliases so embedders can build configs without importing
// internal packages.
type (
	DatabaseConfig  = runtimeconfig.DatabaseConfig
	CacheConfig     = runtimeconfig.CacheConfig
	SessionConfig   = runtimeconfig.SessionConfig
	ThemeConfig     = runtimeconfig.ThemeConfig
	TemplateConfig  = runtimeconfig.TemplateConfig
	ProxyConfig     = runtimeconfig.ProxyConfig
	LocaleConfig    = runtimeconfig.LocaleConfig
	LoggingConfig   = runtimeconfig.LoggingConfig
	UpdateConfig    = runtimeconfig.UpdateConfig
	BootstrapConfig = runtimeconfig.BootstrapConfig
	ServerConfig    = runtimeconfig.ServerConfig
)

// DefaultConfig returns opinionated defaults for an embedded deployment.
func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}
