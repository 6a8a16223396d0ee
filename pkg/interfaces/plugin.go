package interfaces

import (
	"io/fs"

	"github.com/go-chi/chi/v5"
)

// Plugin is a compiled-in platform extension. Implementations register
// themselves before the application factory runs; the loader wires their
// routes, templates, and assets into the running instance.
type Plugin interface {
	Name() string
}

// RoutablePlugin contributes HTTP routes mounted under /plugins/<name>.
type RoutablePlugin interface {
	Plugin
	Routes(r chi.Router) error
}

// TemplatePlugin contributes templates under the plugins/<name>/ namespace
// of the loader chain.
type TemplatePlugin interface {
	Plugin
	Templates() fs.FS
}

// SetupPlugin receives the platform services once they are constructed.
type SetupPlugin interface {
	Plugin
	Setup(host PluginHost) error
}

// PluginHost is the narrow view of the running application handed to plugins.
type PluginHost interface {
	Settings() SettingsStore
	Cache() CacheProvider
	Templates() TemplateEngine
	Logger() Logger
}
