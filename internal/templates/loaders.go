package templates

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrTemplateNotFound indicates that no loader in the chain could supply the
// requested template. The wrapped message carries the name the caller asked
// for, never a theme-qualified alias.
var ErrTemplateNotFound = errors.New("templates: template not found")

// ErrNoLoader indicates that the engine was asked to resolve a template
// before any loader was installed.
var ErrNoLoader = errors.New("templates: no loader specified")

// adminPrefix marks template names that bypass the active theme and resolve
// against the fixed admin theme instead.
const adminPrefix = "admin/"

// pluginPrefix namespaces template names contributed by plugins.
const pluginPrefix = "plugins/"

// Source is a loaded template body plus a freshness probe. UpToDate reports
// whether the body on record still matches the backing store; loaders that
// cannot go stale return a probe that is always true.
type Source struct {
	Contents string
	UpToDate func() bool
}

// Loader supplies template source by logical name.
type Loader interface {
	Load(name string) (Source, error)
}

// OverrideLoader serves template bodies registered at runtime. Overrides
// shadow every other loader and are keyed by the exact requested name.
type OverrideLoader struct {
	mu      sync.RWMutex
	sources map[string]string
}

// NewOverrideLoader constructs an empty override table.
func NewOverrideLoader() *OverrideLoader {
	return &OverrideLoader{sources: make(map[string]string)}
}

// Set registers or replaces an override for name.
func (l *OverrideLoader) Set(name, source string) {
	l.mu.Lock()
	l.sources[name] = source
	l.mu.Unlock()
}

// Remove drops the override for name if present.
func (l *OverrideLoader) Remove(name string) {
	l.mu.Lock()
	delete(l.sources, name)
	l.mu.Unlock()
}

// Len returns the number of registered overrides.
func (l *OverrideLoader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sources)
}

// Load returns the override body for name.
func (l *OverrideLoader) Load(name string) (Source, error) {
	l.mu.RLock()
	source, ok := l.sources[name]
	l.mu.RUnlock()
	if !ok {
		return Source{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return Source{
		Contents: source,
		UpToDate: func() bool { return true },
	}, nil
}

// ThemeLoaderConfig configures how logical names map onto theme directories.
type ThemeLoaderConfig struct {
	// BasePath is the directory that holds one subdirectory per theme.
	BasePath string
	// AdminTheme names the theme directory used for admin/ templates.
	AdminTheme string
	// DefaultTheme is consulted when FallbackToDefault is set and the active
	// theme lacks the requested template.
	DefaultTheme string
	// FallbackToDefault retries missing templates against DefaultTheme.
	FallbackToDefault bool
	// ActiveTheme returns the current theme name. It is consulted on every
	// load so a theme switch takes effect without restarting.
	ActiveTheme func() string
}

// ThemeLoader reads templates from <BasePath>/<theme>/templates/<name>.
// Names under admin/ resolve against the admin theme with the prefix kept,
// so the admin templates form their own directory tree.
type ThemeLoader struct {
	cfg ThemeLoaderConfig
}

// NewThemeLoader constructs a loader over a theme directory tree.
func NewThemeLoader(cfg ThemeLoaderConfig) *ThemeLoader {
	return &ThemeLoader{cfg: cfg}
}

// Load resolves name to a file under the appropriate theme directory.
func (l *ThemeLoader) Load(name string) (Source, error) {
	cleaned, err := cleanTemplateName(name)
	if err != nil {
		return Source{}, err
	}

	if strings.HasPrefix(cleaned, adminPrefix) {
		return l.loadFrom(l.cfg.AdminTheme, strings.TrimPrefix(cleaned, adminPrefix), name)
	}

	theme := ""
	if l.cfg.ActiveTheme != nil {
		theme = l.cfg.ActiveTheme()
	}
	if theme == "" {
		theme = l.cfg.DefaultTheme
	}

	source, err := l.loadFrom(theme, cleaned, name)
	if err != nil && l.cfg.FallbackToDefault && l.cfg.DefaultTheme != "" && l.cfg.DefaultTheme != theme {
		return l.loadFrom(l.cfg.DefaultTheme, cleaned, name)
	}
	return source, err
}

func (l *ThemeLoader) loadFrom(theme, relative, requested string) (Source, error) {
	if theme == "" {
		return Source{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, requested)
	}
	full := filepath.Join(l.cfg.BasePath, theme, "templates", filepath.FromSlash(relative))

	contents, err := os.ReadFile(full)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, requested)
	}
	info, err := os.Stat(full)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, requested)
	}
	modTime := info.ModTime()

	return Source{
		Contents: string(contents),
		UpToDate: func() bool {
			current, err := os.Stat(full)
			if err != nil {
				return false
			}
			return current.ModTime().Equal(modTime)
		},
	}, nil
}

// PluginLoader serves templates contributed by plugins. Names take the form
// plugins/<plugin>/<path> and resolve inside the fs.FS the plugin registered.
type PluginLoader struct {
	mu      sync.RWMutex
	sources map[string]fs.FS
}

// NewPluginLoader constructs an empty plugin template namespace.
func NewPluginLoader() *PluginLoader {
	return &PluginLoader{sources: make(map[string]fs.FS)}
}

// Mount attaches a plugin's template filesystem under its name.
func (l *PluginLoader) Mount(plugin string, files fs.FS) {
	l.mu.Lock()
	l.sources[plugin] = files
	l.mu.Unlock()
}

// Load resolves a plugins/ namespaced template name.
func (l *PluginLoader) Load(name string) (Source, error) {
	cleaned, err := cleanTemplateName(name)
	if err != nil {
		return Source{}, err
	}
	if !strings.HasPrefix(cleaned, pluginPrefix) {
		return Source{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	rest := strings.TrimPrefix(cleaned, pluginPrefix)
	plugin, relative, ok := strings.Cut(rest, "/")
	if !ok || relative == "" {
		return Source{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	l.mu.RLock()
	files, mounted := l.sources[plugin]
	l.mu.RUnlock()
	if !mounted {
		return Source{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	contents, err := fs.ReadFile(files, relative)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return Source{
		Contents: string(contents),
		UpToDate: func() bool { return true },
	}, nil
}

var chainTokens atomic.Uint64

// Chain consults loaders in order and returns the first hit. Each chain
// carries a unique token so compiled-template caches keyed on the token are
// orphaned the moment the chain is rebuilt.
type Chain struct {
	token   uint64
	loaders []Loader
}

// NewChain builds a loader chain with a fresh identity token.
func NewChain(loaders ...Loader) *Chain {
	return &Chain{
		token:   chainTokens.Add(1),
		loaders: loaders,
	}
}

// Token returns the chain's identity.
func (c *Chain) Token() uint64 {
	if c == nil {
		return 0
	}
	return c.token
}

// Load asks each loader in order for name.
func (c *Chain) Load(name string) (Source, error) {
	if c == nil || len(c.loaders) == 0 {
		return Source{}, ErrNoLoader
	}
	for _, loader := range c.loaders {
		source, err := loader.Load(name)
		if err == nil {
			return source, nil
		}
		if !errors.Is(err, ErrTemplateNotFound) {
			return Source{}, err
		}
	}
	return Source{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
}

// cleanTemplateName normalizes a logical name and rejects traversal outside
// the template roots.
func cleanTemplateName(name string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(name), "/")
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return cleaned, nil
}
