package templates

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-arena/internal/logging"
	"github.com/goliatone/go-arena/pkg/interfaces"
)

// cacheKey identifies a compiled template. The chain token ties the entry to
// the loader chain that produced it, so rebuilding the chain orphans every
// entry compiled under the previous one. The name component is the
// theme-qualified alias, which keeps per-theme compilations apart even though
// callers always ask by logical name.
type cacheKey struct {
	chainToken uint64
	cacheName  string
}

type cacheEntry struct {
	template *pongo2.Template
	upToDate func() bool
}

// Config configures the template engine.
type Config struct {
	// ActiveTheme returns the theme used to qualify cache names. Consulted on
	// every resolution, never captured at construction time.
	ActiveTheme func() string
	// AutoReload revalidates cached templates against their source before
	// reuse. Stale entries are recompiled transparently.
	AutoReload bool
	// CacheEnabled toggles the compiled-template cache.
	CacheEnabled bool
	// Themes maps logical names onto the theme directory tree.
	Themes ThemeLoaderConfig
	Logger interfaces.Logger
}

// Engine renders pongo2 templates resolved through a three-stage loader
// chain: runtime overrides, then the active theme's directory, then the
// plugin namespace. Nested references inside a template (extends, include)
// resolve through the same chain.
type Engine struct {
	mu sync.RWMutex

	set       *pongo2.TemplateSet
	overrides *OverrideLoader
	themes    *ThemeLoader
	plugins   *PluginLoader
	chain     *Chain
	cache     map[cacheKey]*cacheEntry
	globals   pongo2.Context

	activeTheme  func() string
	autoReload   bool
	cacheEnabled bool
	logger       interfaces.Logger
}

var _ interfaces.TemplateEngine = (*Engine)(nil)

// NewEngine constructs the engine and its loader chain.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOp()
	}

	e := &Engine{
		overrides:    NewOverrideLoader(),
		plugins:      NewPluginLoader(),
		cache:        make(map[cacheKey]*cacheEntry),
		globals:      make(pongo2.Context),
		activeTheme:  cfg.ActiveTheme,
		autoReload:   cfg.AutoReload,
		cacheEnabled: cfg.CacheEnabled,
		logger:       logger,
	}
	if cfg.Themes.ActiveTheme == nil {
		cfg.Themes.ActiveTheme = cfg.ActiveTheme
	}
	e.themes = NewThemeLoader(cfg.Themes)
	e.chain = NewChain(e.overrides, e.themes, e.plugins)
	e.set = pongo2.NewSet("arena", &chainPongoLoader{engine: e})
	return e
}

// Render resolves name through the loader chain and writes the rendered
// output. Data is exposed to the template as plain values only.
func (e *Engine) Render(w io.Writer, name string, data map[string]any) error {
	tmpl, err := e.resolve(name)
	if err != nil {
		return err
	}

	viewContext, err := e.execContext(data)
	if err != nil {
		return fmt.Errorf("templates: convert data for %q: %w", name, err)
	}
	if err := tmpl.ExecuteWriter(viewContext, w); err != nil {
		return fmt.Errorf("templates: execute %q: %w", name, err)
	}
	return nil
}

// RenderString compiles and renders an inline template body. Inline bodies
// may still reference named templates; those resolve through the chain.
func (e *Engine) RenderString(source string, data map[string]any) (string, error) {
	e.mu.RLock()
	set := e.set
	e.mu.RUnlock()

	tmpl, err := set.FromString(source)
	if err != nil {
		return "", fmt.Errorf("templates: parse inline template: %w", err)
	}
	viewContext, err := e.execContext(data)
	if err != nil {
		return "", fmt.Errorf("templates: convert data: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(viewContext, &buf); err != nil {
		return "", fmt.Errorf("templates: execute inline template: %w", err)
	}
	return buf.String(), nil
}

// SetOverride shadows name with an inline body. The loader chain is rebuilt
// so every compiled template from the previous chain is discarded.
func (e *Engine) SetOverride(name, source string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.overrides.Set(name, source)
	e.rebuildChainLocked()
}

// RemoveOverride drops the override for name, restoring loader-chain
// resolution for it.
func (e *Engine) RemoveOverride(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.overrides.Remove(name)
	e.rebuildChainLocked()
}

// MountPluginTemplates attaches a plugin's template filesystem under
// plugins/<plugin>/. Compiled templates from before the mount stay valid
// because plugin names never collide with theme or override names.
func (e *Engine) MountPluginTemplates(plugin string, files fs.FS) {
	e.plugins.Mount(plugin, files)
}

// RegisterFilter exposes a Go function as a template filter.
func (e *Engine) RegisterFilter(name string, fn func(input any, param any) (any, error)) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || fn == nil {
		return errors.New("templates: filter name and function required")
	}

	filter := func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var paramVal any
		if param != nil {
			paramVal = param.Interface()
		}
		result, err := fn(in.Interface(), paramVal)
		if err != nil {
			return nil, &pongo2.Error{Sender: "custom_filter", OrigError: err}
		}
		return pongo2.AsValue(result), nil
	}

	if pongo2.FilterExists(trimmed) {
		return pongo2.ReplaceFilter(trimmed, filter)
	}
	return pongo2.RegisterFilter(trimmed, filter)
}

// SetGlobal publishes a value to every template, including ones already
// compiled and cached. Globals are merged into the execution context under
// the engine lock, so SetGlobal is safe to call while renders are in flight.
func (e *Engine) SetGlobal(name string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.globals[name] = value
}

// execContext converts render data and layers it over the current globals.
// Data values shadow globals of the same name.
func (e *Engine) execContext(data map[string]any) (pongo2.Context, error) {
	viewContext, err := convertToContext(data)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	for name, value := range e.globals {
		if _, ok := viewContext[name]; !ok {
			viewContext[name] = value
		}
	}
	e.mu.RUnlock()
	return viewContext, nil
}

// resolve returns the compiled template for a logical name, consulting the
// compiled cache first. The cache alias qualifies non-admin names with the
// theme active at call time; the loader chain always sees the original name.
func (e *Engine) resolve(name string) (*pongo2.Template, error) {
	cacheName := name
	if !strings.HasPrefix(name, adminPrefix) {
		theme := ""
		if e.activeTheme != nil {
			theme = e.activeTheme()
		}
		cacheName = theme + "/" + name
	}

	e.mu.RLock()
	chain := e.chain
	set := e.set
	key := cacheKey{chainToken: chain.Token(), cacheName: cacheName}
	if e.cacheEnabled {
		if entry, ok := e.cache[key]; ok {
			if !e.autoReload || entry.upToDate() {
				e.mu.RUnlock()
				return entry.template, nil
			}
		}
	}
	e.mu.RUnlock()

	source, err := chain.Load(name)
	if err != nil {
		return nil, err
	}
	tmpl, err := set.FromString(source.Contents)
	if err != nil {
		return nil, fmt.Errorf("templates: compile %q: %w", name, err)
	}

	if e.cacheEnabled {
		e.mu.Lock()
		// The chain may have been rebuilt while compiling; only cache under
		// the chain that produced the source.
		if e.chain.Token() == key.chainToken {
			e.cache[key] = &cacheEntry{template: tmpl, upToDate: source.UpToDate}
		}
		e.mu.Unlock()
	}
	return tmpl, nil
}

func (e *Engine) rebuildChainLocked() {
	e.chain = NewChain(e.overrides, e.themes, e.plugins)
	for key := range e.cache {
		if key.chainToken != e.chain.token {
			delete(e.cache, key)
		}
	}
}

// chainPongoLoader lets pongo2 resolve extends/include references through
// the engine's current loader chain.
type chainPongoLoader struct {
	engine *Engine
}

func (l *chainPongoLoader) Abs(_, name string) string {
	return name
}

func (l *chainPongoLoader) Get(path string) (io.Reader, error) {
	l.engine.mu.RLock()
	chain := l.engine.chain
	l.engine.mu.RUnlock()

	source, err := chain.Load(path)
	if err != nil {
		return nil, err
	}
	return strings.NewReader(source.Contents), nil
}
