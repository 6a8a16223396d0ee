package plugins

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-arena/internal/logging"
	"github.com/goliatone/go-arena/pkg/interfaces"
)

// ErrDuplicatePlugin indicates two registrations under the same name.
var ErrDuplicatePlugin = errors.New("plugins: duplicate plugin name")

// ErrInvalidPlugin indicates a plugin without a usable name.
var ErrInvalidPlugin = errors.New("plugins: plugin name required")

// Registry collects compiled-in plugins before the application factory runs
// and wires them into the instance during Load.
type Registry struct {
	mu      sync.Mutex
	plugins map[string]interfaces.Plugin
	loaded  bool
	logger  interfaces.Logger
}

// NewRegistry constructs an empty plugin registry.
func NewRegistry(logger interfaces.Logger) *Registry {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Registry{
		plugins: make(map[string]interfaces.Plugin),
		logger:  logger,
	}
}

// Register adds a plugin. Registration after Load is rejected so every
// plugin goes through the full wiring sequence.
func (r *Registry) Register(plugin interfaces.Plugin) error {
	if plugin == nil || strings.TrimSpace(plugin.Name()) == "" {
		return ErrInvalidPlugin
	}
	name := strings.TrimSpace(plugin.Name())

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return fmt.Errorf("plugins: registry already loaded, cannot register %s", name)
	}
	if _, exists := r.plugins[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, name)
	}
	r.plugins[name] = plugin
	return nil
}

// Names returns registered plugin names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.namesLocked()
}

// TemplateMounter receives plugin template filesystems; the template engine
// implements it.
type TemplateMounter interface {
	MountPluginTemplates(plugin string, files fs.FS)
}

// Load wires every registered plugin into the running instance: the Setup
// hook first, then the template namespace, then routes mounted under
// /plugins/<name>. Plugins load in name order so startup is deterministic.
// The first failing plugin aborts the load; a broken plugin is a deployment
// error, not something to serve around.
func (r *Registry) Load(host interfaces.PluginHost, router chi.Router, mounter TemplateMounter) error {
	r.mu.Lock()
	if r.loaded {
		r.mu.Unlock()
		return errors.New("plugins: registry already loaded")
	}
	r.loaded = true
	ordered := make([]interfaces.Plugin, 0, len(r.plugins))
	for _, name := range r.namesLocked() {
		ordered = append(ordered, r.plugins[name])
	}
	r.mu.Unlock()

	for _, plugin := range ordered {
		name := strings.TrimSpace(plugin.Name())

		if setup, ok := plugin.(interfaces.SetupPlugin); ok {
			if err := setup.Setup(host); err != nil {
				return fmt.Errorf("plugins: setup %s: %w", name, err)
			}
		}
		if templated, ok := plugin.(interfaces.TemplatePlugin); ok && mounter != nil {
			if files := templated.Templates(); files != nil {
				mounter.MountPluginTemplates(name, files)
			}
		}
		if routable, ok := plugin.(interfaces.RoutablePlugin); ok && router != nil {
			var routeErr error
			router.Route("/plugins/"+name, func(sub chi.Router) {
				routeErr = routable.Routes(sub)
			})
			if routeErr != nil {
				return fmt.Errorf("plugins: routes %s: %w", name, routeErr)
			}
		}
		r.logger.Info("plugin loaded", "plugin", name)
	}
	return nil
}

func (r *Registry) namesLocked() []string {
	out := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
