package themes

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	gotheme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-arena/internal/logging"
	"github.com/goliatone/go-arena/pkg/interfaces"
)

// ErrThemeNotFound indicates that a requested theme is not installed.
var ErrThemeNotFound = errors.New("themes: theme not found")

// Config describes where installed themes live and which ones the platform
// falls back to.
type Config struct {
	// BasePath holds one subdirectory per installed theme.
	BasePath string
	// DefaultTheme is used when no theme has been configured yet.
	DefaultTheme string
	// AdminTheme serves the admin surface and is always required.
	AdminTheme string
	// CSSVariablePrefix namespaces the CSS custom properties derived from
	// manifest tokens.
	CSSVariablePrefix string
}

// Service discovers installed themes, registers their manifests, and answers
// selection queries. A theme without a manifest file is still usable; it is
// registered with a synthesized manifest carrying only the directory name.
type Service struct {
	cfg      Config
	registry *gotheme.MemoryRegistry
	logger   interfaces.Logger

	mu        sync.RWMutex
	manifests map[string]*gotheme.Manifest
}

// NewService constructs the theme service. Call LoadAll before use.
func NewService(cfg Config, logger interfaces.Logger) *Service {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Service{
		cfg:       cfg,
		registry:  gotheme.NewRegistry(),
		logger:    logger,
		manifests: make(map[string]*gotheme.Manifest),
	}
}

// LoadAll scans the theme directory and registers every theme found. A theme
// whose manifest fails to parse is skipped with a warning; the scan itself
// failing is fatal because the platform cannot render anything without
// themes.
func (s *Service) LoadAll() error {
	entries, err := os.ReadDir(s.cfg.BasePath)
	if err != nil {
		return fmt.Errorf("themes: scan %s: %w", s.cfg.BasePath, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		manifest, err := s.loadManifest(name)
		if err != nil {
			s.logger.Warn("theme manifest rejected", "theme", name, "error", err)
			continue
		}
		if err := s.registry.Register(manifest); err != nil {
			s.logger.Warn("theme registration failed", "theme", name, "error", err)
			continue
		}
		s.manifests[name] = manifest
		s.logger.Debug("theme registered", "theme", name, "version", manifest.Version)
	}

	if len(s.manifests) == 0 {
		return fmt.Errorf("themes: no themes found under %s", s.cfg.BasePath)
	}
	return nil
}

func (s *Service) loadManifest(name string) (*gotheme.Manifest, error) {
	dir := path.Join(s.cfg.BasePath, name)
	if _, err := os.Stat(path.Join(dir, "theme.json")); err != nil {
		return &gotheme.Manifest{Name: name}, nil
	}
	manifest, err := gotheme.LoadDir(os.DirFS(dir), ".")
	if err != nil {
		return nil, err
	}

	normalized := *manifest
	if strings.TrimSpace(normalized.Name) == "" {
		normalized.Name = name
	}
	return &normalized, nil
}

// Exists reports whether a theme was discovered during LoadAll.
func (s *Service) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.manifests[strings.TrimSpace(name)]
	return ok
}

// Names returns the installed theme names in sorted order.
func (s *Service) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.manifests))
	for name := range s.manifests {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Selection resolves a theme and variant against the registry, falling back
// to the configured default theme when the requested one is unknown.
func (s *Service) Selection(name, variant string) (*gotheme.Selection, error) {
	selector := gotheme.Selector{
		Registry:     s.registry,
		DefaultTheme: s.cfg.DefaultTheme,
	}
	selection, err := selector.Select(strings.TrimSpace(name), strings.TrimSpace(variant))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrThemeNotFound, name)
	}
	return selection, nil
}

// Context converts a selection into the flat structure templates consume.
func (s *Service) Context(selection *gotheme.Selection) map[string]any {
	if selection == nil {
		return map[string]any{
			"name":     "",
			"tokens":   map[string]string{},
			"css_vars": map[string]string{},
		}
	}
	return map[string]any{
		"name":     selection.Theme,
		"variant":  selection.Variant,
		"tokens":   selection.Tokens(),
		"css_vars": selection.CSSVariables(s.cfg.CSSVariablePrefix),
	}
}

// AssetURL returns the public URL for a theme-relative asset.
func (s *Service) AssetURL(theme, asset string) string {
	cleaned := strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(asset)), "/")
	if cleaned == "" || cleaned == "." {
		return ""
	}
	return "/themes/" + strings.TrimSpace(theme) + "/static/" + cleaned
}

// StaticDir returns the on-disk directory that backs a theme's static assets.
func (s *Service) StaticDir(theme string) string {
	return path.Join(s.cfg.BasePath, strings.TrimSpace(theme), "static")
}
