package server

import (
	"fmt"
	"strings"

	urlkit "github.com/goliatone/go-urlkit"
)

// appGroup names the route group holding the platform's own routes.
const appGroup = "app"

// URLBuilder renders application URLs for templates. Route paths live in a
// urlkit route manager so themes and plugins address pages by name instead
// of hard-coding paths.
type URLBuilder struct {
	manager    *urlkit.RouteManager
	scriptRoot string
}

// NewURLBuilder registers the platform routes. scriptRoot, when set, is
// prepended to every generated URL so links keep working for instances
// mounted under a path prefix.
func NewURLBuilder(scriptRoot string) *URLBuilder {
	manager := urlkit.NewRouteManager(&urlkit.Config{
		Groups: []urlkit.GroupConfig{
			{
				Name: appGroup,
				Paths: map[string]string{
					"index":        "/",
					"healthz":      "/healthz",
					"theme_static": "/themes/:theme/static/:asset",
					"plugin":       "/plugins/:plugin",
				},
			},
		},
	})
	return &URLBuilder{
		manager:    manager,
		scriptRoot: strings.TrimRight(strings.TrimSpace(scriptRoot), "/"),
	}
}

// URLFor builds the URL for a named route. Params come in key/value pairs.
func (b *URLBuilder) URLFor(route string, params ...any) (string, error) {
	if len(params)%2 != 0 {
		return "", fmt.Errorf("server: url_for %q: params must be key/value pairs", route)
	}

	builder, err := b.safeBuilder(route)
	if err != nil {
		return "", err
	}
	for i := 0; i < len(params); i += 2 {
		key, ok := params[i].(string)
		if !ok {
			return "", fmt.Errorf("server: url_for %q: param keys must be strings", route)
		}
		builder.WithParam(key, params[i+1])
	}

	url, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("server: url_for %q: %w", route, err)
	}
	if b.scriptRoot != "" {
		url = b.scriptRoot + url
	}
	return url, nil
}

func (b *URLBuilder) safeBuilder(route string) (builder *urlkit.Builder, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("server: unknown route %q", route)
		}
	}()
	builder = b.manager.Group(appGroup).Builder(route)
	return builder, err
}

// TemplateGlobal adapts URLFor for use as a template global; resolution
// failures render as an empty string rather than aborting the page.
func (b *URLBuilder) TemplateGlobal() func(route string, params ...any) string {
	return func(route string, params ...any) string {
		url, err := b.URLFor(route, params...)
		if err != nil {
			return ""
		}
		return url
	}
}
