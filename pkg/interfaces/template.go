package interfaces

import "io"

// TemplateEngine resolves logical template names to renderable output,
// honoring the active theme, the override table, and the plugin namespace.
type TemplateEngine interface {
	Render(w io.Writer, name string, data map[string]any) error
	RenderString(source string, data map[string]any) (string, error)
	SetOverride(name, source string)
	RegisterFilter(name string, fn func(input any, param any) (any, error)) error
	SetGlobal(name string, value any)
}
