package templates

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"
)

type engineFixture struct {
	engine *Engine
	base   string
	theme  string
}

func newEngineFixture(t *testing.T, autoReload, cacheEnabled bool) *engineFixture {
	t.Helper()
	f := &engineFixture{base: t.TempDir(), theme: "core-beta"}
	f.engine = NewEngine(Config{
		ActiveTheme:  func() string { return f.theme },
		AutoReload:   autoReload,
		CacheEnabled: cacheEnabled,
		Themes: ThemeLoaderConfig{
			BasePath:     f.base,
			AdminTheme:   "admin",
			DefaultTheme: "core-beta",
		},
	})
	return f
}

func (f *engineFixture) render(t *testing.T, name string, data map[string]any) string {
	t.Helper()
	var buf bytes.Buffer
	if err := f.engine.Render(&buf, name, data); err != nil {
		t.Fatalf("render %s: %v", name, err)
	}
	return buf.String()
}

func TestEngineRendersThemeTemplate(t *testing.T) {
	f := newEngineFixture(t, false, true)
	writeThemeTemplate(t, f.base, "core-beta", "page.html", "Hello {{ name }}")

	out := f.render(t, "page.html", map[string]any{"name": "arena"})
	if out != "Hello arena" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestEngineOverrideShadowsTheme(t *testing.T) {
	f := newEngineFixture(t, false, true)
	writeThemeTemplate(t, f.base, "core-beta", "page.html", "theme body")

	if got := f.render(t, "page.html", nil); got != "theme body" {
		t.Fatalf("unexpected output %q", got)
	}

	// The first render cached a compiled template; registering the override
	// must still win because the chain identity changed.
	f.engine.SetOverride("page.html", "override body")
	if got := f.render(t, "page.html", nil); got != "override body" {
		t.Fatalf("override must shadow the cached theme template, got %q", got)
	}

	f.engine.RemoveOverride("page.html")
	if got := f.render(t, "page.html", nil); got != "theme body" {
		t.Fatalf("removing the override must restore theme resolution, got %q", got)
	}
}

func TestEngineThemeSwitchIsImmediate(t *testing.T) {
	f := newEngineFixture(t, false, true)
	writeThemeTemplate(t, f.base, "core-beta", "page.html", "beta")
	writeThemeTemplate(t, f.base, "aurora", "page.html", "aurora")

	if got := f.render(t, "page.html", nil); got != "beta" {
		t.Fatalf("unexpected output %q", got)
	}
	f.theme = "aurora"
	if got := f.render(t, "page.html", nil); got != "aurora" {
		t.Fatalf("theme switch must take effect on the next render, got %q", got)
	}
	f.theme = "core-beta"
	if got := f.render(t, "page.html", nil); got != "beta" {
		t.Fatalf("switching back must serve the earlier compilation, got %q", got)
	}
}

func TestEngineAdminTemplatesIgnoreActiveTheme(t *testing.T) {
	f := newEngineFixture(t, false, true)
	writeThemeTemplate(t, f.base, "admin", "panel.html", "admin panel")

	if got := f.render(t, "admin/panel.html", nil); got != "admin panel" {
		t.Fatalf("unexpected output %q", got)
	}
	f.theme = "aurora"
	if got := f.render(t, "admin/panel.html", nil); got != "admin panel" {
		t.Fatalf("admin templates must not depend on the active theme, got %q", got)
	}
}

func TestEngineCacheServesStaleWithoutAutoReload(t *testing.T) {
	f := newEngineFixture(t, false, true)
	full := writeThemeTemplate(t, f.base, "core-beta", "page.html", "v1")

	if got := f.render(t, "page.html", nil); got != "v1" {
		t.Fatalf("unexpected output %q", got)
	}

	touchTemplate(t, full, "v2")
	if got := f.render(t, "page.html", nil); got != "v1" {
		t.Fatalf("without auto reload the cached compilation must be reused, got %q", got)
	}
}

func TestEngineAutoReloadRecompilesStaleTemplates(t *testing.T) {
	f := newEngineFixture(t, true, true)
	full := writeThemeTemplate(t, f.base, "core-beta", "page.html", "v1")

	if got := f.render(t, "page.html", nil); got != "v1" {
		t.Fatalf("unexpected output %q", got)
	}

	touchTemplate(t, full, "v2")
	if got := f.render(t, "page.html", nil); got != "v2" {
		t.Fatalf("auto reload must pick up the modified file, got %q", got)
	}
}

func TestEngineExtendsResolvesThroughChain(t *testing.T) {
	f := newEngineFixture(t, false, true)
	writeThemeTemplate(t, f.base, "core-beta", "base.html", "[{% block body %}{% endblock %}]")
	writeThemeTemplate(t, f.base, "core-beta", "child.html", `{% extends "base.html" %}{% block body %}child{% endblock %}`)

	if got := f.render(t, "child.html", nil); got != "[child]" {
		t.Fatalf("unexpected output %q", got)
	}

	f.engine.SetOverride("base.html", "<{% block body %}{% endblock %}>")
	if got := f.render(t, "child.html", nil); got != "<child>" {
		t.Fatalf("parent templates must resolve through the chain, got %q", got)
	}
}

func TestEnginePluginNamespace(t *testing.T) {
	f := newEngineFixture(t, false, true)
	f.engine.MountPluginTemplates("scoreboard", fstest.MapFS{
		"widget.html": {Data: []byte("score: {{ points }}")},
	})

	out := f.render(t, "plugins/scoreboard/widget.html", map[string]any{"points": 42})
	if out != "score: 42" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestEngineMissingTemplate(t *testing.T) {
	f := newEngineFixture(t, false, true)

	var buf bytes.Buffer
	err := f.engine.Render(&buf, "nope.html", nil)
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "nope.html") {
		t.Fatalf("error must name the requested template, got %q", err.Error())
	}
}

func TestEngineRenderString(t *testing.T) {
	f := newEngineFixture(t, false, true)

	out, err := f.engine.RenderString("inline {{ value }}", map[string]any{"value": "ok"})
	if err != nil {
		t.Fatalf("render string: %v", err)
	}
	if out != "inline ok" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestEngineGlobalsReachCachedTemplates(t *testing.T) {
	f := newEngineFixture(t, false, true)
	writeThemeTemplate(t, f.base, "core-beta", "page.html", "{{ site_name }}")

	f.engine.SetGlobal("site_name", "Arena")
	if got := f.render(t, "page.html", nil); got != "Arena" {
		t.Fatalf("unexpected output %q", got)
	}

	// The compiled template is cached; updating the global must still be
	// visible on the next render.
	f.engine.SetGlobal("site_name", "Arena CTF")
	if got := f.render(t, "page.html", nil); got != "Arena CTF" {
		t.Fatalf("globals must update in place for cached templates, got %q", got)
	}
}

func TestEngineAbsentValuesRenderEmpty(t *testing.T) {
	f := newEngineFixture(t, false, true)
	writeThemeTemplate(t, f.base, "core-beta", "page.html", "[{{ missing }}|{{ present }}]")

	out := f.render(t, "page.html", map[string]any{"present": nil})
	if out != "[|]" {
		t.Fatalf("absent values must render as empty strings, got %q", out)
	}
}

func TestEngineDataShadowsGlobals(t *testing.T) {
	f := newEngineFixture(t, false, true)
	f.engine.SetGlobal("site_name", "Arena")

	out, err := f.engine.RenderString("{{ site_name }}", map[string]any{"site_name": "Override"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "Override" {
		t.Fatalf("render data must shadow globals, got %q", out)
	}
}

func TestEngineSetGlobalDuringRender(t *testing.T) {
	f := newEngineFixture(t, false, true)
	writeThemeTemplate(t, f.base, "core-beta", "page.html", "{{ site_name }}")
	f.engine.SetGlobal("site_name", "Arena")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if worker%2 == 0 {
					f.engine.SetGlobal("site_name", "Arena")
					continue
				}
				var buf bytes.Buffer
				if err := f.engine.Render(&buf, "page.html", nil); err != nil {
					t.Errorf("render: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestEngineRegisterFilter(t *testing.T) {
	f := newEngineFixture(t, false, true)

	err := f.engine.RegisterFilter("shout", func(input any, _ any) (any, error) {
		s, _ := input.(string)
		return strings.ToUpper(s), nil
	})
	if err != nil {
		t.Fatalf("register filter: %v", err)
	}

	out, err := f.engine.RenderString("{{ word|shout }}", map[string]any{"word": "go"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "GO" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestEngineDataIsFlattened(t *testing.T) {
	type user struct {
		Name  string `json:"name"`
		Admin bool   `json:"admin"`
	}

	f := newEngineFixture(t, false, true)
	out, err := f.engine.RenderString("{{ user.name }}:{{ user.admin }}", map[string]any{
		"user": user{Name: "ada", Admin: true},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "ada:True" {
		t.Fatalf("struct data must flatten to JSON shapes, got %q", out)
	}
}

func touchTemplate(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}
