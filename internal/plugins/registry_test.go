package plugins

import (
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/go-chi/chi/v5"

	"github.com/goliatone/go-arena/pkg/interfaces"
)

type testPlugin struct {
	name      string
	templates fs.FS
	setupErr  error
	setupSeen bool
	routed    bool
}

func (p *testPlugin) Name() string { return p.name }

func (p *testPlugin) Setup(interfaces.PluginHost) error {
	p.setupSeen = true
	return p.setupErr
}

func (p *testPlugin) Templates() fs.FS { return p.templates }

func (p *testPlugin) Routes(r chi.Router) error {
	p.routed = true
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("pong from " + p.name))
	})
	return nil
}

type mountSpy struct {
	mounted map[string]fs.FS
}

func (m *mountSpy) MountPluginTemplates(plugin string, files fs.FS) {
	if m.mounted == nil {
		m.mounted = make(map[string]fs.FS)
	}
	m.mounted[plugin] = files
}

type hostStub struct{}

func (hostStub) Settings() interfaces.SettingsStore   { return nil }
func (hostStub) Cache() interfaces.CacheProvider      { return nil }
func (hostStub) Templates() interfaces.TemplateEngine { return nil }
func (hostStub) Logger() interfaces.Logger            { return nil }

func TestRegistryRejectsDuplicatesAndBlanks(t *testing.T) {
	registry := NewRegistry(nil)

	if err := registry.Register(&testPlugin{name: "scoreboard"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(&testPlugin{name: "scoreboard"}); !errors.Is(err, ErrDuplicatePlugin) {
		t.Fatalf("expected ErrDuplicatePlugin, got %v", err)
	}
	if err := registry.Register(&testPlugin{name: "  "}); !errors.Is(err, ErrInvalidPlugin) {
		t.Fatalf("expected ErrInvalidPlugin, got %v", err)
	}
}

func TestRegistryLoadWiresEverything(t *testing.T) {
	registry := NewRegistry(nil)
	plugin := &testPlugin{
		name:      "scoreboard",
		templates: fstest.MapFS{"widget.html": {Data: []byte("w")}},
	}
	if err := registry.Register(plugin); err != nil {
		t.Fatalf("register: %v", err)
	}

	router := chi.NewRouter()
	spy := &mountSpy{}
	if err := registry.Load(hostStub{}, router, spy); err != nil {
		t.Fatalf("load: %v", err)
	}

	if !plugin.setupSeen {
		t.Fatal("setup hook must run")
	}
	if !plugin.routed {
		t.Fatal("routes must be mounted")
	}
	if _, ok := spy.mounted["scoreboard"]; !ok {
		t.Fatal("templates must be mounted")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plugins/scoreboard/ping", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "pong from scoreboard" {
		t.Fatalf("unexpected route response %d %q", rec.Code, rec.Body.String())
	}
}

func TestRegistryLoadAbortsOnSetupFailure(t *testing.T) {
	registry := NewRegistry(nil)
	broken := &testPlugin{name: "broken", setupErr: errors.New("boom")}
	if err := registry.Register(broken); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := registry.Load(hostStub{}, chi.NewRouter(), &mountSpy{})
	if err == nil {
		t.Fatal("a failing setup hook must abort the load")
	}
}

func TestRegistryLoadIsOneShot(t *testing.T) {
	registry := NewRegistry(nil)
	if err := registry.Load(hostStub{}, chi.NewRouter(), &mountSpy{}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := registry.Load(hostStub{}, chi.NewRouter(), &mountSpy{}); err == nil {
		t.Fatal("second load must fail")
	}
	if err := registry.Register(&testPlugin{name: "late"}); err == nil {
		t.Fatal("registration after load must fail")
	}
}
