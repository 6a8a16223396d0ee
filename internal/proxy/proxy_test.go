package proxy

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseHops(t *testing.T) {
	cases := []struct {
		value string
		want  Hops
		err   bool
	}{
		{value: "", want: Hops{}},
		{value: "1", want: Hops{For: 1, Proto: 1, Host: 1, Prefix: 1}},
		{value: "2", want: Hops{For: 2, Proto: 2, Host: 2, Prefix: 2}},
		{value: "1,1,0,0", want: Hops{For: 1, Proto: 1}},
		{value: "0,0,0,1", want: Hops{Prefix: 1}},
		{value: "1,2", err: true},
		{value: "a", err: true},
		{value: "-1", err: true},
		{value: "1,1,1,1,1", err: true},
	}
	for _, tc := range cases {
		got, err := ParseHops(tc.value)
		if tc.err {
			if !errors.Is(err, ErrInvalidHops) {
				t.Fatalf("%q: expected ErrInvalidHops, got %v", tc.value, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.value, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %+v, got %+v", tc.value, tc.want, got)
		}
	}
}

func TestFixTrustsConfiguredHopOnly(t *testing.T) {
	hops, err := ParseHops("1,1,0,0")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var seen *http.Request
	handler := Fix(hops)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = r
	}))

	// Two values in the list: the first came from the client, the last from
	// the single trusted proxy.
	req := httptest.NewRequest(http.MethodGet, "http://arena.test/", nil)
	req.RemoteAddr = "10.0.0.1:9999"
	req.Host = "internal.local"
	req.Header.Set("X-Forwarded-For", "6.6.6.6, 203.0.113.7")
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "spoofed.example.com")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen.RemoteAddr != "203.0.113.7" {
		t.Fatalf("expected trusted hop address, got %q", seen.RemoteAddr)
	}
	if seen.URL.Scheme != "https" {
		t.Fatalf("expected https scheme, got %q", seen.URL.Scheme)
	}
	if seen.Host != "internal.local" {
		t.Fatalf("host hop count is zero, header must be ignored, got %q", seen.Host)
	}
}

func TestFixIgnoresShortHeaderList(t *testing.T) {
	hops := Hops{For: 2}

	var seen *http.Request
	handler := Fix(hops)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = r
	}))

	req := httptest.NewRequest(http.MethodGet, "http://arena.test/", nil)
	req.RemoteAddr = "10.0.0.1:9999"
	req.Header.Set("X-Forwarded-For", "6.6.6.6")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen.RemoteAddr != "10.0.0.1:9999" {
		t.Fatalf("a list shorter than the trusted hop count must be ignored, got %q", seen.RemoteAddr)
	}
}

func TestScriptRootStripsPrefixOnce(t *testing.T) {
	var seenPath, seenRoot string
	inner := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
		seenRoot = ScriptRootFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "http://arena.test/ctf/challenges", nil)
	ScriptRoot("/ctf")(inner).ServeHTTP(httptest.NewRecorder(), req)

	if seenPath != "/challenges" {
		t.Fatalf("expected stripped path, got %q", seenPath)
	}
	if seenRoot != "/ctf" {
		t.Fatalf("expected script root on context, got %q", seenRoot)
	}
}

func TestScriptRootLeavesUnprefixedPaths(t *testing.T) {
	var seenPath string
	inner := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
	})

	req := httptest.NewRequest(http.MethodGet, "http://arena.test/healthz", nil)
	ScriptRoot("/ctf")(inner).ServeHTTP(httptest.NewRecorder(), req)

	if seenPath != "/healthz" {
		t.Fatalf("paths outside the prefix must pass through, got %q", seenPath)
	}
}

func TestForwardedPrefixOverridesConfiguredRoot(t *testing.T) {
	var seenRoot string
	inner := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seenRoot = ScriptRootFromContext(r.Context())
	})

	chain := Fix(Hops{Prefix: 1})(ScriptRoot("/ctf")(inner))
	req := httptest.NewRequest(http.MethodGet, "http://arena.test/events/page", nil)
	req.Header.Set("X-Forwarded-Prefix", "/events")
	chain.ServeHTTP(httptest.NewRecorder(), req)

	if seenRoot != "/events" {
		t.Fatalf("trusted forwarded prefix must win, got %q", seenRoot)
	}
}

func TestPathFor(t *testing.T) {
	ctx := contextWithScriptRoot(t.Context(), "/ctf")
	if got := PathFor(ctx, "/scoreboard"); got != "/ctf/scoreboard" {
		t.Fatalf("unexpected path %q", got)
	}
	if got := PathFor(t.Context(), "/scoreboard"); got != "/scoreboard" {
		t.Fatalf("without a root the path must pass through, got %q", got)
	}
}
