package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ErrInvalidHops indicates a malformed trust configuration string.
var ErrInvalidHops = errors.New("proxy: invalid hop configuration")

// Hops records how many forwarding hops are trusted per header. A count of
// zero leaves the corresponding request field untouched.
type Hops struct {
	For    int
	Proto  int
	Host   int
	Prefix int
}

// ParseHops parses the trust configuration. The empty string disables header
// rewriting. A single integer trusts that many hops for every header; a
// four-part list assigns counts to forwarded-for, proto, host, and prefix in
// that order.
func ParseHops(value string) (Hops, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Hops{}, nil
	}

	parts := strings.Split(trimmed, ",")
	counts := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return Hops{}, fmt.Errorf("%w: %s", ErrInvalidHops, value)
		}
		counts = append(counts, n)
	}

	switch len(counts) {
	case 1:
		n := counts[0]
		return Hops{For: n, Proto: n, Host: n, Prefix: n}, nil
	case 4:
		return Hops{For: counts[0], Proto: counts[1], Host: counts[2], Prefix: counts[3]}, nil
	default:
		return Hops{}, fmt.Errorf("%w: %s", ErrInvalidHops, value)
	}
}

// Enabled reports whether any header is trusted.
func (h Hops) Enabled() bool {
	return h.For > 0 || h.Proto > 0 || h.Host > 0 || h.Prefix > 0
}

// Fix rewrites connection metadata from X-Forwarded-* headers, but only the
// value contributed by the trusted hop. Each forwarding proxy appends one
// value, so the trusted value sits n positions from the end of the list;
// values beyond the trusted hop count came from the client and are ignored.
func Fix(hops Hops) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if value := trustedValue(r.Header, "X-Forwarded-For", hops.For); value != "" {
				r.RemoteAddr = value
			}
			if value := trustedValue(r.Header, "X-Forwarded-Proto", hops.Proto); value != "" {
				r.URL.Scheme = value
			}
			if value := trustedValue(r.Header, "X-Forwarded-Host", hops.Host); value != "" {
				r.Host = value
			}
			if value := trustedValue(r.Header, "X-Forwarded-Prefix", hops.Prefix); value != "" {
				r = r.WithContext(contextWithScriptRoot(r.Context(), normalizeRoot(value)))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func trustedValue(header http.Header, name string, trusted int) string {
	if trusted <= 0 {
		return ""
	}
	raw := header.Get(name)
	if raw == "" {
		return ""
	}
	values := strings.Split(raw, ",")
	if len(values) < trusted {
		return ""
	}
	return strings.TrimSpace(values[len(values)-trusted])
}

type scriptRootKeyType struct{}

var scriptRootKey scriptRootKeyType

// ScriptRoot mounts the application under a fixed path prefix. The prefix is
// stripped from the inbound path exactly once and recorded on the request
// context so outbound URLs can be rebuilt with it. A trusted
// X-Forwarded-Prefix set by Fix takes precedence over the configured value.
func ScriptRoot(root string) func(http.Handler) http.Handler {
	configured := normalizeRoot(root)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			effective := ScriptRootFromContext(r.Context())
			if effective == "" {
				effective = configured
			}
			if effective == "" {
				next.ServeHTTP(w, r)
				return
			}

			if trimmed, ok := strings.CutPrefix(r.URL.Path, effective); ok {
				if trimmed == "" {
					trimmed = "/"
				}
				r.URL.Path = trimmed
				if r.URL.RawPath != "" {
					if raw, ok := strings.CutPrefix(r.URL.RawPath, effective); ok {
						if raw == "" {
							raw = "/"
						}
						r.URL.RawPath = raw
					}
				}
			}
			next.ServeHTTP(w, r.WithContext(contextWithScriptRoot(r.Context(), effective)))
		})
	}
}

func contextWithScriptRoot(ctx context.Context, root string) context.Context {
	return context.WithValue(ctx, scriptRootKey, root)
}

// ScriptRootFromContext returns the active path prefix, or the empty string
// when the application is mounted at the root.
func ScriptRootFromContext(ctx context.Context) string {
	if root, ok := ctx.Value(scriptRootKey).(string); ok {
		return root
	}
	return ""
}

// PathFor prepends the active script root to an application path.
func PathFor(ctx context.Context, path string) string {
	root := ScriptRootFromContext(ctx)
	if root == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return root + path
}

func normalizeRoot(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == "/" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return strings.TrimRight(trimmed, "/")
}
