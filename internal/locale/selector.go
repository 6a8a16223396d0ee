package locale

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"github.com/goliatone/go-arena/internal/sessions"
)

// sessionKey is where the visitor's explicit language choice is stored.
const sessionKey = "locale"

// Config lists the languages the platform can display.
type Config struct {
	// Default is served when no signal matches a supported language.
	Default string
	// Supported restricts selection to these language tags, first entry
	// winning ties during matching.
	Supported []string
	// QueryParam lets a request switch language explicitly, e.g. ?lang=de.
	QueryParam string
}

// Selector picks a display language per request from, in order, an explicit
// query parameter, the session, and the Accept-Language header.
type Selector struct {
	cfg     Config
	matcher language.Matcher
	tags    []language.Tag
}

// NewSelector builds a selector for the configured languages. Unparseable
// supported tags are skipped; an empty result falls back to the default.
func NewSelector(cfg Config) *Selector {
	if cfg.Default == "" {
		cfg.Default = "en"
	}
	if cfg.QueryParam == "" {
		cfg.QueryParam = "lang"
	}

	var tags []language.Tag
	for _, supported := range cfg.Supported {
		tag, err := language.Parse(strings.TrimSpace(supported))
		if err != nil {
			continue
		}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		if tag, err := language.Parse(cfg.Default); err == nil {
			tags = append(tags, tag)
		} else {
			tags = append(tags, language.English)
		}
	}

	return &Selector{
		cfg:     cfg,
		matcher: language.NewMatcher(tags),
		tags:    tags,
	}
}

// Select resolves the display language for a request. A query parameter that
// matches a supported language also sticks it to the session.
func (s *Selector) Select(r *http.Request) string {
	if requested := r.URL.Query().Get(s.cfg.QueryParam); requested != "" {
		if matched, ok := s.match(requested); ok {
			if sess := sessions.FromContext(r.Context()); sess != nil {
				sess.Set(sessionKey, matched)
			}
			return matched
		}
	}

	if sess := sessions.FromContext(r.Context()); sess != nil {
		if stored, ok := sess.Get(sessionKey); ok {
			if value, ok := stored.(string); ok && value != "" {
				if matched, ok := s.match(value); ok {
					return matched
				}
			}
		}
	}

	if header := r.Header.Get("Accept-Language"); header != "" {
		if requested, _, err := language.ParseAcceptLanguage(header); err == nil && len(requested) > 0 {
			if _, index, conf := s.matcher.Match(requested...); conf > language.No {
				return s.tags[index].String()
			}
		}
	}

	return s.cfg.Default
}

func (s *Selector) match(value string) (string, bool) {
	tag, err := language.Parse(strings.TrimSpace(value))
	if err != nil {
		return "", false
	}
	if _, index, conf := s.matcher.Match(tag); conf > language.No {
		return s.tags[index].String(), true
	}
	return "", false
}

type localeKeyType struct{}

var localeKey localeKeyType

// Middleware resolves the request language once and stores it on the
// context. It must run after the session middleware so explicit choices
// stick.
func (s *Selector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		selected := s.Select(r)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), localeKey, selected)))
	})
}

// FromContext returns the language resolved by Middleware, or the empty
// string outside of it.
func FromContext(ctx context.Context) string {
	if value, ok := ctx.Value(localeKey).(string); ok {
		return value
	}
	return ""
}
