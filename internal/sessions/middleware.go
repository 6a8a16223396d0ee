package sessions

import (
	"context"
	"errors"
	"net/http"

	"github.com/goliatone/go-arena/internal/logging"
	"github.com/goliatone/go-arena/pkg/interfaces"
)

type sessionKeyType struct{}

var sessionKey sessionKeyType

// MiddlewareConfig controls the session cookie handed to browsers.
type MiddlewareConfig struct {
	CookieName string
	Secure     bool
	Logger     interfaces.Logger
}

// Middleware attaches a session to every request. A valid session cookie
// reopens the stored session; anything else gets a fresh one. The session is
// written back after the handler runs so value changes and TTL refreshes
// land in the shared cache.
func Middleware(store interfaces.SessionStore, cfg MiddlewareConfig) func(http.Handler) http.Handler {
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "arena_session"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOp()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var sess interfaces.Session
			if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
				opened, err := store.Open(ctx, cookie.Value)
				if err == nil {
					sess = opened
				} else if !errors.Is(err, ErrSessionNotFound) {
					logger.Warn("session open failed", "error", err)
				}
			}
			if sess == nil {
				fresh, err := store.New(ctx)
				if err != nil {
					logger.Error("session create failed", "error", err)
					next.ServeHTTP(w, r)
					return
				}
				sess = fresh
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    sess.Token(),
					Path:     "/",
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(contextWithSession(ctx, sess)))

			if err := store.Save(ctx, sess); err != nil {
				logger.Warn("session save failed", "token", sess.Token(), "error", err)
			}
		})
	}
}

func contextWithSession(ctx context.Context, sess interfaces.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// FromContext returns the request's session, or nil outside the middleware.
func FromContext(ctx context.Context) interfaces.Session {
	if sess, ok := ctx.Value(sessionKey).(interfaces.Session); ok {
		return sess
	}
	return nil
}
