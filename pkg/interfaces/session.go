package interfaces

import "context"

// Session is a mutable bag of per-visitor values addressed by an opaque token.
type Session interface {
	Token() string
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
	Values() map[string]any
}

// SessionStore persists sessions in the shared cache under a namespacing
// prefix, substituting for cookie-only sessions.
type SessionStore interface {
	Open(ctx context.Context, token string) (Session, error)
	New(ctx context.Context) (Session, error)
	Save(ctx context.Context, session Session) error
	Destroy(ctx context.Context, token string) error
}
