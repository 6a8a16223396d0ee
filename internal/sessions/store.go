package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-arena/internal/cache"
	"github.com/goliatone/go-arena/pkg/interfaces"
)

// ErrSessionNotFound indicates that a token does not map to a live session.
var ErrSessionNotFound = errors.New("sessions: session not found")

// session is the in-memory view of one visitor's state. It is handed out per
// request; concurrent handlers for the same visitor each get their own copy
// and the last Save wins.
type session struct {
	mu     sync.RWMutex
	token  string
	values map[string]any
}

var _ interfaces.Session = (*session)(nil)

func (s *session) Token() string { return s.token }

func (s *session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *session) Set(key string, value any) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

func (s *session) Delete(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
}

func (s *session) Values() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for key, value := range s.values {
		out[key] = value
	}
	return out
}

// Config configures the cache-backed session store.
type Config struct {
	// KeyPrefix namespaces session entries inside the shared cache.
	KeyPrefix string
	// TTL bounds how long an idle session survives. Saving refreshes it.
	TTL time.Duration
}

// Store keeps sessions in the shared cache so every process behind the load
// balancer sees the same state.
type Store struct {
	cache  interfaces.CacheProvider
	prefix string
	ttl    time.Duration
}

var _ interfaces.SessionStore = (*Store)(nil)

// NewStore constructs a session store over the shared cache.
func NewStore(provider interfaces.CacheProvider, cfg Config) *Store {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "session"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{cache: provider, prefix: prefix, ttl: ttl}
}

// Open loads the session for token.
func (s *Store) Open(ctx context.Context, token string) (interfaces.Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	raw, err := s.cache.Get(ctx, s.key(token))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, token)
		}
		return nil, fmt.Errorf("sessions: load %s: %w", token, err)
	}

	values, err := decodeValues(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, token)
	}
	return &session{token: token, values: values}, nil
}

// decodeValues accepts the JSON payload written by Save in whichever shape
// the cache backend hands it back.
func decodeValues(raw any) (map[string]any, error) {
	var encoded []byte
	switch v := raw.(type) {
	case string:
		encoded = []byte(v)
	case []byte:
		encoded = v
	default:
		return nil, errors.New("sessions: unexpected payload type")
	}
	values := make(map[string]any)
	if err := json.Unmarshal(encoded, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// New creates an empty session with a fresh random token. The session is not
// visible to other processes until Save is called.
func (s *Store) New(context.Context) (interfaces.Session, error) {
	return &session{
		token:  uuid.NewString(),
		values: make(map[string]any),
	}, nil
}

// Save writes the session back to the cache as JSON, refreshing its TTL.
func (s *Store) Save(ctx context.Context, sess interfaces.Session) error {
	if sess == nil || sess.Token() == "" {
		return errors.New("sessions: session with token required")
	}
	encoded, err := json.Marshal(sess.Values())
	if err != nil {
		return fmt.Errorf("sessions: encode %s: %w", sess.Token(), err)
	}
	if err := s.cache.Set(ctx, s.key(sess.Token()), string(encoded), s.ttl); err != nil {
		return fmt.Errorf("sessions: save %s: %w", sess.Token(), err)
	}
	return nil
}

// Destroy drops the session for token. Destroying an unknown token is not an
// error.
func (s *Store) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.cache.Delete(ctx, s.key(token)); err != nil {
		return fmt.Errorf("sessions: destroy %s: %w", token, err)
	}
	return nil
}

func (s *Store) key(token string) string {
	return s.prefix + ":" + token
}
