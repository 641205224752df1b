// Package session keeps the authenticated identity and persists it across
// restarts. Every outgoing API request reads its bearer token from here.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"finsight/internal/core"
	"finsight/internal/localstate"
	"finsight/internal/log"
)

// KV is the persistence the store needs. localstate.Store satisfies it.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

const (
	keySession = localstate.KeySession
	keyProfile = localstate.KeyProfile
)

var ErrNoSession = errors.New("no active session")

// Store holds the current session in memory and mirrors it to a KV.
type Store struct {
	kv     KV
	logger *log.Logger
	now    func() time.Time

	mu      sync.RWMutex
	current core.Session
}

type Option func(*Store)

// WithClock replaces the clock used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent(log.ComponentSession) }
}

func New(kv KV, opts ...Option) *Store {
	s := &Store{kv: kv, logger: log.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted session. Corrupt JSON, a missing token or an
// expired JWT clears the persisted state and leaves the store logged out;
// only storage failures are returned as errors.
func (s *Store) Restore(ctx context.Context) (core.Session, bool, error) {
	raw, err := s.kv.Get(ctx, keySession)
	if err != nil {
		if isNotFound(err) {
			return core.Session{}, false, nil
		}
		return core.Session{}, false, fmt.Errorf("read session: %w", err)
	}

	var sess core.Session
	reason := ""
	switch {
	case json.Unmarshal([]byte(raw), &sess) != nil:
		reason = "corrupt session data"
	case !sess.Valid():
		reason = "session without token"
	case s.expired(sess.Token):
		reason = "session token expired"
	}
	if reason != "" {
		s.logger.WarnContext(ctx, "Discarding stored session", "reason", reason)
		if err := s.clearPersisted(ctx); err != nil {
			return core.Session{}, false, err
		}
		s.setCurrent(core.Session{})
		return core.Session{}, false, nil
	}

	s.setCurrent(sess)
	s.logger.InfoContext(ctx, "Session restored", log.FieldUser, sess.Username)
	return sess, true, nil
}

// Set makes sess the active session and persists it.
func (s *Store) Set(ctx context.Context, sess core.Session) error {
	if !sess.Valid() {
		return ErrNoSession
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Put(ctx, keySession, string(b)); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	s.setCurrent(sess)
	s.logger.InfoContext(ctx, "Session started", log.FieldUser, sess.Username)
	return nil
}

// Clear forgets the session and the cached profile. The in-memory session
// is cleared even when persistence fails.
func (s *Store) Clear(ctx context.Context) error {
	s.setCurrent(core.Session{})
	return s.clearPersisted(ctx)
}

func (s *Store) clearPersisted(ctx context.Context) error {
	var errs []error
	if err := s.kv.Delete(ctx, keySession); err != nil {
		errs = append(errs, fmt.Errorf("delete session: %w", err))
	}
	if err := s.kv.Delete(ctx, keyProfile); err != nil {
		errs = append(errs, fmt.Errorf("delete profile: %w", err))
	}
	return errors.Join(errs...)
}

// Current returns the active session and whether one exists.
func (s *Store) Current() (core.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current.Valid()
}

// Token implements api.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// SaveProfile caches the profile locally for offline display.
func (s *Store) SaveProfile(ctx context.Context, p core.Profile) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := s.kv.Put(ctx, keyProfile, string(b)); err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}
	return nil
}

// Profile returns the locally cached profile, if any.
func (s *Store) Profile(ctx context.Context) (core.Profile, bool, error) {
	raw, err := s.kv.Get(ctx, keyProfile)
	if err != nil {
		if isNotFound(err) {
			return core.Profile{}, false, nil
		}
		return core.Profile{}, false, fmt.Errorf("read profile: %w", err)
	}
	var p core.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return core.Profile{}, false, nil
	}
	return p, true, nil
}

func (s *Store) setCurrent(sess core.Session) {
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
}

// expired reports whether token is a JWT whose exp claim is in the past.
// Opaque (non-JWT) tokens and tokens without exp never expire client-side;
// the backend remains the authority.
func (s *Store) expired(token string) bool {
	if strings.Count(token, ".") != 2 {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(s.now())
}

func isNotFound(err error) bool {
	return errors.Is(err, localstate.ErrNotFound)
}
