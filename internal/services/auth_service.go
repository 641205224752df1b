package services

import (
	"context"
	"errors"
	"fmt"

	"finsight/internal/categories"
	"finsight/internal/core"
	"finsight/internal/log"
	"finsight/internal/session"
	"finsight/internal/store"
)

// Authenticator is the auth side of the backend. *api.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (core.Session, error)
	Register(ctx context.Context, username, email, password string) (core.Session, error)
	Logout(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
}

// AuthService ties the session lifecycle to the transaction cache: signing
// in fills the cache, signing out empties it.
type AuthService struct {
	auth       Authenticator
	session    *session.Store
	store      *store.Store
	categories *categories.Set
	logger     *log.Logger
}

func NewAuthService(auth Authenticator, sess *session.Store, s *store.Store, cats *categories.Set, logger *log.Logger) *AuthService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AuthService{
		auth:       auth,
		session:    sess,
		store:      s,
		categories: cats,
		logger:     logger.WithComponent(log.ComponentServices),
	}
}

func (a *AuthService) Login(ctx context.Context, email, password string) (core.Session, error) {
	sess, err := a.auth.Login(ctx, email, password)
	if err != nil {
		return core.Session{}, fmt.Errorf("login: %w", err)
	}
	if err := a.start(ctx, sess); err != nil {
		return core.Session{}, err
	}
	return sess, nil
}

func (a *AuthService) Register(ctx context.Context, username, email, password string) (core.Session, error) {
	sess, err := a.auth.Register(ctx, username, email, password)
	if err != nil {
		return core.Session{}, fmt.Errorf("register: %w", err)
	}
	if err := a.start(ctx, sess); err != nil {
		return core.Session{}, err
	}
	return sess, nil
}

func (a *AuthService) ResetPassword(ctx context.Context, email string) error {
	if err := a.auth.ResetPassword(ctx, email); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// Resume restores a persisted session, falling back to a credential login
// when none is usable and email is set. It returns session.ErrNoSession
// when neither works.
func (a *AuthService) Resume(ctx context.Context, email, password string) (core.Session, error) {
	sess, ok, err := a.session.Restore(ctx)
	if err != nil {
		return core.Session{}, fmt.Errorf("restore session: %w", err)
	}
	if ok {
		a.warm(ctx)
		return sess, nil
	}
	if email == "" {
		return core.Session{}, session.ErrNoSession
	}
	return a.Login(ctx, email, password)
}

// Logout always clears local state. A failed remote logout is logged, not
// returned: the token is gone from this client either way.
func (a *AuthService) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		a.logger.WarnContext(ctx, "Remote logout failed", log.FieldError, err.Error())
	}
	a.store.Reset()
	if err := a.session.Clear(ctx); err != nil {
		log.LogError(ctx, a.logger, "Failed to clear session", err, log.OpLogout, nil)
		return fmt.Errorf("logout: %w", err)
	}
	a.logger.InfoContext(ctx, "Logged out")
	return nil
}

func (a *AuthService) start(ctx context.Context, sess core.Session) error {
	if err := a.session.Set(ctx, sess); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	a.warm(ctx)
	return nil
}

// warm fills the cache and folds transaction categories into the local
// list. Failures are logged: the session is valid even if the first load is
// not.
func (a *AuthService) warm(ctx context.Context) {
	snap, err := a.store.Load(ctx)
	if err != nil {
		log.LogError(ctx, a.logger, "Initial transaction load failed", err, log.OpLoad, nil)
		return
	}
	if a.categories == nil {
		return
	}
	added, err := a.categories.Merge(ctx, snap.Transactions)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.LogError(ctx, a.logger, "Category merge failed", err, log.OpLoad, nil)
	}
	if len(added) > 0 {
		a.logger.InfoContext(ctx, "Categories picked up from transactions", log.FieldCount, len(added))
	}
}
