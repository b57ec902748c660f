package session

import (
	"context"
	"log/slog"
)

// Authenticator is the upstream authentication collaborator.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, *User, error)
	Logout(ctx context.Context, token string) error
	Status(ctx context.Context, token string) (*User, error)
}

// Classifier distinguishes transport failures from authentication failures
// when deciding whether a stored token can still be trusted.
type Classifier interface {
	IsUnavailable(err error) bool
}

// Manager owns session state transitions. It is the sole writer of the
// Store; every other component reads the hydrated session from context.
type Manager struct {
	store      *Store
	auth       Authenticator
	classifier Classifier
	logger     *slog.Logger
}

// NewManager constructs a Manager.
func NewManager(store *Store, auth Authenticator, classifier Classifier, logger *slog.Logger) *Manager {
	return &Manager{store: store, auth: auth, classifier: classifier, logger: logger}
}

// Login authenticates against the collaborator and, on success, persists
// token and user atomically before returning. The returned user lets the
// caller navigate immediately. On failure the session is left untouched and
// the collaborator error is returned unmodified so callers can distinguish
// invalid credentials from a blocked account.
func (m *Manager) Login(ctx context.Context, sid, email, password string) (*User, error) {
	token, user, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	m.store.Save(ctx, sid, token, user)
	return user, nil
}

// Logout invalidates the upstream session best-effort and always clears the
// local one. Failure to reach the server never blocks local logout.
func (m *Manager) Logout(ctx context.Context, sess Session) {
	if sess.Token != "" {
		if err := m.auth.Logout(ctx, sess.Token); err != nil && m.logger != nil {
			m.logger.Warn("upstream logout", slog.String("session_id", sess.ID), slog.Any("error", err))
		}
	}
	m.store.Clear(ctx, sess.ID)
}

// UpdateUserRole replaces the role on the persisted user without otherwise
// touching the session. Used when the server reports a role change
// out-of-band, so the user is not forced to re-login.
func (m *Manager) UpdateUserRole(ctx context.Context, sid string, newRole Role) {
	sess := m.store.Load(ctx, sid)
	if !sess.IsAuthenticated() {
		return
	}
	sess.User.Role = NormalizeRole(string(newRole))
	m.store.Save(ctx, sid, sess.Token, sess.User)
}

// Hydrate resolves the stored session at the start of a request:
//
//	token and user present        -> authenticated
//	token present, user absent    -> validate with Status and restore the
//	                                 profile; clear on an auth failure
//	nothing present               -> unauthenticated
//
// A transport failure during validation leaves the stored token in place and
// treats only this request as unauthenticated; it is not a logout signal.
func (m *Manager) Hydrate(ctx context.Context, sid string) Session {
	sess := m.store.Load(ctx, sid)
	if sess.IsAuthenticated() || sess.Token == "" {
		return sess
	}

	user, err := m.auth.Status(ctx, sess.Token)
	if err != nil {
		if m.classifier != nil && m.classifier.IsUnavailable(err) {
			if m.logger != nil {
				m.logger.Warn("session validation unavailable", slog.String("session_id", sid), slog.Any("error", err))
			}
			return Session{ID: sid}
		}
		m.store.Clear(ctx, sid)
		return Session{ID: sid}
	}

	m.store.Save(ctx, sid, sess.Token, user)
	sess.User = user
	return sess
}
