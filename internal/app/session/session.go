// Package session owns every piece of client-side session state: the tokens
// persisted in the encrypted cookie session, the transient
// pending-verification email, and the in-memory current-user name. The rest
// of the application only sees read-only Session snapshots; all mutation goes
// through the Manager.
package session

import (
	"sync"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Fixed cookie-session keys. These are the only durable client state.
const (
	keySID          = "sid"
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyPendingEmail = "pending_email"
)

// Session is a read-only snapshot of one visitor's persisted state at the
// time it was taken.
type Session struct {
	id           string
	accessToken  string
	refreshToken string
	pendingEmail string
}

func (s Session) ID() string           { return s.id }
func (s Session) AccessToken() string  { return s.accessToken }
func (s Session) RefreshToken() string { return s.refreshToken }
func (s Session) PendingEmail() string { return s.pendingEmail }

// Authenticated reports token presence only. Validity is discovered when an
// upstream call answers 401.
func (s Session) Authenticated() bool { return s.accessToken != "" }

// Manager is the single mutation point for session state.
type Manager struct {
	logger *zap.Logger

	mu    sync.RWMutex
	names map[string]string
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger: logger,
		names:  make(map[string]string),
	}
}

// Current snapshots the request's session, assigning a stable session id on
// first contact.
func (m *Manager) Current(c *gin.Context) Session {
	s := sessions.Default(c)

	sid, _ := s.Get(keySID).(string)
	if sid == "" {
		sid = uuid.NewString()
		s.Set(keySID, sid)
		if err := s.Save(); err != nil {
			m.logger.Error("Failed to persist new session id", zap.Error(err))
		}
	}

	access, _ := s.Get(keyAccessToken).(string)
	refresh, _ := s.Get(keyRefreshToken).(string)
	pending, _ := s.Get(keyPendingEmail).(string)

	return Session{
		id:           sid,
		accessToken:  access,
		refreshToken: refresh,
		pendingEmail: pending,
	}
}

// SaveTokens stores a freshly issued credential pair.
func (m *Manager) SaveTokens(c *gin.Context, access, refresh string) error {
	s := sessions.Default(c)
	s.Set(keyAccessToken, access)
	s.Set(keyRefreshToken, refresh)
	return s.Save()
}

// Clear destroys the authenticated session: both tokens, the pending
// verification email, and the cached user name.
func (m *Manager) Clear(c *gin.Context) error {
	sess := m.Current(c)
	m.SetCurrentUserName(sess.ID(), "")

	s := sessions.Default(c)
	s.Delete(keyAccessToken)
	s.Delete(keyRefreshToken)
	s.Delete(keyPendingEmail)
	return s.Save()
}

// SetPendingEmail remembers which address is awaiting OTP verification.
func (m *Manager) SetPendingEmail(c *gin.Context, email string) error {
	s := sessions.Default(c)
	s.Set(keyPendingEmail, email)
	return s.Save()
}

// ClearPendingEmail forgets the pending address after successful verification.
func (m *Manager) ClearPendingEmail(c *gin.Context) error {
	s := sessions.Default(c)
	s.Delete(keyPendingEmail)
	return s.Save()
}

// SetCurrentUserName is the single mutator for the in-memory display name.
// An empty name removes the entry. No validation is performed; callers supply
// a display-safe string.
func (m *Manager) SetCurrentUserName(sid, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == "" {
		delete(m.names, sid)
		return
	}
	m.names[sid] = name
}

// CurrentUserName returns the cached display name for a session, or "" when
// the session has no verified identity yet.
func (m *Manager) CurrentUserName(sid string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.names[sid]
}

// ActiveSessions counts sessions with a cached identity.
func (m *Manager) ActiveSessions() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.names))
}
