package session

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// BoundTokens adapts one request's cookie session to the request pipeline's
// TokenSource. Reads are live (not snapshots) so a refresh performed earlier
// in the same request is visible.
type BoundTokens struct {
	c       *gin.Context
	manager *Manager
}

// Tokens binds the request's session to the pipeline.
func (m *Manager) Tokens(c *gin.Context) *BoundTokens {
	return &BoundTokens{c: c, manager: m}
}

func (b *BoundTokens) AccessToken() string {
	token, _ := sessions.Default(b.c).Get(keyAccessToken).(string)
	return token
}

func (b *BoundTokens) RefreshToken() string {
	token, _ := sessions.Default(b.c).Get(keyRefreshToken).(string)
	return token
}

func (b *BoundTokens) SetAccessToken(token string) error {
	s := sessions.Default(b.c)
	s.Set(keyAccessToken, token)
	return s.Save()
}

// ClearTokens removes both tokens and, to keep the no-token-no-name
// invariant, the cached display name.
func (b *BoundTokens) ClearTokens() error {
	sess := b.manager.Current(b.c)
	b.manager.SetCurrentUserName(sess.ID(), "")

	s := sessions.Default(b.c)
	s.Delete(keyAccessToken)
	s.Delete(keyRefreshToken)
	return s.Save()
}
