package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feastly/feastly-web/internal/app/models"
	"github.com/feastly/feastly-web/internal/app/observability/metrics"
	"github.com/feastly/feastly-web/internal/app/session"
	"github.com/feastly/feastly-web/internal/pkg/upstream"
)

// SessionHydration re-populates the current-user name after a process or
// browser restart: when a session carries an access token but no cached
// identity, it fetches the profile once. A failed fetch clears the stored
// tokens and leaves the session logged out.
func SessionHydration(client *upstream.Client, sessions *session.Manager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Current(c)
		if !sess.Authenticated() || sessions.CurrentUserName(sess.ID()) != "" {
			c.Next()
			return
		}

		var profile models.Profile
		err := client.DecodeInto(c.Request.Context(), sessions.Tokens(c), http.MethodGet, "/profile/", nil, &profile)
		if err != nil {
			logger.Warn("Startup profile verification failed, clearing session",
				zap.String("sid", sess.ID()),
				zap.Error(err),
			)
			if clearErr := sessions.Clear(c); clearErr != nil {
				logger.Error("Failed to clear session", zap.Error(clearErr))
			}
			c.Next()
			return
		}

		sessions.SetCurrentUserName(sess.ID(), profile.Name)
		metrics.SetActiveSessions(c.Request.Context(), sessions.ActiveSessions())
		c.Next()
	}
}
