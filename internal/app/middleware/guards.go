package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/feastly/feastly-web/internal/app/models"
	"github.com/feastly/feastly-web/internal/app/session"
	"github.com/feastly/feastly-web/internal/pkg/upstream"
)

// RoleChecker resolves and caches the elevated-role decision for the admin
// guard. The cache is keyed by access token, so a changed identity always
// forces a fresh upstream check.
type RoleChecker struct {
	client   *upstream.Client
	sessions *session.Manager
	roles    *gocache.Cache
	logger   *zap.Logger
}

func NewRoleChecker(client *upstream.Client, sessions *session.Manager, ttl time.Duration, logger *zap.Logger) *RoleChecker {
	return &RoleChecker{
		client:   client,
		sessions: sessions,
		roles:    gocache.New(ttl, 2*ttl),
		logger:   logger,
	}
}

// RequireAuth gates a subtree on token presence. It is a point-in-time check
// only; token validity is discovered when a later upstream call answers 401.
func RequireAuth(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Current(c)
		if !sess.Authenticated() {
			handleAuthRedirect(c, "/login")
			return
		}
		c.Next()
	}
}

// RequireAdmin additionally demands the admin role, resolved by one upstream
// profile fetch. Any failure during the check is treated as not elevated.
func (rc *RoleChecker) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := rc.sessions.Current(c)
		if !sess.Authenticated() {
			handleAuthRedirect(c, "/login")
			return
		}

		role, err := rc.roleFor(c)
		if err != nil {
			if errors.Is(err, upstream.ErrSessionExpired) {
				handleAuthRedirect(c, "/login")
				return
			}
			rc.logger.Warn("Admin role check failed, denying", zap.Error(err))
			handleAuthRedirect(c, "/")
			return
		}

		if role != models.RoleAdmin {
			handleAuthRedirect(c, "/")
			return
		}

		c.Next()
	}
}

func (rc *RoleChecker) roleFor(c *gin.Context) (string, error) {
	tokens := rc.sessions.Tokens(c)
	key := tokens.AccessToken()
	if cached, ok := rc.roles.Get(key); ok {
		return cached.(string), nil
	}

	var profile models.Profile
	if err := rc.client.DecodeInto(c.Request.Context(), tokens, http.MethodGet, "/profile/", nil, &profile); err != nil {
		return "", err
	}

	// The token may have been refreshed during the fetch; cache under the
	// credential that is now live.
	rc.roles.SetDefault(tokens.AccessToken(), profile.Role)
	return profile.Role, nil
}

// handleAuthRedirect redirects both regular and HTMX requests.
func handleAuthRedirect(c *gin.Context, redirectURL string) {
	if c.GetHeader("HX-Request") == "true" {
		c.Header("HX-Redirect", redirectURL)
		c.AbortWithStatus(http.StatusUnauthorized)
	} else {
		c.Redirect(http.StatusFound, redirectURL)
		c.Abort()
	}
}
