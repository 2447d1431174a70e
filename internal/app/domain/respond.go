// Package domain carries the pieces shared by every handler package: error
// rendering at the view boundary and the redirect helper for session expiry.
package domain

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/feastly/feastly-web/internal/pkg/upstream"
)

// RespondError recovers a request-pipeline failure at the handler boundary.
// Session expiry forces a navigation to the login entry point; everything
// else is rendered inline for the originating form.
func RespondError(c *gin.Context, logger *zap.Logger, err error) {
	var apiErr *upstream.APIError

	switch {
	case errors.Is(err, upstream.ErrSessionExpired):
		// The pipeline already cleared the stored tokens.
		if c.GetHeader("HX-Request") == "true" {
			c.Header("HX-Redirect", "/login")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Your session has expired, please sign in again"})
			return
		}
		c.Redirect(http.StatusFound, "/login")
		c.Abort()

	case errors.As(err, &apiErr):
		body := gin.H{"error": apiErr.Message}
		if len(apiErr.Fields) > 0 {
			body["fields"] = apiErr.Fields
		}
		c.JSON(apiErr.Status, body)

	case errors.Is(err, upstream.ErrUnreachable):
		c.JSON(http.StatusBadGateway, gin.H{"error": upstream.ErrUnreachable.Error()})

	default:
		logger.Error("Unhandled request error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Request failed"})
	}
}
