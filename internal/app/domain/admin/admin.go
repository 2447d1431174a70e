// Package admin proxies the elevated-role management surface. Payloads pass
// through untouched; the admin guard has already established the role.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feastly/feastly-web/internal/app/domain"
	"github.com/feastly/feastly-web/internal/app/session"
	"github.com/feastly/feastly-web/internal/pkg/upstream"
)

type AdminHandlers struct {
	client   *upstream.Client
	sessions *session.Manager
	logger   *zap.Logger
}

func NewAdminHandlers(client *upstream.Client, sessions *session.Manager, logger *zap.Logger) *AdminHandlers {
	return &AdminHandlers{
		client:   client,
		sessions: sessions,
		logger:   logger,
	}
}

func (h *AdminHandlers) proxy(c *gin.Context, method, path string, body any) {
	payload, err := h.client.Do(c.Request.Context(), h.sessions.Tokens(c), method, path, body)
	if err != nil {
		domain.RespondError(c, h.logger, err)
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}

// DashboardHandler returns the admin dashboard aggregates.
func (h *AdminHandlers) DashboardHandler(c *gin.Context) {
	h.proxy(c, http.MethodGet, "/admin/dashboard/", nil)
}

// ListUsersHandler returns the user list, passing filters through.
func (h *AdminHandlers) ListUsersHandler(c *gin.Context) {
	path := "/admin/users/"
	if query := c.Request.URL.RawQuery; query != "" {
		path += "?" + query
	}
	h.proxy(c, http.MethodGet, path, nil)
}

// UpdateUserHandler forwards an edit of one managed user.
func (h *AdminHandlers) UpdateUserHandler(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A JSON body is required"})
		return
	}

	h.logger.Info("Admin user update", zap.String("user_id", c.Param("id")))
	h.proxy(c, http.MethodPut, "/admin/users/"+c.Param("id")+"/", body)
}

// DeleteUserHandler removes one managed user.
func (h *AdminHandlers) DeleteUserHandler(c *gin.Context) {
	h.logger.Info("Admin user delete", zap.String("user_id", c.Param("id")))
	h.proxy(c, http.MethodDelete, "/admin/users/"+c.Param("id")+"/", nil)
}

// ActivityHandler returns the recent account activity feed.
func (h *AdminHandlers) ActivityHandler(c *gin.Context) {
	h.proxy(c, http.MethodGet, "/admin/activity/", nil)
}
