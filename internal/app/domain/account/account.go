package account

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/feastly/feastly-web/internal/app/domain"
	"github.com/feastly/feastly-web/internal/app/models"
	"github.com/feastly/feastly-web/internal/app/session"
	"github.com/feastly/feastly-web/internal/pkg/upstream"
)

// UpdateProfileRequest carries the editable profile fields.
type UpdateProfileRequest struct {
	Name           string           `json:"name" binding:"required"`
	Phone          string           `json:"phone"`
	Addresses      []models.Address `json:"addresses"`
	ProfilePicture string           `json:"profile_picture"`
}

type Service struct {
	client *upstream.Client
	logger *zap.Logger
}

func NewService(client *upstream.Client, logger *zap.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// Profile fetches the authenticated profile record.
func (s *Service) Profile(ctx context.Context, tokens upstream.TokenSource) (*models.Profile, error) {
	payload, err := s.client.Get(ctx, tokens, "/profile/")
	if err != nil {
		return nil, err
	}

	var profile models.Profile
	if err := json.Unmarshal(payload, &profile); err != nil {
		return nil, errors.Wrap(err, "decoding profile")
	}
	return &profile, nil
}

// UpdateProfile writes the editable fields and returns the updated record.
func (s *Service) UpdateProfile(ctx context.Context, tokens upstream.TokenSource, req UpdateProfileRequest) (*models.Profile, error) {
	payload, err := s.client.Put(ctx, tokens, "/profile/", req)
	if err != nil {
		return nil, err
	}

	var profile models.Profile
	if err := json.Unmarshal(payload, &profile); err != nil {
		return nil, errors.Wrap(err, "decoding updated profile")
	}
	return &profile, nil
}

type AccountHandlers struct {
	service  *Service
	sessions *session.Manager
	logger   *zap.Logger
}

func NewAccountHandlers(service *Service, sessions *session.Manager, logger *zap.Logger) *AccountHandlers {
	return &AccountHandlers{
		service:  service,
		sessions: sessions,
		logger:   logger,
	}
}

// GetProfileHandler returns the profile of the signed-in user.
func (h *AccountHandlers) GetProfileHandler(c *gin.Context) {
	profile, err := h.service.Profile(c.Request.Context(), h.sessions.Tokens(c))
	if err != nil {
		domain.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateProfileHandler saves profile edits and keeps the cached display name
// in step with a renamed account.
func (h *AccountHandlers) UpdateProfileHandler(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	profile, err := h.service.UpdateProfile(c.Request.Context(), h.sessions.Tokens(c), req)
	if err != nil {
		domain.RespondError(c, h.logger, err)
		return
	}

	sess := h.sessions.Current(c)
	h.sessions.SetCurrentUserName(sess.ID(), profile.Name)

	h.logger.Info("Profile updated", zap.String("sid", sess.ID()))
	c.JSON(http.StatusOK, profile)
}

// SessionHandler exposes the broadcaster value for the presentation layer.
func (h *AccountHandlers) SessionHandler(c *gin.Context) {
	sess := h.sessions.Current(c)
	c.JSON(http.StatusOK, gin.H{
		"authenticated": sess.Authenticated(),
		"user_name":     h.sessions.CurrentUserName(sess.ID()),
		"pending_email": sess.PendingEmail(),
	})
}
