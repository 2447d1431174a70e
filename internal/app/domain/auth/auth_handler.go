package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feastly/feastly-web/internal/app/domain"
	"github.com/feastly/feastly-web/internal/app/observability/metrics"
	"github.com/feastly/feastly-web/internal/app/session"
)

type RegisterRequest struct {
	Name     string `form:"name" json:"name" binding:"required"`
	Email    string `form:"email" json:"email" binding:"required,email"`
	Password string `form:"password" json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `form:"email" json:"email" binding:"required,email"`
	Password string `form:"password" json:"password" binding:"required"`
}

type VerifyEmailRequest struct {
	Email string `form:"email" json:"email"`
	OTP   string `form:"otp" json:"otp" binding:"required"`
}

type ResendVerificationRequest struct {
	Email string `form:"email" json:"email"`
}

type ForgotPasswordRequest struct {
	Email string `form:"email" json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `form:"email" json:"email" binding:"required,email"`
	OTP         string `form:"otp" json:"otp" binding:"required"`
	NewPassword string `form:"new_password" json:"new_password" binding:"required,min=8"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `form:"current_password" json:"current_password" binding:"required"`
	NewPassword     string `form:"new_password" json:"new_password" binding:"required,min=8"`
}

type AuthHandlers struct {
	authService AuthService
	sessions    *session.Manager
	logger      *zap.Logger
}

func NewAuthHandlers(authService AuthService, sessions *session.Manager, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		sessions:    sessions,
		logger:      logger,
	}
}

// RegisterHandler creates the account and remembers which email is awaiting
// OTP verification.
func (h *AuthHandlers) RegisterHandler(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name, email and a password of at least 8 characters are required"})
		return
	}

	message, err := h.authService.Register(c.Request.Context(), h.sessions.Tokens(c), req.Name, req.Email, req.Password)
	metrics.RecordAuthRequest(c.Request.Context(), "register", err == nil)
	if err != nil {
		domain.RespondError(c, h.logger, err)
		return
	}

	if err := h.sessions.SetPendingEmail(c, req.Email); err != nil {
		h.logger.Error("Failed to persist pending verification email", zap.Error(err))
	}

	h.logger.Info("Registration accepted", zap.String("email", req.Email))
	c.JSON(http.StatusOK, gin.H{"message": message, "pending_email": req.Email})
}

// VerifyEmailHandler completes registration with the emailed OTP, falling
// back to the remembered pending address when the form omits the email.
func (h *AuthHandlers) VerifyEmailHandler(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Verification code is required"})
		return
	}

	sess := h.sessions.Current(c)
	email := req.Email
	if email == "" {
		email = sess.PendingEmail()
	}
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No registration is awaiting verification"})
		return
	}

	err := h.authService.VerifyEmail(c.Request.Context(), h.sessions.Tokens(c), email, req.OTP)
	metrics.RecordAuthRequest(c.Request.Context(), "verify_email", err == nil)
	if err != nil {
		domain.RespondError(c, h.logger, err)
		return
	}

	if err := h.sessions.ClearPendingEmail(c); err != nil {
		h.logger.Error("Failed to clear pending verification email", zap.Error(err))
	}

	h.logger.Info("Email verified", zap.String("email", email))
	c.Header("HX-Redirect", "/login")
	c.JSON(http.StatusOK, gin.H{"message": "Email verified, you can sign in now"})
}

// ResendVerificationHandler requests a fresh OTP for the pending address.
func (h *AuthHandlers) ResendVerificationHandler(c *gin.Context) {
	var req ResendVerificationRequest
	_ = c.ShouldBind(&req)

	email := req.Email
	if email == "" {
		email = h.sessions.Current(c).PendingEmail()
	}
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No registration is awaiting verification"})
		return
	}

	err := h.authService.ResendVerification(c.Request.Context(), h.sessions.Tokens(c), email)
	metrics.RecordAuthRequest(c.Request.Context(), "resend_verification", err == nil)
	if err != nil {
		domain.RespondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Verification code sent"})
}

// LoginHandler exchanges credentials for tokens, stores them in the session
// and caches the display name.
func (h *AuthHandlers) LoginHandler(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	pair, err := h.authService.Login(c.Request.Context(), h.sessions.Tokens(c), req.Email, req.Password)
	metrics.RecordAuthRequest(c.Request.Context(), "login", err == nil)
	if err != nil {
		domain.RespondError(c, h.logger, err)
		return
	}

	if err := h.sessions.SaveTokens(c, pair.Access, pair.Refresh); err != nil {
		h.logger.Error("Failed to persist session tokens", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not establish session"})
		return
	}

	sess := h.sessions.Current(c)
	userName := ""
	if profile, profileErr := h.authService.Profile(c.Request.Context(), h.sessions.Tokens(c)); profileErr == nil {
		userName = profile.Name
		h.sessions.SetCurrentUserName(sess.ID(), profile.Name)
	} else {
		h.logger.Warn("Could not hydrate profile after login", zap.Error(profileErr))
	}

	h.logger.Info("Successful login",
		zap.String("email", req.Email),
		zap.String("sid", sess.ID()),
	)
	c.Header("HX-Redirect", "/")
	c.JSON(http.StatusOK, gin.H{"message": "Signed in", "user_name": userName})
}

// LogoutHandler invalidates the refresh token upstream (best effort) and
// always clears the local session.
func (h *AuthHandlers) LogoutHandler(c *gin.Context) {
	sess := h.sessions.Current(c)

	if refresh := sess.RefreshToken(); refresh != "" {
		if err := h.authService.Logout(c.Request.Context(), h.sessions.Tokens(c), refresh); err != nil {
			h.logger.Warn("Upstream logout failed", zap.Error(err))
		}
	}

	if err := h.sessions.Clear(c); err != nil {
		h.logger.Error("Failed to clear session", zap.Error(err))
	}
	metrics.RecordAuthRequest(c.Request.Context(), "logout", true)

	h.logger.Info("User logout", zap.String("sid", sess.ID()))
	c.Header("HX-Redirect", "/")
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// ForgotPasswordHandler requests a reset OTP. The response never reveals
// whether the address is registered.
func (h *AuthHandlers) ForgotPasswordHandler(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
		return
	}

	err := h.authService.RequestPasswordReset(c.Request.Context(), h.sessions.Tokens(c), req.Email)
	metrics.RecordAuthRequest(c.Request.Context(), "password_reset_request", err == nil)
	if err != nil {
		domain.RespondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "If this email is registered, you will receive reset instructions"})
}

// ResetPasswordHandler completes the reset with the mailed OTP.
func (h *AuthHandlers) ResetPasswordHandler(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email, code and a new password of at least 8 characters are required"})
		return
	}

	err := h.authService.ResetPassword(c.Request.Context(), h.sessions.Tokens(c), req.Email, req.OTP, req.NewPassword)
	metrics.RecordAuthRequest(c.Request.Context(), "password_reset", err == nil)
	if err != nil {
		domain.RespondError(c, h.logger, err)
		return
	}

	c.Header("HX-Redirect", "/login")
	c.JSON(http.StatusOK, gin.H{"message": "Password reset, you can sign in now"})
}

// ChangePasswordHandler changes the authenticated account's password.
func (h *AuthHandlers) ChangePasswordHandler(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Current and new password (at least 8 characters) are required"})
		return
	}

	err := h.authService.ChangePassword(c.Request.Context(), h.sessions.Tokens(c), req.CurrentPassword, req.NewPassword)
	metrics.RecordAuthRequest(c.Request.Context(), "password_change", err == nil)
	if err != nil {
		domain.RespondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}
