package auth

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/feastly/feastly-web/internal/app/models"
	"github.com/feastly/feastly-web/internal/pkg/upstream"
)

// Ensure implementation satisfies the interface
var _ AuthService = (*ServiceImpl)(nil)

// AuthService is the business contract for account flows against the
// upstream auth API. All password handling lives upstream; this client only
// relays credentials over the authenticated pipeline.
type AuthService interface {
	Register(ctx context.Context, tokens upstream.TokenSource, name, email, password string) (string, error)
	VerifyEmail(ctx context.Context, tokens upstream.TokenSource, email, otp string) error
	ResendVerification(ctx context.Context, tokens upstream.TokenSource, email string) error
	Login(ctx context.Context, tokens upstream.TokenSource, email, password string) (*models.TokenPair, error)
	Logout(ctx context.Context, tokens upstream.TokenSource, refreshToken string) error
	RequestPasswordReset(ctx context.Context, tokens upstream.TokenSource, email string) error
	ResetPassword(ctx context.Context, tokens upstream.TokenSource, email, otp, newPassword string) error
	ChangePassword(ctx context.Context, tokens upstream.TokenSource, currentPassword, newPassword string) error
	Profile(ctx context.Context, tokens upstream.TokenSource) (*models.Profile, error)
}

type ServiceImpl struct {
	client *upstream.Client
	logger *zap.Logger
}

func NewAuthService(client *upstream.Client, logger *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		client: client,
		logger: logger,
	}
}

// Register creates the account upstream, which triggers the OTP email.
// Returns the upstream confirmation message.
func (s *ServiceImpl) Register(ctx context.Context, tokens upstream.TokenSource, name, email, password string) (string, error) {
	l := s.logger.With(zap.String("method", "Register"), zap.String("email", email))
	l.Debug("Registering account")

	payload, err := s.client.Post(ctx, tokens, "/register/", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
	if err != nil {
		l.Warn("Registration rejected", zap.Error(err))
		return "", err
	}

	l.Info("Account registered, verification pending")
	return messageFrom(payload, "Verification code sent to your email"), nil
}

// VerifyEmail completes registration with the emailed OTP.
func (s *ServiceImpl) VerifyEmail(ctx context.Context, tokens upstream.TokenSource, email, otp string) error {
	l := s.logger.With(zap.String("method", "VerifyEmail"), zap.String("email", email))
	l.Debug("Verifying email")

	if _, err := s.client.Post(ctx, tokens, "/verify-email/", map[string]string{"email": email, "otp": otp}); err != nil {
		l.Warn("Email verification failed", zap.Error(err))
		return err
	}

	l.Info("Email verified")
	return nil
}

// ResendVerification requests a fresh OTP for a pending registration.
func (s *ServiceImpl) ResendVerification(ctx context.Context, tokens upstream.TokenSource, email string) error {
	l := s.logger.With(zap.String("method", "ResendVerification"), zap.String("email", email))
	l.Debug("Resending verification code")

	_, err := s.client.Post(ctx, tokens, "/resend-verification/", map[string]string{"email": email})
	if err != nil {
		l.Warn("Resend verification failed", zap.Error(err))
	}
	return err
}

// Login exchanges credentials for a token pair.
func (s *ServiceImpl) Login(ctx context.Context, tokens upstream.TokenSource, email, password string) (*models.TokenPair, error) {
	l := s.logger.With(zap.String("method", "Login"), zap.String("email", email))
	l.Debug("Logging in")

	payload, err := s.client.Post(ctx, tokens, "/login/", map[string]string{"email": email, "password": password})
	if err != nil {
		l.Warn("Login rejected", zap.Error(err))
		return nil, err
	}

	var pair models.TokenPair
	if err := json.Unmarshal(payload, &pair); err != nil || pair.Access == "" || pair.Refresh == "" {
		l.Error("Login response missing token pair")
		return nil, errors.New("login response missing credentials")
	}

	l.Info("Login successful")
	return &pair, nil
}

// Logout invalidates the refresh token upstream.
func (s *ServiceImpl) Logout(ctx context.Context, tokens upstream.TokenSource, refreshToken string) error {
	l := s.logger.With(zap.String("method", "Logout"))
	l.Debug("Logging out")

	_, err := s.client.Post(ctx, tokens, "/logout/", map[string]string{"refresh": refreshToken})
	return err
}

// RequestPasswordReset asks for a reset OTP to be mailed.
func (s *ServiceImpl) RequestPasswordReset(ctx context.Context, tokens upstream.TokenSource, email string) error {
	l := s.logger.With(zap.String("method", "RequestPasswordReset"), zap.String("email", email))
	l.Debug("Requesting password reset")

	_, err := s.client.Post(ctx, tokens, "/password-reset/", map[string]string{"email": email})
	if err != nil {
		l.Warn("Password reset request failed", zap.Error(err))
	}
	return err
}

// ResetPassword completes the reset with the mailed OTP.
func (s *ServiceImpl) ResetPassword(ctx context.Context, tokens upstream.TokenSource, email, otp, newPassword string) error {
	l := s.logger.With(zap.String("method", "ResetPassword"), zap.String("email", email))
	l.Debug("Resetting password")

	_, err := s.client.Post(ctx, tokens, "/password-reset/verify/", map[string]string{
		"email":        email,
		"otp":          otp,
		"new_password": newPassword,
	})
	if err != nil {
		l.Warn("Password reset failed", zap.Error(err))
	}
	return err
}

// ChangePassword changes the password of the authenticated account.
func (s *ServiceImpl) ChangePassword(ctx context.Context, tokens upstream.TokenSource, currentPassword, newPassword string) error {
	l := s.logger.With(zap.String("method", "ChangePassword"))
	l.Debug("Changing password")

	_, err := s.client.Post(ctx, tokens, "/password-change/", map[string]string{
		"current_password": currentPassword,
		"new_password":     newPassword,
	})
	if err != nil {
		l.Warn("Password change failed", zap.Error(err))
	}
	return err
}

// Profile fetches the authenticated profile record.
func (s *ServiceImpl) Profile(ctx context.Context, tokens upstream.TokenSource) (*models.Profile, error) {
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

func messageFrom(payload json.RawMessage, fallback string) string {
	var body struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Detail != "" {
			return body.Detail
		}
	}
	return fallback
}
