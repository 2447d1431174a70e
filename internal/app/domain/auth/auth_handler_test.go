package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feastly/feastly-web/internal/app/models"
	"github.com/feastly/feastly-web/internal/app/session"
	"github.com/feastly/feastly-web/internal/pkg/upstream"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, tokens upstream.TokenSource, name, email, password string) (string, error) {
	args := m.Called(ctx, tokens, name, email, password)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, tokens upstream.TokenSource, email, otp string) error {
	args := m.Called(ctx, tokens, email, otp)
	return args.Error(0)
}

func (m *MockAuthService) ResendVerification(ctx context.Context, tokens upstream.TokenSource, email string) error {
	args := m.Called(ctx, tokens, email)
	return args.Error(0)
}

func (m *MockAuthService) Login(ctx context.Context, tokens upstream.TokenSource, email, password string) (*models.TokenPair, error) {
	args := m.Called(ctx, tokens, email, password)
	if pair := args.Get(0); pair != nil {
		return pair.(*models.TokenPair), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, tokens upstream.TokenSource, refreshToken string) error {
	args := m.Called(ctx, tokens, refreshToken)
	return args.Error(0)
}

func (m *MockAuthService) RequestPasswordReset(ctx context.Context, tokens upstream.TokenSource, email string) error {
	args := m.Called(ctx, tokens, email)
	return args.Error(0)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, tokens upstream.TokenSource, email, otp, newPassword string) error {
	args := m.Called(ctx, tokens, email, otp, newPassword)
	return args.Error(0)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, tokens upstream.TokenSource, currentPassword, newPassword string) error {
	args := m.Called(ctx, tokens, currentPassword, newPassword)
	return args.Error(0)
}

func (m *MockAuthService) Profile(ctx context.Context, tokens upstream.TokenSource) (*models.Profile, error) {
	args := m.Called(ctx, tokens)
	if profile := args.Get(0); profile != nil {
		return profile.(*models.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

type authTestEnv struct {
	router   *gin.Engine
	svc      *MockAuthService
	sessions *session.Manager
	cookies  []*http.Cookie
}

func newAuthTestEnv(t *testing.T) *authTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := new(MockAuthService)
	manager := session.NewManager(zap.NewNop())
	handlers := NewAuthHandlers(svc, manager, zap.NewNop())

	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	r.POST("/auth/register", handlers.RegisterHandler)
	r.POST("/auth/verify-email", handlers.VerifyEmailHandler)
	r.POST("/auth/resend-verification", handlers.ResendVerificationHandler)
	r.POST("/auth/login", handlers.LoginHandler)
	r.POST("/auth/logout", handlers.LogoutHandler)
	r.POST("/auth/password-reset", handlers.ForgotPasswordHandler)
	r.GET("/session", func(c *gin.Context) {
		sess := manager.Current(c)
		c.JSON(http.StatusOK, gin.H{
			"authenticated": sess.Authenticated(),
			"pending_email": sess.PendingEmail(),
			"user_name":     manager.CurrentUserName(sess.ID()),
		})
	})

	return &authTestEnv{router: r, svc: svc, sessions: manager}
}

func (e *authTestEnv) post(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range e.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	// Mimic a browser cookie jar: a later Set-Cookie for the same name
	// replaces the stored cookie rather than accumulating duplicates.
	for _, ck := range w.Result().Cookies() {
		replaced := false
		for i, existing := range e.cookies {
			if existing.Name == ck.Name {
				e.cookies[i] = ck
				replaced = true
			}
		}
		if !replaced {
			e.cookies = append(e.cookies, ck)
		}
	}
	return w
}

func (e *authTestEnv) sessionState(t *testing.T) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	for _, ck := range e.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var state map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	return state
}

func TestRegisterHandler(t *testing.T) {
	t.Run("RemembersPendingEmail", func(t *testing.T) {
		env := newAuthTestEnv(t)
		env.svc.On("Register", mock.Anything, mock.Anything, "Asha", "asha@example.com", "supersecret").
			Return("Verification code sent to your email", nil)

		w := env.post("/auth/register", `{"name":"Asha","email":"asha@example.com","password":"supersecret"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Verification code sent")
		assert.Equal(t, "asha@example.com", env.sessionState(t)["pending_email"])
		env.svc.AssertExpectations(t)
	})

	t.Run("RejectsShortPasswordWithoutUpstreamCall", func(t *testing.T) {
		env := newAuthTestEnv(t)

		w := env.post("/auth/register", `{"name":"Asha","email":"asha@example.com","password":"short"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env.svc.AssertNotCalled(t, "Register")
	})

	t.Run("FieldErrorsPassThrough", func(t *testing.T) {
		env := newAuthTestEnv(t)
		env.svc.On("Register", mock.Anything, mock.Anything, "Asha", "asha@example.com", "supersecret").
			Return("", &upstream.APIError{Status: http.StatusBadRequest, Message: "email: already exists", Fields: map[string][]string{"email": {"already exists"}}})

		w := env.post("/auth/register", `{"name":"Asha","email":"asha@example.com","password":"supersecret"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "email: already exists")
		assert.Empty(t, env.sessionState(t)["pending_email"], "failed registration leaves no pending email")
	})
}

func TestVerifyEmailHandler(t *testing.T) {
	t.Run("FallsBackToPendingEmail", func(t *testing.T) {
		env := newAuthTestEnv(t)
		env.svc.On("Register", mock.Anything, mock.Anything, "Asha", "asha@example.com", "supersecret").
			Return("ok", nil)
		env.svc.On("VerifyEmail", mock.Anything, mock.Anything, "asha@example.com", "123456").
			Return(nil)

		env.post("/auth/register", `{"name":"Asha","email":"asha@example.com","password":"supersecret"}`)
		w := env.post("/auth/verify-email", `{"otp":"123456"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "/login", w.Header().Get("HX-Redirect"))
		assert.Empty(t, env.sessionState(t)["pending_email"], "verification clears the pending email")
		env.svc.AssertExpectations(t)
	})

	t.Run("NoPendingEmailIsRejected", func(t *testing.T) {
		env := newAuthTestEnv(t)

		w := env.post("/auth/verify-email", `{"otp":"123456"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		env.svc.AssertNotCalled(t, "VerifyEmail")
	})

	t.Run("ExplicitEmailWinsOverPending", func(t *testing.T) {
		env := newAuthTestEnv(t)
		env.svc.On("VerifyEmail", mock.Anything, mock.Anything, "other@example.com", "654321").
			Return(nil)

		w := env.post("/auth/verify-email", `{"email":"other@example.com","otp":"654321"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		env.svc.AssertExpectations(t)
	})
}

func TestLoginHandler(t *testing.T) {
	t.Run("EstablishesSessionAndName", func(t *testing.T) {
		env := newAuthTestEnv(t)
		env.svc.On("Login", mock.Anything, mock.Anything, "asha@example.com", "supersecret").
			Return(&models.TokenPair{Access: "acc-1", Refresh: "ref-1"}, nil)
		env.svc.On("Profile", mock.Anything, mock.Anything).
			Return(&models.Profile{Name: "Asha", Role: models.RoleCustomer}, nil)

		w := env.post("/auth/login", `{"email":"asha@example.com","password":"supersecret"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "/", w.Header().Get("HX-Redirect"))

		state := env.sessionState(t)
		assert.Equal(t, true, state["authenticated"])
		assert.Equal(t, "Asha", state["user_name"])
		env.svc.AssertExpectations(t)
	})

	t.Run("LoginSucceedsWhenProfileHydrationFails", func(t *testing.T) {
		env := newAuthTestEnv(t)
		env.svc.On("Login", mock.Anything, mock.Anything, "asha@example.com", "supersecret").
			Return(&models.TokenPair{Access: "acc-1", Refresh: "ref-1"}, nil)
		env.svc.On("Profile", mock.Anything, mock.Anything).
			Return(nil, upstream.ErrUnreachable)

		w := env.post("/auth/login", `{"email":"asha@example.com","password":"supersecret"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		state := env.sessionState(t)
		assert.Equal(t, true, state["authenticated"])
		assert.Empty(t, state["user_name"])
	})

	t.Run("BadCredentialsLeaveSessionAnonymous", func(t *testing.T) {
		env := newAuthTestEnv(t)
		env.svc.On("Login", mock.Anything, mock.Anything, "asha@example.com", "wrong-pass").
			Return(nil, &upstream.APIError{Status: http.StatusUnauthorized, Message: "Invalid credentials"})

		w := env.post("/auth/login", `{"email":"asha@example.com","password":"wrong-pass"}`)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, false, env.sessionState(t)["authenticated"])
	})
}

func TestLogoutHandler(t *testing.T) {
	t.Run("ClearsSessionEvenWhenUpstreamFails", func(t *testing.T) {
		env := newAuthTestEnv(t)
		env.svc.On("Login", mock.Anything, mock.Anything, "asha@example.com", "supersecret").
			Return(&models.TokenPair{Access: "acc-1", Refresh: "ref-1"}, nil)
		env.svc.On("Profile", mock.Anything, mock.Anything).
			Return(&models.Profile{Name: "Asha"}, nil)
		env.svc.On("Logout", mock.Anything, mock.Anything, "ref-1").
			Return(upstream.ErrUnreachable)

		env.post("/auth/login", `{"email":"asha@example.com","password":"supersecret"}`)
		w := env.post("/auth/logout", "")

		assert.Equal(t, http.StatusOK, w.Code)
		state := env.sessionState(t)
		assert.Equal(t, false, state["authenticated"])
		assert.Empty(t, state["user_name"])
		env.svc.AssertExpectations(t)
	})

	t.Run("AnonymousLogoutSkipsUpstream", func(t *testing.T) {
		env := newAuthTestEnv(t)

		w := env.post("/auth/logout", "")

		assert.Equal(t, http.StatusOK, w.Code)
		env.svc.AssertNotCalled(t, "Logout")
	})
}

func TestForgotPasswordHandler(t *testing.T) {
	env := newAuthTestEnv(t)
	env.svc.On("RequestPasswordReset", mock.Anything, mock.Anything, "asha@example.com").
		Return(nil)

	w := env.post("/auth/password-reset", `{"email":"asha@example.com"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "If this email is registered")
}
