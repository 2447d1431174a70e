package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTokens is an in-memory TokenSource for pipeline tests.
type fakeTokens struct {
	mu      sync.Mutex
	access  string
	refresh string
	cleared bool
}

func (f *fakeTokens) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access
}

func (f *fakeTokens) RefreshToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refresh
}

func (f *fakeTokens) SetAccessToken(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = token
	return nil
}

func (f *fakeTokens) ClearTokens() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = ""
	f.refresh = ""
	f.cleared = true
	return nil
}

func newTestClient(baseURL string) *Client {
	return New(baseURL, 5*time.Second, zap.NewNop())
}

func TestDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Asha"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	tokens := &fakeTokens{access: "token-1", refresh: "refresh-1"}

	payload, err := client.Get(context.Background(), tokens, "/profile/")
	require.NoError(t, err)

	var body struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(payload, &body))
	assert.Equal(t, "Asha", body.Name)
}

func TestDoAnonymousOmitsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Get(context.Background(), Anonymous, "/restaurants/")
	require.NoError(t, err)
}

func TestDoRefreshesOnceAndRetriesOnce(t *testing.T) {
	var refreshCalls, resourceCalls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token/refresh/":
			atomic.AddInt32(&refreshCalls, 1)

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "refresh-1", body["refresh"])

			_, _ = w.Write([]byte(`{"access":"fresh-access"}`))
		case "/profile/":
			atomic.AddInt32(&resourceCalls, 1)
			if r.Header.Get("Authorization") != "Bearer fresh-access" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"token expired"}`))
				return
			}
			_, _ = w.Write([]byte(`{"name":"Asha"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	tokens := &fakeTokens{access: "stale-access", refresh: "refresh-1"}

	payload, err := client.Get(context.Background(), tokens, "/profile/")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Asha"}`, string(payload))

	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshCalls), "exactly one refresh call")
	assert.Equal(t, int32(2), atomic.LoadInt32(&resourceCalls), "exactly one retry")
	assert.Equal(t, "fresh-access", tokens.AccessToken())
	assert.Equal(t, "refresh-1", tokens.RefreshToken())
}

func TestDoRefreshFailureTearsSessionDown(t *testing.T) {
	var resourceCalls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token/refresh/":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"refresh token invalid"}`))
		case "/orders/":
			atomic.AddInt32(&resourceCalls, 1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"token expired"}`))
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	tokens := &fakeTokens{access: "stale-access", refresh: "bad-refresh"}

	_, err := client.Get(context.Background(), tokens, "/orders/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionExpired))

	assert.True(t, tokens.cleared, "both tokens cleared")
	assert.Empty(t, tokens.AccessToken())
	assert.Empty(t, tokens.RefreshToken())
	assert.Equal(t, int32(1), atomic.LoadInt32(&resourceCalls), "no retry after failed refresh")
}

func TestDoNoRefreshWithoutRefreshToken(t *testing.T) {
	var refreshCalls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token/refresh/" {
			atomic.AddInt32(&refreshCalls, 1)
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"authentication required"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	tokens := &fakeTokens{}

	_, err := client.Get(context.Background(), tokens, "/profile/")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "authentication required", apiErr.Message)
	assert.Zero(t, atomic.LoadInt32(&refreshCalls))
}

func TestDoFlattensFieldErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"email":["already exists"],"password":["too short","too common"]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Post(context.Background(), &fakeTokens{}, "/register/", map[string]string{"email": "a@b.c"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Message, "email: already exists")
	assert.Contains(t, apiErr.Message, "password: too short, too common")
	assert.Equal(t, []string{"already exists"}, apiErr.Fields["email"])
}

func TestDoUsesDetailAndMessageKeys(t *testing.T) {
	t.Run("Detail", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"detail":"account already registered"}`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Post(context.Background(), &fakeTokens{}, "/register/", nil)
		require.Error(t, err)
		assert.Equal(t, "account already registered", err.Error())
	})

	t.Run("Message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"invalid otp"}`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Post(context.Background(), &fakeTokens{}, "/verify-email/", nil)
		require.Error(t, err)
		assert.Equal(t, "invalid otp", err.Error())
	})

	t.Run("Unparseable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`<html>bad gateway</html>`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).Get(context.Background(), &fakeTokens{}, "/profile/")
		require.Error(t, err)
		assert.Equal(t, "Request failed", err.Error())
	})
}

func TestDoTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening any more

	_, err := newTestClient(srv.URL).Get(context.Background(), &fakeTokens{}, "/profile/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreachable))
}

func TestDoEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	payload, err := newTestClient(srv.URL).Delete(context.Background(), &fakeTokens{access: "t"}, "/admin/users/7/")
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), payload)
}
