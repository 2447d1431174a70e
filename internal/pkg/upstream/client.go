package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/feastly/feastly-web/internal/app/observability/metrics"
)

// TokenSource supplies the bearer credentials for one caller's session and
// absorbs the side effects of the refresh sub-flow. Implementations are the
// single owner of the persisted token state.
type TokenSource interface {
	AccessToken() string
	RefreshToken() string
	SetAccessToken(token string) error
	ClearTokens() error
}

// Anonymous is a TokenSource with no credentials, for public catalog calls.
var Anonymous TokenSource = anonymousTokens{}

type anonymousTokens struct{}

func (anonymousTokens) AccessToken() string         { return "" }
func (anonymousTokens) RefreshToken() string        { return "" }
func (anonymousTokens) SetAccessToken(string) error { return nil }
func (anonymousTokens) ClearTokens() error          { return nil }

const maxResponseBytes = 4 << 20

// Client is the authenticated request pipeline against one upstream API.
// Every call attaches the caller's bearer token when present, retries exactly
// once after a transparent token refresh on 401, and normalizes error
// payloads. Concurrent refreshes for the same refresh token are coalesced.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	refreshing singleflight.Group
}

// New creates a pipeline client for the given base URL.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(timeout),
		logger:     logger,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	d := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           d.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}
}

func (c *Client) Get(ctx context.Context, tokens TokenSource, path string) (json.RawMessage, error) {
	return c.Do(ctx, tokens, http.MethodGet, path, nil)
}

func (c *Client) Post(ctx context.Context, tokens TokenSource, path string, body any) (json.RawMessage, error) {
	return c.Do(ctx, tokens, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, tokens TokenSource, path string, body any) (json.RawMessage, error) {
	return c.Do(ctx, tokens, http.MethodPut, path, body)
}

func (c *Client) Delete(ctx context.Context, tokens TokenSource, path string) (json.RawMessage, error) {
	return c.Do(ctx, tokens, http.MethodDelete, path, nil)
}

// Do issues one upstream call. On 401 with a refresh token available it
// refreshes the access token and retries the original call exactly once;
// refresh failure tears the session down and returns ErrSessionExpired.
// Non-2xx outcomes become an *APIError. It never loops.
func (c *Client) Do(ctx context.Context, tokens TokenSource, method, path string, body any) (json.RawMessage, error) {
	payload, status, err := c.doOnce(ctx, tokens.AccessToken(), method, path, body)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && tokens.RefreshToken() != "" {
		access, refreshErr := c.refreshAccessToken(ctx, tokens)
		if refreshErr != nil {
			return nil, refreshErr
		}
		payload, status, err = c.doOnce(ctx, access, method, path, body)
		if err != nil {
			return nil, err
		}
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		apiErr := newAPIError(status, payload)
		c.logger.Warn("Upstream request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.String("message", apiErr.Message),
		)
		return nil, apiErr
	}

	if len(payload) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(payload) {
		return nil, errors.Errorf("upstream returned malformed payload for %s %s", method, path)
	}
	return json.RawMessage(payload), nil
}

// DecodeInto issues the call and unmarshals a 2xx payload into dst.
func (c *Client) DecodeInto(ctx context.Context, tokens TokenSource, method, path string, body, dst any) error {
	payload, err := c.Do(ctx, tokens, method, path, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return errors.Wrapf(err, "decoding %s %s response", method, path)
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, accessToken, method, path string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, errors.Wrap(err, "encoding request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, errors.Wrap(err, "building upstream request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Upstream unreachable",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, 0, errors.Wrap(ErrUnreachable, err.Error())
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, errors.Wrap(ErrUnreachable, err.Error())
	}

	metrics.RecordUpstreamRequest(ctx, method, path, resp.StatusCode, time.Since(start))
	return payload, resp.StatusCode, nil
}

// refreshAccessToken exchanges the refresh token for a new access token.
// Concurrent callers holding the same refresh token share one in-flight
// exchange. Any failure clears both tokens.
func (c *Client) refreshAccessToken(ctx context.Context, tokens TokenSource) (string, error) {
	refresh := tokens.RefreshToken()

	v, err, _ := c.refreshing.Do(refresh, func() (any, error) {
		payload, status, reqErr := c.doOnce(ctx, "", http.MethodPost, "/token/refresh/", map[string]string{"refresh": refresh})
		if reqErr != nil {
			return "", reqErr
		}
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return "", newAPIError(status, payload)
		}

		var pair struct {
			Access string `json:"access"`
		}
		if jsonErr := json.Unmarshal(payload, &pair); jsonErr != nil || pair.Access == "" {
			return "", errors.New("refresh response missing access token")
		}
		return pair.Access, nil
	})

	if err != nil {
		metrics.RecordTokenRefresh(ctx, false)
		c.logger.Warn("Token refresh failed, tearing session down", zap.Error(err))
		if clearErr := tokens.ClearTokens(); clearErr != nil {
			c.logger.Error("Failed to clear session tokens", zap.Error(clearErr))
		}
		return "", ErrSessionExpired
	}

	metrics.RecordTokenRefresh(ctx, true)
	access := v.(string)
	if err := tokens.SetAccessToken(access); err != nil {
		return "", errors.Wrap(err, "persisting refreshed access token")
	}
	return access, nil
}
