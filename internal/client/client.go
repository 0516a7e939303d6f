package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/perc/internal/shared"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL  = "http://localhost:8000"
	requestIDHeader = "X-Request-ID"
)

// Client performs JSON requests against the analysis backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	jar        *sessionJar
	authMode   string
	limiter    *rate.Limiter
	logger     *log.Logger

	mu    sync.RWMutex
	token *oauth2.Token
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient uses hc for transport and timeouts. Its Jar is replaced by the client's own session jar.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			copied := *hc
			c.httpClient = &copied
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithAuthMode selects [shared.AuthModeCookie] or [shared.AuthModeBearer].
func WithAuthMode(mode string) Option {
	return func(c *Client) { c.authMode = mode }
}

// WithRateLimit caps outgoing requests per second. Non-positive values disable limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for baseURL. A trailing slash on baseURL is ignored.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid base URL %q", shared.ErrInvalidConfig, baseURL)
	}

	jar, err := newSessionJar()
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{},
		jar:        jar,
		authMode:   shared.AuthModeCookie,
		logger:     shared.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Jar = c.jar

	return c, nil
}

// NewFromConfig creates a client from the [api] config section.
func NewFromConfig(cfg shared.APIConfig, logger *log.Logger) (*Client, error) {
	return New(cfg.BaseURL,
		WithAuthMode(cfg.AuthMode),
		WithTimeout(cfg.Timeout()),
		WithRateLimit(cfg.RateLimit),
		WithLogger(logger),
	)
}

// BaseURL returns the backend origin without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// AuthMode returns the configured credential strategy.
func (c *Client) AuthMode() string {
	return c.authMode
}

// Do sends a request to endpoint and decodes a JSON response into result.
//
// body is JSON-encoded when non-nil; result may be nil to discard the response.
func (c *Client) Do(ctx context.Context, method, endpoint string, body, result any) error {
	data, _, err := c.send(ctx, method, endpoint, body)
	if err != nil {
		return err
	}

	if result == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// DoRaw sends a request and returns the undecoded response body and its content type.
func (c *Client) DoRaw(ctx context.Context, method, endpoint string) ([]byte, string, error) {
	return c.send(ctx, method, endpoint, nil)
}

func (c *Client) send(ctx context.Context, method, endpoint string, body any) ([]byte, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", fmt.Errorf("%w: %v", shared.ErrTransport, err)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpointURL(endpoint), reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	requestID := shared.GenerateID()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if tok := c.Token(); tok != nil && tok.AccessToken != "" {
		tok.SetAuthHeader(req)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "endpoint", endpoint, "request_id", requestID, "error", err)
		return nil, "", fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read response: %v", shared.ErrTransport, err)
	}

	c.logger.Debug("request", "method", method, "endpoint", endpoint, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", newAPIError(resp.StatusCode, data)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

func (c *Client) endpointURL(endpoint string) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.baseURL.String() + endpoint
}

// Token returns the bearer token, or nil when none is held.
func (c *Client) Token() *oauth2.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken stores an access token for the Authorization header. An empty token clears it.
func (c *Client) SetToken(accessToken, tokenType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if accessToken == "" {
		c.token = nil
		return
	}

	tok := &oauth2.Token{AccessToken: accessToken, TokenType: tokenType}
	if exp, err := TokenExpiry(accessToken); err == nil {
		tok.Expiry = exp
	}
	c.token = tok
}

// Cookies returns the session cookies the jar holds for the backend origin.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.Cookies(c.baseURL)
}

// SetCookies loads cookies for the backend origin, e.g. from a persisted session.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.jar.SetCookies(c.baseURL, cookies)
}

// HasCredentials reports whether any cookie or token is held.
func (c *Client) HasCredentials() bool {
	return c.Token() != nil || len(c.Cookies()) > 0
}

// ClearCredentials drops every cookie and the bearer token.
func (c *Client) ClearCredentials() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()

	c.jar.Reset()
}

// TokenExpiry reads the exp claim of a JWT access token without verifying its signature.
func TokenExpiry(accessToken string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("%w: token has no exp claim", shared.ErrInvalidInput)
	}
	return exp.Time, nil
}

// sessionJar is an [http.CookieJar] whose contents can be discarded atomically on logout.
type sessionJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func newSessionJar() (*sessionJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &sessionJar{jar: jar}, nil
}

func (s *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.jar.SetCookies(u, cookies)
}

func (s *sessionJar) Cookies(u *url.URL) []*http.Cookie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jar.Cookies(u)
}

// Reset replaces the underlying jar with an empty one.
func (s *sessionJar) Reset() {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return
	}
	s.mu.Lock()
	s.jar = jar
	s.mu.Unlock()
}
