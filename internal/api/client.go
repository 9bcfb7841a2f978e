package api

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
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// basePath is prepended to every request path.
const basePath = "/api"

// Client is a thin HTTP client for the task-management REST API.
// Authentication is cookie-based: the client carries a cookie jar and
// never attaches tokens by hand. All responses are decoded from the
// uniform {success, data, ...} envelope, and all failures are
// normalized to a single human-readable message (*Error).
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger

	// inProtected reports whether the application is currently inside
	// its protected section. Combined with a 401 response it decides
	// whether onAuthLost fires.
	inProtected func() bool
	onAuthLost  func()
}

// NewClient creates a client for the API rooted at baseURL (without
// the /api suffix). A nil logger disables request logging.
func NewClient(baseURL string, log *zap.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Jar: jar,
		},
		log:         log,
		inProtected: func() bool { return false },
		onAuthLost:  func() {},
	}, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetAuthLostHandler installs the protected-section predicate and the
// handler invoked when a 401 response arrives while inside it. The
// handler performs a hard reset of client state; it is never delivered
// as a catchable error to the original caller alone.
func (c *Client) SetAuthLostHandler(inProtected func() bool, handler func()) {
	if inProtected != nil {
		c.inProtected = inProtected
	}
	if handler != nil {
		c.onAuthLost = handler
	}
}

// Get performs a GET request and decodes the envelope data into
// result. Reads get exactly one automatic retry on failure.
func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	env, err := c.getEnvelope(ctx, path)
	if err != nil {
		return err
	}
	return decodeData(env, result)
}

// GetPage performs a GET request for a paginated collection, decoding
// the envelope data into result and returning the pagination block.
func (c *Client) GetPage(ctx context.Context, path string, result interface{}) (*Pagination, error) {
	env, err := c.getEnvelope(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := decodeData(env, result); err != nil {
		return nil, err
	}
	return env.Pagination, nil
}

// Post performs a POST request. Mutations are never retried.
func (c *Client) Post(ctx context.Context, path string, body, result interface{}) error {
	env, err := c.do(ctx, http.MethodPost, path, body, 0)
	if err != nil {
		return err
	}
	return decodeData(env, result)
}

// Patch performs a PATCH request. Mutations are never retried.
func (c *Client) Patch(ctx context.Context, path string, body, result interface{}) error {
	env, err := c.do(ctx, http.MethodPatch, path, body, 0)
	if err != nil {
		return err
	}
	return decodeData(env, result)
}

// Delete performs a DELETE request. Mutations are never retried.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, 0)
	return err
}

// getEnvelope issues a GET with the one-retry read policy.
func (c *Client) getEnvelope(ctx context.Context, path string) (*Envelope, error) {
	return c.do(ctx, http.MethodGet, path, nil, 1)
}

// do is the core request method: it builds the request, runs it with
// up to maxRetries additional attempts, applies the 401 side effect,
// and normalizes every failure into *Error.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	maxRetries int,
) (*Envelope, error) {
	reqURL := c.baseURL + basePath + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Message: fmt.Sprintf("encoding request body: %v", err)}
		}
		payload = data
	}

	var lastErr *Error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		env, retryable, err := c.doOnce(ctx, method, reqURL, path, payload)
		if err == nil {
			return env, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// doOnce runs a single attempt. The second return reports whether the
// failure is eligible for the read-retry policy.
func (c *Client) doOnce(
	ctx context.Context,
	method, reqURL, path string,
	payload []byte,
) (*Envelope, bool, *Error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, false, &Error{Message: fmt.Sprintf("creating request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, true, normalizeTransport(err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, true, normalizeTransport(readErr)
	}

	c.log.Debug("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		if c.inProtected() {
			// Hard reset of client state; deliberately not left to
			// the caller.
			c.onAuthLost()
		}
		return nil, false, normalizeResponse(resp.StatusCode, respBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Server errors may be transient; client errors are final.
		retryable := resp.StatusCode >= 500
		return nil, retryable, normalizeResponse(resp.StatusCode, respBody)
	}

	env := &Envelope{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, env); err != nil {
			return nil, false, &Error{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("decoding response from %s %s: %v", method, path, err),
			}
		}
	}
	return env, false, nil
}

// CookieJar exposes the jar so the event-channel dialer can present
// the same session cookie.
func (c *Client) CookieJar() http.CookieJar {
	return c.httpClient.Jar
}

// SessionCookies returns the cookies the jar currently holds for the
// API origin, so the session can be persisted between runs.
func (c *Client) SessionCookies() []*http.Cookie {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil
	}
	return c.httpClient.Jar.Cookies(u)
}

// RestoreSessionCookies seeds the jar with previously persisted
// cookies for the API origin.
func (c *Client) RestoreSessionCookies(cookies []*http.Cookie) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return
	}
	c.httpClient.Jar.SetCookies(u, cookies)
}
