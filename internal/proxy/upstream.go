// Package proxy forwards a fixed set of routes to the upstream HAC service,
// relaying cookies both ways for session continuity.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Upstream route paths, shared with the typed clients.
const (
	LoginPath     = "/login_process.php"
	DashboardPath = "/dashboard.php"
	ChatPath      = "/chat_api.php"
	ImagePath     = "/image_api.php"
)

// ErrUpstreamTimeout marks a forwarding attempt that exceeded its deadline.
var ErrUpstreamTimeout = errors.New("upstream request timed out")

// Upstream is the outbound HTTP client for the HAC service. Forwarding is a
// single attempt: no retry, no caching, no redirect following.
type Upstream struct {
	baseURL        string
	client         *http.Client
	defaultTimeout time.Duration
}

// NewUpstream creates an upstream client for the given base URL.
func NewUpstream(baseURL string, defaultTimeout time.Duration) *Upstream {
	return &Upstream{
		baseURL:        strings.TrimRight(baseURL, "/"),
		defaultTimeout: defaultTimeout,
		client: &http.Client{
			// Redirects carry Set-Cookie we must relay, so the first
			// response is always the one returned to the caller.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// BaseURL returns the configured upstream base URL.
func (u *Upstream) BaseURL() string {
	return u.baseURL
}

// Request describes one outbound forwarding attempt.
type Request struct {
	Method      string
	Path        string
	ContentType string        // empty = no Content-Type header
	Body        []byte        // nil = no body
	Cookie      string        // inbound Cookie header, forwarded verbatim when set
	Timeout     time.Duration // 0 = default timeout
}

// Result is a relayable upstream response. Statuses below 500 are
// passthrough; the upstream's own 4xx responses arrive here, not as errors.
type Result struct {
	StatusCode  int
	ContentType string
	SetCookies  []string
	Body        []byte
}

// Forward sends one request upstream and captures the response. Transport
// errors, timeouts, and upstream 5xx statuses are returned as errors; a
// timeout wraps ErrUpstreamTimeout.
func (u *Upstream) Forward(ctx context.Context, freq *Request) (*Result, error) {
	timeout := freq.Timeout
	if timeout <= 0 {
		timeout = u.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if len(freq.Body) > 0 {
		body = bytes.NewReader(freq.Body)
	}

	req, err := http.NewRequestWithContext(ctx, freq.Method, u.baseURL+freq.Path, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if freq.ContentType != "" {
		req.Header.Set("Content-Type", freq.ContentType)
	}
	if freq.Cookie != "" {
		req.Header.Set("Cookie", freq.Cookie)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("forward %s %s: %w", freq.Method, freq.Path, ErrUpstreamTimeout)
		}
		return nil, fmt.Errorf("forward %s %s: %w", freq.Method, freq.Path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("forward %s %s: upstream returned %d", freq.Method, freq.Path, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("read upstream response: %w", ErrUpstreamTimeout)
		}
		return nil, fmt.Errorf("read upstream response: %w", err)
	}

	return &Result{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		SetCookies:  resp.Header.Values("Set-Cookie"),
		Body:        data,
	}, nil
}
