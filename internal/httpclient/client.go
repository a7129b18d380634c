// Package httpclient wraps net/http for the outbound calls the service node
// executor makes, applying a fixed timeout and an optional per-host rate
// limit before every request.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Limiter gates outbound calls per host. internal/ratelimit.Limiter does not
// satisfy it directly (its Allow returns a *Result); callers adapt it with
// NewLimiterFunc, so this package does not need to import it.
type Limiter interface {
	Allow(ctx context.Context, host string) (allowed bool, err error)
}

// limiterFunc lets *ratelimit.Limiter (whose Allow returns a *Result) be
// passed in by callers without this package depending on that type.
type limiterFunc func(ctx context.Context, host string) (bool, error)

func (f limiterFunc) Allow(ctx context.Context, host string) (bool, error) { return f(ctx, host) }

// NewLimiterFunc adapts any func(ctx, host) (bool, error) into a Limiter.
func NewLimiterFunc(f func(ctx context.Context, host string) (bool, error)) Limiter {
	return limiterFunc(f)
}

// Client performs the service node executor's outbound HTTP calls.
type Client struct {
	http    *http.Client
	limiter Limiter
}

// New returns a Client with a 15s timeout, matching the service node's
// fixed request budget. limiter may be nil to disable rate limiting.
func New(limiter Limiter) *Client {
	return &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: limiter,
	}
}

// Result is the outcome of one service call: either a parsed JSON body on
// success, or an error string on failure. Exactly one of Body/ErrorText is
// meaningful, mirroring the node executor's "data or {error: ...}" shape.
type Result struct {
	StatusCode int
	Success    bool
	Body       interface{}
	ErrorText  string
}

// Do sends method/targetURL with payload JSON-encoded as the body, honoring
// the configured rate limit and timeout. It never returns a transport error
// to the caller: network failures, timeouts, and non-2xx responses are all
// folded into a Result with Success=false, matching the service node's
// "never abort the workflow" contract.
func (c *Client) Do(ctx context.Context, method, targetURL string, payload interface{}) *Result {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Result{ErrorText: fmt.Sprintf("failed to encode request payload: %v", err)}
	}

	if c.limiter != nil {
		host := hostOf(targetURL)
		allowed, err := c.limiter.Allow(ctx, host)
		if err != nil {
			return &Result{ErrorText: fmt.Sprintf("rate limit check failed: %v", err)}
		}
		if !allowed {
			return &Result{ErrorText: fmt.Sprintf("rate limit exceeded for host %q", host)}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, targetURL, bytes.NewReader(body))
	if err != nil {
		return &Result{ErrorText: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &Result{ErrorText: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Result{StatusCode: resp.StatusCode, ErrorText: fmt.Sprintf("failed to read response body: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Result{StatusCode: resp.StatusCode, ErrorText: string(respBody)}
	}

	var parsed interface{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return &Result{StatusCode: resp.StatusCode, ErrorText: fmt.Sprintf("failed to parse response JSON: %v", err)}
		}
	}

	return &Result{StatusCode: resp.StatusCode, Success: true, Body: parsed}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Host
}
