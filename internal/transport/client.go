// package transport implements the rate-limited authenticated HTTP client
// shared by all target platform adapters.
//
// Two behaviors compose here: request pacing with transparent 429 backoff
// wraps the outer call, and a single 401 refresh-and-retry wraps the inner
// request-producing function. Refreshed tokens are returned to the caller
// rather than propagated through callbacks; the caller decides where they
// are persisted.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/crosstune/crosstune/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Tokens is an access/refresh token pair for one platform.
type Tokens struct {
	Access  string    `json:"access_token"`
	Refresh string    `json:"refresh_token,omitempty"`
	Expiry  time.Time `json:"expiry,omitempty"`
}

// RequestFactory builds the outbound request for a given bearer token. It is
// a factory rather than a prebuilt request so the 401 path can rebuild the
// request with a fresh token (request bodies are single-use).
type RequestFactory func(accessToken string) (*http.Request, error)

// Client paces and authenticates requests against one target platform.
// Each platform gets its own Client since rate budgets differ per platform.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	oauth      *oauth2.Config
	logger     *log.Logger
}

// New creates a Client pacing at requestsPerSecond. The oauth config may be
// nil for platforms without a refresh flow; 401s are then fatal immediately.
func New(httpClient *http.Client, requestsPerSecond float64, oauthCfg *oauth2.Config, logger *log.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Client{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		oauth:      oauthCfg,
		logger:     logger,
	}
}

// Do sends the request produced by build, honoring pacing, 429 backoff, and
// one 401 refresh-and-retry.
//
// A 429 is advisory backpressure, never failure: the client sleeps for the
// server-supplied Retry-After (default 1s) and retries indefinitely. A 401
// triggers exactly one token refresh and re-issue; a second 401, a missing
// refresh token, or a failed refresh surfaces [shared.ErrAuthExpired].
//
// The returned *Tokens is non-nil only when a refresh happened; the caller
// applies the update (typically to the session store) explicitly.
func (c *Client) Do(ctx context.Context, build RequestFactory, tokens Tokens) (*http.Response, *Tokens, error) {
	current := tokens
	var refreshed *Tokens
	retriedAuth := false

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, refreshed, fmt.Errorf("pacing wait canceled: %w", err)
		}

		req, err := build(current.Access)
		if err != nil {
			return nil, refreshed, fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, refreshed, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			delay := RetryAfter(resp)
			resp.Body.Close()
			c.logger.Debug("rate limited, backing off", "delay", delay)
			select {
			case <-ctx.Done():
				return nil, refreshed, ctx.Err()
			case <-time.After(delay):
			}

		case http.StatusUnauthorized:
			resp.Body.Close()
			if retriedAuth {
				return nil, refreshed, fmt.Errorf("%w: request rejected after token refresh", shared.ErrAuthExpired)
			}
			if current.Refresh == "" || c.oauth == nil {
				return nil, refreshed, fmt.Errorf("%w: no refresh token available", shared.ErrAuthExpired)
			}

			fresh, err := c.refresh(ctx, current)
			if err != nil {
				return nil, refreshed, fmt.Errorf("%w: refresh failed: %v", shared.ErrAuthExpired, err)
			}

			c.logger.Debug("access token refreshed")
			current = *fresh
			refreshed = fresh
			retriedAuth = true

		default:
			return resp, refreshed, nil
		}
	}
}

// refresh exchanges the refresh token for a new token pair at the platform's
// token endpoint. Platforms that rotate refresh tokens return a new one;
// otherwise the old refresh token is carried forward.
func (c *Client) refresh(ctx context.Context, current Tokens) (*Tokens, error) {
	src := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: current.Refresh})
	tok, err := src.Token()
	if err != nil {
		return nil, err
	}

	fresh := &Tokens{
		Access:  tok.AccessToken,
		Refresh: tok.RefreshToken,
		Expiry:  tok.Expiry,
	}
	if fresh.Refresh == "" {
		fresh.Refresh = current.Refresh
	}

	return fresh, nil
}

// RetryAfter reads the Retry-After response header in seconds, defaulting
// to 1s when absent or malformed.
func RetryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Second
}
