// Package cashctrl is the typed client for the remote accounting API:
// basic-auth transport with the fixed 429 retry policy, the success
// envelope, and one gateway per resource.
package cashctrl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/openmuni/cashsync/pkg/models"
	"github.com/openmuni/cashsync/pkg/utils"
)

const (
	// DefaultRetryLimit and DefaultRetryWait are the remote's documented
	// rate-limit policy: retry only on 429, five attempts, fixed 10s
	// sleep between them.
	DefaultRetryLimit = 5
	DefaultRetryWait  = 10 * time.Second

	// DefaultTimeout bounds a single call.
	DefaultTimeout = 10 * time.Second
)

// Client issues authenticated requests against one setup's organization.
// It holds no per-call state and is safe for concurrent use.
type Client struct {
	setup      *models.APISetup
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	retryLimit int
	retryWait  time.Duration
	timeout    time.Duration

	// sleep is the backoff primitive, replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the URL derived from the setup's org. Used for
// tests and self-hosted instances.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") + "/" }
}

// WithRetryPolicy overrides the 429 retry budget.
func WithRetryPolicy(limit int, wait time.Duration) Option {
	return func(c *Client) {
		c.retryLimit = limit
		c.retryWait = wait
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRateLimit adds client-side pacing in front of the remote, in
// requests per second. The 429 handling stays authoritative either way.
func WithRateLimit(rps float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithDebug dumps requests and responses to stdout.
func WithDebug() Option {
	return func(c *Client) {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.httpClient.Transport = utils.DebugRoundTripperWithUnderlying(base)
	}
}

// NewClient creates a client for one setup.
func NewClient(setup *models.APISetup, opts ...Option) *Client {
	c := &Client{
		setup:      setup,
		baseURL:    setup.BaseURL(),
		httpClient: &http.Client{},
		retryLimit: DefaultRetryLimit,
		retryWait:  DefaultRetryWait,
		timeout:    DefaultTimeout,
	}
	c.sleep = func(ctx context.Context, d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Setup returns the setup this client is bound to.
func (c *Client) Setup() *models.APISetup { return c.setup }

// Payload is one resource object on the wire.
type Payload map[string]any

// Envelope is the remote's uniform response shape.
type Envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Message  string          `json:"message"`
	InsertID int64           `json:"insertId"`
	Errors   []FieldError    `json:"errors"`
}

// One unmarshals the envelope data as a single payload.
func (e *Envelope) One() (Payload, error) {
	var p Payload
	if len(e.Data) == 0 {
		return nil, fmt.Errorf("envelope carries no data")
	}
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return p, nil
}

// Many unmarshals the envelope data as a payload list. A single object
// is wrapped into a one-element list.
func (e *Envelope) Many() ([]Payload, error) {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil, nil
	}
	var list []Payload
	if err := json.Unmarshal(e.Data, &list); err == nil {
		return list, nil
	}
	one, err := e.One()
	if err != nil {
		return nil, err
	}
	return []Payload{one}, nil
}

// Get issues a GET with query parameters, used for list and read.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (*Envelope, error) {
	return c.do(ctx, func(callCtx context.Context) (*http.Request, error) {
		u := c.baseURL + path
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		return http.NewRequestWithContext(callCtx, http.MethodGet, u, nil)
	})
}

// PostForm issues a form-encoded POST, used for create, update, delete.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (*Envelope, error) {
	return c.do(ctx, func(callCtx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost,
			c.baseURL+path, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

func (c *Client) do(ctx context.Context, build func(context.Context) (*http.Request, error)) (*Envelope, error) {
	for attempt := 1; attempt <= c.retryLimit; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		status, body, err := c.roundTrip(ctx, build)
		if err != nil {
			return nil, err
		}

		if status == http.StatusTooManyRequests {
			if err := c.sleep(ctx, c.retryWait); err != nil {
				return nil, err
			}
			continue
		}

		if status < 200 || status > 299 {
			return nil, &TransportError{Status: status, Body: string(body)}
		}

		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("failed to parse response envelope: %w, body: %s", err, string(body))
		}
		if !env.Success {
			return nil, &RemoteError{Message: env.Message, Errors: env.Errors}
		}
		return &env, nil
	}

	return nil, &RateLimitError{Attempts: c.retryLimit, Wait: c.retryWait}
}

func (c *Client) roundTrip(ctx context.Context, build func(context.Context) (*http.Request, error)) (int, []byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := build(callCtx)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.setup.APIKey, "")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// The caller's context won, not the per-call timeout.
			return 0, nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return 0, nil, &TransportError{Status: StatusTimeout, Timeout: true}
		}
		return 0, nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
