package mollie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	sdk "github.com/VictorAvelar/mollie-api-go/v4/mollie"
)

const (
	DefaultEndpoint = "https://api.mollie.com/v2"
	DefaultTimeout  = 10 * time.Second

	apiVersion   = "v2"
	maxRedirects = 5
	maxBodyBytes = 4 << 20
)
var (
	ErrNoAPIKey      = errors.New("mollie: api key is not configured")
	ErrInvalidAPIKey = errors.New("mollie: api key was rejected")
)

// APIError is returned for every response whose status is not 2xx.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("mollie: status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("mollie: status %d", e.StatusCode)
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: body}
	var payload struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Title = payload.Title
		apiErr.Detail = payload.Detail
	}
	return apiErr
}

// ErrorDetail returns the human readable reason of a failed call.
func ErrorDetail(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}

// LastResponse is the outcome of the most recent call made by a Client.
// StatusCode is 0 when the call failed before a response arrived.
type LastResponse struct {
	StatusCode int
	Body       []byte
	Err        error
}

// Observer is notified after every HTTP round trip.
type Observer func(method string, statusCode int, elapsed time.Duration)

type Options struct {
	APIKey    string
	TestMode  bool
	Endpoint  string
	Timeout   time.Duration
	UserAgent string
	Observer  Observer
}

// Client talks to the Mollie v2 REST API with a single API key. Requests are
// built and sent by the mollie-api-go SDK; the raw status and body of every
// exchange are captured on the way back.
//
// The first response decides whether the key is valid: a 401 marks it
// invalid and every later call fails with ErrInvalidAPIKey without touching
// the network. Any other first status marks the key valid.
type Client struct {
	apiKey    string
	testMode  bool
	timeout   time.Duration
	userAgent string
	observer  Observer
	api       *sdk.Client
	initErr   error

	mu           sync.Mutex
	keyValidated *bool
	last         *LastResponse
}

func NewClient(opts Options) *Client {
	endpoint := strings.TrimRight(opts.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		apiKey:    opts.APIKey,
		testMode:  opts.TestMode,
		timeout:   timeout,
		userAgent: opts.UserAgent,
		observer:  opts.Observer,
	}
	c.api, c.initErr = newAPI(endpoint, opts.APIKey)
	return c
}

// newAPI configures the SDK client. The SDK appends the API version itself,
// so the endpoint is reduced to its base URL.
func newAPI(endpoint, apiKey string) (*sdk.Client, error) {
	httpClient := &http.Client{
		Transport: capturingTransport{},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	api, err := sdk.NewClient(httpClient, sdk.NewAPIConfig(false))
	if err != nil {
		return nil, fmt.Errorf("mollie: init client: %w", err)
	}
	base, err := url.Parse(strings.TrimSuffix(endpoint, "/"+apiVersion) + "/")
	if err != nil {
		return nil, fmt.Errorf("mollie: endpoint %q: %w", endpoint, err)
	}
	api.BaseURL = base
	if apiKey != "" {
		if err := api.WithAuthenticationValue(apiKey); err != nil {
			return nil, fmt.Errorf("mollie: api key: %w", err)
		}
	}
	return api, nil
}

type exchangeKey struct{}

// exchange is what capturingTransport saw for one request.
type exchange struct {
	status int
	body   []byte
	err    error
}

// capturingTransport copies each response into the exchange carried by the
// request context and hands the SDK a rewound body.
type capturingTransport struct{}

func (capturingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// resolved per call so test interceptors installed later are honoured
	resp, err := http.DefaultTransport.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	ex, ok := req.Context().Value(exchangeKey{}).(*exchange)
	if !ok {
		return resp, nil
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	resp.Body.Close()
	ex.status, ex.body, ex.err = resp.StatusCode, raw, err
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	return resp, nil
}

func (c *Client) TestMode() bool { return c.testMode }

func (c *Client) HasAPIKey() bool { return c.apiKey != "" }

// HasValidAPIKey reports false when no key is set or Mollie already rejected it.
func (c *Client) HasValidAPIKey() bool {
	if !c.HasAPIKey() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keyValidated == nil || *c.keyValidated
}

// LastResponse returns the most recent outcome, or nil before the first call.
func (c *Client) LastResponse() *LastResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Request(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Request(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Request(ctx, http.MethodDelete, path, nil, out)
}

// Request sends an authenticated JSON request to endpoint/path and decodes a
// successful response body into out when out is non-nil.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) error {
	return c.send(ctx, method, path, body, out, "")
}

func (c *Client) send(ctx context.Context, method, path string, body, out any, idempotencyKey string) error {
	if !c.HasAPIKey() {
		return ErrNoAPIKey
	}
	if !c.HasValidAPIKey() {
		return ErrInvalidAPIKey
	}
	if c.initErr != nil {
		return c.initErr
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ex := &exchange{}
	ctx = context.WithValue(ctx, exchangeKey{}, ex)

	uri, query, _ := strings.Cut(strings.TrimLeft(path, "/"), "?")
	req, err := c.api.NewAPIRequest(ctx, method, uri, body)
	if err != nil {
		return fmt.Errorf("mollie: build %s %s: %w", method, path, err)
	}
	if query != "" {
		extra, err := url.ParseQuery(query)
		if err != nil {
			return fmt.Errorf("mollie: build %s %s: %w", method, path, err)
		}
		q := req.URL.Query()
		for k, vs := range extra {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	// the SDK error only restates the status captured below
	_, err = c.api.Do(req)
	elapsed := time.Since(start)
	if ex.status == 0 {
		if err == nil {
			err = errors.New("no response")
		}
		c.record(&LastResponse{Err: err})
		c.observe(method, 0, elapsed)
		return fmt.Errorf("mollie: %s %s: %w", method, path, err)
	}

	c.record(&LastResponse{StatusCode: ex.status, Body: ex.body, Err: ex.err})
	c.observe(method, ex.status, elapsed)
	if ex.err != nil {
		return fmt.Errorf("mollie: read %s %s: %w", method, path, ex.err)
	}
	if ex.status < 200 || ex.status >= 300 {
		return newAPIError(ex.status, ex.body)
	}
	if out == nil || len(ex.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(ex.body, out); err != nil {
		return fmt.Errorf("mollie: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) record(last *LastResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = last
	if c.keyValidated == nil && last.StatusCode != 0 {
		valid := last.StatusCode != http.StatusUnauthorized
		c.keyValidated = &valid
	}
}

func (c *Client) observe(method string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(method, status, elapsed)
	}
}
