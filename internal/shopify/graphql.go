package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

type GraphQLError struct {
	Message    string `json:"message"`
	Path       []any  `json:"path,omitempty"`
	Extensions struct {
		Code string `json:"code,omitempty"`
	} `json:"extensions,omitempty"`
}

type GraphQLResponse[T any] struct {
	Data   T              `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

// UserError is the userErrors entry every Admin API mutation payload carries.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// GraphQLErrors wraps top-level GraphQL errors returned with a 200 status.
type GraphQLErrors struct {
	Errors []GraphQLError
}

func (e *GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ge := range e.Errors {
		if ge.Extensions.Code != "" {
			msgs = append(msgs, ge.Message+" ("+ge.Extensions.Code+")")
		} else {
			msgs = append(msgs, ge.Message)
		}
	}
	return "graphql errors: " + strings.Join(msgs, "; ")
}

func (e *GraphQLErrors) throttled() bool {
	for _, ge := range e.Errors {
		if ge.Extensions.Code == "THROTTLED" {
			return true
		}
	}
	return false
}

// HTTPError is a non-2xx answer from the Admin API.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("shopify error status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client talks to one shop's Admin GraphQL API with that shop's offline token.
type Client struct {
	shopDomain  string
	apiVersion  string
	accessToken string
	endpoint    string

	httpClient    *http.Client
	maxRetries    uint
	retryInterval time.Duration
	logger        *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoint overrides the GraphQL URL; tests point it at an httptest server.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = uint(n)
		}
	}
}

func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) { c.retryInterval = d }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(shopDomain, apiVersion, accessToken string, opts ...Option) *Client {
	shopDomain = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(shopDomain, "https://"), "http://"), "/")

	c := &Client{
		shopDomain:    shopDomain,
		apiVersion:    apiVersion,
		accessToken:   accessToken,
		endpoint:      fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shopDomain, apiVersion),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		maxRetries:    3,
		retryInterval: 300 * time.Millisecond,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ShopDomain() string { return c.shopDomain }

// Query runs a read-only document, retrying transport failures, 429/5xx and THROTTLED answers.
func Query[T any](ctx context.Context, c *Client, query string, variables map[string]any) (*T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxInterval = 5 * time.Second

	op := func() (*T, error) {
		resp, err := postGraphQL[T](ctx, c, query, variables)
		if err == nil {
			return &resp.Data, nil
		}
		var (
			httpErr *HTTPError
			gqlErr  *GraphQLErrors
		)
		switch {
		case errors.As(err, &httpErr) && !httpErr.retryable():
			return nil, backoff.Permanent(err)
		case errors.As(err, &gqlErr) && !gqlErr.throttled():
			return nil, backoff.Permanent(err)
		case errors.Is(err, errDecode):
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Shopify query retry",
			zap.String("shop", c.shopDomain),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.maxRetries+1),
		backoff.WithNotify(notify),
	)
}

// Mutate sends a mutation exactly once.
func Mutate[T any](ctx context.Context, c *Client, mutation string, variables map[string]any) (*T, error) {
	resp, err := postGraphQL[T](ctx, c, mutation, variables)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

var errDecode = errors.New("decode graphql response")

func postGraphQL[T any](ctx context.Context, c *Client, query string, variables map[string]any) (*GraphQLResponse[T], error) {
	body := map[string]any{
		"query": query,
	}
	if len(variables) > 0 {
		body["variables"] = variables
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shopify request failed: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read shopify response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: truncate(string(raw), 500)}
	}

	var out GraphQLResponse[T]
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", errDecode, err)
	}
	if len(out.Errors) > 0 {
		return nil, &GraphQLErrors{Errors: out.Errors}
	}

	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
