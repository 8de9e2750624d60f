package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"voicero/internal/apperr"
	"voicero/internal/assistant"
	"voicero/internal/db/dbtest"
	"voicero/internal/ratelimit"
	"voicero/internal/security"
	"voicero/internal/sessions"
	"voicero/internal/shopify"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testShop = "demo.myshopify.com"

type stubClients struct {
	endpoint string
	err      error
	calls    int
}

func (s *stubClients) ClientFor(_ context.Context, shopDomain, apiVersion string, opts ...shopify.Option) (*shopify.Client, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	opts = append(opts, shopify.WithEndpoint(s.endpoint), shopify.WithRetryInterval(time.Millisecond))
	return shopify.NewClient(shopDomain, apiVersion, "shpat_test", opts...), nil
}

// adminAPI answers the order lookup with a single unfulfilled order owned by a@b.com.
func adminAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Contains(t, body.Query, "query OrderLookup")
		order := map[string]any{
			"id":                       "gid://shopify/Order/5001",
			"name":                     "#1001",
			"email":                    "a@b.com",
			"createdAt":                "2025-03-01T10:00:00Z",
			"displayFulfillmentStatus": "UNFULFILLED",
			"displayFinancialStatus":   "PAID",
			"totalPriceSet":            map[string]any{"shopMoney": map[string]any{"amount": "10.00", "currencyCode": "USD"}},
			"lineItems":                map[string]any{"edges": []any{}},
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"orders": map[string]any{"edges": []any{map[string]any{"node": order}}},
		}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type staticLLM struct{ reply string }

func (s staticLLM) Complete(context.Context, string, []assistant.ChatMessage) (string, error) {
	return s.reply, nil
}

func newProxy(t *testing.T, mutate func(*ProxyDeps)) (*ProxyHandler, *stubClients) {
	t.Helper()
	clients := &stubClients{endpoint: adminAPI(t).URL}
	store := sessions.NewStore(dbtest.NewMemory(), "sessions")
	d := ProxyDeps{
		APISecret:  "secret",
		APIVersion: "2025-01",
		Clients:    clients,
		Sessions:   store,
		Assistant:  assistant.New(staticLLM{reply: `{"answer":"Hi there","action":"none"}`}, store, nil),
	}
	if mutate != nil {
		mutate(&d)
	}
	return NewProxyHandler(d), clients
}

func proxyReq(m, path, body string, q url.Values) events.APIGatewayV2HTTPRequest {
	if q == nil {
		q = url.Values{"shop": {testShop}}
	}
	req := events.APIGatewayV2HTTPRequest{
		RawPath:        path,
		RawQueryString: q.Encode(),
		Body:           body,
		Headers:        map[string]string{"content-type": "application/json"},
	}
	req.RequestContext.HTTP.Method = m
	req.RequestContext.HTTP.SourceIP = "203.0.113.7"
	return req
}

func decodeBody(t *testing.T, res events.APIGatewayV2HTTPResponse) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Body), &out))
	return out
}

func TestProxyPreflight(t *testing.T) {
	h, _ := newProxy(t, nil)

	res, err := h.Handle(context.Background(), proxyReq(http.MethodOptions, "/apps/proxy", "", url.Values{}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, "*", res.Headers["access-control-allow-origin"])
}

func TestProxySignature(t *testing.T) {
	h, _ := newProxy(t, func(d *ProxyDeps) { d.RequireSignature = true })
	body := `{"action":"verify_order","order_number":"1001","email":"a@b.com"}`

	res, err := h.Handle(context.Background(), proxyReq(http.MethodPost, "/apps/proxy", body, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	q := url.Values{"shop": {testShop}, "timestamp": {"1700000000"}}
	security.SignProxyQuery(q, "secret")
	res, err = h.Handle(context.Background(), proxyReq(http.MethodPost, "/apps/proxy", body, q))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestProxyRejectsBadShop(t *testing.T) {
	h, _ := newProxy(t, nil)

	res, err := h.Handle(context.Background(), proxyReq(http.MethodPost, "/apps/proxy", "{}", url.Values{"shop": {"evil.example.com"}}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestProxyOrderAction(t *testing.T) {
	h, _ := newProxy(t, nil)

	res, err := h.Handle(context.Background(), proxyReq(http.MethodPost, "/apps/proxy",
		`{"action":"verify_order","orderNumber":1001,"email":"A@B.com"}`, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	out := decodeBody(t, res)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, true, out["verified"])
}

func TestProxyOrderActionErrors(t *testing.T) {
	h, clients := newProxy(t, nil)

	res, err := h.Handle(context.Background(), proxyReq(http.MethodPost, "/apps/proxy", `{not json`, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, err = h.Handle(context.Background(), proxyReq(http.MethodGet, "/apps/proxy", "", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)

	clients.err = &apperr.Unauthorized{Message: "shop not installed"}
	res, err = h.Handle(context.Background(), proxyReq(http.MethodPost, "/apps/proxy", `{"action":"cancel"}`, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, false, decodeBody(t, res)["success"])
}

func TestProxyUnknownActionIsSuccessFalse(t *testing.T) {
	h, _ := newProxy(t, nil)

	res, err := h.Handle(context.Background(), proxyReq(http.MethodPost, "/apps/proxy", `{"action":"teleport"}`, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	out := decodeBody(t, res)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Unknown action: teleport", out["error"])
}

func TestProxyCustomerValidation(t *testing.T) {
	h, _ := newProxy(t, nil)

	res, err := h.Handle(context.Background(), proxyReq(http.MethodPost, "/apps/proxy/customer",
		`{"customer":{"id":"7","phone":"12"}}`, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	out := decodeBody(t, res)
	assert.Equal(t, false, out["success"])
	assert.NotEmpty(t, out["errors"])
}

// customerAPI serves customer 42 (victim@example.com) and counts writes.
func customerAPI(t *testing.T, writes *int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		var data map[string]any
		switch {
		case strings.Contains(body.Query, "query CustomerProfile"):
			data = map[string]any{"customer": map[string]any{"id": "gid://shopify/Customer/42", "email": "victim@example.com"}}
		case strings.Contains(body.Query, "mutation CustomerUpdate"):
			*writes++
			data = map[string]any{"customerUpdate": map[string]any{"customer": map[string]any{"id": "gid://shopify/Customer/42"}, "userErrors": []any{}}}
		default:
			t.Fatalf("unexpected document: %s", body.Query)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProxyCustomerIDNeedsSignedQuery(t *testing.T) {
	var writes int
	h, clients := newProxy(t, nil)
	clients.endpoint = customerAPI(t, &writes).URL
	body := `{"customer":{"id":"42","email":"attacker@evil.com"}}`

	unsigned := url.Values{"shop": {testShop}, "logged_in_customer_id": {"42"}}
	res, err := h.Handle(context.Background(), proxyReq(http.MethodPost, "/apps/proxy/customer", body, unsigned))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Zero(t, writes)

	signed := url.Values{"shop": {testShop}, "logged_in_customer_id": {"42"}}
	security.SignProxyQuery(signed, "secret")
	res, err = h.Handle(context.Background(), proxyReq(http.MethodPost, "/apps/proxy/customer", body, signed))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, writes)
}

func TestProxyCustomerEmailProvesOwnership(t *testing.T) {
	var writes int
	h, clients := newProxy(t, nil)
	clients.endpoint = customerAPI(t, &writes).URL

	res, err := h.Handle(context.Background(), proxyReq(http.MethodPost, "/apps/proxy/customer",
		`{"customer":{"id":"42","firstName":"Vic"},"email":"Victim@Example.com"}`, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, writes)
}

func TestProxyRateLimit(t *testing.T) {
	h, _ := newProxy(t, func(d *ProxyDeps) {
		d.Limiter = ratelimit.NewMemory(ratelimit.Policy{RPS: 0.001, Burst: 1})
	})
	body := `{"action":"refund"}`

	res, err := h.Handle(context.Background(), proxyReq(http.MethodPost, "/apps/proxy", body, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = h.Handle(context.Background(), proxyReq(http.MethodPost, "/apps/proxy", body, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
}

func TestProxySessionLifecycle(t *testing.T) {
	ctx := context.Background()
	h, _ := newProxy(t, nil)

	res, err := h.Handle(ctx, proxyReq(http.MethodPost, "/apps/proxy/sessions", `{"session_id":"s1"}`, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, err = h.Handle(ctx, proxyReq(http.MethodPost, "/apps/proxy/sessions/s1/messages", `{"content":"hello"}`, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, err = h.Handle(ctx, proxyReq(http.MethodPost, "/apps/proxy/sessions/s1/window", `{"window_state":"chooser","welcome_shown":true}`, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	sess := decodeBody(t, res)["session"].(map[string]any)
	assert.Equal(t, "chooser", sess["window_state"])
	assert.Equal(t, true, sess["welcome_shown"])
	version := int(sess["version"].(float64))

	// closed is reachable, voice_minimized is not
	res, err = h.Handle(ctx, proxyReq(http.MethodPut, "/apps/proxy/sessions/s1/window", `{"window_state":"voice_minimized"}`, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, false, decodeBody(t, res)["success"])

	res, err = h.Handle(ctx, proxyReq(http.MethodPut, "/apps/proxy/sessions/s1/window", `{"window_state":"text_open","version":1}`, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	body := `{"window_state":"text_open","version":` + jsonInt(version) + `}`
	res, err = h.Handle(ctx, proxyReq(http.MethodPut, "/apps/proxy/sessions/s1/window", body, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = h.Handle(ctx, proxyReq(http.MethodPost, "/apps/proxy/sessions/s1/clear", "", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	threads := decodeBody(t, res)["session"].(map[string]any)["threads"].([]any)
	assert.Len(t, threads, 2)

	res, err = h.Handle(ctx, proxyReq(http.MethodGet, "/apps/proxy/sessions/s1", "", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = h.Handle(ctx, proxyReq(http.MethodGet, "/apps/proxy/sessions/s1", "", url.Values{"shop": {"other.myshopify.com"}}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, err = h.Handle(ctx, proxyReq(http.MethodDelete, "/apps/proxy/sessions/s1", "", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestProxyChatWithoutInstalledShop(t *testing.T) {
	ctx := context.Background()
	h, clients := newProxy(t, func(d *ProxyDeps) {
		d.Assistant = assistant.New(staticLLM{reply: `{"answer":"Let me check.","action":"cancel","action_context":{"order_number":"1001","email":"a@b.com"}}`}, d.Sessions, nil)
	})
	clients.err = &apperr.Unauthorized{Message: "shop not installed"}

	_, err := h.Sessions.Create(ctx, testShop, "chat-1")
	require.NoError(t, err)

	res, err := h.Handle(ctx, proxyReq(http.MethodPost, "/apps/proxy/chat", `{"session_id":"chat-1","message":"cancel my order"}`, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decodeBody(t, res)
	assert.Equal(t, string(assistant.ActionContact), out["action"])
	assert.True(t, strings.TrimSpace(out["answer"].(string)) != "")
}

func TestProxyChatRequiresSession(t *testing.T) {
	h, _ := newProxy(t, nil)

	res, err := h.Handle(context.Background(), proxyReq(http.MethodPost, "/apps/proxy/chat", `{"message":"hi"}`, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, false, decodeBody(t, res)["success"])
}
