package shopify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"voicero/internal/apperr"
	"voicero/internal/db"
	"voicero/internal/db/dbtest"
	"voicero/internal/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSealer(t *testing.T) *security.Sealer {
	t.Helper()
	s, err := security.NewSealer(make([]byte, 32))
	require.NoError(t, err)
	return s
}

func TestIntegrationStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := dbtest.NewMemory()
	store := NewIntegrationStore(mem, "integrations", testSealer(t))

	require.NoError(t, store.Save(ctx, "Demo.myshopify.com", "shpat_secret", "read_orders"))

	item := mem.Item("integrations", "SHOP#demo.myshopify.com")
	require.NotNil(t, item)
	assert.NotEqual(t, "shpat_secret", db.AttrS(item["AccessTokenEnc"]))

	token, integ, err := store.Load(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "shpat_secret", token)
	assert.Equal(t, "read_orders", integ.Scope)

	require.NoError(t, store.RecordWebhook(ctx, "demo.myshopify.com", "app/uninstalled", "wh-1", time.Now()))
	assert.Equal(t, "wh-1", db.AttrS(mem.Item("integrations", "SHOP#demo.myshopify.com")["LastEventWebhookId"]))

	require.NoError(t, store.Delete(ctx, "demo.myshopify.com"))
	require.NoError(t, store.RecordWebhook(ctx, "demo.myshopify.com", "customers/redact", "wh-2", time.Now()))
	assert.Nil(t, mem.Item("integrations", "SHOP#demo.myshopify.com"))
	_, _, err = store.Load(ctx, "demo.myshopify.com")
	var un *apperr.Unauthorized
	require.ErrorAs(t, err, &un)
}

func TestIntegrationStoreMissingShopIsUnauthorized(t *testing.T) {
	store := NewIntegrationStore(dbtest.NewMemory(), "integrations", testSealer(t))

	_, err := store.ClientFor(context.Background(), "", "2025-01")
	var un *apperr.Unauthorized
	require.ErrorAs(t, err, &un)
}

func TestWebhookDeduperClaimsOnce(t *testing.T) {
	ctx := context.Background()
	d := NewWebhookDeduper(dbtest.NewMemory(), "dedupe")

	dup, err := d.Claim(ctx, "wh-1", "demo.myshopify.com", "shop/redact")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = d.Claim(ctx, "wh-1", "demo.myshopify.com", "shop/redact")
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = d.Claim(ctx, "", "demo.myshopify.com", "shop/redact")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestCreateWebhookTreatsTakenAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":{"address":["for this topic has already been taken"]}}`))
	}))
	defer srv.Close()

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	hc := &http.Client{Transport: rewriteTransport{target: target}}

	created, failed := SubscribeAppWebhooks(context.Background(), hc, "demo.myshopify.com", "2025-01", "t", "https://app.example.com/")
	assert.Equal(t, []string{"app/uninstalled"}, created)
	assert.Empty(t, failed)
}

// rewriteTransport sends every request to the test server.
type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r2 := r.Clone(r.Context())
	r2.URL.Scheme = rt.target.Scheme
	r2.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(r2)
}

func TestStateStoreIssueAndConsume(t *testing.T) {
	ctx := context.Background()
	mem := dbtest.NewMemory()
	s := NewStateStore(mem, "oauth")

	state, err := s.Issue(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	require.NotEmpty(t, state)

	require.NoError(t, s.Consume(ctx, state, "demo.myshopify.com"))

	// single use
	var un *apperr.Unauthorized
	require.ErrorAs(t, s.Consume(ctx, state, "demo.myshopify.com"), &un)
}

func TestStateStoreRejectsOtherShopAndExpired(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore(dbtest.NewMemory(), "oauth")
	var un *apperr.Unauthorized

	state, err := s.Issue(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	require.ErrorAs(t, s.Consume(ctx, state, "evil.myshopify.com"), &un)

	state, err = s.Issue(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	s.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	require.ErrorAs(t, s.Consume(ctx, state, "demo.myshopify.com"), &un)
}

func TestValidShopDomain(t *testing.T) {
	assert.True(t, ValidShopDomain("demo.myshopify.com"))
	assert.False(t, ValidShopDomain("demo.example.com"))
	assert.False(t, ValidShopDomain("evil.com/x.myshopify.com"))
	assert.False(t, ValidShopDomain(".myshopify.com"))
}

func TestNormalizeTopic(t *testing.T) {
	cases := map[string]string{
		"CUSTOMERS_DATA_REQUEST": "customers/data_request",
		"customers-data_request": "customers/data_request",
		"customers/data_request": "customers/data_request",
		"CUSTOMERS_REDACT":       "customers/redact",
		"shop-redact":            "shop/redact",
		"SHOP_REDACT":            "shop/redact",
		"app/uninstalled":        "app/uninstalled",
		" ":                      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeTopic(in), in)
	}
}
