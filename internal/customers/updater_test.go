package customers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"voicero/internal/apperr"
	"voicero/internal/shopify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdmin struct {
	mu         sync.Mutex
	customer   map[string]any
	userErrors []map[string]any
	ops        []string
	lastVars   map[string]map[string]any
}

func (f *fakeAdmin) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.lastVars == nil {
			f.lastVars = map[string]map[string]any{}
		}

		errs := f.userErrors
		if errs == nil {
			errs = []map[string]any{}
		}
		var data map[string]any
		switch {
		case strings.Contains(body.Query, "query CustomerProfile"):
			f.ops = append(f.ops, "customer")
			data = map[string]any{"customer": f.customer}
		case strings.Contains(body.Query, "mutation CustomerAddressUpdate"):
			f.ops = append(f.ops, "customerAddressUpdate")
			f.lastVars["customerAddressUpdate"] = body.Variables
			data = map[string]any{"customerAddressUpdate": map[string]any{"address": map[string]any{"id": "a"}, "userErrors": errs}}
		case strings.Contains(body.Query, "mutation CustomerAddressCreate"):
			f.ops = append(f.ops, "customerAddressCreate")
			f.lastVars["customerAddressCreate"] = body.Variables
			data = map[string]any{"customerAddressCreate": map[string]any{"address": map[string]any{"id": "a"}, "userErrors": errs}}
		case strings.Contains(body.Query, "mutation CustomerUpdate"):
			f.ops = append(f.ops, "customerUpdate")
			f.lastVars["customerUpdate"] = body.Variables
			data = map[string]any{"customerUpdate": map[string]any{"customer": map[string]any{"id": "c"}, "userErrors": errs}}
		default:
			t.Fatalf("unexpected document: %s", body.Query)
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"data": data}))
	}
}

func newUpdater(t *testing.T, f *fakeAdmin) *Updater {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return NewUpdater(shopify.NewClient("demo.myshopify.com", "2025-01", "t", shopify.WithEndpoint(srv.URL)), nil)
}

func customerWithAddress() map[string]any {
	return map[string]any{
		"id": "gid://shopify/Customer/7", "email": "a@b.com", "firstName": "Ada", "lastName": "L",
		"defaultAddress": map[string]any{"id": "gid://shopify/MailingAddress/3?model_name=CustomerAddress", "address1": "Old St"},
	}
}

func strp(s string) *string { return &s }

func TestUpdateExistingAddressAndScalars(t *testing.T) {
	f := &fakeAdmin{customer: customerWithAddress()}
	u := newUpdater(t, f)

	res, err := u.Update(context.Background(), UpdateRequest{
		Customer: CustomerUpdate{
			ID:             "7",
			Phone:          strp("+1 (555) 123-4567"),
			DefaultAddress: &Address{Address1: "1 Main St", City: "Albany", Province: "New York", Zip: "12207", Country: "United States"},
		},
	}, "7")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "gid://shopify/Customer/7", res.Customer.ID)
	assert.Equal(t, []string{"customer", "customerAddressUpdate", "customerUpdate", "customer"}, f.ops)

	vars := f.lastVars["customerAddressUpdate"]
	assert.Equal(t, "gid://shopify/MailingAddress/3?model_name=CustomerAddress", vars["addressId"])
	addr := vars["address"].(map[string]any)
	assert.Equal(t, "US", addr["countryCode"])
	assert.Equal(t, "NY", addr["provinceCode"])
	assert.Equal(t, "Ada", addr["firstName"])
}

func TestUpdateCreatesDefaultAddressWhenMissing(t *testing.T) {
	c := customerWithAddress()
	c["defaultAddress"] = nil
	f := &fakeAdmin{customer: c}

	_, err := newUpdater(t, f).Update(context.Background(), UpdateRequest{
		Customer: CustomerUpdate{ID: "gid://shopify/Customer/7", DefaultAddress: &Address{Address1: "1 Main", City: "Berlin", Zip: "10115", Country: "DE"}},
		Email:    "A@B.com",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"customer", "customerAddressCreate", "customer"}, f.ops)
	assert.Equal(t, true, f.lastVars["customerAddressCreate"]["setAsDefault"])
}

func TestUpdateScalarsOnly(t *testing.T) {
	f := &fakeAdmin{customer: customerWithAddress()}

	_, err := newUpdater(t, f).Update(context.Background(), UpdateRequest{
		Customer: CustomerUpdate{ID: "7", FirstName: strp(" Grace ")},
	}, "7")
	require.NoError(t, err)
	assert.Equal(t, []string{"customer", "customerUpdate", "customer"}, f.ops)
	input := f.lastVars["customerUpdate"]["input"].(map[string]any)
	assert.Equal(t, "Grace", input["firstName"])
	assert.NotContains(t, input, "email")
}

func TestUpdateValidationNeverCallsShopify(t *testing.T) {
	f := &fakeAdmin{customer: customerWithAddress()}

	_, err := newUpdater(t, f).Update(context.Background(), UpdateRequest{
		Customer: CustomerUpdate{ID: "7", DefaultAddress: &Address{Address1: "", City: "X", Zip: "1", Country: "US"}},
	}, "7")
	var val *apperr.Validation
	require.ErrorAs(t, err, &val)
	assert.Contains(t, val.Messages, msgStreetRequired)
	assert.Contains(t, val.Messages, msgProvinceUS)
	assert.Empty(t, f.ops)
}

func TestUpdateRequiresOwnership(t *testing.T) {
	f := &fakeAdmin{customer: customerWithAddress()}

	_, err := newUpdater(t, f).Update(context.Background(), UpdateRequest{
		Customer: CustomerUpdate{ID: "7", FirstName: strp("Eve")},
		Email:    "eve@evil.com",
	}, "8")
	var un *apperr.Unauthorized
	require.ErrorAs(t, err, &un)
	assert.Equal(t, []string{"customer"}, f.ops)
}

func TestUpdateMapsUserErrors(t *testing.T) {
	f := &fakeAdmin{
		customer:   customerWithAddress(),
		userErrors: []map[string]any{{"field": []string{"input", "phone"}, "message": "Phone has already been taken"}},
	}

	_, err := newUpdater(t, f).Update(context.Background(), UpdateRequest{
		Customer: CustomerUpdate{ID: "7", Phone: strp("5551234567")},
	}, "7")
	var val *apperr.Validation
	require.ErrorAs(t, err, &val)
	assert.Equal(t, []string{"That phone number is already used by another account."}, val.Messages)
}

func TestUpdateUnknownCustomer(t *testing.T) {
	f := &fakeAdmin{}

	_, err := newUpdater(t, f).Update(context.Background(), UpdateRequest{
		Customer: CustomerUpdate{ID: "7", FirstName: strp("Ada")},
	}, "7")
	var nf *apperr.NotFound
	require.ErrorAs(t, err, &nf)
}
