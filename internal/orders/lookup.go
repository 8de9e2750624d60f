package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voicero/internal/apperr"
	"voicero/internal/shopify"
)

// ErrNotVerified is returned when no order matches the number and email pair.
var ErrNotVerified = errors.New("order not found or email does not match")

const notVerifiedMessage = "We couldn't find an order with that number and email address. Please double-check both and try again."

// normalizeOrderNumber turns "#1001", " 1001 " and "1001" into "1001".
func normalizeOrderNumber(ref string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ref), "#"))
}

// Lookup resolves an order by (number, email) and verifies the email owns it.
// No order is returned unless the gate passes.
func Lookup(ctx context.Context, c *shopify.Client, ref, email string) (*shopify.Order, error) {
	ref = strings.TrimSpace(ref)
	email = strings.TrimSpace(email)
	if ref == "" {
		return nil, &apperr.Validation{Messages: []string{"Please provide your order number."}}
	}
	if email == "" {
		return nil, &apperr.Validation{Messages: []string{"Please provide the email address used for the order."}}
	}

	var order *shopify.Order
	if shopify.IsGID(ref, "Order") {
		data, err := shopify.Query[shopify.OrderData](ctx, c, shopify.OrderByIDQuery, map[string]any{"id": ref})
		if err != nil {
			return nil, fmt.Errorf("order by id: %w", err)
		}
		order = data.Order
	} else {
		num := normalizeOrderNumber(ref)
		q := fmt.Sprintf(`name:#%s AND customer_email:"%s"`, num, strings.ReplaceAll(email, `"`, ""))
		data, err := shopify.Query[shopify.OrdersSearchData](ctx, c, shopify.OrdersSearchQuery, map[string]any{"q": q})
		if err != nil {
			return nil, fmt.Errorf("order search: %w", err)
		}
		for _, e := range data.Orders.Edges {
			// search is fuzzy on name; require an exact match
			if normalizeOrderNumber(e.Node.Name) == num {
				o := e.Node
				order = &o
				break
			}
		}
	}

	if order == nil || !OwnsOrder(order, email) {
		return nil, ErrNotVerified
	}
	return order, nil
}

// OwnsOrder compares email case-insensitively with the order's and its customer's email.
func OwnsOrder(o *shopify.Order, email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || o == nil {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(o.Email), email) {
		return true
	}
	return o.Customer != nil && strings.EqualFold(strings.TrimSpace(o.Customer.Email), email)
}
