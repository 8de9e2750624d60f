package orders

import (
	"strings"

	"voicero/internal/shopify"

	"github.com/shopspring/decimal"
)

func money(amount string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func unitPrice(li shopify.LineItem) decimal.Decimal {
	if amt := li.OriginalUnitPriceSet.ShopMoney.Amount; amt != "" {
		return money(amt)
	}
	if li.Variant != nil {
		return money(li.Variant.Price)
	}
	return decimal.Zero
}

// Summarize shapes an order for the widget: prices as fixed two-decimal strings.
func Summarize(o *shopify.Order) *OrderSummary {
	s := &OrderSummary{
		ID:                o.ID,
		Name:              o.Name,
		Email:             o.Email,
		CreatedAt:         o.CreatedAt,
		FulfillmentStatus: o.DisplayFulfillmentStatus,
		FinancialStatus:   o.DisplayFinancialStatus,
		Total:             money(o.TotalPriceSet.ShopMoney.Amount).StringFixed(2),
		Currency:          o.TotalPriceSet.ShopMoney.CurrencyCode,
		CanCancel:         cancelBlock(o) == cancelOK,
		CanReturn:         returnable(o),
	}
	if o.CancelledAt != nil {
		s.CancelledAt = *o.CancelledAt
	}

	for _, li := range o.Items() {
		price := unitPrice(li)
		s.LineItems = append(s.LineItems, LineItemSummary{
			ID:                 li.ID,
			Name:               li.Name,
			Quantity:           li.Quantity,
			RefundableQuantity: li.RefundableQuantity,
			Price:              price.StringFixed(2),
			Total:              price.Mul(decimal.NewFromInt(int64(li.Quantity))).StringFixed(2),
		})
	}
	return s
}

type cancelState int

const (
	cancelOK cancelState = iota
	cancelAlreadyCancelled
	cancelFulfilled
	cancelBlocked
)

var cancellableFulfillment = map[string]bool{
	"UNFULFILLED":         true,
	"PENDING_FULFILLMENT": true,
	"OPEN":                true,
}

var blockedFinancial = map[string]bool{
	"REFUNDED": true,
	"VOIDED":   true,
}

func cancelBlock(o *shopify.Order) cancelState {
	status := strings.ToUpper(o.DisplayFulfillmentStatus)
	// FULFILLED is checked first: those cancels always answer suggest_return.
	switch {
	case status == "FULFILLED":
		return cancelFulfilled
	case o.CancelledAt != nil && *o.CancelledAt != "":
		return cancelAlreadyCancelled
	case !cancellableFulfillment[status]:
		return cancelBlocked
	case blockedFinancial[strings.ToUpper(o.DisplayFinancialStatus)]:
		return cancelBlocked
	}
	return cancelOK
}

func returnable(o *shopify.Order) bool {
	if o.CancelledAt != nil && *o.CancelledAt != "" {
		return false
	}
	switch strings.ToUpper(o.DisplayFulfillmentStatus) {
	case "FULFILLED", "PARTIALLY_FULFILLED":
		return true
	}
	return false
}
