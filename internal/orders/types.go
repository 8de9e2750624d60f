package orders

import (
	"encoding/json"
	"strconv"
	"strings"
)

type Action string

const (
	ActionVerifyOrder  Action = "verify_order"
	ActionOrderDetails Action = "order_details"
	ActionCancel       Action = "cancel"
	ActionReturn       Action = "return"
	ActionReturnOrder  Action = "return_order"
	ActionExchange     Action = "exchange"
	ActionRefund       Action = "refund"
)

// Request is the body the widget posts to the app proxy.
// Reason is canonical; returnReason and return_reason are accepted on input only.
type Request struct {
	Action      Action   `json:"action"`
	OrderID     string   `json:"order_id,omitempty"`
	OrderNumber string   `json:"order_number,omitempty"`
	Email       string   `json:"email"`
	Reason      string   `json:"reason,omitempty"`
	Items       []string `json:"items,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

func (r *Request) UnmarshalJSON(b []byte) error {
	type plain Request
	var aux struct {
		plain
		OrderID           json.RawMessage `json:"order_id"`
		OrderNumber       json.RawMessage `json:"order_number"`
		OrderIDCamel      json.RawMessage `json:"orderId"`
		OrderNumberCamel  json.RawMessage `json:"orderNumber"`
		ReturnReason      string          `json:"returnReason"`
		ReturnReasonSnake string          `json:"return_reason"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	*r = Request(aux.plain)
	r.OrderID = firstNonEmpty(scalarString(aux.OrderID), scalarString(aux.OrderIDCamel))
	r.OrderNumber = firstNonEmpty(scalarString(aux.OrderNumber), scalarString(aux.OrderNumberCamel))
	r.Reason = strings.TrimSpace(firstNonEmpty(r.Reason, aux.ReturnReason, aux.ReturnReasonSnake))
	r.Email = strings.TrimSpace(r.Email)
	r.Action = Action(strings.ToLower(strings.TrimSpace(string(r.Action))))
	return nil
}

// OrderRef is whichever order identifier the caller supplied.
func (r Request) OrderRef() string {
	return firstNonEmpty(r.OrderNumber, r.OrderID)
}

// scalarString accepts a JSON string or number (the widget sends both).
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Response is the envelope returned for every action.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	Verified *bool         `json:"verified,omitempty"`
	Order    *OrderSummary `json:"order,omitempty"`

	SuggestReturn    bool `json:"suggest_return,omitempty"`
	SuggestCancel    bool `json:"suggest_cancel,omitempty"`
	SuggestContact   bool `json:"suggest_contact,omitempty"`
	AlreadyCancelled bool `json:"already_cancelled,omitempty"`

	NeedReason          bool           `json:"need_reason,omitempty"`
	ReasonOptions       []ReasonOption `json:"reason_options,omitempty"`
	ShouldProcessReturn bool           `json:"should_process_return,omitempty"`
	ReturnReason        ReturnReason   `json:"returnReason,omitempty"`

	Status      string       `json:"status,omitempty"`
	ReturnItems []ReturnItem `json:"return_items,omitempty"`
	JobID       string       `json:"job_id,omitempty"`
}

func failure(msg string) Response {
	return Response{Success: false, Error: msg}
}

type LineItemSummary struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Quantity           int    `json:"quantity"`
	RefundableQuantity int    `json:"refundable_quantity"`
	Price              string `json:"price"`
	Total              string `json:"total"`
}

type OrderSummary struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Email             string            `json:"email"`
	CreatedAt         string            `json:"created_at"`
	FulfillmentStatus string            `json:"fulfillment_status"`
	FinancialStatus   string            `json:"financial_status"`
	CancelledAt       string            `json:"cancelled_at,omitempty"`
	Total             string            `json:"total"`
	Currency          string            `json:"currency"`
	LineItems         []LineItemSummary `json:"line_items"`
	CanCancel         bool              `json:"can_cancel"`
	CanReturn         bool              `json:"can_return"`
}

type ReturnItem struct {
	LineItemID string `json:"line_item_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
}
