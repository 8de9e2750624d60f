package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"voicero/internal/apperr"
	"voicero/internal/shopify"

	"go.uber.org/zap"
)

// Resolver executes order actions for one shop.
type Resolver struct {
	client   *shopify.Client
	notifier ReturnNotifier
	logger   *zap.Logger
	now      func() time.Time
}

type ResolverOption func(*Resolver)

func WithNotifier(n ReturnNotifier) ResolverOption {
	return func(r *Resolver) { r.notifier = n }
}

func WithLogger(l *zap.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

func NewResolver(client *shopify.Client, opts ...ResolverOption) *Resolver {
	r := &Resolver{client: client, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type handlerFunc func(r *Resolver, ctx context.Context, req Request) (Response, error)

var handlers = map[Action]handlerFunc{
	ActionVerifyOrder:  (*Resolver).verifyOrder,
	ActionOrderDetails: (*Resolver).orderDetails,
	ActionCancel:       (*Resolver).cancel,
	ActionReturn:       (*Resolver).returnOrder,
	ActionReturnOrder:  (*Resolver).returnOrder,
	ActionExchange:     (*Resolver).exchange,
	ActionRefund:       (*Resolver).refund,
}

// Known reports whether a is an order action this package resolves.
func Known(a Action) bool {
	_, ok := handlers[a]
	return ok
}

// Resolve runs req.Action. Business outcomes (not found, not eligible, bad input) come back as
// Success=false with a nil error; the error is reserved for upstream failures.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Response, error) {
	h, ok := handlers[req.Action]
	if !ok {
		return failure(fmt.Sprintf("Unknown action: %s", req.Action)), nil
	}

	resp, err := h(r, ctx, req)
	if err == nil {
		return resp, nil
	}

	var val *apperr.Validation
	switch {
	case errors.Is(err, ErrNotVerified):
		return failure(notVerifiedMessage), nil
	case errors.As(err, &val):
		return failure(strings.Join(val.Messages, " ")), nil
	}

	r.logger.Error("order action failed",
		zap.String("action", string(req.Action)),
		zap.String("order", req.OrderRef()),
		zap.Error(err),
	)
	return failure(err.Error()), err
}

func (r *Resolver) verifyOrder(ctx context.Context, req Request) (Response, error) {
	order, err := Lookup(ctx, r.client, req.OrderRef(), req.Email)
	if errors.Is(err, ErrNotVerified) {
		verified := false
		return Response{Success: false, Verified: &verified, Error: notVerifiedMessage}, nil
	}
	if err != nil {
		return Response{}, err
	}

	verified := true
	return Response{
		Success:  true,
		Verified: &verified,
		Message:  fmt.Sprintf("Order %s verified.", order.Name),
		Order:    Summarize(order),
	}, nil
}

func (r *Resolver) orderDetails(ctx context.Context, req Request) (Response, error) {
	order, err := Lookup(ctx, r.client, req.OrderRef(), req.Email)
	if err != nil {
		return Response{}, err
	}

	resp := Response{
		Success: true,
		Message: fmt.Sprintf("Here are the details for order %s.", order.Name),
		Order:   Summarize(order),
	}
	// A reason riding along lets the caller go straight to the return.
	if req.Reason != "" {
		resp.ShouldProcessReturn = true
		resp.ReturnReason = NormalizeReturnReason(req.Reason)
	}
	return resp, nil
}

func (r *Resolver) cancel(ctx context.Context, req Request) (Response, error) {
	order, err := Lookup(ctx, r.client, req.OrderRef(), req.Email)
	if err != nil {
		return Response{}, err
	}

	switch cancelBlock(order) {
	case cancelAlreadyCancelled:
		return Response{
			Success:          false,
			AlreadyCancelled: true,
			Error:            fmt.Sprintf("Order %s has already been cancelled.", order.Name),
		}, nil
	case cancelFulfilled:
		return Response{
			Success:       false,
			SuggestReturn: true,
			Error:         fmt.Sprintf("Order %s has already been fulfilled, so it can't be cancelled. Would you like to start a return instead?", order.Name),
		}, nil
	case cancelBlocked:
		return Response{
			Success:        false,
			SuggestContact: true,
			Error:          fmt.Sprintf("Order %s can't be cancelled automatically in its current state. Please contact the store for help.", order.Name),
		}, nil
	}

	data, err := shopify.Mutate[shopify.OrderCancelData](ctx, r.client, shopify.OrderCancelMutation, map[string]any{
		"orderId":        order.ID,
		"reason":         "CUSTOMER",
		"refund":         true,
		"restock":        true,
		"notifyCustomer": true,
		"staffNote":      "Cancelled by customer via storefront assistant",
	})
	if err != nil {
		return Response{}, fmt.Errorf("orderCancel: %w", err)
	}
	if ue := data.OrderCancel.OrderCancelUserErrors; len(ue) > 0 {
		msgs := make([]string, 0, len(ue))
		for _, e := range ue {
			msgs = append(msgs, e.Message)
		}
		return Response{
			Success:        false,
			SuggestContact: true,
			Error:          fmt.Sprintf("We couldn't cancel order %s: %s", order.Name, strings.Join(msgs, "; ")),
		}, nil
	}

	r.logger.Info("order cancelled",
		zap.String("shop", r.client.ShopDomain()),
		zap.String("order", order.Name),
	)

	resp := Response{
		Success: true,
		Message: fmt.Sprintf("Order %s has been cancelled successfully. A refund will be issued to the original payment method and a confirmation email is on its way.", order.Name),
	}
	if data.OrderCancel.Job != nil {
		resp.JobID = data.OrderCancel.Job.ID
	}
	return resp, nil
}

func (r *Resolver) returnOrder(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return Response{
			Success:       false,
			NeedReason:    true,
			ReasonOptions: ReasonOptions,
			Message:       "Please tell us why you'd like to return this order.",
		}, nil
	}
	reason := NormalizeReturnReason(req.Reason)

	order, err := Lookup(ctx, r.client, req.OrderRef(), req.Email)
	if err != nil {
		return Response{}, err
	}
	if order.CancelledAt != nil && *order.CancelledAt != "" {
		return Response{
			Success:          false,
			AlreadyCancelled: true,
			Error:            fmt.Sprintf("Order %s was cancelled, so there is nothing to return.", order.Name),
		}, nil
	}
	if !returnable(order) {
		return Response{
			Success:       false,
			SuggestCancel: true,
			Error:         fmt.Sprintf("Order %s hasn't shipped yet, so it can't be returned. Would you like to cancel it instead?", order.Name),
		}, nil
	}

	items, err := r.returnItems(ctx, order.ID, req.Items)
	if err != nil {
		return Response{}, err
	}
	if len(items) == 0 {
		return failure(fmt.Sprintf("None of the items on order %s are eligible for return.", order.Name)), nil
	}

	rr := ReturnRequest{
		Shop:        r.client.ShopDomain(),
		OrderID:     order.ID,
		OrderName:   order.Name,
		Email:       req.Email,
		Reason:      reason,
		Notes:       req.Notes,
		Items:       items,
		Status:      "pending_review",
		RequestedAt: r.now().UTC(),
	}
	if r.notifier != nil {
		if err := r.notifier.NotifyReturn(ctx, rr); err != nil {
			// The request is still acknowledged; staff can find it in the logs.
			r.logger.Error("return notification failed", zap.String("order", order.Name), zap.Error(err))
		}
	}
	r.logger.Info("return requested",
		zap.String("shop", rr.Shop),
		zap.String("order", order.Name),
		zap.String("reason", string(reason)),
		zap.Int("items", len(items)),
	)

	return Response{
		Success:      true,
		Status:       "pending_review",
		ReturnReason: reason,
		ReturnItems:  items,
		Message: fmt.Sprintf("Your return request for order %s (%s) has been submitted and is pending review. We'll email %s with next steps.",
			order.Name, strings.ToLower(reason.Label()), req.Email),
	}, nil
}

// returnItems reads fulfilled line items and keeps those still refundable.
// filter matches line item ids (GID or numeric) or names, case-insensitively.
func (r *Resolver) returnItems(ctx context.Context, orderID string, filter []string) ([]ReturnItem, error) {
	data, err := shopify.Query[shopify.OrderFulfillmentsData](ctx, r.client, shopify.OrderFulfillmentsQuery, map[string]any{"id": orderID})
	if err != nil {
		return nil, fmt.Errorf("order fulfillments: %w", err)
	}
	if data.Order == nil {
		return nil, &apperr.NotFound{Resource: "order", ID: orderID}
	}

	want := map[string]bool{}
	for _, f := range filter {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			want[f] = true
		}
	}
	match := func(id, name string) bool {
		if len(want) == 0 {
			return true
		}
		return want[strings.ToLower(id)] || want[strings.ToLower(shopify.NumericID(id))] || want[strings.ToLower(name)]
	}

	byLine := map[string]int{}
	var out []ReturnItem
	for _, f := range data.Order.Fulfillments {
		for _, e := range f.FulfillmentLineItems.Edges {
			li := e.Node.LineItem
			if !match(li.ID, li.Name) {
				continue
			}
			qty := e.Node.Quantity
			if room := li.RefundableQuantity - byLine[li.ID]; qty > room {
				qty = room
			}
			if qty <= 0 {
				continue
			}
			byLine[li.ID] += qty
			out = append(out, ReturnItem{LineItemID: li.ID, Name: li.Name, Quantity: qty})
		}
	}
	return out, nil
}

func (r *Resolver) exchange(ctx context.Context, req Request) (Response, error) {
	order, err := Lookup(ctx, r.client, req.OrderRef(), req.Email)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Success: true,
		Status:  "pending_approval",
		Message: fmt.Sprintf("Your exchange request for order %s has been received and is pending approval. Our team will contact you at %s.", order.Name, req.Email),
	}, nil
}

func (r *Resolver) refund(_ context.Context, _ Request) (Response, error) {
	return failure("Refunds can't be requested directly. Cancelling an unshipped order refunds it automatically, and approved returns are refunded once processed."), nil
}
