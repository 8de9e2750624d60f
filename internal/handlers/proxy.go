package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"voicero/internal/apperr"
	"voicero/internal/assistant"
	"voicero/internal/customers"
	"voicero/internal/orders"
	"voicero/internal/ratelimit"
	"voicero/internal/security"
	"voicero/internal/sessions"
	"voicero/internal/shopify"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// ClientSource hands out a GraphQL client for an installed shop.
type ClientSource interface {
	ClientFor(ctx context.Context, shopDomain, apiVersion string, opts ...shopify.Option) (*shopify.Client, error)
}

type ProxyDeps struct {
	APISecret        string
	RequireSignature bool
	APIVersion       string

	Clients   ClientSource
	Sessions  *sessions.Store
	Assistant *assistant.Assistant
	Limiter   ratelimit.Limiter
	Notifier  orders.ReturnNotifier
	Logger    *zap.Logger

	// ClientOptions are applied to every per-shop GraphQL client.
	ClientOptions []shopify.Option
}

// ProxyHandler serves the storefront app proxy: order actions, profile updates,
// widget sessions and chat.
type ProxyHandler struct {
	ProxyDeps
}

func NewProxyHandler(d ProxyDeps) *ProxyHandler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &ProxyHandler{ProxyDeps: d}
}

func (h *ProxyHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if method(req) == http.MethodOptions {
		return preflight()
	}

	q := query(req)
	signed := security.VerifyProxySignature(q, h.APISecret)
	if h.RequireSignature && !signed {
		return errResp(http.StatusUnauthorized, "invalid proxy signature")
	}

	shop := strings.ToLower(strings.TrimSpace(q.Get("shop")))
	if shop == "" {
		shop = strings.ToLower(strings.TrimSpace(header(req, "X-Shopify-Shop-Domain")))
	}
	if !shopify.ValidShopDomain(shop) {
		return errResp(http.StatusUnauthorized, "missing or invalid shop")
	}

	if h.Limiter != nil {
		key := shop + "|" + req.RequestContext.HTTP.SourceIP
		ok, err := h.Limiter.Allow(ctx, key)
		if err != nil {
			h.Logger.Warn("rate limiter unavailable", zap.String("shop", shop), zap.Error(err))
		} else if !ok {
			return errResp(http.StatusTooManyRequests, "Too many requests. Please wait a moment and try again.")
		}
	}

	p := proxyRequest{req: req, shop: shop}
	// Shopify vouches for logged_in_customer_id only inside a signed query.
	if signed {
		p.customerID = q.Get("logged_in_customer_id")
	}

	path := strings.TrimRight(req.RawPath, "/")
	switch {
	case path == "/apps/proxy":
		return h.post(ctx, p, h.orderAction)
	case path == "/apps/proxy/customer":
		return h.post(ctx, p, h.customerUpdate)
	case path == "/apps/proxy/chat":
		return h.post(ctx, p, h.chat)
	case path == "/apps/proxy/sessions":
		return h.post(ctx, p, h.createSession)
	case strings.HasPrefix(path, "/apps/proxy/sessions/"):
		return h.sessionRoute(ctx, p, strings.TrimPrefix(path, "/apps/proxy/sessions/"))
	default:
		return errResp(http.StatusNotFound, "not found")
	}
}

type proxyRequest struct {
	req        events.APIGatewayV2HTTPRequest
	shop       string
	customerID string
}

type routeFunc func(ctx context.Context, p proxyRequest) (events.APIGatewayV2HTTPResponse, error)

func (h *ProxyHandler) post(ctx context.Context, p proxyRequest, fn routeFunc) (events.APIGatewayV2HTTPResponse, error) {
	if method(p.req) != http.MethodPost {
		return errResp(http.StatusMethodNotAllowed, "method not allowed")
	}
	return fn(ctx, p)
}

func decode(req events.APIGatewayV2HTTPRequest, v any) error {
	b, err := body(req)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		b = []byte("{}")
	}
	return json.Unmarshal(b, v)
}

// fail logs unexpected errors before applying the status taxonomy.
func (h *ProxyHandler) fail(p proxyRequest, route string, err error) (events.APIGatewayV2HTTPResponse, error) {
	if apperr.Status(err) >= http.StatusInternalServerError {
		h.Logger.Error("proxy request failed",
			zap.String("route", route),
			zap.String("shop", p.shop),
			zap.Error(err),
		)
	}
	return errorResp(err)
}

func (h *ProxyHandler) orderAction(ctx context.Context, p proxyRequest) (events.APIGatewayV2HTTPResponse, error) {
	var r orders.Request
	if err := decode(p.req, &r); err != nil {
		return errResp(http.StatusBadRequest, "invalid JSON body")
	}

	client, err := h.Clients.ClientFor(ctx, p.shop, h.APIVersion, h.ClientOptions...)
	if err != nil {
		return h.fail(p, "order", err)
	}

	opts := []orders.ResolverOption{orders.WithLogger(h.Logger)}
	if h.Notifier != nil {
		opts = append(opts, orders.WithNotifier(h.Notifier))
	}
	resp, err := orders.NewResolver(client, opts...).Resolve(ctx, r)
	if err != nil {
		// Resolve already logged it; resp carries success:false and the message.
		return jsonResp(http.StatusInternalServerError, resp)
	}
	return jsonResp(http.StatusOK, resp)
}

func (h *ProxyHandler) customerUpdate(ctx context.Context, p proxyRequest) (events.APIGatewayV2HTTPResponse, error) {
	var r customers.UpdateRequest
	if err := decode(p.req, &r); err != nil {
		return errResp(http.StatusBadRequest, "invalid JSON body")
	}

	client, err := h.Clients.ClientFor(ctx, p.shop, h.APIVersion, h.ClientOptions...)
	if err != nil {
		return h.fail(p, "customer", err)
	}

	res, err := customers.NewUpdater(client, h.Logger).Update(ctx, r, p.customerID)
	if err != nil {
		return h.fail(p, "customer", err)
	}
	return jsonResp(http.StatusOK, res)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (h *ProxyHandler) chat(ctx context.Context, p proxyRequest) (events.APIGatewayV2HTTPResponse, error) {
	if h.Assistant == nil || h.Sessions == nil {
		return errResp(http.StatusServiceUnavailable, "assistant not configured")
	}
	var r chatRequest
	if err := decode(p.req, &r); err != nil {
		return errResp(http.StatusBadRequest, "invalid JSON body")
	}
	if strings.TrimSpace(r.SessionID) == "" {
		return errorResp(&apperr.Validation{Messages: []string{"session_id is required."}})
	}

	// Chat still works for shops without order access; order actions then fall back to contact.
	var resolver assistant.OrderResolver
	client, err := h.Clients.ClientFor(ctx, p.shop, h.APIVersion, h.ClientOptions...)
	var un *apperr.Unauthorized
	switch {
	case err == nil:
		opts := []orders.ResolverOption{orders.WithLogger(h.Logger)}
		if h.Notifier != nil {
			opts = append(opts, orders.WithNotifier(h.Notifier))
		}
		resolver = orders.NewResolver(client, opts...)
	case !errors.As(err, &un):
		return h.fail(p, "chat", err)
	}

	res, err := h.Assistant.Turn(ctx, p.shop, r.SessionID, r.Message, resolver)
	if err != nil {
		return h.fail(p, "chat", err)
	}
	return jsonResp(http.StatusOK, map[string]any{
		"success":        true,
		"answer":         res.Answer,
		"action":         res.Action,
		"action_context": res.ActionContext,
		"order_result":   res.OrderResult,
		"session":        res.Session,
	})
}

type createSessionRequest struct {
	SessionID string `json:"session_id"`
}

func (h *ProxyHandler) createSession(ctx context.Context, p proxyRequest) (events.APIGatewayV2HTTPResponse, error) {
	if h.Sessions == nil {
		return errResp(http.StatusServiceUnavailable, "sessions not configured")
	}
	var r createSessionRequest
	if err := decode(p.req, &r); err != nil {
		return errResp(http.StatusBadRequest, "invalid JSON body")
	}
	sess, err := h.Sessions.Create(ctx, p.shop, r.SessionID)
	if err != nil {
		return h.fail(p, "sessions", err)
	}
	return jsonResp(http.StatusOK, map[string]any{"success": true, "session": sess})
}

type messageRequest struct {
	Role    sessions.Role `json:"role"`
	Content string        `json:"content"`
	Action  string        `json:"action,omitempty"`
}

type windowRequest struct {
	WindowState  sessions.WindowState `json:"window_state"`
	WelcomeShown *bool                `json:"welcome_shown,omitempty"`
	Version      int                  `json:"version,omitempty"`
}

// sessionRoute serves /apps/proxy/sessions/{id}[/messages|/window|/clear].
func (h *ProxyHandler) sessionRoute(ctx context.Context, p proxyRequest, rest string) (events.APIGatewayV2HTTPResponse, error) {
	if h.Sessions == nil {
		return errResp(http.StatusServiceUnavailable, "sessions not configured")
	}
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		return errResp(http.StatusNotFound, "not found")
	}
	m := method(p.req)

	var (
		sess *sessions.Session
		err  error
	)
	switch {
	case sub == "" && m == http.MethodGet:
		sess, err = h.Sessions.Get(ctx, p.shop, id)

	case sub == "messages" && m == http.MethodPost:
		var r messageRequest
		if err := decode(p.req, &r); err != nil {
			return errResp(http.StatusBadRequest, "invalid JSON body")
		}
		if r.Role == "" {
			r.Role = sessions.RoleUser
		}
		if r.Role != sessions.RoleUser && r.Role != sessions.RoleAssistant {
			return errorResp(&apperr.Validation{Messages: []string{"role must be user or assistant."}})
		}
		if strings.TrimSpace(r.Content) == "" {
			return errorResp(&apperr.Validation{Messages: []string{"Message is required."}})
		}
		sess, err = h.Sessions.AppendMessage(ctx, p.shop, id, r.Role, r.Content, r.Action)

	case sub == "window" && (m == http.MethodPost || m == http.MethodPut):
		var r windowRequest
		if err := decode(p.req, &r); err != nil {
			return errResp(http.StatusBadRequest, "invalid JSON body")
		}
		sess, err = h.Sessions.UpdateWindowState(ctx, p.shop, id, r.WindowState, r.WelcomeShown, r.Version)

	case sub == "clear" && m == http.MethodPost:
		sess, err = h.Sessions.Clear(ctx, p.shop, id)

	case sub == "" || sub == "messages" || sub == "window" || sub == "clear":
		return errResp(http.StatusMethodNotAllowed, "method not allowed")
	default:
		return errResp(http.StatusNotFound, "not found")
	}

	if err != nil {
		return h.fail(p, "sessions", err)
	}
	return jsonResp(http.StatusOK, map[string]any{"success": true, "session": sess})
}
