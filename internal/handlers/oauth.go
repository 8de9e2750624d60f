package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"voicero/internal/shopify"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// OAuthApp is the slice of goshopify.App the install flow needs.
type OAuthApp interface {
	AuthorizeUrl(shopName, state string) (string, error)
	VerifyAuthorizationURL(u *url.URL) (bool, error)
	GetAccessToken(shopName, code string) (string, error)
}

type StateIssuer interface {
	Issue(ctx context.Context, shop string) (string, error)
	Consume(ctx context.Context, state, shop string) error
}

type IntegrationSaver interface {
	Save(ctx context.Context, shopDomain, accessToken, scope string) error
}

// WebhookSubscriber registers the app's webhooks for a freshly installed shop.
type WebhookSubscriber func(ctx context.Context, shopDomain, accessToken string) (created []string, failed []map[string]string)

type OAuthDeps struct {
	App          OAuthApp
	States       StateIssuer
	Integrations IntegrationSaver
	Subscribe    WebhookSubscriber
	APIKey       string
	Scopes       string
	Logger       *zap.Logger
}

type OAuthHandler struct {
	OAuthDeps
}

func NewOAuthHandler(d OAuthDeps) *OAuthHandler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &OAuthHandler{OAuthDeps: d}
}

func (h *OAuthHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	switch strings.TrimRight(req.RawPath, "/") {
	case "/auth":
		return h.install(ctx, req)
	case "/auth/callback":
		return h.callback(ctx, req)
	case "/health":
		return jsonResp(http.StatusOK, map[string]any{"ok": true, "service": "voicero"})
	default:
		return errResp(http.StatusNotFound, "not found")
	}
}

func (h *OAuthHandler) install(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	shop := strings.ToLower(strings.TrimSpace(query(req).Get("shop")))
	if !shopify.ValidShopDomain(shop) {
		return errResp(http.StatusBadRequest, "invalid shop (expected like your-store.myshopify.com)")
	}

	state, err := h.States.Issue(ctx, shop)
	if err != nil {
		h.Logger.Error("failed to store oauth state", zap.String("shop", shop), zap.Error(err))
		return errResp(http.StatusInternalServerError, "failed to store oauth state")
	}

	authorize, err := h.App.AuthorizeUrl(shop, state)
	if err != nil {
		h.Logger.Error("failed to build authorize url", zap.String("shop", shop), zap.Error(err))
		return errResp(http.StatusInternalServerError, "failed to build authorize url")
	}
	return redirect(authorize)
}

func (h *OAuthHandler) callback(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	q := query(req)
	shop := strings.ToLower(strings.TrimSpace(q.Get("shop")))
	code := strings.TrimSpace(q.Get("code"))
	state := strings.TrimSpace(q.Get("state"))
	if !shopify.ValidShopDomain(shop) || code == "" || state == "" || q.Get("hmac") == "" {
		return errResp(http.StatusBadRequest, "missing required oauth params")
	}

	u := &url.URL{
		Scheme:   "https",
		Host:     req.RequestContext.DomainName,
		Path:     req.RawPath,
		RawQuery: req.RawQueryString,
	}
	if u.RawQuery == "" {
		u.RawQuery = q.Encode()
	}
	if ok, err := h.App.VerifyAuthorizationURL(u); err != nil || !ok {
		return errResp(http.StatusUnauthorized, "invalid hmac")
	}

	if err := h.States.Consume(ctx, state, shop); err != nil {
		return errResp(http.StatusUnauthorized, "invalid or expired state")
	}

	log := h.Logger.With(zap.String("shop", shop))

	token, err := h.App.GetAccessToken(shop, code)
	if err != nil || token == "" {
		log.Error("token exchange failed", zap.Error(err))
		return errResp(http.StatusBadGateway, "token exchange failed")
	}

	if err := h.Integrations.Save(ctx, shop, token, h.Scopes); err != nil {
		log.Error("failed to store integration", zap.Error(err))
		return errResp(http.StatusInternalServerError, "failed to store integration")
	}

	if h.Subscribe != nil {
		created, failed := h.Subscribe(ctx, shop, token)
		if len(failed) > 0 {
			log.Warn("some webhook subscriptions failed", zap.Strings("created", created), zap.Any("failed", failed))
		} else {
			log.Info("webhooks subscribed", zap.Strings("created", created))
		}
	}

	log.Info("shop installed")
	return redirect(fmt.Sprintf("https://%s/admin/apps/%s", shop, url.PathEscape(h.APIKey)))
}
