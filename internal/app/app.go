// Package app wires configuration into the Lambda and dev-server handlers.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"voicero/internal/assistant"
	"voicero/internal/config"
	"voicero/internal/db"
	"voicero/internal/handlers"
	"voicero/internal/orders"
	"voicero/internal/ratelimit"
	"voicero/internal/security"
	"voicero/internal/sessions"
	"voicero/internal/shopify"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	goshopify "github.com/bold-commerce/go-shopify/v3"
	"go.uber.org/zap"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger

	Integrations *shopify.IntegrationStore
	Sessions     *sessions.Store
	Notifier     orders.ReturnNotifier
	HTTPClient   *http.Client

	Proxy    *handlers.ProxyHandler
	Webhooks *handlers.WebhookHandler
	OAuth    *handlers.OAuthHandler
}

// New loads AWS credentials from the default chain, resolves secrets and builds every handler.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if err := cfg.ResolveSecrets(ctx, ssm.NewFromConfig(awsCfg)); err != nil {
		return nil, err
	}
	return NewWithAWS(cfg, awsCfg, logger)
}

func NewWithAWS(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sealer, err := security.NewSealerFromBase64(cfg.TokenEncKeyB64)
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_ENC_KEY_B64: %w", err)
	}

	ddb := db.NewDynamoClientFromConfig(awsCfg)
	hc := &http.Client{Timeout: 20 * time.Second}

	a := &App{
		Config:       cfg,
		Logger:       logger,
		Integrations: shopify.NewIntegrationStore(ddb, cfg.Tables.Integrations, sealer),
		Sessions:     sessions.NewStore(ddb, cfg.Tables.Sessions),
		HTTPClient:   hc,
	}

	if cfg.ReturnsTopicArn != "" {
		a.Notifier = orders.NewSNSNotifier(sns.NewFromConfig(awsCfg), cfg.ReturnsTopicArn)
	}

	var assist *assistant.Assistant
	if cfg.BedrockModelID != "" {
		llm := assistant.NewBedrock(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
		assist = assistant.New(llm, a.Sessions, logger)
	}

	a.Proxy = handlers.NewProxyHandler(handlers.ProxyDeps{
		APISecret:        cfg.Shopify.APISecret,
		RequireSignature: cfg.Shopify.ProxySignatureRequired,
		APIVersion:       cfg.Shopify.APIVersion,
		Clients:          a.Integrations,
		Sessions:         a.Sessions,
		Assistant:        assist,
		Limiter:          newLimiter(cfg, logger),
		Notifier:         a.Notifier,
		Logger:           logger,
		ClientOptions:    a.ClientOptions(),
	})

	a.Webhooks = handlers.NewWebhookHandler(handlers.WebhookDeps{
		APISecret:    cfg.Shopify.APISecret,
		Integrations: a.Integrations,
		Deduper:      shopify.NewWebhookDeduper(ddb, cfg.Tables.WebhookDedupe),
		Archive:      s3.NewFromConfig(awsCfg),
		Bucket:       cfg.GDPRArchiveBucket,
		Logger:       logger,
	})

	a.OAuth = handlers.NewOAuthHandler(handlers.OAuthDeps{
		App: goshopify.App{
			ApiKey:      cfg.Shopify.APIKey,
			ApiSecret:   cfg.Shopify.APISecret,
			RedirectUrl: cfg.Shopify.AppURL + "/auth/callback",
			Scope:       cfg.Shopify.Scopes,
		},
		States:       shopify.NewStateStore(ddb, cfg.Tables.OAuthState),
		Integrations: a.Integrations,
		Subscribe:    a.SubscribeWebhooks,
		APIKey:       cfg.Shopify.APIKey,
		Scopes:       cfg.Shopify.Scopes,
		Logger:       logger,
	})

	return a, nil
}

// ClientOptions are the GraphQL client settings shared by every shop.
func (a *App) ClientOptions() []shopify.Option {
	return []shopify.Option{
		shopify.WithHTTPClient(a.HTTPClient),
		shopify.WithMaxRetries(a.Config.Shopify.MaxRetries),
		shopify.WithLogger(a.Logger),
	}
}

func (a *App) SubscribeWebhooks(ctx context.Context, shopDomain, accessToken string) ([]string, []map[string]string) {
	return shopify.SubscribeAppWebhooks(ctx, a.HTTPClient, shopDomain, a.Config.Shopify.APIVersion, accessToken, a.Config.Shopify.AppURL)
}

// Route sends a request to the handler owning its path.
func (a *App) Route(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	switch {
	case strings.HasPrefix(req.RawPath, "/apps/proxy"):
		return a.Proxy.Handle(ctx, req)
	case strings.HasPrefix(req.RawPath, "/webhooks/"):
		return a.Webhooks.Handle(ctx, req)
	default:
		return a.OAuth.Handle(ctx, req)
	}
}

func newLimiter(cfg *config.Config, logger *zap.Logger) ratelimit.Limiter {
	policy := ratelimit.Policy{RPS: float64(cfg.RateLimitRPS), Burst: cfg.RateLimitBurst}
	if cfg.Redis.Addr == "" {
		return ratelimit.NewMemory(policy)
	}
	return ratelimit.FailOpen{
		Limiter: ratelimit.NewRedisFromAddr(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, policy),
		OnError: func(err error) {
			logger.Warn("redis rate limiter unavailable, allowing request", zap.Error(err))
		},
	}
}
