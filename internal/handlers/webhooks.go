package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"voicero/internal/security"
	"voicero/internal/shopify"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

type IntegrationRemover interface {
	Delete(ctx context.Context, shopDomain string) error
	RecordWebhook(ctx context.Context, shopDomain, topic, webhookID string, at time.Time) error
}

type WebhookClaimer interface {
	Claim(ctx context.Context, webhookID, shopDomain, topic string) (bool, error)
}

type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type WebhookDeps struct {
	APISecret    string
	Integrations IntegrationRemover
	Deduper      WebhookClaimer
	Archive      ObjectPutter
	Bucket       string
	Logger       *zap.Logger
}

// WebhookHandler acknowledges Shopify's compliance and lifecycle webhooks.
type WebhookHandler struct {
	WebhookDeps
	now func() time.Time
}

func NewWebhookHandler(d WebhookDeps) *WebhookHandler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &WebhookHandler{WebhookDeps: d, now: time.Now}
}

const (
	topicCustomersDataRequest = "customers/data_request"
	topicCustomersRedact      = "customers/redact"
	topicShopRedact           = "shop/redact"
	topicAppUninstalled       = "app/uninstalled"
)

func (h *WebhookHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	switch strings.TrimRight(req.RawPath, "/") {
	case "/webhooks/gdpr":
		return h.receive(ctx, req, "")
	case "/webhooks/app/uninstalled":
		return h.receive(ctx, req, topicAppUninstalled)
	default:
		return errResp(http.StatusNotFound, "not found")
	}
}

// receive authenticates the delivery, then always acknowledges it. Shopify retries
// anything that is not a 2xx, so processing failures are logged rather than surfaced.
func (h *WebhookHandler) receive(ctx context.Context, req events.APIGatewayV2HTTPRequest, fixedTopic string) (events.APIGatewayV2HTTPResponse, error) {
	if method(req) != http.MethodPost {
		return errResp(http.StatusMethodNotAllowed, "method not allowed")
	}
	raw, err := body(req)
	if err != nil || len(raw) == 0 {
		return errResp(http.StatusUnauthorized, "unauthorized")
	}
	if !security.VerifyWebhook(raw, h.APISecret, header(req, "X-Shopify-Hmac-Sha256")) {
		return errResp(http.StatusUnauthorized, "unauthorized")
	}

	topic := fixedTopic
	if topic == "" {
		topic = shopify.NormalizeTopic(header(req, "X-Shopify-Topic"))
	}
	shop := strings.ToLower(strings.TrimSpace(header(req, "X-Shopify-Shop-Domain")))
	webhookID := strings.TrimSpace(header(req, "X-Shopify-Webhook-Id"))

	log := h.Logger.With(
		zap.String("topic", topic),
		zap.String("shop", shop),
		zap.String("webhook_id", webhookID),
	)

	if h.Deduper != nil {
		dup, err := h.Deduper.Claim(ctx, webhookID, shop, topic)
		if err != nil {
			log.Warn("webhook dedupe failed", zap.Error(err))
		} else if dup {
			log.Info("duplicate webhook skipped")
			return jsonResp(http.StatusOK, map[string]any{"success": true, "duplicate": true})
		}
	}

	switch topic {
	case topicCustomersDataRequest:
		h.archive(ctx, log, shop, topic, webhookID, raw)
		h.record(ctx, log, shop, topic, webhookID)
	case topicCustomersRedact:
		// the payload is the customer data being erased; keep only the delivery record
		h.record(ctx, log, shop, topic, webhookID)
	case topicShopRedact:
		h.archive(ctx, log, shop, topic, webhookID, raw)
		h.removeShop(ctx, log, shop)
	case topicAppUninstalled:
		h.removeShop(ctx, log, shop)
	default:
		log.Info("unhandled webhook topic")
	}

	return jsonResp(http.StatusOK, map[string]any{"success": true})
}

func (h *WebhookHandler) archive(ctx context.Context, log *zap.Logger, shop, topic, webhookID string, raw []byte) {
	if h.Archive == nil || h.Bucket == "" {
		return
	}
	key := archiveKey(shop, topic, webhookID, h.now())
	_, err := h.Archive.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		log.Error("gdpr archive failed", zap.String("key", key), zap.Error(err))
		return
	}
	log.Info("gdpr payload archived", zap.String("key", key))
}

func archiveKey(shop, topic, webhookID string, now time.Time) string {
	if shop == "" {
		shop = "unknown"
	}
	if webhookID == "" {
		webhookID = fmt.Sprintf("%d", now.UnixNano())
	}
	return fmt.Sprintf("gdpr/%s/%s/%s.json", shop, topic, webhookID)
}

func (h *WebhookHandler) record(ctx context.Context, log *zap.Logger, shop, topic, webhookID string) {
	if h.Integrations == nil || shop == "" {
		return
	}
	if err := h.Integrations.RecordWebhook(ctx, shop, topic, webhookID, h.now()); err != nil {
		log.Warn("failed to record webhook on integration", zap.Error(err))
	}
}

func (h *WebhookHandler) removeShop(ctx context.Context, log *zap.Logger, shop string) {
	if h.Integrations == nil || shop == "" {
		return
	}
	if err := h.Integrations.Delete(ctx, shop); err != nil {
		log.Error("failed to delete integration", zap.Error(err))
		return
	}
	log.Info("integration removed")
}
