package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type webhookCreateReq struct {
	Webhook struct {
		Address string `json:"address"`
		Topic   string `json:"topic"`
		Format  string `json:"format"`
	} `json:"webhook"`
}

// AppWebhookTopics are the per-shop subscriptions made at install. GDPR topics are
// configured in the partner dashboard and cannot be subscribed through the API.
var AppWebhookTopics = []string{"app/uninstalled"}

// CreateWebhook registers an HTTPS webhook for topic on the shop.
func CreateWebhook(ctx context.Context, httpClient *http.Client, shopDomain, apiVersion, accessToken, topic, address string) error {
	endpoint := fmt.Sprintf("https://%s/admin/api/%s/webhooks.json", shopDomain, apiVersion)

	var payload webhookCreateReq
	payload.Webhook.Address = address
	payload.Webhook.Topic = topic
	payload.Webhook.Format = "json"

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", accessToken)

	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)

	// 422 "address for this topic has already been taken" means we are already subscribed.
	if res.StatusCode == http.StatusUnprocessableEntity && strings.Contains(string(raw), "already been taken") {
		return nil
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("create webhook failed: http %d: %s", res.StatusCode, truncate(string(raw), 300))
	}
	return nil
}

// SubscribeAppWebhooks subscribes a shop to AppWebhookTopics at appURL + "/webhooks/<topic>".
func SubscribeAppWebhooks(ctx context.Context, httpClient *http.Client, shopDomain, apiVersion, accessToken, appURL string) (created []string, failed []map[string]string) {
	for _, t := range AppWebhookTopics {
		address := strings.TrimRight(appURL, "/") + "/webhooks/" + t
		if err := CreateWebhook(ctx, httpClient, shopDomain, apiVersion, accessToken, t, address); err != nil {
			failed = append(failed, map[string]string{"topic": t, "error": err.Error()})
			continue
		}
		created = append(created, t)
	}
	return created, failed
}

// NormalizeTopic maps the spellings Shopify and the partner dashboard use
// (CUSTOMERS_DATA_REQUEST, customers-data_request, customers/data_request) to the slash form.
func NormalizeTopic(topic string) string {
	t := strings.ToLower(strings.TrimSpace(topic))
	switch {
	case t == "" || strings.Contains(t, "/"):
		return t
	case strings.Contains(t, "-"):
		return strings.Replace(t, "-", "/", 1)
	case strings.Contains(t, "_"):
		return strings.Replace(t, "_", "/", 1)
	}
	return t
}
