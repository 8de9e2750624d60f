package app

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"voicero/internal/config"
	"voicero/internal/ratelimit"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Shopify: config.ShopifyConfig{
			APIKey:     "key",
			APISecret:  "secret",
			APIVersion: "2025-01",
			AppURL:     "https://voicero.example.com",
			MaxRetries: 2,
		},
		Tables: config.TablesConfig{
			Integrations: "integrations",
			OAuthState:   "oauth-state",
			Sessions:     "sessions",
		},
		TokenEncKeyB64: base64.StdEncoding.EncodeToString(make([]byte, 32)),
		RateLimitRPS:   5,
		RateLimitBurst: 20,
	}
}

func request(method, path string) events.APIGatewayV2HTTPRequest {
	req := events.APIGatewayV2HTTPRequest{RawPath: path}
	req.RequestContext.HTTP.Method = method
	return req
}

func TestNewWithAWSRoutes(t *testing.T) {
	a, err := NewWithAWS(testConfig(), aws.Config{Region: "us-east-1"}, nil)
	require.NoError(t, err)
	assert.Nil(t, a.Notifier)
	assert.Len(t, a.ClientOptions(), 3)

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodOptions, "/apps/proxy", http.StatusNoContent},
		{http.MethodPost, "/webhooks/gdpr", http.StatusUnauthorized},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		res, err := a.Route(context.Background(), request(tc.method, tc.path))
		require.NoError(t, err)
		assert.Equal(t, tc.want, res.StatusCode, tc.path)
	}
}

func TestNewWithAWSNeedsSealingKey(t *testing.T) {
	cfg := testConfig()
	cfg.TokenEncKeyB64 = "short"

	_, err := NewWithAWS(cfg, aws.Config{Region: "us-east-1"}, nil)
	require.Error(t, err)
}

func TestNewLimiterChoosesBackend(t *testing.T) {
	cfg := testConfig()
	_, ok := newLimiter(cfg, nil).(*ratelimit.Memory)
	assert.True(t, ok)

	cfg.Redis.Addr = "localhost:6379"
	_, ok = newLimiter(cfg, nil).(ratelimit.FailOpen)
	assert.True(t, ok)

	cfg.ReturnsTopicArn = "arn:aws:sns:us-east-1:123456789012:returns"
	a, err := NewWithAWS(cfg, aws.Config{Region: "us-east-1"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, a.Notifier)
}
