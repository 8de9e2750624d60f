package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// VerifyWebhook checks X-Shopify-Hmac-Sha256: base64(HMAC-SHA256(rawBody, secret)).
func VerifyWebhook(body []byte, secret, header string) bool {
	header = strings.TrimSpace(header)
	if secret == "" || header == "" || len(body) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

// SignWebhook produces the header value Shopify would send; used by tests and the CLI.
func SignWebhook(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyProxySignature checks the app-proxy "signature" parameter: params other than
// signature are rendered as k=v (multi-values joined by ","), sorted, concatenated
// without a separator, and signed with HMAC-SHA256 hex.
func VerifyProxySignature(query url.Values, secret string) bool {
	provided := strings.ToLower(strings.TrimSpace(query.Get("signature")))
	if secret == "" || provided == "" {
		return false
	}
	expected := proxySignature(query, secret)
	return hmac.Equal([]byte(expected), []byte(provided))
}

// SignProxyQuery adds a valid signature to query.
func SignProxyQuery(query url.Values, secret string) {
	query.Del("signature")
	query.Set("signature", proxySignature(query, secret))
}

func proxySignature(query url.Values, secret string) string {
	parts := make([]string, 0, len(query))
	for k, vs := range query {
		if k == "signature" {
			continue
		}
		parts = append(parts, k+"="+strings.Join(vs, ","))
	}
	sort.Strings(parts)

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(mac.Sum(nil))
}
