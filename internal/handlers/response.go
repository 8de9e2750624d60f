package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"voicero/internal/apperr"

	"github.com/aws/aws-lambda-go/events"
)

var corsHeaders = map[string]string{
	"access-control-allow-origin":  "*",
	"access-control-allow-methods": "GET, POST, PUT, OPTIONS",
	"access-control-allow-headers": "Content-Type, Authorization, X-Requested-With",
	"access-control-max-age":       "86400",
}

func withCORS(h map[string]string) map[string]string {
	out := make(map[string]string, len(h)+len(corsHeaders))
	for k, v := range corsHeaders {
		out[k] = v
	}
	for k, v := range h {
		out[k] = v
	}
	return out
}

func jsonResp(status int, v any) (events.APIGatewayV2HTTPResponse, error) {
	b, _ := json.Marshal(v)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    withCORS(map[string]string{"content-type": "application/json"}),
		Body:       string(b),
	}, nil
}

func errResp(status int, msg string) (events.APIGatewayV2HTTPResponse, error) {
	return jsonResp(status, map[string]any{
		"success": false,
		"error":   msg,
	})
}

// errorResp applies the route-boundary taxonomy: validation problems are a 200 with
// success:false and the message list, everything else gets its mapped status.
func errorResp(err error) (events.APIGatewayV2HTTPResponse, error) {
	var val *apperr.Validation
	if errors.As(err, &val) {
		return jsonResp(http.StatusOK, map[string]any{
			"success": false,
			"error":   strings.Join(val.Messages, " "),
			"errors":  val.Messages,
		})
	}
	return errResp(apperr.Status(err), err.Error())
}

func preflight() (events.APIGatewayV2HTTPResponse, error) {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusNoContent,
		Headers:    withCORS(nil),
	}, nil
}

func redirect(location string) (events.APIGatewayV2HTTPResponse, error) {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusFound,
		Headers:    map[string]string{"location": location},
	}, nil
}

// body returns the raw request body, undoing API Gateway's base64 wrapping.
func body(req events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if req.IsBase64Encoded {
		return base64.StdEncoding.DecodeString(req.Body)
	}
	return []byte(req.Body), nil
}

// header looks a header up case-insensitively; API Gateway v2 lowercases names.
func header(req events.APIGatewayV2HTTPRequest, name string) string {
	if v, ok := req.Headers[strings.ToLower(name)]; ok {
		return v
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// query returns every query parameter, keeping repeated keys.
func query(req events.APIGatewayV2HTTPRequest) url.Values {
	if req.RawQueryString != "" {
		if v, err := url.ParseQuery(req.RawQueryString); err == nil {
			return v
		}
	}
	v := url.Values{}
	for k, val := range req.QueryStringParameters {
		v.Set(k, val)
	}
	return v
}

func method(req events.APIGatewayV2HTTPRequest) string {
	return strings.ToUpper(req.RequestContext.HTTP.Method)
}
