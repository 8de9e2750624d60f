// Package server runs the Lambda handlers behind gin for local development.
package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteFunc is the API Gateway shaped entry point the server forwards to.
type RouteFunc func(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

type Server struct {
	router *gin.Engine
	route  RouteFunc
	logger *zap.Logger
}

func New(route RouteFunc, logger *zap.Logger, production bool) *Server {
	if production {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{router: gin.New(), route: route, logger: logger}
	s.router.Use(customRecovery(logger))
	s.router.Use(loggingMiddleware(logger))
	s.router.NoRoute(s.forward)
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) forward(c *gin.Context) {
	req, err := toEvent(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "could not read request body"})
		return
	}

	res, err := s.route(c.Request.Context(), req)
	if err != nil {
		s.logger.Error("handler returned error", zap.String("path", req.RawPath), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
		return
	}

	for k, v := range res.Headers {
		c.Header(k, v)
	}
	for _, cookie := range res.Cookies {
		c.Writer.Header().Add("Set-Cookie", cookie)
	}
	out := []byte(res.Body)
	if res.IsBase64Encoded {
		if out, err = base64.StdEncoding.DecodeString(res.Body); err != nil {
			c.Status(http.StatusBadGateway)
			return
		}
	}
	c.Data(res.StatusCode, res.Headers["content-type"], out)
}

// toEvent converts a plain HTTP request into the API Gateway v2 event Lambda would see.
func toEvent(r *http.Request) (events.APIGatewayV2HTTPRequest, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return events.APIGatewayV2HTTPRequest{}, err
	}

	headers := make(map[string]string, len(r.Header))
	for k, vs := range r.Header {
		headers[strings.ToLower(k)] = strings.Join(vs, ",")
	}
	params := make(map[string]string)
	for k, vs := range r.URL.Query() {
		params[k] = strings.Join(vs, ",")
	}

	req := events.APIGatewayV2HTTPRequest{
		Version:               "2.0",
		RouteKey:              "$default",
		RawPath:               r.URL.Path,
		RawQueryString:        r.URL.RawQuery,
		Headers:               headers,
		QueryStringParameters: params,
	}
	if utf8.Valid(raw) {
		req.Body = string(raw)
	} else {
		req.Body = base64.StdEncoding.EncodeToString(raw)
		req.IsBase64Encoded = true
	}

	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	req.RequestContext.DomainName = r.Host
	req.RequestContext.HTTP = events.APIGatewayV2HTTPRequestContextHTTPDescription{
		Method:    r.Method,
		Path:      r.URL.Path,
		Protocol:  r.Proto,
		SourceIP:  ip,
		UserAgent: r.UserAgent(),
	}
	req.RequestContext.TimeEpoch = time.Now().UnixMilli()
	return req, nil
}

func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   fmt.Sprintf("internal server error: %v", recovered),
		})
	})
}

func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
