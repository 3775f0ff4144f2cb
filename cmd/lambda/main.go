package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/formgate/leadcapture/cmd/mainconfig"
	"github.com/formgate/leadcapture/internal/api/router"
	"github.com/formgate/leadcapture/internal/app/bootstrap"
	appconfig "github.com/formgate/leadcapture/internal/config"
	"github.com/formgate/leadcapture/internal/leads"
	"github.com/formgate/leadcapture/internal/observability/metrics"
	"github.com/formgate/leadcapture/internal/ratelimit"
	"github.com/formgate/leadcapture/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting leadcapture lambda", "env", cfg.Env)

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	leadMetrics := metrics.NewLeadMetrics(nil)
	store := leads.NewStore(dynamoClient, cfg.LeadsTable, logger, leadMetrics)
	limiter := ratelimit.New(dynamoClient, cfg.RateLimitTable, cfg.RateLimitMaxPerHour, cfg.RateLimitFailOpen, logger)
	notifier := bootstrap.BuildNotifier(awsCfg, cfg, logger)
	archiver := bootstrap.BuildArchiver(awsCfg, cfg, logger)

	service := leads.NewSubmissionService(store, limiter, notifier, cfg.MaxCustomFields, logger, leadMetrics)

	// No metrics endpoint here; a per-invocation Lambda instance has
	// nothing useful for Prometheus to scrape.
	r := router.New(&router.Config{
		Logger:         logger,
		LeadsHandler:   leads.NewHandler(service, store, logger, leadMetrics),
		AdminHandler:   leads.NewAdminHandler(store, archiver, logger),
		APIKey:         cfg.APIKey,
		AdminJWTSecret: cfg.AdminJWTSecret,
	})

	lambda.Start(func(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		return serve(ctx, r, evt)
	})
}

// serve runs one API Gateway event through the HTTP router in process,
// so Lambda and the long-lived server expose identical behavior.
func serve(ctx context.Context, h http.Handler, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	req, err := toHTTPRequest(ctx, evt)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid body"}, nil
	}

	rec := newResponseCapture()
	h.ServeHTTP(rec, req)

	return rec.result(), nil
}

func toHTTPRequest(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	if method == "" {
		method = http.MethodGet
	}

	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}
	if path == "" {
		path = "/"
	}

	body, err := decodeBody(evt)
	if err != nil {
		return nil, err
	}

	target := path
	if qs := strings.TrimSpace(evt.RawQueryString); qs != "" {
		target += "?" + qs
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	for k, v := range evt.Headers {
		req.Header.Set(k, v)
	}
	for _, cookie := range evt.Cookies {
		req.Header.Add("Cookie", cookie)
	}

	host := strings.TrimSpace(evt.RequestContext.DomainName)
	if host == "" {
		host = strings.TrimSpace(headerValue(evt.Headers, "host"))
	}
	if host != "" {
		req.Host = host
	}

	// The router's rate limiter and request log key off the client IP.
	if ip := strings.TrimSpace(evt.RequestContext.HTTP.SourceIP); ip != "" {
		req.RemoteAddr = ip + ":0"
	}

	return req, nil
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(evt.Body)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// responseCapture buffers a handler's response so it can be reshaped
// into an API Gateway payload.
type responseCapture struct {
	status int
	header http.Header
	body   bytes.Buffer
}

func newResponseCapture() *responseCapture {
	return &responseCapture{header: make(http.Header)}
}

func (c *responseCapture) Header() http.Header { return c.header }

func (c *responseCapture) Write(p []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	return c.body.Write(p)
}

func (c *responseCapture) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
}

func (c *responseCapture) result() events.APIGatewayV2HTTPResponse {
	status := c.status
	if status == 0 {
		status = http.StatusOK
	}

	headers := make(map[string]string, len(c.header))
	for k, values := range c.header {
		headers[k] = strings.Join(values, ", ")
	}

	out := events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers:    headers,
	}

	// Compressed bodies are not valid UTF-8 and must ride as base64.
	if c.header.Get("Content-Encoding") != "" {
		out.Body = base64.StdEncoding.EncodeToString(c.body.Bytes())
		out.IsBase64Encoded = true
	} else {
		out.Body = c.body.String()
	}

	return out
}
