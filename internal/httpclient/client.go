// Package httpclient is the outbound transport for feed calls.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/i474232898/weather-feed-aggregation/internal/common"
	"github.com/i474232898/weather-feed-aggregation/internal/feed"
)

// DefaultTimeout bounds connect plus read of one request.
const DefaultTimeout = 30 * time.Second

var (
	errServerStatus     = errors.New("server error")
	errUnexpectedStatus = errors.New("unexpected status code")
)

// Client fetches feed payloads over HTTP. It does not retry; the feed
// executor owns the retry policy.
type Client struct {
	client *resty.Client
}

// New creates a Client with the given timeout (DefaultTimeout when <= 0).
func New(timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	client.SetHeader("Accept", "application/json, application/xml;q=0.9, */*;q=0.8")
	client.SetLogger(restyLogger{logger: logger.With("component", "httpclient")})

	return &Client{client: client}
}

// Fetch performs a GET and returns the body. Gateway error documents are
// returned as bodies whatever the status so the caller can classify them;
// 429 and 5xx are retryable errors; other statuses are permanent.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(rawURL)
	if err != nil {
		return "", fmt.Errorf("request: %w", redact(err))
	}

	body := resp.String()
	status := resp.StatusCode()
	switch {
	case status >= 200 && status < 300:
		return body, nil
	case common.HasAny(body, "<cmmMsgHeader>", "<OpenAPI_ServiceResponse"):
		return body, nil
	case status == 429 || status >= 500:
		return "", fmt.Errorf("%w: %d", errServerStatus, status)
	default:
		return "", feed.Permanent(fmt.Errorf("%w: %d", errUnexpectedStatus, status))
	}
}

// redact strips the service key from transport errors, which quote the URL.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = common.Redact(urlErr.URL, "serviceKey")
	}
	return err
}

// restyLogger routes resty's own messages to slog. Messages quote request
// URLs, so the service key is redacted.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) msg(format string, v ...interface{}) string {
	return common.Redact(fmt.Sprintf(format, v...), "serviceKey")
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(l.msg(format, v...))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(l.msg(format, v...))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(l.msg(format, v...))
}
