package middleware

import (
	"net/http"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// NewHTTPClient returns the client used for outbound calls to providers.
// With tracing enabled every request is recorded as an X-Ray subsegment.
func NewHTTPClient(timeout time.Duration, tracing bool) *http.Client {
	client := &http.Client{Timeout: timeout}
	if tracing {
		return xray.Client(client)
	}
	return client
}

// NewRetryableClient wraps base with retries and exponential backoff
func NewRetryableClient(base *http.Client, retries int, logger logrus.FieldLogger) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient = base
	client.RetryMax = retries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = nil
	if logger != nil {
		client.Logger = logger.WithField("component", "http_client")
	}
	return client
}
