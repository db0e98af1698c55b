package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"scriptslap-server/metrics"

	"go.uber.org/zap"
)

// maxResponseBody caps how much of a webhook response is kept for logs and
// error details.
const maxResponseBody = 64 << 10

// WebhookError is returned when a workflow answers with a non-2xx status.
type WebhookError struct {
	Operation  Operation
	StatusCode int
	Body       string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("workflow %s webhook status %d", e.Operation, e.StatusCode)
}

// Receipt is what a workflow answered when it accepted a payload.
type Receipt struct {
	StatusCode int
	Body       string
}

// Dispatcher sends payloads to their workflow.
type Dispatcher interface {
	Dispatch(ctx context.Context, p Payload) (*Receipt, error)
}

// Client posts payloads to the webhook configured for their operation.
// There is no retry: a failed trigger is reported to the caller.
type Client struct {
	httpClient *http.Client
	urls       map[Operation]string
	logger     *zap.Logger
}

// URLs are the webhook endpoints per operation.
type URLs struct {
	Generate        string
	RefineHook      string
	RefineCTA       string
	RefineParagraph string
	AddParagraph    string
}

func NewClient(urls URLs, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		urls: map[Operation]string{
			OpGenerate:        urls.Generate,
			OpRefineHook:      urls.RefineHook,
			OpRefineCTA:       urls.RefineCTA,
			OpRefineParagraph: urls.RefineParagraph,
			OpAddParagraph:    urls.AddParagraph,
		},
		logger: logger.Named("workflow"),
	}
}

func (c *Client) Dispatch(ctx context.Context, p Payload) (*Receipt, error) {
	op := p.Operation()
	url, ok := c.urls[op]
	if !ok || url == "" {
		return nil, fmt.Errorf("no webhook url configured for %s", op)
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.WebhookDuration.WithLabelValues(string(op)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.WebhookRequests.WithLabelValues(string(op), "transport_error").Inc()
		c.logger.Error("webhook call failed", zap.String("operation", string(op)), zap.Error(err))
		return nil, fmt.Errorf("call %s webhook: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.WebhookRequests.WithLabelValues(string(op), "rejected").Inc()
		c.logger.Warn("webhook rejected payload",
			zap.String("operation", string(op)),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return nil, &WebhookError{Operation: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	metrics.WebhookRequests.WithLabelValues(string(op), "accepted").Inc()
	c.logger.Debug("webhook accepted payload", zap.String("operation", string(op)), zap.Int("status", resp.StatusCode))
	return &Receipt{StatusCode: resp.StatusCode, Body: string(respBody)}, nil
}
