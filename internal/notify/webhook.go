package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ibras0696/m-django-work/internal/domain"
	"github.com/ibras0696/m-django-work/internal/schedule"
)

// DefaultWebhookTimeout is the HTTP client timeout used by NewWebhookDeliverer.
const DefaultWebhookTimeout = 5 * time.Second

// WebhookDeliverer posts notifications to the bot's internal endpoint.
type WebhookDeliverer struct {
	url    string
	token  string
	client *http.Client
	logger *slog.Logger
}

var _ Deliverer = (*WebhookDeliverer)(nil)

// NewWebhookDeliverer returns a deliverer for url that authenticates with
// token as a bearer credential. A nil client gets DefaultWebhookTimeout.
func NewWebhookDeliverer(url, token string, client *http.Client, logger *slog.Logger) (*WebhookDeliverer, error) {
	if url == "" {
		return nil, domain.NewValidationError("url", "cannot be empty", nil)
	}
	if token == "" {
		return nil, domain.NewValidationError("token", "cannot be empty", nil)
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultWebhookTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookDeliverer{
		url:    url,
		token:  token,
		client: client,
		logger: logger.With("component", "webhook_deliverer"),
	}, nil
}

// Deliver sends payload as JSON. Any non-2xx response is an error.
func (d *WebhookDeliverer) Deliver(ctx context.Context, jobID string, payload schedule.Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.token)
	req.Header.Set("X-Notification-ID", jobID)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	d.logger.DebugContext(ctx, "webhook delivered",
		"job_id", jobID,
		"task_id", payload.TaskID,
		"status", resp.StatusCode)
	return nil
}
