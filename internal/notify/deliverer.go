package notify

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ibras0696/m-django-work/internal/config"
)

// Sink names accepted by notify.sink.
const (
	SinkWebhook = "webhook"
	SinkPulsar  = "pulsar"
)

// NewDeliverer builds the deliverer selected by cfg.Notify.Sink. The returned
// close function releases broker connections and is never nil.
func NewDeliverer(cfg *config.Config, logger *slog.Logger) (Deliverer, func(), error) {
	switch cfg.Notify.Sink {
	case SinkWebhook, "":
		client := &http.Client{Timeout: cfg.Notify.DeliveryTimeout}
		if client.Timeout <= 0 {
			client.Timeout = DefaultWebhookTimeout
		}
		d, err := NewWebhookDeliverer(cfg.Bot.NotifyURL, cfg.Bot.InternalToken, client, logger)
		if err != nil {
			return nil, nil, err
		}
		return d, func() {}, nil
	case SinkPulsar:
		d, err := NewPulsarDeliverer(cfg.Notify.PulsarURL, cfg.Notify.PulsarTopic, logger)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown notification sink %q", cfg.Notify.Sink)
	}
}
