// Package webhook forwards canonical messages to the configured downstream
// endpoint with best-effort, at-most-once delivery.
package webhook

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/caam1406/wahook/pkg/bus"
	"github.com/caam1406/wahook/pkg/config"
	"github.com/caam1406/wahook/pkg/logger"
)

const (
	clientID       = "wahook/0.1.0"
	defaultTimeout = 10 * time.Second
)

// Dispatcher POSTs each inbound message to the webhook URL exactly once.
// Failures are logged and the message is dropped: there is no retry queue
// and no dead-letter store. Deliveries are submitted in arrival order but
// complete independently, so a slow endpoint never blocks the event stream.
type Dispatcher struct {
	client *resty.Client
	url    string
	msgBus *bus.MessageBus
}

func NewDispatcher(cfg config.WebhookConfig, msgBus *bus.MessageBus) *Dispatcher {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", clientID).
		SetHeader("Content-Type", "application/json")

	return &Dispatcher{
		client: client,
		url:    cfg.URL,
		msgBus: msgBus,
	}
}

// Run consumes the inbound stream until ctx is cancelled. Each message is
// handed to its own delivery goroutine so submission order follows arrival
// order while completion order stays unspecified.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.url == "" {
		logger.WarnC("webhook", "No webhook URL configured, inbound messages will not be forwarded")
	}

	for {
		msg, ok := d.msgBus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		if d.url == "" {
			logger.DebugCF("webhook", "Dropping message, no webhook configured", map[string]interface{}{
				"message_id": msg.ID,
			})
			continue
		}
		go d.deliver(ctx, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg bus.CanonicalMessage) {
	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(msg).
		Post(d.url)

	if err != nil {
		logger.ErrorCF("webhook", "Webhook delivery failed, message dropped", map[string]interface{}{
			"message_id": msg.ID,
			"error":      err.Error(),
		})
		return
	}

	if !resp.IsSuccess() {
		logger.ErrorCF("webhook", "Webhook rejected message, dropped", map[string]interface{}{
			"message_id": msg.ID,
			"status":     resp.StatusCode(),
			"body":       truncate(resp.String(), 200),
		})
		return
	}

	logger.DebugCF("webhook", "Message forwarded", map[string]interface{}{
		"message_id": msg.ID,
		"status":     resp.StatusCode(),
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
