package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/reputation-service/internal/config"
	"github.com/spec-kit/reputation-service/internal/events"
	"github.com/spec-kit/reputation-service/internal/observability"
	"github.com/spec-kit/reputation-service/pkg/util/retry"
)

const deliveryTargetWebhook = "webhook"

// NotificationService fans committed reputation events out to a webhook.
// Handlers only enqueue; Run performs delivery so a slow collaborator never
// holds up a request.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.NotificationConfig
	queue      chan events.Event
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg config.NotificationConfig) *NotificationService {
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
		queue:      make(chan events.Event, size),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTrustScoreChanged, n.enqueue)
	n.dispatcher.Subscribe(events.EventBadgeAwarded, n.enqueue)
	n.dispatcher.Subscribe(events.EventBadgeRevoked, n.enqueue)
	n.dispatcher.Subscribe(events.EventReferralCompleted, n.enqueue)
}

func (n *NotificationService) enqueue(_ context.Context, event events.Event) error {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		n.logger.Debug("reputation event",
			zap.String("user_id", event.UserID),
			zap.String("event_type", string(event.Type)),
			zap.Any("payload", event.Payload))
		return nil
	}
	select {
	case n.queue <- event:
	default:
		n.metrics.RecordDelivery(deliveryTargetWebhook, "dropped")
		n.logger.Warn("notification queue full, event dropped",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
	}
	return nil
}

// Run delivers queued events until ctx is cancelled.
func (n *NotificationService) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-n.queue:
			n.deliver(ctx, event)
		}
	}
}

func (n *NotificationService) deliver(ctx context.Context, event events.Event) {
	err := retry.Do(ctx, n.cfg.MaxAttempts, n.cfg.BaseDelay(), func(ctx context.Context) error {
		return postJSON(ctx, outboundRequest{
			URL:     n.cfg.WebhookURL,
			Timeout: n.cfg.Timeout(),
			Headers: map[string]string{"X-Event-ID": event.ID, "X-Event-Type": string(event.Type)},
			Body:    event,
		})
	})
	if err != nil {
		n.metrics.RecordDelivery(deliveryTargetWebhook, "failed")
		n.logger.Error("webhook delivery failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("user_id", event.UserID),
			zap.Error(err))
		return
	}
	n.metrics.RecordDelivery(deliveryTargetWebhook, "ok")
}
