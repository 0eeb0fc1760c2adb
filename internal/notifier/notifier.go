package notifier

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marminbh/billing-gateway/internal/config"
)

// Publisher is the queue surface the notifier needs.
type Publisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// PremiumActivatedEvent is the internal event published after a user's
// premium status has been granted, so downstream services can react without
// polling the profiles table.
type PremiumActivatedEvent struct {
	UserID          string    `json:"user_id"`
	Provider        string    `json:"provider"`
	ProviderEventID string    `json:"provider_event_id"`
	ActivatedAt     time.Time `json:"activated_at"`
}

// Notifier publishes premium-activation events to RabbitMQ.
type Notifier struct {
	publisher  Publisher
	exchange   string
	routingKey string
	logger     *zap.Logger
}

// New creates a notifier with dependencies
func New(publisher Publisher, cfg *config.RabbitMQConfig, logger *zap.Logger) *Notifier {
	return &Notifier{
		publisher:  publisher,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}
}

// NotifyPremiumActivated publishes one premium.activated event. The caller
// treats failures as best-effort: the webhook response never depends on the
// publish succeeding.
func (n *Notifier) NotifyPremiumActivated(userID, providerEventID string) error {
	event := PremiumActivatedEvent{
		UserID:          userID,
		Provider:        "stripe",
		ProviderEventID: providerEventID,
		ActivatedAt:     time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal premium activation event: %w", err)
	}

	if err := n.publisher.Publish(n.exchange, n.routingKey, body); err != nil {
		return fmt.Errorf("failed to publish premium activation event: %w", err)
	}

	n.logger.Info("Published premium activation event",
		zap.String("user_id", userID),
		zap.String("provider_event_id", providerEventID),
		zap.String("routing_key", n.routingKey),
	)
	return nil
}
