package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/marminbh/billing-gateway/internal/config"
	"github.com/marminbh/billing-gateway/internal/stripe"
)

// ProfileStore performs the one state change this gateway makes: the
// idempotent premium grant on a user's profile row.
type ProfileStore interface {
	SetPremium(ctx context.Context, userID string) error
}

// EventRecorder stores an audit row for a verified event. Implementations
// are best-effort and must not fail the request.
type EventRecorder interface {
	Record(ctx context.Context, event stripe.Event, handled bool, processingErr error)
}

// ActivationNotifier announces a granted premium status to downstream
// services.
type ActivationNotifier interface {
	NotifyPremiumActivated(userID, providerEventID string) error
}

var errNoUserID = errors.New("no user id in session")

// WebhookHandler terminates Stripe webhook deliveries: verifies the
// signature over the raw body, routes on event type, and applies the
// premium grant. Stateless between requests; recorder and notifier are
// optional and may be nil.
type WebhookHandler struct {
	cfg      *config.Config
	store    ProfileStore
	recorder EventRecorder
	notifier ActivationNotifier
	logger   *zap.Logger
}

// NewWebhookHandler creates a webhook handler with dependencies
func NewWebhookHandler(
	cfg *config.Config,
	store ProfileStore,
	recorder EventRecorder,
	notifier ActivationNotifier,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		cfg:      cfg,
		store:    store,
		recorder: recorder,
		notifier: notifier,
		logger:   logger,
	}
}

// HandleStripeWebhook handles POST (and OPTIONS preflight) on the webhook
// endpoint. The raw body bytes are used verbatim for signature
// verification: parsing and re-serializing would change the byte sequence
// and invalidate it.
func (h *WebhookHandler) HandleStripeWebhook(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodOptions {
		return c.SendStatus(fiber.StatusOK)
	}
	if c.Method() != fiber.MethodPost {
		return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{
			"error": "Method not allowed",
		})
	}

	// Deployment fault, not a request fault: report it but keep serving.
	if err := h.cfg.ValidateWebhook(); err != nil {
		h.logger.Error("Webhook configuration incomplete", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Missing server configuration",
			"details": err.Error(),
		})
	}

	sigHeader := c.Get(stripe.SignatureHeader)
	if sigHeader == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing stripe-signature header",
		})
	}

	rawBody := c.Body()
	if err := stripe.VerifySignature(rawBody, sigHeader, h.cfg.Stripe.WebhookSecret); err != nil {
		if errors.Is(err, stripe.ErrBadSignatureFormat) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Bad stripe-signature format",
			})
		}
		h.logger.Warn("Rejected webhook with invalid signature",
			zap.String("remote_ip", c.IP()),
		)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid signature",
		})
	}

	// Malformed JSON on a correctly signed body is an unexpected fault:
	// let the outer boundary report it.
	event, err := stripe.ParseEvent(rawBody)
	if err != nil {
		return err
	}

	switch event.Type {
	case stripe.EventCheckoutSessionCompleted:
		return h.handleCheckoutCompleted(c, event)
	default:
		h.logger.Info("Ignoring unhandled event type",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
		)
		h.record(c, event, false, nil)
		return c.JSON(fiber.Map{"received": true})
	}
}

func (h *WebhookHandler) handleCheckoutCompleted(c *fiber.Ctx, event stripe.Event) error {
	userID := event.Data.Object.UserID()
	if userID == "" {
		h.logger.Warn("Checkout session completed without a user id",
			zap.String("event_id", event.ID),
			zap.String("session_id", event.Data.Object.ID),
		)
		h.record(c, event, false, errNoUserID)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No user id in session.",
		})
	}

	if err := h.store.SetPremium(c.UserContext(), userID); err != nil {
		h.logger.Error("Failed to set premium status",
			zap.String("user_id", userID),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		h.record(c, event, false, err)
		// No internal retry: Stripe redelivers on 5xx per its own policy.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "DB update failed",
			"details": err.Error(),
		})
	}

	h.logger.Info("Premium status granted",
		zap.String("user_id", userID),
		zap.String("event_id", event.ID),
	)
	h.record(c, event, true, nil)

	if h.notifier != nil {
		if err := h.notifier.NotifyPremiumActivated(userID, event.ID); err != nil {
			h.logger.Warn("Failed to publish premium activation event",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	return c.JSON(fiber.Map{"received": true})
}

func (h *WebhookHandler) record(c *fiber.Ctx, event stripe.Event, handled bool, processingErr error) {
	if h.recorder == nil {
		return
	}
	h.recorder.Record(c.UserContext(), event, handled, processingErr)
}
