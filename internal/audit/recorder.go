package audit

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/marminbh/billing-gateway/internal/models"
	"github.com/marminbh/billing-gateway/internal/stripe"
)

const providerStripe = "stripe"

// Recorder writes one audit row per verified webhook delivery.
type Recorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRecorder creates an audit recorder with dependencies
func NewRecorder(db *gorm.DB, logger *zap.Logger) *Recorder {
	return &Recorder{
		db:     db,
		logger: logger,
	}
}

// Record stores a received event. Best effort: a failed insert is logged and
// never propagated, the webhook response must not depend on the audit trail.
func (r *Recorder) Record(ctx context.Context, event stripe.Event, handled bool, processingErr error) {
	row := models.ReceivedEvent{
		Provider:        providerStripe,
		ProviderEventID: event.ID,
		EventType:       string(event.Type),
		Handled:         handled,
	}
	if processingErr != nil {
		detail := processingErr.Error()
		row.ProcessingError = &detail
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.logger.Warn("Failed to record received event",
			zap.String("provider_event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}
