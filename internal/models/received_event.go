package models

import (
	"time"

	"github.com/google/uuid"
)

// ReceivedEvent is the audit record for one verified webhook delivery.
// Every event that passes signature verification is recorded, including
// types this service does not act on, so unrecognized event types are never
// silently swallowed. There is deliberately no uniqueness constraint on
// ProviderEventID: duplicate deliveries are recorded as separate rows.
type ReceivedEvent struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Provider        string    `gorm:"not null" json:"provider"`
	ProviderEventID string    `gorm:"index" json:"provider_event_id"`
	EventType       string    `gorm:"not null;index" json:"event_type"`
	Handled         bool      `gorm:"not null;default:false" json:"handled"`
	ProcessingError *string   `json:"processing_error"`
	CreatedAt       time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ReceivedEvent) TableName() string {
	return "received_events"
}
