package stripe

import (
	"encoding/json"
	"fmt"
)

// EventType represents the type of a Stripe webhook event
type EventType string

const (
	EventCheckoutSessionCompleted EventType = "checkout.session.completed"
)

// Event represents the top-level structure of a Stripe webhook payload.
// Only the fields this service routes on are modeled; everything else in the
// envelope is ignored by the decoder.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`
	Data EventData `json:"data"`
}

// EventData wraps the event's data.object payload.
type EventData struct {
	Object CheckoutSession `json:"object"`
}

// CheckoutSession models the data.object of a checkout.session.* event. For
// other event types the fields simply decode to their zero values and are
// never read.
type CheckoutSession struct {
	ID                string          `json:"id"`
	ClientReferenceID string          `json:"client_reference_id"`
	CustomerEmail     string          `json:"customer_email"`
	Metadata          SessionMetadata `json:"metadata"`
}

// SessionMetadata holds the checkout metadata keys this service reads.
type SessionMetadata struct {
	SupabaseUserID string `json:"supabase_user_id"`
}

// UserID returns the account identifier for the session:
// client_reference_id first, falling back to metadata.supabase_user_id.
// Empty when neither is present.
func (s CheckoutSession) UserID() string {
	if s.ClientReferenceID != "" {
		return s.ClientReferenceID
	}
	return s.Metadata.SupabaseUserID
}

// ParseEvent decodes a verified raw webhook body into an Event.
func ParseEvent(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("failed to parse event payload: %w", err)
	}
	return event, nil
}
