package models

import "time"

// ProcessedEvent marks a processor event id as applied. Its existence is the
// idempotency guard for webhook side effects.
type ProcessedEvent struct {
	ProcessorEventID string    `gorm:"type:varchar(255);primaryKey" json:"processor_event_id"`
	EventType        string    `gorm:"type:varchar(100);not null;index" json:"event_type"`
	ProcessedAt      time.Time `gorm:"not null" json:"processed_at"`
}
