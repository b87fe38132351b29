package models

import (
	"time"

	"gorm.io/datatypes"
)

// OutboxEvent is a domain event written in the same transaction as the state change it describes.
type OutboxEvent struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	AggregateID string         `gorm:"type:varchar(64);not null;index" json:"aggregate_id"`
	EventType   string         `gorm:"type:varchar(64);not null" json:"event_type"`
	Payload     datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	CreatedAt   time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	PublishedAt *time.Time     `gorm:"index" json:"published_at,omitempty"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	LastError   string         `gorm:"type:text" json:"last_error,omitempty"`
}

// TableName pins the table used by the relay queries.
func (OutboxEvent) TableName() string { return "outbox_events" }
