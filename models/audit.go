package models

import (
	"time"
)

// AuditLog is the append-only admin action trail. Writing it must never fail
// the operation it describes.
type AuditLog struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	ActorID    string    `json:"actor_id" gorm:"index"`
	Action     string    `json:"action" gorm:"not null;index"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id" gorm:"index"`
	Metadata   string    `json:"metadata,omitempty" gorm:"type:text"` // JSON blob
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// RealtimeEvent backs the SSE stream. Rows are appended after the owning
// transaction commits, so subscribers never see an event for a rolled-back
// change.
type RealtimeEvent struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	Event      string    `json:"event" gorm:"not null;index"` // winners-updated, ceremony-finalized
	CeremonyID string    `json:"ceremony_id" gorm:"index"`
	Payload    string    `json:"payload,omitempty" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

// AppConfig holds singleton configuration rows, e.g. the active ceremony
// pointer. Accessed only through the config service.
type AppConfig struct {
	Key       string    `json:"key" gorm:"primaryKey"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
