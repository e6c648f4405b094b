package models

import (
	"time"
)

type NominationStatus string

const (
	NominationStatusActive   NominationStatus = "ACTIVE"
	NominationStatusRevoked  NominationStatus = "REVOKED"
	NominationStatusReplaced NominationStatus = "REPLACED"
)

// Nomination is a single candidate inside a category edition. Exactly one of
// FilmID/SongID/PerformanceID is set, matching the category's unit kind.
// Status changes go through the integrity ledger only; the allowed graph is
// ACTIVE -> {REVOKED, REPLACED} and {REVOKED, REPLACED} -> ACTIVE (restore).
type Nomination struct {
	ID                string           `json:"id" gorm:"primaryKey"`
	CategoryEditionID string           `json:"category_edition_id" gorm:"not null;index"`
	FilmID            *string          `json:"film_id,omitempty" gorm:"index"`
	SongID            *string          `json:"song_id,omitempty" gorm:"index"`
	PerformanceID     *string          `json:"performance_id,omitempty" gorm:"index"`
	Status            NominationStatus `json:"status" gorm:"type:varchar(16);default:'ACTIVE';check:status IN ('ACTIVE','REVOKED','REPLACED')"`

	// Set only while Status is REPLACED.
	ReplacedByNominationID *string `json:"replaced_by_nomination_id,omitempty"`

	SortOrder int       `json:"sort_order" gorm:"column:sort_order;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Contributors []NominationContributor `json:"contributors,omitempty" gorm:"foreignKey:NominationID"`
}

// NominationContributor links a person to a nomination (director, writer,
// performer and so on). Structural rows, editable only pre-draft.
type NominationContributor struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	NominationID string    `json:"nomination_id" gorm:"not null;index"`
	PersonID     string    `json:"person_id" gorm:"not null;index"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

type ChangeOrigin string

const (
	ChangeOriginInternal ChangeOrigin = "INTERNAL"
	ChangeOriginExternal ChangeOrigin = "EXTERNAL"
)

type ChangeImpact string

const (
	ChangeImpactConsequential ChangeImpact = "CONSEQUENTIAL"
	ChangeImpactBenign        ChangeImpact = "BENIGN"
)

// NominationChangeAudit is the append-only ledger row written in the same
// transaction as every nomination status change. Never updated or deleted
// while the nomination exists.
type NominationChangeAudit struct {
	ID                       string       `json:"id" gorm:"primaryKey"`
	NominationID             string       `json:"nomination_id" gorm:"not null;index"`
	ReplacementNominationID  *string      `json:"replacement_nomination_id,omitempty"`
	Action                   string       `json:"action" gorm:"type:varchar(16);not null"`
	Origin                   ChangeOrigin `json:"origin" gorm:"type:varchar(16);not null"`
	Impact                   ChangeImpact `json:"impact" gorm:"type:varchar(16);not null"`
	Reason                   string       `json:"reason" gorm:"type:text;not null"`
	CreatedByUserID          string       `json:"created_by_user_id"`
	CreatedAt                time.Time    `json:"created_at" gorm:"autoCreateTime"`
}
