package models

import (
	"time"
)

type CeremonyStatus string

const (
	CeremonyStatusDraft     CeremonyStatus = "DRAFT"
	CeremonyStatusPublished CeremonyStatus = "PUBLISHED"
	CeremonyStatusLocked    CeremonyStatus = "LOCKED"
	CeremonyStatusComplete  CeremonyStatus = "COMPLETE"
	CeremonyStatusArchived  CeremonyStatus = "ARCHIVED"
)

// Ceremony is the award event leagues draft against. Structural edits to its
// categories and nominations are only allowed while it is DRAFT; once winners
// start being recorded the ceremony locks and every draft under it freezes.
type Ceremony struct {
	ID        string         `json:"id" gorm:"primaryKey"`
	Code      string         `json:"code" gorm:"uniqueIndex"`
	Name      string         `json:"name" gorm:"not null"`
	Year      int            `json:"year"`
	StartsAt  time.Time      `json:"starts_at"`
	Status    CeremonyStatus `json:"status" gorm:"type:varchar(16);default:'DRAFT';check:status IN ('DRAFT','PUBLISHED','LOCKED','COMPLETE','ARCHIVED')"`
	ArtworkURL string        `json:"artwork_url,omitempty"`

	// Write-once timestamps. DraftLockedAt is the cascading-lock marker: the
	// first writer wins and the value never changes afterwards.
	DraftLockedAt   *time.Time `json:"draft_locked_at,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty" gorm:"index"`
	ArchivedAt      *time.Time `json:"archived_at,omitempty"`
	PublishSchedule *time.Time `json:"publish_schedule,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Categories []CategoryEdition `json:"categories,omitempty" gorm:"foreignKey:CeremonyID"`
	Winners    []CeremonyWinner  `json:"winners,omitempty" gorm:"foreignKey:CeremonyID"`
}

type UnitKind string

const (
	UnitKindFilm        UnitKind = "FILM"
	UnitKindSong        UnitKind = "SONG"
	UnitKindPerformance UnitKind = "PERFORMANCE"
)

// CategoryEdition is one drafting category within a specific ceremony. The
// unit kind decides which entity its nominations point at.
type CategoryEdition struct {
	ID         string   `json:"id" gorm:"primaryKey"`
	CeremonyID string   `json:"ceremony_id" gorm:"not null;index"`
	Name       string   `json:"name" gorm:"not null"`
	UnitKind   UnitKind `json:"unit_kind" gorm:"type:varchar(16);default:'FILM'"`
	SortOrder  int      `json:"sort_order" gorm:"column:sort_order;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Nominations []Nomination `json:"nominations,omitempty" gorm:"foreignKey:CategoryEditionID"`
}

// CeremonyWinner records the official result for one category. The first
// winner written for a ceremony triggers the draft-lock cascade.
type CeremonyWinner struct {
	ID                string    `json:"id" gorm:"primaryKey"`
	CeremonyID        string    `json:"ceremony_id" gorm:"not null;index"`
	CategoryEditionID string    `json:"category_edition_id" gorm:"not null;index"`
	NominationID      string    `json:"nomination_id" gorm:"not null"`
	CreatedAt         time.Time `json:"created_at" gorm:"autoCreateTime"`
}
