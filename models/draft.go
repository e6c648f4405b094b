package models

import (
	"time"
)

type DraftStatus string

const (
	DraftStatusPending    DraftStatus = "PENDING"
	DraftStatusInProgress DraftStatus = "IN_PROGRESS"
	DraftStatusPaused     DraftStatus = "PAUSED"
	DraftStatusCompleted  DraftStatus = "COMPLETED"
	DraftStatusCancelled  DraftStatus = "CANCELLED"
)

// League groups members that draft together season after season.
type League struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	Name          string    `json:"name" gorm:"not null"`
	OwnerUserID   string    `json:"owner_user_id" gorm:"index"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Members []LeagueMember `json:"members,omitempty" gorm:"foreignKey:LeagueID"`
	Seasons []Season       `json:"seasons,omitempty" gorm:"foreignKey:LeagueID"`
}

type LeagueMember struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	LeagueID       string    `json:"league_id" gorm:"not null;index"`
	ExternalUserID string    `json:"external_user_id" gorm:"not null;index"`
	DisplayName    string    `json:"display_name"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	JoinedAt       time.Time `json:"joined_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Season binds a league to one ceremony and fixes the roster size every
// member drafts toward.
type Season struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	LeagueID   string    `json:"league_id" gorm:"not null;index"`
	CeremonyID string    `json:"ceremony_id" gorm:"not null;index"`
	RosterSize int       `json:"roster_size" gorm:"default:5"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Draft is one season's turn-based selection process. CurrentPickNumber is
// only ever advanced by the pick arbiter under a locking read; CANCELLED is
// forced exclusively by the ceremony draft-lock cascade.
type Draft struct {
	ID         string      `json:"id" gorm:"primaryKey"`
	SeasonID   string      `json:"season_id" gorm:"not null;index"`
	CeremonyID string      `json:"ceremony_id" gorm:"not null;index"` // denormalized for the lock cascade
	Status     DraftStatus `json:"status" gorm:"type:varchar(16);default:'PENDING';check:status IN ('PENDING','IN_PROGRESS','PAUSED','COMPLETED','CANCELLED')"`

	CurrentPickNumber int        `json:"current_pick_number" gorm:"default:1"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	Seats []DraftSeat `json:"seats,omitempty" gorm:"foreignKey:DraftID"`
	Picks []DraftPick `json:"picks,omitempty" gorm:"foreignKey:DraftID"`
}

// DraftSeat fixes one rotation slot to a league member for the whole draft.
// Seats are created when the draft starts and never reassigned.
type DraftSeat struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	DraftID        string    `json:"draft_id" gorm:"not null;index:idx_draft_seat,unique"`
	SeatNumber     int       `json:"seat_number" gorm:"not null;index:idx_draft_seat,unique"`
	LeagueMemberID string    `json:"league_member_id" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// DraftPick is a committed selection. Immutable once written. The unique
// (draft_id, request_id) pair is the idempotency key for resubmission.
type DraftPick struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	DraftID      string    `json:"draft_id" gorm:"not null;index:idx_draft_request,unique;index:idx_draft_picknum,unique"`
	PickNumber   int       `json:"pick_number" gorm:"not null;index:idx_draft_picknum,unique"`
	SeatNumber   int       `json:"seat_number" gorm:"not null"`
	NominationID string    `json:"nomination_id" gorm:"not null"`
	RequestID    string    `json:"request_id" gorm:"not null;index:idx_draft_request,unique"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}
