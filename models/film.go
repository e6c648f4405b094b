package models

import (
	"time"
)

// Film is a canonical entity. Duplicates get merged by the entity merge
// engine; every referencing row (nominations, songs, performances, credits)
// is repointed before the duplicate row is deleted.
type Film struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title" gorm:"not null"`
	Year      int       `json:"year"`
	TMDBID    *int64    `json:"tmdb_id,omitempty" gorm:"uniqueIndex"`
	PosterURL string    `json:"poster_url,omitempty"`
	Overview  string    `json:"overview,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

type Person struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	TMDBID    *int64    `json:"tmdb_id,omitempty" gorm:"uniqueIndex"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Song belongs to a film and can itself be nominated (Best Original Song).
type Song struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	FilmID    string    `json:"film_id" gorm:"not null;index"`
	Title     string    `json:"title" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Performance is one person's performance in one film. At most one row per
// (film, person) pair; the merge engine relies on that to detect collisions.
type Performance struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	FilmID    string    `json:"film_id" gorm:"not null;index:idx_film_person,unique"`
	PersonID  string    `json:"person_id" gorm:"not null;index:idx_film_person,unique"`
	Character string    `json:"character,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// FilmCredit mirrors an upstream credit row. ExternalCreditID is the
// provider's credit identifier; duplicates of the same external credit on
// both sides of a merge collapse to the canonical side.
type FilmCredit struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	FilmID           string    `json:"film_id" gorm:"not null;index"`
	PersonID         string    `json:"person_id" gorm:"not null;index"`
	ExternalCreditID string    `json:"external_credit_id" gorm:"index"`
	Department       string    `json:"department,omitempty"`
	Job              string    `json:"job,omitempty"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
}
