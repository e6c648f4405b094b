package services

import (
	"os"
	"testing"
	"time"

	"award-draft-system/models"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens the database named by TEST_DATABASE_URL, migrates the
// schema and empties every table. Tests needing real locking semantics
// (FOR UPDATE, partial updates, unique violations) skip without it.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Ceremony{},
		&models.CategoryEdition{},
		&models.CeremonyWinner{},
		&models.Nomination{},
		&models.NominationContributor{},
		&models.NominationChangeAudit{},
		&models.Film{},
		&models.Person{},
		&models.Song{},
		&models.Performance{},
		&models.FilmCredit{},
		&models.League{},
		&models.LeagueMember{},
		&models.Season{},
		&models.Draft{},
		&models.DraftSeat{},
		&models.DraftPick{},
		&models.AuditLog{},
		&models.RealtimeEvent{},
		&models.AppConfig{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, table := range []string{
		"draft_picks", "draft_seats", "drafts", "seasons",
		"league_members", "leagues",
		"ceremony_winners", "nomination_change_audits", "nomination_contributors",
		"nominations", "category_editions",
		"film_credits", "performances", "songs", "films", "people",
		"realtime_events", "audit_logs", "app_configs", "ceremonies",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
	return db
}

type testStack struct {
	DB          *gorm.DB
	Ceremonies  *CeremonyService
	Nominations *NominationService
	Winners     *WinnerService
	Drafts      *DraftService
	Merges      *MergeService
}

func newTestStack(t *testing.T) *testStack {
	db := newTestDB(t)
	audit := NewAuditService(db)
	notify := NewNotifyService(db)
	config := NewConfigService(db)
	return &testStack{
		DB:          db,
		Ceremonies:  NewCeremonyService(db, audit, notify, config),
		Nominations: NewNominationService(db, audit),
		Winners:     NewWinnerService(db, audit, notify),
		Drafts:      NewDraftService(db, audit),
		Merges:      NewMergeService(db, audit),
	}
}

// seedPublishedCeremony builds a ceremony with one FILM category holding one
// active nomination, published and ready for seasons and winners.
func (ts *testStack) seedPublishedCeremony(t *testing.T) (ceremonyID, categoryID, nominationID string) {
	t.Helper()
	code := "awards-" + uuid.NewString()[:8]
	ceremony, appErr := ts.Ceremonies.Create("Test Awards", code, 2026, time.Now(), nil)
	if appErr != nil {
		t.Fatalf("create ceremony: %v", appErr)
	}
	category, appErr := ts.Nominations.CreateCategory(ceremony.ID, "Best Picture", "FILM", 0, "tester")
	if appErr != nil {
		t.Fatalf("create category: %v", appErr)
	}
	film := ts.seedFilm(t, "Some Film", nil)
	nomination, appErr := ts.Nominations.CreateNomination(createNominationInput{
		CategoryEditionID: category.ID,
		FilmID:            &film,
	}, "tester")
	if appErr != nil {
		t.Fatalf("create nomination: %v", appErr)
	}
	if _, appErr := ts.Ceremonies.Publish(ceremony.ID, "tester"); appErr != nil {
		t.Fatalf("publish: %v", appErr)
	}
	return ceremony.ID, category.ID, nomination.ID
}

func (ts *testStack) seedFilm(t *testing.T, title string, tmdbID *int64) string {
	t.Helper()
	film := models.Film{ID: uuid.NewString(), Title: title, TMDBID: tmdbID}
	if err := ts.DB.Create(&film).Error; err != nil {
		t.Fatalf("seed film: %v", err)
	}
	return film.ID
}

// seedStartedDraft wires a league with two members, a season on the given
// ceremony and an IN_PROGRESS draft. Returns the draft and the two member
// user ids in seat order.
func (ts *testStack) seedStartedDraft(t *testing.T, ceremonyID string, rosterSize int) (draftID string, users [2]string) {
	t.Helper()
	league, appErr := ts.Drafts.CreateLeague("Testers", "user-a", "A")
	if appErr != nil {
		t.Fatalf("create league: %v", appErr)
	}
	if _, appErr := ts.Drafts.AddMember(league.ID, "user-b", "B"); appErr != nil {
		t.Fatalf("add member: %v", appErr)
	}
	season, appErr := ts.Drafts.CreateSeason(league.ID, ceremonyID, rosterSize)
	if appErr != nil {
		t.Fatalf("create season: %v", appErr)
	}
	draft, appErr := ts.Drafts.CreateDraft(season.ID)
	if appErr != nil {
		t.Fatalf("create draft: %v", appErr)
	}
	if _, appErr := ts.Drafts.StartDraft(draft.ID, "user-a"); appErr != nil {
		t.Fatalf("start draft: %v", appErr)
	}
	return draft.ID, [2]string{"user-a", "user-b"}
}
