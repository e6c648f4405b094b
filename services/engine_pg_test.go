package services

import (
	"sync"
	"testing"
	"time"

	"award-draft-system/models"
	"award-draft-system/utils"
)

func wantCode(t *testing.T, appErr *utils.AppError, code string) {
	t.Helper()
	if appErr == nil {
		t.Fatalf("expected error %s, got nil", code)
	}
	if appErr.Code != code {
		t.Fatalf("expected error %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
}

func TestPublishRequiresCompleteCeremony(t *testing.T) {
	ts := newTestStack(t)

	ceremony, appErr := ts.Ceremonies.Create("Empty Awards", "", 2026, time.Now(), nil)
	if appErr != nil {
		t.Fatalf("create: %v", appErr)
	}

	// No categories yet.
	_, appErr = ts.Ceremonies.Publish(ceremony.ID, "tester")
	wantCode(t, appErr, utils.CodeCeremonyIncomplete)

	// A category without nominations is still incomplete.
	category, appErr := ts.Nominations.CreateCategory(ceremony.ID, "Best Picture", "FILM", 0, "tester")
	if appErr != nil {
		t.Fatalf("create category: %v", appErr)
	}
	_, appErr = ts.Ceremonies.Publish(ceremony.ID, "tester")
	wantCode(t, appErr, utils.CodeCeremonyIncomplete)

	film := ts.seedFilm(t, "A Film", nil)
	if _, appErr := ts.Nominations.CreateNomination(createNominationInput{
		CategoryEditionID: category.ID,
		FilmID:            &film,
	}, "tester"); appErr != nil {
		t.Fatalf("create nomination: %v", appErr)
	}

	published, appErr := ts.Ceremonies.Publish(ceremony.ID, "tester")
	if appErr != nil {
		t.Fatalf("publish: %v", appErr)
	}
	if published.Status != models.CeremonyStatusPublished {
		t.Fatalf("status = %s", published.Status)
	}

	// Publishing twice is a conflict, not a silent no-op.
	_, appErr = ts.Ceremonies.Publish(ceremony.ID, "tester")
	wantCode(t, appErr, utils.CodeCeremonyNotDraft)
}

func TestLockRequiresPublished(t *testing.T) {
	ts := newTestStack(t)

	ceremony, appErr := ts.Ceremonies.Create("Draft Awards", "", 2026, time.Now(), nil)
	if appErr != nil {
		t.Fatalf("create: %v", appErr)
	}
	_, _, appErr = ts.Ceremonies.Lock(ceremony.ID, "tester")
	wantCode(t, appErr, utils.CodeCeremonyNotPublished)
}

func TestLockIsIdempotent(t *testing.T) {
	ts := newTestStack(t)
	ceremonyID, _, _ := ts.seedPublishedCeremony(t)
	draftID, _ := ts.seedStartedDraft(t, ceremonyID, 1)

	first, cancelled, appErr := ts.Ceremonies.Lock(ceremonyID, "tester")
	if appErr != nil {
		t.Fatalf("lock: %v", appErr)
	}
	if first.DraftLockedAt == nil {
		t.Fatal("draft_locked_at not set")
	}
	if cancelled != 1 {
		t.Fatalf("expected 1 cancelled draft, got %d", cancelled)
	}

	second, cancelled, appErr := ts.Ceremonies.Lock(ceremonyID, "tester")
	if appErr != nil {
		t.Fatalf("second lock: %v", appErr)
	}
	if cancelled != 0 {
		t.Fatalf("second lock cancelled %d drafts", cancelled)
	}
	if !second.DraftLockedAt.Equal(*first.DraftLockedAt) {
		t.Fatalf("draft_locked_at changed: %v vs %v", first.DraftLockedAt, second.DraftLockedAt)
	}

	var draft models.Draft
	if err := ts.DB.First(&draft, "id = ?", draftID).Error; err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if draft.Status != models.DraftStatusCancelled {
		t.Fatalf("draft status = %s", draft.Status)
	}
	if draft.CancelledAt == nil {
		t.Fatal("cancelled_at not set")
	}
}

func TestSetWinnersLocksAndCascades(t *testing.T) {
	ts := newTestStack(t)
	ceremonyID, categoryID, nominationID := ts.seedPublishedCeremony(t)
	ts.seedStartedDraft(t, ceremonyID, 1)

	result, appErr := ts.Winners.SetWinners(categoryID, []string{nominationID}, "tester")
	if appErr != nil {
		t.Fatalf("set winners: %v", appErr)
	}
	if len(result.Winners) != 1 {
		t.Fatalf("expected 1 winner, got %d", len(result.Winners))
	}
	if result.DraftLockedAt == nil {
		t.Fatal("draft_locked_at not set by winner write")
	}
	if result.CancelledDraftsCount != 1 {
		t.Fatalf("expected 1 cancelled draft, got %d", result.CancelledDraftsCount)
	}

	var ceremony models.Ceremony
	if err := ts.DB.First(&ceremony, "id = ?", ceremonyID).Error; err != nil {
		t.Fatalf("load ceremony: %v", err)
	}
	if ceremony.Status != models.CeremonyStatusLocked {
		t.Fatalf("ceremony status = %s", ceremony.Status)
	}

	// Second write replaces the winner set, reuses the lock and cancels
	// nothing new.
	again, appErr := ts.Winners.SetWinners(categoryID, []string{nominationID}, "tester")
	if appErr != nil {
		t.Fatalf("second set winners: %v", appErr)
	}
	if again.CancelledDraftsCount != 0 {
		t.Fatalf("second write cancelled %d drafts", again.CancelledDraftsCount)
	}
	if !again.DraftLockedAt.Equal(*result.DraftLockedAt) {
		t.Fatal("draft_locked_at changed on second write")
	}

	var winnerCount int64
	if err := ts.DB.Model(&models.CeremonyWinner{}).
		Where("category_edition_id = ?", categoryID).Count(&winnerCount).Error; err != nil {
		t.Fatalf("count winners: %v", err)
	}
	if winnerCount != 1 {
		t.Fatalf("winner rows = %d", winnerCount)
	}
}

func TestSetWinnersRejectsForeignNomination(t *testing.T) {
	ts := newTestStack(t)
	_, categoryID, _ := ts.seedPublishedCeremony(t)
	otherCeremony, otherCategory, otherNomination := ts.seedPublishedCeremony(t)
	_ = otherCeremony
	_ = otherCategory

	_, appErr := ts.Winners.SetWinners(categoryID, []string{otherNomination}, "tester")
	wantCode(t, appErr, utils.CodeValidationFailed)
}

func TestFinalizeRequiresWinners(t *testing.T) {
	ts := newTestStack(t)
	ceremonyID, categoryID, nominationID := ts.seedPublishedCeremony(t)

	if _, _, appErr := ts.Ceremonies.Lock(ceremonyID, "tester"); appErr != nil {
		t.Fatalf("lock: %v", appErr)
	}
	_, appErr := ts.Ceremonies.FinalizeWinners(ceremonyID, "tester")
	wantCode(t, appErr, utils.CodeNoWinners)

	if _, appErr := ts.Winners.SetWinners(categoryID, []string{nominationID}, "tester"); appErr != nil {
		t.Fatalf("set winners: %v", appErr)
	}
	ceremony, appErr := ts.Ceremonies.FinalizeWinners(ceremonyID, "tester")
	if appErr != nil {
		t.Fatalf("finalize: %v", appErr)
	}
	if ceremony.Status != models.CeremonyStatusComplete {
		t.Fatalf("status = %s", ceremony.Status)
	}

	// COMPLETE ceremonies refuse further winner edits.
	_, appErr = ts.Winners.SetWinners(categoryID, []string{nominationID}, "tester")
	wantCode(t, appErr, utils.CodeCeremonyArchived)
}

func TestArchiveOnlyFromLocked(t *testing.T) {
	ts := newTestStack(t)
	ceremonyID, _, _ := ts.seedPublishedCeremony(t)

	_, appErr := ts.Ceremonies.Archive(ceremonyID, "tester")
	wantCode(t, appErr, utils.CodeCeremonyNotLocked)

	if _, _, appErr := ts.Ceremonies.Lock(ceremonyID, "tester"); appErr != nil {
		t.Fatalf("lock: %v", appErr)
	}
	ceremony, appErr := ts.Ceremonies.Archive(ceremonyID, "tester")
	if appErr != nil {
		t.Fatalf("archive: %v", appErr)
	}
	if ceremony.Status != models.CeremonyStatusArchived || ceremony.ArchivedAt == nil {
		t.Fatalf("archive left ceremony as %s", ceremony.Status)
	}

	// Archived means read-only everywhere.
	name := "renamed"
	_, appErr = ts.Ceremonies.Update(ceremonyID, ceremonyPatch{Name: &name})
	wantCode(t, appErr, utils.CodeCeremonyArchived)
}

func TestSubmitPickTurnOrderAndIdempotency(t *testing.T) {
	ts := newTestStack(t)
	ceremonyID, categoryID, nominationID := ts.seedPublishedCeremony(t)

	// A second nomination so both members can pick.
	film2 := ts.seedFilm(t, "Another Film", nil)
	nomination2, appErr := ts.Nominations.CreateNomination(createNominationInput{
		CategoryEditionID: categoryID,
		FilmID:            &film2,
	}, "tester")
	if appErr == nil {
		t.Fatal("structural edit after publish must be rejected")
	}
	wantCode(t, appErr, utils.CodeCeremonyNotDraft)

	// Seed it directly; the ceremony is already published.
	nom2 := models.Nomination{
		ID:                "nom-2",
		CategoryEditionID: categoryID,
		FilmID:            &film2,
		Status:            models.NominationStatusActive,
	}
	if err := ts.DB.Create(&nom2).Error; err != nil {
		t.Fatalf("seed nomination: %v", err)
	}
	nomination2 = &nom2

	draftID, users := ts.seedStartedDraft(t, ceremonyID, 1)

	// Seat 2 cannot open the draft, and the rejection must not advance
	// the pick pointer.
	_, _, appErr = ts.Drafts.SubmitPick(draftID, "req-0", users[1], nominationID)
	wantCode(t, appErr, utils.CodeNotYourTurn)
	var rejected models.Draft
	if err := ts.DB.First(&rejected, "id = ?", draftID).Error; err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if rejected.CurrentPickNumber != 1 {
		t.Fatalf("rejected pick moved the pointer to %d", rejected.CurrentPickNumber)
	}

	pick, created, appErr := ts.Drafts.SubmitPick(draftID, "req-1", users[0], nominationID)
	if appErr != nil {
		t.Fatalf("pick: %v", appErr)
	}
	if !created || pick.PickNumber != 1 || pick.SeatNumber != 1 {
		t.Fatalf("unexpected pick: created=%t %+v", created, pick)
	}

	// Same request id replays the original pick.
	replay, created, appErr := ts.Drafts.SubmitPick(draftID, "req-1", users[0], nominationID)
	if appErr != nil {
		t.Fatalf("replay: %v", appErr)
	}
	if created || replay.ID != pick.ID {
		t.Fatalf("replay returned a different pick: created=%t %s vs %s", created, replay.ID, pick.ID)
	}

	// An already-picked nomination cannot be taken again.
	_, _, appErr = ts.Drafts.SubmitPick(draftID, "req-2", users[1], nominationID)
	wantCode(t, appErr, utils.CodeValidationFailed)

	// Second seat completes the roster-of-one draft.
	_, _, appErr = ts.Drafts.SubmitPick(draftID, "req-3", users[1], nomination2.ID)
	if appErr != nil {
		t.Fatalf("second pick: %v", appErr)
	}
	var draft models.Draft
	if err := ts.DB.First(&draft, "id = ?", draftID).Error; err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if draft.Status != models.DraftStatusCompleted || draft.CompletedAt == nil {
		t.Fatalf("draft not completed: %s", draft.Status)
	}

	// No more turns after completion.
	_, _, appErr = ts.Drafts.SubmitPick(draftID, "req-4", users[0], nomination2.ID)
	wantCode(t, appErr, utils.CodeDraftNotActive)
}

func TestStartDraftBlockedAfterLock(t *testing.T) {
	ts := newTestStack(t)
	ceremonyID, _, _ := ts.seedPublishedCeremony(t)

	league, appErr := ts.Drafts.CreateLeague("Latecomers", "user-x", "X")
	if appErr != nil {
		t.Fatalf("create league: %v", appErr)
	}
	if _, appErr := ts.Drafts.AddMember(league.ID, "user-y", "Y"); appErr != nil {
		t.Fatalf("add member: %v", appErr)
	}
	season, appErr := ts.Drafts.CreateSeason(league.ID, ceremonyID, 1)
	if appErr != nil {
		t.Fatalf("create season: %v", appErr)
	}
	draft, appErr := ts.Drafts.CreateDraft(season.ID)
	if appErr != nil {
		t.Fatalf("create draft: %v", appErr)
	}

	if _, _, appErr := ts.Ceremonies.Lock(ceremonyID, "tester"); appErr != nil {
		t.Fatalf("lock: %v", appErr)
	}

	_, appErr = ts.Drafts.StartDraft(draft.ID, "user-x")
	wantCode(t, appErr, utils.CodeDraftsLocked)

	// New drafts cannot even be created once locked.
	_, appErr = ts.Drafts.CreateDraft(season.ID)
	wantCode(t, appErr, utils.CodeDraftsLocked)
}

func TestNominationStatusChangeWritesLedger(t *testing.T) {
	ts := newTestStack(t)
	_, _, nominationID := ts.seedPublishedCeremony(t)

	nomination, appErr := ts.Nominations.ChangeStatus(nominationID, statusChangeInput{
		Action: "REVOKE",
		Origin: "EXTERNAL",
		Impact: "CONSEQUENTIAL",
		Reason: "academy ruling disqualified the film",
	}, "tester")
	if appErr != nil {
		t.Fatalf("revoke: %v", appErr)
	}
	if nomination.Status != models.NominationStatusRevoked {
		t.Fatalf("status = %s", nomination.Status)
	}

	var audits []models.NominationChangeAudit
	if err := ts.DB.Where("nomination_id = ?", nominationID).Find(&audits).Error; err != nil {
		t.Fatalf("load audits: %v", err)
	}
	if len(audits) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(audits))
	}
	if audits[0].Action != "REVOKE" || audits[0].Origin != models.ChangeOriginExternal {
		t.Fatalf("unexpected audit row: %+v", audits[0])
	}

	// Double revoke is a conflict and must not add a second ledger row.
	_, appErr = ts.Nominations.ChangeStatus(nominationID, statusChangeInput{
		Action: "REVOKE",
		Origin: "INTERNAL",
		Impact: "BENIGN",
		Reason: "revoking a second time for fun",
	}, "tester")
	wantCode(t, appErr, utils.CodeInvalidTransition)

	var count int64
	if err := ts.DB.Model(&models.NominationChangeAudit{}).
		Where("nomination_id = ?", nominationID).Count(&count).Error; err != nil {
		t.Fatalf("count audits: %v", err)
	}
	if count != 1 {
		t.Fatalf("ledger rows = %d after rejected change", count)
	}

	// Restore brings it back and appends a second row.
	restored, appErr := ts.Nominations.ChangeStatus(nominationID, statusChangeInput{
		Action: "RESTORE",
		Origin: "INTERNAL",
		Impact: "BENIGN",
		Reason: "ruling overturned on appeal",
	}, "tester")
	if appErr != nil {
		t.Fatalf("restore: %v", appErr)
	}
	if restored.Status != models.NominationStatusActive || restored.ReplacedByNominationID != nil {
		t.Fatalf("restore left %+v", restored)
	}
}

func TestStructuralEditGates(t *testing.T) {
	ts := newTestStack(t)

	ceremony, appErr := ts.Ceremonies.Create("Gated Awards", "", 2026, time.Now(), nil)
	if appErr != nil {
		t.Fatalf("create: %v", appErr)
	}
	category, appErr := ts.Nominations.CreateCategory(ceremony.ID, "Best Picture", "FILM", 0, "tester")
	if appErr != nil {
		t.Fatalf("create category: %v", appErr)
	}
	film := ts.seedFilm(t, "Gated Film", nil)
	nomination, appErr := ts.Nominations.CreateNomination(createNominationInput{
		CategoryEditionID: category.ID,
		FilmID:            &film,
	}, "tester")
	if appErr != nil {
		t.Fatalf("create nomination: %v", appErr)
	}

	// Deleting a category that still has nominees is refused while DRAFT.
	appErr = ts.Nominations.DeleteCategory(category.ID, "tester")
	wantCode(t, appErr, utils.CodeCategoryHasNominees)

	if _, appErr := ts.Ceremonies.Publish(ceremony.ID, "tester"); appErr != nil {
		t.Fatalf("publish: %v", appErr)
	}

	// After publish every structural edit is CEREMONY_NOT_DRAFT.
	appErr = ts.Nominations.DeleteNomination(nomination.ID, "tester")
	wantCode(t, appErr, utils.CodeCeremonyNotDraft)
	appErr = ts.Nominations.Reorder(category.ID, []string{nomination.ID}, "tester")
	wantCode(t, appErr, utils.CodeCeremonyNotDraft)
}

func TestDeleteCeremonyOnlyWhileDraft(t *testing.T) {
	ts := newTestStack(t)
	ceremonyID, _, _ := ts.seedPublishedCeremony(t)

	appErr := ts.Ceremonies.Delete(ceremonyID, "tester")
	wantCode(t, appErr, utils.CodeCeremonyNotDraft)

	draft, cerr := ts.Ceremonies.Create("Disposable", "", 2026, time.Now(), nil)
	if cerr != nil {
		t.Fatalf("create: %v", cerr)
	}
	if appErr := ts.Ceremonies.Delete(draft.ID, "tester"); appErr != nil {
		t.Fatalf("delete: %v", appErr)
	}
	var count int64
	if err := ts.DB.Model(&models.Ceremony{}).Where("id = ?", draft.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatal("ceremony row survived delete")
	}
}

func TestMergeFilms(t *testing.T) {
	ts := newTestStack(t)
	_, categoryID, _ := ts.seedPublishedCeremony(t)

	tmdbID := int64(603)
	canonical := ts.seedFilm(t, "The Matrix", nil)
	duplicate := ts.seedFilm(t, "the MATRIX ", &tmdbID)

	// A nomination referencing the duplicate, seeded directly.
	nom := models.Nomination{
		ID:                "nom-dup",
		CategoryEditionID: categoryID,
		FilmID:            &duplicate,
		Status:            models.NominationStatusActive,
	}
	if err := ts.DB.Create(&nom).Error; err != nil {
		t.Fatalf("seed nomination: %v", err)
	}

	result, appErr := ts.Merges.MergeFilms(canonical, []string{duplicate}, "tester")
	if appErr != nil {
		t.Fatalf("merge: %v", appErr)
	}
	if result.NominationsRepointed != 1 {
		t.Fatalf("nominations repointed = %d", result.NominationsRepointed)
	}
	if !result.AdoptedTMDBID {
		t.Fatal("canonical should adopt the duplicate's tmdb id")
	}

	var moved models.Nomination
	if err := ts.DB.First(&moved, "id = ?", nom.ID).Error; err != nil {
		t.Fatalf("load nomination: %v", err)
	}
	if moved.FilmID == nil || *moved.FilmID != canonical {
		t.Fatalf("nomination still points at %v", moved.FilmID)
	}

	var gone int64
	if err := ts.DB.Model(&models.Film{}).Where("id = ?", duplicate).Count(&gone).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if gone != 0 {
		t.Fatal("duplicate film survived the merge")
	}

	var kept models.Film
	if err := ts.DB.First(&kept, "id = ?", canonical).Error; err != nil {
		t.Fatalf("load canonical: %v", err)
	}
	if kept.TMDBID == nil || *kept.TMDBID != tmdbID {
		t.Fatalf("canonical tmdb id = %v", kept.TMDBID)
	}

	// Re-running the merge fails cleanly: the duplicate is gone.
	_, appErr = ts.Merges.MergeFilms(canonical, []string{duplicate}, "tester")
	wantCode(t, appErr, utils.CodeNotFound)
}

func TestMergeFilmsRejectsDifferentTitles(t *testing.T) {
	ts := newTestStack(t)

	a := ts.seedFilm(t, "Heat", nil)
	b := ts.seedFilm(t, "Collateral", nil)

	_, appErr := ts.Merges.MergeFilms(a, []string{b}, "tester")
	wantCode(t, appErr, utils.CodeValidationFailed)
}

func TestMergeFilmsFoldsMultipleDuplicates(t *testing.T) {
	ts := newTestStack(t)
	_, categoryID, _ := ts.seedPublishedCeremony(t)

	tmdbID := int64(27205)
	canonical := ts.seedFilm(t, "Inception", nil)
	dup1 := ts.seedFilm(t, "inception", &tmdbID)
	dup2 := ts.seedFilm(t, "INCEPTION ", nil)

	for i, filmID := range []string{dup1, dup2} {
		id := filmID
		nom := models.Nomination{
			ID:                "nom-multi-" + string(rune('a'+i)),
			CategoryEditionID: categoryID,
			FilmID:            &id,
			Status:            models.NominationStatusActive,
		}
		if err := ts.DB.Create(&nom).Error; err != nil {
			t.Fatalf("seed nomination: %v", err)
		}
	}

	result, appErr := ts.Merges.MergeFilms(canonical, []string{dup1, dup2}, "tester")
	if appErr != nil {
		t.Fatalf("merge: %v", appErr)
	}
	if result.NominationsRepointed != 2 {
		t.Fatalf("nominations repointed = %d", result.NominationsRepointed)
	}
	if !result.AdoptedTMDBID {
		t.Fatal("canonical should adopt dup1's tmdb id")
	}

	var survivors int64
	if err := ts.DB.Model(&models.Film{}).
		Where("id IN ?", []string{dup1, dup2}).Count(&survivors).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if survivors != 0 {
		t.Fatalf("%d duplicate films survived the merge", survivors)
	}
}

func TestMergeFilmsRollsBackWhenOneDuplicateMismatches(t *testing.T) {
	ts := newTestStack(t)

	canonical := ts.seedFilm(t, "Arrival", nil)
	good := ts.seedFilm(t, "arrival", nil)
	bad := ts.seedFilm(t, "Sicario", nil)

	_, appErr := ts.Merges.MergeFilms(canonical, []string{good, bad}, "tester")
	wantCode(t, appErr, utils.CodeValidationFailed)

	// The matching duplicate must survive; the merge is all-or-nothing.
	var count int64
	if err := ts.DB.Model(&models.Film{}).Where("id = ?", good).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatal("matching duplicate was deleted despite the failed merge")
	}
}

func TestSubmitPickConcurrentDuplicateRequests(t *testing.T) {
	ts := newTestStack(t)
	ceremonyID, _, nominationID := ts.seedPublishedCeremony(t)
	draftID, users := ts.seedStartedDraft(t, ceremonyID, 1)

	type outcome struct {
		pick    *models.DraftPick
		created bool
		appErr  *utils.AppError
	}
	outcomes := make([]outcome, 2)
	var wg sync.WaitGroup
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pick, created, appErr := ts.Drafts.SubmitPick(draftID, "req-race", users[0], nominationID)
			outcomes[i] = outcome{pick: pick, created: created, appErr: appErr}
		}(i)
	}
	wg.Wait()

	createdCount := 0
	for i, out := range outcomes {
		if out.appErr != nil {
			t.Fatalf("submission %d failed: %v", i, out.appErr)
		}
		if out.created {
			createdCount++
		}
	}
	if createdCount != 1 {
		t.Fatalf("expected exactly one insert, got %d", createdCount)
	}
	if outcomes[0].pick.ID != outcomes[1].pick.ID {
		t.Fatalf("race produced two picks: %s vs %s", outcomes[0].pick.ID, outcomes[1].pick.ID)
	}

	// The pointer advanced exactly once.
	var draft models.Draft
	if err := ts.DB.First(&draft, "id = ?", draftID).Error; err != nil {
		t.Fatalf("load draft: %v", err)
	}
	if draft.CurrentPickNumber != 2 {
		t.Fatalf("current_pick_number = %d", draft.CurrentPickNumber)
	}
}
