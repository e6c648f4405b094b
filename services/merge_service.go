package services

import (
	"errors"
	"log"

	"award-draft-system/models"
	"award-draft-system/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MergeService collapses duplicate films and people into a canonical row.
// A merge takes one canonical id and an ordered list of duplicates; every
// duplicate is folded in turn inside a single transaction, so either all
// of them collapse or none do. Folding repoints every referencing table,
// resolves collisions the unique indexes would otherwise reject, and
// deletes the duplicate. Running the same merge twice fails on the first
// already-deleted duplicate.
type MergeService struct {
	DB    *gorm.DB
	Audit *AuditService
}

func NewMergeService(db *gorm.DB, audit *AuditService) *MergeService {
	return &MergeService{DB: db, Audit: audit}
}

// MergeFilmsResult reports the summed per-table effect of one merge call.
type MergeFilmsResult struct {
	CanonicalFilmID       string   `json:"canonical_film_id"`
	DeletedFilmIDs        []string `json:"deleted_film_ids"`
	NominationsRepointed  int64    `json:"nominations_repointed"`
	SongsRepointed        int64    `json:"songs_repointed"`
	PerformancesRepointed int64    `json:"performances_repointed"`
	PerformancesMerged    int64    `json:"performances_merged"`
	CreditsRepointed      int64    `json:"credits_repointed"`
	CreditsDeduped        int64    `json:"credits_deduped"`
	AdoptedTMDBID         bool     `json:"adopted_tmdb_id"`
}

// MergeFilms folds every duplicate into canonical, in order. Each
// duplicate's title must normalize to the canonical's identity; merging
// genuinely different films is refused and rolls back the whole call.
func (s *MergeService) MergeFilms(canonicalID string, duplicateIDs []string, actorID string) (*MergeFilmsResult, *utils.AppError) {
	if appErr := validateMergeIDs(canonicalID, duplicateIDs); appErr != nil {
		return nil, appErr
	}

	result := MergeFilmsResult{CanonicalFilmID: canonicalID, DeletedFilmIDs: duplicateIDs}
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var canonical models.Film
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&canonical, "id = ?", canonicalID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		for _, duplicateID := range duplicateIDs {
			if appErr = s.foldFilm(tx, &canonical, duplicateID, &result); appErr != nil {
				return appErr
			}
		}
		return nil
	})
	if appErr != nil {
		return nil, appErr
	}
	if err != nil {
		return nil, utils.FromDB(err)
	}

	log.Printf("[MERGE] %d film(s) folded into %s (nominations=%d songs=%d performances=%d+%d credits=%d+%d)",
		len(duplicateIDs), canonicalID,
		result.NominationsRepointed, result.SongsRepointed,
		result.PerformancesRepointed, result.PerformancesMerged,
		result.CreditsRepointed, result.CreditsDeduped)
	s.Audit.Record(actorID, "film.merge", "film", canonicalID,
		map[string]interface{}{"deleted_film_ids": duplicateIDs})
	return &result, nil
}

// foldFilm collapses one duplicate into the locked canonical row within
// the caller's transaction, accumulating counts into result.
func (s *MergeService) foldFilm(tx *gorm.DB, canonical *models.Film, duplicateID string, result *MergeFilmsResult) *utils.AppError {
	var duplicate models.Film
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&duplicate, "id = ?", duplicateID).Error; err != nil {
		return utils.FromDB(err)
	}
	if utils.NormalizeTitle(canonical.Title) != utils.NormalizeTitle(duplicate.Title) {
		return utils.ValidationError("films do not share a title identity").
			WithDetails(map[string]interface{}{
				"canonical_title": canonical.Title,
				"duplicate_title": duplicate.Title,
			})
	}

	// Nominations pointing at the duplicate move over as-is.
	res := tx.Model(&models.Nomination{}).
		Where("film_id = ?", duplicateID).
		Update("film_id", canonical.ID)
	if res.Error != nil {
		return utils.FromDB(res.Error)
	}
	result.NominationsRepointed += res.RowsAffected

	res = tx.Model(&models.Song{}).
		Where("film_id = ?", duplicateID).
		Update("film_id", canonical.ID)
	if res.Error != nil {
		return utils.FromDB(res.Error)
	}
	result.SongsRepointed += res.RowsAffected

	// Performances need collision handling: (film, person) is unique, so
	// when both films carry the same person, the duplicate's performance
	// merges into the canonical one instead of being repointed.
	var dupPerformances []models.Performance
	if err := tx.Where("film_id = ?", duplicateID).Find(&dupPerformances).Error; err != nil {
		return utils.FromDB(err)
	}
	for _, perf := range dupPerformances {
		var existing models.Performance
		err := tx.Where("film_id = ? AND person_id = ?", canonical.ID, perf.PersonID).
			First(&existing).Error
		if err == nil {
			// Collision. Repoint the nominations and drop the orphan.
			if err := tx.Model(&models.Nomination{}).
				Where("performance_id = ?", perf.ID).
				Update("performance_id", existing.ID).Error; err != nil {
				return utils.FromDB(err)
			}
			if err := tx.Delete(&models.Performance{}, "id = ?", perf.ID).Error; err != nil {
				return utils.FromDB(err)
			}
			result.PerformancesMerged++
		} else if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Model(&models.Performance{}).
				Where("id = ?", perf.ID).
				Update("film_id", canonical.ID).Error; err != nil {
				return utils.FromDB(err)
			}
			result.PerformancesRepointed++
		} else {
			return utils.FromDB(err)
		}
	}

	deduped, repointed, creditErr := dedupeAndRepointCredits(tx, "film_id", canonical.ID, duplicateID)
	if creditErr != nil {
		return creditErr
	}
	result.CreditsDeduped += deduped
	result.CreditsRepointed += repointed

	// The canonical row inherits the first external link found among the
	// duplicates if it has none of its own. Doing this before the delete
	// would trip the unique index, so clear the duplicate first.
	if canonical.TMDBID == nil && duplicate.TMDBID != nil {
		adopted := *duplicate.TMDBID
		if err := tx.Model(&duplicate).Update("tmdb_id", nil).Error; err != nil {
			return utils.FromDB(err)
		}
		if err := tx.Model(canonical).Update("tmdb_id", adopted).Error; err != nil {
			return utils.FromDB(err)
		}
		canonical.TMDBID = &adopted
		result.AdoptedTMDBID = true
	}

	if err := tx.Delete(&models.Film{}, "id = ?", duplicateID).Error; err != nil {
		return utils.FromDB(err)
	}
	return nil
}

// MergePeopleResult reports the summed per-table effect of one merge call.
type MergePeopleResult struct {
	CanonicalPersonID     string   `json:"canonical_person_id"`
	DeletedPersonIDs      []string `json:"deleted_person_ids"`
	PerformancesRepointed int64    `json:"performances_repointed"`
	PerformancesMerged    int64    `json:"performances_merged"`
	ContributorsRepointed int64    `json:"contributors_repointed"`
	CreditsRepointed      int64    `json:"credits_repointed"`
	CreditsDeduped        int64    `json:"credits_deduped"`
	AdoptedTMDBID         bool     `json:"adopted_tmdb_id"`
}

// MergePeople folds every duplicate into canonical under the same
// name-identity rule films use for titles.
func (s *MergeService) MergePeople(canonicalID string, duplicateIDs []string, actorID string) (*MergePeopleResult, *utils.AppError) {
	if appErr := validateMergeIDs(canonicalID, duplicateIDs); appErr != nil {
		return nil, appErr
	}

	result := MergePeopleResult{CanonicalPersonID: canonicalID, DeletedPersonIDs: duplicateIDs}
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var canonical models.Person
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&canonical, "id = ?", canonicalID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		for _, duplicateID := range duplicateIDs {
			if appErr = s.foldPerson(tx, &canonical, duplicateID, &result); appErr != nil {
				return appErr
			}
		}
		return nil
	})
	if appErr != nil {
		return nil, appErr
	}
	if err != nil {
		return nil, utils.FromDB(err)
	}

	log.Printf("[MERGE] %d person(s) folded into %s (performances=%d+%d contributors=%d credits=%d+%d)",
		len(duplicateIDs), canonicalID,
		result.PerformancesRepointed, result.PerformancesMerged,
		result.ContributorsRepointed,
		result.CreditsRepointed, result.CreditsDeduped)
	s.Audit.Record(actorID, "person.merge", "person", canonicalID,
		map[string]interface{}{"deleted_person_ids": duplicateIDs})
	return &result, nil
}

func (s *MergeService) foldPerson(tx *gorm.DB, canonical *models.Person, duplicateID string, result *MergePeopleResult) *utils.AppError {
	var duplicate models.Person
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&duplicate, "id = ?", duplicateID).Error; err != nil {
		return utils.FromDB(err)
	}
	if utils.NormalizeTitle(canonical.Name) != utils.NormalizeTitle(duplicate.Name) {
		return utils.ValidationError("people do not share a name identity").
			WithDetails(map[string]interface{}{
				"canonical_name": canonical.Name,
				"duplicate_name": duplicate.Name,
			})
	}

	var dupPerformances []models.Performance
	if err := tx.Where("person_id = ?", duplicateID).Find(&dupPerformances).Error; err != nil {
		return utils.FromDB(err)
	}
	for _, perf := range dupPerformances {
		var existing models.Performance
		err := tx.Where("film_id = ? AND person_id = ?", perf.FilmID, canonical.ID).
			First(&existing).Error
		if err == nil {
			if err := tx.Model(&models.Nomination{}).
				Where("performance_id = ?", perf.ID).
				Update("performance_id", existing.ID).Error; err != nil {
				return utils.FromDB(err)
			}
			if err := tx.Delete(&models.Performance{}, "id = ?", perf.ID).Error; err != nil {
				return utils.FromDB(err)
			}
			result.PerformancesMerged++
		} else if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Model(&models.Performance{}).
				Where("id = ?", perf.ID).
				Update("person_id", canonical.ID).Error; err != nil {
				return utils.FromDB(err)
			}
			result.PerformancesRepointed++
		} else {
			return utils.FromDB(err)
		}
	}

	res := tx.Model(&models.NominationContributor{}).
		Where("person_id = ?", duplicateID).
		Update("person_id", canonical.ID)
	if res.Error != nil {
		return utils.FromDB(res.Error)
	}
	result.ContributorsRepointed += res.RowsAffected

	deduped, repointed, creditErr := dedupeAndRepointCredits(tx, "person_id", canonical.ID, duplicateID)
	if creditErr != nil {
		return creditErr
	}
	result.CreditsDeduped += deduped
	result.CreditsRepointed += repointed

	if canonical.TMDBID == nil && duplicate.TMDBID != nil {
		adopted := *duplicate.TMDBID
		if err := tx.Model(&duplicate).Update("tmdb_id", nil).Error; err != nil {
			return utils.FromDB(err)
		}
		if err := tx.Model(canonical).Update("tmdb_id", adopted).Error; err != nil {
			return utils.FromDB(err)
		}
		canonical.TMDBID = &adopted
		result.AdoptedTMDBID = true
	}

	if err := tx.Delete(&models.Person{}, "id = ?", duplicateID).Error; err != nil {
		return utils.FromDB(err)
	}
	return nil
}

func validateMergeIDs(canonicalID string, duplicateIDs []string) *utils.AppError {
	if canonicalID == "" || len(duplicateIDs) == 0 {
		return utils.ValidationError("canonical_id and duplicate_ids are required")
	}
	seen := map[string]bool{}
	for _, id := range duplicateIDs {
		if id == "" {
			return utils.ValidationError("duplicate_ids must not contain an empty id")
		}
		if id == canonicalID {
			return utils.ValidationError("canonical_id must not appear in duplicate_ids")
		}
		if seen[id] {
			return utils.ValidationError("duplicate_ids must not repeat an id")
		}
		seen[id] = true
	}
	return nil
}

// dedupeAndRepointCredits handles film credits for either merge direction.
// When both sides mirror the same upstream credit (same external id), the
// duplicate side's copy is deleted; everything else is repointed. column is
// "film_id" or "person_id".
func dedupeAndRepointCredits(tx *gorm.DB, column, canonicalID, duplicateID string) (deduped, repointed int64, appErr *utils.AppError) {
	var dupCredits []models.FilmCredit
	if err := tx.Where(column+" = ?", duplicateID).Find(&dupCredits).Error; err != nil {
		return 0, 0, utils.FromDB(err)
	}
	for _, credit := range dupCredits {
		if credit.ExternalCreditID != "" {
			var clash int64
			if err := tx.Model(&models.FilmCredit{}).
				Where(column+" = ? AND external_credit_id = ?", canonicalID, credit.ExternalCreditID).
				Count(&clash).Error; err != nil {
				return deduped, repointed, utils.FromDB(err)
			}
			if clash > 0 {
				if err := tx.Delete(&models.FilmCredit{}, "id = ?", credit.ID).Error; err != nil {
					return deduped, repointed, utils.FromDB(err)
				}
				deduped++
				continue
			}
		}
		if err := tx.Model(&models.FilmCredit{}).
			Where("id = ?", credit.ID).
			Update(column, canonicalID).Error; err != nil {
			return deduped, repointed, utils.FromDB(err)
		}
		repointed++
	}
	return deduped, repointed, nil
}

// --- HTTP surface ---

func (s *MergeService) MergeFilmsEndpoint(c *fiber.Ctx) error {
	type Req struct {
		CanonicalID  string   `json:"canonical_id"`
		DuplicateIDs []string `json:"duplicate_ids"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	result, appErr := s.MergeFilms(req.CanonicalID, req.DuplicateIDs, actorID(c))
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(result)
}

func (s *MergeService) MergePeopleEndpoint(c *fiber.Ctx) error {
	type Req struct {
		CanonicalID  string   `json:"canonical_id"`
		DuplicateIDs []string `json:"duplicate_ids"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	result, appErr := s.MergePeople(req.CanonicalID, req.DuplicateIDs, actorID(c))
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(result)
}
