package services

import (
	"time"

	"award-draft-system/models"
	"award-draft-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WinnerService records official results. Writing the first winner for a
// ceremony triggers the draft-lock cascade inside the same transaction, so a
// reader can never observe winners without the corresponding lock.
type WinnerService struct {
	DB     *gorm.DB
	Audit  *AuditService
	Notify *NotifyService
}

func NewWinnerService(db *gorm.DB, audit *AuditService, notify *NotifyService) *WinnerService {
	return &WinnerService{DB: db, Audit: audit, Notify: notify}
}

// SetWinnersResult is the outcome of one setWinners call.
type SetWinnersResult struct {
	Winners              []models.CeremonyWinner `json:"winners"`
	DraftLockedAt        *time.Time              `json:"draft_locked_at"`
	CancelledDraftsCount int64                   `json:"cancelled_drafts_count"`
}

// SetWinners replaces the winner set for one category and guarantees the
// ceremony is locked afterwards. Idempotent with respect to the lock: a
// second call cancels zero additional drafts and reuses draft_locked_at.
func (s *WinnerService) SetWinners(categoryEditionID string, nominationIDs []string, actorID string) (*SetWinnersResult, *utils.AppError) {
	if categoryEditionID == "" {
		return nil, utils.ValidationError("category_edition_id is required", "category_edition_id")
	}
	if len(nominationIDs) == 0 {
		return nil, utils.ValidationError("at least one nomination_id is required", "nomination_ids")
	}

	var result SetWinnersResult
	var ceremonyID string
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var category models.CategoryEdition
		if err := tx.First(&category, "id = ?", categoryEditionID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}

		// Serialize concurrent setWinners/lock calls on the ceremony row.
		var ceremony models.Ceremony
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&ceremony, "id = ?", category.CeremonyID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		ceremonyID = ceremony.ID
		switch ceremony.Status {
		case models.CeremonyStatusPublished, models.CeremonyStatusLocked:
		case models.CeremonyStatusDraft:
			appErr = utils.ConflictError(utils.CodeCeremonyNotPublished, "ceremony is not published yet")
			return appErr
		case models.CeremonyStatusArchived:
			appErr = utils.ConflictError(utils.CodeCeremonyArchived, "ceremony is archived and read-only")
			return appErr
		default:
			appErr = utils.ConflictError(utils.CodeCeremonyArchived, "ceremony winners are finalized")
			return appErr
		}

		// Winners must be nominations of this very category.
		var count int64
		if err := tx.Model(&models.Nomination{}).
			Where("id IN ? AND category_edition_id = ?", nominationIDs, categoryEditionID).
			Count(&count).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if count != int64(len(nominationIDs)) {
			appErr = utils.ValidationError("every winner must be a nomination of the category", "nomination_ids")
			return appErr
		}

		if err := tx.Where("ceremony_id = ? AND category_edition_id = ?",
			ceremony.ID, categoryEditionID).Delete(&models.CeremonyWinner{}).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		for _, nominationID := range nominationIDs {
			winner := models.CeremonyWinner{
				ID:                uuid.NewString(),
				CeremonyID:        ceremony.ID,
				CategoryEditionID: categoryEditionID,
				NominationID:      nominationID,
			}
			if err := tx.Create(&winner).Error; err != nil {
				appErr = utils.FromDB(err)
				return appErr
			}
			result.Winners = append(result.Winners, winner)
		}

		lockedAt, cancelled, lockErr := lockCeremonyDrafts(tx, &ceremony)
		if lockErr != nil {
			appErr = lockErr
			return appErr
		}
		result.DraftLockedAt = &lockedAt
		result.CancelledDraftsCount = cancelled
		return nil
	})
	if appErr != nil {
		return nil, appErr
	}
	if err != nil {
		return nil, utils.FromDB(err)
	}

	s.Audit.Record(actorID, "ceremony.set_winners", "category_edition", categoryEditionID,
		map[string]interface{}{"winners": len(result.Winners), "cancelled_drafts": result.CancelledDraftsCount})
	s.Notify.Emit(EventWinnersUpdated, ceremonyID, fiber.Map{"category_edition_id": categoryEditionID})
	return &result, nil
}

// lockCeremonyDrafts is the draft-lock cascade shared by the explicit lock
// call and setWinners. The caller must hold a FOR UPDATE lock on the
// ceremony row and must run this inside its own transaction.
//
// Steps, all idempotent:
//  1. draft_locked_at is write-once: first writer wins, later callers reuse it;
//  2. status moves to LOCKED (no-op when already LOCKED);
//  3. every non-terminal draft of the ceremony is cancelled, count returned.
func lockCeremonyDrafts(tx *gorm.DB, ceremony *models.Ceremony) (time.Time, int64, *utils.AppError) {
	if ceremony.DraftLockedAt == nil {
		now := time.Now()
		res := tx.Model(&models.Ceremony{}).
			Where("id = ? AND draft_locked_at IS NULL", ceremony.ID).
			Update("draft_locked_at", &now)
		if res.Error != nil {
			return time.Time{}, 0, utils.FromDB(res.Error)
		}
		if res.RowsAffected == 0 {
			// A concurrent writer got there first; adopt its value.
			var fresh models.Ceremony
			if err := tx.First(&fresh, "id = ?", ceremony.ID).Error; err != nil {
				return time.Time{}, 0, utils.FromDB(err)
			}
			ceremony.DraftLockedAt = fresh.DraftLockedAt
		} else {
			ceremony.DraftLockedAt = &now
		}
	}

	if ceremony.Status != models.CeremonyStatusLocked {
		if err := tx.Model(ceremony).Update("status", models.CeremonyStatusLocked).Error; err != nil {
			return time.Time{}, 0, utils.FromDB(err)
		}
		ceremony.Status = models.CeremonyStatusLocked
	}

	now := time.Now()
	res := tx.Model(&models.Draft{}).
		Where("ceremony_id = ? AND status NOT IN ?", ceremony.ID,
			[]models.DraftStatus{models.DraftStatusCompleted, models.DraftStatusCancelled}).
		Updates(map[string]interface{}{
			"status":       models.DraftStatusCancelled,
			"cancelled_at": &now,
		})
	if res.Error != nil {
		return time.Time{}, 0, utils.FromDB(res.Error)
	}
	return *ceremony.DraftLockedAt, res.RowsAffected, nil
}

// --- HTTP surface ---

func (s *WinnerService) SetCategoryWinners(c *fiber.Ctx) error {
	type Req struct {
		NominationIDs []string `json:"nomination_ids"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	result, appErr := s.SetWinners(c.Params("category_id"), req.NominationIDs, actorID(c))
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(result)
}

func (s *WinnerService) GetCeremonyWinners(c *fiber.Ctx) error {
	var winners []models.CeremonyWinner
	if err := s.DB.Where("ceremony_id = ?", c.Params("id")).
		Order("category_edition_id").Find(&winners).Error; err != nil {
		return utils.Respond(c, utils.FromDB(err))
	}
	return c.JSON(winners)
}
