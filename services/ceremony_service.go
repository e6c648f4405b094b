package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"award-draft-system/models"
	"award-draft-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CeremonyService owns the ceremony lifecycle state machine. Every mutation
// runs as one transaction; realtime events are emitted only after commit.
type CeremonyService struct {
	DB     *gorm.DB
	Audit  *AuditService
	Notify *NotifyService
	Config *ConfigService
}

func NewCeremonyService(db *gorm.DB, audit *AuditService, notify *NotifyService, config *ConfigService) *CeremonyService {
	return &CeremonyService{DB: db, Audit: audit, Notify: notify, Config: config}
}

// Create inserts a new ceremony in DRAFT. When no code is supplied one is
// derived from name and year.
func (s *CeremonyService) Create(name, code string, year int, startsAt time.Time, publishSchedule *time.Time) (*models.Ceremony, *utils.AppError) {
	if name == "" {
		return nil, utils.ValidationError("name is required", "name")
	}
	if code == "" {
		code = slug.Make(fmt.Sprintf("%s-%d", name, year))
	}
	ceremony := &models.Ceremony{
		ID:              uuid.NewString(),
		Code:            code,
		Name:            name,
		Year:            year,
		StartsAt:        startsAt,
		Status:          models.CeremonyStatusDraft,
		PublishSchedule: publishSchedule,
	}
	if err := s.DB.Create(ceremony).Error; err != nil {
		return nil, utils.FromDB(err)
	}
	return ceremony, nil
}

// ceremonyPatch lists every updatable ceremony field explicitly. Present
// fields are applied in a fixed order; absent fields are left untouched.
type ceremonyPatch struct {
	Name            *string    `json:"name"`
	Code            *string    `json:"code"`
	Year            *int       `json:"year"`
	StartsAt        *time.Time `json:"starts_at"`
	PublishSchedule *time.Time `json:"publish_schedule"`
}

func (p *ceremonyPatch) updates() map[string]interface{} {
	updates := map[string]interface{}{}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.Code != nil {
		updates["code"] = *p.Code
	}
	if p.Year != nil {
		updates["year"] = *p.Year
	}
	if p.StartsAt != nil {
		updates["starts_at"] = *p.StartsAt
	}
	if p.PublishSchedule != nil {
		updates["publish_schedule"] = *p.PublishSchedule
	}
	return updates
}

// Update applies a typed patch. Allowed while DRAFT or PUBLISHED; the code is
// part of the published shape and only changes while DRAFT.
func (s *CeremonyService) Update(id string, patch ceremonyPatch) (*models.Ceremony, *utils.AppError) {
	var ceremony models.Ceremony
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ceremony, "id = ?", id).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		switch ceremony.Status {
		case models.CeremonyStatusDraft:
		case models.CeremonyStatusPublished:
			if patch.Code != nil {
				appErr = utils.ConflictError(utils.CodeCeremonyNotDraft, "code cannot change after publish")
				return appErr
			}
		case models.CeremonyStatusArchived:
			appErr = utils.ConflictError(utils.CodeCeremonyArchived, "ceremony is archived and read-only")
			return appErr
		default:
			appErr = utils.ConflictError(utils.CodeCeremonyNotDraft, "ceremony is locked")
			return appErr
		}
		updates := patch.updates()
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&ceremony).Updates(updates).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		return nil
	})
	if appErr != nil {
		return nil, appErr
	}
	if err != nil {
		return nil, utils.FromDB(err)
	}
	return &ceremony, nil
}

// Publish moves DRAFT -> PUBLISHED after checking the ceremony is complete:
// code and name present, at least one category, every category carrying at
// least one ACTIVE nomination. published_at is set once.
func (s *CeremonyService) Publish(id, actorID string) (*models.Ceremony, *utils.AppError) {
	var ceremony models.Ceremony
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ceremony, "id = ?", id).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		switch ceremony.Status {
		case models.CeremonyStatusDraft:
		case models.CeremonyStatusArchived:
			appErr = utils.ConflictError(utils.CodeCeremonyArchived, "ceremony is archived and read-only")
			return appErr
		default:
			appErr = utils.ConflictError(utils.CodeCeremonyNotDraft, "only a DRAFT ceremony can be published")
			return appErr
		}
		if incomplete := publishPreconditions(tx, &ceremony); incomplete != nil {
			appErr = incomplete
			return appErr
		}

		now := time.Now()
		updates := map[string]interface{}{"status": models.CeremonyStatusPublished}
		if ceremony.PublishedAt == nil {
			updates["published_at"] = &now
		}
		if err := tx.Model(&ceremony).Updates(updates).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		return nil
	})
	if appErr != nil {
		return nil, appErr
	}
	if err != nil {
		return nil, utils.FromDB(err)
	}

	s.Audit.Record(actorID, "ceremony.publish", "ceremony", ceremony.ID, nil)
	s.Notify.Emit(EventCeremonyPublished, ceremony.ID, fiber.Map{"code": ceremony.Code})
	return &ceremony, nil
}

// publishPreconditions returns a structured CEREMONY_INCOMPLETE error naming
// whatever is missing, or nil when the ceremony is publishable.
func publishPreconditions(tx *gorm.DB, ceremony *models.Ceremony) *utils.AppError {
	if ceremony.Code == "" || ceremony.Name == "" {
		return utils.ConflictError(utils.CodeCeremonyIncomplete, "ceremony needs a code and a name before publish").
			WithDetails(map[string]interface{}{"missing": "code/name"})
	}
	var categories []models.CategoryEdition
	if err := tx.Where("ceremony_id = ?", ceremony.ID).Find(&categories).Error; err != nil {
		return utils.FromDB(err)
	}
	if len(categories) == 0 {
		return utils.ConflictError(utils.CodeCeremonyIncomplete, "ceremony has no categories").
			WithDetails(map[string]interface{}{"missing": "categories"})
	}
	var empty []string
	for _, cat := range categories {
		var count int64
		if err := tx.Model(&models.Nomination{}).
			Where("category_edition_id = ? AND status = ?", cat.ID, models.NominationStatusActive).
			Count(&count).Error; err != nil {
			return utils.FromDB(err)
		}
		if count == 0 {
			empty = append(empty, cat.Name)
		}
	}
	if len(empty) > 0 {
		return utils.ConflictError(utils.CodeCeremonyIncomplete, "every category needs at least one active nomination").
			WithDetails(map[string]interface{}{"empty_categories": empty})
	}
	return nil
}

// Lock freezes every draft under the ceremony. Idempotent: re-locking an
// already LOCKED ceremony reuses the existing draft_locked_at and cancels
// nothing new.
func (s *CeremonyService) Lock(id, actorID string) (*models.Ceremony, int64, *utils.AppError) {
	var ceremony models.Ceremony
	var cancelled int64
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ceremony, "id = ?", id).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		switch ceremony.Status {
		case models.CeremonyStatusPublished, models.CeremonyStatusLocked:
		case models.CeremonyStatusDraft:
			appErr = utils.ConflictError(utils.CodeCeremonyNotPublished, "ceremony must be published before locking")
			return appErr
		case models.CeremonyStatusArchived:
			appErr = utils.ConflictError(utils.CodeCeremonyArchived, "ceremony is archived and read-only")
			return appErr
		default:
			appErr = utils.ConflictError(utils.CodeCeremonyArchived, "ceremony is finalized and read-only")
			return appErr
		}
		var lockErr *utils.AppError
		_, cancelled, lockErr = lockCeremonyDrafts(tx, &ceremony)
		if lockErr != nil {
			appErr = lockErr
			return appErr
		}
		return nil
	})
	if appErr != nil {
		return nil, 0, appErr
	}
	if err != nil {
		return nil, 0, utils.FromDB(err)
	}

	s.Audit.Record(actorID, "ceremony.lock", "ceremony", ceremony.ID,
		map[string]interface{}{"cancelled_drafts": cancelled})
	s.Notify.Emit(EventWinnersUpdated, ceremony.ID, fiber.Map{"locked": true})
	return &ceremony, cancelled, nil
}

// Archive moves LOCKED -> ARCHIVED. Archived ceremonies are permanently
// read-only; archived_at is set once.
func (s *CeremonyService) Archive(id, actorID string) (*models.Ceremony, *utils.AppError) {
	var ceremony models.Ceremony
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ceremony, "id = ?", id).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if ceremony.Status != models.CeremonyStatusLocked {
			if ceremony.Status == models.CeremonyStatusArchived {
				appErr = utils.ConflictError(utils.CodeCeremonyArchived, "ceremony is already archived")
			} else {
				appErr = utils.ConflictError(utils.CodeCeremonyNotLocked, "only a LOCKED ceremony can be archived")
			}
			return appErr
		}
		now := time.Now()
		updates := map[string]interface{}{"status": models.CeremonyStatusArchived}
		if ceremony.ArchivedAt == nil {
			updates["archived_at"] = &now
		}
		if err := tx.Model(&ceremony).Updates(updates).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		return nil
	})
	if appErr != nil {
		return nil, appErr
	}
	if err != nil {
		return nil, utils.FromDB(err)
	}

	s.Audit.Record(actorID, "ceremony.archive", "ceremony", ceremony.ID, nil)
	return &ceremony, nil
}

// FinalizeWinners closes the season: LOCKED -> COMPLETE, requiring at least
// one recorded winner.
func (s *CeremonyService) FinalizeWinners(id, actorID string) (*models.Ceremony, *utils.AppError) {
	var ceremony models.Ceremony
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ceremony, "id = ?", id).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if ceremony.Status != models.CeremonyStatusLocked {
			if ceremony.Status == models.CeremonyStatusArchived {
				appErr = utils.ConflictError(utils.CodeCeremonyArchived, "ceremony is archived and read-only")
			} else {
				appErr = utils.ConflictError(utils.CodeCeremonyNotLocked, "only a LOCKED ceremony can be finalized")
			}
			return appErr
		}
		var winners int64
		if err := tx.Model(&models.CeremonyWinner{}).Where("ceremony_id = ?", id).Count(&winners).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if winners == 0 {
			appErr = utils.ConflictError(utils.CodeNoWinners, "no winners recorded for this ceremony")
			return appErr
		}
		if err := tx.Model(&ceremony).Update("status", models.CeremonyStatusComplete).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		return nil
	})
	if appErr != nil {
		return nil, appErr
	}
	if err != nil {
		return nil, utils.FromDB(err)
	}

	s.Audit.Record(actorID, "ceremony.finalize", "ceremony", ceremony.ID, nil)
	s.Notify.Emit(EventCeremonyFinalized, ceremony.ID, nil)
	return &ceremony, nil
}

// Delete removes a DRAFT ceremony and everything hanging off it, in foreign
// key order, and detaches the active-ceremony pointer if it referenced it.
func (s *CeremonyService) Delete(id, actorID string) *utils.AppError {
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var ceremony models.Ceremony
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ceremony, "id = ?", id).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if ceremony.Status != models.CeremonyStatusDraft {
			appErr = utils.ConflictError(utils.CodeCeremonyNotDraft, "only a DRAFT ceremony can be deleted")
			return appErr
		}

		var nominationIDs []string
		if err := tx.Model(&models.Nomination{}).
			Where("category_edition_id IN (?)",
				tx.Model(&models.CategoryEdition{}).Select("id").Where("ceremony_id = ?", id)).
			Pluck("id", &nominationIDs).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}

		// Leaves first: picks -> seats -> drafts -> seasons, then the
		// nomination graph, then categories and the ceremony itself.
		steps := []func() error{
			func() error {
				return tx.Where("draft_id IN (?)",
					tx.Model(&models.Draft{}).Select("id").Where("ceremony_id = ?", id)).
					Delete(&models.DraftPick{}).Error
			},
			func() error {
				return tx.Where("draft_id IN (?)",
					tx.Model(&models.Draft{}).Select("id").Where("ceremony_id = ?", id)).
					Delete(&models.DraftSeat{}).Error
			},
			func() error { return tx.Where("ceremony_id = ?", id).Delete(&models.Draft{}).Error },
			func() error { return tx.Where("ceremony_id = ?", id).Delete(&models.Season{}).Error },
			func() error { return tx.Where("ceremony_id = ?", id).Delete(&models.CeremonyWinner{}).Error },
			func() error {
				if len(nominationIDs) == 0 {
					return nil
				}
				return tx.Where("nomination_id IN ?", nominationIDs).Delete(&models.NominationChangeAudit{}).Error
			},
			func() error {
				if len(nominationIDs) == 0 {
					return nil
				}
				return tx.Where("nomination_id IN ?", nominationIDs).Delete(&models.NominationContributor{}).Error
			},
			func() error {
				if len(nominationIDs) == 0 {
					return nil
				}
				return tx.Where("id IN ?", nominationIDs).Delete(&models.Nomination{}).Error
			},
			func() error { return tx.Where("ceremony_id = ?", id).Delete(&models.CategoryEdition{}).Error },
			func() error { return tx.Where("ceremony_id = ?", id).Delete(&models.RealtimeEvent{}).Error },
			func() error { return s.Config.DetachActiveCeremony(tx, id) },
			func() error { return tx.Delete(&models.Ceremony{}, "id = ?", id).Error },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				appErr = utils.FromDB(err)
				return appErr
			}
		}
		return nil
	})
	if appErr != nil {
		return appErr
	}
	if err != nil {
		return utils.FromDB(err)
	}

	s.Audit.Record(actorID, "ceremony.delete", "ceremony", id, nil)
	return nil
}

// --- HTTP surface ---

func (s *CeremonyService) CreateCeremony(c *fiber.Ctx) error {
	type Req struct {
		Name            string     `json:"name"`
		Code            string     `json:"code"`
		Year            int        `json:"year"`
		StartsAt        *time.Time `json:"starts_at"`
		PublishSchedule *time.Time `json:"publish_schedule"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	var startsAt time.Time
	if req.StartsAt != nil {
		startsAt = *req.StartsAt
	}
	ceremony, appErr := s.Create(req.Name, req.Code, req.Year, startsAt, req.PublishSchedule)
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	s.Audit.Record(actorID(c), "ceremony.create", "ceremony", ceremony.ID, nil)
	return c.Status(201).JSON(ceremony)
}

func (s *CeremonyService) UpdateCeremony(c *fiber.Ctx) error {
	var patch ceremonyPatch
	if err := c.BodyParser(&patch); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	ceremony, appErr := s.Update(c.Params("id"), patch)
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	s.Audit.Record(actorID(c), "ceremony.update", "ceremony", ceremony.ID, nil)
	return c.JSON(ceremony)
}

func (s *CeremonyService) PublishCeremony(c *fiber.Ctx) error {
	ceremony, appErr := s.Publish(c.Params("id"), actorID(c))
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(ceremony)
}

func (s *CeremonyService) LockCeremony(c *fiber.Ctx) error {
	ceremony, cancelled, appErr := s.Lock(c.Params("id"), actorID(c))
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(fiber.Map{
		"ceremony":               ceremony,
		"draft_locked_at":        ceremony.DraftLockedAt,
		"cancelled_drafts_count": cancelled,
	})
}

func (s *CeremonyService) ArchiveCeremony(c *fiber.Ctx) error {
	ceremony, appErr := s.Archive(c.Params("id"), actorID(c))
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(ceremony)
}

func (s *CeremonyService) FinalizeCeremonyWinners(c *fiber.Ctx) error {
	ceremony, appErr := s.FinalizeWinners(c.Params("id"), actorID(c))
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(ceremony)
}

func (s *CeremonyService) DeleteCeremony(c *fiber.Ctx) error {
	if appErr := s.Delete(c.Params("id"), actorID(c)); appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(fiber.Map{"message": "ceremony deleted"})
}

func (s *CeremonyService) GetCeremonyByID(c *fiber.Ctx) error {
	var ceremony models.Ceremony
	err := s.DB.
		Preload("Categories", func(db *gorm.DB) *gorm.DB {
			return db.Order("\"sort_order\" ASC")
		}).
		Preload("Categories.Nominations", func(db *gorm.DB) *gorm.DB {
			return db.Order("\"sort_order\" ASC")
		}).
		Preload("Winners").
		First(&ceremony, "id = ?", c.Params("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Respond(c, utils.NotFoundError("ceremony"))
		}
		log.Printf("[CEREMONY] fetch %s failed: %v", c.Params("id"), err)
		return utils.Respond(c, utils.FromDB(err))
	}
	return c.JSON(ceremony)
}

func (s *CeremonyService) GetAllCeremonies(c *fiber.Ctx) error {
	var ceremonies []models.Ceremony
	if err := s.DB.Order("year DESC, starts_at DESC").Find(&ceremonies).Error; err != nil {
		log.Printf("[CEREMONY] list failed: %v", err)
		return utils.Respond(c, utils.FromDB(err))
	}
	return c.JSON(ceremonies)
}

// UploadArtwork replaces the ceremony artwork, storing the image in R2.
func (s *CeremonyService) UploadArtwork(c *fiber.Ctx) error {
	id := c.Params("id")
	var ceremony models.Ceremony
	if err := s.DB.First(&ceremony, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Respond(c, utils.NotFoundError("ceremony"))
		}
		return utils.Respond(c, utils.FromDB(err))
	}
	if ceremony.Status == models.CeremonyStatusArchived {
		return utils.Respond(c, utils.ConflictError(utils.CodeCeremonyArchived, "ceremony is archived and read-only"))
	}
	file, err := c.FormFile("artwork")
	if err != nil || file.Size == 0 {
		return utils.Respond(c, utils.ValidationError("artwork file is required", "artwork"))
	}
	ext := filepath.Ext(file.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	url, err := utils.UploadFileToR2(file, "ceremonies/artwork/"+uuid.NewString()+ext)
	if err != nil {
		log.Printf("[CEREMONY] artwork upload failed for %s: %v", id, err)
		return utils.Respond(c, utils.InternalError("failed to upload artwork"))
	}
	if err := s.DB.Model(&ceremony).Update("artwork_url", url).Error; err != nil {
		return utils.Respond(c, utils.FromDB(err))
	}
	return c.JSON(fiber.Map{"artwork_url": url})
}

// actorID pulls the authenticated user from the request context; empty when
// the route is unauthenticated.
func actorID(c *fiber.Ctx) string {
	if v, ok := c.Locals("user_id").(string); ok {
		return v
	}
	return ""
}
