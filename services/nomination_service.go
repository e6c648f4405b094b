package services

import (
	"fmt"
	"strings"

	"award-draft-system/models"
	"award-draft-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const minStatusChangeReason = 10

// NominationService is the nomination integrity ledger. Structural edits
// (create/delete/reorder/contributors) only while the ceremony is DRAFT and
// no draft has started; status changes (revoke/replace/restore) at any
// ceremony status, always paired with exactly one audit row in the same
// transaction.
type NominationService struct {
	DB    *gorm.DB
	Audit *AuditService
}

func NewNominationService(db *gorm.DB, audit *AuditService) *NominationService {
	return &NominationService{DB: db, Audit: audit}
}

// structuralEditAllowed distinguishes the two refusal reasons so callers can
// tell "wrong lifecycle stage" from "drafting already began".
func structuralEditAllowed(tx *gorm.DB, ceremonyID string) *utils.AppError {
	var ceremony models.Ceremony
	if err := tx.First(&ceremony, "id = ?", ceremonyID).Error; err != nil {
		return utils.FromDB(err)
	}
	if ceremony.Status != models.CeremonyStatusDraft {
		return utils.ConflictError(utils.CodeCeremonyNotDraft, "ceremony is no longer in DRAFT")
	}
	var started int64
	if err := tx.Model(&models.Draft{}).
		Where("ceremony_id = ? AND status <> ?", ceremonyID, models.DraftStatusPending).
		Count(&started).Error; err != nil {
		return utils.FromDB(err)
	}
	if started > 0 {
		return utils.ConflictError(utils.CodeDraftsLocked, "a draft for this ceremony has already started")
	}
	return nil
}

type createNominationInput struct {
	CategoryEditionID string  `json:"category_edition_id"`
	FilmID            *string `json:"film_id"`
	SongID            *string `json:"song_id"`
	PerformanceID     *string `json:"performance_id"`
	SortOrder         int     `json:"sort_order"`
}

// CreateNomination inserts an ACTIVE nomination whose referenced entity
// matches the category's unit kind.
func (s *NominationService) CreateNomination(in createNominationInput, actorID string) (*models.Nomination, *utils.AppError) {
	if in.CategoryEditionID == "" {
		return nil, utils.ValidationError("category_edition_id is required", "category_edition_id")
	}

	var nomination *models.Nomination
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var category models.CategoryEdition
		if err := tx.First(&category, "id = ?", in.CategoryEditionID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if appErr = structuralEditAllowed(tx, category.CeremonyID); appErr != nil {
			return appErr
		}

		switch category.UnitKind {
		case models.UnitKindFilm:
			if in.FilmID == nil || *in.FilmID == "" {
				appErr = utils.ValidationError("film_id is required for a FILM category", "film_id")
				return appErr
			}
			if err := tx.First(&models.Film{}, "id = ?", *in.FilmID).Error; err != nil {
				appErr = utils.FromDB(err)
				return appErr
			}
		case models.UnitKindSong:
			if in.SongID == nil || *in.SongID == "" {
				appErr = utils.ValidationError("song_id is required for a SONG category", "song_id")
				return appErr
			}
			if err := tx.First(&models.Song{}, "id = ?", *in.SongID).Error; err != nil {
				appErr = utils.FromDB(err)
				return appErr
			}
		case models.UnitKindPerformance:
			if in.PerformanceID == nil || *in.PerformanceID == "" {
				appErr = utils.ValidationError("performance_id is required for a PERFORMANCE category", "performance_id")
				return appErr
			}
			if err := tx.First(&models.Performance{}, "id = ?", *in.PerformanceID).Error; err != nil {
				appErr = utils.FromDB(err)
				return appErr
			}
		}

		nomination = &models.Nomination{
			ID:                uuid.NewString(),
			CategoryEditionID: category.ID,
			FilmID:            in.FilmID,
			SongID:            in.SongID,
			PerformanceID:     in.PerformanceID,
			Status:            models.NominationStatusActive,
			SortOrder:         in.SortOrder,
		}
		if err := tx.Create(nomination).Error; err != nil {
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

	s.Audit.Record(actorID, "nomination.create", "nomination", nomination.ID, nil)
	return nomination, nil
}

// DeleteNomination hard-deletes a nomination while its ceremony is still
// DRAFT and nothing has been drafted. There is no cascade at the storage
// layer, so dependent rows go first; a song or performance left without any
// referencing nomination is cleaned up opportunistically.
func (s *NominationService) DeleteNomination(id, actorID string) *utils.AppError {
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var nomination models.Nomination
		if err := tx.First(&nomination, "id = ?", id).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		var category models.CategoryEdition
		if err := tx.First(&category, "id = ?", nomination.CategoryEditionID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if appErr = structuralEditAllowed(tx, category.CeremonyID); appErr != nil {
			return appErr
		}

		if err := tx.Where("nomination_id = ?", id).Delete(&models.NominationContributor{}).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if err := tx.Where("nomination_id = ?", id).Delete(&models.NominationChangeAudit{}).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if err := tx.Delete(&models.Nomination{}, "id = ?", id).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}

		if nomination.SongID != nil {
			var refs int64
			if err := tx.Model(&models.Nomination{}).Where("song_id = ?", *nomination.SongID).Count(&refs).Error; err != nil {
				appErr = utils.FromDB(err)
				return appErr
			}
			if refs == 0 {
				if err := tx.Delete(&models.Song{}, "id = ?", *nomination.SongID).Error; err != nil {
					appErr = utils.FromDB(err)
					return appErr
				}
			}
		}
		if nomination.PerformanceID != nil {
			var refs int64
			if err := tx.Model(&models.Nomination{}).Where("performance_id = ?", *nomination.PerformanceID).Count(&refs).Error; err != nil {
				appErr = utils.FromDB(err)
				return appErr
			}
			if refs == 0 {
				if err := tx.Delete(&models.Performance{}, "id = ?", *nomination.PerformanceID).Error; err != nil {
					appErr = utils.FromDB(err)
					return appErr
				}
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

	s.Audit.Record(actorID, "nomination.delete", "nomination", id, nil)
	return nil
}

// Reorder rewrites sort_order for a category from the given id list.
func (s *NominationService) Reorder(categoryEditionID string, orderedIDs []string, actorID string) *utils.AppError {
	if len(orderedIDs) == 0 {
		return utils.ValidationError("ordered_ids is required", "ordered_ids")
	}
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var category models.CategoryEdition
		if err := tx.First(&category, "id = ?", categoryEditionID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if appErr = structuralEditAllowed(tx, category.CeremonyID); appErr != nil {
			return appErr
		}
		var count int64
		if err := tx.Model(&models.Nomination{}).
			Where("id IN ? AND category_edition_id = ?", orderedIDs, categoryEditionID).
			Count(&count).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if count != int64(len(orderedIDs)) {
			appErr = utils.ValidationError("ordered_ids must all belong to the category", "ordered_ids")
			return appErr
		}
		for i, nominationID := range orderedIDs {
			if err := tx.Model(&models.Nomination{}).
				Where("id = ?", nominationID).
				Update("sort_order", i).Error; err != nil {
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

	s.Audit.Record(actorID, "nomination.reorder", "category_edition", categoryEditionID, nil)
	return nil
}

type statusChangeInput struct {
	Action                  string  `json:"action"` // REVOKE, REPLACE, RESTORE
	Origin                  string  `json:"origin"` // INTERNAL, EXTERNAL
	Impact                  string  `json:"impact"` // CONSEQUENTIAL, BENIGN
	Reason                  string  `json:"reason"`
	ReplacementNominationID *string `json:"replacement_nomination_id"`
}

// canChangeStatus encodes the allowed transition graph:
// ACTIVE -> REVOKED/REPLACED, REVOKED/REPLACED -> ACTIVE via RESTORE.
func canChangeStatus(current models.NominationStatus, action string) bool {
	switch action {
	case "REVOKE", "REPLACE":
		return current == models.NominationStatusActive
	case "RESTORE":
		return current == models.NominationStatusRevoked || current == models.NominationStatusReplaced
	}
	return false
}

func validateStatusChange(in statusChangeInput) *utils.AppError {
	switch in.Action {
	case "REVOKE", "REPLACE", "RESTORE":
	default:
		return utils.ValidationError("action must be REVOKE, REPLACE or RESTORE", "action")
	}
	switch models.ChangeOrigin(in.Origin) {
	case models.ChangeOriginInternal, models.ChangeOriginExternal:
	default:
		return utils.ValidationError("origin must be INTERNAL or EXTERNAL", "origin")
	}
	switch models.ChangeImpact(in.Impact) {
	case models.ChangeImpactConsequential, models.ChangeImpactBenign:
	default:
		return utils.ValidationError("impact must be CONSEQUENTIAL or BENIGN", "impact")
	}
	if len(strings.TrimSpace(in.Reason)) < minStatusChangeReason {
		return utils.ValidationError(
			fmt.Sprintf("reason must be at least %d characters", minStatusChangeReason), "reason")
	}
	if in.Action == "REPLACE" && (in.ReplacementNominationID == nil || *in.ReplacementNominationID == "") {
		return utils.ValidationError("replacement_nomination_id is required for REPLACE", "replacement_nomination_id")
	}
	return nil
}

// ChangeStatus applies REVOKE/REPLACE/RESTORE and writes the paired ledger
// row in the same transaction, never one without the other. Allowed at any
// ceremony status.
func (s *NominationService) ChangeStatus(nominationID string, in statusChangeInput, actorID string) (*models.Nomination, *utils.AppError) {
	if appErr := validateStatusChange(in); appErr != nil {
		return nil, appErr
	}

	var nomination models.Nomination
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&nomination, "id = ?", nominationID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if !canChangeStatus(nomination.Status, in.Action) {
			appErr = utils.ConflictError(utils.CodeInvalidTransition,
				fmt.Sprintf("cannot %s a %s nomination", in.Action, nomination.Status))
			return appErr
		}

		updates := map[string]interface{}{}
		switch in.Action {
		case "REVOKE":
			updates["status"] = models.NominationStatusRevoked
			updates["replaced_by_nomination_id"] = nil
		case "REPLACE":
			// The replacement must exist. It is deliberately not checked
			// against category membership; see the ledger notes.
			if err := tx.First(&models.Nomination{}, "id = ?", *in.ReplacementNominationID).Error; err != nil {
				appErr = utils.FromDB(err)
				return appErr
			}
			updates["status"] = models.NominationStatusReplaced
			updates["replaced_by_nomination_id"] = *in.ReplacementNominationID
		case "RESTORE":
			updates["status"] = models.NominationStatusActive
			updates["replaced_by_nomination_id"] = nil
		}
		if err := tx.Model(&nomination).Updates(updates).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		nomination.Status = updates["status"].(models.NominationStatus)
		if v, ok := updates["replaced_by_nomination_id"].(string); ok {
			nomination.ReplacedByNominationID = &v
		} else {
			nomination.ReplacedByNominationID = nil
		}

		audit := models.NominationChangeAudit{
			ID:                      uuid.NewString(),
			NominationID:            nomination.ID,
			ReplacementNominationID: in.ReplacementNominationID,
			Action:                  in.Action,
			Origin:                  models.ChangeOrigin(in.Origin),
			Impact:                  models.ChangeImpact(in.Impact),
			Reason:                  strings.TrimSpace(in.Reason),
			CreatedByUserID:         actorID,
		}
		if err := tx.Create(&audit).Error; err != nil {
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
	return &nomination, nil
}

// AddContributor attaches a person to a nomination. Structural edit.
func (s *NominationService) AddContributor(nominationID, personID, role, actorID string) (*models.NominationContributor, *utils.AppError) {
	if personID == "" {
		return nil, utils.ValidationError("person_id is required", "person_id")
	}
	var contributor *models.NominationContributor
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var nomination models.Nomination
		if err := tx.First(&nomination, "id = ?", nominationID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		var category models.CategoryEdition
		if err := tx.First(&category, "id = ?", nomination.CategoryEditionID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if appErr = structuralEditAllowed(tx, category.CeremonyID); appErr != nil {
			return appErr
		}
		if err := tx.First(&models.Person{}, "id = ?", personID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		contributor = &models.NominationContributor{
			ID:           uuid.NewString(),
			NominationID: nominationID,
			PersonID:     personID,
			Role:         role,
		}
		if err := tx.Create(contributor).Error; err != nil {
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
	return contributor, nil
}

// RemoveContributor detaches a contributor row. Structural edit.
func (s *NominationService) RemoveContributor(contributorID, actorID string) *utils.AppError {
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var contributor models.NominationContributor
		if err := tx.First(&contributor, "id = ?", contributorID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		var nomination models.Nomination
		if err := tx.First(&nomination, "id = ?", contributor.NominationID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		var category models.CategoryEdition
		if err := tx.First(&category, "id = ?", nomination.CategoryEditionID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if appErr = structuralEditAllowed(tx, category.CeremonyID); appErr != nil {
			return appErr
		}
		if err := tx.Delete(&models.NominationContributor{}, "id = ?", contributorID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		return nil
	})
	if appErr != nil {
		return appErr
	}
	if err != nil {
		return utils.FromDB(err)
	}
	return nil
}

// CreateCategory adds a category edition to a DRAFT ceremony.
func (s *NominationService) CreateCategory(ceremonyID, name string, unitKind models.UnitKind, sortOrder int, actorID string) (*models.CategoryEdition, *utils.AppError) {
	if name == "" {
		return nil, utils.ValidationError("name is required", "name")
	}
	switch unitKind {
	case models.UnitKindFilm, models.UnitKindSong, models.UnitKindPerformance:
	default:
		return nil, utils.ValidationError("unit_kind must be FILM, SONG or PERFORMANCE", "unit_kind")
	}
	var category *models.CategoryEdition
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if appErr = structuralEditAllowed(tx, ceremonyID); appErr != nil {
			return appErr
		}
		category = &models.CategoryEdition{
			ID:         uuid.NewString(),
			CeremonyID: ceremonyID,
			Name:       name,
			UnitKind:   unitKind,
			SortOrder:  sortOrder,
		}
		if err := tx.Create(category).Error; err != nil {
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
	s.Audit.Record(actorID, "category.create", "category_edition", category.ID, nil)
	return category, nil
}

// DeleteCategory removes an empty category from a DRAFT ceremony.
func (s *NominationService) DeleteCategory(categoryID, actorID string) *utils.AppError {
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var category models.CategoryEdition
		if err := tx.First(&category, "id = ?", categoryID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if appErr = structuralEditAllowed(tx, category.CeremonyID); appErr != nil {
			return appErr
		}
		var nominees int64
		if err := tx.Model(&models.Nomination{}).Where("category_edition_id = ?", categoryID).Count(&nominees).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if nominees > 0 {
			appErr = utils.ConflictError(utils.CodeCategoryHasNominees, "category still has nominations")
			return appErr
		}
		if err := tx.Delete(&models.CategoryEdition{}, "id = ?", categoryID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		return nil
	})
	if appErr != nil {
		return appErr
	}
	if err != nil {
		return utils.FromDB(err)
	}
	s.Audit.Record(actorID, "category.delete", "category_edition", categoryID, nil)
	return nil
}

// --- HTTP surface ---

func (s *NominationService) CreateNominationEndpoint(c *fiber.Ctx) error {
	var in createNominationInput
	if err := c.BodyParser(&in); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	nomination, appErr := s.CreateNomination(in, actorID(c))
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.Status(201).JSON(nomination)
}

func (s *NominationService) DeleteNominationEndpoint(c *fiber.Ctx) error {
	if appErr := s.DeleteNomination(c.Params("id"), actorID(c)); appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(fiber.Map{"message": "nomination deleted"})
}

func (s *NominationService) ReorderNominationsEndpoint(c *fiber.Ctx) error {
	type Req struct {
		OrderedIDs []string `json:"ordered_ids"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	if appErr := s.Reorder(c.Params("category_id"), req.OrderedIDs, actorID(c)); appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(fiber.Map{"message": "nominations reordered"})
}

func (s *NominationService) ChangeNominationStatusEndpoint(c *fiber.Ctx) error {
	var in statusChangeInput
	if err := c.BodyParser(&in); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	nomination, appErr := s.ChangeStatus(c.Params("id"), in, actorID(c))
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(nomination)
}

func (s *NominationService) AddContributorEndpoint(c *fiber.Ctx) error {
	type Req struct {
		PersonID string `json:"person_id"`
		Role     string `json:"role"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	contributor, appErr := s.AddContributor(c.Params("id"), req.PersonID, req.Role, actorID(c))
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.Status(201).JSON(contributor)
}

func (s *NominationService) RemoveContributorEndpoint(c *fiber.Ctx) error {
	if appErr := s.RemoveContributor(c.Params("contributor_id"), actorID(c)); appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(fiber.Map{"message": "contributor removed"})
}

func (s *NominationService) CreateCategoryEndpoint(c *fiber.Ctx) error {
	type Req struct {
		Name      string          `json:"name"`
		UnitKind  models.UnitKind `json:"unit_kind"`
		SortOrder int             `json:"sort_order"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	category, appErr := s.CreateCategory(c.Params("id"), req.Name, req.UnitKind, req.SortOrder, actorID(c))
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.Status(201).JSON(category)
}

func (s *NominationService) DeleteCategoryEndpoint(c *fiber.Ctx) error {
	if appErr := s.DeleteCategory(c.Params("category_id"), actorID(c)); appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(fiber.Map{"message": "category deleted"})
}

// GetNominationAudit lists the change ledger for one nomination.
func (s *NominationService) GetNominationAudit(c *fiber.Ctx) error {
	var entries []models.NominationChangeAudit
	if err := s.DB.Where("nomination_id = ?", c.Params("id")).
		Order("created_at ASC").Find(&entries).Error; err != nil {
		return utils.Respond(c, utils.FromDB(err))
	}
	return c.JSON(entries)
}
