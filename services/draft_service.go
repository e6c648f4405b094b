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

// DraftService runs leagues, seasons and the turn-based pick arbiter.
// Every pick mutation happens under a FOR UPDATE read of the draft row, so
// pick numbers advance strictly one at a time per draft.
type DraftService struct {
	DB    *gorm.DB
	Audit *AuditService
}

func NewDraftService(db *gorm.DB, audit *AuditService) *DraftService {
	return &DraftService{DB: db, Audit: audit}
}

// seatForPick maps a 1-based pick number onto a 1-based seat in straight
// rotation: 1,2,...,n,1,2,...
func seatForPick(pickNumber, seatCount int) int {
	return ((pickNumber - 1) % seatCount) + 1
}

// draftIsComplete reports whether the draft has no picks left once the
// pointer has advanced to nextPick.
func draftIsComplete(nextPick, seatCount, rosterSize int) bool {
	return nextPick > seatCount*rosterSize
}

// CreateLeague registers a league with its owner as the first member.
func (s *DraftService) CreateLeague(name, ownerUserID, ownerDisplayName string) (*models.League, *utils.AppError) {
	if name == "" {
		return nil, utils.ValidationError("name is required", "name")
	}
	if ownerUserID == "" {
		return nil, utils.ValidationError("owner user is required", "owner_user_id")
	}
	league := models.League{
		ID:          uuid.NewString(),
		Name:        name,
		OwnerUserID: ownerUserID,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&league).Error; err != nil {
			return err
		}
		member := models.LeagueMember{
			ID:             uuid.NewString(),
			LeagueID:       league.ID,
			ExternalUserID: ownerUserID,
			DisplayName:    ownerDisplayName,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, utils.FromDB(err)
	}
	return &league, nil
}

// AddMember joins a user to a league. Joining twice is rejected.
func (s *DraftService) AddMember(leagueID, externalUserID, displayName string) (*models.LeagueMember, *utils.AppError) {
	if externalUserID == "" {
		return nil, utils.ValidationError("external_user_id is required", "external_user_id")
	}
	var member models.LeagueMember
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.League{}, "id = ?", leagueID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		var existing int64
		if err := tx.Model(&models.LeagueMember{}).
			Where("league_id = ? AND external_user_id = ?", leagueID, externalUserID).
			Count(&existing).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if existing > 0 {
			appErr = utils.ValidationError("user is already a member of this league", "external_user_id")
			return appErr
		}
		member = models.LeagueMember{
			ID:             uuid.NewString(),
			LeagueID:       leagueID,
			ExternalUserID: externalUserID,
			DisplayName:    displayName,
		}
		if err := tx.Create(&member).Error; err != nil {
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
	return &member, nil
}

// CreateSeason binds a league to a ceremony. The ceremony must already be
// PUBLISHED so the nominee pool is visible before anyone commits to a season.
func (s *DraftService) CreateSeason(leagueID, ceremonyID string, rosterSize int) (*models.Season, *utils.AppError) {
	if rosterSize <= 0 {
		rosterSize = 5
	}
	var season models.Season
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.League{}, "id = ?", leagueID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		var ceremony models.Ceremony
		if err := tx.First(&ceremony, "id = ?", ceremonyID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if ceremony.Status != models.CeremonyStatusPublished {
			appErr = utils.ConflictError(utils.CodeCeremonyNotPublished, "ceremony is not published yet")
			return appErr
		}
		season = models.Season{
			ID:         uuid.NewString(),
			LeagueID:   leagueID,
			CeremonyID: ceremonyID,
			RosterSize: rosterSize,
		}
		if err := tx.Create(&season).Error; err != nil {
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
	return &season, nil
}

// CreateDraft opens a PENDING draft for a season.
func (s *DraftService) CreateDraft(seasonID string) (*models.Draft, *utils.AppError) {
	var draft models.Draft
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var season models.Season
		if err := tx.First(&season, "id = ?", seasonID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		var ceremony models.Ceremony
		if err := tx.First(&ceremony, "id = ?", season.CeremonyID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if ceremony.DraftLockedAt != nil {
			appErr = utils.ConflictError(utils.CodeDraftsLocked, "drafts for this ceremony are locked")
			return appErr
		}
		draft = models.Draft{
			ID:                uuid.NewString(),
			SeasonID:          season.ID,
			CeremonyID:        season.CeremonyID,
			Status:            models.DraftStatusPending,
			CurrentPickNumber: 1,
		}
		if err := tx.Create(&draft).Error; err != nil {
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
	return &draft, nil
}

// StartDraft moves PENDING to IN_PROGRESS and freezes the seat order from
// the league roster, ordered by join time. Refused once the ceremony's
// drafts are locked.
func (s *DraftService) StartDraft(draftID, actorID string) (*models.Draft, *utils.AppError) {
	var draft models.Draft
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&draft, "id = ?", draftID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if draft.Status != models.DraftStatusPending {
			appErr = utils.ConflictError(utils.CodeDraftNotActive, "draft has already started")
			return appErr
		}
		var ceremony models.Ceremony
		if err := tx.First(&ceremony, "id = ?", draft.CeremonyID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if ceremony.DraftLockedAt != nil {
			appErr = utils.ConflictError(utils.CodeDraftsLocked, "drafts for this ceremony are locked")
			return appErr
		}

		var season models.Season
		if err := tx.First(&season, "id = ?", draft.SeasonID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		var members []models.LeagueMember
		if err := tx.Where("league_id = ?", season.LeagueID).
			Order("joined_at ASC").Find(&members).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if len(members) < 2 {
			appErr = utils.ValidationError("a draft needs at least two league members")
			return appErr
		}
		for i, member := range members {
			seat := models.DraftSeat{
				ID:             uuid.NewString(),
				DraftID:        draft.ID,
				SeatNumber:     i + 1,
				LeagueMemberID: member.ID,
			}
			if err := tx.Create(&seat).Error; err != nil {
				appErr = utils.FromDB(err)
				return appErr
			}
		}

		now := time.Now()
		if err := tx.Model(&draft).Updates(map[string]interface{}{
			"status":     models.DraftStatusInProgress,
			"started_at": &now,
		}).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		draft.Status = models.DraftStatusInProgress
		draft.StartedAt = &now
		return nil
	})
	if appErr != nil {
		return nil, appErr
	}
	if err != nil {
		return nil, utils.FromDB(err)
	}

	s.Audit.Record(actorID, "draft.start", "draft", draftID, nil)
	return &draft, nil
}

// PauseDraft and ResumeDraft toggle IN_PROGRESS <-> PAUSED.
func (s *DraftService) PauseDraft(draftID, actorID string) (*models.Draft, *utils.AppError) {
	return s.toggleDraft(draftID, actorID, models.DraftStatusInProgress, models.DraftStatusPaused, "draft.pause")
}

func (s *DraftService) ResumeDraft(draftID, actorID string) (*models.Draft, *utils.AppError) {
	return s.toggleDraft(draftID, actorID, models.DraftStatusPaused, models.DraftStatusInProgress, "draft.resume")
}

func (s *DraftService) toggleDraft(draftID, actorID string, from, to models.DraftStatus, action string) (*models.Draft, *utils.AppError) {
	var draft models.Draft
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&draft, "id = ?", draftID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if draft.Status != from {
			appErr = utils.ConflictError(utils.CodeDraftNotActive,
				"draft is "+string(draft.Status)+", expected "+string(from))
			return appErr
		}
		if err := tx.Model(&draft).Update("status", to).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		draft.Status = to
		return nil
	})
	if appErr != nil {
		return nil, appErr
	}
	if err != nil {
		return nil, utils.FromDB(err)
	}
	s.Audit.Record(actorID, action, "draft", draftID, nil)
	return &draft, nil
}

// SubmitPick commits one selection for the member whose turn it is.
//
// Resubmitting the same (draft_id, request_id) pair returns the original
// pick unchanged, whether the retry arrives after the first commit or races
// it; the unique index settles the race and the loser replays the winner's
// row. Created is false on a replay.
func (s *DraftService) SubmitPick(draftID, requestID, externalUserID, nominationID string) (*models.DraftPick, bool, *utils.AppError) {
	if requestID == "" {
		return nil, false, utils.ValidationError("request_id is required", "request_id")
	}
	if nominationID == "" {
		return nil, false, utils.ValidationError("nomination_id is required", "nomination_id")
	}

	var pick models.DraftPick
	created := false
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var draft models.Draft
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&draft, "id = ?", draftID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}

		// Idempotency lookup inside the lock: a committed duplicate is
		// returned as-is before any turn or status check can reject it.
		err := tx.Where("draft_id = ? AND request_id = ?", draftID, requestID).First(&pick).Error
		if err == nil {
			return nil
		}
		if appErr = utils.FromDB(err); appErr.Code != utils.CodeNotFound {
			return appErr
		}
		appErr = nil

		if draft.Status != models.DraftStatusInProgress {
			appErr = utils.ConflictError(utils.CodeDraftNotActive,
				"draft is "+string(draft.Status))
			return appErr
		}

		var seats []models.DraftSeat
		if err := tx.Where("draft_id = ?", draftID).
			Order("seat_number ASC").Find(&seats).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if len(seats) == 0 {
			appErr = utils.InternalError("draft has no seats")
			return appErr
		}

		seatNumber := seatForPick(draft.CurrentPickNumber, len(seats))
		var member models.LeagueMember
		if err := tx.First(&member, "id = ?", seats[seatNumber-1].LeagueMemberID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if member.ExternalUserID != externalUserID {
			appErr = utils.NewError(fiber.StatusForbidden, utils.CodeNotYourTurn,
				"it is not your turn to pick")
			return appErr
		}

		var nomination models.Nomination
		if err := tx.First(&nomination, "id = ?", nominationID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if nomination.Status != models.NominationStatusActive {
			appErr = utils.ValidationError("nomination is not active", "nomination_id")
			return appErr
		}
		var taken int64
		if err := tx.Model(&models.DraftPick{}).
			Where("draft_id = ? AND nomination_id = ?", draftID, nominationID).
			Count(&taken).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if taken > 0 {
			appErr = utils.ValidationError("nomination has already been picked in this draft", "nomination_id")
			return appErr
		}

		pick = models.DraftPick{
			ID:           uuid.NewString(),
			DraftID:      draftID,
			PickNumber:   draft.CurrentPickNumber,
			SeatNumber:   seatNumber,
			NominationID: nominationID,
			RequestID:    requestID,
		}
		if err := tx.Create(&pick).Error; err != nil {
			if utils.IsUniqueViolation(err, "idx_draft_request") {
				// Lost a race against the same request id. Replay the
				// winner's row.
				if ferr := tx.Where("draft_id = ? AND request_id = ?", draftID, requestID).
					First(&pick).Error; ferr != nil {
					appErr = utils.FromDB(ferr)
					return appErr
				}
				return nil
			}
			appErr = utils.FromDB(err)
			return appErr
		}
		created = true

		var season models.Season
		if err := tx.First(&season, "id = ?", draft.SeasonID).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		nextPick := draft.CurrentPickNumber + 1
		updates := map[string]interface{}{"current_pick_number": nextPick}
		if draftIsComplete(nextPick, len(seats), season.RosterSize) {
			now := time.Now()
			updates["status"] = models.DraftStatusCompleted
			updates["completed_at"] = &now
		}
		if err := tx.Model(&draft).Updates(updates).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		return nil
	})
	if appErr != nil {
		return nil, false, appErr
	}
	if err != nil {
		return nil, false, utils.FromDB(err)
	}

	if created {
		s.Audit.Record(externalUserID, "draft.pick", "draft", draftID,
			map[string]interface{}{"pick_number": pick.PickNumber, "nomination_id": nominationID})
	}
	return &pick, created, nil
}

// --- HTTP surface ---

func (s *DraftService) CreateLeagueEndpoint(c *fiber.Ctx) error {
	type Req struct {
		Name             string `json:"name"`
		OwnerDisplayName string `json:"owner_display_name"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	league, appErr := s.CreateLeague(req.Name, actorID(c), req.OwnerDisplayName)
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.Status(201).JSON(league)
}

func (s *DraftService) AddLeagueMemberEndpoint(c *fiber.Ctx) error {
	type Req struct {
		ExternalUserID string `json:"external_user_id"`
		DisplayName    string `json:"display_name"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	member, appErr := s.AddMember(c.Params("id"), req.ExternalUserID, req.DisplayName)
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.Status(201).JSON(member)
}

func (s *DraftService) CreateSeasonEndpoint(c *fiber.Ctx) error {
	type Req struct {
		CeremonyID string `json:"ceremony_id"`
		RosterSize int    `json:"roster_size"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	season, appErr := s.CreateSeason(c.Params("id"), req.CeremonyID, req.RosterSize)
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.Status(201).JSON(season)
}

func (s *DraftService) CreateDraftEndpoint(c *fiber.Ctx) error {
	type Req struct {
		SeasonID string `json:"season_id"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	draft, appErr := s.CreateDraft(req.SeasonID)
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.Status(201).JSON(draft)
}

func (s *DraftService) StartDraftEndpoint(c *fiber.Ctx) error {
	draft, appErr := s.StartDraft(c.Params("id"), actorID(c))
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(draft)
}

func (s *DraftService) PauseDraftEndpoint(c *fiber.Ctx) error {
	draft, appErr := s.PauseDraft(c.Params("id"), actorID(c))
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(draft)
}

func (s *DraftService) ResumeDraftEndpoint(c *fiber.Ctx) error {
	draft, appErr := s.ResumeDraft(c.Params("id"), actorID(c))
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.JSON(draft)
}

func (s *DraftService) SubmitPickEndpoint(c *fiber.Ctx) error {
	type Req struct {
		RequestID    string `json:"request_id"`
		NominationID string `json:"nomination_id"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	pick, created, appErr := s.SubmitPick(c.Params("id"), req.RequestID, actorID(c), req.NominationID)
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(pick)
}

func (s *DraftService) GetDraft(c *fiber.Ctx) error {
	var draft models.Draft
	err := s.DB.
		Preload("Seats", func(db *gorm.DB) *gorm.DB {
			return db.Order("seat_number ASC")
		}).
		Preload("Picks", func(db *gorm.DB) *gorm.DB {
			return db.Order("pick_number ASC")
		}).
		First(&draft, "id = ?", c.Params("id")).Error
	if err != nil {
		return utils.Respond(c, utils.FromDB(err))
	}
	return c.JSON(draft)
}

func (s *DraftService) GetLeague(c *fiber.Ctx) error {
	var league models.League
	err := s.DB.
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		Preload("Seasons").
		First(&league, "id = ?", c.Params("id")).Error
	if err != nil {
		return utils.Respond(c, utils.FromDB(err))
	}
	return c.JSON(league)
}
