package services

import (
	"errors"

	"award-draft-system/models"
	"award-draft-system/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const configKeyActiveCeremony = "active_ceremony_id"

// ConfigService owns singleton configuration rows. The active-ceremony
// pointer is only ever read or written through here; callers get it injected
// instead of reading ambient global state.
type ConfigService struct {
	DB *gorm.DB
}

func NewConfigService(db *gorm.DB) *ConfigService {
	return &ConfigService{DB: db}
}

// ActiveCeremonyID returns the configured active ceremony, or "" when none
// is set.
func (s *ConfigService) ActiveCeremonyID() (string, error) {
	var row models.AppConfig
	err := s.DB.First(&row, "key = ?", configKeyActiveCeremony).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.Value, nil
}

// SetActiveCeremony points the singleton at a ceremony (upsert).
func (s *ConfigService) SetActiveCeremony(tx *gorm.DB, ceremonyID string) error {
	row := models.AppConfig{Key: configKeyActiveCeremony, Value: ceremonyID}
	return tx.Save(&row).Error
}

// DetachActiveCeremony clears the pointer iff it currently references the
// given ceremony. Used by ceremony delete inside its transaction.
func (s *ConfigService) DetachActiveCeremony(tx *gorm.DB, ceremonyID string) error {
	return tx.Where("key = ? AND value = ?", configKeyActiveCeremony, ceremonyID).
		Delete(&models.AppConfig{}).Error
}

// --- HTTP surface ---

func (s *ConfigService) GetActiveCeremony(c *fiber.Ctx) error {
	id, err := s.ActiveCeremonyID()
	if err != nil {
		return utils.Respond(c, utils.FromDB(err))
	}
	if id == "" {
		return c.JSON(fiber.Map{"active_ceremony_id": nil})
	}
	return c.JSON(fiber.Map{"active_ceremony_id": id})
}

func (s *ConfigService) PutActiveCeremony(c *fiber.Ctx) error {
	type Req struct {
		CeremonyID string `json:"ceremony_id"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	if req.CeremonyID == "" {
		return utils.Respond(c, utils.ValidationError("ceremony_id is required", "ceremony_id"))
	}
	if err := s.DB.First(&models.Ceremony{}, "id = ?", req.CeremonyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Respond(c, utils.NotFoundError("ceremony"))
		}
		return utils.Respond(c, utils.FromDB(err))
	}
	if err := s.SetActiveCeremony(s.DB, req.CeremonyID); err != nil {
		return utils.Respond(c, utils.FromDB(err))
	}
	return c.JSON(fiber.Map{"active_ceremony_id": req.CeremonyID})
}
