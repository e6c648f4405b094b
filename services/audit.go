package services

import (
	"encoding/json"
	"log"

	"award-draft-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditService appends admin action rows. It never fails the caller: an
// audit insert error is logged and swallowed, the primary transaction's
// outcome is already decided by then.
type AuditService struct {
	DB *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{DB: db}
}

func (a *AuditService) Record(actorID, action, targetType, targetID string, metadata map[string]interface{}) {
	var meta string
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			meta = string(b)
		}
	}
	entry := models.AuditLog{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   meta,
	}
	if err := a.DB.Create(&entry).Error; err != nil {
		log.Printf("[AUDIT] failed to record %s on %s/%s: %v", action, targetType, targetID, err)
	}
}
