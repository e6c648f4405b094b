package services

import (
	"log"
	"time"

	"award-draft-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartPublishScheduler polls for DRAFT ceremonies whose publish_schedule
// has passed and publishes them through the same engine the HTTP route
// uses, so the completeness checks still apply. An incomplete ceremony is
// logged and retried on the next tick instead of being force-published.
func (s *CeremonyService) StartPublishScheduler() {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("[Scheduler] init failed: %v", err)
		return
	}
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			var ceremonies []models.Ceremony
			now := time.Now()
			err := s.DB.Where("status = ? AND publish_schedule IS NOT NULL AND publish_schedule <= ?",
				models.CeremonyStatusDraft, now).
				Find(&ceremonies).Error
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}

			for _, ceremony := range ceremonies {
				if _, appErr := s.Publish(ceremony.ID, "scheduler"); appErr != nil {
					log.Printf("[Scheduler] Failed to publish ceremony %s: %s", ceremony.ID, appErr.Message)
				} else {
					log.Printf("✅ Auto-published ceremony: %s", ceremony.Name)
				}
			}
		}),
	)
}
