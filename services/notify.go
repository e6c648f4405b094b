package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"award-draft-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	EventWinnersUpdated    = "winners-updated"
	EventCeremonyFinalized = "ceremony-finalized"
	EventCeremonyPublished = "ceremony-published"
)

// NotifyService is the fire-and-forget realtime notifier. Emit is called
// strictly AFTER the owning transaction commits, never inside it, so
// subscribers cannot observe an event for a rolled-back change.
type NotifyService struct {
	DB *gorm.DB
}

func NewNotifyService(db *gorm.DB) *NotifyService {
	return &NotifyService{DB: db}
}

func (n *NotifyService) Emit(event, ceremonyID string, payload map[string]interface{}) {
	var body string
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			body = string(b)
		}
	}
	row := models.RealtimeEvent{
		ID:         uuid.NewString(),
		Event:      event,
		CeremonyID: ceremonyID,
		Payload:    body,
	}
	if err := n.DB.Create(&row).Error; err != nil {
		log.Printf("[NOTIFY] failed to emit %s for ceremony %s: %v", event, ceremonyID, err)
	}
}

// StreamCeremonyEventsSSE streams realtime events for one ceremony.
func (n *NotifyService) StreamCeremonyEventsSSE(c *fiber.Ctx) error {
	ceremonyID := c.Params("id")

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		var lastCreatedAt time.Time

		var latest models.RealtimeEvent
		if err := n.DB.
			Where("ceremony_id = ?", ceremonyID).
			Order("created_at DESC").
			First(&latest).Error; err == nil {
			lastCreatedAt = latest.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[NOTIFY] SSE init error for ceremony %s: %v", ceremonyID, err)
		}

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				var events []models.RealtimeEvent
				err := n.DB.
					Where("ceremony_id = ? AND created_at > ?", ceremonyID, lastCreatedAt).
					Order("created_at ASC").
					Find(&events).Error
				if err != nil {
					log.Printf("[NOTIFY] SSE query error for ceremony %s: %v", ceremonyID, err)
					continue
				}
				if len(events) == 0 {
					continue
				}

				lastCreatedAt = events[len(events)-1].CreatedAt

				for _, ev := range events {
					payload, _ := json.Marshal(ev)
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, payload)
				}

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}
