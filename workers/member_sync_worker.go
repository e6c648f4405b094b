package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"award-draft-system/models"
	"gorm.io/gorm"
)

// ProfileFromSyncService matches the JSON response of the profile service.
type ProfileFromSyncService struct {
	ExternalID        string    `json:"external_id"`
	Username          string    `json:"username"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// GetProfileChangesResponse is the top-level structure of the sync response.
type GetProfileChangesResponse struct {
	Users []ProfileFromSyncService `json:"users"`
}

// MemberProfileSyncWorker keeps league member display names and avatars in
// line with the upstream profile service. Members are created through the
// league API only; the worker updates rows it can match by external user id
// and never inserts.
type MemberProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewMemberProfileSyncWorker(db *gorm.DB, syncServiceBaseURL, endpointPath, serviceToken string) *MemberProfileSyncWorker {
	return &MemberProfileSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *MemberProfileSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Member Profile Sync Worker (profile service → league_members)…")
	go w.run(ctx)
}

func (w *MemberProfileSyncWorker) run(ctx context.Context) {
	// Initial sync backfills everything.
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lastSyncTime := w.getLastSyncTime()
			if err := w.syncBatch(ctx, lastSyncTime); err != nil {
				log.Printf("❌ Sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Member Profile Sync Worker stopped")
			return
		}
	}
}

// getLastSyncTime finds the most recent UpdatedAt across league members.
func (w *MemberProfileSyncWorker) getLastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM league_members").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

// syncBatch fetches profile changes and applies them to matching members.
func (w *MemberProfileSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid profile service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, "GET", finalURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to profile service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("profile service non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var response GetProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode profile service response: %w", err)
	}

	if len(response.Users) == 0 {
		return nil
	}

	log.Printf("[SYNC] 📥 Processing %d profile change(s)…", len(response.Users))

	var updateCount, errorCount int
	for _, profile := range response.Users {
		updates := map[string]interface{}{"display_name": profile.Username}
		if profile.ProfilePictureURL != nil {
			updates["avatar_url"] = *profile.ProfilePictureURL
		}
		res := w.db.Model(&models.LeagueMember{}).
			Where("external_user_id = ?", profile.ExternalID).
			Updates(updates)
		if res.Error != nil {
			errorCount++
			log.Printf("[SYNC] ⚠️ Failed to update member (external_id=%q): %v",
				profile.ExternalID, res.Error)
		} else if res.RowsAffected > 0 {
			updateCount++
		}
	}

	log.Printf("[SYNC] ✅ Synced %d profile(s) (%d members updated, %d errors)",
		len(response.Users), updateCount, errorCount)
	return nil
}
