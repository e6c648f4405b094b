package workers

import (
	"context"
	"log"
	"time"

	"award-draft-system/models"
	"award-draft-system/services"
	"gorm.io/gorm"
)

// PollMissingPosters periodically finds films that carry a TMDB link but no
// poster and hydrates them. Films created before the provider token was
// configured, or while the provider was down, get their artwork this way.
func PollMissingPosters(ctx context.Context, db *gorm.DB, tmdb *services.TMDBClient, pollInterval time.Duration) {
	if !tmdb.Enabled() {
		log.Println("Poster backfill disabled: no TMDB token configured")
		return
	}
	log.Println("Starting poster backfill polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Poster backfill polling stopped.")
			return
		case <-ticker.C:
			var films []models.Film
			err := db.Where("tmdb_id IS NOT NULL AND (poster_url = '' OR poster_url IS NULL)").
				Limit(20).Find(&films).Error
			if err != nil {
				log.Printf("❌ Error querying films for backfill: %v", err)
				continue
			}
			if len(films) == 0 {
				continue
			}

			var filled int
			for _, film := range films {
				movie, err := tmdb.GetMovie(*film.TMDBID)
				if err != nil {
					log.Printf("❌ Backfill lookup failed for film %s: %v", film.ID, err)
					continue
				}
				if movie.PosterPath == "" {
					continue
				}
				updates := map[string]interface{}{
					"poster_url": services.PosterURL(movie.PosterPath),
				}
				if film.Overview == "" && movie.Overview != "" {
					updates["overview"] = movie.Overview
				}
				if err := db.Model(&models.Film{}).
					Where("id = ?", film.ID).Updates(updates).Error; err != nil {
					log.Printf("❌ Backfill update failed for film %s: %v", film.ID, err)
					continue
				}
				filled++
			}
			if filled > 0 {
				log.Printf("✅ Backfilled posters for %d film(s).", filled)
			}
		}
	}
}
