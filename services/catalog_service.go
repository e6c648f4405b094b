package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"

	"award-draft-system/models"
	"award-draft-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogService owns films, people, songs and performances. TMDB hydration
// runs in two phases: all provider calls happen before the transaction
// opens, so a slow or flaky provider can never hold row locks. Provider
// failures are collected as warnings and the write goes through without the
// hydrated fields.
type CatalogService struct {
	DB    *gorm.DB
	TMDB  *TMDBClient
	Audit *AuditService
}

func NewCatalogService(db *gorm.DB, tmdb *TMDBClient, audit *AuditService) *CatalogService {
	return &CatalogService{DB: db, TMDB: tmdb, Audit: audit}
}

type createFilmInput struct {
	Title  string `json:"title"`
	Year   int    `json:"year"`
	TMDBID *int64 `json:"tmdb_id"`
}

// CreateFilmResult carries the film plus any hydration warnings.
type CreateFilmResult struct {
	Film     *models.Film `json:"film"`
	Warnings []string     `json:"warnings,omitempty"`
}

// CreateFilm registers a film, optionally hydrated from TMDB. Linking a
// TMDB id already claimed by another film is a conflict that names the
// other film so the caller can merge instead.
func (s *CatalogService) CreateFilm(in createFilmInput) (*CreateFilmResult, *utils.AppError) {
	if in.Title == "" && in.TMDBID == nil {
		return nil, utils.ValidationError("title or tmdb_id is required", "title", "tmdb_id")
	}

	result := CreateFilmResult{}
	film := models.Film{
		ID:     uuid.NewString(),
		Title:  in.Title,
		Year:   in.Year,
		TMDBID: in.TMDBID,
	}

	// Phase one: hydrate outside any transaction.
	var credits *TMDBCredits
	if in.TMDBID != nil && s.TMDB.Enabled() {
		if movie, err := s.TMDB.GetMovie(*in.TMDBID); err != nil {
			result.Warnings = append(result.Warnings, "tmdb movie lookup failed")
		} else {
			if film.Title == "" {
				film.Title = movie.Title
			}
			if film.Year == 0 && len(movie.ReleaseDate) >= 4 {
				if y, perr := strconv.Atoi(movie.ReleaseDate[:4]); perr == nil {
					film.Year = y
				}
			}
			film.Overview = movie.Overview
			film.PosterURL = PosterURL(movie.PosterPath)
		}
		if c, err := s.TMDB.GetMovieCredits(*in.TMDBID); err != nil {
			result.Warnings = append(result.Warnings, "tmdb credits lookup failed")
		} else {
			credits = c
		}
	}
	if film.Title == "" {
		return nil, utils.ValidationError("title could not be resolved", "title")
	}

	// Phase two: commit.
	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if in.TMDBID != nil {
			var other models.Film
			err := tx.First(&other, "tmdb_id = ?", *in.TMDBID).Error
			if err == nil {
				appErr = utils.ConflictError(utils.CodeTMDBIDAlreadyLinked,
					"tmdb id is already linked to another film").
					WithDetails(map[string]interface{}{
						"film_id": other.ID,
						"title":   other.Title,
					})
				return appErr
			}
			if appErr = utils.FromDB(err); appErr.Code != utils.CodeNotFound {
				return appErr
			}
			appErr = nil
		}
		if err := tx.Create(&film).Error; err != nil {
			appErr = utils.FromDB(err)
			return appErr
		}
		if credits != nil {
			if err := s.syncCredits(tx, &film, credits); err != nil {
				appErr = utils.FromDB(err)
				return appErr
			}
		}
		return nil
	})
	if appErr != nil {
		return nil, appErr
	}
	if err != nil {
		return nil, utils.FromDB(err)
	}

	result.Film = &film
	return &result, nil
}

// syncCredits mirrors the provider's crew list. People are matched by TMDB
// id and created on demand; each upstream credit appears at most once.
func (s *CatalogService) syncCredits(tx *gorm.DB, film *models.Film, credits *TMDBCredits) error {
	all := append(append([]TMDBCredit{}, credits.Cast...), credits.Crew...)
	for _, credit := range all {
		var person models.Person
		err := tx.First(&person, "tmdb_id = ?", credit.PersonID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tmdbID := credit.PersonID
			person = models.Person{
				ID:     uuid.NewString(),
				Name:   credit.Name,
				TMDBID: &tmdbID,
			}
			if cerr := tx.Create(&person).Error; cerr != nil {
				return cerr
			}
		} else if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&models.FilmCredit{}).
			Where("film_id = ? AND external_credit_id = ?", film.ID, credit.CreditID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			continue
		}
		row := models.FilmCredit{
			ID:               uuid.NewString(),
			FilmID:           film.ID,
			PersonID:         person.ID,
			ExternalCreditID: credit.CreditID,
			Department:       credit.Department,
			Job:              credit.Job,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

type createPersonInput struct {
	Name   string `json:"name"`
	TMDBID *int64 `json:"tmdb_id"`
}

type CreatePersonResult struct {
	Person   *models.Person `json:"person"`
	Warnings []string       `json:"warnings,omitempty"`
}

func (s *CatalogService) CreatePerson(in createPersonInput) (*CreatePersonResult, *utils.AppError) {
	if in.Name == "" && in.TMDBID == nil {
		return nil, utils.ValidationError("name or tmdb_id is required", "name", "tmdb_id")
	}

	result := CreatePersonResult{}
	person := models.Person{
		ID:     uuid.NewString(),
		Name:   in.Name,
		TMDBID: in.TMDBID,
	}

	if in.TMDBID != nil && s.TMDB.Enabled() {
		if p, err := s.TMDB.GetPerson(*in.TMDBID); err != nil {
			result.Warnings = append(result.Warnings, "tmdb person lookup failed")
		} else {
			if person.Name == "" {
				person.Name = p.Name
			}
			person.PhotoURL = PosterURL(p.ProfilePath)
		}
	}
	if person.Name == "" {
		return nil, utils.ValidationError("name could not be resolved", "name")
	}

	var appErr *utils.AppError
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if in.TMDBID != nil {
			var other models.Person
			err := tx.First(&other, "tmdb_id = ?", *in.TMDBID).Error
			if err == nil {
				appErr = utils.ConflictError(utils.CodeTMDBIDAlreadyLinked,
					"tmdb id is already linked to another person").
					WithDetails(map[string]interface{}{
						"person_id": other.ID,
						"name":      other.Name,
					})
				return appErr
			}
			if appErr = utils.FromDB(err); appErr.Code != utils.CodeNotFound {
				return appErr
			}
			appErr = nil
		}
		if err := tx.Create(&person).Error; err != nil {
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

	result.Person = &person
	return &result, nil
}

// CreateSong attaches a song to an existing film.
func (s *CatalogService) CreateSong(filmID, title string) (*models.Song, *utils.AppError) {
	if title == "" {
		return nil, utils.ValidationError("title is required", "title")
	}
	if err := s.DB.First(&models.Film{}, "id = ?", filmID).Error; err != nil {
		return nil, utils.FromDB(err)
	}
	song := models.Song{
		ID:     uuid.NewString(),
		FilmID: filmID,
		Title:  title,
	}
	if err := s.DB.Create(&song).Error; err != nil {
		return nil, utils.FromDB(err)
	}
	return &song, nil
}

// CreatePerformance attaches a person's performance to a film. The unique
// (film, person) index makes a second attempt return the existing row.
func (s *CatalogService) CreatePerformance(filmID, personID, character string) (*models.Performance, *utils.AppError) {
	if err := s.DB.First(&models.Film{}, "id = ?", filmID).Error; err != nil {
		return nil, utils.FromDB(err)
	}
	if err := s.DB.First(&models.Person{}, "id = ?", personID).Error; err != nil {
		return nil, utils.FromDB(err)
	}
	perf := models.Performance{
		ID:        uuid.NewString(),
		FilmID:    filmID,
		PersonID:  personID,
		Character: character,
	}
	if err := s.DB.Create(&perf).Error; err != nil {
		if utils.IsUniqueViolation(err, "idx_film_person") {
			var existing models.Performance
			if ferr := s.DB.Where("film_id = ? AND person_id = ?", filmID, personID).
				First(&existing).Error; ferr == nil {
				return &existing, nil
			}
		}
		return nil, utils.FromDB(err)
	}
	return &perf, nil
}

// --- HTTP surface ---

func (s *CatalogService) CreateFilmEndpoint(c *fiber.Ctx) error {
	var in createFilmInput
	if err := c.BodyParser(&in); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	result, appErr := s.CreateFilm(in)
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.Status(201).JSON(result)
}

func (s *CatalogService) GetFilm(c *fiber.Ctx) error {
	var film models.Film
	if err := s.DB.First(&film, "id = ?", c.Params("id")).Error; err != nil {
		return utils.Respond(c, utils.FromDB(err))
	}
	return c.JSON(film)
}

func (s *CatalogService) ListFilms(c *fiber.Ctx) error {
	var films []models.Film
	q := s.DB.Order("title ASC")
	if search := c.Query("q"); search != "" {
		q = q.Where("title ILIKE ?", "%"+search+"%")
	}
	if err := q.Limit(100).Find(&films).Error; err != nil {
		return utils.Respond(c, utils.FromDB(err))
	}
	return c.JSON(films)
}

// UploadFilmPoster stores a poster image and points the film at it.
func (s *CatalogService) UploadFilmPoster(c *fiber.Ctx) error {
	var film models.Film
	if err := s.DB.First(&film, "id = ?", c.Params("id")).Error; err != nil {
		return utils.Respond(c, utils.FromDB(err))
	}
	fileHeader, err := c.FormFile("poster")
	if err != nil {
		return utils.Respond(c, utils.ValidationError("poster file is required", "poster"))
	}
	key := fmt.Sprintf("posters/%s%s", film.ID, utils.FileExtension(fileHeader.Filename))
	url, err := utils.UploadFileToR2(fileHeader, key)
	if err != nil {
		log.Printf("[CATALOG] poster upload failed for film %s: %v", film.ID, err)
		return utils.Respond(c, utils.InternalError("poster upload failed"))
	}
	if err := s.DB.Model(&film).Update("poster_url", url).Error; err != nil {
		return utils.Respond(c, utils.FromDB(err))
	}
	film.PosterURL = url
	return c.JSON(film)
}

func (s *CatalogService) CreatePersonEndpoint(c *fiber.Ctx) error {
	var in createPersonInput
	if err := c.BodyParser(&in); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	result, appErr := s.CreatePerson(in)
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.Status(201).JSON(result)
}

func (s *CatalogService) GetPerson(c *fiber.Ctx) error {
	var person models.Person
	if err := s.DB.First(&person, "id = ?", c.Params("id")).Error; err != nil {
		return utils.Respond(c, utils.FromDB(err))
	}
	return c.JSON(person)
}

func (s *CatalogService) ListPeople(c *fiber.Ctx) error {
	var people []models.Person
	q := s.DB.Order("name ASC")
	if search := c.Query("q"); search != "" {
		q = q.Where("name ILIKE ?", "%"+search+"%")
	}
	if err := q.Limit(100).Find(&people).Error; err != nil {
		return utils.Respond(c, utils.FromDB(err))
	}
	return c.JSON(people)
}

func (s *CatalogService) CreateSongEndpoint(c *fiber.Ctx) error {
	type Req struct {
		FilmID string `json:"film_id"`
		Title  string `json:"title"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	song, appErr := s.CreateSong(req.FilmID, req.Title)
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.Status(201).JSON(song)
}

func (s *CatalogService) CreatePerformanceEndpoint(c *fiber.Ctx) error {
	type Req struct {
		FilmID    string `json:"film_id"`
		PersonID  string `json:"person_id"`
		Character string `json:"character"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return utils.Respond(c, utils.ValidationError("invalid JSON"))
	}
	perf, appErr := s.CreatePerformance(req.FilmID, req.PersonID, req.Character)
	if appErr != nil {
		return utils.Respond(c, appErr)
	}
	return c.Status(201).JSON(perf)
}
