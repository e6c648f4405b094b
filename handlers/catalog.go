package handlers

import (
	"award-draft-system/middleware"
	"award-draft-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupCatalogRoutes wires films, people, songs, performances and the merge
// engine. Merges are destructive and gated behind the admin role.
func SetupCatalogRoutes(app *fiber.App, catalogService *services.CatalogService, mergeService *services.MergeService) {
	app.Get("/films", catalogService.ListFilms)
	app.Get("/films/:id", catalogService.GetFilm)
	app.Get("/people", catalogService.ListPeople)
	app.Get("/people/:id", catalogService.GetPerson)

	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/films", catalogService.CreateFilmEndpoint)
	secured.Post("/films/:id/poster", catalogService.UploadFilmPoster)
	secured.Post("/people", catalogService.CreatePersonEndpoint)
	secured.Post("/songs", catalogService.CreateSongEndpoint)
	secured.Post("/performances", catalogService.CreatePerformanceEndpoint)

	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	admin.Post("/merge/films", mergeService.MergeFilmsEndpoint)
	admin.Post("/merge/people", mergeService.MergePeopleEndpoint)
}
