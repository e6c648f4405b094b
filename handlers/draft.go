package handlers

import (
	"award-draft-system/middleware"
	"award-draft-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupDraftRoutes wires leagues, seasons and the pick arbiter. Everything
// here acts on behalf of a user, so the whole group is secured.
func SetupDraftRoutes(app *fiber.App, draftService *services.DraftService) {
	app.Get("/drafts/:id", draftService.GetDraft)
	app.Get("/leagues/:id", draftService.GetLeague)

	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/leagues", draftService.CreateLeagueEndpoint)
	secured.Post("/leagues/:id/members", draftService.AddLeagueMemberEndpoint)
	secured.Post("/leagues/:id/seasons", draftService.CreateSeasonEndpoint)

	secured.Post("/drafts", draftService.CreateDraftEndpoint)
	secured.Post("/drafts/:id/start", draftService.StartDraftEndpoint)
	secured.Post("/drafts/:id/pause", draftService.PauseDraftEndpoint)
	secured.Post("/drafts/:id/resume", draftService.ResumeDraftEndpoint)
	secured.Post("/drafts/:id/picks", draftService.SubmitPickEndpoint)
}
