package handlers

import (
	"award-draft-system/middleware"
	"award-draft-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupCeremonyRoutes wires the ceremony lifecycle, the nomination ledger,
// winners and the realtime stream.
func SetupCeremonyRoutes(
	app *fiber.App,
	ceremonyService *services.CeremonyService,
	nominationService *services.NominationService,
	winnerService *services.WinnerService,
	notifyService *services.NotifyService,
	configService *services.ConfigService,
) {
	// 🔓 Public reads — no user context, but still behind Gateway auth
	app.Get("/ceremonies", ceremonyService.GetAllCeremonies)
	app.Get("/ceremonies/:id", ceremonyService.GetCeremonyByID)
	app.Get("/ceremonies/:id/winners", winnerService.GetCeremonyWinners)
	app.Get("/nominations/:id/audit", nominationService.GetNominationAudit)
	app.Get("/config/active-ceremony", configService.GetActiveCeremony)

	// SSE authenticates via query token, not the gateway header
	app.Get("/ceremonies/:id/events", middleware.SSEAuthMiddleware(), notifyService.StreamCeremonyEventsSSE)

	// 🔐 Secured routes — require user context, enforced via middleware
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/ceremonies", ceremonyService.CreateCeremony)
	secured.Patch("/ceremonies/:id", ceremonyService.UpdateCeremony)
	secured.Delete("/ceremonies/:id", ceremonyService.DeleteCeremony)
	secured.Post("/ceremonies/:id/publish", ceremonyService.PublishCeremony)
	secured.Post("/ceremonies/:id/lock", ceremonyService.LockCeremony)
	secured.Post("/ceremonies/:id/archive", ceremonyService.ArchiveCeremony)
	secured.Post("/ceremonies/:id/finalize", ceremonyService.FinalizeCeremonyWinners)
	secured.Post("/ceremonies/:id/artwork", ceremonyService.UploadArtwork)

	secured.Post("/ceremonies/:id/categories", nominationService.CreateCategoryEndpoint)
	secured.Delete("/categories/:category_id", nominationService.DeleteCategoryEndpoint)
	secured.Post("/categories/:category_id/reorder", nominationService.ReorderNominationsEndpoint)
	secured.Post("/categories/:category_id/winners", winnerService.SetCategoryWinners)

	secured.Post("/nominations", nominationService.CreateNominationEndpoint)
	secured.Delete("/nominations/:id", nominationService.DeleteNominationEndpoint)
	secured.Post("/nominations/:id/status", nominationService.ChangeNominationStatusEndpoint)
	secured.Post("/nominations/:id/contributors", nominationService.AddContributorEndpoint)
	secured.Delete("/nominations/contributors/:contributor_id", nominationService.RemoveContributorEndpoint)

	secured.Put("/config/active-ceremony", configService.PutActiveCeremony)
}
