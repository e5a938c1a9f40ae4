package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"conference-central/errors"
	"conference-central/handlers"
)

func SetupRoutes(app *fiber.App, h *handlers.Handler, auth fiber.Handler) {
	app.Use(requestid.New(), recover.New())

	api := app.Group("/", logger.New())
	api.Get("/health", h.Health)

	//Login
	api.Post("/signup", h.Signup)
	api.Post("/login", h.Login)

	//Conference
	conference := api.Group("/conference")
	conference.Get("/announcement/get", h.GetAnnouncement)
	conference.Get("/featured_speaker/get", h.GetFeaturedSpeaker)
	conference.Post("/", auth, h.CreateConference)
	conference.Get("/:key", h.GetConference)
	conference.Put("/:key", auth, h.UpdateConference)
	conference.Post("/:key", auth, h.RegisterForConference)
	conference.Delete("/:key", auth, h.UnregisterFromConference)

	api.Post("/getConferencesCreated", auth, h.GetConferencesCreated)
	api.Post("/queryConferences", h.QueryConferences)
	api.Get("/conferences/attending", auth, h.GetConferencesToAttend)

	//Session
	api.Post("/session", auth, h.CreateSession)
	api.Get("/getConferenceSessions/:key", h.GetConferenceSessions)
	api.Get("/sessiontype/:key/:type", h.GetConferenceSessionsByType)
	api.Get("/sessionspeaker/:speaker", h.GetSessionsBySpeaker)
	api.Get("/getConferenceSessionsByHighlight/:highlight", h.GetConferenceSessionsByHighlight)
	api.Get("/getConferencesWithSessionHighlights/:highlight", h.GetConferencesWithSessionHighlights)
	api.Get("/getConferenceSessionsByFilters", h.GetConferenceSessionsByFilters)

	//Wishlist
	api.Post("/addSessionToWishlist", auth, h.AddSessionToWishlist)
	api.Get("/getSessionsInWishlist", auth, h.GetSessionsInWishlist)

	//Profile
	api.Get("/profile", auth, h.GetProfile)
	api.Post("/profile", auth, h.SaveProfile)

	//Crons
	api.Get("/crons/set_announcement", h.SetAnnouncement)

	app.Use(func(c *fiber.Ctx) error {
		return errors.RaiseNotFoundError(c, "No route for "+c.Method()+" "+c.Path())
	})
}
