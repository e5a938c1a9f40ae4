package handlers

import (
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetAnnouncement(c *fiber.Ctx) error {
	return c.JSON(h.svc.GetAnnouncement(c.UserContext()))
}

func (h *Handler) GetFeaturedSpeaker(c *fiber.Ctx) error {
	return c.JSON(h.svc.GetFeaturedSpeaker(c.UserContext()))
}

// SetAnnouncement is hit by the scheduler to refresh the announcement in the background.
func (h *Handler) SetAnnouncement(c *fiber.Ctx) error {
	h.svc.ScheduleAnnouncement()
	return c.SendStatus(fiber.StatusNoContent)
}
