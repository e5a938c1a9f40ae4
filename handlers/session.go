package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"conference-central/errors"
	"conference-central/model"
)

func (h *Handler) CreateSession(c *fiber.Ctx) error {
	form := new(model.SessionForm)
	if err := c.BodyParser(form); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable session parameters: %v", err))
	}

	created, err := h.svc.CreateSession(c.UserContext(), caller(c), *form)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(created)
}

func (h *Handler) GetConferenceSessions(c *fiber.Ctx) error {
	return h.sessions(c)(h.svc.GetConferenceSessions(c.UserContext(), c.Params("key")))
}

func (h *Handler) GetConferenceSessionsByType(c *fiber.Ctx) error {
	return h.sessions(c)(h.svc.GetConferenceSessionsByType(c.UserContext(), c.Params("key"), c.Params("type")))
}

func (h *Handler) GetSessionsBySpeaker(c *fiber.Ctx) error {
	return h.sessions(c)(h.svc.GetSessionsBySpeaker(c.UserContext(), c.Params("speaker")))
}

func (h *Handler) GetConferenceSessionsByHighlight(c *fiber.Ctx) error {
	return h.sessions(c)(h.svc.GetConferenceSessionsByHighlight(c.UserContext(), c.Params("highlight")))
}

func (h *Handler) GetConferenceSessionsByFilters(c *fiber.Ctx) error {
	return h.sessions(c)(h.svc.GetConferenceSessionsByFilters(c.UserContext(), c.Query("type"), c.Query("time"), c.Query("operator")))
}

func (h *Handler) GetConferencesWithSessionHighlights(c *fiber.Ctx) error {
	confs, err := h.svc.GetConferencesWithSessionHighlights(c.UserContext(), c.Params("highlight"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(confs)
}

func (h *Handler) AddSessionToWishlist(c *fiber.Ctx) error {
	form := new(model.WishlistForm)
	if err := c.BodyParser(form); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable wishlist parameters: %v", err))
	}

	added, err := h.svc.AddSessionToWishlist(c.UserContext(), caller(c), form.SessionKey)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(added)
}

func (h *Handler) GetSessionsInWishlist(c *fiber.Ctx) error {
	return h.sessions(c)(h.svc.GetSessionsInWishlist(c.UserContext(), caller(c)))
}

func (h *Handler) sessions(c *fiber.Ctx) func(model.SessionForms, error) error {
	return func(forms model.SessionForms, err error) error {
		if err != nil {
			return h.fail(c, err)
		}
		return c.JSON(forms)
	}
}
