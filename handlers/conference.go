package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"conference-central/errors"
	"conference-central/model"
)

func (h *Handler) CreateConference(c *fiber.Ctx) error {
	form := new(model.ConferenceForm)
	if err := c.BodyParser(form); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable conference parameters: %v", err))
	}

	created, err := h.svc.CreateConference(c.UserContext(), caller(c), *form)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(created)
}

func (h *Handler) UpdateConference(c *fiber.Ctx) error {
	form := new(model.ConferenceForm)
	if err := c.BodyParser(form); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable conference parameters: %v", err))
	}

	updated, err := h.svc.UpdateConference(c.UserContext(), caller(c), c.Params("key"), *form)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(updated)
}

func (h *Handler) GetConference(c *fiber.Ctx) error {
	conf, err := h.svc.GetConference(c.UserContext(), c.Params("key"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(conf)
}

func (h *Handler) RegisterForConference(c *fiber.Ctx) error {
	ok, err := h.svc.RegisterForConference(c.UserContext(), caller(c), c.Params("key"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(model.BooleanMessage{Data: ok})
}

func (h *Handler) UnregisterFromConference(c *fiber.Ctx) error {
	ok, err := h.svc.UnregisterFromConference(c.UserContext(), caller(c), c.Params("key"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(model.BooleanMessage{Data: ok})
}

func (h *Handler) GetConferencesCreated(c *fiber.Ctx) error {
	confs, err := h.svc.GetConferencesCreated(c.UserContext(), caller(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(confs)
}

func (h *Handler) QueryConferences(c *fiber.Ctx) error {
	forms := new(model.ConferenceQueryForms)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(forms); err != nil {
			return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable query filters: %v", err))
		}
	}

	confs, err := h.svc.QueryConferences(c.UserContext(), forms.Filters)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(confs)
}

func (h *Handler) GetConferencesToAttend(c *fiber.Ctx) error {
	confs, err := h.svc.GetConferencesToAttend(c.UserContext(), caller(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(confs)
}
