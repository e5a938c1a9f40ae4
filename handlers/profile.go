package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"conference-central/errors"
	"conference-central/model"
)

func (h *Handler) GetProfile(c *fiber.Ctx) error {
	prof, err := h.svc.GetProfile(c.UserContext(), caller(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(prof)
}

func (h *Handler) SaveProfile(c *fiber.Ctx) error {
	form := new(model.ProfileMiniForm)
	if err := c.BodyParser(form); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("unacceptable profile parameters: %v", err))
	}

	prof, err := h.svc.SaveProfile(c.UserContext(), caller(c), *form)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(prof)
}
