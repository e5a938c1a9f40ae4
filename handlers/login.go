package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"

	"conference-central/errors"
)

type credentials struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Signup(c *fiber.Ctx) error {
	creds := new(credentials)
	if err := c.BodyParser(creds); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("Error on signup request when parse credentials: %v", err))
	}

	user, err := h.svc.Signup(c.UserContext(), creds.Login, creds.Email, creds.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "success", "message": "User created", "data": user.Login})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	creds := new(credentials)
	if err := c.BodyParser(creds); err != nil {
		return errors.RaiseBadRequestError(c, fmt.Sprintf("Error on login request when parse credentials: %v", err))
	}

	user, err := h.svc.Authenticate(c.UserContext(), creds.Login, creds.Password)
	if err != nil {
		return h.fail(c, err)
	}

	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["username"] = user.Login
	claims["email"] = user.Email
	claims["exp"] = time.Now().Add(h.tokenTTL).Unix()

	t, err := token.SignedString(h.sign)
	if err != nil {
		return errors.RaiseInternalServerError(c, fmt.Sprintf("cannot sign token: %v", err))
	}

	return c.JSON(fiber.Map{"status": "success", "message": "Success login", "data": t})
}
