package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"conference-central/errors"
	"conference-central/middleware"
	"conference-central/service"
)

type Handler struct {
	svc      *service.Service
	sign     []byte
	tokenTTL time.Duration
	logger   *zap.Logger
}

func New(svc *service.Service, sign string, tokenTTL time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		svc:      svc,
		sign:     []byte(sign),
		tokenTTL: tokenTTL,
		logger:   logger.Named("http"),
	}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "success", "message": "ok", "data": nil})
}

// fail writes err to the client, logging it when it is not one of the expected kinds.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	if errors.KindOf(err) == errors.KindInternal {
		h.logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Any("requestid", c.Locals("requestid")),
			zap.Error(err))
	}
	return errors.Raise(c, err)
}

// caller builds the service caller from the verified token, nil for anonymous requests.
func caller(c *fiber.Ctx) *service.Caller {
	claims := middleware.Claims(c)
	if claims == nil {
		return nil
	}
	username, _ := claims["username"].(string)
	if username == "" {
		return nil
	}
	email, _ := claims["email"].(string)
	return &service.Caller{UserID: username, Email: email}
}
