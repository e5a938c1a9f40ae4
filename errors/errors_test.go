package errors

import (
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{Unauthorized("who are you"), fiber.StatusUnauthorized},
		{Forbidden("not yours"), fiber.StatusForbidden},
		{NotFound("nothing"), fiber.StatusNotFound},
		{BadRequest("bad"), fiber.StatusBadRequest},
		{Conflict("taken"), fiber.StatusConflict},
		{Wrap(KindTransient, fmt.Errorf("busy"), "try again"), fiber.StatusServiceUnavailable},
		{fmt.Errorf("boom"), fiber.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NotFound("deep")), fiber.StatusNotFound},
	}
	for _, test := range tests {
		assert.Equalf(t, test.expected, StatusOf(test.err), "%v", test.err)
	}
}

func TestRaise(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return Raise(c, Conflict("There are no seats available."))
	})

	res, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusConflict, res.StatusCode)
	assert.JSONEq(t, `{"status":"error","message":"conflict","data":"There are no seats available."}`, string(body))
}
