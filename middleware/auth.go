package middleware

import (
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"

	"conference-central/errors"
)

// IdentityKey is where the verified token is stored in the request locals.
const IdentityKey = "identity"

func Authorize(sign string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(sign),
		ErrorHandler: jwtError,
		ContextKey:   IdentityKey,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	if err.Error() == "Missing or malformed JWT" {
		return errors.RaiseUnauthorizedError(c, "Missing or malformed JWT")
	}
	return errors.RaiseUnauthorizedError(c, "Invalid or expired JWT")
}

// Claims returns the claims of the token verified by Authorize, or nil when the request carries none.
func Claims(c *fiber.Ctx) jwt.MapClaims {
	token, ok := c.Locals(IdentityKey).(*jwt.Token)
	if !ok {
		return nil
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	return claims
}
