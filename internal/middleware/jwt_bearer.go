package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/PashamDhanushReddy/TalentLink/internal/utils"
)

// JWTFromBearer reads the access token from the Authorization header.
// Every chat request carries "Authorization: Bearer <access_token>"; a 401
// here is the signal for the client's external token-refresh flow.
func JWTFromBearer(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			return fiber.ErrUnauthorized
		}

		claims, err := utils.ParseJWT(secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return fiber.ErrUnauthorized
		}
		if claims.TokenType != "access" {
			return fiber.ErrUnauthorized
		}

		c.Locals("claims", claims)
		return c.Next()
	}
}
