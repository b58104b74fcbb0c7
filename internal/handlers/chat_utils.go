package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var errNoUser = errors.New("no authenticated user")

// getUserUUID reads the identity the JWT middleware left in locals. The
// middleware always stores a validated non-empty string, so anything else
// means the route was wired without it.
func getUserUUID(c *fiber.Ctx) (uuid.UUID, error) {
	s, ok := c.Locals("userId").(string)
	if !ok || s == "" {
		return uuid.Nil, errNoUser
	}
	return uuid.Parse(s)
}
