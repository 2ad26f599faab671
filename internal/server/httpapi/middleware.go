package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/skorolev/duetchat/internal/common"
	"github.com/skorolev/duetchat/internal/server/models"
)

const localsUser = "authenticated_user"

// requireAuth resolves the bearer token to a user and stores it in locals.
func (s *Server) requireAuth(c *fiber.Ctx) error {
	token := bearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		return s.fail(c, common.ErrorUnauthorized)
	}

	user, err := s.users.Authorize(c.UserContext(), token)
	if err != nil {
		return s.fail(c, err)
	}

	c.Locals(localsUser, user)
	return c.Next()
}

func currentUser(c *fiber.Ctx) *models.User {
	return c.Locals(localsUser).(*models.User)
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
