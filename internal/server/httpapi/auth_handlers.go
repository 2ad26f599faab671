package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/skorolev/duetchat/internal/common"
	"github.com/skorolev/duetchat/internal/server/models"
	"github.com/skorolev/duetchat/internal/server/services"
)

type signupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	FullName   string `json:"fullName"`
	Bio        string `json:"bio"`
	ProfilePic string `json:"profilePic"`
}

type authPayload struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"accessToken"`
}

func (s *Server) handleSignup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, common.NewValidationError("", "invalid request body"))
	}

	user, pair, err := s.users.Register(c.UserContext(), req.FullName, req.Email, req.Password, req.Bio)
	if err != nil {
		return s.fail(c, err)
	}

	s.setRefreshCookie(c, pair)
	return s.ok(c, fiber.StatusCreated, authPayload{User: user, AccessToken: pair.AccessToken})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, common.NewValidationError("", "invalid request body"))
	}

	user, pair, err := s.users.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return s.fail(c, err)
	}

	s.setRefreshCookie(c, pair)
	return s.ok(c, fiber.StatusOK, authPayload{User: user, AccessToken: pair.AccessToken})
}

// handleRefresh rotates the refresh token carried by the HttpOnly cookie.
// A spent or unknown token clears the cookie so the client stops retrying.
func (s *Server) handleRefresh(c *fiber.Ctx) error {
	token := c.Cookies(common.RefreshTokenCookie)
	if token == "" {
		return s.fail(c, common.ErrorUnauthorized)
	}

	user, pair, err := s.users.RefreshToken(c.UserContext(), token)
	if err != nil {
		s.clearRefreshCookie(c)
		return s.fail(c, err)
	}

	s.setRefreshCookie(c, pair)
	return s.ok(c, fiber.StatusOK, authPayload{User: user, AccessToken: pair.AccessToken})
}

func (s *Server) handleCheck(c *fiber.Ctx) error {
	return s.ok(c, fiber.StatusOK, fiber.Map{"user": currentUser(c)})
}

func (s *Server) handleUpdateProfile(c *fiber.Ctx) error {
	var req profileRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, common.NewValidationError("", "invalid request body"))
	}

	user, err := s.users.UpdateProfile(c.UserContext(), currentUser(c).ID, req.FullName, req.Bio, req.ProfilePic)
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, fiber.StatusOK, fiber.Map{"user": user})
}

// The cookie is scoped to the refresh path so ordinary API calls never
// carry the long-lived credential.
func (s *Server) setRefreshCookie(c *fiber.Ctx, pair *services.TokenPair) {
	c.Cookie(&fiber.Cookie{
		Name:     common.RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     "/api/auth/refresh",
		Expires:  time.Now().Add(s.refreshTokenTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (s *Server) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     common.RefreshTokenCookie,
		Value:    "",
		Path:     "/api/auth/refresh",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}
