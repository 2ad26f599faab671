package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/skorolev/duetchat/internal/common"
	"github.com/skorolev/duetchat/internal/server/models"
)

type sendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

type rosterPayload struct {
	Users          []*models.User `json:"users"`
	UnseenMessages map[string]int `json:"unseenMessages"`
}

func (s *Server) handleRoster(c *fiber.Ctx) error {
	users, unseen, err := s.messages.RosterWithUnseen(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return s.fail(c, err)
	}
	if users == nil {
		users = []*models.User{}
	}
	if unseen == nil {
		unseen = map[string]int{}
	}
	return s.ok(c, fiber.StatusOK, rosterPayload{Users: users, UnseenMessages: unseen})
}

func (s *Server) handleThread(c *fiber.Ctx) error {
	peerID := c.Params("id")
	thread, err := s.messages.Thread(c.UserContext(), currentUser(c).ID, peerID)
	if err != nil {
		return s.fail(c, err)
	}
	if thread == nil {
		thread = []*models.Message{}
	}
	return s.ok(c, fiber.StatusOK, thread)
}

func (s *Server) handleMarkSeen(c *fiber.Ctx) error {
	if err := s.messages.MarkSeen(c.UserContext(), c.Params("id")); err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, fiber.StatusOK, nil)
}

func (s *Server) handleSend(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, common.NewValidationError("", "invalid request body"))
	}

	msg, err := s.messages.Send(c.UserContext(), currentUser(c).ID, c.Params("id"), req.Text, req.Image)
	if err != nil {
		return s.fail(c, err)
	}
	return s.ok(c, fiber.StatusCreated, msg)
}
