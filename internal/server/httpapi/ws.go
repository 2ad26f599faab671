package httpapi

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/skorolev/duetchat/internal/common"
)

const localsWSUserID = "ws_user_id"

// wsAuthorize gates the upgrade. The access token arrives either as a bearer
// header or, for dialers that cannot set headers, a "token" query parameter.
// The identity bound to the connection always comes from the validated token.
func (s *Server) wsAuthorize(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := bearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		return s.fail(c, common.ErrorUnauthorized)
	}

	user, err := s.users.Authorize(c.UserContext(), token)
	if err != nil {
		return s.fail(c, err)
	}

	c.Locals(localsWSUserID, user.ID)
	return c.Next()
}

func (s *Server) wsHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(localsWSUserID).(string)
		if userID == "" {
			_ = conn.Close()
			return
		}
		s.gw.HandleConn(userID, conn)
	})
}
