// Package httpapi exposes the chat service over HTTP and websockets using
// fiber. Every JSON response uses one envelope shape:
//
//	{"success": bool, "data": ..., "message": ..., "errors": [{field, message}]}
package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/skorolev/duetchat/internal/logging"
	"github.com/skorolev/duetchat/internal/server/gateway"
	"github.com/skorolev/duetchat/internal/server/models"
	"github.com/skorolev/duetchat/internal/server/services"
)

// UserService is the identity surface the API needs.
type UserService interface {
	Register(ctx context.Context, fullName, email, password, bio string) (*models.User, *services.TokenPair, error)
	Login(ctx context.Context, email, password string) (*models.User, *services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.User, *services.TokenPair, error)
	Authorize(ctx context.Context, accessToken string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID, fullName, bio, avatarDataURL string) (*models.User, error)
}

// MessageService is the messaging surface the API needs.
type MessageService interface {
	Send(ctx context.Context, senderID, receiverID, text, imageDataURL string) (*models.Message, error)
	Thread(ctx context.Context, viewerID, peerID string) ([]*models.Message, error)
	MarkSeen(ctx context.Context, messageID string) error
	RosterWithUnseen(ctx context.Context, viewerID string) ([]*models.User, map[string]int, error)
}

// LiveGateway services authenticated websocket connections.
type LiveGateway interface {
	HandleConn(userID string, conn gateway.ConnLike)
}

// Server wires services into fiber routes.
type Server struct {
	users           UserService
	messages        MessageService
	gw              LiveGateway
	logger          logging.Logger
	refreshTokenTTL time.Duration
}

func NewServer(users UserService, messages MessageService, gw LiveGateway, refreshTokenTTL time.Duration, logger logging.Logger) *Server {
	return &Server{
		users:           users,
		messages:        messages,
		gw:              gw,
		logger:          logger.With("module", "httpapi"),
		refreshTokenTTL: refreshTokenTTL,
	}
}

// Register mounts all routes on the given app.
func (s *Server) Register(app *fiber.App) {
	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/signup", s.handleSignup)
	auth.Post("/login", s.handleLogin)
	auth.Post("/refresh", s.handleRefresh)
	auth.Get("/check", s.requireAuth, s.handleCheck)
	auth.Put("/profile", s.requireAuth, s.handleUpdateProfile)

	msgs := api.Group("/messages", s.requireAuth)
	msgs.Get("/users", s.handleRoster)
	msgs.Get("/:id", s.handleThread)
	msgs.Put("/seen/:id", s.handleMarkSeen)
	msgs.Post("/send/:id", s.handleSend)

	app.Use("/ws", s.wsAuthorize)
	app.Get("/ws", s.wsHandler())
}
