// Package cli implements the interactive chat client: a small REPL on top of
// the session client, the in-memory chat state, and the websocket live feed.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/skorolev/duetchat/internal/client/config"
	"github.com/skorolev/duetchat/internal/client/livefeed"
	"github.com/skorolev/duetchat/internal/client/models"
	"github.com/skorolev/duetchat/internal/client/session"
	"github.com/skorolev/duetchat/internal/client/state"
)

type App struct {
	config *config.Config
	api    *session.Client
	state  *state.ChatState
	reader *bufio.Reader

	feed       *livefeed.Feed
	feedCancel context.CancelFunc
}

func NewApp(c *config.Config) (*App, error) {
	api, err := session.New(c.ServerEndpointAddr, c.RequestTimeout)
	if err != nil {
		return nil, err
	}

	return &App{
		config: c,
		api:    api,
		state:  state.New(),
		reader: bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.stopFeed()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.api.LoggedIn()
}

// startFeed dials the live feed for the current session and consumes it in
// the background. Incoming messages either land in the open thread (and get
// acknowledged as seen) or bump unseen counts and print a notification.
func (a *App) startFeed(ctx context.Context) error {
	wsURL, err := a.api.WebsocketURL()
	if err != nil {
		return err
	}

	feedCtx, cancel := context.WithCancel(ctx)

	feed, err := livefeed.Dial(feedCtx, wsURL, livefeed.Handlers{
		OnNewMessage:  a.onNewMessage(feedCtx),
		OnOnlineUsers: a.state.SetOnline,
		OnDisconnect: func(err error) {
			printlnFn("Live feed disconnected; messages will still arrive via refresh.")
		},
	})
	if err != nil {
		cancel()
		return err
	}

	a.feed = feed
	a.feedCancel = cancel
	go feed.Run(feedCtx)
	return nil
}

func (a *App) stopFeed() {
	if a.feedCancel != nil {
		a.feedCancel()
		a.feedCancel = nil
	}
	if a.feed != nil {
		a.feed.Close()
		a.feed = nil
	}
}

func (a *App) onNewMessage(ctx context.Context) func(m *models.Message) {
	return func(m *models.Message) {
		a.state.ApplyNewMessage(m, func(messageID string) {
			if err := a.api.MarkSeen(ctx, messageID); err != nil {
				printlnFn(fmt.Sprintf("could not acknowledge message: %s", err.Error()))
			}
		})
		if m.SenderID == a.state.SelectedPeer() {
			printMessage(m, a.api.CurrentUser().ID)
		} else {
			printlnFn(fmt.Sprintf("New message from %s (%d unread)", m.SenderID, a.state.Unseen(m.SenderID)))
		}
	}
}
