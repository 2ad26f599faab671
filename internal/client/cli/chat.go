package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/skorolev/duetchat/internal/client/models"
)

// Users fetches and prints the roster with online marks and unseen counts.
func (a *App) Users(ctx context.Context) error {
	users, unseen, err := a.api.Roster(ctx)
	if err != nil {
		log.Printf("Could not load users: %s", err.Error())
		return err
	}
	a.state.SetRoster(users, unseen)

	if len(users) == 0 {
		printlnFn("Nobody else is registered yet.")
		return nil
	}

	for i, u := range users {
		mark := " "
		if a.state.IsOnline(u.ID) {
			mark = "*"
		}
		line := fmt.Sprintf("%2d %s %s", i+1, mark, u.FullName)
		if n := unseen[u.ID]; n > 0 {
			line = fmt.Sprintf("%s (%d unread)", line, n)
		}
		printlnFn(line)
	}
	return nil
}

// Open selects a peer by roster number (as printed by Users) and fetches the
// conversation. The server marks the peer's messages seen as a side effect.
func (a *App) Open(ctx context.Context, arg string) error {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		printlnFn("Usage: open <n>")
		return nil
	}

	roster := a.state.Roster()
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(roster) {
		printlnFn("Unknown user; run 'users' first and pick a number.")
		return nil
	}
	peer := roster[n-1]

	thread, err := a.api.Thread(ctx, peer.ID)
	if err != nil {
		log.Printf("Could not load conversation: %s", err.Error())
		return err
	}

	a.state.SelectPeer(peer.ID)
	a.state.SetThread(thread)

	printlnFn(fmt.Sprintf("--- %s ---", peer.FullName))
	me := a.api.CurrentUser().ID
	for _, m := range thread {
		printMessage(m, me)
	}
	return nil
}

// Send delivers a text message to the selected peer.
func (a *App) Send(ctx context.Context, text string) error {
	peer := a.state.SelectedPeer()
	if peer == "" {
		printlnFn("Open a conversation first: open <n>")
		return nil
	}
	if strings.TrimSpace(text) == "" {
		printlnFn("Usage: send <text>")
		return nil
	}

	msg, err := a.api.SendMessage(ctx, peer, text, "")
	if err != nil {
		log.Printf("Could not send: %s", err.Error())
		return err
	}
	a.state.AppendOwn(msg)
	return nil
}

// SendImage reads a local image file and sends it as a base64 data URL.
func (a *App) SendImage(ctx context.Context, path string) error {
	peer := a.state.SelectedPeer()
	if peer == "" {
		printlnFn("Open a conversation first: open <n>")
		return nil
	}
	path = strings.TrimSpace(path)
	if path == "" {
		printlnFn("Usage: sendimg <path>")
		return nil
	}

	dataURL, err := fileToDataURL(path)
	if err != nil {
		log.Printf("Could not read image: %s", err.Error())
		return err
	}

	msg, err := a.api.SendMessage(ctx, peer, "", dataURL)
	if err != nil {
		log.Printf("Could not send: %s", err.Error())
		return err
	}
	a.state.AppendOwn(msg)
	return nil
}

func fileToDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	mime := ""
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mime = "image/png"
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".gif":
		mime = "image/gif"
	case ".webp":
		mime = "image/webp"
	default:
		return "", fmt.Errorf("unsupported image type %q", filepath.Ext(path))
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func printMessage(m *models.Message, myID string) {
	who := "them"
	if m.SenderID == myID {
		who = "me"
	}
	text := m.Text
	if m.ImageURL != "" {
		if text != "" {
			text += " "
		}
		text += "[image: " + m.ImageURL + "]"
	}
	printlnFn(fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04"), who, text))
}
