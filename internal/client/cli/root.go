package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
)

func (a *App) getStatus() string {
	user := a.api.CurrentUser()
	if user == nil {
		return "(logged out)"
	}
	s := user.FullName
	if peer := a.state.SelectedPeer(); peer != "" {
		s = fmt.Sprintf("%s -> %s", s, a.peerName(peer))
	}
	return fmt.Sprintf("(%s)", s)
}

func (a *App) Root(ctx context.Context) {
	log.Println("Welcome to duetchat CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}

func (a *App) peerName(userID string) string {
	for _, u := range a.state.Roster() {
		if u.ID == userID {
			return u.FullName
		}
	}
	return userID
}
