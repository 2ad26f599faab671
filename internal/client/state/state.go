// Package state holds the CLI's in-memory view of the conversation: roster,
// selected peer, active thread, unseen counts, and the online set. It is a
// mutex-guarded reducer; the only side effect it can trigger is the markSeen
// callback injected by the caller.
package state

import (
	"sync"

	"github.com/skorolev/duetchat/internal/client/models"
)

type ChatState struct {
	mu       sync.Mutex
	roster   []*models.User
	selected string
	thread   []*models.Message
	unseen   map[string]int
	online   map[string]struct{}
}

func New() *ChatState {
	return &ChatState{
		unseen: map[string]int{},
		online: map[string]struct{}{},
	}
}

// SetRoster replaces the roster and unseen counts with a server snapshot.
func (s *ChatState) SetRoster(users []*models.User, unseen map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roster = users
	s.unseen = map[string]int{}
	for id, n := range unseen {
		s.unseen[id] = n
	}
}

// Roster returns the current roster snapshot.
func (s *ChatState) Roster() []*models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster
}

// SelectPeer makes the given user the active conversation and clears their
// unseen count; the server-side seen flip happens when the caller fetches
// the thread.
func (s *ChatState) SelectPeer(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = userID
	delete(s.unseen, userID)
}

// SelectedPeer returns the active conversation's peer id, empty when none.
func (s *ChatState) SelectedPeer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SetThread replaces the active thread.
func (s *ChatState) SetThread(thread []*models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thread = thread
}

// Thread returns the active thread.
func (s *ChatState) Thread() []*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thread
}

// AppendOwn adds a message the local user just sent to the active thread.
func (s *ChatState) AppendOwn(m *models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ReceiverID == s.selected {
		s.thread = append(s.thread, m)
	}
}

// ApplyNewMessage routes an incoming live message. A message from the
// selected peer lands in the open thread as seen and triggers the markSeen
// acknowledgement; anything else just bumps that sender's unseen count.
func (s *ChatState) ApplyNewMessage(m *models.Message, markSeen func(messageID string)) {
	s.mu.Lock()
	fromSelected := m.SenderID == s.selected
	if fromSelected {
		m.Seen = true
		s.thread = append(s.thread, m)
	} else {
		s.unseen[m.SenderID]++
	}
	s.mu.Unlock()

	// outside the lock: the callback does network I/O
	if fromSelected && markSeen != nil {
		markSeen(m.ID)
	}
}

// Unseen returns the unseen count for one peer.
func (s *ChatState) Unseen(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unseen[userID]
}

// SetOnline replaces the online set with a server snapshot.
func (s *ChatState) SetOnline(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s.online[id] = struct{}{}
	}
}

// IsOnline reports whether a user was in the latest presence snapshot.
func (s *ChatState) IsOnline(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.online[userID]
	return ok
}

// Reset drops all conversation state, for logout.
func (s *ChatState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roster = nil
	s.selected = ""
	s.thread = nil
	s.unseen = map[string]int{}
	s.online = map[string]struct{}{}
}
