package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skorolev/duetchat/internal/common"
	"github.com/skorolev/duetchat/internal/server/models"
)

func TestMessageService_Send_RequiresContent(t *testing.T) {
	t.Parallel()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	s := NewMessageService(db, rm, &fakeMediaStore{}, &fakePusher{}, testLogger())

	_, err := s.Send(context.Background(), "u1", "u2", "", "")
	var ve *common.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if rm.messages.createCalls != 0 {
		t.Error("nothing should be persisted")
	}
}

func TestMessageService_Send_UnknownReceiver(t *testing.T) {
	t.Parallel()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	s := NewMessageService(db, rm, &fakeMediaStore{}, &fakePusher{}, testLogger())

	_, err := s.Send(context.Background(), "u1", "ghost", "hi", "")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
	if rm.messages.createCalls != 0 {
		t.Error("nothing should be persisted")
	}
}

func TestMessageService_Send_OnlineRecipient(t *testing.T) {
	t.Parallel()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.users.byID["u2"] = &models.User{ID: "u2"}
	pusher := &fakePusher{delivered: true}
	s := NewMessageService(db, rm, &fakeMediaStore{}, pusher, testLogger())

	msg, err := s.Send(context.Background(), "u1", "u2", "hi", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Seen {
		t.Error("new message must start unseen")
	}
	if len(pusher.calls) != 1 {
		t.Fatalf("expected one push, got %d", len(pusher.calls))
	}
	call := pusher.calls[0]
	if call.UserID != "u2" || call.Event != common.EventNewMessage {
		t.Errorf("unexpected push target %q event %q", call.UserID, call.Event)
	}
	if call.Payload.(*models.Message).ID != msg.ID {
		t.Error("push payload is not the persisted message")
	}
}

func TestMessageService_Send_OfflineRecipientStillPersists(t *testing.T) {
	t.Parallel()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.users.byID["u2"] = &models.User{ID: "u2"}
	s := NewMessageService(db, rm, &fakeMediaStore{}, &fakePusher{delivered: false}, testLogger())

	msg, err := s.Send(context.Background(), "u1", "u2", "hi", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID == "" {
		t.Error("expected persisted message despite offline recipient")
	}
	if rm.messages.createCalls != 1 {
		t.Errorf("expected one create, got %d", rm.messages.createCalls)
	}
}

func TestMessageService_Send_PersistFailureSkipsPush(t *testing.T) {
	t.Parallel()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.users.byID["u2"] = &models.User{ID: "u2"}
	rm.messages.createErr = errors.New("db down")
	pusher := &fakePusher{delivered: true}
	s := NewMessageService(db, rm, &fakeMediaStore{}, pusher, testLogger())

	_, err := s.Send(context.Background(), "u1", "u2", "hi", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(pusher.calls) != 0 {
		t.Error("push must not run when persistence fails")
	}
}

func TestMessageService_Send_WithImage(t *testing.T) {
	t.Parallel()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.users.byID["u2"] = &models.User{ID: "u2"}
	store := &fakeMediaStore{url: "https://cdn/img.png"}
	s := NewMessageService(db, rm, store, &fakePusher{}, testLogger())

	msg, err := s.Send(context.Background(), "u1", "u2", "", "data:image/png;base64,aGk=")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ImageURL != "https://cdn/img.png" {
		t.Errorf("unexpected image url %q", msg.ImageURL)
	}
	if len(store.uploads) != 1 {
		t.Errorf("expected one upload, got %d", len(store.uploads))
	}
}

func TestMessageService_Thread_MarksPeerMessagesSeen(t *testing.T) {
	t.Parallel()
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	rm := newFakeRepoManager()
	now := time.Now()
	rm.messages.thread = []*models.Message{
		{ID: "m1", SenderID: "u2", ReceiverID: "u1", Text: "hi", Seen: false, CreatedAt: now},
		{ID: "m2", SenderID: "u1", ReceiverID: "u2", Text: "hello", Seen: false, CreatedAt: now.Add(time.Second)},
	}
	s := NewMessageService(db, rm, &fakeMediaStore{}, &fakePusher{}, testLogger())

	thread, err := s.Thread(context.Background(), "u1", "u2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(thread) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(thread))
	}
	if !thread[0].Seen {
		t.Error("peer's message should be returned as seen")
	}
	if thread[1].Seen {
		t.Error("viewer's own message must not flip seen")
	}
	if len(rm.messages.markThreadCalls) != 1 || rm.messages.markThreadCalls[0] != "u2->u1" {
		t.Errorf("unexpected bulk mark calls: %v", rm.messages.markThreadCalls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMessageService_MarkSeen(t *testing.T) {
	t.Parallel()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	s := NewMessageService(db, rm, &fakeMediaStore{}, &fakePusher{}, testLogger())

	if err := s.MarkSeen(context.Background(), "m1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rm.messages.markSeenIDs) != 1 || rm.messages.markSeenIDs[0] != "m1" {
		t.Errorf("unexpected mark calls: %v", rm.messages.markSeenIDs)
	}
}

func TestMessageService_RosterWithUnseen(t *testing.T) {
	t.Parallel()
	db, _ := newSQLMockDB(t)
	defer db.Close()
	rm := newFakeRepoManager()
	rm.users.others = []*models.User{{ID: "u2"}, {ID: "u3"}}
	rm.messages.unseen = map[string]int{"u2": 3}
	s := NewMessageService(db, rm, &fakeMediaStore{}, &fakePusher{}, testLogger())

	roster, unseen, err := s.RosterWithUnseen(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("expected 2 users, got %d", len(roster))
	}
	if unseen["u2"] != 3 || unseen["u3"] != 0 {
		t.Errorf("unexpected unseen counts: %v", unseen)
	}
}
