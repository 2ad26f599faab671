package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/skorolev/duetchat/internal/common"
	"github.com/skorolev/duetchat/internal/logging"
	"github.com/skorolev/duetchat/internal/server/presence"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeSocket scripts a websocket connection: ReadMessage blocks until the
// socket is closed, WriteMessage records frames.
type fakeSocket struct {
	mu     sync.Mutex
	frames [][]byte
	closed chan struct{}
	once   sync.Once
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{closed: make(chan struct{})}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	<-s.closed
	return 0, nil, io.EOF
}

func (s *fakeSocket) WriteMessage(mt int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, data)
	return nil
}

func (s *fakeSocket) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) events(t *testing.T) []Frame {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Frame, 0, len(s.frames))
	for _, raw := range s.frames {
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("bad frame %q: %v", raw, err)
		}
		out = append(out, f)
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached in time")
}

func TestHandleConn_BindsAndUnbinds(t *testing.T) {
	t.Parallel()

	reg := presence.NewRegistry()
	g := New(reg, testLogger())
	sock := newFakeSocket()

	done := make(chan struct{})
	go func() {
		g.HandleConn("u1", sock)
		close(done)
	}()

	waitFor(t, func() bool { return g.Online("u1") })

	sock.Close()
	<-done

	if g.Online("u1") {
		t.Fatalf("user still online after disconnect")
	}
}

func TestSend_DeliversToBoundUser(t *testing.T) {
	t.Parallel()

	reg := presence.NewRegistry()
	g := New(reg, testLogger())
	sock := newFakeSocket()

	go g.HandleConn("u1", sock)
	waitFor(t, func() bool { return g.Online("u1") })

	if !g.Send("u1", common.EventNewMessage, map[string]string{"text": "hi"}) {
		t.Fatalf("Send returned false for an online user")
	}

	waitFor(t, func() bool {
		for _, f := range sock.events(t) {
			if f.Event == common.EventNewMessage {
				return true
			}
		}
		return false
	})
	sock.Close()
}

func TestSend_OfflineUserReturnsFalse(t *testing.T) {
	t.Parallel()

	g := New(presence.NewRegistry(), testLogger())
	if g.Send("ghost", common.EventNewMessage, nil) {
		t.Fatalf("Send must report false for an offline user")
	}
}

func TestSecondConnection_DisplacesFirst(t *testing.T) {
	t.Parallel()

	reg := presence.NewRegistry()
	g := New(reg, testLogger())

	first := newFakeSocket()
	second := newFakeSocket()

	firstDone := make(chan struct{})
	go func() {
		g.HandleConn("u1", first)
		close(firstDone)
	}()
	waitFor(t, func() bool { return g.Online("u1") })

	go g.HandleConn("u1", second)

	// the displaced socket is closed, its handler returns, and the user
	// stays online on the second connection
	<-firstDone
	if !g.Online("u1") {
		t.Fatalf("user must remain online on the newer connection")
	}
	second.Close()
}

func TestBroadcastPresence_ReachesEveryConnection(t *testing.T) {
	t.Parallel()

	reg := presence.NewRegistry()
	g := New(reg, testLogger())

	a := newFakeSocket()
	b := newFakeSocket()
	go g.HandleConn("u1", a)
	waitFor(t, func() bool { return g.Online("u1") })
	go g.HandleConn("u2", b)
	waitFor(t, func() bool { return g.Online("u2") })

	// u2's bind broadcast must reach u1 with the full sorted set
	waitFor(t, func() bool {
		for _, f := range a.events(t) {
			if f.Event != common.EventOnlineUsers {
				continue
			}
			raw, _ := json.Marshal(f.Data)
			var ids []string
			if err := json.Unmarshal(raw, &ids); err != nil {
				continue
			}
			if len(ids) == 2 && ids[0] == "u1" && ids[1] == "u2" {
				return true
			}
		}
		return false
	})
	a.Close()
	b.Close()
}
