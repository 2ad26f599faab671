// Package livefeed consumes the server's websocket push channel and
// dispatches events to registered handlers. The channel is push-only; all
// client requests go over the HTTP API.
package livefeed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/skorolev/duetchat/internal/client/models"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Handlers receive dispatched events. Nil handlers are skipped. OnDisconnect
// fires exactly once, whatever ends the feed; there is no automatic
// reconnection.
type Handlers struct {
	OnNewMessage  func(*models.Message)
	OnOnlineUsers func([]string)
	OnDisconnect  func(error)
}

type Feed struct {
	conn     *websocket.Conn
	handlers Handlers

	closeOnce  sync.Once
	notifyOnce sync.Once
}

// Dial connects to the live feed URL (ws://.../ws?token=...). Presence
// information is only trustworthy once the dial has succeeded.
func Dial(ctx context.Context, url string, handlers Handlers) (*Feed, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return &Feed{conn: conn, handlers: handlers}, nil
}

// Run reads frames until the connection drops or ctx is cancelled. It always
// returns after firing OnDisconnect.
func (f *Feed) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		f.Close()
	}()

	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			f.Close()
			f.disconnect(err)
			return
		}
		f.dispatch(data)
	}
}

// Close tears the connection down. Safe to call repeatedly.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		_ = f.conn.Close()
	})
}

func (f *Feed) dispatch(data []byte) {
	var fr frame
	if err := json.Unmarshal(data, &fr); err != nil {
		return
	}

	switch fr.Event {
	case "newMessage":
		if f.handlers.OnNewMessage == nil {
			return
		}
		var m models.Message
		if err := json.Unmarshal(fr.Data, &m); err != nil {
			return
		}
		f.handlers.OnNewMessage(&m)

	case "getOnlineUsers":
		if f.handlers.OnOnlineUsers == nil {
			return
		}
		var ids []string
		if err := json.Unmarshal(fr.Data, &ids); err != nil {
			return
		}
		f.handlers.OnOnlineUsers(ids)
	}
}

func (f *Feed) disconnect(err error) {
	f.notifyOnce.Do(func() {
		if f.handlers.OnDisconnect != nil {
			f.handlers.OnDisconnect(err)
		}
	})
}
