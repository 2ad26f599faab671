// Package gateway relays server events to connected clients over websockets
// and keeps the presence registry in sync with connection lifecycle.
package gateway

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/skorolev/duetchat/internal/common"
	"github.com/skorolev/duetchat/internal/logging"
	"github.com/skorolev/duetchat/internal/server/presence"
)

// Frame is the wire shape of every live-channel push.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type Gateway struct {
	registry *presence.Registry
	logger   logging.Logger
}

func New(registry *presence.Registry, logger logging.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		logger:   logger.With("module", "gateway"),
	}
}

// HandleConn services one authenticated connection until it closes. The
// userID must come from a validated access token, never from a client claim.
//
// Bind and unbind each broadcast the online set; a disconnect that lost the
// bind race (stale generation) broadcasts nothing because membership did not
// change.
func (g *Gateway) HandleConn(userID string, conn ConnLike) {
	p := newPeer(conn)

	gen, prev := g.registry.Bind(userID, p)
	if prev != nil {
		// single-session policy: the newer connection displaces the older one
		prev.Close()
	}
	g.BroadcastPresence()
	g.logger.Info(context.Background(), "client connected", "user_id", userID)

	go p.writePump()
	p.readPump()

	if g.registry.Unbind(userID, gen) {
		g.BroadcastPresence()
	}
	g.logger.Info(context.Background(), "client disconnected", "user_id", userID)
}

// Send pushes an event to the given user's connection if one is bound.
// It reports false when the user is offline or the frame was dropped;
// callers fall back on the persisted record.
func (g *Gateway) Send(userID string, event string, payload any) bool {
	conn, ok := g.registry.Lookup(userID)
	if !ok {
		return false
	}

	data, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		g.logger.Error(context.Background(), "marshal push frame", "event", event, "error", err)
		return false
	}
	return conn.Enqueue(data)
}

// BroadcastPresence pushes the sorted online id set to every connection.
func (g *Gateway) BroadcastPresence() {
	ids := g.registry.OnlineIDs()
	sort.Strings(ids)

	data, err := json.Marshal(Frame{Event: common.EventOnlineUsers, Data: ids})
	if err != nil {
		g.logger.Error(context.Background(), "marshal presence frame", "error", err)
		return
	}
	for _, conn := range g.registry.Conns() {
		conn.Enqueue(data)
	}
}

// Online reports whether the given user currently holds a connection.
func (g *Gateway) Online(userID string) bool {
	_, ok := g.registry.Lookup(userID)
	return ok
}
