package gateway

import (
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// ConnLike is the subset of *websocket.Conn the gateway needs. Tests provide
// fakes.
type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// peer wraps one live websocket connection with a buffered outbound queue.
// All writes go through the write pump; the read pump only watches for the
// connection closing.
type peer struct {
	conn ConnLike
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func newPeer(conn ConnLike) *peer {
	return &peer{
		conn: conn,
		send: make(chan []byte, 16),
		done: make(chan struct{}),
	}
}

// Enqueue offers a frame to the write pump without blocking. A full queue or
// a closed peer drops the frame; the live channel has no redelivery.
func (p *peer) Enqueue(data []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- data:
		return true
	default:
		return false
	}
}

// Close tears the connection down. Safe to call from any goroutine, any
// number of times.
func (p *peer) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

func (p *peer) writePump() {
	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.Close()
				return
			}
		}
	}
}

// readPump blocks until the connection errors or closes. Inbound frames are
// discarded: clients talk to the server over the HTTP API, the live channel
// is push-only.
func (p *peer) readPump() {
	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			p.Close()
			return
		}
	}
}
