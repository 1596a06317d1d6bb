package ws

import (
	"context"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sendQueueSize = 64

// clientConn is one live transport-level link.
//
// Outbound events are enqueued (never written) under room locks; the
// write pump drains the queue onto the socket, so each connection sees
// room events in the order the room serialized them.
type clientConn struct {
	id   string
	raw  *websocket.Conn
	send chan outEnvelope

	done      chan struct{}
	closeOnce sync.Once

	// Session state: Pending (joined == false) or Joined. Owned by the
	// connection's reader goroutine; only the room lock protects the
	// occupant position, which lives in the arena, not here.
	joined  bool
	spaceID string
	userID  string
}

func newClientConn(raw *websocket.Conn) *clientConn {
	return &clientConn{
		id:   uuid.NewString(),
		raw:  raw,
		send: make(chan outEnvelope, sendQueueSize),
		done: make(chan struct{}),
	}
}

// enqueue hands an event to the write pump. It never blocks: a consumer
// that cannot drain its queue is closed and cleaned up through the
// registry's removal path, the sole authority on liveness.
func (c *clientConn) enqueue(env outEnvelope) {
	select {
	case c.send <- env:
	case <-c.done:
	default:
		zap.L().Warn("ws.slow_consumer", zap.String("conn_id", c.id))
		c.close(websocket.StatusPolicyViolation, "send queue overflow")
	}
}

// close signals shutdown and releases the socket. Signalling is
// synchronous; the close handshake writes a close frame and waits for
// the peer's, so it runs in its own goroutine — close is called from
// enqueue under room locks, which must never wait on network I/O.
func (c *clientConn) close(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.raw == nil {
			return
		}
		go func() { _ = c.raw.Close(status, reason) }()
	})
}

// writePump drains the outbound queue onto the socket.
func (c *clientConn) writePump() {
	for {
		select {
		case env := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := wsjson.Write(ctx, c.raw, env)
			cancel()
			if err != nil {
				c.close(websocket.StatusNormalClosure, "write failed")
				return
			}
		case <-c.done:
			return
		}
	}
}
