package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/planningpoker/go/internal/room"
)

// ErrSendBufferFull is returned when a channel cannot keep up with its room
var ErrSendBufferFull = errors.New("send buffer full")

var _ room.Subscriber = (*Channel)(nil)

// Channel is the transport-independent half of a subscription: a bounded
// outbox a transport pump drains. It implements room.Subscriber.
type Channel struct {
	ID          string
	RoomID      string
	UserID      string
	ConnectedAt time.Time

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewChannel creates a new Channel
func NewChannel(roomID, userID string, buffer int, now time.Time) *Channel {
	if buffer <= 0 {
		buffer = 1
	}
	return &Channel{
		ID:          uuid.New().String(),
		RoomID:      room.NormalizeID(roomID),
		UserID:      userID,
		ConnectedAt: now,
		send:        make(chan []byte, buffer),
	}
}

// Send queues payload without blocking
func (c *Channel) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return room.ErrSubscriberClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops the channel. Messages already queued can still be drained.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Messages is drained by the transport; it is closed by Close
func (c *Channel) Messages() <-chan []byte {
	return c.send
}
