package channel

import (
	"context"
	"sync"
	"time"
)

// DefaultLoopbackDelay is the simulated round-trip latency.
const DefaultLoopbackDelay = 100 * time.Millisecond

// Loopback is a Transport that echoes every sent message back to the
// receiver after a fixed delay, simulating a round trip to a server with no
// other participants. Connecting never fails. The uniform delay keeps
// deliveries in send order.
type Loopback struct {
	// Delay before a sent message is delivered back.
	// DefaultLoopbackDelay when zero.
	Delay time.Duration

	mu   sync.Mutex
	recv func(Msg)
}

// Connect registers the receiver for echoed messages.
func (t *Loopback) Connect(ctx context.Context, roomID string, recv func(Msg)) error {
	t.mu.Lock()
	t.recv = recv
	t.mu.Unlock()
	return nil
}

// Send schedules the message to be delivered back to the receiver.
func (t *Loopback) Send(m Msg) error {
	t.mu.Lock()
	recv := t.recv
	t.mu.Unlock()
	if recv == nil {
		return ErrNotConnected
	}

	d := t.Delay
	if d == 0 {
		d = DefaultLoopbackDelay
	}
	time.AfterFunc(d, func() {
		recv(m)
	})
	return nil
}

// Close drops the receiver.
func (t *Loopback) Close() error {
	t.mu.Lock()
	t.recv = nil
	t.mu.Unlock()
	return nil
}
