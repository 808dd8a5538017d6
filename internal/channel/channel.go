// Package channel models a client's connection to a watch-together room:
// the participant roster, message send/receive and event dispatch.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/lremty/lremty/store"
)

// State of a channel.
type State int

const (
	StateIdle State = iota
	StateConnected
	StateDisconnected
)

// ErrNotConnected indicates an operation on a channel that isn't connected.
var ErrNotConnected = errors.New("channel is not connected")

// Channel is a connection to one room. A disconnected channel can be
// reconnected, which starts over with a fresh roster.
type Channel struct {
	self store.Participant
	tr   Transport
	log  *log.Logger

	mut          sync.RWMutex
	state        State
	roomID       string
	participants []store.Participant
	subs         []func(Msg)
}

// New returns a new Channel for the given self participant over the
// given transport.
func New(tr Transport, self store.Participant, l *log.Logger) *Channel {
	return &Channel{
		self: self,
		tr:   tr,
		log:  l,
	}
}

// Connect attaches the channel to a room. The roster starts with exactly
// the self participant; any previous roster is discarded.
func (c *Channel) Connect(ctx context.Context, roomID string) error {
	if err := c.tr.Connect(ctx, roomID, c.receive); err != nil {
		return err
	}

	self := c.self
	self.JoinedAt = time.Now()

	c.mut.Lock()
	c.state = StateConnected
	c.roomID = roomID
	c.participants = []store.Participant{self}
	c.mut.Unlock()

	c.log.Printf("connected to room: %s", roomID)
	return nil
}

// Disconnect detaches the channel from its room and clears the roster.
// Calling it on an already disconnected channel is a no-op.
func (c *Channel) Disconnect() {
	c.mut.Lock()
	if c.state != StateConnected {
		c.mut.Unlock()
		return
	}
	c.state = StateDisconnected
	c.roomID = ""
	c.participants = nil
	c.mut.Unlock()

	if err := c.tr.Close(); err != nil {
		c.log.Printf("error closing transport: %v", err)
	}
}

// Send marshals the payload and hands it to the transport. It fails with
// ErrNotConnected when the channel isn't connected.
func (c *Channel) Send(kind Kind, data interface{}) error {
	c.mut.RLock()
	connected := c.state == StateConnected
	c.mut.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.tr.Send(Msg{
		Kind:      kind,
		Timestamp: time.Now(),
		Data:      b,
	})
}

// Subscribe registers a consumer for every inbound message. Consumers are
// invoked after the channel has applied roster effects.
func (c *Channel) Subscribe(fn func(Msg)) {
	c.mut.Lock()
	c.subs = append(c.subs, fn)
	c.mut.Unlock()
}

// Roster returns a snapshot of the current participants in join order.
func (c *Channel) Roster() []store.Participant {
	c.mut.RLock()
	defer c.mut.RUnlock()
	out := make([]store.Participant, len(c.participants))
	copy(out, c.participants)
	return out
}

// RoomID returns the connected room's ID, empty when not connected.
func (c *Channel) RoomID() string {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return c.roomID
}

// State returns the channel's lifecycle state.
func (c *Channel) State() State {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return c.state
}

// receive applies an inbound message to the roster and dispatches it to
// subscribers. Playback and chat messages carry no roster effect here;
// they're only dispatched for the player / chat UI to consume.
func (c *Channel) receive(m Msg) {
	switch m.Kind {
	case KindJoin:
		var d PeerData
		if err := json.Unmarshal(m.Data, &d); err != nil {
			c.log.Printf("error decoding join payload: %v", err)
			return
		}
		c.addParticipant(d)

	case KindLeave:
		var d PeerData
		if err := json.Unmarshal(m.Data, &d); err != nil {
			c.log.Printf("error decoding leave payload: %v", err)
			return
		}
		c.removeParticipant(d.ID)

	case KindVideoSync, KindChat:

	default:
		c.log.Printf("dropping message of unknown kind in room %s", c.RoomID())
		return
	}

	c.mut.RLock()
	subs := c.subs
	c.mut.RUnlock()
	for _, fn := range subs {
		fn(m)
	}
}

// addParticipant appends a participant to the roster. The roster is a set
// over participant IDs: a rejoin refreshes the name and keeps the original
// position.
func (c *Channel) addParticipant(d PeerData) {
	c.mut.Lock()
	defer c.mut.Unlock()
	if c.state != StateConnected {
		return
	}
	for i, p := range c.participants {
		if p.ID == d.ID {
			c.participants[i].Name = d.Name
			return
		}
	}
	c.participants = append(c.participants, store.Participant{
		ID:       d.ID,
		Name:     d.Name,
		JoinedAt: time.Now(),
	})
}

// removeParticipant drops all roster entries with the given ID. Removing
// an absent ID is a no-op.
func (c *Channel) removeParticipant(id string) {
	c.mut.Lock()
	defer c.mut.Unlock()
	out := c.participants[:0]
	for _, p := range c.participants {
		if p.ID != id {
			out = append(out, p)
		}
	}
	c.participants = out
}
