package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport carries messages between a channel and a room. Implementations
// deliver every inbound message to the receiver registered at Connect.
type Transport interface {
	Connect(ctx context.Context, roomID string, recv func(Msg)) error
	Send(m Msg) error
	Close() error
}

// WSTransport is a websocket Transport that dials a room's /ws endpoint.
type WSTransport struct {
	// RootURL is the server's base URL, e.g. ws://localhost:9000.
	RootURL string

	// Self identifies this peer to the server.
	Self PeerData

	Dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// Connect dials the room's websocket endpoint and starts pumping inbound
// messages to recv until the connection drops.
func (t *WSTransport) Connect(ctx context.Context, roomID string, recv func(Msg)) error {
	d := t.Dialer
	if d == nil {
		d = websocket.DefaultDialer
	}

	q := url.Values{}
	q.Set("id", t.Self.ID)
	q.Set("name", t.Self.Name)
	addr := fmt.Sprintf("%s/ws/%s?%s", t.RootURL, roomID, q.Encode())

	conn, _, err := d.DialContext(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("error connecting to room %s: %w", roomID, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	go func() {
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var w wireMsg
			if err := json.Unmarshal(b, &w); err != nil {
				continue
			}
			recv(Msg{
				Kind:      ParseKind(w.Type),
				Timestamp: w.Timestamp,
				Data:      w.Data,
			})
		}
	}()
	return nil
}

// Send writes a message to the room's websocket.
func (t *WSTransport) Send(m Msg) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteJSON(wireMsg{
		Type:      m.Kind.String(),
		Timestamp: m.Timestamp,
		Data:      m.Data,
	})
}

// Close drops the websocket connection.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
