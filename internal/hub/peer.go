package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// Peer represents an individual connection into a room.
type Peer struct {
	ID   string
	Name string

	ws *websocket.Conn

	// Channel for outbound messages.
	dataQ chan []byte

	// Peer's room.
	room *Room

	// Rate limiting.
	numMessages int
	lastMessage time.Time
}

// newPeer returns a new instance of Peer.
func newPeer(id, name string, ws *websocket.Conn, room *Room) *Peer {
	return &Peer{
		ID:    id,
		Name:  name,
		ws:    ws,
		dataQ: make(chan []byte, room.hub.cfg.MaxMessageQueue),
		room:  room,
	}
}

// RunListener is a blocking function that reads incoming messages from a peer's
// WS connection until its dropped or there's an error. This should be invoked
// as a goroutine.
func (p *Peer) RunListener() {
	p.ws.SetReadLimit(int64(p.room.hub.cfg.MaxMessageLen))
	for {
		_, m, err := p.ws.ReadMessage()
		if err != nil {
			break
		}
		p.processMessage(m)
	}

	// WS connection is closed.
	p.ws.Close()
	p.room.queuePeerReq(TypeLeave, p)
}

// RunWriter is a blocking function that writes messages in a peer's queue to the
// peer's WS connection. This should be invoked as a goroutine.
func (p *Peer) RunWriter() {
	defer p.ws.Close()
	for {
		message, ok := <-p.dataQ
		if !ok {
			p.writeWSData(websocket.CloseMessage, []byte{})
			return
		}
		if err := p.writeWSData(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// SendData queues a message to be written to the peer's WS.
func (p *Peer) SendData(b []byte) {
	p.dataQ <- b
}

// writeWSData writes the given payload to the peer's WS connection.
func (p *Peer) writeWSData(msgType int, payload []byte) error {
	p.ws.SetWriteDeadline(time.Now().Add(p.room.hub.cfg.WSTimeout))
	return p.ws.WriteMessage(msgType, payload)
}

// writeWSControl writes the given control payload to the peer's WS connection.
func (p *Peer) writeWSControl(payload []byte) error {
	return p.ws.WriteControl(websocket.CloseMessage, payload, time.Time{})
}

// rateLimited checks and updates the peer's message counters.
func (p *Peer) rateLimited() bool {
	cfg := p.room.hub.cfg
	if cfg.RateLimitMessages > 0 && p.numMessages > 0 {
		if (p.numMessages%cfg.RateLimitMessages+1) >= cfg.RateLimitMessages &&
			time.Since(p.lastMessage) < cfg.RateLimitInterval {
			return true
		}
	}
	p.lastMessage = time.Now()
	p.numMessages++
	return false
}

// processMessage processes incoming messages from peers.
func (p *Peer) processMessage(b []byte) {
	var m payloadMsgWrap
	if err := json.Unmarshal(b, &m); err != nil {
		return
	}

	switch m.Type {
	// Chat message to the room.
	case TypeChatMessage:
		if p.rateLimited() {
			p.writeWSControl(websocket.FormatCloseMessage(websocket.CloseNormalClosure, TypeNotice))
			p.ws.Close()
			return
		}

		var d struct {
			Msg string `json:"message"`
		}
		if err := json.Unmarshal(m.Data, &d); err != nil {
			return
		}
		p.room.Broadcast(p.room.makeChatPayload(d.Msg, p))

	// Playback state update.
	case TypeVideoSync:
		var d msgVideoSync
		if err := json.Unmarshal(m.Data, &d); err != nil {
			return
		}
		p.room.queueSync(d)
		p.room.Broadcast(p.room.makePayload(d, TypeVideoSync))

	// Request for the peer list.
	case TypePeerList:
		p.room.sendPeerList(p)

	// Dispose of the room.
	case TypeRoomDispose:
		p.room.Dispose()
	default:
	}
}
