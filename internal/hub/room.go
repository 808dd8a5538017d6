package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lremty/lremty/store"
)

type msgWrap struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// payloadMsgWrap is the shape of incoming peer messages.
type payloadMsgWrap struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type msgPeer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type msgChat struct {
	PeerID   string `json:"peer_id"`
	PeerName string `json:"peer_name"`
	Msg      string `json:"message"`
}

// msgVideoSync carries a playback state update.
type msgVideoSync struct {
	VideoURL    string  `json:"video_url"`
	IsPlaying   bool    `json:"is_playing"`
	CurrentTime float64 `json:"current_time"`
}

// peerReq represents a peer request (join, leave etc.) that's processed
// by a Room.
type peerReq struct {
	reqType string
	peer    *Peer
}

// Room represents an active watch-together room.
type Room struct {
	ID  string
	hub *Hub

	// List of connected peers.
	peers map[*Peer]bool

	// Broadcast channel for messages.
	broadcastQ chan []byte

	// Peer related requests.
	peerQ chan peerReq

	// Playback sync requests.
	syncQ chan msgVideoSync

	// Dispose signal.
	disposeSig chan bool
	closed     bool
}

// NewRoom returns a new instance of Room.
func NewRoom(id string, h *Hub) *Room {
	return &Room{
		ID:         id,
		hub:        h,
		peers:      make(map[*Peer]bool, 100),
		broadcastQ: make(chan []byte, 100),
		peerQ:      make(chan peerReq, 100),
		syncQ:      make(chan msgVideoSync, 100),
		disposeSig: make(chan bool),
	}
}

// AddPeer adds a new peer to the room given a WS connection from an HTTP
// handler.
func (r *Room) AddPeer(id, name string, ws *websocket.Conn) {
	r.queuePeerReq(TypeJoin, newPeer(id, name, ws, r))
}

// Dispose signals the room to notify all connected peers and dispose
// of itself.
func (r *Room) Dispose() {
	r.disposeSig <- true
}

// Broadcast broadcasts a message to all connected peers.
func (r *Room) Broadcast(data []byte) {
	r.broadcastQ <- data
}

// run is a blocking function that starts the main event loop for a room that
// handles peer connection events and message broadcasts. This should be invoked
// as a goroutine.
func (r *Room) run() {
loop:
	for {
		select {
		// Dispose request.
		case <-r.disposeSig:
			break loop

		// Incoming peer request.
		case req, ok := <-r.peerQ:
			if !ok {
				break loop
			}

			switch req.reqType {
			// A new peer has joined.
			case TypeJoin:
				// Room's capacity is exhausted. Kick the peer out.
				if len(r.peers) >= r.hub.cfg.MaxPeersPerRoom {
					req.peer.writeWSData(websocket.CloseMessage, r.makePayload("room is full", TypeRoomFull))
					req.peer.ws.Close()
					continue
				}

				r.peers[req.peer] = true
				go req.peer.RunListener()
				go req.peer.RunWriter()

				r.recordJoin(req.peer)

				// Notify all peers of the new addition.
				r.Broadcast(r.makePeerUpdatePayload(req.peer, TypeJoin))
				r.hub.log.Printf("%s@%s joined %s", req.peer.Name, req.peer.ID, r.ID)

			// A peer has left.
			case TypeLeave:
				r.removePeer(req.peer)
				r.recordLeave(req.peer)
				r.hub.log.Printf("%s@%s left %s", req.peer.Name, req.peer.ID, r.ID)

			// A peer has requested the room's peer list.
			case TypePeerList:
				req.peer.SendData(r.makePeerListPayload())
			}

		// Playback state update from a peer.
		case m, ok := <-r.syncQ:
			if !ok {
				break loop
			}
			r.recordSync(m)

		// Fanout broadcast to all peers.
		case m, ok := <-r.broadcastQ:
			if !ok {
				break loop
			}
			for p := range r.peers {
				p.SendData(m)
			}

		// Kill the room after the inactivity period.
		case <-time.After(r.hub.cfg.RoomTimeout):
			break loop
		}
	}

	r.hub.log.Printf("stopped room: %v", r.ID)
	r.remove()
}

// remove disposes a room by notifying and disconnecting all peers and
// removing the room from the hub.
func (r *Room) remove() {
	r.closed = true

	// Close all peer WS connections.
	for peer := range r.peers {
		peer.writeWSControl(websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room disposed"))
		delete(r.peers, peer)
	}

	// Close all room channels.
	close(r.broadcastQ)
	close(r.peerQ)
	close(r.syncQ)
	r.hub.removeRoom(r.ID)
}

// queuePeerReq queues a peer addition / removal request to the room.
func (r *Room) queuePeerReq(reqType string, p *Peer) {
	if r.closed {
		return
	}
	p.room.peerQ <- peerReq{reqType: reqType, peer: p}
}

// queueSync queues a playback state update to the room.
func (r *Room) queueSync(m msgVideoSync) {
	if r.closed {
		return
	}
	r.syncQ <- m
}

// removePeer removes a peer from the room and broadcasts a message to the
// room notifying all peers of the action.
func (r *Room) removePeer(p *Peer) {
	close(p.dataQ)
	delete(r.peers, p)

	// Notify all peers of the event.
	r.Broadcast(r.makePeerUpdatePayload(p, TypeLeave))
}

// sendPeerList sends the peer list to the given peer.
func (r *Room) sendPeerList(p *Peer) {
	r.peerQ <- peerReq{reqType: TypePeerList, peer: p}
}

// recordJoin folds a peer join into the stored room record. The roster
// keeps set semantics on the peer ID: a rejoin refreshes the name but
// keeps the original position.
func (r *Room) recordJoin(p *Peer) {
	r.updateRecord(func(room *store.Room) {
		for i, pr := range room.Participants {
			if pr.ID == p.ID {
				room.Participants[i].Name = p.Name
				return
			}
		}
		room.Participants = append(room.Participants, store.Participant{
			ID:       p.ID,
			Name:     p.Name,
			JoinedAt: time.Now(),
		})
	})
}

// recordLeave drops all roster entries matching the peer's ID from the
// stored room record. Leaving with no matching entry is a no-op.
func (r *Room) recordLeave(p *Peer) {
	r.updateRecord(func(room *store.Room) {
		out := room.Participants[:0]
		for _, pr := range room.Participants {
			if pr.ID != p.ID {
				out = append(out, pr)
			}
		}
		room.Participants = out
	})
}

// recordSync folds a playback update into the stored room record.
func (r *Room) recordSync(m msgVideoSync) {
	r.updateRecord(func(room *store.Room) {
		room.VideoURL = m.VideoURL
		room.IsPlaying = m.IsPlaying
		room.CurrentTime = m.CurrentTime
	})
}

// updateRecord applies a mutation to the room's stored record. Reads and
// writes happen on the room's event loop, so the store sees them in order.
func (r *Room) updateRecord(mut func(*store.Room)) {
	room, err := r.hub.Store.GetRoom(r.ID)
	if err != nil {
		r.hub.log.Printf("error reading room %s from store: %v", r.ID, err)
		return
	}
	mut(&room)
	if err := r.hub.Store.PutRoom(room, r.hub.cfg.RoomAge); err != nil {
		r.hub.log.Printf("error writing room %s to store: %v", r.ID, err)
	}
}

// makePeerListPayload prepares a message payload with the list of peers.
func (r *Room) makePeerListPayload() []byte {
	peers := make([]msgPeer, 0, len(r.peers))
	for p := range r.peers {
		peers = append(peers, msgPeer{ID: p.ID, Name: p.Name})
	}
	return r.makePayload(peers, TypePeerList)
}

// makePeerUpdatePayload prepares a message payload representing a peer
// join / leave event.
func (r *Room) makePeerUpdatePayload(p *Peer, peerUpdateType string) []byte {
	d := msgPeer{
		ID:   p.ID,
		Name: p.Name,
	}
	return r.makePayload(d, peerUpdateType)
}

// makeChatPayload prepares a chat message.
func (r *Room) makeChatPayload(msg string, p *Peer) []byte {
	d := msgChat{
		PeerID:   p.ID,
		PeerName: p.Name,
		Msg:      msg,
	}
	return r.makePayload(d, TypeChatMessage)
}

// makePayload prepares a message payload.
func (r *Room) makePayload(data interface{}, typ string) []byte {
	m := msgWrap{
		Timestamp: time.Now(),
		Type:      typ,
		Data:      data,
	}
	b, _ := json.Marshal(m)
	return b
}
