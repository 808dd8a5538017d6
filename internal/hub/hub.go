package hub

import (
	"crypto/rand"
	"errors"
	"log"
	"regexp"
	"sync"
	"time"

	"github.com/lremty/lremty/store"
)

// Types of messages exchanged with peers.
const (
	TypeJoin        = "join"
	TypeLeave       = "leave"
	TypeVideoSync   = "video_sync"
	TypeChatMessage = "chat_message"
	TypePeerList    = "peer.list"
	TypeRoomDispose = "room.dispose"
	TypeRoomFull    = "room.full"
	TypeNotice      = "notice"
)

// RoomIDLen is the fixed length of room identifiers.
const RoomIDLen = 10

// roomIDDict is the alphabet room identifiers are drawn from.
const roomIDDict = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var reRoomID = regexp.MustCompile("^[A-Za-z0-9]{10}$")

// Config represents the app configuration.
type Config struct {
	Address string `koanf:"address"`
	RootURL string `koanf:"root_url"`

	Name              string        `koanf:"name"`
	MaxMessageLen     int           `koanf:"max_message_length"`
	WSTimeout         time.Duration `koanf:"websocket_timeout"`
	MaxMessageQueue   int           `koanf:"max_message_queue"`
	RateLimitInterval time.Duration `koanf:"rate_limit_interval"`
	RateLimitMessages int           `koanf:"rate_limit_messages"`
	MaxRooms          int           `koanf:"max_rooms"`
	MaxPeersPerRoom   int           `koanf:"max_peers_per_room"`
	RoomTimeout       time.Duration `koanf:"room_timeout"`
	RoomAge           time.Duration `koanf:"room_age"`
}

// Hub acts as the controller and container for all active rooms.
type Hub struct {
	Store store.Store
	rooms map[string]*Room

	cfg *Config
	mut sync.RWMutex
	log *log.Logger
}

// NewHub returns a new instance of Hub.
func NewHub(cfg *Config, store store.Store, l *log.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]*Room),

		cfg:   cfg,
		Store: store,
		log:   l,
	}
}

// AddRoom creates a new room in the store, adds it to the hub, and
// returns the room (which has to be .Run() on a goroutine then).
func (h *Hub) AddRoom() (*Room, error) {
	id, err := h.generateUniqueRoomID(5)
	if err != nil {
		return nil, err
	}

	// Add the room to the store with an empty roster and stopped playback.
	if err := h.Store.PutRoom(store.Room{
		ID:           id,
		CreatedAt:    time.Now(),
		Participants: []store.Participant{},
	}, h.cfg.RoomAge); err != nil {
		h.log.Printf("error creating room in the store: %v", err)
		return nil, errors.New("error creating room")
	}

	// Initialize the room.
	return h.initRoom(id), nil
}

// ActivateRoom loads a room from the store into the hub if it's not already active.
// A syntactically valid ID missing from the store is admitted with a fresh
// record, as the room may have been created elsewhere.
func (h *Hub) ActivateRoom(id string) (*Room, error) {
	h.mut.RLock()
	room, ok := h.rooms[id]
	h.mut.RUnlock()
	if ok {
		return room, nil
	}

	if _, err := h.Store.GetRoom(id); err != nil {
		if !ValidateRoomID(id) {
			return nil, errors.New("room doesn't exist")
		}
		if err := h.Store.PutRoom(store.Room{
			ID:           id,
			CreatedAt:    time.Now(),
			Participants: []store.Participant{},
		}, h.cfg.RoomAge); err != nil {
			h.log.Printf("error registering room %s in the store: %v", id, err)
			return nil, errors.New("error registering room")
		}
	}

	// Initialize the room.
	return h.initRoom(id), nil
}

// GetRoom retrieves an active room from the hub.
func (h *Hub) GetRoom(id string) *Room {
	h.mut.RLock()
	r := h.rooms[id]
	h.mut.RUnlock()
	return r
}

// initRoom initializes a room on the Hub.
func (h *Hub) initRoom(id string) *Room {
	r := NewRoom(id, h)
	h.mut.Lock()
	h.rooms[id] = r
	h.mut.Unlock()
	go r.run()
	return r
}

// removeRoom removes a room from the hub and the store.
func (h *Hub) removeRoom(id string) error {
	h.mut.Lock()
	delete(h.rooms, id)
	h.mut.Unlock()

	err := h.Store.RemoveRoom(id)
	if err != nil {
		h.log.Printf("error removing room from store: %v", err)
		return err
	}
	return nil
}

// generateUniqueRoomID generates a random room ID while checking the store
// for uniqueness up to numTries times.
func (h *Hub) generateUniqueRoomID(numTries int) (string, error) {
	for i := 0; i < numTries; i++ {
		id, err := GenerateRoomID()
		if err != nil {
			h.log.Printf("error generating room ID: %v", err)
			return "", errors.New("error generating room ID")
		}

		exists, err := h.Store.RoomExists(id)
		if err != nil {
			h.log.Printf("error checking room ID in store: %v", err)
			return "", errors.New("error checking room ID")
		}

		// Got a unique ID.
		if !exists {
			return id, nil
		}
	}
	return "", errors.New("unable to generate unique room ID")
}

// GenerateRoomID generates a random 10 character alphanumeric room
// identifier. Random bytes past the largest multiple of the dictionary
// size are rejected so every character is sampled uniformly.
func GenerateRoomID() (string, error) {
	const max = byte(len(roomIDDict) * (256 / len(roomIDDict)))

	out := make([]byte, 0, RoomIDLen)
	buf := make([]byte, RoomIDLen)
	for len(out) < RoomIDLen {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, v := range buf {
			if v >= max {
				continue
			}
			out = append(out, roomIDDict[int(v)%len(roomIDDict)])
			if len(out) == RoomIDLen {
				break
			}
		}
	}
	return string(out), nil
}

// ValidateRoomID checks whether a candidate has the shape of a room identifier.
func ValidateRoomID(id string) bool {
	return reRoomID.MatchString(id)
}
