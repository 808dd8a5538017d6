package store

import (
	"errors"
	"time"
)

// Store represents a backend store.
type Store interface {
	PutRoom(r Room, ttl time.Duration) error
	GetRoom(id string) (Room, error)
	RoomExists(id string) (bool, error)
	RemoveRoom(id string) error

	Get(key string) ([]byte, error)
	Set(key string, data []byte) error
}

// Room represents the persisted state of a watch-together room.
type Room struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	Participants []Participant `json:"participants"`
	VideoURL     string        `json:"video_url"`
	IsPlaying    bool          `json:"is_playing"`
	CurrentTime  float64       `json:"current_time"`
}

// Participant is a user on a room's roster.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// RoomKey returns the key a room record is persisted under.
func RoomKey(id string) string {
	return "room_" + id
}

// ErrRoomNotFound indicates that the requested room was not found.
var ErrRoomNotFound = errors.New("room not found")
