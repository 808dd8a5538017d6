package channel

import (
	"encoding/json"
	"time"
)

// Kind identifies a room message. The set is closed; anything off the wire
// that doesn't map to a known kind becomes KindUnknown.
type Kind int

const (
	KindUnknown Kind = iota
	KindJoin
	KindLeave
	KindVideoSync
	KindChat
)

// Wire tags for each kind.
const (
	tagJoin      = "join"
	tagLeave     = "leave"
	tagVideoSync = "video_sync"
	tagChat      = "chat_message"
)

// ParseKind maps a wire tag to a Kind.
func ParseKind(tag string) Kind {
	switch tag {
	case tagJoin:
		return KindJoin
	case tagLeave:
		return KindLeave
	case tagVideoSync:
		return KindVideoSync
	case tagChat:
		return KindChat
	}
	return KindUnknown
}

// String returns the wire tag for a Kind.
func (k Kind) String() string {
	switch k {
	case KindJoin:
		return tagJoin
	case KindLeave:
		return tagLeave
	case KindVideoSync:
		return tagVideoSync
	case KindChat:
		return tagChat
	}
	return "unknown"
}

// Msg is a single message exchanged through a room channel.
type Msg struct {
	Kind      Kind
	Timestamp time.Time
	Data      json.RawMessage
}

// wireMsg is the JSON envelope messages travel in.
type wireMsg struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// PeerData is the payload of join and leave messages.
type PeerData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VideoSyncData is the payload of playback sync messages.
type VideoSyncData struct {
	VideoURL    string  `json:"video_url"`
	IsPlaying   bool    `json:"is_playing"`
	CurrentTime float64 `json:"current_time"`
}

// ChatData is the payload of chat messages.
type ChatData struct {
	PeerID   string `json:"peer_id"`
	PeerName string `json:"peer_name"`
	Msg      string `json:"message"`
}
