package mem

import (
	"fmt"
	"sync"
	"time"

	"github.com/lremty/lremty/store"
)

// Config represents the InMemory store config structure.
type Config struct{}

// InMemory represents the in-memory implementation of the Store interface.
type InMemory struct {
	cfg   *Config
	rooms map[string]*room
	data  map[string][]byte
	mu    sync.Mutex
}

type room struct {
	store.Room
	Expire time.Time
}

// New returns a new in-memory store.
func New(cfg Config) (*InMemory, error) {
	store := &InMemory{
		cfg:   &cfg,
		rooms: map[string]*room{},
		data:  map[string][]byte{},
	}
	go store.watch()
	return store, nil
}

// watch the store to clean it up.
func (m *InMemory) watch() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for range t.C {
		m.cleanup()
	}
}

// cleanup the store to remove expired items.
func (m *InMemory) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	for key, r := range m.rooms {
		if !r.Expire.IsZero() && r.Expire.Before(now) {
			delete(m.rooms, key)
			continue
		}
	}
}

// PutRoom writes a room record to the store, overwriting any existing
// record under the same ID.
func (m *InMemory) PutRoom(r store.Room, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = r.CreatedAt.Add(ttl)
	}
	m.rooms[store.RoomKey(r.ID)] = &room{
		Room:   r,
		Expire: exp,
	}

	return nil
}

// GetRoom gets a room from the store.
func (m *InMemory) GetRoom(id string) (store.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out, ok := m.rooms[store.RoomKey(id)]
	if !ok {
		return store.Room{}, store.ErrRoomNotFound
	}
	return out.Room, nil
}

// RoomExists checks if a room exists in the store.
func (m *InMemory) RoomExists(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.rooms[store.RoomKey(id)]

	return ok, nil
}

// RemoveRoom deletes a room from the store.
func (m *InMemory) RemoveRoom(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rooms, store.RoomKey(id))

	return nil
}

// Get value from a key.
func (m *InMemory) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("key %q not found", key)
	}
	return d, nil
}

// Set a value.
func (m *InMemory) Set(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = make([]byte, len(data))
	copy(m.data[key], data)
	return nil
}
