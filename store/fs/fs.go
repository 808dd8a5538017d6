package fs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"

	"github.com/lremty/lremty/store"
)

// Config represents the file store config structure.
type Config struct {
	Path string `koanf:"path"`
}

// File represents the file implementation of the Store interface.
type File struct {
	cfg   *Config
	rooms map[string]*room
	data  map[string][]byte
	mu    sync.Mutex
	dirty bool
	log   *log.Logger
}

type room struct {
	store.Room
	Expire time.Time
}

// New returns a new file store.
func New(cfg Config, log *log.Logger) (*File, error) {
	store := &File{
		cfg:   &cfg,
		rooms: map[string]*room{},
		data:  map[string][]byte{},
		log:   log,
	}
	err := store.load()
	go store.watch()
	return store, err
}

// watch the store to clean it up.
func (m *File) watch() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for range t.C {
		m.cleanup()
		m.save()
	}
}

// cleanup the store to remove expired items.
func (m *File) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	for key, r := range m.rooms {
		if !r.Expire.IsZero() && r.Expire.Before(now) {
			delete(m.rooms, key)
			m.dirty = true
			continue
		}
	}
}

// load the data from the file system.
func (m *File) load() error {
	if _, err := os.Stat(m.cfg.Path); err != nil {
		return nil
	}
	x := struct {
		Rooms map[string]*room
		Data  map[string][]byte
	}{}
	data, err := os.ReadFile(m.cfg.Path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	if x.Rooms != nil {
		m.rooms = x.Rooms
	}
	if x.Data != nil {
		m.data = x.Data
	}
	return nil
}

// save the data to the file system.
func (m *File) save() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dirty {
		data, err := json.Marshal(struct {
			Rooms map[string]*room
			Data  map[string][]byte
		}{
			Rooms: m.rooms,
			Data:  m.data,
		})
		if err == nil {
			m.dirty = false
			go func() {
				err := os.WriteFile(m.cfg.Path, data, os.ModePerm)
				if err != nil {
					m.log.Printf("error writing file %q: %v", m.cfg.Path, err)
				}
			}()
		}
	}
}

// PutRoom writes a room record to the store, overwriting any existing
// record under the same ID.
func (m *File) PutRoom(r store.Room, ttl time.Duration) error {
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
	m.dirty = true

	return nil
}

// GetRoom gets a room from the store.
func (m *File) GetRoom(id string) (store.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out, ok := m.rooms[store.RoomKey(id)]
	if !ok {
		return store.Room{}, store.ErrRoomNotFound
	}
	return out.Room, nil
}

// RoomExists checks if a room exists in the store.
func (m *File) RoomExists(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.rooms[store.RoomKey(id)]

	return ok, nil
}

// RemoveRoom deletes a room from the store.
func (m *File) RemoveRoom(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[store.RoomKey(id)]; ok {
		delete(m.rooms, store.RoomKey(id))
		m.dirty = true
	}

	return nil
}

// Get value from a key.
func (m *File) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return d, nil
}

// Set a value.
func (m *File) Set(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = make([]byte, len(data))
	copy(m.data[key], data)
	m.dirty = true
	return nil
}
