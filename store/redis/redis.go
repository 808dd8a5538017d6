package redis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/lremty/lremty/store"
)

// Config represents the Redis store config structure.
type Config struct {
	Address     string        `koanf:"address"`
	Password    string        `koanf:"password"`
	DB          int           `koanf:"db"`
	ActiveConns int           `koanf:"active_conns"`
	IdleConns   int           `koanf:"idle_conns"`
	Timeout     time.Duration `koanf:"timeout"`

	PrefixRoom string `koanf:"prefix_room"`
	PrefixData string `koanf:"prefix_data"`
}

// Redis represents the Redis implementation of the Store interface.
type Redis struct {
	cfg  *Config
	pool *redis.Pool
}

type room struct {
	ID           string  `redis:"id"`
	CreatedAt    string  `redis:"created_at"`
	Participants []byte  `redis:"participants"`
	VideoURL     string  `redis:"video_url"`
	IsPlaying    bool    `redis:"is_playing"`
	CurrentTime  float64 `redis:"current_time"`
}

// New returns a new Redis store.
func New(cfg Config) (*Redis, error) {
	if cfg.PrefixRoom == "" {
		cfg.PrefixRoom = "room_%s"
	}
	if cfg.PrefixData == "" {
		cfg.PrefixData = "data_%s"
	}

	pool := &redis.Pool{
		Wait:      true,
		MaxActive: cfg.ActiveConns,
		MaxIdle:   cfg.IdleConns,
		Dial: func() (redis.Conn, error) {
			return redis.Dial(
				"tcp",
				cfg.Address,
				redis.DialPassword(cfg.Password),
				redis.DialConnectTimeout(cfg.Timeout),
				redis.DialReadTimeout(cfg.Timeout),
				redis.DialWriteTimeout(cfg.Timeout),
				redis.DialDatabase(cfg.DB),
			)
		},
	}

	// Test connection.
	c := pool.Get()
	defer c.Close()

	if err := c.Err(); err != nil {
		return nil, err
	}
	return &Redis{cfg: &cfg, pool: pool}, nil
}

// PutRoom writes a room record to the store, overwriting any existing
// record under the same ID. The participant list is flattened to JSON as
// redigo's struct scanning doesn't handle nested structs.
func (r *Redis) PutRoom(room store.Room, ttl time.Duration) error {
	c := r.pool.Get()
	defer c.Close()

	participants, err := json.Marshal(room.Participants)
	if err != nil {
		return err
	}

	key := fmt.Sprintf(r.cfg.PrefixRoom, room.ID)
	c.Send("HMSET", key,
		"id", room.ID,
		"created_at", room.CreatedAt.Format(time.RFC3339Nano),
		"participants", participants,
		"video_url", room.VideoURL,
		"is_playing", room.IsPlaying,
		"current_time", room.CurrentTime)
	if ttl > 0 {
		c.Send("EXPIRE", key, int(ttl.Seconds()))
	}
	return c.Flush()
}

// GetRoom gets a room from the store.
func (r *Redis) GetRoom(id string) (store.Room, error) {
	c := r.pool.Get()
	defer c.Close()

	var (
		out  store.Room
		room room
		key  = fmt.Sprintf(r.cfg.PrefixRoom, id)
	)
	res, err := redis.Values(c.Do("HGETALL", key))
	if err != nil {
		return out, err
	}
	if len(res) == 0 {
		return out, store.ErrRoomNotFound
	}
	if err := redis.ScanStruct(res, &room); err != nil {
		return out, err
	}

	t, err := time.Parse(time.RFC3339Nano, room.CreatedAt)
	if err != nil {
		return out, err
	}

	var participants []store.Participant
	if len(room.Participants) > 0 {
		if err := json.Unmarshal(room.Participants, &participants); err != nil {
			return out, err
		}
	}

	return store.Room{
		ID:           id,
		CreatedAt:    t,
		Participants: participants,
		VideoURL:     room.VideoURL,
		IsPlaying:    room.IsPlaying,
		CurrentTime:  room.CurrentTime,
	}, nil
}

// RoomExists checks if a room exists in the store.
func (r *Redis) RoomExists(id string) (bool, error) {
	c := r.pool.Get()
	defer c.Close()

	ok, err := redis.Bool(c.Do("EXISTS", fmt.Sprintf(r.cfg.PrefixRoom, id)))
	if err != nil && err != redis.ErrNil {
		return false, err
	}
	return ok, nil
}

// RemoveRoom deletes a room from the store.
func (r *Redis) RemoveRoom(id string) error {
	c := r.pool.Get()
	defer c.Close()

	_, err := c.Do("DEL", fmt.Sprintf(r.cfg.PrefixRoom, id))
	return err
}

// Get value from a key.
func (r *Redis) Get(key string) ([]byte, error) {
	c := r.pool.Get()
	defer c.Close()

	d, err := redis.Bytes(c.Do("GET", fmt.Sprintf(r.cfg.PrefixData, key)))
	if err != nil && err != redis.ErrNil {
		return nil, err
	}
	return d, nil
}

// Set a value.
func (r *Redis) Set(key string, data []byte) error {
	c := r.pool.Get()
	defer c.Close()

	_, err := c.Do("SET", fmt.Sprintf(r.cfg.PrefixData, key), data)
	return err
}
