package fs

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lremty/lremty/store"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestRoomRoundTrip(t *testing.T) {
	m, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db")}, testLogger())
	if err != nil {
		t.Fatalf("couldn't create store: %v", err)
	}

	r := store.Room{
		ID:           "AbC123XyZ9",
		CreatedAt:    time.Now().Truncate(time.Second),
		Participants: []store.Participant{{ID: "p1", Name: "one", JoinedAt: time.Now().Truncate(time.Second)}},
		VideoURL:     "https://example.com/v.mp4",
		IsPlaying:    true,
		CurrentTime:  12.25,
	}
	if err := m.PutRoom(r, time.Hour); err != nil {
		t.Fatalf("PutRoom failed: %v", err)
	}

	out, err := m.GetRoom(r.ID)
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if out.ID != r.ID || out.VideoURL != r.VideoURL || !out.IsPlaying ||
		out.CurrentTime != r.CurrentTime || len(out.Participants) != 1 {
		t.Fatalf("retrieved room differs from stored: %+v", out)
	}

	if _, err := m.GetRoom("nosuchroom"); !errors.Is(err, store.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestLoadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	snap := struct {
		Rooms map[string]*room
		Data  map[string][]byte
	}{
		Rooms: map[string]*room{
			store.RoomKey("AbC123XyZ9"): {
				Room: store.Room{
					ID:        "AbC123XyZ9",
					CreatedAt: time.Now(),
				},
				Expire: time.Now().Add(time.Hour),
			},
		},
		Data: map[string][]byte{"onionkey": []byte("pem")},
	}
	b, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("couldn't marshal snapshot: %v", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		t.Fatalf("couldn't write snapshot: %v", err)
	}

	m, err := New(Config{Path: path}, testLogger())
	if err != nil {
		t.Fatalf("couldn't load store from snapshot: %v", err)
	}

	if _, err := m.GetRoom("AbC123XyZ9"); err != nil {
		t.Fatalf("room from snapshot missing: %v", err)
	}
	d, err := m.Get("onionkey")
	if err != nil || string(d) != "pem" {
		t.Fatalf("KV from snapshot missing: %q, %v", d, err)
	}
}

func TestCleanup(t *testing.T) {
	m, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db")}, testLogger())
	if err != nil {
		t.Fatalf("couldn't create store: %v", err)
	}

	m.PutRoom(store.Room{ID: "expired123", CreatedAt: time.Now().Add(-2 * time.Hour)}, time.Hour)
	m.PutRoom(store.Room{ID: "living1234", CreatedAt: time.Now()}, time.Hour)
	m.cleanup()

	if ok, _ := m.RoomExists("expired123"); ok {
		t.Fatal("expired room survived cleanup")
	}
	if ok, _ := m.RoomExists("living1234"); !ok {
		t.Fatal("live room was swept")
	}
}
