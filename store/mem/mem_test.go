package mem

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/lremty/lremty/store"
)

func testRoom(id string) store.Room {
	return store.Room{
		ID:           id,
		CreatedAt:    time.Now().Truncate(time.Second),
		Participants: []store.Participant{},
	}
}

func TestRoomRoundTrip(t *testing.T) {
	m, err := New(Config{})
	if err != nil {
		t.Fatalf("couldn't create store: %v", err)
	}

	r := testRoom("AbC123XyZ9")
	if err := m.PutRoom(r, time.Hour); err != nil {
		t.Fatalf("PutRoom failed: %v", err)
	}

	out, err := m.GetRoom(r.ID)
	if err != nil {
		t.Fatalf("GetRoom failed: %v", err)
	}
	if !reflect.DeepEqual(r, out) {
		t.Fatalf("retrieved room differs from stored: %+v != %+v", out, r)
	}

	// Put is an overwrite.
	r.IsPlaying = true
	r.CurrentTime = 42.5
	r.VideoURL = "https://example.com/v.mp4"
	r.Participants = append(r.Participants, store.Participant{ID: "p1", Name: "one"})
	if err := m.PutRoom(r, time.Hour); err != nil {
		t.Fatalf("PutRoom overwrite failed: %v", err)
	}
	out, err = m.GetRoom(r.ID)
	if err != nil {
		t.Fatalf("GetRoom after overwrite failed: %v", err)
	}
	if !reflect.DeepEqual(r, out) {
		t.Fatalf("overwritten room differs: %+v != %+v", out, r)
	}
}

func TestRoomNotFound(t *testing.T) {
	m, _ := New(Config{})

	if _, err := m.GetRoom("nosuchroom"); !errors.Is(err, store.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}

	exists, err := m.RoomExists("nosuchroom")
	if err != nil || exists {
		t.Fatalf("inexistent room reported as existing (err=%v)", err)
	}
}

func TestRemoveRoom(t *testing.T) {
	m, _ := New(Config{})

	r := testRoom("AbC123XyZ9")
	m.PutRoom(r, time.Hour)
	if err := m.RemoveRoom(r.ID); err != nil {
		t.Fatalf("RemoveRoom failed: %v", err)
	}

	exists, _ := m.RoomExists(r.ID)
	if exists {
		t.Fatal("removed room still exists")
	}
}

func TestCleanup(t *testing.T) {
	m, _ := New(Config{})

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

func TestKV(t *testing.T) {
	m, _ := New(Config{})

	if err := m.Set("onionkey", []byte("pem")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	d, err := m.Get("onionkey")
	if err != nil || string(d) != "pem" {
		t.Fatalf("Get returned %q, %v", d, err)
	}
	if _, err := m.Get("nokey"); err == nil {
		t.Fatal("Get of inexistent key didn't fail")
	}
}
