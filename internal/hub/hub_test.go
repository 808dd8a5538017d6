package hub

import (
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/lremty/lremty/store"
)

func TestGenerateRoomID(t *testing.T) {
	for i := 0; i < 100; i++ {
		id, err := GenerateRoomID()
		if err != nil {
			t.Fatalf("couldn't generate room ID: %v", err)
		}
		if len(id) != RoomIDLen {
			t.Fatalf("invalid room ID length. %d != %d", RoomIDLen, len(id))
		}
		for _, c := range id {
			if !strings.ContainsRune(roomIDDict, c) {
				t.Fatalf("room ID %q has character %q outside the alphabet", id, c)
			}
		}
		if !ValidateRoomID(id) {
			t.Fatalf("generated room ID %q fails validation", id)
		}
	}
}

// TestGenerateRoomIDUniform checks that no slice of the alphabet is favoured.
// A modulo over raw bytes would skew the first 256%62 characters by ~25%,
// far outside the bounds here.
func TestGenerateRoomIDUniform(t *testing.T) {
	const numIDs = 20000
	counts := make(map[rune]int, len(roomIDDict))
	for i := 0; i < numIDs; i++ {
		id, err := GenerateRoomID()
		if err != nil {
			t.Fatalf("couldn't generate room ID: %v", err)
		}
		for _, c := range id {
			counts[c]++
		}
	}

	mean := float64(numIDs*RoomIDLen) / float64(len(roomIDDict))
	for _, c := range roomIDDict {
		n := float64(counts[c])
		if n < mean*0.85 || n > mean*1.15 {
			t.Errorf("character %q drawn %d times, expected ~%.0f", c, counts[c], mean)
		}
	}
}

func TestValidateRoomID(t *testing.T) {
	cases := []struct {
		id string
		ok bool
	}{
		{"AbC123XyZ9", true},
		{"0000000000", true},
		{"short", false},
		{"", false},
		{"AbC123XyZ9x", false},
		{"AbC123Xy_9", false},
		{"AbC123Xy 9", false},
		{"AbC123Xyظ9", false},
	}
	for _, c := range cases {
		if ValidateRoomID(c.id) != c.ok {
			t.Errorf("ValidateRoomID(%q) != %v", c.id, c.ok)
		}
	}
}

// fakeStore reports the first numTaken generated IDs as already existing.
type fakeStore struct {
	store.Store
	numTaken int
	checks   int
	rooms    map[string]store.Room
}

func (f *fakeStore) RoomExists(id string) (bool, error) {
	f.checks++
	return f.checks <= f.numTaken, nil
}

func (f *fakeStore) PutRoom(r store.Room, ttl time.Duration) error {
	if f.rooms == nil {
		f.rooms = map[string]store.Room{}
	}
	f.rooms[r.ID] = r
	return nil
}

func (f *fakeStore) GetRoom(id string) (store.Room, error) {
	r, ok := f.rooms[id]
	if !ok {
		return store.Room{}, store.ErrRoomNotFound
	}
	return r, nil
}

func (f *fakeStore) RemoveRoom(id string) error {
	delete(f.rooms, id)
	return nil
}

func testHub(s store.Store) *Hub {
	return NewHub(&Config{
		RoomTimeout:     time.Minute,
		RoomAge:         time.Hour,
		MaxPeersPerRoom: 10,
	}, s, log.New(io.Discard, "", 0))
}

func TestGenerateUniqueRoomID(t *testing.T) {
	h := testHub(&fakeStore{numTaken: 2})

	id, err := h.generateUniqueRoomID(5)
	if err != nil {
		t.Fatalf("couldn't generate unique room ID after collisions: %v", err)
	}
	if !ValidateRoomID(id) {
		t.Fatalf("generated room ID %q fails validation", id)
	}

	// Every try collides.
	h = testHub(&fakeStore{numTaken: 1000})
	if _, err := h.generateUniqueRoomID(5); err == nil {
		t.Fatal("expected an error when all generated IDs collide")
	}
}

func TestAddRoom(t *testing.T) {
	fs := &fakeStore{}
	h := testHub(fs)

	room, err := h.AddRoom()
	if err != nil {
		t.Fatalf("couldn't create room: %v", err)
	}

	rec, err := h.Store.GetRoom(room.ID)
	if err != nil {
		t.Fatalf("newly created room missing from store: %v", err)
	}
	if rec.Participants == nil || len(rec.Participants) != 0 {
		t.Fatalf("new room should have an empty roster, got %v", rec.Participants)
	}
	if rec.IsPlaying {
		t.Fatal("new room should not be playing")
	}

	if h.GetRoom(room.ID) != room {
		t.Fatal("couldn't get initialized room from the hub")
	}

	room.Dispose()
}

func TestActivateRoomUnknownValidID(t *testing.T) {
	h := testHub(&fakeStore{})

	// A valid ID missing from the store is admitted with a fresh record.
	room, err := h.ActivateRoom("AbC123XyZ9")
	if err != nil {
		t.Fatalf("valid unknown room ID was rejected: %v", err)
	}
	if _, err := h.Store.GetRoom(room.ID); err != nil {
		t.Fatalf("activated room missing from store: %v", err)
	}
	room.Dispose()

	// A malformed ID is not.
	if _, err := h.ActivateRoom("short"); err == nil {
		t.Fatal("malformed room ID was admitted")
	}
}
