package hub

import (
	"encoding/json"
	"testing"
)

func TestRecordFolding(t *testing.T) {
	h := testHub(&fakeStore{})
	room, err := h.AddRoom()
	if err != nil {
		t.Fatalf("couldn't create room: %v", err)
	}
	defer room.Dispose()

	p1 := &Peer{ID: "p1", Name: "one"}
	p2 := &Peer{ID: "p2", Name: "two"}

	room.recordJoin(p1)
	room.recordJoin(p2)
	// A rejoin must not append a duplicate.
	room.recordJoin(&Peer{ID: "p1", Name: "renamed"})

	rec, err := h.Store.GetRoom(room.ID)
	if err != nil {
		t.Fatalf("room missing from store: %v", err)
	}
	if len(rec.Participants) != 2 {
		t.Fatalf("roster should have 2 participants, got %+v", rec.Participants)
	}
	if rec.Participants[0].ID != "p1" || rec.Participants[0].Name != "renamed" {
		t.Fatalf("rejoin didn't refresh in place: %+v", rec.Participants)
	}

	room.recordLeave(p1)
	// Leaving again is a no-op.
	room.recordLeave(p1)

	rec, _ = h.Store.GetRoom(room.ID)
	if len(rec.Participants) != 1 || rec.Participants[0].ID != "p2" {
		t.Fatalf("unexpected roster after leave: %+v", rec.Participants)
	}

	room.recordSync(msgVideoSync{
		VideoURL:    "https://example.com/v.mp4",
		IsPlaying:   true,
		CurrentTime: 42.5,
	})
	rec, _ = h.Store.GetRoom(room.ID)
	if rec.VideoURL != "https://example.com/v.mp4" || !rec.IsPlaying || rec.CurrentTime != 42.5 {
		t.Fatalf("playback state not folded into record: %+v", rec)
	}
}

func TestMakePayload(t *testing.T) {
	h := testHub(&fakeStore{})
	room := NewRoom("AbC123XyZ9", h)

	b := room.makePeerUpdatePayload(&Peer{ID: "p1", Name: "one"}, TypeJoin)

	var m struct {
		Type string `json:"type"`
		Data struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("payload isn't valid JSON: %v", err)
	}
	if m.Type != TypeJoin || m.Data.ID != "p1" || m.Data.Name != "one" {
		t.Fatalf("unexpected payload: %s", b)
	}
}
