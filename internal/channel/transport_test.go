package channel

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/lremty/lremty/store"
)

// echoWSServer upgrades connections and echoes every message back, standing
// in for a room with no other participants.
func echoWSServer(t *testing.T) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/ws/") {
			http.NotFound(w, r)
			return
		}
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, b, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, b); err != nil {
				return
			}
		}
	}))
}

func TestWSTransport(t *testing.T) {
	srv := echoWSServer(t)
	defer srv.Close()

	tr := &WSTransport{
		RootURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
		Self:    PeerData{ID: "self", Name: "You"},
	}
	c := New(tr, store.Participant{ID: "self", Name: "You"}, log.New(io.Discard, "", 0))

	if err := c.Connect(context.Background(), "AbC123XyZ9"); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer c.Disconnect()

	if err := c.Send(KindJoin, PeerData{ID: "p1", Name: "one"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	waitFor(t, "echoed join to land", func() bool { return len(c.Roster()) == 2 })
}

func TestWSTransportDialFailure(t *testing.T) {
	tr := &WSTransport{RootURL: "ws://127.0.0.1:1"}
	c := New(tr, store.Participant{ID: "self"}, log.New(io.Discard, "", 0))

	if err := c.Connect(context.Background(), "AbC123XyZ9"); err == nil {
		t.Fatal("dial to a dead address succeeded")
	}
	if c.State() == StateConnected {
		t.Fatal("channel connected despite dial failure")
	}
}
