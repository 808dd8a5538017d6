// Lremty, August 2026
// License AGPL3

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lremty/lremty/internal/hub"
)

const hasRoom = 1 << iota

// reqCtx is the context injected into every request.
type reqCtx struct {
	app  *App
	room *hub.Room
}

// jsonResp is the envelope for all JSON API responses.
type jsonResp struct {
	Error *string     `json:"error"`
	Data  interface{} `json:"data"`
}

// tpl is the envelope for all HTML template executions.
type tpl struct {
	Config *hub.Config
	Data   tplData
}

type tplData struct {
	Title string
	Room  interface{}
}

// reqJoin is the join request body: either a full join link or a bare
// room ID.
type reqJoin struct {
	Room string `json:"room"`
}

// respRoom is the create / join response.
type respRoom struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
	return true
}}

var errMalformedJoin = errors.New("malformed room link or ID")

// handleIndex renders the homepage.
func handleIndex(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context().Value("ctx").(*reqCtx)
		app = ctx.app
	)
	respondHTML("index", tplData{
		Title: app.cfg.Name,
	}, http.StatusOK, w, app)
}

// handleRoomPage renders the watch-together room page.
func handleRoomPage(w http.ResponseWriter, r *http.Request) {
	var (
		ctx  = r.Context().Value("ctx").(*reqCtx)
		app  = ctx.app
		room = ctx.room
	)

	if room == nil {
		respondHTML("room-not-found", tplData{}, http.StatusNotFound, w, app)
		return
	}

	// Disable browser caching.
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	respondHTML("room", tplData{
		Title: room.ID,
		Room:  room,
	}, http.StatusOK, w, app)
}

// handleCreateRoom handles the creation of a new room.
func handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context().Value("ctx").(*reqCtx)
		app = ctx.app
	)

	room, err := app.hub.AddRoom()
	if err != nil {
		respondJSON(w, nil, err, http.StatusInternalServerError)
		return
	}

	respondJSON(w, respRoom{
		ID:  room.ID,
		URL: app.cfg.RootURL + "/r/" + room.ID,
	}, nil, http.StatusOK)
}

// handleJoinRoom resolves a join link or a bare room ID to a room. A
// syntactically valid ID that's missing from the local store is still
// admitted; the room may have been created elsewhere.
func handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context().Value("ctx").(*reqCtx)
		app = ctx.app
	)

	var req reqJoin
	if err := readJSONReq(r, &req); err != nil {
		respondJSON(w, nil, errors.New("error parsing JSON request"), http.StatusBadRequest)
		return
	}

	id, err := extractRoomID(req.Room)
	if err != nil {
		respondJSON(w, nil, err, http.StatusBadRequest)
		return
	}

	if _, err := app.hub.Store.GetRoom(id); err != nil {
		if !hub.ValidateRoomID(id) {
			respondJSON(w, nil, errors.New("room doesn't exist"), http.StatusNotFound)
			return
		}
	}

	respondJSON(w, respRoom{
		ID:  id,
		URL: app.cfg.RootURL + "/r/" + id,
	}, nil, http.StatusOK)
}

// extractRoomID pulls a room ID out of a join input: a link containing
// `id=` yields everything after it, an input of exactly the ID length is
// taken as the ID itself, anything else is malformed.
func extractRoomID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errMalformedJoin
	}

	if i := strings.Index(input, "id="); i != -1 {
		return input[i+len("id="):], nil
	}
	if len(input) == hub.RoomIDLen {
		return input, nil
	}
	return "", errMalformedJoin
}

// handleWS handles incoming websocket connections into a room.
func handleWS(w http.ResponseWriter, r *http.Request) {
	var (
		ctx  = r.Context().Value("ctx").(*reqCtx)
		app  = ctx.app
		room = ctx.room
	)

	if room == nil {
		respondJSON(w, nil, errors.New("room is invalid or has expired"), http.StatusNotFound)
		return
	}

	peerID := r.URL.Query().Get("id")
	if peerID == "" {
		peerID = uuid.NewString()
	}
	peerName := r.URL.Query().Get("name")
	if peerName == "" {
		peerName = "guest"
	}

	// Create the WS connection.
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		app.logger.Printf("Websocket upgrade failed: %s: %v", r.RemoteAddr, err)
		return
	}

	// Create a new peer instance and add to the room.
	room.AddPeer(peerID, peerName, ws)
}

// handleAssets serves a static asset through the offline cache, falling
// back to its origin on a miss.
func handleAssets(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context().Value("ctx").(*reqCtx)
		app = ctx.app
	)

	e, err := app.cache.HandleFetch(r.Context(), r.URL.Path)
	if err != nil {
		app.logger.Printf("error fetching asset %s: %v", r.URL.Path, err)
		http.Error(w, "asset not found", http.StatusNotFound)
		return
	}
	if e.ContentType != "" {
		w.Header().Set("Content-Type", e.ContentType)
	}
	w.Write(e.Body)
}

// respondJSON responds to an HTTP request with a generic payload or an error.
func respondJSON(w http.ResponseWriter, data interface{}, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	out := jsonResp{Data: data}
	if err != nil {
		e := err.Error()
		out.Error = &e
	}
	b, err := json.Marshal(out)
	if err != nil {
		logger.Printf("error marshalling JSON response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Write(b)
}

// respondHTML responds to an HTTP request with the HTML output of a given template.
func respondHTML(tplName string, data tplData, statusCode int, w http.ResponseWriter, app *App) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if statusCode > 0 {
		w.WriteHeader(statusCode)
	}

	err := app.tpl.ExecuteTemplate(w, tplName, tpl{
		Config: app.cfg,
		Data:   data,
	})
	if err != nil {
		app.logger.Printf("error rendering template %s: %s", tplName, err)
		w.Write([]byte("error rendering template"))
	}
}

// wrap is a middleware that attaches the app and room contexts to handlers.
func wrap(next http.HandlerFunc, app *App, opts uint8) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			req    = &reqCtx{app: app}
			roomID = chi.URLParam(r, "roomID")
		)

		// Check if the room is valid and active.
		if opts&hasRoom != 0 {
			// If the room's not found, req.room will be null in the target
			// handler. It's the handler's responsibility to throw an error,
			// API or HTML response.
			room, err := app.hub.ActivateRoom(roomID)
			if err == nil {
				req.room = room
			}
		}

		// Attach the request context.
		ctx := context.WithValue(r.Context(), "ctx", req)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// readJSONReq reads the JSON body from a request and unmarshals it to the given target.
func readJSONReq(r *http.Request, o interface{}) error {
	defer r.Body.Close()
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, o)
}
