package main

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/portal-bingo/bingo/profile"
	"github.com/gosuda/portal-bingo/bingo/store"
)

// ProfileLookup resolves public player profiles.
type ProfileLookup interface {
	Lookup(ctx context.Context, server store.AvatarServer, name string) (*profile.User, error)
}

// HTTPServer wires HTTP routes to the registry.
type HTTPServer struct {
	name     string
	reg      *Registry
	profiles ProfileLookup
	upgrader websocket.Upgrader
}

func NewHTTPServer(name string, reg *Registry, profiles ProfileLookup) *HTTPServer {
	return &HTTPServer{
		name:     name,
		reg:      reg,
		profiles: profiles,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router exposes the handler used for both the relay and the local listener.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleIndex)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", s.handleWebSocket)
	r.Get("/api/profile/{server}/{name}", s.handleProfile)
	return r
}

func (s *HTTPServer) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = indexPage.Execute(w, struct {
		Name  string
		Rooms int
	}{Name: s.name, Rooms: s.reg.RoomCount()})
}

func (s *HTTPServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("[bingo] upgrade websocket")
		return
	}
	client := NewClient(uuid.NewString(), conn, s.reg)
	s.reg.Register(client)
	log.Debug().Str("conn", client.id).Msg("[bingo] connection opened")

	go client.writeLoop()
	client.readLoop()
}

type profileResponse struct {
	Found   bool             `json:"found"`
	User    *profile.User    `json:"user,omitempty"`
	Avatars *profile.Avatars `json:"avatars,omitempty"`
}

// handleProfile proxies the public profile API. Lookup failures are reported
// as not found; they never affect game state.
func (s *HTTPServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	server := store.ParseAvatarServer(chi.URLParam(r, "server"))
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	var resp profileResponse
	if name != "" {
		u, err := s.profiles.Lookup(r.Context(), server, name)
		switch {
		case err == nil:
			av := profile.AvatarURLs(server, u.Name, u.FigureString)
			resp = profileResponse{Found: true, User: u, Avatars: &av}
		case errors.Is(err, profile.ErrNotFound):
		default:
			log.Warn().Err(err).Str("server", string(server)).Str("name", name).Msg("[bingo] profile lookup")
		}
	}
	if !resp.Found {
		av := profile.AvatarURLs(server, name, "")
		resp.Avatars = &av
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Debug().Err(err).Msg("[bingo] write profile response")
	}
}

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Name}}</title>
  <style>
    body { font-family: sans-serif; background: #f9f9f9; padding: 40px; }
    .card { background: white; border-radius: 12px; padding: 24px; box-shadow: 0 2px 6px rgba(0,0,0,0.1); }
    code { background: #f1f5f9; padding: 2px 6px; border-radius: 4px; }
  </style>
</head>
<body>
  <div class="card">
    <h1>{{.Name}}</h1>
    <p>Multiplayer bingo server. Open rooms: <b>{{.Rooms}}</b></p>
    <p>Connect a client to <code>/ws</code> and send <code>{"type":"create_room","username":"..."}</code>.</p>
  </div>
</body>
</html>`))
