package main

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/portal-bingo/bingo/game"
	"github.com/gosuda/portal-bingo/bingo/store"
)

// RoomOptions configures every room the registry creates.
type RoomOptions struct {
	// DrawInterval is the automatic call cadence; zero disables it.
	DrawInterval time.Duration
	TrustHost    bool
}

// Registry tracks live connections, which room each one is bound to, and
// the actor of every open room. It never touches room state itself.
type Registry struct {
	store store.Store
	opts  RoomOptions

	mu      sync.RWMutex
	clients map[string]*Client
	bound   map[string]*Room
	rooms   map[int64]*Room
}

func NewRegistry(st store.Store, opts RoomOptions) *Registry {
	return &Registry{
		store:   st,
		opts:    opts,
		clients: make(map[string]*Client),
		bound:   make(map[string]*Room),
		rooms:   make(map[int64]*Room),
	}
}

// Register makes c reachable by its handle.
func (reg *Registry) Register(c *Client) {
	reg.mu.Lock()
	reg.clients[c.id] = c
	reg.mu.Unlock()
}

func (reg *Registry) client(id string) *Client {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.clients[id]
}

func (reg *Registry) roomOf(id string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.bound[id]
}

// bind attaches handle to room unless it is already bound elsewhere.
func (reg *Registry) bind(id string, room *Room) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, ok := reg.bound[id]; ok {
		return false
	}
	reg.bound[id] = room
	return true
}

func (reg *Registry) unbind(id string, room *Room) {
	reg.mu.Lock()
	if reg.bound[id] == room {
		delete(reg.bound, id)
	}
	reg.mu.Unlock()
}

// members returns the live connections bound to room.
func (reg *Registry) members(room *Room) []*Client {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	var out []*Client
	for id, r := range reg.bound {
		if r != room {
			continue
		}
		if c := reg.clients[id]; c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Disconnect forgets c and hands its departure to its room.
func (reg *Registry) Disconnect(c *Client) {
	reg.mu.Lock()
	if reg.clients[c.id] == c {
		delete(reg.clients, c.id)
	}
	room, ok := reg.bound[c.id]
	if ok {
		delete(reg.bound, c.id)
	}
	reg.mu.Unlock()
	if ok {
		room.enqueue(func(r *Room) {
			r.disconnect(c.id)
		})
	}
}

// Route dispatches a decoded message. It is called from the connection's own
// read loop, so messages from one connection never race each other.
// Room-scoped messages run on the room's actor.
func (reg *Registry) Route(c *Client, msg Inbound) {
	switch m := msg.(type) {
	case CreateRoom:
		reg.createRoom(c, m)
	case JoinRoom:
		reg.joinRoom(c, m)
	default:
		room := reg.roomOf(c.id)
		if room == nil || !room.enqueue(func(r *Room) { r.handle(c, msg) }) {
			c.pushError(string(game.ErrNotInRoom))
		}
	}
}

func (reg *Registry) createRoom(c *Client, m CreateRoom) {
	if reg.roomOf(c.id) != nil {
		c.pushError(string(game.ErrAlreadyInRoom))
		return
	}
	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	entrant := game.Entrant{Username: sanitizeUsername(m.Username), SocketID: c.id, Server: m.Server}
	rec, host, err := game.CreateRoom(ctx, reg.store, rng, entrant, m.RoomCode)
	if err != nil {
		var gerr game.Error
		if errors.As(err, &gerr) {
			c.pushError(string(gerr))
			return
		}
		log.Error().Err(err).Str("conn", c.id).Msg("[bingo] create room")
		c.pushError(internalErrorMessage)
		return
	}

	room := newRoom(rec, game.New(reg.store, rec.ID, rng, game.WithTrustHost(reg.opts.TrustHost)), reg)
	reg.mu.Lock()
	reg.rooms[rec.ID] = room
	reg.bound[c.id] = room
	reg.mu.Unlock()
	go room.loop()

	log.Info().Int64("room", rec.ID).Str("code", rec.Code).Int64("player", host.ID).Msg("[bingo] room created")
	room.enqueue(func(r *Room) { r.announceCreated(c) })
}

func (reg *Registry) joinRoom(c *Client, m JoinRoom) {
	rec, err := reg.store.GetRoomByCode(context.Background(), m.RoomCode)
	if errors.Is(err, store.ErrNotFound) {
		c.pushError(string(game.ErrRoomNotFound))
		return
	}
	if err != nil {
		log.Error().Err(err).Str("code", m.RoomCode).Msg("[bingo] look up room")
		c.pushError(internalErrorMessage)
		return
	}
	reg.mu.RLock()
	room := reg.rooms[rec.ID]
	reg.mu.RUnlock()
	if room == nil {
		c.pushError(string(game.ErrRoomNotFound))
		return
	}
	if !reg.bind(c.id, room) {
		c.pushError(string(game.ErrAlreadyInRoom))
		return
	}
	entrant := game.Entrant{Username: sanitizeUsername(m.Username), SocketID: c.id, Server: m.Server}
	if !room.enqueue(func(r *Room) { r.join(c, entrant) }) {
		reg.unbind(c.id, room)
		c.pushError(string(game.ErrRoomNotFound))
	}
}

// removeRoom drops a closed room and every binding to it.
func (reg *Registry) removeRoom(room *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.rooms[room.id] == room {
		delete(reg.rooms, room.id)
	}
	for id, r := range reg.bound {
		if r == room {
			delete(reg.bound, id)
		}
	}
}

// RoomCount reports how many rooms are open.
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Close terminates every room and waits for the actors to stop.
func (reg *Registry) Close(ctx context.Context) {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.RUnlock()
	for _, room := range rooms {
		room.enqueue(func(r *Room) { r.terminate("the server is shutting down") })
	}
	for _, room := range rooms {
		select {
		case <-room.done:
		case <-ctx.Done():
			return
		}
	}
}
