package main

import (
	"context"
	"fmt"

	"github.com/gosuda/portal-bingo/bingo/store"
)

// broadcaster fans events out to the connections of a room's players. Sends
// are fire-and-forget; a failed send drops the connection, which comes back to
// the room as an ordinary disconnect.
type broadcaster struct {
	store  store.Store
	reg    *Registry
	roomID int64
}

// toRoom sends ev to every player whose record belongs to the room.
func (b broadcaster) toRoom(ctx context.Context, ev ServerEvent) error {
	ps, err := b.store.GetPlayersByRoomID(ctx, b.roomID)
	if err != nil {
		return fmt.Errorf("broadcast %s: %w", ev.Type, err)
	}
	b.toPlayers(ps, ev, "")
	return nil
}

// toPlayers sends ev to each of ps except the one on socket except.
func (b broadcaster) toPlayers(ps []*store.Player, ev ServerEvent, except string) {
	for _, p := range ps {
		if p.SocketID == except {
			continue
		}
		b.toSocket(p.SocketID, ev)
	}
}

func (b broadcaster) toSocket(socketID string, ev ServerEvent) {
	if c := b.reg.client(socketID); c != nil {
		c.push(ev)
	}
}
