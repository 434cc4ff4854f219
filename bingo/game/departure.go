package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/gosuda/portal-bingo/bingo/store"
)

// Departure describes the room after a player left or was kicked.
type Departure struct {
	Player    *store.Player
	Room      *store.Room
	Remaining []*store.Player
	// NewHost is set when the departing player was host and someone remains.
	NewHost *store.Player
	// ClaimWithdrawn is set when the departing player's pending claim was
	// dropped and the room unblocked.
	ClaimWithdrawn bool
	// RoomDeleted is set when nobody remains; Room is then the last state.
	RoomDeleted bool
}

// Leave removes the player on socketID. Nobody left means the room and any
// residual players are deleted.
func (g *Game) Leave(ctx context.Context, socketID string) (Departure, error) {
	p, err := g.member(ctx, socketID)
	if err != nil {
		return Departure{}, err
	}
	return g.depart(ctx, p)
}

// Kick removes targetID on the host's request. The host cannot kick themself.
func (g *Game) Kick(ctx context.Context, socketID string, targetID int64) (Departure, error) {
	_, host, err := g.host(ctx, socketID)
	if err != nil {
		return Departure{}, err
	}
	if targetID == host.ID {
		return Departure{}, ErrSelfKick
	}
	target, err := g.store.GetPlayerByID(ctx, targetID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && target.RoomID != g.roomID) {
		return Departure{}, ErrPlayerNotFound
	}
	if err != nil {
		return Departure{}, fmt.Errorf("load player: %w", err)
	}
	return g.depart(ctx, target)
}

func (g *Game) depart(ctx context.Context, p *store.Player) (Departure, error) {
	if err := g.store.RemovePlayerBySocketID(ctx, p.SocketID); err != nil {
		return Departure{}, fmt.Errorf("remove player: %w", err)
	}
	d := Departure{Player: p}
	r, err := g.room(ctx)
	if err != nil {
		return Departure{}, err
	}
	remaining, err := g.store.GetPlayersByRoomID(ctx, g.roomID)
	if err != nil {
		return Departure{}, fmt.Errorf("list players: %w", err)
	}

	if len(remaining) == 0 {
		if err := g.store.RemovePlayersByRoomID(ctx, g.roomID); err != nil {
			return Departure{}, fmt.Errorf("remove residual players: %w", err)
		}
		if err := g.store.DeleteRoom(ctx, g.roomID); err != nil {
			return Departure{}, fmt.Errorf("delete room: %w", err)
		}
		d.Room = r
		d.RoomDeleted = true
		return d, nil
	}

	withdraw := r.PendingBingoVerification != nil && r.PendingBingoVerification.PlayerID == p.ID
	var next *store.Player
	if r.HostID == p.SocketID {
		next = electHost(remaining)
	}
	if withdraw || next != nil {
		r, err = g.updateRoom(ctx, func(r *store.Room) {
			if withdraw {
				r.PendingBingoVerification = nil
			}
			if next != nil {
				r.HostID = next.SocketID
			}
		})
		if err != nil {
			return Departure{}, err
		}
	}
	if next != nil {
		promoted, err := g.store.UpdatePlayer(ctx, next.ID, func(p *store.Player) { p.IsHost = true })
		if err != nil {
			return Departure{}, fmt.Errorf("promote host: %w", err)
		}
		for i, rp := range remaining {
			if rp.ID == promoted.ID {
				remaining[i] = promoted
			}
		}
		d.NewHost = promoted
	}
	d.Room = r
	d.Remaining = remaining
	d.ClaimWithdrawn = withdraw
	return d, nil
}

// electHost picks the survivor with the earliest join time.
func electHost(ps []*store.Player) *store.Player {
	var best *store.Player
	for _, p := range ps {
		if best == nil || p.JoinedAt.Before(best.JoinedAt) || (p.JoinedAt.Equal(best.JoinedAt) && p.ID < best.ID) {
			best = p
		}
	}
	return best
}
