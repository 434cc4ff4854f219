// Package game implements the per-room bingo state machine on top of a
// store.Store. A Game is not safe for concurrent use: the caller serializes
// every call for a given room.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"unicode/utf8"

	"github.com/gosuda/portal-bingo/bingo/card"
	"github.com/gosuda/portal-bingo/bingo/store"
)

// MaxMessageLen is the longest accepted chat message, in characters.
const MaxMessageLen = 200

// Game drives one room.
type Game struct {
	store  store.Store
	roomID int64
	rng    *rand.Rand
	// trustHost skips the server-side line check on confirm.
	trustHost bool
}

// freshMarks is the mark set of a new card: FREE is always marked.
func freshMarks() []card.Cell { return []card.Cell{card.Free} }

type Option func(*Game)

// WithTrustHost lets the host confirm claims without the server re-checking
// the claimant's card.
func WithTrustHost(trust bool) Option {
	return func(g *Game) { g.trustHost = trust }
}

func New(st store.Store, roomID int64, rng *rand.Rand, opts ...Option) *Game {
	g := &Game{store: st, roomID: roomID, rng: rng}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Game) RoomID() int64 { return g.roomID }

func (g *Game) room(ctx context.Context) (*store.Room, error) {
	r, err := g.store.GetRoomByID(ctx, g.roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %d: %w", g.roomID, err)
	}
	return r, nil
}

func (g *Game) updateRoom(ctx context.Context, fn func(*store.Room)) (*store.Room, error) {
	r, err := g.store.UpdateRoom(ctx, g.roomID, fn)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update room %d: %w", g.roomID, err)
	}
	return r, nil
}

// member loads the sender's player record and checks it belongs to this room.
func (g *Game) member(ctx context.Context, socketID string) (*store.Player, error) {
	p, err := g.store.GetPlayerBySocketID(ctx, socketID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotInRoom
	}
	if err != nil {
		return nil, fmt.Errorf("load player: %w", err)
	}
	if p.RoomID != g.roomID {
		return nil, ErrNotInRoom
	}
	return p, nil
}

// host loads the room and sender, failing unless the sender is the host.
func (g *Game) host(ctx context.Context, socketID string) (*store.Room, *store.Player, error) {
	p, err := g.member(ctx, socketID)
	if err != nil {
		return nil, nil, err
	}
	r, err := g.room(ctx)
	if err != nil {
		return nil, nil, err
	}
	if r.HostID != socketID {
		return nil, nil, ErrNotHost
	}
	return r, p, nil
}

// Snapshot returns the room and its roster.
func (g *Game) Snapshot(ctx context.Context) (*store.Room, []*store.Player, error) {
	r, err := g.room(ctx)
	if err != nil {
		return nil, nil, err
	}
	ps, err := g.store.GetPlayersByRoomID(ctx, g.roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("list players: %w", err)
	}
	return r, ps, nil
}

// Start begins a round. A finished round must be reset first.
func (g *Game) Start(ctx context.Context, socketID string) (*store.Room, error) {
	r, _, err := g.host(ctx, socketID)
	if err != nil {
		return nil, err
	}
	if r.IsGameActive {
		return nil, ErrAlreadyActive
	}
	if len(r.CalledNumbers) > 0 {
		return nil, ErrNeedsReset
	}
	return g.updateRoom(ctx, func(r *store.Room) {
		r.IsGameActive = true
		r.Winner = ""
	})
}

// Draw is the outcome of one call.
type Draw struct {
	Number int
	Called []int
	// Exhausted is set on the call that used up the 75-number domain; the
	// round has ended without a winner.
	Exhausted bool
}

// Call draws a number on the host's request.
func (g *Game) Call(ctx context.Context, socketID string) (Draw, error) {
	if _, _, err := g.host(ctx, socketID); err != nil {
		return Draw{}, err
	}
	return g.Tick(ctx)
}

// Tick draws the next number for the automatic scheduler.
func (g *Game) Tick(ctx context.Context) (Draw, error) {
	r, err := g.room(ctx)
	if err != nil {
		return Draw{}, err
	}
	if !r.IsGameActive {
		return Draw{}, ErrNotActive
	}
	if r.Blocked() {
		return Draw{}, ErrBlocked
	}
	n, ok := card.Draw(g.rng, r.CalledNumbers)
	if !ok {
		return Draw{}, ErrExhausted
	}
	r, err = g.updateRoom(ctx, func(r *store.Room) {
		r.CalledNumbers = append(r.CalledNumbers, n)
		r.CurrentNumber = &n
		if len(r.CalledNumbers) >= card.MaxNumber {
			r.IsGameActive = false
		}
	})
	if err != nil {
		return Draw{}, err
	}
	return Draw{Number: n, Called: r.CalledNumbers, Exhausted: !r.IsGameActive}, nil
}

// Mark records a mark on the sender's own card. Re-marking is a no-op.
func (g *Game) Mark(ctx context.Context, socketID string, v card.Cell) (*store.Player, error) {
	p, err := g.member(ctx, socketID)
	if err != nil {
		return nil, err
	}
	r, err := g.room(ctx)
	if err != nil {
		return nil, err
	}
	if r.Blocked() {
		return nil, ErrBlocked
	}
	if !r.IsGameActive {
		return nil, ErrNotActive
	}
	if !p.BingoCard.Contains(v) {
		return nil, ErrNotOnCard
	}
	if !v.IsFree() && !r.HasCalled(int(v)) {
		return nil, ErrNotCalled
	}
	if p.HasMarked(v) {
		return p, nil
	}
	p, err = g.store.UpdatePlayer(ctx, p.ID, func(p *store.Player) {
		p.MarkedNumbers = append(p.MarkedNumbers, v)
	})
	if err != nil {
		return nil, fmt.Errorf("update player: %w", err)
	}
	return p, nil
}

// Claim is a pending bingo awaiting the host.
type Claim struct {
	Room     *store.Room
	Claimant *store.Player
}

// ClaimBingo blocks the room until the host confirms or rejects. A claim while
// another is pending is rejected, not queued.
func (g *Game) ClaimBingo(ctx context.Context, socketID string) (Claim, error) {
	p, err := g.member(ctx, socketID)
	if err != nil {
		return Claim{}, err
	}
	r, err := g.room(ctx)
	if err != nil {
		return Claim{}, err
	}
	if !r.IsGameActive {
		return Claim{}, ErrNotActive
	}
	if r.Blocked() {
		return Claim{}, ErrClaimPending
	}
	r, err = g.updateRoom(ctx, func(r *store.Room) {
		r.PendingBingoVerification = &store.PendingBingo{PlayerID: p.ID, PlayerName: p.Username}
	})
	if err != nil {
		return Claim{}, err
	}
	return Claim{Room: r, Claimant: p}, nil
}

// Confirm ends the round with the pending claimant as winner.
func (g *Game) Confirm(ctx context.Context, socketID string, winnerID int64) (*store.Room, error) {
	r, _, err := g.host(ctx, socketID)
	if err != nil {
		return nil, err
	}
	pending := r.PendingBingoVerification
	if pending == nil {
		return nil, ErrNoClaim
	}
	if pending.PlayerID != winnerID {
		return nil, ErrWrongClaimant
	}
	if !g.trustHost {
		claimant, err := g.store.GetPlayerByID(ctx, winnerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("load claimant: %w", err)
		}
		if claimant == nil || !card.HasBingo(claimant.BingoCard, claimant.MarkedNumbers, r.CalledNumbers) {
			return nil, ErrClaimInvalid
		}
	}
	return g.updateRoom(ctx, func(r *store.Room) {
		r.IsGameActive = false
		r.PendingBingoVerification = nil
		r.Winner = pending.PlayerName
	})
}

// Reject clears the pending claim; play resumes.
func (g *Game) Reject(ctx context.Context, socketID string) (*store.Room, error) {
	r, _, err := g.host(ctx, socketID)
	if err != nil {
		return nil, err
	}
	if r.PendingBingoVerification == nil {
		return nil, ErrNoClaim
	}
	return g.updateRoom(ctx, func(r *store.Room) {
		r.PendingBingoVerification = nil
	})
}

// Reset is the outcome of a reset: every player with a new card, plus the
// winner of the round that was reset, if it was confirmed.
type Reset struct {
	Players []*store.Player
	Winner  string
}

// Reset deals fresh cards and clears all round state.
func (g *Game) Reset(ctx context.Context, socketID string) (Reset, error) {
	r, _, err := g.host(ctx, socketID)
	if err != nil {
		return Reset{}, err
	}
	winner := r.Winner
	if _, err := g.updateRoom(ctx, func(r *store.Room) {
		r.IsGameActive = false
		r.CalledNumbers = []int{}
		r.CurrentNumber = nil
		r.PendingBingoVerification = nil
		r.Winner = ""
	}); err != nil {
		return Reset{}, err
	}
	ps, err := g.store.GetPlayersByRoomID(ctx, g.roomID)
	if err != nil {
		return Reset{}, fmt.Errorf("list players: %w", err)
	}
	out := make([]*store.Player, 0, len(ps))
	for _, p := range ps {
		fresh := card.Generate(g.rng)
		up, err := g.store.UpdatePlayer(ctx, p.ID, func(p *store.Player) {
			p.BingoCard = fresh
			p.MarkedNumbers = freshMarks()
		})
		if err != nil {
			return Reset{}, fmt.Errorf("deal card: %w", err)
		}
		out = append(out, up)
	}
	return Reset{Players: out, Winner: winner}, nil
}

// CheckMessage validates a chat message from the sender.
func (g *Game) CheckMessage(ctx context.Context, socketID, text string) (*store.Player, error) {
	p, err := g.member(ctx, socketID)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLen {
		return nil, ErrMessageTooLong
	}
	return p, nil
}
