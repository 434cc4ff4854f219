// Package store holds the Room and Player records of live bingo sessions.
//
// Callers go through the Store interface; the in-memory backend is the
// default and the pebble backend keeps the same contract on disk. Records are
// returned as copies, so mutating a returned value never changes the store.
// List results are ordered by JoinedAt (ties broken by id); callers must not
// rely on any other ordering.
package store

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/gosuda/portal-bingo/bingo/card"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrCodeTaken = errors.New("store: room code already exists")
)

// AvatarServer selects which avatar source renders a player. Cosmetic only.
type AvatarServer string

const (
	ServerOrigins AvatarServer = "origins"
	ServerES      AvatarServer = "es"
)

// ParseAvatarServer maps unknown values to ServerOrigins.
func ParseAvatarServer(s string) AvatarServer {
	if AvatarServer(strings.ToLower(strings.TrimSpace(s))) == ServerES {
		return ServerES
	}
	return ServerOrigins
}

// PendingBingo is the claim waiting for host adjudication.
type PendingBingo struct {
	PlayerID   int64  `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type Room struct {
	ID            int64  `json:"id"`
	Code          string `json:"code"`
	HostID        string `json:"hostId"`
	IsGameActive  bool   `json:"isGameActive"`
	CurrentNumber *int   `json:"currentNumber"`
	CalledNumbers []int  `json:"calledNumbers"`
	// PendingBingoVerification is non-nil while the room is blocked.
	PendingBingoVerification *PendingBingo `json:"pendingBingoVerification"`
	// Winner is the confirmed winner of the last round, cleared on reset.
	Winner    string    `json:"winner,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Blocked reports whether a claim is waiting for the host.
func (r *Room) Blocked() bool { return r.PendingBingoVerification != nil }

// HasCalled reports whether n was drawn this round.
func (r *Room) HasCalled(n int) bool { return slices.Contains(r.CalledNumbers, n) }

func (r *Room) Clone() *Room {
	c := *r
	c.CalledNumbers = append([]int{}, r.CalledNumbers...)
	if r.CurrentNumber != nil {
		n := *r.CurrentNumber
		c.CurrentNumber = &n
	}
	if r.PendingBingoVerification != nil {
		p := *r.PendingBingoVerification
		c.PendingBingoVerification = &p
	}
	return &c
}

type Player struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	// RoomID is zero until the player joins a room.
	RoomID        int64        `json:"roomId"`
	SocketID      string       `json:"socketId"`
	BingoCard     card.Card    `json:"bingoCard"`
	MarkedNumbers []card.Cell  `json:"markedNumbers"`
	IsHost        bool         `json:"isHost"`
	Server        AvatarServer `json:"server"`
	JoinedAt      time.Time    `json:"joinedAt"`
}

// HasMarked reports whether v is in the player's marks. FREE always is.
func (p *Player) HasMarked(v card.Cell) bool {
	return v.IsFree() || slices.Contains(p.MarkedNumbers, v)
}

func (p *Player) Clone() *Player {
	c := *p
	c.MarkedNumbers = append([]card.Cell{}, p.MarkedNumbers...)
	return &c
}

// Store is the CRUD contract over Room and Player records.
type Store interface {
	CreateRoom(ctx context.Context, r Room) (*Room, error)
	GetRoomByCode(ctx context.Context, code string) (*Room, error)
	GetRoomByID(ctx context.Context, id int64) (*Room, error)
	// UpdateRoom applies fn to the stored room and persists the result.
	UpdateRoom(ctx context.Context, id int64, fn func(*Room)) (*Room, error)
	DeleteRoom(ctx context.Context, id int64) error

	CreatePlayer(ctx context.Context, p Player) (*Player, error)
	GetPlayersByRoomID(ctx context.Context, roomID int64) ([]*Player, error)
	GetPlayerBySocketID(ctx context.Context, socketID string) (*Player, error)
	GetPlayerByID(ctx context.Context, id int64) (*Player, error)
	UpdatePlayer(ctx context.Context, id int64, fn func(*Player)) (*Player, error)
	RemovePlayerBySocketID(ctx context.Context, socketID string) error
	RemovePlayersByRoomID(ctx context.Context, roomID int64) error

	Close() error
}

// NormalizeCode folds a room code for case-insensitive comparison.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func sortPlayers(ps []*Player) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].JoinedAt.Equal(ps[j].JoinedAt) {
			return ps[i].JoinedAt.Before(ps[j].JoinedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
