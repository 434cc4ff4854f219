package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/gosuda/portal-bingo/bingo/card"
	"github.com/gosuda/portal-bingo/bingo/store"
)

const (
	codeAlphabet     = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	generatedCodeLen = 6
	minCodeLen       = 6
	maxCodeLen       = 10
	maxCodeAttempts  = 64
)

// Entrant describes a connection asking to create or join a room.
type Entrant struct {
	Username string
	SocketID string
	Server   store.AvatarServer
}

// ValidCode reports whether code is 6-10 ASCII letters or digits.
func ValidCode(code string) bool {
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return false
	}
	for _, r := range code {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// GenerateCode returns a random room code candidate.
func GenerateCode(rng *rand.Rand) string {
	b := make([]byte, generatedCodeLen)
	for i := range b {
		b[i] = codeAlphabet[rng.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// CreateRoom creates a room with the entrant as host. An empty code asks for a
// generated one; generation retries until a free code is found.
func CreateRoom(ctx context.Context, st store.Store, rng *rand.Rand, e Entrant, code string) (*store.Room, *store.Player, error) {
	if e.Username == "" {
		return nil, nil, ErrInvalidName
	}
	code = store.NormalizeCode(code)
	if code != "" && !ValidCode(code) {
		return nil, nil, ErrInvalidCode
	}

	var room *store.Room
	for attempt := 0; room == nil; attempt++ {
		candidate := code
		if candidate == "" {
			if attempt >= maxCodeAttempts {
				return nil, nil, fmt.Errorf("generate room code: gave up after %d attempts", attempt)
			}
			candidate = GenerateCode(rng)
		}
		r, err := st.CreateRoom(ctx, store.Room{Code: candidate, HostID: e.SocketID})
		switch {
		case err == nil:
			room = r
		case errors.Is(err, store.ErrCodeTaken) && code != "":
			return nil, nil, ErrCodeTaken
		case errors.Is(err, store.ErrCodeTaken):
		default:
			return nil, nil, fmt.Errorf("create room: %w", err)
		}
	}

	player, err := st.CreatePlayer(ctx, store.Player{
		Username:      e.Username,
		RoomID:        room.ID,
		SocketID:      e.SocketID,
		BingoCard:     card.Generate(rng),
		MarkedNumbers: freshMarks(),
		IsHost:        true,
		Server:        e.Server,
	})
	if err != nil {
		_ = st.DeleteRoom(ctx, room.ID)
		return nil, nil, fmt.Errorf("create host player: %w", err)
	}
	return room, player, nil
}

// Join adds the entrant to the room with a fresh card.
func (g *Game) Join(ctx context.Context, e Entrant) (*store.Room, *store.Player, []*store.Player, error) {
	if e.Username == "" {
		return nil, nil, nil, ErrInvalidName
	}
	room, err := g.room(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	player, err := g.store.CreatePlayer(ctx, store.Player{
		Username:      e.Username,
		RoomID:        room.ID,
		SocketID:      e.SocketID,
		BingoCard:     card.Generate(g.rng),
		MarkedNumbers: freshMarks(),
		Server:        e.Server,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create player: %w", err)
	}
	players, err := g.store.GetPlayersByRoomID(ctx, room.ID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list players: %w", err)
	}
	return room, player, players, nil
}
