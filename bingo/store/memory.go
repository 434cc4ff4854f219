package store

import (
	"context"
	"sync"
	"time"
)

// Memory is the default in-memory Store. Secondary lookups are linear scans.
type Memory struct {
	mu           sync.RWMutex
	rooms        map[int64]*Room
	players      map[int64]*Player
	nextRoomID   int64
	nextPlayerID int64
	now          func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		rooms:        make(map[int64]*Room),
		players:      make(map[int64]*Player),
		nextRoomID:   1,
		nextPlayerID: 1,
		now:          time.Now,
	}
}

func (m *Memory) CreateRoom(_ context.Context, r Room) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.Code = NormalizeCode(r.Code)
	for _, existing := range m.rooms {
		if existing.Code == r.Code {
			return nil, ErrCodeTaken
		}
	}
	r.ID = m.nextRoomID
	m.nextRoomID++
	r.CreatedAt = m.now()
	if r.CalledNumbers == nil {
		r.CalledNumbers = []int{}
	}
	m.rooms[r.ID] = r.Clone()
	return r.Clone(), nil
}

func (m *Memory) GetRoomByCode(_ context.Context, code string) (*Room, error) {
	code = NormalizeCode(code)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rooms {
		if r.Code == code {
			return r.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetRoomByID(_ context.Context, id int64) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (m *Memory) UpdateRoom(_ context.Context, id int64, fn func(*Room)) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := r.Clone()
	fn(next)
	next.ID, next.CreatedAt = r.ID, r.CreatedAt
	m.rooms[id] = next.Clone()
	return next, nil
}

func (m *Memory) DeleteRoom(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
	return nil
}

func (m *Memory) CreatePlayer(_ context.Context, p Player) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextPlayerID
	m.nextPlayerID++
	p.JoinedAt = m.now()
	if p.Server == "" {
		p.Server = ServerOrigins
	}
	m.players[p.ID] = p.Clone()
	return p.Clone(), nil
}

func (m *Memory) GetPlayersByRoomID(_ context.Context, roomID int64) ([]*Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Player, 0, 8)
	for _, p := range m.players {
		if p.RoomID == roomID {
			out = append(out, p.Clone())
		}
	}
	sortPlayers(out)
	return out, nil
}

func (m *Memory) GetPlayerBySocketID(_ context.Context, socketID string) (*Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.players {
		if p.SocketID == socketID {
			return p.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetPlayerByID(_ context.Context, id int64) (*Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (m *Memory) UpdatePlayer(_ context.Context, id int64, fn func(*Player)) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return nil, ErrNotFound
	}
	next := p.Clone()
	fn(next)
	next.ID, next.JoinedAt = p.ID, p.JoinedAt
	m.players[id] = next.Clone()
	return next, nil
}

func (m *Memory) RemovePlayerBySocketID(_ context.Context, socketID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.players {
		if p.SocketID == socketID {
			delete(m.players, id)
			return nil
		}
	}
	return nil
}

func (m *Memory) RemovePlayersByRoomID(_ context.Context, roomID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.players {
		if p.RoomID == roomID {
			delete(m.players, id)
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }
