package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
)

var (
	roomPrefix   = []byte("room/")
	playerPrefix = []byte("player/")
	roomSeqKey   = []byte("seq/room")
	playerSeqKey = []byte("seq/player")
)

// ErrCorrupt marks a record that could not be decoded.
var ErrCorrupt = errors.New("store: corrupt record")

// Pebble persists rooms and players in a PebbleDB key-value store. Keys are a
// prefix plus an 8-byte big-endian id, so prefix scans visit records in id
// order. Id sequences survive restarts.
type Pebble struct {
	db  *pebble.DB
	mu  sync.Mutex
	now func() time.Time
}

var _ Store = (*Pebble)(nil)

// OpenPebble opens (or creates) the store at dir. Connections from a previous
// process are gone, so leftover rooms and players are dropped on open.
func OpenPebble(dir string) (*Pebble, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return openPebble(filepath.Clean(dir), &pebble.Options{})
}

// OpenPebbleMem opens a store backed by an in-memory filesystem.
func OpenPebbleMem() (*Pebble, error) {
	return openPebble("", &pebble.Options{FS: vfs.NewMem()})
}

func openPebble(dir string, opts *pebble.Options) (*Pebble, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db: %w", err)
	}
	s := &Pebble{db: db, now: time.Now}
	for _, prefix := range [][]byte{roomPrefix, playerPrefix} {
		if err := db.DeleteRange(prefix, prefixEnd(prefix), pebble.Sync); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("drop stale records: %w", err)
		}
	}
	return s, nil
}

func idKey(prefix []byte, id int64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(id))
	return key
}

func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	end[len(end)-1]++
	return end
}

func (s *Pebble) nextID(key []byte) (int64, error) {
	var next uint64 = 1
	val, closer, err := s.db.Get(key)
	switch {
	case err == nil:
		if len(val) == 8 {
			next = binary.BigEndian.Uint64(val) + 1
		}
		_ = closer.Close()
	case !errors.Is(err, pebble.ErrNotFound):
		return 0, err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := s.db.Set(key, buf, pebble.Sync); err != nil {
		return 0, err
	}
	return int64(next), nil
}

func (s *Pebble) get(key []byte, v any) error {
	val, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	defer closer.Close()
	if err := json.Unmarshal(val, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return nil
}

func (s *Pebble) put(key []byte, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Set(key, val, pebble.Sync)
}

func (s *Pebble) scanRooms(fn func(*Room) bool) error {
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: roomPrefix, UpperBound: prefixEnd(roomPrefix)})
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()
	for it.First(); it.Valid(); it.Next() {
		var r Room
		if err := json.Unmarshal(it.Value(), &r); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorrupt, it.Key(), err)
		}
		if !fn(&r) {
			break
		}
	}
	return nil
}

func (s *Pebble) scanPlayers(fn func(*Player) bool) error {
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: playerPrefix, UpperBound: prefixEnd(playerPrefix)})
	if err != nil {
		return err
	}
	defer func() { _ = it.Close() }()
	for it.First(); it.Valid(); it.Next() {
		var p Player
		if err := json.Unmarshal(it.Value(), &p); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorrupt, it.Key(), err)
		}
		if !fn(&p) {
			break
		}
	}
	return nil
}

func (s *Pebble) findRoomByCode(code string) (*Room, error) {
	var found *Room
	err := s.scanRooms(func(r *Room) bool {
		if r.Code == code {
			found = r
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *Pebble) CreateRoom(_ context.Context, r Room) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Code = NormalizeCode(r.Code)
	if _, err := s.findRoomByCode(r.Code); err == nil {
		return nil, ErrCodeTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	id, err := s.nextID(roomSeqKey)
	if err != nil {
		return nil, err
	}
	r.ID = id
	r.CreatedAt = s.now()
	if r.CalledNumbers == nil {
		r.CalledNumbers = []int{}
	}
	if err := s.put(idKey(roomPrefix, id), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Pebble) GetRoomByCode(_ context.Context, code string) (*Room, error) {
	return s.findRoomByCode(NormalizeCode(code))
}

func (s *Pebble) GetRoomByID(_ context.Context, id int64) (*Room, error) {
	var r Room
	if err := s.get(idKey(roomPrefix, id), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Pebble) UpdateRoom(_ context.Context, id int64, fn func(*Room)) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := idKey(roomPrefix, id)
	var r Room
	if err := s.get(key, &r); err != nil {
		return nil, err
	}
	createdAt := r.CreatedAt
	fn(&r)
	r.ID, r.CreatedAt = id, createdAt
	if err := s.put(key, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Pebble) DeleteRoom(_ context.Context, id int64) error {
	return s.db.Delete(idKey(roomPrefix, id), pebble.Sync)
}

func (s *Pebble) CreatePlayer(_ context.Context, p Player) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.nextID(playerSeqKey)
	if err != nil {
		return nil, err
	}
	p.ID = id
	p.JoinedAt = s.now()
	if p.Server == "" {
		p.Server = ServerOrigins
	}
	if err := s.put(idKey(playerPrefix, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Pebble) GetPlayersByRoomID(_ context.Context, roomID int64) ([]*Player, error) {
	out := make([]*Player, 0, 8)
	err := s.scanPlayers(func(p *Player) bool {
		if p.RoomID == roomID {
			out = append(out, p)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sortPlayers(out)
	return out, nil
}

func (s *Pebble) GetPlayerBySocketID(_ context.Context, socketID string) (*Player, error) {
	var found *Player
	err := s.scanPlayers(func(p *Player) bool {
		if p.SocketID == socketID {
			found = p
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *Pebble) GetPlayerByID(_ context.Context, id int64) (*Player, error) {
	var p Player
	if err := s.get(idKey(playerPrefix, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Pebble) UpdatePlayer(_ context.Context, id int64, fn func(*Player)) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := idKey(playerPrefix, id)
	var p Player
	if err := s.get(key, &p); err != nil {
		return nil, err
	}
	joinedAt := p.JoinedAt
	fn(&p)
	p.ID, p.JoinedAt = id, joinedAt
	if err := s.put(key, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Pebble) RemovePlayerBySocketID(ctx context.Context, socketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.GetPlayerBySocketID(ctx, socketID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.db.Delete(idKey(playerPrefix, p.ID), pebble.Sync)
}

func (s *Pebble) RemovePlayersByRoomID(ctx context.Context, roomID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, err := s.GetPlayersByRoomID(ctx, roomID)
	if err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, p := range ps {
		if err := b.Delete(idKey(playerPrefix, p.ID), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (s *Pebble) Close() error {
	return s.db.Close()
}
