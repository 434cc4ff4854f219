package game

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/portal-bingo/bingo/card"
	"github.com/gosuda/portal-bingo/bingo/store"
)

type fixture struct {
	ctx   context.Context
	st    *store.Memory
	g     *Game
	room  *store.Room
	alice *store.Player
	bob   *store.Player
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	rng := rand.New(rand.NewSource(7))
	room, alice, err := CreateRoom(ctx, st, rng, Entrant{Username: "alice", SocketID: "a"}, "ABC123")
	require.NoError(t, err)
	g := New(st, room.ID, rng, opts...)
	_, bob, _, err := g.Join(ctx, Entrant{Username: "bob", SocketID: "b", Server: store.ServerES})
	require.NoError(t, err)
	return &fixture{ctx: ctx, st: st, g: g, room: room, alice: alice, bob: bob}
}

func (f *fixture) call(t *testing.T, nums ...card.Cell) {
	t.Helper()
	_, err := f.st.UpdateRoom(f.ctx, f.room.ID, func(r *store.Room) {
		for _, n := range nums {
			r.CalledNumbers = append(r.CalledNumbers, int(n))
		}
	})
	require.NoError(t, err)
}

func (f *fixture) roomState(t *testing.T) *store.Room {
	t.Helper()
	r, err := f.st.GetRoomByID(f.ctx, f.room.ID)
	require.NoError(t, err)
	return r
}

// bobRow returns the non-FREE cells of the middle row on bob's card.
func (f *fixture) bobRow() []card.Cell {
	c := f.bob.BingoCard
	return []card.Cell{c[10], c[11], c[13], c[14]}
}

func (f *fixture) bobWins(t *testing.T) {
	t.Helper()
	row := f.bobRow()
	f.call(t, row...)
	for _, v := range row {
		_, err := f.g.Mark(f.ctx, "b", v)
		require.NoError(t, err)
	}
}

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	rng := rand.New(rand.NewSource(1))

	room, host, err := CreateRoom(ctx, st, rng, Entrant{Username: "alice", SocketID: "a"}, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", room.Code)
	assert.Equal(t, "a", room.HostID)
	assert.False(t, room.IsGameActive)
	assert.Empty(t, room.CalledNumbers)
	assert.True(t, host.IsHost)
	assert.Equal(t, room.ID, host.RoomID)
	require.NoError(t, card.Validate(host.BingoCard))

	_, _, err = CreateRoom(ctx, st, rng, Entrant{Username: "eve", SocketID: "e"}, "ABC123")
	assert.ErrorIs(t, err, ErrCodeTaken)
	_, _, err = CreateRoom(ctx, st, rng, Entrant{Username: "eve", SocketID: "e"}, "abc")
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, _, err = CreateRoom(ctx, st, rng, Entrant{Username: "eve", SocketID: "e"}, "abc-123")
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, _, err = CreateRoom(ctx, st, rng, Entrant{SocketID: "e"}, "")
	assert.ErrorIs(t, err, ErrInvalidName)

	gen, _, err := CreateRoom(ctx, st, rng, Entrant{Username: "eve", SocketID: "e"}, "")
	require.NoError(t, err)
	assert.True(t, ValidCode(gen.Code))
	assert.Len(t, gen.Code, 6)
}

func TestJoin(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.bob.IsHost)
	assert.Equal(t, store.ServerES, f.bob.Server)
	require.NoError(t, card.Validate(f.bob.BingoCard))
	assert.Equal(t, []card.Cell{card.Free}, f.bob.MarkedNumbers, "FREE starts marked")

	_, ps, err := f.g.Snapshot(f.ctx)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "alice", ps[0].Username)

	_, _, _, err = f.g.Join(f.ctx, Entrant{SocketID: "x"})
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestStart(t *testing.T) {
	f := newFixture(t)
	_, err := f.g.Start(f.ctx, "b")
	assert.ErrorIs(t, err, ErrNotHost)
	assert.False(t, f.roomState(t).IsGameActive)

	r, err := f.g.Start(f.ctx, "a")
	require.NoError(t, err)
	assert.True(t, r.IsGameActive)

	_, err = f.g.Start(f.ctx, "a")
	assert.ErrorIs(t, err, ErrAlreadyActive)

	_, err = f.g.Start(f.ctx, "stranger")
	assert.ErrorIs(t, err, ErrNotInRoom)
}

func TestStartAfterFinishedRoundNeedsReset(t *testing.T) {
	f := newFixture(t)
	_, err := f.g.Start(f.ctx, "a")
	require.NoError(t, err)
	_, err = f.g.Call(f.ctx, "a")
	require.NoError(t, err)
	_, err = f.st.UpdateRoom(f.ctx, f.room.ID, func(r *store.Room) { r.IsGameActive = false })
	require.NoError(t, err)

	_, err = f.g.Start(f.ctx, "a")
	assert.ErrorIs(t, err, ErrNeedsReset)
}

func TestCallIsHostOnly(t *testing.T) {
	f := newFixture(t)
	_, err := f.g.Call(f.ctx, "a")
	assert.ErrorIs(t, err, ErrNotActive)

	_, err = f.g.Start(f.ctx, "a")
	require.NoError(t, err)
	_, err = f.g.Call(f.ctx, "b")
	assert.ErrorIs(t, err, ErrNotHost)
	assert.Empty(t, f.roomState(t).CalledNumbers)

	d, err := f.g.Call(f.ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []int{d.Number}, d.Called)
	r := f.roomState(t)
	require.NotNil(t, r.CurrentNumber)
	assert.Equal(t, d.Number, *r.CurrentNumber)
}

func TestTickExhaustsDomain(t *testing.T) {
	f := newFixture(t)
	_, err := f.g.Start(f.ctx, "a")
	require.NoError(t, err)

	seen := map[int]bool{}
	for i := 1; i <= card.MaxNumber; i++ {
		d, err := f.g.Tick(f.ctx)
		require.NoError(t, err)
		require.False(t, seen[d.Number], "duplicate draw %d", d.Number)
		seen[d.Number] = true
		require.Len(t, d.Called, i)
		assert.Equal(t, i == card.MaxNumber, d.Exhausted)
	}

	r := f.roomState(t)
	assert.False(t, r.IsGameActive)
	assert.Len(t, r.CalledNumbers, card.MaxNumber)
	assert.Empty(t, r.Winner)

	_, err = f.g.Tick(f.ctx)
	assert.ErrorIs(t, err, ErrNotActive)
}

func TestMarkRules(t *testing.T) {
	f := newFixture(t)
	v := f.bob.BingoCard[0]

	_, err := f.g.Mark(f.ctx, "b", v)
	assert.ErrorIs(t, err, ErrNotActive)

	_, err = f.g.Start(f.ctx, "a")
	require.NoError(t, err)

	_, err = f.g.Mark(f.ctx, "b", v)
	assert.ErrorIs(t, err, ErrNotCalled)
	p, err := f.st.GetPlayerByID(f.ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []card.Cell{card.Free}, p.MarkedNumbers, "uncalled mark never mutates")

	var offCard card.Cell
	for n := card.Cell(1); n <= card.MaxNumber; n++ {
		if !f.bob.BingoCard.Contains(n) {
			offCard = n
			break
		}
	}
	f.call(t, v, offCard)
	_, err = f.g.Mark(f.ctx, "b", offCard)
	assert.ErrorIs(t, err, ErrNotOnCard)

	p, err = f.g.Mark(f.ctx, "b", v)
	require.NoError(t, err)
	assert.Equal(t, []card.Cell{card.Free, v}, p.MarkedNumbers)
	p, err = f.g.Mark(f.ctx, "b", v)
	require.NoError(t, err)
	assert.Equal(t, []card.Cell{card.Free, v}, p.MarkedNumbers, "re-mark is a no-op")

	p, err = f.g.Mark(f.ctx, "b", card.Free)
	require.NoError(t, err)
	assert.Equal(t, []card.Cell{card.Free, v}, p.MarkedNumbers, "FREE is already marked")

	alice, err := f.st.GetPlayerByID(f.ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []card.Cell{card.Free}, alice.MarkedNumbers, "marks are per player")
}

func TestClaimConfirmFlow(t *testing.T) {
	f := newFixture(t)
	_, err := f.g.ClaimBingo(f.ctx, "b")
	assert.ErrorIs(t, err, ErrNotActive)

	_, err = f.g.Start(f.ctx, "a")
	require.NoError(t, err)
	f.bobWins(t)

	claim, err := f.g.ClaimBingo(f.ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, f.bob.ID, claim.Claimant.ID)
	require.NotNil(t, claim.Room.PendingBingoVerification)
	assert.Equal(t, "bob", claim.Room.PendingBingoVerification.PlayerName)

	// second claim while pending has no effect
	_, err = f.g.ClaimBingo(f.ctx, "a")
	assert.ErrorIs(t, err, ErrClaimPending)
	assert.Equal(t, f.bob.ID, f.roomState(t).PendingBingoVerification.PlayerID)

	// blocked room rejects calls and marks
	_, err = f.g.Tick(f.ctx)
	assert.ErrorIs(t, err, ErrBlocked)
	_, err = f.g.Mark(f.ctx, "b", card.Free)
	assert.ErrorIs(t, err, ErrBlocked)

	// only the host resolves
	_, err = f.g.Confirm(f.ctx, "b", f.bob.ID)
	assert.ErrorIs(t, err, ErrNotHost)
	_, err = f.g.Reject(f.ctx, "b")
	assert.ErrorIs(t, err, ErrNotHost)
	assert.NotNil(t, f.roomState(t).PendingBingoVerification)

	_, err = f.g.Confirm(f.ctx, "a", f.alice.ID)
	assert.ErrorIs(t, err, ErrWrongClaimant)

	r, err := f.g.Confirm(f.ctx, "a", f.bob.ID)
	require.NoError(t, err)
	assert.False(t, r.IsGameActive)
	assert.Nil(t, r.PendingBingoVerification)
	assert.Equal(t, "bob", r.Winner)

	_, err = f.g.Confirm(f.ctx, "a", f.bob.ID)
	assert.ErrorIs(t, err, ErrNoClaim)
}

func TestConfirmRechecksCard(t *testing.T) {
	f := newFixture(t)
	_, err := f.g.Start(f.ctx, "a")
	require.NoError(t, err)
	_, err = f.g.ClaimBingo(f.ctx, "b")
	require.NoError(t, err)

	_, err = f.g.Confirm(f.ctx, "a", f.bob.ID)
	assert.ErrorIs(t, err, ErrClaimInvalid)
	r := f.roomState(t)
	assert.True(t, r.IsGameActive)
	assert.NotNil(t, r.PendingBingoVerification, "claim stays pending for the host to reject")
}

func TestConfirmTrustHost(t *testing.T) {
	f := newFixture(t, WithTrustHost(true))
	_, err := f.g.Start(f.ctx, "a")
	require.NoError(t, err)
	_, err = f.g.ClaimBingo(f.ctx, "b")
	require.NoError(t, err)

	r, err := f.g.Confirm(f.ctx, "a", f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", r.Winner)
}

func TestRejectResumesPlay(t *testing.T) {
	f := newFixture(t)
	_, err := f.g.Reject(f.ctx, "a")
	assert.ErrorIs(t, err, ErrNoClaim)

	_, err = f.g.Start(f.ctx, "a")
	require.NoError(t, err)
	_, err = f.g.Call(f.ctx, "a")
	require.NoError(t, err)
	before := f.roomState(t)
	_, err = f.g.ClaimBingo(f.ctx, "b")
	require.NoError(t, err)

	r, err := f.g.Reject(f.ctx, "a")
	require.NoError(t, err)
	assert.True(t, r.IsGameActive)
	assert.Nil(t, r.PendingBingoVerification)
	assert.Equal(t, before.CalledNumbers, r.CalledNumbers)

	_, err = f.g.Tick(f.ctx)
	assert.NoError(t, err)
}

func TestResetDealsNewCards(t *testing.T) {
	f := newFixture(t)
	_, err := f.g.Start(f.ctx, "a")
	require.NoError(t, err)
	f.bobWins(t)
	_, err = f.g.ClaimBingo(f.ctx, "b")
	require.NoError(t, err)
	_, err = f.g.Confirm(f.ctx, "a", f.bob.ID)
	require.NoError(t, err)

	_, err = f.g.Reset(f.ctx, "b")
	assert.ErrorIs(t, err, ErrNotHost)

	res, err := f.g.Reset(f.ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "bob", res.Winner)
	require.Len(t, res.Players, 2)
	for _, p := range res.Players {
		assert.Equal(t, []card.Cell{card.Free}, p.MarkedNumbers)
		require.NoError(t, card.Validate(p.BingoCard))
	}

	r := f.roomState(t)
	assert.False(t, r.IsGameActive)
	assert.Empty(t, r.CalledNumbers)
	assert.Nil(t, r.CurrentNumber)
	assert.Empty(t, r.Winner)

	res, err = f.g.Reset(f.ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, res.Winner)

	_, err = f.g.Start(f.ctx, "a")
	assert.NoError(t, err)
}

func TestHostMigrationPicksEarliestJoin(t *testing.T) {
	f := newFixture(t)
	_, carol, _, err := f.g.Join(f.ctx, Entrant{Username: "carol", SocketID: "c"})
	require.NoError(t, err)

	d, err := f.g.Leave(f.ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, d.NewHost)
	assert.Equal(t, f.bob.ID, d.NewHost.ID)
	assert.Equal(t, "b", d.Room.HostID)
	assert.Len(t, d.Remaining, 2)

	hosts := 0
	for _, p := range d.Remaining {
		if p.IsHost {
			hosts++
		}
	}
	assert.Equal(t, 1, hosts)

	// non-host departure keeps the host
	d, err = f.g.Leave(f.ctx, "c")
	require.NoError(t, err)
	assert.Nil(t, d.NewHost)
	assert.Equal(t, carol.ID, d.Player.ID)

	_, err = f.g.Start(f.ctx, "b")
	assert.NoError(t, err)
}

func TestLastLeaveDeletesRoom(t *testing.T) {
	f := newFixture(t)
	_, err := f.g.Leave(f.ctx, "a")
	require.NoError(t, err)
	d, err := f.g.Leave(f.ctx, "b")
	require.NoError(t, err)
	assert.True(t, d.RoomDeleted)

	_, err = f.st.GetRoomByCode(f.ctx, "ABC123")
	assert.ErrorIs(t, err, store.ErrNotFound)
	ps, err := f.st.GetPlayersByRoomID(f.ctx, f.room.ID)
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestKick(t *testing.T) {
	f := newFixture(t)
	_, err := f.g.Kick(f.ctx, "a", f.alice.ID)
	assert.ErrorIs(t, err, ErrSelfKick)
	_, err = f.g.Kick(f.ctx, "b", f.alice.ID)
	assert.ErrorIs(t, err, ErrNotHost)
	_, err = f.g.Kick(f.ctx, "a", 999)
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	d, err := f.g.Kick(f.ctx, "a", f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", d.Player.SocketID)
	require.Len(t, d.Remaining, 1)
	assert.Equal(t, f.alice.ID, d.Remaining[0].ID)

	_, err = f.st.GetPlayerBySocketID(f.ctx, "b")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClaimantDepartureWithdrawsClaim(t *testing.T) {
	f := newFixture(t)
	_, err := f.g.Start(f.ctx, "a")
	require.NoError(t, err)
	_, err = f.g.ClaimBingo(f.ctx, "b")
	require.NoError(t, err)

	d, err := f.g.Leave(f.ctx, "b")
	require.NoError(t, err)
	assert.True(t, d.ClaimWithdrawn)
	assert.Nil(t, d.Room.PendingBingoVerification)
	assert.True(t, d.Room.IsGameActive)
}

func TestCheckMessage(t *testing.T) {
	f := newFixture(t)
	_, err := f.g.CheckMessage(f.ctx, "b", "")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = f.g.CheckMessage(f.ctx, "b", strings.Repeat("x", MaxMessageLen+1))
	assert.ErrorIs(t, err, ErrMessageTooLong)
	p, err := f.g.CheckMessage(f.ctx, "b", strings.Repeat("é", MaxMessageLen))
	require.NoError(t, err)
	assert.Equal(t, "bob", p.Username)
	_, err = f.g.CheckMessage(f.ctx, "zzz", "hi")
	assert.ErrorIs(t, err, ErrNotInRoom)
}
