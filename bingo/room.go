package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/portal-bingo/bingo/card"
	"github.com/gosuda/portal-bingo/bingo/game"
	"github.com/gosuda/portal-bingo/bingo/store"
)

const internalErrorMessage = "internal error"

// Room is the actor owning one room. Every mutation of the room and its
// players runs on its goroutine, in arrival order.
type Room struct {
	id    int64
	code  string
	game  *game.Game
	reg   *Registry
	bc    broadcaster
	sched *drawScheduler

	mu     sync.Mutex
	queue  []func(*Room)
	wake   chan struct{}
	closed bool
	done   chan struct{}
}

func newRoom(rec *store.Room, g *game.Game, reg *Registry) *Room {
	r := &Room{
		id:   rec.ID,
		code: rec.Code,
		game: g,
		reg:  reg,
		bc:   broadcaster{store: reg.store, reg: reg, roomID: rec.ID},
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	r.sched = newDrawScheduler(reg.opts.DrawInterval, func(gen uint64) {
		r.enqueue(func(r *Room) { r.tick(gen) })
	})
	return r
}

// enqueue schedules fn on the actor. It reports false once the room is closed.
func (r *Room) enqueue(fn func(*Room)) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	r.queue = append(r.queue, fn)
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return true
}

func (r *Room) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Room) loop() {
	defer close(r.done)
	for range r.wake {
		r.drain()
		if r.isClosed() {
			return
		}
	}
}

// drain runs queued commands until the queue is empty.
func (r *Room) drain() {
	for {
		r.mu.Lock()
		batch := r.queue
		r.queue = nil
		r.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			r.run(fn)
		}
	}
}

func (r *Room) run(fn func(*Room)) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Int64("room", r.id).Str("code", r.code).Msg("[bingo] room handler panicked")
			r.terminate("the room was closed after an internal error")
		}
	}()
	fn(r)
}

// shutdown stops the actor from accepting work. Commands already queued still
// run and see a closed room.
func (r *Room) shutdown() {
	r.sched.disarm()
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.reg.removeRoom(r)
}

// fail reports a game error to c; anything else is a store failure and
// closes the room.
func (r *Room) fail(c *Client, err error) {
	if err == nil {
		return
	}
	var gerr game.Error
	if errors.As(err, &gerr) {
		if c != nil {
			c.pushError(string(gerr))
		}
		return
	}
	log.Error().Err(err).Int64("room", r.id).Str("code", r.code).Msg("[bingo] store failure; closing room")
	r.terminate("the room was closed after an internal error")
}

// terminate tells every member the room is gone and reclaims it.
func (r *Room) terminate(reason string) {
	if r.isClosed() {
		return
	}
	ctx := context.Background()
	ev := ServerEvent{Type: EventRoomClosed, Payload: messagePayload{Message: reason}}
	for _, c := range r.reg.members(r) {
		c.push(ev)
	}
	if err := r.reg.store.RemovePlayersByRoomID(ctx, r.id); err != nil {
		log.Error().Err(err).Int64("room", r.id).Msg("[bingo] remove players")
	}
	if err := r.reg.store.DeleteRoom(ctx, r.id); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).Int64("room", r.id).Msg("[bingo] delete room")
	}
	log.Info().Int64("room", r.id).Str("code", r.code).Str("reason", reason).Msg("[bingo] room closed")
	r.shutdown()
}

func (r *Room) handle(c *Client, msg Inbound) {
	if r.isClosed() {
		c.pushError(string(game.ErrNotInRoom))
		return
	}
	ctx := context.Background()
	var err error
	switch m := msg.(type) {
	case StartGame:
		err = r.startGame(ctx, c)
	case CallNumber:
		err = r.callNumber(ctx, c)
	case MarkNumber:
		err = r.markNumber(ctx, c, m.Number)
	case ClaimBingo:
		err = r.claimBingo(ctx, c)
	case ConfirmBingo:
		err = r.confirmBingo(ctx, c, m.WinnerID)
	case RejectBingo:
		err = r.rejectBingo(ctx, c)
	case ResetGame:
		err = r.resetGame(ctx, c)
	case SendMessage:
		err = r.sendMessage(ctx, c, m.Message)
	case KickPlayer:
		err = r.kickPlayer(ctx, c, m.PlayerID)
	case LeaveRoom:
		err = r.leaveRoom(ctx, c)
	default:
		log.Warn().Str("conn", c.id).Str("message", fmt.Sprintf("%T", msg)).Msg("[bingo] unexpected room message")
		return
	}
	r.fail(c, err)
}

// gone reports whether c disconnected before its queued command ran.
func (r *Room) gone(c *Client) bool {
	return r.reg.client(c.id) != c
}

func (r *Room) announceCreated(c *Client) {
	if r.gone(c) {
		r.disconnect(c.id)
		return
	}
	room, players, err := r.game.Snapshot(context.Background())
	if err != nil {
		r.fail(c, err)
		return
	}
	for _, p := range players {
		if p.SocketID == c.id {
			c.push(ServerEvent{Type: EventRoomCreated, Payload: roomEnteredPayload{
				Room:        viewRoom(room),
				Player:      viewSelf(p),
				Players:     viewPlayers(players),
				PlayerCount: len(players),
				IsHost:      true,
			}})
			return
		}
	}
}

func (r *Room) join(c *Client, e game.Entrant) {
	if r.isClosed() {
		r.reg.unbind(c.id, r)
		c.pushError(string(game.ErrRoomNotFound))
		return
	}
	if r.gone(c) {
		r.reg.unbind(c.id, r)
		return
	}
	ctx := context.Background()
	room, player, players, err := r.game.Join(ctx, e)
	if err != nil {
		r.reg.unbind(c.id, r)
		var gerr game.Error
		if !errors.As(err, &gerr) {
			c.pushError(internalErrorMessage)
		}
		r.fail(c, err)
		return
	}
	log.Info().Int64("room", r.id).Str("code", r.code).Int64("player", player.ID).Msg("[bingo] player joined")

	roster := viewPlayers(players)
	self := viewPlayer(player)
	c.push(ServerEvent{Type: EventRoomJoined, Payload: roomEnteredPayload{
		Room:        viewRoom(room),
		Player:      viewSelf(player),
		Players:     roster,
		PlayerCount: len(roster),
		IsHost:      player.IsHost,
	}})
	r.bc.toPlayers(players, ServerEvent{Type: EventPlayerJoined, Payload: rosterPayload{
		Players:     roster,
		PlayerCount: len(roster),
		Player:      &self,
	}}, c.id)
	if pending := room.PendingBingoVerification; pending != nil {
		c.push(ServerEvent{Type: EventBingoAnnounced, Payload: bingoAnnouncedPayload{
			Message:     claimMessage(pending.PlayerName),
			GameBlocked: true,
		}})
	}
}

// disconnect handles a dropped connection like an explicit leave.
func (r *Room) disconnect(socketID string) {
	if r.isClosed() {
		return
	}
	ctx := context.Background()
	d, err := r.game.Leave(ctx, socketID)
	if errors.Is(err, game.ErrNotInRoom) {
		return
	}
	if err != nil {
		r.fail(nil, err)
		return
	}
	r.fail(nil, r.afterDeparture(ctx, d, EventPlayerLeft))
}

func (r *Room) leaveRoom(ctx context.Context, c *Client) error {
	d, err := r.game.Leave(ctx, c.id)
	if err != nil {
		return err
	}
	r.reg.unbind(c.id, r)
	return r.afterDeparture(ctx, d, EventPlayerLeft)
}

func (r *Room) kickPlayer(ctx context.Context, c *Client, targetID int64) error {
	d, err := r.game.Kick(ctx, c.id, targetID)
	if err != nil {
		return err
	}
	r.reg.unbind(d.Player.SocketID, r)
	r.bc.toSocket(d.Player.SocketID, ServerEvent{Type: EventKickedFromRoom, Payload: messagePayload{
		Message: "you were kicked from the room by the host",
	}})
	return r.afterDeparture(ctx, d, EventPlayerKicked)
}

// afterDeparture tells the remaining players about d.
func (r *Room) afterDeparture(ctx context.Context, d game.Departure, kind string) error {
	log.Info().Int64("room", r.id).Str("code", r.code).Int64("player", d.Player.ID).Str("reason", kind).Msg("[bingo] player left")
	if d.RoomDeleted {
		log.Info().Int64("room", r.id).Str("code", r.code).Msg("[bingo] room empty; deleted")
		r.shutdown()
		return nil
	}
	if d.ClaimWithdrawn {
		r.bc.toPlayers(d.Remaining, ServerEvent{Type: EventBingoRejected}, "")
		if d.Room.IsGameActive {
			r.sched.arm()
		}
	}

	roster := viewPlayers(d.Remaining)
	left := viewPlayer(d.Player)
	if d.NewHost == nil {
		r.bc.toPlayers(d.Remaining, ServerEvent{Type: kind, Payload: rosterPayload{
			Players:     roster,
			PlayerCount: len(roster),
			Player:      &left,
		}}, "")
		return nil
	}

	log.Info().Int64("room", r.id).Str("code", r.code).Int64("player", d.NewHost.ID).Msg("[bingo] host changed")
	for _, p := range d.Remaining {
		r.bc.toSocket(p.SocketID, ServerEvent{Type: EventHostChanged, Payload: hostChangedPayload{
			IsHost:      p.ID == d.NewHost.ID,
			Players:     roster,
			PlayerCount: len(roster),
			Player:      &left,
		}})
	}
	if pending := d.Room.PendingBingoVerification; pending != nil {
		r.bc.toSocket(d.NewHost.SocketID, ServerEvent{Type: EventBingoNotification, Payload: bingoNotificationPayload{
			Winner:   pending.PlayerName,
			WinnerID: pending.PlayerID,
		}})
	}
	return nil
}

func (r *Room) startGame(ctx context.Context, c *Client) error {
	if _, err := r.game.Start(ctx, c.id); err != nil {
		return err
	}
	log.Info().Int64("room", r.id).Str("code", r.code).Msg("[bingo] round started")
	r.sched.arm()
	return r.bc.toRoom(ctx, ServerEvent{Type: EventGameStarted})
}

func (r *Room) callNumber(ctx context.Context, c *Client) error {
	d, err := r.game.Call(ctx, c.id)
	if err != nil {
		return err
	}
	return r.announceDraw(ctx, d)
}

// tick is an automatic call. Ticks from a disarmed generation are stale.
func (r *Room) tick(gen uint64) {
	if r.isClosed() || !r.sched.due(gen) {
		return
	}
	ctx := context.Background()
	d, err := r.game.Tick(ctx)
	var gerr game.Error
	if errors.As(err, &gerr) {
		log.Debug().Str("reason", string(gerr)).Int64("room", r.id).Msg("[bingo] automatic call stopped")
		r.sched.disarm()
		return
	}
	if err != nil {
		r.fail(nil, err)
		return
	}
	if err := r.announceDraw(ctx, d); err != nil {
		r.fail(nil, err)
		return
	}
	if !d.Exhausted {
		r.sched.next()
	}
}

func (r *Room) announceDraw(ctx context.Context, d game.Draw) error {
	if err := r.bc.toRoom(ctx, ServerEvent{Type: EventNumberCalled, Payload: numberCalledPayload{
		Number:        d.Number,
		CalledNumbers: d.Called,
	}}); err != nil {
		return err
	}
	if !d.Exhausted {
		return nil
	}
	r.sched.disarm()
	log.Info().Int64("room", r.id).Str("code", r.code).Msg("[bingo] round ended without a winner")
	return r.bc.toRoom(ctx, ServerEvent{Type: EventRoundEnded, Payload: roundEndedPayload{
		Reason:        "exhausted",
		CalledNumbers: d.Called,
	}})
}

func (r *Room) markNumber(ctx context.Context, c *Client, v card.Cell) error {
	p, err := r.game.Mark(ctx, c.id, v)
	if err != nil {
		return err
	}
	c.push(ServerEvent{Type: EventNumberMarked, Payload: numberMarkedPayload{MarkedNumbers: wireMarks(p)}})
	return nil
}

func claimMessage(name string) string {
	return fmt.Sprintf("%s called BINGO! Waiting for the host to verify.", name)
}

func (r *Room) claimBingo(ctx context.Context, c *Client) error {
	claim, err := r.game.ClaimBingo(ctx, c.id)
	if err != nil {
		return err
	}
	r.sched.disarm()
	log.Info().Int64("room", r.id).Str("code", r.code).Int64("player", claim.Claimant.ID).Msg("[bingo] bingo claimed")
	r.bc.toSocket(claim.Room.HostID, ServerEvent{Type: EventBingoNotification, Payload: bingoNotificationPayload{
		Winner:   claim.Claimant.Username,
		WinnerID: claim.Claimant.ID,
	}})
	return r.bc.toRoom(ctx, ServerEvent{Type: EventBingoAnnounced, Payload: bingoAnnouncedPayload{
		Message:     claimMessage(claim.Claimant.Username),
		GameBlocked: true,
	}})
}

func (r *Room) confirmBingo(ctx context.Context, c *Client, winnerID int64) error {
	room, err := r.game.Confirm(ctx, c.id, winnerID)
	if err != nil {
		return err
	}
	r.sched.disarm()
	log.Info().Int64("room", r.id).Str("code", r.code).Int64("player", winnerID).Msg("[bingo] bingo confirmed")
	return r.bc.toRoom(ctx, ServerEvent{Type: EventPlayerWon, Payload: playerWonPayload{
		Winner:   room.Winner,
		WinnerID: winnerID,
	}})
}

func (r *Room) rejectBingo(ctx context.Context, c *Client) error {
	room, err := r.game.Reject(ctx, c.id)
	if err != nil {
		return err
	}
	if err := r.bc.toRoom(ctx, ServerEvent{Type: EventBingoRejected}); err != nil {
		return err
	}
	if room.IsGameActive {
		r.sched.arm()
	}
	return nil
}

func (r *Room) resetGame(ctx context.Context, c *Client) error {
	res, err := r.game.Reset(ctx, c.id)
	if err != nil {
		return err
	}
	r.sched.disarm()
	log.Info().Int64("room", r.id).Str("code", r.code).Msg("[bingo] round reset")
	for _, p := range res.Players {
		ev := ServerEvent{Type: EventGameReset, Payload: gameResetPayload{BingoCard: p.BingoCard}}
		if res.Winner != "" {
			ev = ServerEvent{Type: EventGameResetWithWinner, Payload: gameResetPayload{
				Winner:    res.Winner,
				BingoCard: p.BingoCard,
			}}
		}
		r.bc.toSocket(p.SocketID, ev)
	}
	return nil
}

func (r *Room) sendMessage(ctx context.Context, c *Client, raw string) error {
	text := sanitizeMessage(raw)
	p, err := r.game.CheckMessage(ctx, c.id, text)
	if err != nil {
		return err
	}
	return r.bc.toRoom(ctx, ServerEvent{Type: EventChatMessage, Payload: chatPayload{
		Username:  p.Username,
		Message:   text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		IsHost:    p.IsHost,
		Server:    p.Server,
	}})
}
