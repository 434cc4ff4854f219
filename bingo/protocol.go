package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gosuda/portal-bingo/bingo/card"
	"github.com/gosuda/portal-bingo/bingo/store"
)

var (
	errMalformed   = errors.New("malformed message")
	errUnknownType = errors.New("unknown message type")
)

// clientMessage is the envelope received from websocket clients.
type clientMessage struct {
	Type     string          `json:"type"`
	Username string          `json:"username,omitempty"`
	RoomCode string          `json:"roomCode,omitempty"`
	Server   string          `json:"server,omitempty"`
	Number   json.RawMessage `json:"number,omitempty"`
	WinnerID *int64          `json:"winnerId,omitempty"`
	PlayerID *int64          `json:"playerId,omitempty"`
	Message  *string         `json:"message,omitempty"`
}

// Inbound is the closed set of messages a client may send.
type Inbound interface{ inbound() }

type (
	CreateRoom struct {
		Username string
		RoomCode string
		Server   store.AvatarServer
	}
	JoinRoom struct {
		Username string
		RoomCode string
		Server   store.AvatarServer
	}
	StartGame    struct{}
	CallNumber   struct{}
	MarkNumber   struct{ Number card.Cell }
	ClaimBingo   struct{}
	ConfirmBingo struct{ WinnerID int64 }
	RejectBingo  struct{}
	ResetGame    struct{}
	SendMessage  struct{ Message string }
	KickPlayer   struct{ PlayerID int64 }
	LeaveRoom    struct{}
)

func (CreateRoom) inbound() {}
func (JoinRoom) inbound() {}
func (StartGame) inbound() {}
func (CallNumber) inbound() {}
func (MarkNumber) inbound() {}
func (ClaimBingo) inbound() {}
func (ConfirmBingo) inbound() {}
func (RejectBingo) inbound() {}
func (ResetGame) inbound() {}
func (SendMessage) inbound() {}
func (KickPlayer) inbound() {}
func (LeaveRoom) inbound() {}

// DecodeInbound parses one client frame. Unknown types and missing required
// fields are rejected uniformly.
func DecodeInbound(payload []byte) (Inbound, error) {
	var m clientMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	switch m.Type {
	case "create_room":
		return CreateRoom{Username: m.Username, RoomCode: m.RoomCode, Server: store.ParseAvatarServer(m.Server)}, nil
	case "join_room":
		if m.RoomCode == "" {
			return nil, fmt.Errorf("%w: join_room without roomCode", errMalformed)
		}
		return JoinRoom{Username: m.Username, RoomCode: m.RoomCode, Server: store.ParseAvatarServer(m.Server)}, nil
	case "start_game":
		return StartGame{}, nil
	case "call_number":
		return CallNumber{}, nil
	case "mark_number":
		if len(m.Number) == 0 {
			return nil, fmt.Errorf("%w: mark_number without number", errMalformed)
		}
		n, err := card.ParseCell(m.Number)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}
		return MarkNumber{Number: n}, nil
	case "claim_bingo", "bingo":
		return ClaimBingo{}, nil
	case "confirm_bingo":
		if m.WinnerID == nil {
			return nil, fmt.Errorf("%w: confirm_bingo without winnerId", errMalformed)
		}
		return ConfirmBingo{WinnerID: *m.WinnerID}, nil
	case "reject_bingo":
		return RejectBingo{}, nil
	case "reset_game":
		return ResetGame{}, nil
	case "send_message":
		if m.Message == nil {
			return nil, fmt.Errorf("%w: send_message without message", errMalformed)
		}
		return SendMessage{Message: *m.Message}, nil
	case "kick_player":
		if m.PlayerID == nil {
			return nil, fmt.Errorf("%w: kick_player without playerId", errMalformed)
		}
		return KickPlayer{PlayerID: *m.PlayerID}, nil
	case "leave_room":
		return LeaveRoom{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownType, m.Type)
	}
}

// Outbound event types.
const (
	EventRoomCreated         = "room_created"
	EventRoomJoined          = "room_joined"
	EventPlayerJoined        = "player_joined"
	EventPlayerLeft          = "player_left"
	EventPlayerKicked        = "player_kicked"
	EventKickedFromRoom      = "kicked_from_room"
	EventHostChanged         = "host_changed"
	EventGameStarted         = "game_started"
	EventNumberCalled        = "number_called"
	EventNumberMarked        = "number_marked"
	EventBingoNotification   = "bingo_notification"
	EventBingoAnnounced      = "bingo_announced"
	EventBingoRejected       = "bingo_rejected"
	EventPlayerWon           = "player_won"
	EventGameReset           = "game_reset"
	EventGameResetWithWinner = "game_reset_with_winner"
	EventRoundEnded          = "round_ended"
	EventRoomClosed          = "room_closed"
	EventChatMessage         = "chat_message"
	EventError               = "error"
)

// ServerEvent is pushed to clients. Payload fields are flattened next to
// "type" on the wire.
type ServerEvent struct {
	Type    string
	Payload any
}

func (e ServerEvent) MarshalJSON() ([]byte, error) {
	head, err := json.Marshal(e.Type)
	if err != nil {
		return nil, err
	}
	out := append([]byte(`{"type":`), head...)
	if e.Payload == nil {
		return append(out, '}'), nil
	}
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("event %s: payload is not an object", e.Type)
	}
	if len(body) == 2 {
		return append(out, '}'), nil
	}
	out = append(out, ',')
	return append(out, body[1:]...), nil
}

// playerView is the public roster entry; cards and marks stay private.
type playerView struct {
	ID       int64              `json:"id"`
	Username string             `json:"username"`
	IsHost   bool               `json:"isHost"`
	Server   store.AvatarServer `json:"server"`
	JoinedAt time.Time          `json:"joinedAt"`
}

func viewPlayers(ps []*store.Player) []playerView {
	out := make([]playerView, 0, len(ps))
	for _, p := range ps {
		out = append(out, viewPlayer(p))
	}
	return out
}

func viewPlayer(p *store.Player) playerView {
	return playerView{ID: p.ID, Username: p.Username, IsHost: p.IsHost, Server: p.Server, JoinedAt: p.JoinedAt}
}

type roomView struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	IsGameActive  bool      `json:"isGameActive"`
	GameBlocked   bool      `json:"gameBlocked"`
	CurrentNumber *int      `json:"currentNumber"`
	CalledNumbers []int     `json:"calledNumbers"`
	CreatedAt     time.Time `json:"createdAt"`
}

func viewRoom(r *store.Room) roomView {
	return roomView{
		ID:            r.ID,
		Code:          r.Code,
		IsGameActive:  r.IsGameActive,
		GameBlocked:   r.Blocked(),
		CurrentNumber: r.CurrentNumber,
		CalledNumbers: r.CalledNumbers,
		CreatedAt:     r.CreatedAt,
	}
}

// selfView is the recipient's own record, card and marks included.
type selfView struct {
	playerView
	BingoCard     card.Card   `json:"bingoCard"`
	MarkedNumbers []card.Cell `json:"markedNumbers"`
}

func viewSelf(p *store.Player) selfView {
	return selfView{playerView: viewPlayer(p), BingoCard: p.BingoCard, MarkedNumbers: wireMarks(p)}
}

// wireMarks is the mark set sent to its owner. FREE is always included.
func wireMarks(p *store.Player) []card.Cell {
	if slices.Contains(p.MarkedNumbers, card.Free) {
		return p.MarkedNumbers
	}
	return append([]card.Cell{card.Free}, p.MarkedNumbers...)
}

type roomEnteredPayload struct {
	Room        roomView     `json:"room"`
	Player      selfView     `json:"player"`
	Players     []playerView `json:"players"`
	PlayerCount int          `json:"playerCount"`
	IsHost      bool         `json:"isHost"`
}

type rosterPayload struct {
	Players     []playerView `json:"players"`
	PlayerCount int          `json:"playerCount"`
	Player      *playerView  `json:"player,omitempty"`
}

type hostChangedPayload struct {
	IsHost      bool         `json:"isHost"`
	Players     []playerView `json:"players"`
	PlayerCount int          `json:"playerCount"`
	Player      *playerView  `json:"player,omitempty"`
}

type messagePayload struct {
	Message string `json:"message"`
}

type numberCalledPayload struct {
	Number        int   `json:"number"`
	CalledNumbers []int `json:"calledNumbers"`
}

type numberMarkedPayload struct {
	MarkedNumbers []card.Cell `json:"markedNumbers"`
}

type bingoNotificationPayload struct {
	Winner   string `json:"winner"`
	WinnerID int64  `json:"winnerId"`
}

type bingoAnnouncedPayload struct {
	Message     string `json:"message"`
	GameBlocked bool   `json:"gameBlocked"`
}

type playerWonPayload struct {
	Winner   string `json:"winner"`
	WinnerID int64  `json:"winnerId"`
}

type gameResetPayload struct {
	Winner    string    `json:"winner,omitempty"`
	BingoCard card.Card `json:"bingoCard"`
}

type roundEndedPayload struct {
	Reason        string `json:"reason"`
	CalledNumbers []int  `json:"calledNumbers"`
}

type chatPayload struct {
	Username  string             `json:"username"`
	Message   string             `json:"message"`
	Timestamp string             `json:"timestamp"`
	IsHost    bool               `json:"isHost"`
	Server    store.AvatarServer `json:"server"`
}

func errorEvent(msg string) ServerEvent {
	return ServerEvent{Type: EventError, Payload: messagePayload{Message: msg}}
}
