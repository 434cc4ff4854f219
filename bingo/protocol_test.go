package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/portal-bingo/bingo/card"
	"github.com/gosuda/portal-bingo/bingo/store"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Inbound
	}{
		{"create", `{"type":"create_room","username":"alice","roomCode":"ABC123"}`, CreateRoom{Username: "alice", RoomCode: "ABC123", Server: store.ServerOrigins}},
		{"create es", `{"type":"create_room","username":"alice","server":"es"}`, CreateRoom{Username: "alice", Server: store.ServerES}},
		{"join", `{"type":"join_room","username":"bob","roomCode":"abc123","server":"moon"}`, JoinRoom{Username: "bob", RoomCode: "abc123", Server: store.ServerOrigins}},
		{"start", `{"type":"start_game"}`, StartGame{}},
		{"call", `{"type":"call_number"}`, CallNumber{}},
		{"mark number", `{"type":"mark_number","number":42}`, MarkNumber{Number: 42}},
		{"mark string", `{"type":"mark_number","number":"17"}`, MarkNumber{Number: 17}},
		{"mark free", `{"type":"mark_number","number":"FREE"}`, MarkNumber{Number: card.Free}},
		{"claim", `{"type":"claim_bingo"}`, ClaimBingo{}},
		{"claim alias", `{"type":"bingo"}`, ClaimBingo{}},
		{"confirm", `{"type":"confirm_bingo","winnerId":7}`, ConfirmBingo{WinnerID: 7}},
		{"reject", `{"type":"reject_bingo"}`, RejectBingo{}},
		{"reset", `{"type":"reset_game"}`, ResetGame{}},
		{"chat", `{"type":"send_message","message":"hi"}`, SendMessage{Message: "hi"}},
		{"kick", `{"type":"kick_player","playerId":3}`, KickPlayer{PlayerID: 3}},
		{"leave", `{"type":"leave_room"}`, LeaveRoom{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInbound([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeInboundRejects(t *testing.T) {
	malformed := []string{
		`not json`,
		`{"type":"join_room","username":"bob"}`,
		`{"type":"mark_number"}`,
		`{"type":"mark_number","number":0}`,
		`{"type":"mark_number","number":76}`,
		`{"type":"mark_number","number":"free"}`,
		`{"type":"confirm_bingo"}`,
		`{"type":"send_message"}`,
		`{"type":"kick_player"}`,
	}
	for _, payload := range malformed {
		_, err := DecodeInbound([]byte(payload))
		assert.ErrorIs(t, err, errMalformed, payload)
	}

	_, err := DecodeInbound([]byte(`{"type":"launch_rockets"}`))
	assert.ErrorIs(t, err, errUnknownType)
	_, err = DecodeInbound([]byte(`{}`))
	assert.ErrorIs(t, err, errUnknownType)
}

func TestServerEventFlattensPayload(t *testing.T) {
	raw, err := json.Marshal(ServerEvent{Type: EventNumberCalled, Payload: numberCalledPayload{Number: 5, CalledNumbers: []int{12, 5}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"number_called","number":5,"calledNumbers":[12,5]}`, string(raw))

	raw, err = json.Marshal(ServerEvent{Type: EventGameStarted})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"game_started"}`, string(raw))

	raw, err = json.Marshal(ServerEvent{Type: EventBingoRejected, Payload: struct{}{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"bingo_rejected"}`, string(raw))

	_, err = json.Marshal(ServerEvent{Type: EventError, Payload: 3})
	assert.Error(t, err)
}

func TestRosterHidesCards(t *testing.T) {
	p := &store.Player{ID: 1, Username: "alice", IsHost: true, MarkedNumbers: []card.Cell{card.Free}}
	raw, err := json.Marshal(rosterPayload{Players: viewPlayers([]*store.Player{p}), PlayerCount: 1})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "bingoCard")
	assert.NotContains(t, string(raw), "markedNumbers")

	raw, err = json.Marshal(viewSelf(p))
	require.NoError(t, err)
	var self map[string]any
	require.NoError(t, json.Unmarshal(raw, &self))
	assert.Equal(t, "alice", self["username"])
	assert.Equal(t, []any{"FREE"}, self["markedNumbers"])
	assert.Len(t, self["bingoCard"], card.Size)
}

func TestWireMarksIncludeFree(t *testing.T) {
	assert.Equal(t, []card.Cell{card.Free}, wireMarks(&store.Player{}))
	assert.Equal(t, []card.Cell{card.Free, 9}, wireMarks(&store.Player{MarkedNumbers: []card.Cell{9}}))
	assert.Equal(t, []card.Cell{card.Free, 9}, wireMarks(&store.Player{MarkedNumbers: []card.Cell{card.Free, 9}}))
}
