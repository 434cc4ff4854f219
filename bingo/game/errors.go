package game

// Error is a player-facing rule violation. It is reported to the sender only
// and never changes room state.
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrInvalidName    Error = "username is required"
	ErrInvalidCode    Error = "room code must be 6 to 10 letters or digits"
	ErrCodeTaken      Error = "room code already exists"
	ErrRoomNotFound   Error = "room not found"
	ErrNotInRoom      Error = "you are not in a room"
	ErrAlreadyInRoom  Error = "you are already in a room"
	ErrNotHost        Error = "only the host can do that"
	ErrAlreadyActive  Error = "the game is already running"
	ErrNotActive      Error = "the game is not running"
	ErrNeedsReset     Error = "reset the game before starting a new round"
	ErrBlocked        Error = "the game is paused while the host verifies a bingo"
	ErrExhausted      Error = "all numbers have been called"
	ErrNotOnCard      Error = "that number is not on your card"
	ErrNotCalled      Error = "that number has not been called yet"
	ErrClaimPending   Error = "a bingo claim is already being verified"
	ErrNoClaim        Error = "there is no bingo claim to verify"
	ErrWrongClaimant  Error = "that player did not claim bingo"
	ErrClaimInvalid   Error = "the claimed card has no completed line"
	ErrSelfKick       Error = "you cannot kick yourself"
	ErrPlayerNotFound Error = "player not found"
	ErrEmptyMessage   Error = "message is empty"
	ErrMessageTooLong Error = "message is longer than 200 characters"
)
