package room

import "github.com/lab1702/dicewars/game"

// FrameType is the `type` field of a server-to-client frame (spec.md §6).
type FrameType string

const (
	FrameGameState     FrameType = "game_state"
	FrameError         FrameType = "error"
	FrameRematchInvite FrameType = "rematch_invite"
)

// Target selects who a Frame is delivered to: the whole room, or a single
// session (used for ValidationError rejections, which spec.md §7 says must
// never reach any client but the originator).
type Target int

const (
	TargetRoom Target = iota
	TargetOriginator
)

// Frame is the opaque descriptor Command Handlers and the Move Orchestrator
// emit; the Hub fans TargetRoom frames out to every session in the room,
// and the Session delivers TargetOriginator frames only to the caller.
type Frame struct {
	Target    Target
	Type      FrameType
	GameState *GameStateFrame
	Error     *ErrorFrame
	Rematch   *RematchInviteFrame
}

// GameStateFrame is the canonical room snapshot (spec.md §6). It is always
// the complete authoritative state, never a diff — clients that miss a
// frame can always recover fully from the next one.
type GameStateFrame struct {
	State             game.Board      `json:"state"`
	Turn              *game.PlayerID  `json:"turn"`
	Players           []game.PlayerID `json:"players"`
	Status            game.RoomStatus `json:"status"`
	Winner            *game.PlayerID  `json:"winner"`
	BoardSize         int             `json:"board_size"`
	EliminatedPlayers []game.PlayerID `json:"eliminated_players"`
	Message           string          `json:"message,omitempty"`
	ExplodedCells     [][2]int        `json:"exploded_cells"`
	MoveCell          *[2]int         `json:"move_cell,omitempty"`
	SpecialEvent      string          `json:"special_event,omitempty"`
}

// ErrorFrame is a handler-rejection frame, delivered only to the originator.
type ErrorFrame struct {
	Message string `json:"message"`
}

// RematchInviteFrame is emitted by RequestRematch to the original room.
type RematchInviteFrame struct {
	NewGameID      game.RoomID     `json:"new_game_id"`
	Host           game.PlayerID   `json:"host"`
	InvitedPlayers []game.PlayerID `json:"invited_players"`
	GameRoomURL    string          `json:"game_room_url"`
	JoinURL        string          `json:"join_url"`
	Message        string          `json:"message"`
}

// stateFrame builds a TargetRoom game_state frame from room, the common
// case for every Command Handler.
func stateFrame(r *game.Room, message string) Frame {
	return Frame{
		Target: TargetRoom,
		Type:   FrameGameState,
		GameState: &GameStateFrame{
			State:             r.Board,
			Turn:              r.CurrentTurn,
			Players:           append([]game.PlayerID{}, r.Players...),
			Status:            r.Status,
			Winner:            r.Winner,
			BoardSize:         r.BoardSize,
			EliminatedPlayers: EliminatedList(r),
			Message:           message,
			ExplodedCells:     [][2]int{},
		},
	}
}

// EliminatedList returns r.EliminatedPlayers as a slice, for frame builders
// outside this package (e.g. the Session's connect-time snapshot) that need
// the same full set stateFrame uses rather than a move-local delta.
func EliminatedList(r *game.Room) []game.PlayerID {
	out := make([]game.PlayerID, 0, len(r.EliminatedPlayers))
	for p := range r.EliminatedPlayers {
		out = append(out, p)
	}
	return out
}

func errorFrame(message string) Frame {
	return Frame{
		Target: TargetOriginator,
		Type:   FrameError,
		Error:  &ErrorFrame{Message: message},
	}
}
