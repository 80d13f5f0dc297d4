// Package room implements the Command Handlers and Move Orchestrator
// (spec.md §4.C, §4.D): the server-authoritative operations that mutate a
// Room under the Room Store's row lock and return the frames the Hub
// should fan out.
package room

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/lab1702/dicewars/game"
	"github.com/lab1702/dicewars/store"
)

// Handlers wires the Room Store and the id generator the Command Handlers
// need (RequestRematch mints a new room id).
type Handlers struct {
	Store   store.Store
	NewRoom func() game.RoomID
}

// JoinRoom implements spec.md §4.C JoinRoom.
func (h *Handlers) JoinRoom(ctx context.Context, id game.RoomID, user game.PlayerID) ([]Frame, error) {
	var frames []Frame

	_, err := h.Store.WithRoomLock(ctx, id, func(r *game.Room) error {
		if r.Status != game.StatusWaiting {
			return validationErr(ErrAlreadyStarted)
		}
		if r.HasPlayer(user) {
			return validationErr(ErrAlreadyJoined)
		}
		if len(r.Players) >= r.GameType.MaxPlayers {
			return validationErr(ErrRoomFull)
		}
		if r.IsPrivate && user != r.Host && !containsPlayer(r.InvitedPlayers, user) {
			return validationErr(ErrNotInvited)
		}

		r.Players = append(r.Players, user)
		r.InvitedPlayers = removePlayer(r.InvitedPlayers, user)

		frames = append(frames, stateFrame(r, fmt.Sprintf("%s joined", user)))
		return nil
	})
	if err != nil {
		return rejectOrFail(err)
	}
	return frames, nil
}

// StartGame implements spec.md §4.C StartGame.
func (h *Handlers) StartGame(ctx context.Context, id game.RoomID, user game.PlayerID, rng *rand.Rand) ([]Frame, error) {
	var frames []Frame

	_, err := h.Store.WithRoomLock(ctx, id, func(r *game.Room) error {
		if user != r.Host {
			return validationErr(ErrNotHost)
		}
		if r.Status != game.StatusWaiting {
			return validationErr(ErrAlreadyStarted)
		}
		if len(r.Players) < r.GameType.MinPlayers {
			return validationErr(ErrTooFewPlayers)
		}

		r.Status = game.StatusInProgress
		starter := r.Players[rng.Intn(len(r.Players))]
		r.CurrentTurn = &starter
		r.BoardSize = game.BoardSizeForPlayers(len(r.Players))
		r.Board = game.Board{}
		r.MoveCount = 0

		frame := stateFrame(r, "")
		frame.GameState.SpecialEvent = "game_start_roll"
		frames = append(frames, frame)
		return nil
	})
	if err != nil {
		return rejectOrFail(err)
	}
	return frames, nil
}

// KickPlayer implements spec.md §4.C KickPlayer.
func (h *Handlers) KickPlayer(ctx context.Context, id game.RoomID, user, target game.PlayerID) ([]Frame, error) {
	var frames []Frame

	_, err := h.Store.WithRoomLock(ctx, id, func(r *game.Room) error {
		if user != r.Host {
			return validationErr(ErrNotHost)
		}
		if r.Status != game.StatusWaiting {
			return validationErr(ErrAlreadyStarted)
		}
		if target == user {
			return validationErr(ErrSelfKick)
		}
		if !r.HasPlayer(target) {
			return validationErr(ErrNotInRoom)
		}

		r.Players = removePlayer(r.Players, target)

		frames = append(frames, stateFrame(r, fmt.Sprintf("%s kicked", target)))
		return nil
	})
	if err != nil {
		return rejectOrFail(err)
	}
	return frames, nil
}

// RequestRematch implements spec.md §4.C RequestRematch. It is idempotent
// per parent room: if user already hosts a waiting rematch of this room for
// this gameType, that room is returned instead of minting a second one.
// Waiting rematch rooms user hosts for other parent rooms are not
// considered, so a request here still creates a new room. The lookup
// runs after the validating WithRoomLock call returns, never inside it —
// FindWaitingRematch scans every room in the store, and running that scan
// while still holding this room's lock would violate spec.md §5's "no
// suspension while holding the Room row lock" and, in memstore, deadlock
// against this room's own non-reentrant mutex.
func (h *Handlers) RequestRematch(ctx context.Context, id game.RoomID, user game.PlayerID) ([]Frame, error) {
	var gameType game.GameKind
	var boardSize int
	var invited []game.PlayerID

	_, err := h.Store.WithRoomLock(ctx, id, func(r *game.Room) error {
		if r.Status != game.StatusFinished {
			return validationErr(ErrGameNotInProgress)
		}
		if !r.HasPlayer(user) && !r.IsEliminated(user) {
			return validationErr(ErrNotInRoom)
		}

		gameType = r.GameType
		boardSize = r.BoardSize
		invited = make([]game.PlayerID, 0, len(r.Players))
		for _, p := range r.Players {
			if p != user {
				invited = append(invited, p)
			}
		}
		return nil
	})
	if err != nil {
		return rejectOrFail(err)
	}

	if existing, findErr := h.Store.FindWaitingRematch(ctx, id, user, gameType.Slug); findErr == nil {
		return []Frame{rematchInviteFrame(existing, user, invited)}, nil
	} else if findErr != store.ErrRoomNotFound {
		return nil, findErr
	}

	parentID := id
	newRoom := &game.Room{
		ID:             h.NewRoom(),
		GameType:       gameType,
		Host:           user,
		Players:        []game.PlayerID{user},
		Status:         game.StatusWaiting,
		Board:          game.Board{},
		BoardSize:      boardSize,
		IsPrivate:      true,
		InvitedPlayers: invited,
		RematchParent:  &parentID,
		CreatedAt:      time.Now(),
	}

	if err := h.Store.CreateRoom(ctx, newRoom); err != nil {
		return nil, err
	}

	return []Frame{rematchInviteFrame(newRoom, user, invited)}, nil
}

func rematchInviteFrame(r *game.Room, host game.PlayerID, invited []game.PlayerID) Frame {
	return Frame{
		Target: TargetRoom,
		Type:   FrameRematchInvite,
		Rematch: &RematchInviteFrame{
			NewGameID:      r.ID,
			Host:           host,
			InvitedPlayers: invited,
			GameRoomURL:    fmt.Sprintf("/game/%s", r.ID),
			JoinURL:        fmt.Sprintf("/ws/game/%s", r.ID),
			Message:        fmt.Sprintf("%s requested a rematch", host),
		},
	}
}

// rejectOrFail turns a ValidationError or store.ErrRoomNotFound into a
// single TargetOriginator error frame and a nil error, or propagates
// anything else (StorageError) to the caller so the Session can map it to
// the "internal" case.
func rejectOrFail(err error) ([]Frame, error) {
	if ve, ok := err.(*ValidationError); ok {
		return []Frame{errorFrame(ve.Code)}, nil
	}
	if err == store.ErrRoomNotFound {
		return []Frame{errorFrame(ErrRoomNotFound)}, nil
	}
	return nil, err
}

func containsPlayer(list []game.PlayerID, p game.PlayerID) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}
	return false
}

func removePlayer(list []game.PlayerID, p game.PlayerID) []game.PlayerID {
	out := make([]game.PlayerID, 0, len(list))
	for _, q := range list {
		if q != p {
			out = append(out, q)
		}
	}
	return out
}
