package room

import (
	"context"
	"fmt"
	"time"

	"github.com/lab1702/dicewars/game"
	"github.com/lab1702/dicewars/store"
)

// AnimationTiming controls the Move Orchestrator's pacing sleeps. Both
// durations exist solely for client animation (spec.md §9) and must be
// configurable rather than constants so a headless test harness can zero
// them out.
type AnimationTiming struct {
	WaveBroadcastDelay time.Duration // paced after the "pending" frame
	WaveApplyDelay     time.Duration // paced after the "post" frame
}

// DefaultAnimationTiming matches spec.md §4.D's suggested pacing.
func DefaultAnimationTiming() AnimationTiming {
	return AnimationTiming{
		WaveBroadcastDelay: 250 * time.Millisecond,
		WaveApplyDelay:     100 * time.Millisecond,
	}
}

// Sleeper abstracts time.Sleep so tests can swap in a no-op or an
// instrumented fake without actually zeroing AnimationTiming (useful when a
// test wants to assert sleeps were requested but not pay for them).
type Sleeper func(time.Duration)

// MakeMove runs the full Move Orchestrator protocol for one player's click
// at (r, c): initial click, wave loop, resolution, final broadcast
// (spec.md §4.D). Frames are delivered to emit as soon as each step
// produces them, in issue order, which is what lets the Hub preserve
// per-handler frame ordering even though this handler is not one atomic
// transaction.
//
// A ValidationError or room_not_found from the initial click is delivered
// as an error frame via emit, and hitting the wave safety cap is delivered
// as a finished game_state frame; in both cases MakeMove returns nil. Any
// other failure (a StorageError after the one retry WithRoomLock already
// performs, or room_not_found during the wave loop or resolution) is
// returned for the Session to treat as fatal to the request.
func (h *Handlers) MakeMove(
	ctx context.Context,
	id game.RoomID,
	user game.PlayerID,
	r, c int,
	timing AnimationTiming,
	sleep Sleeper,
	emit func(Frame),
) error {
	if sleep == nil {
		sleep = time.Sleep
	}

	n, firstFrame, moverSnapshot, err := h.initialClick(ctx, id, user, r, c)
	if err != nil {
		if frame, handled := asRejection(err); handled {
			emit(frame)
			return nil
		}
		return err
	}
	emit(firstFrame)

	waveCap := game.SafetyWaveCap(n)
	waves := 0

	for {
		criticals, current, err := h.readCriticals(ctx, id)
		if err != nil {
			return err
		}
		if len(criticals) == 0 {
			break
		}

		waves++
		if waves > waveCap {
			frame, err := h.forceSafetyFinish(ctx, id)
			if err != nil {
				return err
			}
			emit(frame)
			return nil
		}

		pending := stateFrame(current, "")
		pending.GameState.ExplodedCells = criticals
		emit(pending)
		sleep(timing.WaveBroadcastDelay)

		postFrame, err := h.applyWave(ctx, id, user, criticals, n)
		if err != nil {
			return err
		}
		emit(postFrame)
		sleep(timing.WaveApplyDelay)
	}

	finalFrame, err := h.resolveMove(ctx, id, moverSnapshot)
	if err != nil {
		return err
	}
	emit(finalFrame)
	return nil
}

// initialClick runs spec.md §4.D step 1 inside one transaction.
func (h *Handlers) initialClick(ctx context.Context, id game.RoomID, user game.PlayerID, r, c int) (n int, frame Frame, mover game.PlayerID, err error) {
	updated, txErr := h.Store.WithRoomLock(ctx, id, func(room *game.Room) error {
		if room.Status != game.StatusInProgress {
			return validationErr(ErrGameNotInProgress)
		}
		if room.CurrentTurn == nil || *room.CurrentTurn != user {
			return validationErr(ErrNotYourTurn)
		}

		firstRound := room.MoveCount < len(room.Players)
		cell, exists := room.Board.Get(r, c)

		switch {
		case !exists && firstRound:
			room.Board.Set(r, c, game.Cell{Owner: user, Count: 3})
		case !exists:
			return validationErr(ErrEmptyNotAllowedAfterFirstRnd)
		case cell.Owner != user:
			return validationErr(ErrNotYourCell)
		default:
			cell.Count++
			room.Board.Set(r, c, cell)
		}

		room.MoveCount++
		return nil
	})
	if txErr != nil {
		return 0, Frame{}, "", txErr
	}

	coords := [2]int{r, c}
	f := stateFrame(updated, fmt.Sprintf("%s moved", user))
	f.GameState.MoveCell = &coords
	return updated.BoardSize, f, user, nil
}

// readCriticals is a short read of the board to find this wave's critical
// cells; spec.md §4.D allows either a short read transaction or reusing the
// lock, since nothing else may concurrently mutate the board between the
// Session's moves (the room lock serializes all commands to this room).
func (h *Handlers) readCriticals(ctx context.Context, id game.RoomID) ([][2]int, *game.Room, error) {
	r, err := h.Store.LoadForRead(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return game.CriticalCells(r.Board), r, nil
}

// applyWave commits one wave's worth of explosions in a single transaction
// (spec.md §4.D step 2's "apply" sub-step).
func (h *Handlers) applyWave(ctx context.Context, id game.RoomID, attacker game.PlayerID, criticals [][2]int, n int) (Frame, error) {
	updated, err := h.Store.WithRoomLock(ctx, id, func(room *game.Room) error {
		for _, cell := range criticals {
			game.Explode(room.Board, cell[0], cell[1], attacker, n)
		}
		return nil
	})
	if err != nil {
		return Frame{}, err
	}

	f := stateFrame(updated, "")
	return f, nil
}

// forceSafetyFinish implements the SafetyError branch of spec.md §4.D: the
// safety cap was hit, so the room is forced to finished with no winner.
func (h *Handlers) forceSafetyFinish(ctx context.Context, id game.RoomID) (Frame, error) {
	updated, err := h.Store.WithRoomLock(ctx, id, func(room *game.Room) error {
		now := time.Now()
		room.Status = game.StatusFinished
		room.Winner = nil
		room.CurrentTurn = nil
		room.FinishedAt = &now
		return h.Store.UpdateStatsOnFinish(ctx, room, nil)
	})
	if err != nil {
		return Frame{}, err
	}
	return stateFrame(updated, ErrExplosionLimitExceeded), nil
}

// resolveMove implements spec.md §4.D step 3-4: elimination detection,
// winner check, turn rotation or stats finalization, and the final
// broadcast.
func (h *Handlers) resolveMove(ctx context.Context, id game.RoomID, mover game.PlayerID) (Frame, error) {
	updated, err := h.Store.WithRoomLock(ctx, id, func(room *game.Room) error {
		detected := game.DetectEliminated(room.Board, room.Players, room.MoveCount)
		if room.EliminatedPlayers == nil {
			room.EliminatedPlayers = make(map[game.PlayerID]bool)
		}
		for p := range detected {
			room.EliminatedPlayers[p] = true
		}

		finished, winner := game.Winner(room.Board, room.Players, room.MoveCount, mover)
		if finished {
			now := time.Now()
			room.Status = game.StatusFinished
			room.Winner = winner
			room.FinishedAt = &now
			room.CurrentTurn = nil
			return h.Store.UpdateStatsOnFinish(ctx, room, winner)
		}

		room.CurrentTurn = nextTurn(room, mover)
		return nil
	})
	if err != nil {
		return Frame{}, err
	}

	var message string
	if updated.Status == game.StatusFinished {
		message = "Game over"
	} else {
		message = fmt.Sprintf("Turn: %s", *updated.CurrentTurn)
	}

	return stateFrame(updated, message), nil
}

// nextTurn advances to the next player after mover, cycling past anyone in
// EliminatedPlayers (spec.md: players stays immutable; turn rotation
// filters by EliminatedPlayers rather than removing from Players).
func nextTurn(room *game.Room, mover game.PlayerID) *game.PlayerID {
	n := len(room.Players)
	start := 0
	for i, p := range room.Players {
		if p == mover {
			start = i
			break
		}
	}

	for offset := 1; offset <= n; offset++ {
		candidate := room.Players[(start+offset)%n]
		if !room.EliminatedPlayers[candidate] {
			return &candidate
		}
	}
	// Every player eliminated but the game hasn't been marked finished —
	// shouldn't happen given Winner's single-owner check, but fall back to
	// the mover rather than leaving CurrentTurn nil mid-game.
	return &mover
}

func asRejection(err error) (Frame, bool) {
	if ve, ok := err.(*ValidationError); ok {
		return errorFrame(ve.Code), true
	}
	if err == store.ErrRoomNotFound {
		return errorFrame(ErrRoomNotFound), true
	}
	return Frame{}, false
}
