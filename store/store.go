// Package store defines the Room Store: the persistence adapter that loads
// and saves a Room under a row-level lock and updates player stats
// atomically. The core treats the underlying database as an opaque
// transactional KV/row store providing row-level locking (spec.md §1); this
// package is the boundary between that store and the pure game/room logic.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/lab1702/dicewars/game"
)

// ErrRoomNotFound is returned by GetRoom/LoadForRead/WithRoomLock when no
// room exists with the given id.
var ErrRoomNotFound = errors.New("room_not_found")

// StorageError wraps a transient transaction failure. pgstore's
// WithRoomLock retries a failed transaction once (spec.md §4.B); a
// StorageError surfacing from the second attempt is propagated to the
// Session as a user-visible "internal" error frame, never broadcast.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// Kind lets the Session layer branch on error category without a type
// switch at every call site.
func (e *StorageError) Kind() string { return "storage" }

// Store is the persistence adapter every Command Handler goes through.
type Store interface {
	// WithRoomLock acquires a row-level lock on the room, runs fn against
	// the live room inside one transaction, persists fn's mutations on
	// success, and rolls back on error. Nested calls within one handler
	// invocation must reuse the same transaction — callers never call
	// WithRoomLock recursively for the same handler; the Move Orchestrator
	// instead opens a fresh call per short transaction (spec.md §4.D).
	WithRoomLock(ctx context.Context, id game.RoomID, fn func(*game.Room) error) (*game.Room, error)

	// GetRoom is an unlocked read of the current persisted room.
	GetRoom(ctx context.Context, id game.RoomID) (*game.Room, error)

	// LoadForRead is an alias of GetRoom used by the Move Orchestrator's
	// per-wave board read to make the unlocked-read intent explicit at the
	// call site. Connecting sessions build their snapshot from GetRoom.
	LoadForRead(ctx context.Context, id game.RoomID) (*game.Room, error)

	// CreateRoom persists a brand-new room (called by the out-of-scope
	// lobby, and by RequestRematch).
	CreateRoom(ctx context.Context, room *game.Room) error

	// UpdateStatsOnFinish applies the stat deltas in spec.md §4.B for every
	// player in room.Players ∪ room.EliminatedPlayers. Must be called from
	// inside the same transaction that sets room.Status = StatusFinished;
	// implementations apply the deltas only when room.Status is
	// StatusFinished and return nil without changes otherwise. They do not
	// see the room's previous status.
	UpdateStatsOnFinish(ctx context.Context, room *game.Room, winner *game.PlayerID) error

	// DeleteStaleWaiting deletes every room with Status == StatusWaiting
	// and CreatedAt before olderThan, returning the number removed. Used
	// by the Janitor.
	DeleteStaleWaiting(ctx context.Context, olderThan time.Time) (int, error)

	// FindWaitingRematch looks up an existing StatusWaiting room created as
	// a rematch of parentID, hosted by host, for the given game slug.
	// Returns ErrRoomNotFound if none exists. Used by RequestRematch to
	// make repeated rematch requests from the same user idempotent
	// (spec.md §4.C): the second call returns the room the first call
	// already created instead of spawning a duplicate.
	FindWaitingRematch(ctx context.Context, parentID game.RoomID, host game.PlayerID, gameSlug string) (*game.Room, error)
}
