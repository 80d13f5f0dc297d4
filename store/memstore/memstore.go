// Package memstore is an in-memory Store used by the room/hub/server test
// suites, so orchestrator and handler tests don't need a live Postgres
// instance. It enforces the same row-level-lock semantics as pgstore (one
// mutex per room, held only for the duration of the callback) so tests
// exercise the real serialization contract, not a relaxed stand-in for it.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/lab1702/dicewars/game"
	"github.com/lab1702/dicewars/store"
)

type roomEntry struct {
	mu   sync.Mutex
	room *game.Room
}

// Store is a mutex-guarded map[RoomID]*game.Room, one lock per room.
type Store struct {
	mu    sync.Mutex
	rooms map[game.RoomID]*roomEntry

	statsMu sync.Mutex
	stats   map[game.PlayerID]*game.PlayerStats
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		rooms: make(map[game.RoomID]*roomEntry),
		stats: make(map[game.PlayerID]*game.PlayerStats),
	}
}

func (s *Store) entry(id game.RoomID) (*roomEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rooms[id]
	return e, ok
}

// CreateRoom inserts room, keyed by room.ID. Overwrites silently if the id
// is reused, matching the lobby's guarantee that ids are unique.
func (s *Store) CreateRoom(_ context.Context, room *game.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = &roomEntry{room: cloneRoom(room)}
	return nil
}

// GetRoom returns an unlocked copy of the persisted room.
func (s *Store) GetRoom(_ context.Context, id game.RoomID) (*game.Room, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, store.ErrRoomNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneRoom(e.room), nil
}

// LoadForRead is an alias of GetRoom.
func (s *Store) LoadForRead(ctx context.Context, id game.RoomID) (*game.Room, error) {
	return s.GetRoom(ctx, id)
}

// WithRoomLock locks the room's entry, runs fn against a working copy, and
// commits the copy back only if fn returns nil.
func (s *Store) WithRoomLock(_ context.Context, id game.RoomID, fn func(*game.Room) error) (*game.Room, error) {
	e, ok := s.entry(id)
	if !ok {
		return nil, store.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	working := cloneRoom(e.room)
	if err := fn(working); err != nil {
		return nil, err
	}
	e.room = working
	return cloneRoom(working), nil
}

// UpdateStatsOnFinish applies spec.md §4.B's stat deltas. Must be called
// from inside the same WithRoomLock invocation that sets Status=Finished;
// that invocation's entry lock is already held by the caller's goroutine,
// so this only needs to protect the separate stats map.
func (s *Store) UpdateStatsOnFinish(_ context.Context, room *game.Room, winner *game.PlayerID) error {
	if room.Status != game.StatusFinished {
		return nil
	}

	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	slug := room.GameType.Slug
	participants := append([]game.PlayerID{}, room.Players...)
	for p := range room.EliminatedPlayers {
		if !contains(participants, p) {
			participants = append(participants, p)
		}
	}

	for _, p := range participants {
		st, ok := s.stats[p]
		if !ok {
			st = &game.PlayerStats{ID: p, PerGameStats: make(map[string]game.PerGameStat)}
			s.stats[p] = st
		}
		if st.PerGameStats == nil {
			st.PerGameStats = make(map[string]game.PerGameStat)
		}
		per := st.PerGameStats[slug]

		st.TotalGames++
		per.Games++

		isWinner := winner != nil && *winner == p
		if isWinner {
			st.TotalWins++
			per.Wins++
			delta := 10 * len(room.Players)
			st.RankPoint += delta
			per.RankPoint += delta
		} else {
			st.TotalLosses++
			per.Losses++
			st.RankPoint += 5
			per.RankPoint += 5
		}

		st.PerGameStats[slug] = per
	}
	return nil
}

// Stats returns a copy of the accumulated stats for player, for test
// assertions (P5).
func (s *Store) Stats(player game.PlayerID) game.PlayerStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	st, ok := s.stats[player]
	if !ok {
		return game.PlayerStats{ID: player}
	}
	return *st
}

// DeleteStaleWaiting removes every room in StatusWaiting created before
// olderThan.
func (s *Store) DeleteStaleWaiting(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.rooms {
		e.mu.Lock()
		stale := e.room.Status == game.StatusWaiting && e.room.CreatedAt.Before(olderThan)
		e.mu.Unlock()
		if stale {
			delete(s.rooms, id)
			removed++
		}
	}
	return removed, nil
}

// FindWaitingRematch returns the StatusWaiting room (if any) created as a
// rematch of parentID, hosted by host, for gameSlug.
func (s *Store) FindWaitingRematch(_ context.Context, parentID game.RoomID, host game.PlayerID, gameSlug string) (*game.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.rooms {
		e.mu.Lock()
		r := e.room
		match := r.Status == game.StatusWaiting &&
			r.RematchParent != nil && *r.RematchParent == parentID &&
			r.Host == host &&
			r.GameType.Slug == gameSlug
		e.mu.Unlock()
		if match {
			return cloneRoom(r), nil
		}
	}
	return nil, store.ErrRoomNotFound
}

func contains(list []game.PlayerID, p game.PlayerID) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}
	return false
}

func cloneRoom(r *game.Room) *game.Room {
	out := *r
	out.Players = append([]game.PlayerID{}, r.Players...)
	out.InvitedPlayers = append([]game.PlayerID{}, r.InvitedPlayers...)
	out.Board = r.Board.Clone()
	out.EliminatedPlayers = make(map[game.PlayerID]bool, len(r.EliminatedPlayers))
	for p, v := range r.EliminatedPlayers {
		out.EliminatedPlayers[p] = v
	}
	if r.CurrentTurn != nil {
		ct := *r.CurrentTurn
		out.CurrentTurn = &ct
	}
	if r.Winner != nil {
		w := *r.Winner
		out.Winner = &w
	}
	if r.RematchParent != nil {
		rp := *r.RematchParent
		out.RematchParent = &rp
	}
	if r.FinishedAt != nil {
		fa := *r.FinishedAt
		out.FinishedAt = &fa
	}
	return &out
}
