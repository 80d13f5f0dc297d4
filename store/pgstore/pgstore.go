// Package pgstore is the production Room Store, backed by Postgres via
// pgx. Row-level locking is SELECT ... FOR UPDATE inside a transaction —
// the direct Go translation of the original Django implementation's
// GameSession.objects.select_for_update() under transaction.atomic()
// (original_source/python_version/main/consumers.go, handle_make_move and
// add_player_and_start_game).
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lab1702/dicewars/game"
	"github.com/lab1702/dicewars/store"
)

// Schema is the DDL this store expects. Exported so cmd/dicewars-server can
// run it on startup against a fresh database; a real deployment would apply
// this through a migration tool instead.
const Schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id                 TEXT PRIMARY KEY,
	game_slug          TEXT NOT NULL,
	game_min_players   INT NOT NULL,
	game_max_players   INT NOT NULL,
	host               TEXT NOT NULL,
	players            JSONB NOT NULL,
	status             TEXT NOT NULL,
	board              JSONB NOT NULL,
	board_size         INT NOT NULL,
	current_turn       TEXT,
	winner             TEXT,
	eliminated_players JSONB NOT NULL,
	move_count         INT NOT NULL,
	is_private         BOOLEAN NOT NULL,
	invited_players    JSONB NOT NULL,
	rematch_parent     TEXT,
	created_at         TIMESTAMPTZ NOT NULL,
	finished_at        TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS rooms_status_created_at_idx ON rooms (status, created_at);

CREATE TABLE IF NOT EXISTS player_stats (
	id             TEXT PRIMARY KEY,
	rank_point     INT NOT NULL DEFAULT 0,
	total_games    INT NOT NULL DEFAULT 0,
	total_wins     INT NOT NULL DEFAULT 0,
	total_losses   INT NOT NULL DEFAULT 0,
	per_game_stats JSONB NOT NULL DEFAULT '{}'
);
`

// Store is a Postgres-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-connected pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ store.Store = (*Store)(nil)

func (s *Store) CreateRoom(ctx context.Context, room *game.Room) error {
	board, err := json.Marshal(room.Board)
	if err != nil {
		return fmt.Errorf("marshal board: %w", err)
	}
	players, _ := json.Marshal(room.Players)
	invited, _ := json.Marshal(room.InvitedPlayers)
	eliminated, _ := json.Marshal(eliminatedSlice(room.EliminatedPlayers))

	_, err = s.pool.Exec(ctx, `
		INSERT INTO rooms (
			id, game_slug, game_min_players, game_max_players, host, players,
			status, board, board_size, current_turn, winner, eliminated_players,
			move_count, is_private, invited_players, rematch_parent, created_at, finished_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		string(room.ID), room.GameType.Slug, room.GameType.MinPlayers, room.GameType.MaxPlayers,
		string(room.Host), players, string(room.Status), board, room.BoardSize,
		nullablePlayer(room.CurrentTurn), nullablePlayer(room.Winner), eliminated,
		room.MoveCount, room.IsPrivate, invited, nullableRoomID(room.RematchParent),
		room.CreatedAt, room.FinishedAt,
	)
	if err != nil {
		return &store.StorageError{Op: "CreateRoom", Err: err}
	}
	return nil
}

func (s *Store) GetRoom(ctx context.Context, id game.RoomID) (*game.Room, error) {
	row := s.pool.QueryRow(ctx, selectRoomSQL, string(id))
	return scanRoom(row)
}

func (s *Store) LoadForRead(ctx context.Context, id game.RoomID) (*game.Room, error) {
	return s.GetRoom(ctx, id)
}

func (s *Store) WithRoomLock(ctx context.Context, id game.RoomID, fn func(*game.Room) error) (*game.Room, error) {
	room, err := s.withRoomLockOnce(ctx, id, fn)
	if err == nil {
		return room, nil
	}
	var storageErr *store.StorageError
	if errors.As(err, &storageErr) {
		// Retry exactly once on a transient storage failure (spec.md §4.B).
		return s.withRoomLockOnce(ctx, id, fn)
	}
	return nil, err
}

func (s *Store) withRoomLockOnce(ctx context.Context, id game.RoomID, fn func(*game.Room) error) (*game.Room, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &store.StorageError{Op: "Begin", Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

	row := tx.QueryRow(ctx, selectRoomSQL+" FOR UPDATE", string(id))
	room, err := scanRoom(row)
	if err != nil {
		return nil, err
	}

	if err := fn(room); err != nil {
		return nil, err
	}

	if err := updateRoom(ctx, tx, room); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &store.StorageError{Op: "Commit", Err: err}
	}
	return room, nil
}

func (s *Store) UpdateStatsOnFinish(ctx context.Context, room *game.Room, winner *game.PlayerID) error {
	if room.Status != game.StatusFinished {
		return nil
	}

	participants := append([]game.PlayerID{}, room.Players...)
	for p := range room.EliminatedPlayers {
		if !containsPlayer(participants, p) {
			participants = append(participants, p)
		}
	}

	for _, p := range participants {
		isWinner := winner != nil && *winner == p
		var rankDelta int
		var winDelta, lossDelta int
		if isWinner {
			rankDelta = 10 * len(room.Players)
			winDelta = 1
		} else {
			rankDelta = 5
			lossDelta = 1
		}

		_, err := s.pool.Exec(ctx, `
			INSERT INTO player_stats (id, rank_point, total_games, total_wins, total_losses, per_game_stats)
			VALUES ($1, $2, 1, $3, $4, jsonb_build_object($5::text, jsonb_build_object(
				'rank_point', $2::int, 'wins', $3::int, 'losses', $4::int, 'games', 1)))
			ON CONFLICT (id) DO UPDATE SET
				rank_point = player_stats.rank_point + EXCLUDED.rank_point,
				total_games = player_stats.total_games + 1,
				total_wins = player_stats.total_wins + $3,
				total_losses = player_stats.total_losses + $4,
				per_game_stats = jsonb_set(
					player_stats.per_game_stats,
					array[$5],
					jsonb_build_object(
						'rank_point', COALESCE((player_stats.per_game_stats->$5->>'rank_point')::int, 0) + $2,
						'wins', COALESCE((player_stats.per_game_stats->$5->>'wins')::int, 0) + $3,
						'losses', COALESCE((player_stats.per_game_stats->$5->>'losses')::int, 0) + $4,
						'games', COALESCE((player_stats.per_game_stats->$5->>'games')::int, 0) + 1
					),
					true
				)`,
			string(p), rankDelta, winDelta, lossDelta, room.GameType.Slug,
		)
		if err != nil {
			return &store.StorageError{Op: "UpdateStatsOnFinish", Err: err}
		}
	}
	return nil
}

func (s *Store) DeleteStaleWaiting(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM rooms WHERE status = $1 AND created_at < $2`,
		string(game.StatusWaiting), olderThan,
	)
	if err != nil {
		return 0, &store.StorageError{Op: "DeleteStaleWaiting", Err: err}
	}
	return int(tag.RowsAffected()), nil
}

// FindWaitingRematch returns the StatusWaiting room (if any) created as a
// rematch of parentID, hosted by host, for gameSlug — used by
// RequestRematch to make repeated requests from the same user idempotent
// (spec.md §4.C) instead of spawning a duplicate waiting room each time.
func (s *Store) FindWaitingRematch(ctx context.Context, parentID game.RoomID, host game.PlayerID, gameSlug string) (*game.Room, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, game_slug, game_min_players, game_max_players, host, players, status,
		       board, board_size, current_turn, winner, eliminated_players, move_count,
		       is_private, invited_players, rematch_parent, created_at, finished_at
		FROM rooms
		WHERE status = $1 AND rematch_parent = $2 AND host = $3 AND game_slug = $4
		LIMIT 1`,
		string(game.StatusWaiting), string(parentID), string(host), gameSlug)
	return scanRoom(row)
}

const selectRoomSQL = `
SELECT id, game_slug, game_min_players, game_max_players, host, players, status,
       board, board_size, current_turn, winner, eliminated_players, move_count,
       is_private, invited_players, rematch_parent, created_at, finished_at
FROM rooms WHERE id = $1`

func scanRoom(row pgx.Row) (*game.Room, error) {
	var (
		id, gameSlug, host, status                  string
		minPlayers, maxPlayers, boardSize, moveCount int
		players, invited, eliminated, board          []byte
		currentTurn, winner, rematchParent           *string
		isPrivate                                    bool
		createdAt                                    time.Time
		finishedAt                                   *time.Time
	)

	if err := row.Scan(
		&id, &gameSlug, &minPlayers, &maxPlayers, &host, &players, &status,
		&board, &boardSize, &currentTurn, &winner, &eliminated, &moveCount,
		&isPrivate, &invited, &rematchParent, &createdAt, &finishedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrRoomNotFound
		}
		return nil, &store.StorageError{Op: "scanRoom", Err: err}
	}

	room := &game.Room{
		ID:        game.RoomID(id),
		GameType:  game.GameKind{Slug: gameSlug, MinPlayers: minPlayers, MaxPlayers: maxPlayers},
		Host:      game.PlayerID(host),
		Status:    game.RoomStatus(status),
		BoardSize:  boardSize,
		MoveCount:  moveCount,
		IsPrivate:  isPrivate,
		CreatedAt:  createdAt,
		FinishedAt: finishedAt,
	}

	if err := json.Unmarshal(players, &room.Players); err != nil {
		return nil, &store.StorageError{Op: "unmarshal players", Err: err}
	}
	if err := json.Unmarshal(invited, &room.InvitedPlayers); err != nil {
		return nil, &store.StorageError{Op: "unmarshal invited_players", Err: err}
	}
	var eliminatedList []game.PlayerID
	if err := json.Unmarshal(eliminated, &eliminatedList); err != nil {
		return nil, &store.StorageError{Op: "unmarshal eliminated_players", Err: err}
	}
	room.EliminatedPlayers = make(map[game.PlayerID]bool, len(eliminatedList))
	for _, p := range eliminatedList {
		room.EliminatedPlayers[p] = true
	}
	if err := json.Unmarshal(board, &room.Board); err != nil {
		return nil, &store.StorageError{Op: "unmarshal board", Err: err}
	}
	if room.Board == nil {
		room.Board = game.Board{}
	}

	if currentTurn != nil {
		p := game.PlayerID(*currentTurn)
		room.CurrentTurn = &p
	}
	if winner != nil {
		p := game.PlayerID(*winner)
		room.Winner = &p
	}
	if rematchParent != nil {
		id := game.RoomID(*rematchParent)
		room.RematchParent = &id
	}

	return room, nil
}

func updateRoom(ctx context.Context, tx pgx.Tx, room *game.Room) error {
	board, err := json.Marshal(room.Board)
	if err != nil {
		return &store.StorageError{Op: "marshal board", Err: err}
	}
	players, _ := json.Marshal(room.Players)
	invited, _ := json.Marshal(room.InvitedPlayers)
	eliminated, _ := json.Marshal(eliminatedSlice(room.EliminatedPlayers))

	_, err = tx.Exec(ctx, `
		UPDATE rooms SET
			players = $2, status = $3, board = $4, board_size = $5,
			current_turn = $6, winner = $7, eliminated_players = $8, move_count = $9,
			is_private = $10, invited_players = $11, rematch_parent = $12, finished_at = $13
		WHERE id = $1`,
		string(room.ID), players, string(room.Status), board, room.BoardSize,
		nullablePlayer(room.CurrentTurn), nullablePlayer(room.Winner), eliminated,
		room.MoveCount, room.IsPrivate, invited, nullableRoomID(room.RematchParent), room.FinishedAt,
	)
	if err != nil {
		return &store.StorageError{Op: "updateRoom", Err: err}
	}
	return nil
}

func nullablePlayer(p *game.PlayerID) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func nullableRoomID(id *game.RoomID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func eliminatedSlice(m map[game.PlayerID]bool) []game.PlayerID {
	out := make([]game.PlayerID, 0, len(m))
	for p := range m {
		out = append(out, p)
	}
	return out
}

func containsPlayer(list []game.PlayerID, p game.PlayerID) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}
	return false
}
