// Package hub implements the Fan-out component (spec.md §4.E): per-room
// membership and best-effort broadcast, grounded on the teacher's
// Server.register/unregister/broadcast channel trio in
// server/websocket.go.
package hub

import (
	"log"
	"sync"

	"github.com/lab1702/dicewars/game"
)

// SessionID identifies one joined member within a room's group. The
// Session layer mints these (spec.md §4.F uses a uuid per connection).
type SessionID string

// member pairs a session's outbound channel with enough to log a useful
// eviction message; mirrors the teacher's *Client held in Server.clients.
type member struct {
	id   SessionID
	send chan<- []byte
}

// Hub fans JSON-encoded frames out to every session joined to a room. It
// knows nothing about frame semantics (TargetRoom vs TargetOriginator) —
// that routing decision is the Session's; Hub only ever does room-wide
// delivery, the same job Server.broadcast does for the teacher's single
// global room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[game.RoomID]map[SessionID]*member
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{rooms: make(map[game.RoomID]map[SessionID]*member)}
}

// Join adds a session to a room's group. send is the session's outbound
// write-pump channel; Hub never closes it. The Session calls Leave on
// disconnect.
func (h *Hub) Join(room game.RoomID, session SessionID, send chan<- []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.rooms[room]
	if !ok {
		group = make(map[SessionID]*member)
		h.rooms[room] = group
	}
	group[session] = &member{id: session, send: send}
}

// Leave removes a session from a room's group. A no-op if the session
// isn't a member (e.g. it disconnected before ever joining a room).
func (h *Hub) Leave(room game.RoomID, session SessionID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(group, session)
	if len(group) == 0 {
		delete(h.rooms, room)
	}
}

// Broadcast delivers message to every session currently joined to room.
// Delivery is best-effort: a member whose send channel is full is
// considered dead and evicted on the spot rather than blocking the
// caller, the same non-blocking `select { case ch <- msg: default: }`
// idiom as the teacher's Server.Run broadcast arm. Broadcast is meant to
// be called synchronously from the single goroutine driving a room's
// command/orchestrator code, so two calls from the same handler are
// never reordered relative to each other (spec.md §4.E).
func (h *Hub) Broadcast(room game.RoomID, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.rooms[room]
	if !ok {
		return
	}

	for id, m := range group {
		select {
		case m.send <- message:
		default:
			log.Printf("hub: session %s send buffer full, evicting from room %s", id, room)
			delete(group, id)
		}
	}
	if len(group) == 0 {
		delete(h.rooms, room)
	}
}

// Members returns the number of sessions currently joined to room, for
// tests.
func (h *Hub) Members(room game.RoomID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
