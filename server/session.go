// Package server implements the Session component (spec.md §4.F): one
// goroutine pair per WebSocket connection, decoding inbound commands and
// dispatching them to the room package's Command Handlers and Move
// Orchestrator, and encoding outbound frames back to the socket. Grounded
// line-for-line on server/websocket.go's Client/readPump/writePump/
// handleMessage in the teacher repo, narrowed from Netrek's ad hoc
// command set to spec.md §6's three inbound and three outbound message
// types.
package server

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lab1702/dicewars/game"
	"github.com/lab1702/dicewars/hub"
	"github.com/lab1702/dicewars/room"
)

// Inbound message types (spec.md §6).
const (
	MsgTypeMakeMove   = "make_move"
	MsgTypeStartGame  = "start_game"
	MsgTypeKickPlayer = "kick_player"
)

// ClientMessage is a decoded inbound frame: a typed envelope over raw
// per-command data, same shape as the teacher's ClientMessage.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MakeMoveData is the make_move payload (spec.md §6).
type MakeMoveData struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// KickPlayerData is the kick_player payload (spec.md §6).
type KickPlayerData struct {
	UsernameToKick game.PlayerID `json:"username_to_kick"`
}

// Authenticator resolves the authenticated player identity for an
// upgrading connection. Session-cookie/token verification itself is out
// of scope for this module (spec.md §1); callers supply whatever
// identity source fits their deployment.
type Authenticator interface {
	Authenticate(r *http.Request) (game.PlayerID, error)
}

// isValidOrigin rejects cross-origin upgrade requests except from
// localhost during development, ported unchanged from the teacher's
// isValidOrigin in server/websocket.go.
func isValidOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		log.Printf("Invalid origin URL: %s", origin)
		return false
	}

	if r.Host == originURL.Host {
		return true
	}

	if strings.HasPrefix(originURL.Host, "localhost:") ||
		strings.HasPrefix(originURL.Host, "127.0.0.1:") ||
		originURL.Host == "localhost" ||
		originURL.Host == "127.0.0.1" {
		return true
	}

	log.Printf("Rejected WebSocket connection from origin: %s", origin)
	return false
}

var upgrader = websocket.Upgrader{
	CheckOrigin:       isValidOrigin,
	EnableCompression: true,
}

// Server upgrades incoming connections to WebSocket sessions and wires
// each one to the Hub and the room Handlers. Unlike the teacher's Server,
// it holds no simulation state of its own — all authoritative state
// lives in the Store behind Handlers.
type Server struct {
	Hub      *hub.Hub
	Handlers *room.Handlers
	Auth     Authenticator
	Timing   room.AnimationTiming
}

// roomIDFromPath extracts the room id from a /ws/game/{roomID} request
// path (spec.md §6).
func roomIDFromPath(r *http.Request) game.RoomID {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return game.RoomID(parts[len(parts)-1])
}

// HandleWebSocket implements spec.md §4.F's connect sequence: authenticate,
// look up the room, upgrade, register with the Hub, send the current
// snapshot, and auto-join if eligible.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := s.Auth.Authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	roomID := roomIDFromPath(r)
	current, err := s.Handlers.Store.GetRoom(r.Context(), roomID)
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	sess := &Session{
		id:       hub.SessionID(uuid.NewString()),
		room:     roomID,
		user:     user,
		conn:     conn,
		send:     make(chan []byte, 256),
		hub:      s.Hub,
		handlers: s.Handlers,
		timing:   s.Timing,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	s.Hub.Join(roomID, sess.id, sess.send)
	sess.sendSnapshot(current)

	if current.Status == game.StatusWaiting && len(current.Players) < current.GameType.MaxPlayers && !current.HasPlayer(user) {
		frames, err := s.Handlers.JoinRoom(r.Context(), roomID, user)
		if err != nil {
			log.Printf("auto-join failed for %s in room %s: %v", user, roomID, err)
		} else {
			sess.deliver(frames)
		}
	}

	go sess.writePump()
	go sess.readPump()
}

// Session is one WebSocket connection, registered with the Hub under a
// single room for its whole lifetime (spec.md §4.F: a Session joins
// exactly the room named in its connect URL).
type Session struct {
	id       hub.SessionID
	room     game.RoomID
	user     game.PlayerID
	conn     *websocket.Conn
	send     chan []byte
	hub      *hub.Hub
	handlers *room.Handlers
	timing   room.AnimationTiming
	rng      *rand.Rand
}

// readPump decodes inbound frames and dispatches them, mirroring the
// teacher's Client.readPump keepalive/deadline handling.
func (sess *Session) readPump() {
	defer func() {
		sess.hub.Leave(sess.room, sess.id)
		sess.conn.Close()
	}()

	sess.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	sess.conn.SetPongHandler(func(string) error {
		sess.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("protocol: malformed message from %s: %v", sess.user, err)
			continue
		}
		sess.handleMessage(msg)
	}
}

// writePump flushes queued frames to the socket and sends keepalive
// pings, mirroring the teacher's Client.writePump.
func (sess *Session) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		sess.conn.Close()
	}()

	for {
		select {
		case message, ok := <-sess.send:
			sess.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				sess.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sess.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			sess.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage type-switches an inbound command to the matching
// Handlers call (spec.md §6), recovering from any handler panic so one
// malformed command can't take the whole connection down.
func (sess *Session) handleMessage(msg ClientMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC in handleMessage for session %s, type %s: %v", sess.id, msg.Type, r)
		}
	}()

	ctx := context.Background()

	switch msg.Type {
	case MsgTypeMakeMove:
		var data MakeMoveData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			log.Printf("protocol: malformed make_move from %s: %v", sess.user, err)
			return
		}
		if err := sess.handlers.MakeMove(ctx, sess.room, sess.user, data.Row, data.Col, sess.timing, time.Sleep, sess.emit); err != nil {
			sess.deliverErr(err)
		}

	case MsgTypeStartGame:
		frames, err := sess.handlers.StartGame(ctx, sess.room, sess.user, sess.rng)
		if err != nil {
			sess.deliverErr(err)
			return
		}
		sess.deliver(frames)

	case MsgTypeKickPlayer:
		var data KickPlayerData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			log.Printf("protocol: malformed kick_player from %s: %v", sess.user, err)
			return
		}
		frames, err := sess.handlers.KickPlayer(ctx, sess.room, sess.user, data.UsernameToKick)
		if err != nil {
			sess.deliverErr(err)
			return
		}
		sess.deliver(frames)

	default:
		log.Printf("protocol: unknown message type %q from %s", msg.Type, sess.user)
	}
}

// emit is the Move Orchestrator's frame sink: it routes each frame to
// either the Hub (room-wide) or this session alone, in the order the
// orchestrator produces them (spec.md §4.E ordering guarantee).
func (sess *Session) emit(f room.Frame) {
	sess.deliver([]room.Frame{f})
}

func (sess *Session) deliver(frames []room.Frame) {
	for _, f := range frames {
		payload, err := json.Marshal(wireFrame(f))
		if err != nil {
			log.Printf("failed to marshal frame for room %s: %v", sess.room, err)
			continue
		}
		switch f.Target {
		case room.TargetRoom:
			sess.hub.Broadcast(sess.room, payload)
		case room.TargetOriginator:
			select {
			case sess.send <- payload:
			default:
				log.Printf("session %s send buffer full, dropping frame", sess.id)
			}
		}
	}
}

// deliverErr converts a Handlers-layer error that wasn't already turned
// into an error Frame (StorageError, room-not-found) into one final
// internal error frame for this session only.
func (sess *Session) deliverErr(err error) {
	log.Printf("internal error handling command from %s in room %s: %v", sess.user, sess.room, err)
	payload, marshalErr := json.Marshal(map[string]any{
		"target": "originator",
		"type":   "error",
		"error":  map[string]string{"message": "internal"},
	})
	if marshalErr != nil {
		return
	}
	select {
	case sess.send <- payload:
	default:
	}
}

// sendSnapshot writes the current room state directly to this session on
// connect (spec.md §4.F), before any auto-join mutation.
func (sess *Session) sendSnapshot(r *game.Room) {
	sess.deliver([]room.Frame{{
		Target: room.TargetOriginator,
		Type:   room.FrameGameState,
		GameState: &room.GameStateFrame{
			State:             r.Board,
			Turn:              r.CurrentTurn,
			Players:           r.Players,
			Status:            r.Status,
			Winner:            r.Winner,
			BoardSize:         r.BoardSize,
			EliminatedPlayers: room.EliminatedList(r),
			ExplodedCells:     [][2]int{},
		},
	}})
}

// wireFrame is the JSON-serializable projection of a room.Frame: the
// internal Target enum becomes the wire's "target" string, and only the
// payload matching Type is ever populated (spec.md §6).
type wireFrameEnvelope struct {
	Target    string                `json:"target"`
	Type      room.FrameType        `json:"type"`
	GameState *room.GameStateFrame  `json:"game_state,omitempty"`
	Error     *room.ErrorFrame      `json:"error,omitempty"`
	Rematch   *room.RematchInviteFrame `json:"rematch,omitempty"`
}

func wireFrame(f room.Frame) wireFrameEnvelope {
	target := "room"
	if f.Target == room.TargetOriginator {
		target = "originator"
	}
	return wireFrameEnvelope{
		Target:    target,
		Type:      f.Type,
		GameState: f.GameState,
		Error:     f.Error,
		Rematch:   f.Rematch,
	}
}
