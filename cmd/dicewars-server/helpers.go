package main

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lab1702/dicewars/game"
)

// shutdownGrace bounds how long the HTTP server waits for in-flight
// requests to drain on SIGTERM/SIGINT.
const shutdownGrace = 10 * time.Second

func portString(port int) string {
	return strconv.Itoa(port)
}

// newRoomID mints a fresh room id for RequestRematch (room.Handlers.NewRoom).
func newRoomID() game.RoomID {
	return game.RoomID(uuid.NewString())
}
