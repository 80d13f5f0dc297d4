package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/lab1702/dicewars/game"
	"github.com/lab1702/dicewars/store/memstore"
)

func TestSweepRemovesStaleWaitingRoom(t *testing.T) {
	ms := memstore.New()
	old := &game.Room{
		ID:        "stale",
		Status:    game.StatusWaiting,
		Players:   []game.PlayerID{"host"},
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	fresh := &game.Room{
		ID:        "fresh",
		Status:    game.StatusWaiting,
		Players:   []game.PlayerID{"host"},
		CreatedAt: time.Now(),
	}
	if err := ms.CreateRoom(context.Background(), old); err != nil {
		t.Fatal(err)
	}
	if err := ms.CreateRoom(context.Background(), fresh); err != nil {
		t.Fatal(err)
	}

	j := New(ms)
	j.sweep(context.Background())

	if _, err := ms.GetRoom(context.Background(), "stale"); err == nil {
		t.Error("stale waiting room should have been removed")
	}
	if _, err := ms.GetRoom(context.Background(), "fresh"); err != nil {
		t.Error("fresh waiting room should still be present")
	}
}

func TestSweepLeavesInProgressRoomsAlone(t *testing.T) {
	ms := memstore.New()
	r := &game.Room{
		ID:        "playing",
		Status:    game.StatusInProgress,
		Players:   []game.PlayerID{"a", "b"},
		CreatedAt: time.Now().Add(-2 * time.Hour),
	}
	if err := ms.CreateRoom(context.Background(), r); err != nil {
		t.Fatal(err)
	}

	j := New(ms)
	j.sweep(context.Background())

	if _, err := ms.GetRoom(context.Background(), "playing"); err != nil {
		t.Error("in-progress room should never be swept regardless of age")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ms := memstore.New()
	j := New(ms)
	j.Interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
