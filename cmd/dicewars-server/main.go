// Package main implements the DiceWars WebSocket game server.
//
// Connection flow:
//  1. Client connects via WebSocket to /ws/game/{roomID}
//  2. Session authenticates the connection and loads the room
//  3. Session registers with the Hub and sends the current snapshot
//  4. Session auto-joins the room if it is waiting, unfull, and the user
//     isn't seated yet
//  5. Inbound make_move/start_game/kick_player commands run through the
//     room package's Command Handlers and Move Orchestrator
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/lab1702/dicewars/config"
	"github.com/lab1702/dicewars/hub"
	"github.com/lab1702/dicewars/janitor"
	"github.com/lab1702/dicewars/room"
	"github.com/lab1702/dicewars/server"
	"github.com/lab1702/dicewars/store/pgstore"
)

const releaseVersion = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags)

	cfg := &config.Config{}
	cmd := newCmd(cfg)
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dicewars-server",
		Short:         "Real-time WebSocket server for the DiceWars board game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	config.BindFlags(cmd.Flags(), cfg)
	cmd.CompletionOptions.HiddenDefaultCmd = true

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, pgstore.Schema); err != nil {
		return err
	}

	roomStore := pgstore.New(pool)
	h := &room.Handlers{
		Store:   roomStore,
		NewRoom: newRoomID,
	}

	srv := &server.Server{
		Hub:      hub.New(),
		Handlers: h,
		Auth:     server.QueryParamAuthenticator{},
		Timing: room.AnimationTiming{
			WaveBroadcastDelay: cfg.WaveBroadcastDelay,
			WaveApplyDelay:     cfg.WaveApplyDelay,
		},
	}

	j := janitor.New(roomStore)
	j.Interval = cfg.JanitorInterval
	j.StaleAfter = cfg.StaleAfter
	go j.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/game/", srv.HandleWebSocket)

	httpServer := &http.Server{
		Addr:    cfg.Bind + ":" + portString(cfg.Port),
		Handler: mux,
	}

	log.Printf("=================================")
	log.Printf("  DiceWars Game Server")
	log.Printf("=================================")
	log.Printf("  Bind: %s", cfg.Bind)
	log.Printf("  Port: %d", cfg.Port)
	log.Printf("  Stale room sweep: every %s, cutoff %s", cfg.JanitorInterval, cfg.StaleAfter)
	log.Printf("=================================")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
