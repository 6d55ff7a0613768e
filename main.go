package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lguibr/bollywood"
	"golang.org/x/net/websocket"

	"github.com/headsoccer/server/game"
	"github.com/headsoccer/server/server"
	"github.com/headsoccer/server/store"
	"github.com/headsoccer/server/utils"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var st store.Store
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisStore, err := store.NewRedis(context.Background(), addr)
		if err != nil {
			fmt.Printf("Failed to connect to redis at %s: %v\n", addr, err)
			os.Exit(1)
		}
		defer redisStore.Close()
		st = redisStore
		fmt.Printf("Using redis store at %s.\n", addr)
	} else {
		st = store.NewMemory()
		fmt.Println("Using in-memory store.")
	}

	engine := bollywood.NewEngine()
	table := server.NewTable(cfg)
	recorder := game.NewResultRecorder(st)

	roomManagerPID := engine.Spawn(bollywood.NewProps(game.NewRoomManagerProducer(engine, cfg, table, recorder)))
	matchmakerPID := engine.Spawn(bollywood.NewProps(game.NewMatchmakerProducer(engine, cfg, st, table, roomManagerPID)))

	srv := server.NewServer(cfg, engine, table, matchmakerPID, roomManagerPID)

	mux := http.NewServeMux()
	mux.Handle("/subscribe", websocket.Handler(srv.HandleSubscribe()))
	mux.HandleFunc("/health", srv.HandleHealth())
	mux.HandleFunc("/stats", srv.HandleStats())

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	go func() {
		fmt.Printf("Listening on %s (tick %d Hz).\n", addr, cfg.TickHz)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	fmt.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	srv.Stop()
	engine.Shutdown(5 * time.Second)
	fmt.Println("Bye.")
}
