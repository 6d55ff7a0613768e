// File: server/server.go
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/lguibr/bollywood"
	"golang.org/x/net/websocket"

	"github.com/headsoccer/server/game"
	"github.com/headsoccer/server/utils"
)

// Server ties the connection table, router and actor tree together. One
// Server value per process; tests construct their own.
type Server struct {
	cfg     utils.Config
	engine  *bollywood.Engine
	table   *Table
	router  *Router
	metrics *Metrics

	matchmakerPID  *bollywood.PID
	roomManagerPID *bollywood.PID

	stopHeartbeat chan struct{}
	stopOnce      sync.Once
}

// NewServer wires a server over an already-spawned actor tree.
func NewServer(cfg utils.Config, engine *bollywood.Engine, table *Table, matchmakerPID, roomManagerPID *bollywood.PID) *Server {
	s := &Server{
		cfg:            cfg,
		engine:         engine,
		table:          table,
		router:         NewRouter(cfg),
		metrics:        NewMetrics(),
		matchmakerPID:  matchmakerPID,
		roomManagerPID: roomManagerPID,
		stopHeartbeat:  make(chan struct{}),
	}
	go s.runHeartbeatLoop()
	return s
}

// Table exposes the connection table, used by main for shutdown.
func (s *Server) Table() *Table { return s.table }

// Metrics exposes the event counters.
func (s *Server) Metrics() *Metrics { return s.metrics }

// HandleSubscribe is the WebSocket entry point.
func (s *Server) HandleSubscribe() func(ws *websocket.Conn) {
	return func(ws *websocket.Conn) {
		addr := ws.Request().RemoteAddr
		fmt.Printf("HandleSubscribe: New connection from %s\n", addr)

		defer func() {
			if r := recover(); r != nil {
				fmt.Printf("PANIC recovered in HandleSubscribe for %s: %v\nStack trace:\n%s\n", addr, r, string(debug.Stack()))
			}
			_ = ws.Close()
		}()

		conn := s.table.Register(ws)
		if conn == nil {
			return
		}
		conn.Send(EvConnected, map[string]interface{}{
			"socketId":   conn.SocketID,
			"serverTime": time.Now().UnixMilli(),
		})

		s.readLoop(ws, conn)
		s.handleDisconnect(ws)
		fmt.Printf("HandleSubscribe: readLoop finished for %s.\n", addr)
	}
}

// readLoop receives envelopes until the socket dies, pushing each through the
// rate limiter and router before dispatch.
func (s *Server) readLoop(ws *websocket.Conn, conn *Connection) {
	addr := ws.Request().RemoteAddr
	for {
		var env Envelope
		err := websocket.JSON.Receive(ws, &env)
		if err != nil {
			isClosed := err == io.EOF ||
				strings.Contains(err.Error(), "use of closed network connection") ||
				strings.Contains(err.Error(), "closed")
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				fmt.Printf("ReadLoop: Read timeout for %s. Assuming disconnect.\n", addr)
				return
			}
			if !isClosed {
				fmt.Printf("ReadLoop: Error receiving from %s: %v\n", addr, err)
			}
			return
		}

		s.table.Touch(ws)
		s.dispatch(conn, env)
	}
}

// dispatch runs one envelope through rate limiting, schema validation and the
// per-event handler.
func (s *Server) dispatch(conn *Connection, env Envelope) {
	started := time.Now()

	if !s.router.KnownEvent(env.Event) {
		s.metrics.Rejected(env.Event)
		conn.Send(EvEventError, map[string]interface{}{
			"event":  env.Event,
			"reason": "unknown event",
		})
		return
	}

	if !conn.Limiter.Allow(env.Event) {
		s.metrics.RateLimited()
		s.metrics.Rejected(env.Event)
		conn.Send(EvRateLimitExceeded, map[string]interface{}{
			"event":        env.Event,
			"retryAfterMs": 1000,
		})
		return
	}

	if s.router.RequiresAuth(env.Event) && conn.PlayerID == "" {
		s.metrics.Rejected(env.Event)
		conn.Send(EvEventError, map[string]interface{}{
			"event":  env.Event,
			"reason": ErrNotAuthenticated.Error(),
			"code":   game.CodeUnauthenticated,
		})
		return
	}

	payload, fieldErrs := s.router.Validate(env.Event, env.Data)
	if len(fieldErrs) > 0 {
		s.metrics.ValidationError()
		s.metrics.Rejected(env.Event)
		conn.Send(EvValidationError, map[string]interface{}{
			"event":  env.Event,
			"errors": fieldErrs,
		})
		return
	}

	s.handleEvent(conn, env.Event, payload)
	s.metrics.Processed(env.Event, time.Since(started))
}

// handleDisconnect tears down a closed socket: the matchmaker drops any queue
// entry and the room, if any, starts its grace period.
func (s *Server) handleDisconnect(ws *websocket.Conn) {
	conn := s.table.Unregister(ws)
	if conn == nil || conn.PlayerID == "" {
		return
	}
	fmt.Printf("Server: Player %s disconnected.\n", conn.PlayerID)
	s.engine.Send(s.matchmakerPID, game.PlayerDropped{PlayerID: conn.PlayerID}, nil)
	if pid := conn.RoomPID(); pid != nil {
		s.engine.Send(pid, game.PlayerSocketClosed{PlayerID: conn.PlayerID}, nil)
	}
}

// runHeartbeatLoop pings live sockets and closes the silent ones.
func (s *Server) runHeartbeatLoop() {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval())
	defer ticker.Stop()
	for {
		select {
		case <-s.stopHeartbeat:
			return
		case now := <-ticker.C:
			for _, conn := range s.table.SweepStale(now) {
				fmt.Printf("Server: Closing stale connection %s (player %q).\n", conn.SocketID, conn.PlayerID)
				_ = conn.ws.Close()
			}
		}
	}
}

// Stop halts the heartbeat loop and closes every connection.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopHeartbeat)
		s.table.Shutdown()
	})
}

// --- HTTP surface ---

// HandleHealth reports process liveness.
func (s *Server) HandleHealth() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":     "ok",
			"serverTime": time.Now().UnixMilli(),
		})
	}
}

// HandleStats reports event counters, connection counts and room summaries.
func (s *Server) HandleStats() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				fmt.Printf("PANIC recovered in HandleStats: %v\nStack trace:\n%s\n", rec, string(debug.Stack()))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		total, authenticated, inRoom := s.table.Counts()
		stats := map[string]interface{}{
			"connections": map[string]int{
				"total":         total,
				"authenticated": authenticated,
				"inRoom":        inRoom,
			},
			"metrics": s.metrics.Snapshot(),
		}
		if reply, err := s.engine.Ask(s.roomManagerPID, game.GetRoomListRequest{}, 2*time.Second); err == nil {
			if list, ok := reply.(game.RoomListResponse); ok {
				stats["rooms"] = list.Rooms
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			fmt.Println("Error writing HTTP stats:", err)
		}
	}
}
