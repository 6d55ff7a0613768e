// File: game/broadcaster_actor.go
package game

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/lguibr/bollywood"
	"golang.org/x/net/websocket"
)

// BroadcasterActor fans out one room's state and events to its subscribed
// sockets. Write failures are treated as disconnects and reported back to the
// owning RoomActor by player id.
type BroadcasterActor struct {
	roomID       string
	clients      map[string]*websocket.Conn // playerID -> socket
	mu           sync.RWMutex
	selfPID      *bollywood.PID
	roomActorPID *bollywood.PID
}

// NewBroadcasterProducer creates a producer for a room's BroadcasterActor.
func NewBroadcasterProducer(roomID string, roomActorPID *bollywood.PID) bollywood.Producer {
	return func() bollywood.Actor {
		return &BroadcasterActor{
			roomID:       roomID,
			clients:      make(map[string]*websocket.Conn),
			roomActorPID: roomActorPID,
		}
	}
}

func (a *BroadcasterActor) Receive(ctx bollywood.Context) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("PANIC recovered in BroadcasterActor %s Receive: %v\nStack trace:\n%s\n", a.roomID, r, string(debug.Stack()))
		}
	}()

	if a.selfPID == nil {
		a.selfPID = ctx.Self()
	}

	switch msg := ctx.Message().(type) {
	case bollywood.Started:
		// Actor started

	case AddClient:
		if msg.Conn != nil {
			a.mu.Lock()
			a.clients[msg.PlayerID] = msg.Conn
			a.mu.Unlock()
		}

	case RemoveClient:
		a.mu.Lock()
		delete(a.clients, msg.PlayerID)
		a.mu.Unlock()

	case BroadcastStateCommand:
		a.send(ctx, Outbound{Event: "gameState", Data: msg.State, Timestamp: time.Now().UnixMilli()}, "")

	case BroadcastEventCommand:
		a.send(ctx, Outbound{Event: msg.Event, Data: msg.Payload, Timestamp: time.Now().UnixMilli()}, msg.Except)

	case ReleaseClients:
		a.releaseAll()

	case bollywood.Stopping:
		a.releaseAll()

	case bollywood.Stopped:
		// Actor stopped

	default:
		fmt.Printf("BroadcasterActor %s: Received unknown message type: %T\n", a.roomID, msg)
	}
}

// send writes one envelope to every subscribed socket except the excluded
// player. Closed-connection errors drop the client and notify the room.
func (a *BroadcasterActor) send(ctx bollywood.Context, env Outbound, except string) {
	a.mu.RLock()
	targets := make(map[string]*websocket.Conn, len(a.clients))
	for id, conn := range a.clients {
		if id != except {
			targets[id] = conn
		}
	}
	a.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	var disconnected []string
	for id, ws := range targets {
		if err := websocket.JSON.Send(ws, &env); err != nil {
			if isClosedConnError(err) {
				disconnected = append(disconnected, id)
			} else {
				fmt.Printf("ERROR: BroadcasterActor %s: Failed to write %s to player %s: %v\n", a.roomID, env.Event, id, err)
			}
		}
	}

	if len(disconnected) > 0 {
		a.mu.Lock()
		for _, id := range disconnected {
			delete(a.clients, id)
		}
		a.mu.Unlock()
		if a.roomActorPID != nil && ctx.Engine() != nil {
			for _, id := range disconnected {
				ctx.Engine().Send(a.roomActorPID, PlayerSocketClosed{PlayerID: id}, a.selfPID)
			}
		}
	}
}

// releaseAll detaches every subscriber. Sockets are not closed here; the
// connection layer owns them and the players may keep the session for the
// lobby.
func (a *BroadcasterActor) releaseAll() {
	a.mu.Lock()
	n := len(a.clients)
	a.clients = make(map[string]*websocket.Conn)
	a.mu.Unlock()

	if n > 0 {
		fmt.Printf("BroadcasterActor %s: Released %d subscribers.\n", a.roomID, n)
	}
}

func isClosedConnError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "use of closed network connection") ||
		strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "connection reset by peer") ||
		strings.Contains(s, "EOF") ||
		strings.Contains(s, "write: connection timed out")
}
