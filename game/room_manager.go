// File: game/room_manager.go
package game

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lguibr/bollywood"
	"github.com/headsoccer/server/utils"
)

// maxRooms bounds concurrent matches; the matchmaker keeps pairs queued once
// the cap is reached.
const maxRooms = 128

// RoomInfo tracks one active room.
type RoomInfo struct {
	PID       *bollywood.PID
	Room      *Room
	CreatedAt time.Time
}

// RoomManagerActor spawns and retires RoomActors. Rooms are reserved by the
// matchmaker before players ready up, released if the match falls through,
// and retired when a room reports a terminal state.
type RoomManagerActor struct {
	engine   *bollywood.Engine
	cfg      utils.Config
	binder   SessionBinder
	recorder *ResultRecorder
	rooms    map[string]*RoomInfo
	mu       sync.RWMutex
	selfPID  *bollywood.PID
}

// NewRoomManagerProducer creates a producer for the RoomManagerActor.
func NewRoomManagerProducer(engine *bollywood.Engine, cfg utils.Config, binder SessionBinder, recorder *ResultRecorder) bollywood.Producer {
	return func() bollywood.Actor {
		return &RoomManagerActor{
			engine:   engine,
			cfg:      cfg,
			binder:   binder,
			recorder: recorder,
			rooms:    make(map[string]*RoomInfo),
		}
	}
}

func (a *RoomManagerActor) Receive(ctx bollywood.Context) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("PANIC recovered in RoomManagerActor Receive: %v\nStack trace:\n%s\n", r, string(debug.Stack()))
			if ctx.RequestID() != "" {
				ctx.Reply(fmt.Errorf("room manager panicked: %v", r))
			}
		}
	}()

	if a.selfPID == nil {
		a.selfPID = ctx.Self()
	}

	switch msg := ctx.Message().(type) {
	case bollywood.Started:
		fmt.Printf("RoomManagerActor %s: Started.\n", a.selfPID)

	case ReserveRoomRequest:
		a.handleReserve(ctx)

	case ReleaseRoom:
		a.retireRoom(msg.RoomID, "released")

	case RoomTerminal:
		a.retireRoom(msg.RoomID, "terminal")

	case GetRoomListRequest:
		a.handleGetRoomList(ctx)

	case bollywood.Stopping:
		fmt.Printf("RoomManagerActor %s: Stopping. Shutting down all rooms.\n", a.selfPID)
		a.mu.Lock()
		pidsToStop := make([]*bollywood.PID, 0, len(a.rooms))
		for _, info := range a.rooms {
			if info.PID != nil {
				pidsToStop = append(pidsToStop, info.PID)
			}
		}
		a.rooms = make(map[string]*RoomInfo)
		a.mu.Unlock()
		for _, pid := range pidsToStop {
			a.engine.Stop(pid)
		}

	case bollywood.Stopped:
		fmt.Printf("RoomManagerActor %s: Stopped.\n", a.selfPID)

	default:
		fmt.Printf("RoomManagerActor %s: Received unknown message type: %T\n", a.selfPID, msg)
		if ctx.RequestID() != "" {
			ctx.Reply(fmt.Errorf("unknown message type: %T", msg))
		}
	}
}

func (a *RoomManagerActor) handleReserve(ctx bollywood.Context) {
	a.mu.Lock()
	if len(a.rooms) >= maxRooms {
		a.mu.Unlock()
		fmt.Printf("RoomManagerActor %s: Max rooms (%d) reached. Rejecting reservation.\n", a.selfPID, maxRooms)
		if ctx.RequestID() != "" {
			ctx.Reply(ReserveRoomResponse{})
		}
		return
	}

	roomID := uuid.NewString()
	props := bollywood.NewProps(NewRoomActorProducer(a.engine, a.cfg, roomID, a.selfPID, a.binder, a.recorder))
	roomPID := a.engine.Spawn(props)
	if roomPID == nil {
		a.mu.Unlock()
		fmt.Printf("ERROR: RoomManagerActor %s: Failed to spawn RoomActor for room %s.\n", a.selfPID, roomID)
		if ctx.RequestID() != "" {
			ctx.Reply(ReserveRoomResponse{})
		}
		return
	}
	a.rooms[roomID] = &RoomInfo{PID: roomPID, CreatedAt: time.Now()}
	a.mu.Unlock()

	fmt.Printf("RoomManagerActor %s: Reserved room %s (%s).\n", a.selfPID, roomID, roomPID)
	if ctx.RequestID() != "" {
		ctx.Reply(ReserveRoomResponse{RoomID: roomID, RoomPID: roomPID})
	}
}

func (a *RoomManagerActor) retireRoom(roomID, why string) {
	a.mu.Lock()
	info, exists := a.rooms[roomID]
	if exists {
		delete(a.rooms, roomID)
	}
	a.mu.Unlock()

	if !exists {
		return
	}
	fmt.Printf("RoomManagerActor %s: Retiring room %s (%s).\n", a.selfPID, roomID, why)
	if info.PID != nil {
		a.engine.Stop(info.PID)
	}
}

// handleGetRoomList answers the /stats endpoint via Ask. Summaries come from
// each room actor's snapshot so statuses are current.
func (a *RoomManagerActor) handleGetRoomList(ctx bollywood.Context) {
	a.mu.RLock()
	infos := make(map[string]*RoomInfo, len(a.rooms))
	for id, info := range a.rooms {
		infos[id] = info
	}
	a.mu.RUnlock()

	response := RoomListResponse{Rooms: make([]RoomSummary, 0, len(infos))}
	for id, info := range infos {
		summary := RoomSummary{RoomID: id, Status: StatusWaiting.String()}
		if info.PID != nil {
			if reply, err := a.engine.Ask(info.PID, GetSnapshotRequest{}, 250*time.Millisecond); err == nil {
				if snap, ok := reply.(Snapshot); ok {
					summary.Status = snap.GameState
					summary.Players = len(snap.Players)
				}
			}
		}
		response.Rooms = append(response.Rooms, summary)
	}

	if ctx.RequestID() != "" {
		ctx.Reply(response)
	} else {
		fmt.Printf("WARN: RoomManagerActor %s received GetRoomListRequest not via Ask.\n", a.selfPID)
	}
}
