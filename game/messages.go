// File: game/messages.go
package game

import (
	"github.com/lguibr/bollywood"
	"golang.org/x/net/websocket"
)

// --- Wire envelope (server -> client) ---

// Outbound is the egress framing: one event name plus a payload object. The
// broadcaster and the connection layer both emit this shape.
type Outbound struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// --- Generic operation result ---

// OpResponse is the reply for room/matchmaker operations invoked via Ask.
// Rejections are values carrying a wire-visible code.
type OpResponse struct {
	Accepted bool
	Code     string
	Reason   string
}

func Accept() OpResponse {
	return OpResponse{Accepted: true}
}

func Reject(code, reason string) OpResponse {
	return OpResponse{Code: code, Reason: reason}
}

// --- RoomActor messages ---

// JoinRoomRequest seats a player (Ask -> JoinRoomResponse).
type JoinRoomRequest struct {
	PlayerID  string
	Character string
	Conn      *websocket.Conn // registered with the room broadcaster on accept
}

type JoinRoomResponse struct {
	Accepted bool
	Seat     Seat
	Code     string
	Reason   string
}

// SetRoomReady marks a seated player ready (Ask -> OpResponse).
type SetRoomReady struct {
	PlayerID string
	Ready    bool
}

// StartRoomRequest moves a Ready room into Playing (Ask -> OpResponse). Sent
// by the matchmaker once both ready-ups arrive.
type StartRoomRequest struct{}

// PlayerInputFrame records the latest intent frame for the next tick. The
// most recent frame per player wins; earlier frames in the same tick are
// dropped.
type PlayerInputFrame struct {
	PlayerID string
	Frame    IntentFrame
}

// MovementClaim is the position-form client update, subject to the
// plausibility gate.
type MovementClaim struct {
	PlayerID    string
	Position    Vec2
	Velocity    Vec2
	TimestampMs int64
	SequenceID  int64
}

// BallClaim is a client ball update; only honored from the last toucher.
type BallClaim struct {
	PlayerID    string
	Position    Vec2
	Velocity    Vec2
	TimestampMs int64
}

// GoalClaim is a client-reported goal, re-verified against the server ball
// trajectory.
type GoalClaim struct {
	PlayerID    string
	Position    Vec2
	Power       float32
	TimestampMs int64
}

// PauseRoomRequest / ResumeRoomRequest control the pause interlock
// (Ask -> OpResponse).
type PauseRoomRequest struct {
	PlayerID string
	Reason   string
}

type ResumeRoomRequest struct {
	PlayerID string
}

// ForceEndRequest terminates the game with the given reason. RequestedBy is
// only used to answer the requester when the request is refused.
type ForceEndRequest struct {
	Reason      WinReason
	RequestedBy string
}

// LeaveRoom removes a player deliberately (forfeit while Playing).
type LeaveRoom struct {
	PlayerID string
	Reason   string
}

// PlayerSocketClosed starts the disconnect grace period for a seated player.
type PlayerSocketClosed struct {
	PlayerID string
}

// PlayerReconnected cancels the grace period and reattaches the new socket.
type PlayerReconnected struct {
	PlayerID string
	Conn     *websocket.Conn
}

// RoomTick drives one simulation step; sent by the room's own ticker loop.
type RoomTick struct{}

// graceExpired fires when a disconnected player did not return in time.
type graceExpired struct {
	PlayerID string
}

// ChatRelay fans a sanitized chat line out to the room, or to one target for
// private messages.
type ChatRelay struct {
	PlayerID string
	Username string
	Message  string
	Type     string // all, team, private
	Target   string
}

// GetSnapshotRequest returns the current broadcast view (Ask -> Snapshot).
type GetSnapshotRequest struct{}

// --- RoomManagerActor messages ---

// ReserveRoomRequest creates an empty room for a pending match
// (Ask -> ReserveRoomResponse).
type ReserveRoomRequest struct{}

type ReserveRoomResponse struct {
	RoomID  string
	RoomPID *bollywood.PID
}

// ReleaseRoom discards a reserved room whose match was cancelled.
type ReleaseRoom struct {
	RoomID string
}

// RoomTerminal notifies the manager that a room reached Finished/Abandoned.
type RoomTerminal struct {
	RoomID string
}

// GetRoomListRequest returns active room summaries (Ask -> RoomListResponse).
type GetRoomListRequest struct{}

type RoomSummary struct {
	RoomID  string `json:"roomId"`
	Status  string `json:"status"`
	Players int    `json:"players"`
}

type RoomListResponse struct {
	Rooms []RoomSummary
}

// --- BroadcasterActor messages ---

// AddClient subscribes a player's socket to room broadcasts.
type AddClient struct {
	PlayerID string
	Conn     *websocket.Conn
}

// RemoveClient unsubscribes a player's socket.
type RemoveClient struct {
	PlayerID string
}

// BroadcastStateCommand fans out one tick's snapshot.
type BroadcastStateCommand struct {
	State Snapshot
}

// BroadcastEventCommand fans out a discrete room event (gameStarted,
// gamePaused, goal_confirmed, gameEnded, ...).
type BroadcastEventCommand struct {
	Event   string
	Payload interface{}
	Except  string // playerID to skip, empty for none
}

// ReleaseClients drops every subscription after a terminal broadcast. The
// sockets stay open; their lifetime belongs to the connection layer.
type ReleaseClients struct{}

// --- MatchmakerActor messages ---

// JoinQueueRequest enqueues a player (Ask -> JoinQueueResponse).
type JoinQueueRequest struct {
	PlayerID    string
	Mode        GameMode
	Preferences map[string]string
}

type JoinQueueResponse struct {
	Accepted        bool
	Position        int
	EstimatedWaitMs int64
	QueueID         string
	Code            string
	Reason          string
}

// LeaveQueueRequest dequeues a player (Ask -> LeaveQueueResponse).
type LeaveQueueRequest struct {
	PlayerID string
	Reason   string
}

type LeaveQueueResponse struct {
	Accepted    bool
	QueueTimeMs int64
	Code        string
}

// ReadyUp updates a pending match's ready state (Ask -> OpResponse).
type ReadyUp struct {
	PlayerID string
	Ready    bool
}

// PlayerDropped cleans queue and pending-match state when a socket dies.
type PlayerDropped struct {
	PlayerID string
}

// pairSweep periodically attempts pairing in every queue.
type pairSweep struct{}

// readyTimeout fires when a pending match ran out its ready window.
type readyTimeout struct {
	MatchID string
}
