// File: server/protocol.go
package server

import "encoding/json"

// Ingress event names (client -> server).
const (
	EvAuthenticate      = "authenticate"
	EvJoinMatchmaking   = "join_matchmaking"
	EvLeaveMatchmaking  = "leave_matchmaking"
	EvReadyUp           = "ready_up"
	EvJoinRoom          = "join_room"
	EvPlayerInput       = "player_input"
	EvPlayerMovement    = "player_movement"
	EvBallUpdate        = "ball_update"
	EvGoalAttempt       = "goal_attempt"
	EvChatMessage       = "chat_message"
	EvPauseRequest      = "pause_request"
	EvResumeRequest     = "resume_request"
	EvForfeitGame       = "forfeit_game"
	EvRequestGameEnd    = "request_game_end"
	EvLeaveRoom         = "leave_room"
	EvPingLatency       = "ping_latency"
	EvHeartbeatResponse = "heartbeat_response"
)

// Egress event names (server -> client). Room-level events (gameState,
// gameStarted, goal_confirmed, ...) are emitted by the room broadcaster.
const (
	EvConnected         = "connected"
	EvAuthenticated     = "authenticated"
	EvReconnected       = "reconnected"
	EvAuthError         = "auth_error"
	EvQueueJoined       = "queue_joined"
	EvRoomJoined        = "room_joined"
	EvQueueLeft         = "queue_left"
	EvMatchmakingError  = "matchmaking_error"
	EvValidationError   = "validation_error"
	EvRateLimitExceeded = "rate_limit_exceeded"
	EvEventError        = "event_error"
	EvPongLatency       = "pong_latency"
	EvHeartbeat         = "heartbeat"
	EvServerShutdown    = "server_shutdown"
)

// Envelope is the ingress framing: one event name plus an uninterpreted
// payload, decoded per-event by the router.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
