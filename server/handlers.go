// File: server/handlers.go
package server

import (
	"fmt"
	"time"

	"github.com/headsoccer/server/game"
)

const askTimeout = 2 * time.Second

// handleEvent dispatches one validated, sanitized payload to its handler.
func (s *Server) handleEvent(conn *Connection, event string, payload map[string]interface{}) {
	switch event {
	case EvAuthenticate:
		s.handleAuthenticate(conn, payload)
	case EvJoinMatchmaking:
		s.handleJoinMatchmaking(conn, payload)
	case EvLeaveMatchmaking:
		s.handleLeaveMatchmaking(conn, payload)
	case EvReadyUp:
		s.handleReadyUp(conn, payload)
	case EvJoinRoom:
		s.handleJoinRoom(conn, payload)
	case EvPlayerInput, EvPlayerMovement:
		s.handleMovement(conn, payload)
	case EvBallUpdate:
		s.handleBallUpdate(conn, payload)
	case EvGoalAttempt:
		s.handleGoalAttempt(conn, payload)
	case EvChatMessage:
		s.handleChatMessage(conn, payload)
	case EvPauseRequest:
		s.handlePauseRequest(conn, payload)
	case EvResumeRequest:
		s.handleResumeRequest(conn)
	case EvForfeitGame:
		s.handleForfeit(conn, payload)
	case EvRequestGameEnd:
		s.handleRequestGameEnd(conn, payload)
	case EvLeaveRoom:
		s.handleLeaveRoom(conn, payload)
	case EvPingLatency:
		conn.Send(EvPongLatency, map[string]interface{}{
			"clientTime": payload["clientTime"],
			"serverTime": time.Now().UnixMilli(),
		})
	case EvHeartbeatResponse:
		// Liveness already refreshed by the read loop.
	}
}

func (s *Server) handleAuthenticate(conn *Connection, payload map[string]interface{}) {
	playerID := getString(payload, "playerId")
	username := getString(payload, "username")
	character := getString(payload, "characterId")

	priorRoom, reconnected, err := s.table.Authenticate(conn, playerID, username, character)
	if err != nil {
		conn.Send(EvAuthError, map[string]interface{}{"reason": err.Error()})
		return
	}

	if reconnected && priorRoom != nil {
		s.engine.Send(priorRoom, game.PlayerReconnected{PlayerID: playerID, Conn: conn.ws}, nil)
		conn.Send(EvReconnected, map[string]interface{}{
			"playerId": playerID,
			"username": username,
			"roomId":   conn.RoomID(),
		})
		fmt.Printf("Server: Player %s reconnected to room %s.\n", playerID, conn.RoomID())
		return
	}

	conn.Send(EvAuthenticated, map[string]interface{}{
		"playerId": playerID,
		"username": username,
		"socketId": conn.SocketID,
	})
	fmt.Printf("Server: Player %s authenticated as %q.\n", playerID, username)
}

func (s *Server) handleJoinMatchmaking(conn *Connection, payload map[string]interface{}) {
	if conn.RoomPID() != nil {
		conn.Send(EvMatchmakingError, map[string]interface{}{
			"code":   game.CodeInGame,
			"reason": "already in a room",
		})
		return
	}

	prefs := map[string]string{}
	if raw, ok := payload["preferences"].(map[string]interface{}); ok {
		for k, v := range raw {
			if sv, ok := v.(string); ok {
				prefs[k] = sv
			}
		}
	}
	if conn.Character != "" {
		if _, ok := prefs["character"]; !ok {
			prefs["character"] = conn.Character
		}
	}

	req := game.JoinQueueRequest{
		PlayerID:    conn.PlayerID,
		Mode:        game.GameMode(getString(payload, "gameMode")),
		Preferences: prefs,
	}
	reply, err := s.engine.Ask(s.matchmakerPID, req, askTimeout)
	if err != nil {
		conn.Send(EvMatchmakingError, map[string]interface{}{
			"code":   game.CodeConnectionError,
			"reason": "matchmaker unavailable",
		})
		return
	}
	resp, ok := reply.(game.JoinQueueResponse)
	if !ok || !resp.Accepted {
		conn.Send(EvMatchmakingError, map[string]interface{}{
			"code":   resp.Code,
			"reason": resp.Reason,
		})
		return
	}
	conn.Send(EvQueueJoined, map[string]interface{}{
		"queueId":       resp.QueueID,
		"position":      resp.Position,
		"estimatedWait": resp.EstimatedWaitMs,
	})
}

func (s *Server) handleLeaveMatchmaking(conn *Connection, payload map[string]interface{}) {
	req := game.LeaveQueueRequest{PlayerID: conn.PlayerID, Reason: getString(payload, "reason")}
	reply, err := s.engine.Ask(s.matchmakerPID, req, askTimeout)
	if err != nil {
		conn.Send(EvMatchmakingError, map[string]interface{}{
			"code":   game.CodeConnectionError,
			"reason": "matchmaker unavailable",
		})
		return
	}
	resp, ok := reply.(game.LeaveQueueResponse)
	if !ok || !resp.Accepted {
		conn.Send(EvMatchmakingError, map[string]interface{}{"code": resp.Code})
		return
	}
	conn.Send(EvQueueLeft, map[string]interface{}{"queueTime": resp.QueueTimeMs})
}

func (s *Server) handleReadyUp(conn *Connection, payload map[string]interface{}) {
	ready := true
	if v, ok := payload["ready"].(bool); ok {
		ready = v
	}
	reply, err := s.engine.Ask(s.matchmakerPID, game.ReadyUp{PlayerID: conn.PlayerID, Ready: ready}, askTimeout)
	if err != nil {
		conn.Send(EvEventError, map[string]interface{}{
			"event":  EvReadyUp,
			"reason": "matchmaker unavailable",
		})
		return
	}
	if resp, ok := reply.(game.OpResponse); ok && !resp.Accepted {
		conn.Send(EvMatchmakingError, map[string]interface{}{
			"code":   resp.Code,
			"reason": resp.Reason,
		})
	}
}

// handleJoinRoom re-attaches a player to their active room, typically after
// the client recovered a dropped socket. The room binding itself is restored
// during authentication; this confirms it and resubscribes the socket to room
// broadcasts.
func (s *Server) handleJoinRoom(conn *Connection, payload map[string]interface{}) {
	roomPID := conn.RoomPID()
	if roomPID == nil {
		s.rejectNotInRoom(conn, EvJoinRoom)
		return
	}
	if want := getString(payload, "roomId"); want != "" && want != conn.RoomID() {
		conn.Send(EvEventError, map[string]interface{}{
			"event":  EvJoinRoom,
			"reason": "room does not match the player's active session",
		})
		return
	}
	s.engine.Send(roomPID, game.PlayerReconnected{PlayerID: conn.PlayerID, Conn: conn.ws}, nil)
	conn.Send(EvRoomJoined, map[string]interface{}{"roomId": conn.RoomID()})
}

// handleMovement accepts both input forms. Intent keys take precedence; the
// position form goes through the plausibility gate as a movement claim.
func (s *Server) handleMovement(conn *Connection, payload map[string]interface{}) {
	roomPID := conn.RoomPID()
	if roomPID == nil {
		s.rejectNotInRoom(conn, EvPlayerMovement)
		return
	}

	if keys, ok := payload["keys"].(map[string]interface{}); ok {
		frame := game.IntentFrame{
			Left:       getBoolFrom(keys, "left"),
			Right:      getBoolFrom(keys, "right"),
			Jump:       getBoolFrom(keys, "up"),
			Kick:       getBoolFrom(keys, "kick"),
			SequenceID: int64(getNumber(payload, "sequenceId")),
		}
		s.engine.Send(roomPID, game.PlayerInputFrame{PlayerID: conn.PlayerID, Frame: frame}, nil)
		return
	}

	if pos, ok := getVec(payload, "position"); ok {
		vel, _ := getVec(payload, "velocity")
		s.engine.Send(roomPID, game.MovementClaim{
			PlayerID:    conn.PlayerID,
			Position:    pos,
			Velocity:    vel,
			TimestampMs: int64(getNumber(payload, "timestamp")),
			SequenceID:  int64(getNumber(payload, "sequenceId")),
		}, nil)
	}
}

func (s *Server) handleBallUpdate(conn *Connection, payload map[string]interface{}) {
	roomPID := conn.RoomPID()
	if roomPID == nil {
		s.rejectNotInRoom(conn, EvBallUpdate)
		return
	}
	pos, _ := getVec(payload, "position")
	vel, _ := getVec(payload, "velocity")
	s.engine.Send(roomPID, game.BallClaim{
		PlayerID:    conn.PlayerID,
		Position:    pos,
		Velocity:    vel,
		TimestampMs: int64(getNumber(payload, "timestamp")),
	}, nil)
}

func (s *Server) handleGoalAttempt(conn *Connection, payload map[string]interface{}) {
	roomPID := conn.RoomPID()
	if roomPID == nil {
		s.rejectNotInRoom(conn, EvGoalAttempt)
		return
	}
	pos, _ := getVec(payload, "position")
	s.engine.Send(roomPID, game.GoalClaim{
		PlayerID:    conn.PlayerID,
		Position:    pos,
		Power:       float32(getNumber(payload, "power")),
		TimestampMs: int64(getNumber(payload, "timestamp")),
	}, nil)
}

func (s *Server) handleChatMessage(conn *Connection, payload map[string]interface{}) {
	roomPID := conn.RoomPID()
	if roomPID == nil {
		s.rejectNotInRoom(conn, EvChatMessage)
		return
	}
	s.engine.Send(roomPID, game.ChatRelay{
		PlayerID: conn.PlayerID,
		Username: conn.Username,
		Message:  getString(payload, "message"),
		Type:     getString(payload, "type"),
		Target:   getString(payload, "target"),
	}, nil)
}

func (s *Server) handlePauseRequest(conn *Connection, payload map[string]interface{}) {
	roomPID := conn.RoomPID()
	if roomPID == nil {
		s.rejectNotInRoom(conn, EvPauseRequest)
		return
	}
	reason := getString(payload, "reason")
	if reason == "" {
		reason = "playerRequest"
	}
	s.askRoomOp(conn, EvPauseRequest, game.PauseRoomRequest{PlayerID: conn.PlayerID, Reason: reason})
}

func (s *Server) handleResumeRequest(conn *Connection) {
	roomPID := conn.RoomPID()
	if roomPID == nil {
		s.rejectNotInRoom(conn, EvResumeRequest)
		return
	}
	s.askRoomOp(conn, EvResumeRequest, game.ResumeRoomRequest{PlayerID: conn.PlayerID})
}

func (s *Server) handleForfeit(conn *Connection, payload map[string]interface{}) {
	roomPID := conn.RoomPID()
	if roomPID == nil {
		s.rejectNotInRoom(conn, EvForfeitGame)
		return
	}
	reason := getString(payload, "reason")
	if reason == "" {
		reason = "forfeit"
	}
	s.engine.Send(roomPID, game.LeaveRoom{PlayerID: conn.PlayerID, Reason: reason}, nil)
}

func (s *Server) handleRequestGameEnd(conn *Connection, payload map[string]interface{}) {
	roomPID := conn.RoomPID()
	if roomPID == nil {
		s.rejectNotInRoom(conn, EvRequestGameEnd)
		return
	}

	var endReason game.WinReason
	switch getString(payload, "reason") {
	case "time_up":
		endReason = game.WinTimeLimit
	case "mutual_agreement":
		if confirmed, ok := payload["confirmed"].(bool); !ok || !confirmed {
			conn.Send(EvEventError, map[string]interface{}{
				"event":  EvRequestGameEnd,
				"reason": "mutual agreement requires confirmation",
			})
			return
		}
		endReason = game.WinMutualAgreement
	case "admin_request":
		if getString(payload, "adminCode") == "" {
			conn.Send(EvEventError, map[string]interface{}{
				"event":  EvRequestGameEnd,
				"reason": "admin request requires an admin code",
			})
			return
		}
		endReason = game.WinTechnicalIssue
	}
	s.engine.Send(roomPID, game.ForceEndRequest{Reason: endReason, RequestedBy: conn.PlayerID}, nil)
}

func (s *Server) handleLeaveRoom(conn *Connection, payload map[string]interface{}) {
	roomPID := conn.RoomPID()
	if roomPID == nil {
		s.rejectNotInRoom(conn, EvLeaveRoom)
		return
	}
	s.engine.Send(roomPID, game.LeaveRoom{PlayerID: conn.PlayerID, Reason: "leave_room"}, nil)
}

// --- helpers ---

func (s *Server) askRoomOp(conn *Connection, event string, msg interface{}) {
	reply, err := s.engine.Ask(conn.RoomPID(), msg, askTimeout)
	if err != nil {
		conn.Send(EvEventError, map[string]interface{}{"event": event, "reason": "room unavailable"})
		return
	}
	if resp, ok := reply.(game.OpResponse); ok && !resp.Accepted {
		conn.Send(EvEventError, map[string]interface{}{
			"event":  event,
			"code":   resp.Code,
			"reason": resp.Reason,
		})
	}
}

func (s *Server) rejectNotInRoom(conn *Connection, event string) {
	s.metrics.Rejected(event)
	conn.Send(EvEventError, map[string]interface{}{
		"event":  event,
		"reason": "not in a room",
	})
}

func getString(payload map[string]interface{}, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func getNumber(payload map[string]interface{}, key string) float64 {
	if v, ok := payload[key].(float64); ok {
		return v
	}
	return 0
}

func getBoolFrom(obj map[string]interface{}, key string) bool {
	v, _ := obj[key].(bool)
	return v
}

func getVec(payload map[string]interface{}, key string) (game.Vec2, bool) {
	obj, ok := payload[key].(map[string]interface{})
	if !ok {
		return game.Vec2{}, false
	}
	x, _ := obj["x"].(float64)
	y, _ := obj["y"].(float64)
	return game.Vec2{X: float32(x), Y: float32(y)}, true
}
