// File: game/room_actor.go
package game

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/lguibr/bollywood"
	"github.com/headsoccer/server/utils"
)

// RoomActor owns one match end to end: the authoritative Room state, the
// fixed-rate tick loop, claim validation and the per-room broadcaster. All
// state is touched only from Receive, so nothing here needs locking.
type RoomActor struct {
	engine         *bollywood.Engine
	cfg            utils.Config
	room           *Room
	validator      *Validator
	recorder       *ResultRecorder
	binder         SessionBinder
	roomManagerPID *bollywood.PID
	broadcasterPID *bollywood.PID
	selfPID        *bollywood.PID

	// inputs holds the latest intent frame per seat; a frame persists until
	// the next one replaces it, so held keys keep acting across ticks.
	inputs      [2]IntentFrame
	prevBallPos Vec2

	ticker       *time.Ticker
	stopTickerCh chan struct{}
	graceTimers  map[string]*time.Timer

	lastTickAt    time.Time
	overrunLogged time.Time
	finalized     bool
}

// NewRoomActorProducer creates a Producer for a RoomActor owning roomID.
func NewRoomActorProducer(engine *bollywood.Engine, cfg utils.Config, roomID string, roomManagerPID *bollywood.PID, binder SessionBinder, recorder *ResultRecorder) bollywood.Producer {
	return func() bollywood.Actor {
		return &RoomActor{
			engine:         engine,
			cfg:            cfg,
			room:           NewRoom(roomID, cfg),
			validator:      NewValidator(cfg),
			recorder:       recorder,
			binder:         binder,
			roomManagerPID: roomManagerPID,
			stopTickerCh:   make(chan struct{}),
			graceTimers:    make(map[string]*time.Timer),
		}
	}
}

func (a *RoomActor) Receive(ctx bollywood.Context) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("PANIC recovered in RoomActor %s Receive: %v\nStack trace:\n%s\n", a.room.ID, r, string(debug.Stack()))
			if ctx.RequestID() != "" {
				ctx.Reply(fmt.Errorf("room actor panicked: %v", r))
			}
		}
	}()

	if a.selfPID == nil {
		a.selfPID = ctx.Self()
	}

	switch msg := ctx.Message().(type) {
	case bollywood.Started:
		broadcasterProps := bollywood.NewProps(NewBroadcasterProducer(a.room.ID, a.selfPID))
		a.broadcasterPID = a.engine.Spawn(broadcasterProps)
		a.ticker = time.NewTicker(a.cfg.TickPeriod())
		a.lastTickAt = time.Now()
		go a.runTickerLoop(ctx)
		fmt.Printf("RoomActor %s: Started. Spawned Broadcaster: %s.\n", a.room.ID, a.broadcasterPID)

	case RoomTick:
		a.handleTick()

	case JoinRoomRequest:
		a.handleJoin(ctx, msg)

	case SetRoomReady:
		a.replyOp(ctx, a.handleSetReady(msg))

	case StartRoomRequest:
		a.replyOp(ctx, a.handleStart())

	case PlayerInputFrame:
		a.handleInputFrame(msg)

	case MovementClaim:
		a.handleMovementClaim(msg)

	case BallClaim:
		a.handleBallClaim(msg)

	case GoalClaim:
		a.handleGoalClaim(msg)

	case ChatRelay:
		a.handleChat(msg)

	case PauseRoomRequest:
		a.replyOp(ctx, a.handlePause(msg))

	case ResumeRoomRequest:
		a.replyOp(ctx, a.handleResume(msg))

	case LeaveRoom:
		a.handleLeave(msg)

	case PlayerSocketClosed:
		a.handleSocketClosed(msg.PlayerID)

	case PlayerReconnected:
		a.handleReconnected(msg)

	case graceExpired:
		a.handleGraceExpired(msg.PlayerID)

	case ForceEndRequest:
		a.handleForceEnd(msg)

	case GetSnapshotRequest:
		if ctx.RequestID() != "" {
			ctx.Reply(TakeSnapshot(a.room))
		}

	case bollywood.Stopping:
		fmt.Printf("RoomActor %s: Stopping.\n", a.room.ID)
		a.stopTicker()
		for _, timer := range a.graceTimers {
			timer.Stop()
		}
		if a.broadcasterPID != nil {
			a.engine.Stop(a.broadcasterPID)
		}

	case bollywood.Stopped:
		fmt.Printf("RoomActor %s: Stopped.\n", a.room.ID)

	default:
		fmt.Printf("RoomActor %s: Received unknown message type: %T\n", a.room.ID, msg)
		if ctx.RequestID() != "" {
			ctx.Reply(fmt.Errorf("unknown message type: %T", msg))
		}
	}
}

// --- Tick ---

// handleTick advances the simulation by exactly one step per wall tick. A
// late tick logs the overrun but never replays missed steps; game time simply
// stretches under sustained load.
func (a *RoomActor) handleTick() {
	now := time.Now()
	period := a.cfg.TickPeriod()
	if elapsed := now.Sub(a.lastTickAt); elapsed > period*3/2 && now.Sub(a.overrunLogged) > time.Second {
		fmt.Printf("RoomActor %s: tick overrun, %.1fms since last tick (period %.1fms)\n",
			a.room.ID, float64(elapsed.Microseconds())/1000, float64(period.Microseconds())/1000)
		a.overrunLogged = now
	}
	a.lastTickAt = now

	switch a.room.Status {
	case StatusPlaying:
		prevScore := a.room.Score
		a.prevBallPos = a.room.Ball.Position
		Step(a.room, a.inputs, a.cfg)

		if a.room.Score != prevScore {
			a.broadcastGoal(prevScore)
		}
		if a.room.Status.Terminal() {
			a.finalize()
			return
		}
		a.drainSignals()

	case StatusPaused:
		if p := a.room.Pause; p != nil && now.Sub(p.Since) >= a.cfg.PauseTimeout() {
			// A pause that outlives its window ends the game; the pauser
			// forfeits.
			pauser := p.RequestedBy
			if err := a.room.ForceEnd(WinTechnicalIssue, pauser); err == nil {
				a.finalize()
				return
			}
		}
	}

	a.engine.Send(a.broadcasterPID, BroadcastStateCommand{State: TakeSnapshot(a.room)}, a.selfPID)
}

// --- Seating and lifecycle ---

func (a *RoomActor) handleJoin(ctx bollywood.Context, msg JoinRoomRequest) {
	seat, err := a.room.Join(msg.PlayerID, msg.Character, a.cfg)
	resp := JoinRoomResponse{}
	switch err {
	case nil:
		resp.Accepted = true
		resp.Seat = seat
		if msg.Conn != nil {
			a.engine.Send(a.broadcasterPID, AddClient{PlayerID: msg.PlayerID, Conn: msg.Conn}, a.selfPID)
		}
		if a.binder != nil {
			a.binder.BindRoom(msg.PlayerID, a.room.ID, a.selfPID)
		}
		fmt.Printf("RoomActor %s: Player %s joined seat %s.\n", a.room.ID, msg.PlayerID, seat)
	case ErrRoomFull:
		resp.Code = "ROOM_FULL"
		resp.Reason = err.Error()
	default:
		resp.Code = "ROOM_NOT_WAITING"
		resp.Reason = err.Error()
	}
	if ctx.RequestID() != "" {
		ctx.Reply(resp)
	}
}

func (a *RoomActor) handleSetReady(msg SetRoomReady) OpResponse {
	if err := a.room.SetReady(msg.PlayerID, msg.Ready); err != nil {
		return Reject("NOT_SEATED", err.Error())
	}
	a.broadcastEvent("player_ready_update", map[string]interface{}{
		"playerId": msg.PlayerID,
		"ready":    msg.Ready,
	}, "")
	return Accept()
}

func (a *RoomActor) handleStart() OpResponse {
	if err := a.room.StartGame(); err != nil {
		return Reject("ROOM_NOT_READY", err.Error())
	}
	SpawnPositions(a.room, a.cfg)
	a.inputs = [2]IntentFrame{}
	a.prevBallPos = a.room.Ball.Position
	a.broadcastEvent("gameStarted", TakeSnapshot(a.room), "")
	fmt.Printf("RoomActor %s: Game started.\n", a.room.ID)
	return Accept()
}

func (a *RoomActor) handlePause(msg PauseRoomRequest) OpResponse {
	if err := a.room.RequestPause(msg.PlayerID, msg.Reason); err != nil {
		return Reject("NOT_PLAYING", err.Error())
	}
	a.broadcastEvent("gamePaused", map[string]interface{}{
		"reason":    msg.Reason,
		"pausedBy":  msg.PlayerID,
		"timeoutMs": a.cfg.PauseTimeoutMs,
	}, "")
	return Accept()
}

func (a *RoomActor) handleResume(msg ResumeRoomRequest) OpResponse {
	err := a.room.RequestResume(msg.PlayerID, false)
	switch err {
	case nil:
	case ErrNotPauser:
		return Reject("NOT_PAUSER", err.Error())
	default:
		return Reject("NOT_PAUSED", err.Error())
	}
	a.broadcastEvent("gameResumed", map[string]interface{}{"resumedBy": msg.PlayerID}, "")
	return Accept()
}

func (a *RoomActor) handleLeave(msg LeaveRoom) {
	if _, ok := a.room.SeatOf(msg.PlayerID); !ok {
		return
	}
	if a.room.Status == StatusPlaying || a.room.Status == StatusPaused {
		// Leaving a live game is a forfeit.
		if err := a.room.ForceEnd(WinForfeit, msg.PlayerID); err == nil {
			a.broadcastEvent("playerLeft", map[string]interface{}{
				"playerId": msg.PlayerID,
				"reason":   msg.Reason,
			}, msg.PlayerID)
			a.finalize()
		}
		return
	}

	status, err := a.room.DropPlayer(msg.PlayerID, msg.Reason)
	if err != nil {
		return
	}
	a.detachPlayer(msg.PlayerID)
	a.broadcastEvent("playerLeft", map[string]interface{}{
		"playerId": msg.PlayerID,
		"reason":   msg.Reason,
	}, "")
	if status == StatusAbandoned {
		a.finalize()
	}
}

// --- Disconnects ---

func (a *RoomActor) handleSocketClosed(playerID string) {
	if _, ok := a.room.SeatOf(playerID); !ok {
		return
	}
	if a.room.Status.Terminal() {
		return
	}

	if a.room.Status == StatusPlaying {
		a.room.Status = StatusPaused
		a.room.Pause = &PauseInfo{Reason: "playerLeft", Since: time.Now(), RequestedBy: playerID}
	}
	a.engine.Send(a.broadcasterPID, RemoveClient{PlayerID: playerID}, a.selfPID)
	a.broadcastEvent("player_disconnected", map[string]interface{}{
		"playerId": playerID,
		"graceMs":  a.cfg.DisconnectGraceMs,
	}, playerID)

	if timer, ok := a.graceTimers[playerID]; ok {
		timer.Stop()
	}
	engine, selfPID, id := a.engine, a.selfPID, playerID
	a.graceTimers[playerID] = time.AfterFunc(a.cfg.DisconnectGrace(), func() {
		engine.Send(selfPID, graceExpired{PlayerID: id}, nil)
	})
	fmt.Printf("RoomActor %s: Player %s disconnected, grace %dms.\n", a.room.ID, playerID, a.cfg.DisconnectGraceMs)
}

func (a *RoomActor) handleReconnected(msg PlayerReconnected) {
	if _, ok := a.room.SeatOf(msg.PlayerID); !ok {
		return
	}
	if timer, ok := a.graceTimers[msg.PlayerID]; ok {
		timer.Stop()
		delete(a.graceTimers, msg.PlayerID)
	}
	if msg.Conn != nil {
		a.engine.Send(a.broadcasterPID, AddClient{PlayerID: msg.PlayerID, Conn: msg.Conn}, a.selfPID)
	}
	if a.binder != nil {
		a.binder.BindRoom(msg.PlayerID, a.room.ID, a.selfPID)
	}
	if a.room.Status == StatusPaused {
		if p := a.room.Pause; p != nil && p.RequestedBy == msg.PlayerID && p.Reason == "playerLeft" {
			a.room.RequestResume(msg.PlayerID, true)
			a.broadcastEvent("gameResumed", map[string]interface{}{"resumedBy": msg.PlayerID}, "")
		}
	}
	a.broadcastEvent("player_reconnected", map[string]interface{}{"playerId": msg.PlayerID}, msg.PlayerID)
	fmt.Printf("RoomActor %s: Player %s reconnected.\n", a.room.ID, msg.PlayerID)
}

func (a *RoomActor) handleGraceExpired(playerID string) {
	delete(a.graceTimers, playerID)
	if a.room.Status.Terminal() {
		return
	}
	if _, ok := a.room.SeatOf(playerID); !ok {
		return
	}
	fmt.Printf("RoomActor %s: Player %s grace expired, forfeiting.\n", a.room.ID, playerID)
	if err := a.room.ForceEnd(WinDisconnection, playerID); err == nil {
		a.finalize()
	}
}

// handleForceEnd terminates the game for an out-of-band reason. A time-limit
// request is only honored once the game clock actually reached the limit;
// otherwise the requester gets an event_error and play continues.
func (a *RoomActor) handleForceEnd(msg ForceEndRequest) {
	if msg.Reason == WinTimeLimit && a.room.GameTimeMs < float64(a.cfg.TimeLimitSec)*1000 {
		a.notify(msg.RequestedBy, "event_error", map[string]interface{}{
			"event":  "request_game_end",
			"reason": "game clock has not reached the time limit",
		})
		return
	}
	if err := a.room.ForceEnd(msg.Reason, ""); err == nil {
		a.finalize()
	}
}

// --- Client claims ---

// handleInputFrame stores the latest intent frame for the next tick. Frames
// share the per-player rate window with position claims.
func (a *RoomActor) handleInputFrame(msg PlayerInputFrame) {
	seat, ok := a.room.SeatOf(msg.PlayerID)
	if !ok || a.room.Status != StatusPlaying {
		return
	}
	if !a.validator.NoteInput(msg.PlayerID, time.Now()) {
		a.notify(msg.PlayerID, "rate_limit_exceeded", map[string]interface{}{
			"event":        "player_input",
			"reason":       "input rate exceeded",
			"retryAfterMs": 1000,
		})
		a.drainSignals()
		return
	}
	a.inputs[seat] = msg.Frame
}

func (a *RoomActor) handleMovementClaim(msg MovementClaim) {
	seat, ok := a.room.SeatOf(msg.PlayerID)
	if !ok || a.room.Status != StatusPlaying {
		return
	}
	verdict := a.validator.CheckMovement(msg.PlayerID, msg.Position, msg.TimestampMs, time.Now())
	if verdict.OK {
		p := a.room.Players[seat]
		p.Position = msg.Position
		p.Velocity = msg.Velocity
		a.notify(msg.PlayerID, "movement_ack", map[string]interface{}{
			"sequenceId":     msg.SequenceID,
			"serverPosition": p.Position,
		})
	} else if verdict.RateLimited {
		a.notify(msg.PlayerID, "rate_limit_exceeded", map[string]interface{}{
			"event":        "player_movement",
			"reason":       verdict.Reason,
			"retryAfterMs": 1000,
		})
	} else {
		a.notify(msg.PlayerID, "movement_rejected", map[string]interface{}{
			"sequenceId": msg.SequenceID,
			"reason":     verdict.Reason,
			"correctedState": map[string]interface{}{
				"position": verdict.Corrected,
			},
		})
	}
	a.drainSignals()
}

func (a *RoomActor) handleBallClaim(msg BallClaim) {
	if _, ok := a.room.SeatOf(msg.PlayerID); !ok || a.room.Status != StatusPlaying {
		return
	}
	verdict := a.validator.CheckBall(msg.PlayerID, a.room.Ball, msg.Position, msg.Velocity)
	if verdict.OK {
		a.room.Ball.Position = msg.Position
		a.room.Ball.Velocity = msg.Velocity
	} else {
		a.notify(msg.PlayerID, "ball_update_rejected", map[string]interface{}{
			"reason":   verdict.Reason,
			"position": verdict.Corrected,
			"velocity": verdict.Velocity,
		})
	}
	a.drainSignals()
}

func (a *RoomActor) handleGoalClaim(msg GoalClaim) {
	if a.room.Status != StatusPlaying {
		return
	}
	seat, verdict := a.validator.CheckGoalClaim(a.room, msg.PlayerID, a.prevBallPos, a.room.Ball.Position)
	cooled := a.room.GameTimeMs-a.room.LastGoalMs >= float64(a.cfg.GoalCooldownMs)
	if !verdict.OK || !cooled {
		reason := verdict.Reason
		if verdict.OK {
			reason = "goal cooldown active"
		}
		a.notify(msg.PlayerID, "goal_rejected", map[string]interface{}{"reason": reason})
		return
	}

	prevScore := a.room.Score
	a.room.Score[seat]++
	a.room.LastGoalMs = a.room.GameTimeMs
	a.room.Ball.Reset(a.cfg)
	checkEnd(a.room, a.cfg)
	a.broadcastGoal(prevScore)
	if a.room.Status.Terminal() {
		a.finalize()
	}
}

func (a *RoomActor) handleChat(msg ChatRelay) {
	if _, ok := a.room.SeatOf(msg.PlayerID); !ok {
		return
	}
	payload := map[string]interface{}{
		"playerId": msg.PlayerID,
		"username": msg.Username,
		"message":  msg.Message,
		"type":     msg.Type,
	}
	if msg.Type == "private" && msg.Target != "" {
		a.notify(msg.Target, "chat_message", payload)
		return
	}
	a.broadcastEvent("chat_message", payload, "")
}

// --- Terminal path ---

func (a *RoomActor) broadcastGoal(prevScore [2]uint16) {
	scoredSeat := SeatLeft
	if a.room.Score[SeatRight] > prevScore[SeatRight] {
		scoredSeat = SeatRight
	}
	payload := map[string]interface{}{
		"side": scoredSeat.String(),
		"score": map[string]uint16{
			"left":  a.room.Score[SeatLeft],
			"right": a.room.Score[SeatRight],
		},
		"gameTime":  a.room.GameTimeMs / 1000,
		"gameEnded": a.room.Status.Terminal(),
	}
	if p := a.room.Players[scoredSeat]; p != nil {
		payload["scorerId"] = p.ID
	}
	a.broadcastEvent("goal_confirmed", payload, "")
	fmt.Printf("RoomActor %s: Goal for %s, score %d-%d.\n",
		a.room.ID, scoredSeat, a.room.Score[SeatLeft], a.room.Score[SeatRight])
}

// finalize runs exactly once: stamps the end, persists the result, tells the
// clients and the manager, and stops the tick loop.
func (a *RoomActor) finalize() {
	if a.finalized {
		return
	}
	a.finalized = true
	if a.room.EndedAt.IsZero() {
		a.room.EndedAt = time.Now()
	}
	a.stopTicker()

	result := MatchResult{
		RoomID:     a.room.ID,
		ScoreLeft:  a.room.Score[SeatLeft],
		ScoreRight: a.room.Score[SeatRight],
		Winner:     a.room.Winner,
		WinReason:  a.room.WinReason,
		DurationMs: a.room.GameTimeMs,
		EndedAt:    a.room.EndedAt,
	}
	for _, seat := range []Seat{SeatLeft, SeatRight} {
		if p := a.room.Players[seat]; p != nil {
			result.Players[seat] = p.ID
		}
	}
	if a.recorder != nil {
		a.recorder.Record(result)
	}

	a.broadcastEvent("gameEnded", map[string]interface{}{
		"winner":    a.room.Winner,
		"winReason": a.room.WinReason,
		"score": map[string]uint16{
			"left":  a.room.Score[SeatLeft],
			"right": a.room.Score[SeatRight],
		},
		"durationMs": a.room.GameTimeMs,
	}, "")
	a.engine.Send(a.broadcasterPID, ReleaseClients{}, a.selfPID)

	for _, seat := range []Seat{SeatLeft, SeatRight} {
		if p := a.room.Players[seat]; p != nil {
			a.detachPlayer(p.ID)
		}
	}
	if a.roomManagerPID != nil {
		a.engine.Send(a.roomManagerPID, RoomTerminal{RoomID: a.room.ID}, a.selfPID)
	}
	fmt.Printf("RoomActor %s: Finished, winner=%s reason=%s score=%d-%d.\n",
		a.room.ID, a.room.Winner, a.room.WinReason, a.room.Score[SeatLeft], a.room.Score[SeatRight])
}

func (a *RoomActor) detachPlayer(playerID string) {
	a.validator.ForgetPlayer(playerID)
	if timer, ok := a.graceTimers[playerID]; ok {
		timer.Stop()
		delete(a.graceTimers, playerID)
	}
	if a.binder != nil {
		a.binder.UnbindRoom(playerID)
	}
}

// --- Plumbing ---

func (a *RoomActor) replyOp(ctx bollywood.Context, resp OpResponse) {
	if ctx.RequestID() != "" {
		ctx.Reply(resp)
	}
}

func (a *RoomActor) notify(playerID, event string, payload interface{}) {
	if a.binder != nil {
		a.binder.SendToPlayer(playerID, event, payload)
	}
}

func (a *RoomActor) broadcastEvent(event string, payload interface{}, except string) {
	a.engine.Send(a.broadcasterPID, BroadcastEventCommand{Event: event, Payload: payload, Except: except}, a.selfPID)
}

func (a *RoomActor) drainSignals() {
	for _, sig := range a.validator.Signals() {
		fmt.Printf("RoomActor %s: anti-cheat signal player=%s kind=%s severity=%s detail=%q\n",
			a.room.ID, sig.PlayerID, sig.Kind, sig.Severity, sig.Detail)
	}
}

func (a *RoomActor) stopTicker() {
	if a.ticker != nil {
		a.ticker.Stop()
	}
	select {
	case <-a.stopTickerCh:
	default:
		close(a.stopTickerCh)
	}
}

// runTickerLoop forwards ticks into the actor's own mailbox so the simulation
// stays single-threaded.
func (a *RoomActor) runTickerLoop(ctx bollywood.Context) {
	engine := ctx.Engine()
	selfPID := ctx.Self()
	if engine == nil || selfPID == nil {
		fmt.Printf("ERROR: RoomActor %s ticker cannot start, invalid engine/PID.\n", a.room.ID)
		return
	}

	tickMsg := RoomTick{}
	for {
		select {
		case <-a.stopTickerCh:
			return
		case <-a.ticker.C:
			select {
			case <-a.stopTickerCh:
				return
			default:
				engine.Send(selfPID, tickMsg, nil)
			}
		}
	}
}
