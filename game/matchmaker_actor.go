// File: game/matchmaker_actor.go
package game

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/lguibr/bollywood"
	"github.com/headsoccer/server/store"
	"github.com/headsoccer/server/utils"
)

const (
	queueKeyPrefix = "mm:queue:"
	askTimeout     = 2 * time.Second
	storeTimeout   = 2 * time.Second
	sweepInterval  = time.Second

	// estimatedWaitPerPosition is the advertised wait per queue slot ahead.
	estimatedWaitPerPosition = int64(5000)
)

// MatchmakerActor runs FIFO pairing per game mode. Queues live in the store
// as sorted sets keyed by enqueue time, so their order survives a restart;
// request metadata and pending matches are in-memory, rebuilt by the players
// re-queuing.
type MatchmakerActor struct {
	engine         *bollywood.Engine
	cfg            utils.Config
	st             store.Store
	binder         SessionBinder
	roomManagerPID *bollywood.PID
	selfPID        *bollywood.PID

	requests    map[string]*MatchRequest // playerID -> queue entry
	pending     map[string]*PendingMatch // matchID -> pending match
	playerMatch map[string]string        // playerID -> matchID
	readyTimers map[string]*time.Timer   // matchID -> ready window timer

	sweeper     *time.Ticker
	stopSweepCh chan struct{}
}

// NewMatchmakerProducer creates a producer for the MatchmakerActor.
func NewMatchmakerProducer(engine *bollywood.Engine, cfg utils.Config, st store.Store, binder SessionBinder, roomManagerPID *bollywood.PID) bollywood.Producer {
	return func() bollywood.Actor {
		return &MatchmakerActor{
			engine:         engine,
			cfg:            cfg,
			st:             st,
			binder:         binder,
			roomManagerPID: roomManagerPID,
			requests:       make(map[string]*MatchRequest),
			pending:        make(map[string]*PendingMatch),
			playerMatch:    make(map[string]string),
			readyTimers:    make(map[string]*time.Timer),
			stopSweepCh:    make(chan struct{}),
		}
	}
}

func (a *MatchmakerActor) Receive(ctx bollywood.Context) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("PANIC recovered in MatchmakerActor Receive: %v\nStack trace:\n%s\n", r, string(debug.Stack()))
			if ctx.RequestID() != "" {
				ctx.Reply(fmt.Errorf("matchmaker panicked: %v", r))
			}
		}
	}()

	if a.selfPID == nil {
		a.selfPID = ctx.Self()
	}

	switch msg := ctx.Message().(type) {
	case bollywood.Started:
		a.sweeper = time.NewTicker(sweepInterval)
		go a.runSweepLoop(ctx)
		fmt.Printf("MatchmakerActor %s: Started.\n", a.selfPID)

	case JoinQueueRequest:
		resp := a.handleJoinQueue(msg)
		if ctx.RequestID() != "" {
			ctx.Reply(resp)
		}
		if resp.Accepted {
			a.tryPair(msg.Mode)
		}

	case LeaveQueueRequest:
		resp := a.handleLeaveQueue(msg)
		if ctx.RequestID() != "" {
			ctx.Reply(resp)
		}

	case ReadyUp:
		resp := a.handleReadyUp(msg)
		if ctx.RequestID() != "" {
			ctx.Reply(resp)
		}

	case PlayerDropped:
		a.handlePlayerDropped(msg.PlayerID)

	case pairSweep:
		for _, mode := range []GameMode{ModeCasual, ModeRanked, ModeTournament} {
			a.tryPair(mode)
		}

	case readyTimeout:
		a.handleReadyTimeout(msg.MatchID)

	case bollywood.Stopping:
		fmt.Printf("MatchmakerActor %s: Stopping.\n", a.selfPID)
		if a.sweeper != nil {
			a.sweeper.Stop()
		}
		select {
		case <-a.stopSweepCh:
		default:
			close(a.stopSweepCh)
		}
		for _, timer := range a.readyTimers {
			timer.Stop()
		}

	case bollywood.Stopped:
		fmt.Printf("MatchmakerActor %s: Stopped.\n", a.selfPID)

	default:
		fmt.Printf("MatchmakerActor %s: Received unknown message type: %T\n", a.selfPID, msg)
		if ctx.RequestID() != "" {
			ctx.Reply(fmt.Errorf("unknown message type: %T", msg))
		}
	}
}

// --- Queue operations ---

func (a *MatchmakerActor) handleJoinQueue(msg JoinQueueRequest) JoinQueueResponse {
	if !ValidMode(msg.Mode) {
		return JoinQueueResponse{Code: CodeInvalidMode, Reason: fmt.Sprintf("unknown mode %q", msg.Mode)}
	}
	if _, inMatch := a.playerMatch[msg.PlayerID]; inMatch {
		return JoinQueueResponse{Code: CodeInGame, Reason: "player has a pending match"}
	}
	if _, queued := a.requests[msg.PlayerID]; queued {
		return JoinQueueResponse{Code: CodeAlreadyQueued, Reason: "player is already queued"}
	}

	now := time.Now()
	req := &MatchRequest{
		PlayerID:    msg.PlayerID,
		Mode:        msg.Mode,
		Preferences: msg.Preferences,
		EnqueuedAt:  now,
		QueueID:     uuid.NewString(),
	}

	sctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	key := queueKeyPrefix + string(msg.Mode)
	if err := a.st.ZAdd(sctx, key, store.Member{Score: float64(now.UnixMilli()), Value: msg.PlayerID}); err != nil {
		fmt.Printf("MatchmakerActor %s: ZAdd failed for %s: %v\n", a.selfPID, msg.PlayerID, err)
		return JoinQueueResponse{Code: CodeConnectionError, Reason: "queue storage unavailable"}
	}
	position := 1
	if n, err := a.st.ZCard(sctx, key); err == nil {
		position = int(n)
	}

	a.requests[msg.PlayerID] = req
	fmt.Printf("MatchmakerActor %s: Player %s joined %s queue at position %d.\n", a.selfPID, msg.PlayerID, msg.Mode, position)
	return JoinQueueResponse{
		Accepted:        true,
		Position:        position,
		EstimatedWaitMs: int64(position-1) * estimatedWaitPerPosition / 2,
		QueueID:         req.QueueID,
	}
}

func (a *MatchmakerActor) handleLeaveQueue(msg LeaveQueueRequest) LeaveQueueResponse {
	req, queued := a.requests[msg.PlayerID]
	if !queued {
		return LeaveQueueResponse{Code: CodeNotQueued}
	}
	a.removeFromQueue(req)
	fmt.Printf("MatchmakerActor %s: Player %s left %s queue (%s).\n", a.selfPID, msg.PlayerID, req.Mode, msg.Reason)
	return LeaveQueueResponse{
		Accepted:    true,
		QueueTimeMs: time.Since(req.EnqueuedAt).Milliseconds(),
	}
}

func (a *MatchmakerActor) removeFromQueue(req *MatchRequest) {
	sctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := a.st.ZRem(sctx, queueKeyPrefix+string(req.Mode), req.PlayerID); err != nil {
		fmt.Printf("MatchmakerActor %s: ZRem failed for %s: %v\n", a.selfPID, req.PlayerID, err)
	}
	delete(a.requests, req.PlayerID)
}

// --- Pairing ---

// tryPair pops the two oldest entries of a mode's queue, reserves a room and
// seats both players. It loops until the queue has fewer than two entries or
// room capacity runs out.
func (a *MatchmakerActor) tryPair(mode GameMode) {
	key := queueKeyPrefix + string(mode)
	for {
		sctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		members, err := a.st.ZRange(sctx, key, 0, 1)
		cancel()
		if err != nil {
			fmt.Printf("MatchmakerActor %s: ZRange failed for %s: %v\n", a.selfPID, mode, err)
			return
		}
		if len(members) < 2 {
			return
		}

		first, second := members[0], members[1]
		reqA, okA := a.requests[first]
		reqB, okB := a.requests[second]
		if !okA || !okB {
			// Stale queue entry from a lost session; drop it and retry.
			sctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			if !okA {
				a.st.ZRem(sctx, key, first)
			}
			if !okB {
				a.st.ZRem(sctx, key, second)
			}
			cancel()
			continue
		}

		if !a.pairPlayers(mode, reqA, reqB) {
			return
		}
	}
}

func (a *MatchmakerActor) pairPlayers(mode GameMode, reqA, reqB *MatchRequest) bool {
	reply, err := a.engine.Ask(a.roomManagerPID, ReserveRoomRequest{}, askTimeout)
	if err != nil {
		fmt.Printf("MatchmakerActor %s: Room reservation failed: %v\n", a.selfPID, err)
		return false
	}
	reservation, ok := reply.(ReserveRoomResponse)
	if !ok || reservation.RoomPID == nil {
		// At capacity; leave both queued and try again on the next sweep.
		return false
	}

	matchID := uuid.NewString()
	players := [2]string{reqA.PlayerID, reqB.PlayerID}
	for seat, req := range []*MatchRequest{reqA, reqB} {
		join := JoinRoomRequest{
			PlayerID:  req.PlayerID,
			Character: req.Preferences["character"],
			Conn:      a.binder.ConnOf(req.PlayerID),
		}
		reply, err := a.engine.Ask(reservation.RoomPID, join, askTimeout)
		joined, _ := reply.(JoinRoomResponse)
		if err != nil || !joined.Accepted {
			fmt.Printf("MatchmakerActor %s: Failed to seat %s in room %s (seat %d): %v\n",
				a.selfPID, req.PlayerID, reservation.RoomID, seat, err)
			a.engine.Send(a.roomManagerPID, ReleaseRoom{RoomID: reservation.RoomID}, a.selfPID)
			return false
		}
	}

	a.removeFromQueue(reqA)
	a.removeFromQueue(reqB)

	match := &PendingMatch{
		MatchID:     matchID,
		Mode:        mode,
		Players:     players,
		RoomID:      reservation.RoomID,
		ReadyStates: make(map[string]bool),
		CreatedAt:   time.Now(),
	}
	a.pending[matchID] = match
	for _, id := range players {
		a.playerMatch[id] = matchID
	}

	for seat, id := range players {
		a.binder.SendToPlayer(id, "match_found", map[string]interface{}{
			"matchId":      matchID,
			"roomId":       reservation.RoomID,
			"gameMode":     mode,
			"side":         Seat(seat).String(),
			"opponent":     match.Opponent(id),
			"readyTimeout": a.cfg.ReadyTimeoutMs,
		})
	}

	engine, selfPID := a.engine, a.selfPID
	a.readyTimers[matchID] = time.AfterFunc(a.cfg.ReadyTimeout(), func() {
		engine.Send(selfPID, readyTimeout{MatchID: matchID}, nil)
	})
	fmt.Printf("MatchmakerActor %s: Matched %s vs %s in room %s (%s).\n",
		a.selfPID, players[0], players[1], reservation.RoomID, mode)
	return true
}

// --- Ready window ---

func (a *MatchmakerActor) handleReadyUp(msg ReadyUp) OpResponse {
	matchID, ok := a.playerMatch[msg.PlayerID]
	if !ok {
		return Reject("NOT_IN_MATCH", "player has no pending match")
	}
	match := a.pending[matchID]
	if match == nil {
		delete(a.playerMatch, msg.PlayerID)
		return Reject("NOT_IN_MATCH", "match no longer pending")
	}

	match.ReadyStates[msg.PlayerID] = msg.Ready
	roomPID := a.roomPIDOf(msg.PlayerID)
	if roomPID != nil {
		a.engine.Send(roomPID, SetRoomReady{PlayerID: msg.PlayerID, Ready: msg.Ready}, a.selfPID)
	}

	if match.BothReady() && roomPID != nil {
		a.startMatch(match, roomPID)
	}
	return Accept()
}

func (a *MatchmakerActor) startMatch(match *PendingMatch, roomPID *bollywood.PID) {
	if timer, ok := a.readyTimers[match.MatchID]; ok {
		timer.Stop()
		delete(a.readyTimers, match.MatchID)
	}
	delete(a.pending, match.MatchID)

	sctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	for _, id := range match.Players {
		delete(a.playerMatch, id)
		if err := a.st.SetEx(sctx, sessionKeyPrefix+id, match.RoomID, resultTTL); err != nil {
			fmt.Printf("MatchmakerActor %s: Failed to store session for %s: %v\n", a.selfPID, id, err)
		}
		a.binder.SendToPlayer(id, "room_assigned", map[string]interface{}{
			"matchId": match.MatchID,
			"roomId":  match.RoomID,
		})
	}
	cancel()

	// SetRoomReady for both players is already in the room's mailbox, so the
	// start request observes a Ready room.
	a.engine.Send(roomPID, StartRoomRequest{}, a.selfPID)
	fmt.Printf("MatchmakerActor %s: Match %s starting in room %s.\n", a.selfPID, match.MatchID, match.RoomID)
}

// handleReadyTimeout cancels a match whose ready window lapsed. Players who
// had readied are put back at the front of their queue; the rest are dropped.
func (a *MatchmakerActor) handleReadyTimeout(matchID string) {
	match := a.pending[matchID]
	if match == nil {
		return
	}
	delete(a.pending, matchID)
	delete(a.readyTimers, matchID)

	ready := match.ReadyPlayers()
	requeued := make(map[string]bool, len(ready))
	sctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	for i, id := range ready {
		// Re-enqueue ahead of everyone currently waiting, preserving the
		// ready players' relative order.
		score := float64(-time.Now().UnixMilli() + int64(i))
		if err := a.st.ZAdd(sctx, queueKeyPrefix+string(match.Mode), store.Member{Score: score, Value: id}); err != nil {
			fmt.Printf("MatchmakerActor %s: Requeue failed for %s: %v\n", a.selfPID, id, err)
			continue
		}
		a.requests[id] = &MatchRequest{
			PlayerID:   id,
			Mode:       match.Mode,
			EnqueuedAt: time.Now(),
			QueueID:    uuid.NewString(),
		}
		requeued[id] = true
	}
	cancel()

	for _, id := range match.Players {
		delete(a.playerMatch, id)
		a.binder.UnbindRoom(id)
		a.binder.SendToPlayer(id, "match_cancelled", map[string]interface{}{
			"matchId":  matchID,
			"reason":   "ready_timeout",
			"policy":   "requeue_ready",
			"requeued": requeued[id],
		})
	}

	a.engine.Send(a.roomManagerPID, ReleaseRoom{RoomID: match.RoomID}, a.selfPID)
	fmt.Printf("MatchmakerActor %s: Match %s cancelled on ready timeout, %d requeued.\n", a.selfPID, matchID, len(requeued))
}

// --- Disconnects ---

func (a *MatchmakerActor) handlePlayerDropped(playerID string) {
	if req, queued := a.requests[playerID]; queued {
		a.removeFromQueue(req)
		fmt.Printf("MatchmakerActor %s: Dropped %s removed from %s queue.\n", a.selfPID, playerID, req.Mode)
	}

	matchID, ok := a.playerMatch[playerID]
	if !ok {
		return
	}
	match := a.pending[matchID]
	delete(a.playerMatch, playerID)
	if match == nil {
		return
	}
	delete(a.pending, matchID)
	if timer, ok := a.readyTimers[matchID]; ok {
		timer.Stop()
		delete(a.readyTimers, matchID)
	}

	opponent := match.Opponent(playerID)
	delete(a.playerMatch, opponent)
	a.binder.UnbindRoom(playerID)
	a.binder.UnbindRoom(opponent)

	if match.ReadyStates[opponent] {
		sctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		if err := a.st.ZAdd(sctx, queueKeyPrefix+string(match.Mode), store.Member{Score: float64(-time.Now().UnixMilli()), Value: opponent}); err == nil {
			a.requests[opponent] = &MatchRequest{
				PlayerID:   opponent,
				Mode:       match.Mode,
				EnqueuedAt: time.Now(),
				QueueID:    uuid.NewString(),
			}
		}
		cancel()
	}
	a.binder.SendToPlayer(opponent, "match_cancelled", map[string]interface{}{
		"matchId":  matchID,
		"reason":   "opponent_disconnected",
		"policy":   "requeue_ready",
		"requeued": match.ReadyStates[opponent],
	})

	a.engine.Send(a.roomManagerPID, ReleaseRoom{RoomID: match.RoomID}, a.selfPID)
	fmt.Printf("MatchmakerActor %s: Match %s cancelled, %s disconnected.\n", a.selfPID, matchID, playerID)
}

// --- Plumbing ---

func (a *MatchmakerActor) roomPIDOf(playerID string) *bollywood.PID {
	return a.binder.RoomPIDOf(playerID)
}

func (a *MatchmakerActor) runSweepLoop(ctx bollywood.Context) {
	engine := ctx.Engine()
	selfPID := ctx.Self()
	if engine == nil || selfPID == nil {
		fmt.Printf("ERROR: MatchmakerActor sweep loop cannot start, invalid engine/PID.\n")
		return
	}
	for {
		select {
		case <-a.stopSweepCh:
			return
		case <-a.sweeper.C:
			select {
			case <-a.stopSweepCh:
				return
			default:
				engine.Send(selfPID, pairSweep{}, nil)
			}
		}
	}
}
