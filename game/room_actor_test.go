// File: game/room_actor_test.go
package game

import (
	"testing"
	"time"

	"github.com/lguibr/bollywood"
	"github.com/stretchr/testify/assert"

	"github.com/headsoccer/server/store"
	"github.com/headsoccer/server/utils"
)

func spawnRoomFixture(t *testing.T, cfg utils.Config) (*bollywood.Engine, *bollywood.PID, *recordingBinder, store.Store) {
	t.Helper()
	engine := bollywood.NewEngine()
	t.Cleanup(func() { engine.Shutdown(2 * time.Second) })

	binder := newRecordingBinder()
	st := store.NewMemory()
	recorder := NewResultRecorder(st)
	roomPID := engine.Spawn(bollywood.NewProps(NewRoomActorProducer(engine, cfg, "room-1", nil, binder, recorder)))
	return engine, roomPID, binder, st
}

func seatBoth(t *testing.T, engine *bollywood.Engine, roomPID *bollywood.PID) {
	t.Helper()
	for _, id := range []string{"p1", "p2"} {
		reply, err := engine.Ask(roomPID, JoinRoomRequest{PlayerID: id}, 2*time.Second)
		assert.NoError(t, err)
		resp, ok := reply.(JoinRoomResponse)
		assert.True(t, ok)
		assert.True(t, resp.Accepted)
	}
}

func startPlaying(t *testing.T, engine *bollywood.Engine, roomPID *bollywood.PID) {
	t.Helper()
	seatBoth(t, engine, roomPID)
	for _, id := range []string{"p1", "p2"} {
		reply, err := engine.Ask(roomPID, SetRoomReady{PlayerID: id, Ready: true}, 2*time.Second)
		assert.NoError(t, err)
		op, _ := reply.(OpResponse)
		assert.True(t, op.Accepted)
	}
	reply, err := engine.Ask(roomPID, StartRoomRequest{}, 2*time.Second)
	assert.NoError(t, err)
	op, _ := reply.(OpResponse)
	assert.True(t, op.Accepted)
}

func snapshotOf(t *testing.T, engine *bollywood.Engine, roomPID *bollywood.PID) Snapshot {
	t.Helper()
	reply, err := engine.Ask(roomPID, GetSnapshotRequest{}, 2*time.Second)
	assert.NoError(t, err)
	snap, ok := reply.(Snapshot)
	assert.True(t, ok)
	return snap
}

func TestRoomActorSeatsAndStarts(t *testing.T) {
	cfg := testConfig()
	engine, roomPID, _, _ := spawnRoomFixture(t, cfg)

	startPlaying(t, engine, roomPID)
	snap := snapshotOf(t, engine, roomPID)
	assert.Equal(t, "PLAYING", snap.GameState)
	assert.Len(t, snap.Players, 2)
}

func TestRoomActorRejectsThirdPlayer(t *testing.T) {
	cfg := testConfig()
	engine, roomPID, _, _ := spawnRoomFixture(t, cfg)
	seatBoth(t, engine, roomPID)

	reply, err := engine.Ask(roomPID, JoinRoomRequest{PlayerID: "p3"}, 2*time.Second)
	assert.NoError(t, err)
	resp, _ := reply.(JoinRoomResponse)
	assert.False(t, resp.Accepted)
	assert.Equal(t, "ROOM_FULL", resp.Code)
}

func TestRoomActorGameTimeAdvances(t *testing.T) {
	cfg := testConfig()
	engine, roomPID, _, _ := spawnRoomFixture(t, cfg)
	startPlaying(t, engine, roomPID)

	time.Sleep(300 * time.Millisecond)
	snap := snapshotOf(t, engine, roomPID)
	assert.Greater(t, snap.GameTime, 0.0, "ticker should drive game time forward")
}

func TestRoomActorPauseFreezesSimulation(t *testing.T) {
	cfg := testConfig()
	engine, roomPID, _, _ := spawnRoomFixture(t, cfg)
	startPlaying(t, engine, roomPID)

	reply, err := engine.Ask(roomPID, PauseRoomRequest{PlayerID: "p1", Reason: "breather"}, 2*time.Second)
	assert.NoError(t, err)
	op, _ := reply.(OpResponse)
	assert.True(t, op.Accepted)

	frozen := snapshotOf(t, engine, roomPID)
	assert.Equal(t, "PAUSED", frozen.GameState)
	time.Sleep(150 * time.Millisecond)
	later := snapshotOf(t, engine, roomPID)
	assert.Equal(t, frozen.GameTime, later.GameTime, "paused rooms must not advance game time")

	// Only the pauser may resume.
	reply, err = engine.Ask(roomPID, ResumeRoomRequest{PlayerID: "p2"}, 2*time.Second)
	assert.NoError(t, err)
	op, _ = reply.(OpResponse)
	assert.False(t, op.Accepted)
	assert.Equal(t, "NOT_PAUSER", op.Code)

	reply, err = engine.Ask(roomPID, ResumeRoomRequest{PlayerID: "p1"}, 2*time.Second)
	assert.NoError(t, err)
	op, _ = reply.(OpResponse)
	assert.True(t, op.Accepted)
}

func TestRoomActorPauseTimeoutForceEnds(t *testing.T) {
	cfg := testConfig()
	cfg.PauseTimeoutMs = 150
	engine, roomPID, _, st := spawnRoomFixture(t, cfg)
	startPlaying(t, engine, roomPID)

	reply, err := engine.Ask(roomPID, PauseRoomRequest{PlayerID: "p2", Reason: "afk"}, 2*time.Second)
	assert.NoError(t, err)
	op, _ := reply.(OpResponse)
	assert.True(t, op.Accepted)

	waitFor(t, 3*time.Second, func() bool {
		return snapshotOf(t, engine, roomPID).GameState == "FINISHED"
	}, "stalled pause should force-end the game")

	// The pauser forfeits; the result lands in the store.
	recorder := NewResultRecorder(st)
	result, err := recorder.Load(testCtx(), "room-1")
	assert.NoError(t, err)
	assert.Equal(t, WinnerLeft, result.Winner)
	assert.Equal(t, WinTechnicalIssue, result.WinReason)
}

func TestRoomActorDisconnectGraceForfeits(t *testing.T) {
	cfg := testConfig()
	cfg.DisconnectGraceMs = 150
	engine, roomPID, _, st := spawnRoomFixture(t, cfg)
	startPlaying(t, engine, roomPID)

	engine.Send(roomPID, PlayerSocketClosed{PlayerID: "p2"}, nil)

	// The room pauses for the grace window first.
	waitFor(t, 2*time.Second, func() bool {
		return snapshotOf(t, engine, roomPID).GameState == "PAUSED"
	}, "disconnect should pause the game")

	waitFor(t, 3*time.Second, func() bool {
		return snapshotOf(t, engine, roomPID).GameState == "FINISHED"
	}, "grace expiry should forfeit the game")

	recorder := NewResultRecorder(st)
	result, err := recorder.Load(testCtx(), "room-1")
	assert.NoError(t, err)
	assert.Equal(t, WinnerLeft, result.Winner)
	assert.Equal(t, WinDisconnection, result.WinReason)
}

func TestRoomActorReconnectCancelsForfeit(t *testing.T) {
	cfg := testConfig()
	cfg.DisconnectGraceMs = 60000
	engine, roomPID, _, _ := spawnRoomFixture(t, cfg)
	startPlaying(t, engine, roomPID)

	engine.Send(roomPID, PlayerSocketClosed{PlayerID: "p2"}, nil)
	waitFor(t, 2*time.Second, func() bool {
		return snapshotOf(t, engine, roomPID).GameState == "PAUSED"
	}, "disconnect should pause the game")

	engine.Send(roomPID, PlayerReconnected{PlayerID: "p2"}, nil)
	waitFor(t, 2*time.Second, func() bool {
		return snapshotOf(t, engine, roomPID).GameState == "PLAYING"
	}, "reconnect within grace should resume the game")
}

func TestRoomActorForfeitAwardsOpponent(t *testing.T) {
	cfg := testConfig()
	engine, roomPID, _, st := spawnRoomFixture(t, cfg)
	startPlaying(t, engine, roomPID)

	engine.Send(roomPID, LeaveRoom{PlayerID: "p1", Reason: "rage quit"}, nil)
	waitFor(t, 2*time.Second, func() bool {
		return snapshotOf(t, engine, roomPID).GameState == "FINISHED"
	}, "leaving a live game forfeits it")

	recorder := NewResultRecorder(st)
	result, err := recorder.Load(testCtx(), "room-1")
	assert.NoError(t, err)
	assert.Equal(t, WinnerRight, result.Winner)
	assert.Equal(t, WinForfeit, result.WinReason)
}

func TestRoomActorEarlyTimeUpRequestRejected(t *testing.T) {
	cfg := testConfig()
	engine, roomPID, binder, _ := spawnRoomFixture(t, cfg)
	startPlaying(t, engine, roomPID)

	// Seconds into a match the clock is nowhere near the limit; the request
	// must not end the game, whatever the score is.
	engine.Send(roomPID, ForceEndRequest{Reason: WinTimeLimit, RequestedBy: "p1"}, nil)
	waitFor(t, 2*time.Second, func() bool {
		return contains(binder.eventsFor("p1"), "event_error")
	}, "premature time-up request should be rejected")
	assert.Equal(t, "PLAYING", snapshotOf(t, engine, roomPID).GameState)
}

func TestRoomActorMutualAgreementEndsGame(t *testing.T) {
	cfg := testConfig()
	engine, roomPID, _, st := spawnRoomFixture(t, cfg)
	startPlaying(t, engine, roomPID)

	engine.Send(roomPID, ForceEndRequest{Reason: WinMutualAgreement, RequestedBy: "p1"}, nil)
	waitFor(t, 2*time.Second, func() bool {
		return snapshotOf(t, engine, roomPID).GameState == "FINISHED"
	}, "mutual agreement ends the game")

	recorder := NewResultRecorder(st)
	result, err := recorder.Load(testCtx(), "room-1")
	assert.NoError(t, err)
	assert.Equal(t, WinMutualAgreement, result.WinReason)
	assert.Equal(t, WinnerDraw, result.Winner, "equal score ends in a draw")
}

func TestRoomActorInputFrameRateLimited(t *testing.T) {
	cfg := testConfig()
	engine, roomPID, binder, _ := spawnRoomFixture(t, cfg)
	startPlaying(t, engine, roomPID)

	// Well past the per-second allowance in one burst.
	for i := 0; i < cfg.MaxInputRate+20; i++ {
		engine.Send(roomPID, PlayerInputFrame{PlayerID: "p1", Frame: IntentFrame{Right: true}}, nil)
	}
	waitFor(t, 2*time.Second, func() bool {
		return contains(binder.eventsFor("p1"), "rate_limit_exceeded")
	}, "intent frames beyond the window should be rejected")
}

func TestRoomActorBallClaimRejectedAtKickoff(t *testing.T) {
	cfg := testConfig()
	engine, roomPID, binder, _ := spawnRoomFixture(t, cfg)
	startPlaying(t, engine, roomPID)

	// Nobody has touched the ball yet, so the claim bounces with the server
	// state attached.
	engine.Send(roomPID, BallClaim{
		PlayerID: "p1",
		Position: Vec2{X: 700, Y: 300},
		Velocity: Vec2{X: 200, Y: 0},
	}, nil)
	waitFor(t, 2*time.Second, func() bool {
		return contains(binder.eventsFor("p1"), "ball_update_rejected")
	}, "kickoff ball claim should be rejected")
}

func TestRoomActorMovementClaimGate(t *testing.T) {
	cfg := testConfig()
	engine, roomPID, binder, _ := spawnRoomFixture(t, cfg)
	startPlaying(t, engine, roomPID)

	engine.Send(roomPID, MovementClaim{
		PlayerID:   "p1",
		Position:   Vec2{X: 450, Y: 700},
		Velocity:   Vec2{X: 50, Y: 0},
		SequenceID: 7,
	}, nil)
	waitFor(t, 2*time.Second, func() bool {
		return contains(binder.eventsFor("p1"), "movement_ack")
	}, "plausible claim should be acked")

	// Teleport across the field: rejected with a correction.
	engine.Send(roomPID, MovementClaim{
		PlayerID:   "p1",
		Position:   Vec2{X: 1500, Y: 700},
		Velocity:   Vec2{},
		SequenceID: 8,
	}, nil)
	waitFor(t, 2*time.Second, func() bool {
		return contains(binder.eventsFor("p1"), "movement_rejected")
	}, "teleport claim should be rejected")
}
