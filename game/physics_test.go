// File: game/physics_test.go
package game

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/headsoccer/server/utils"
)

func testConfig() utils.Config {
	return utils.DefaultConfig()
}

func playingRoom(t *testing.T, cfg utils.Config) *Room {
	t.Helper()
	room := NewRoom("room-test", cfg)
	_, err := room.Join("p-left", "alpha", cfg)
	assert.NoError(t, err)
	_, err = room.Join("p-right", "beta", cfg)
	assert.NoError(t, err)
	assert.NoError(t, room.SetReady("p-left", true))
	assert.NoError(t, room.SetReady("p-right", true))
	assert.NoError(t, room.StartGame())
	SpawnPositions(room, cfg)
	return room
}

func TestStepAdvancesGameTime(t *testing.T) {
	cfg := testConfig()
	room := playingRoom(t, cfg)

	for i := 0; i < cfg.TickHz; i++ {
		Step(room, [2]IntentFrame{}, cfg)
	}
	// One second of ticks equals one second of game time.
	assert.InDelta(t, 1000.0, room.GameTimeMs, 1.0)
}

func TestHoldingRightAcceleratesAndFaces(t *testing.T) {
	cfg := testConfig()
	room := playingRoom(t, cfg)
	inputs := [2]IntentFrame{{Right: true}, {}}

	for i := 0; i < 30; i++ {
		Step(room, inputs, cfg)
	}
	left := room.Players[SeatLeft]
	assert.Greater(t, left.Velocity.X, float32(0), "held right key should build velocity")
	assert.Equal(t, float32(1), left.Facing)
	assert.Greater(t, left.Position.X, cfg.FieldWidth/4, "player should have moved right")
}

func TestVelocityStaysUnderPlayerCeiling(t *testing.T) {
	cfg := testConfig()
	room := playingRoom(t, cfg)
	inputs := [2]IntentFrame{{Right: true}, {}}

	// Long enough for drag and acceleration to reach terminal speed.
	for i := 0; i < cfg.TickHz*10; i++ {
		Step(room, inputs, cfg)
	}
	left := room.Players[SeatLeft]
	assert.Less(t, utils.Abs32(left.Velocity.X), cfg.MaxPlayerSpeed)
}

func TestJumpOnlyFromGround(t *testing.T) {
	cfg := testConfig()
	room := playingRoom(t, cfg)
	left := room.Players[SeatLeft]
	assert.True(t, left.OnGround)

	Step(room, [2]IntentFrame{{Jump: true}, {}}, cfg)
	assert.Less(t, left.Velocity.Y, float32(0), "jump should set upward velocity")
	airborneVy := left.Velocity.Y

	// A second jump intent mid-air must not re-fire.
	Step(room, [2]IntentFrame{{Jump: true}, {}}, cfg)
	assert.Greater(t, left.Velocity.Y, airborneVy, "gravity should pull, not a second jump impulse")
}

func TestBallSpeedClamped(t *testing.T) {
	cfg := testConfig()
	room := playingRoom(t, cfg)
	room.Ball.Velocity = Vec2{X: 5000, Y: -5000}

	Step(room, [2]IntentFrame{}, cfg)
	assert.LessOrEqual(t, room.Ball.Speed(), cfg.MaxBallSpeed*1.01)
}

func TestBallBouncesOffFloor(t *testing.T) {
	cfg := testConfig()
	room := playingRoom(t, cfg)
	room.Ball.Position = Vec2{X: cfg.FieldWidth / 2, Y: cfg.FloorY - cfg.BallRadius - 1}
	room.Ball.Velocity = Vec2{X: 100, Y: 400}

	Step(room, [2]IntentFrame{}, cfg)
	assert.Less(t, room.Ball.Velocity.Y, float32(0), "floor bounce should invert vertical velocity")
}

func TestBallBouncesOffWallAboveGoalMouth(t *testing.T) {
	cfg := testConfig()
	room := playingRoom(t, cfg)
	// Above the goal mouth the right edge is solid.
	room.Players[SeatRight].Position = Vec2{X: cfg.FieldWidth / 2, Y: 300}
	room.Ball.Position = Vec2{X: cfg.FieldWidth - cfg.BallRadius - 1, Y: 200}
	room.Ball.Velocity = Vec2{X: 400, Y: 0}

	Step(room, [2]IntentFrame{}, cfg)
	assert.Less(t, room.Ball.Velocity.X, float32(0), "wall bounce should invert horizontal velocity")
}

func TestBallEntersRightGoalAndLeftScores(t *testing.T) {
	cfg := testConfig()
	room := playingRoom(t, cfg)
	// Keep players clear of the ball path.
	room.Players[SeatLeft].Position = Vec2{X: 200, Y: cfg.FloorY - cfg.PlayerRadius}
	room.Players[SeatRight].Position = Vec2{X: 400, Y: cfg.FloorY - cfg.PlayerRadius}

	// Ball inside the goal mouth heading for the right goal line.
	room.Ball.Position = Vec2{X: 1501, Y: 700}
	room.Ball.Velocity = Vec2{X: 300, Y: 0}

	scored := false
	for i := 0; i < cfg.TickHz; i++ {
		Step(room, [2]IntentFrame{}, cfg)
		if room.Score[SeatLeft] == 1 {
			scored = true
			break
		}
	}
	assert.True(t, scored, "ball crossing the right goal line should score for left")
	assert.Equal(t, uint16(0), room.Score[SeatRight])
	// Kickoff reset.
	assert.InDelta(t, float64(cfg.FieldWidth/2), float64(room.Ball.Position.X), 5)
	assert.InDelta(t, float64(utils.InitialBallY), float64(room.Ball.Position.Y), 30)
}

func TestGoalCooldownBlocksImmediateRecount(t *testing.T) {
	cfg := testConfig()
	room := playingRoom(t, cfg)
	room.Players[SeatLeft].Position = Vec2{X: 200, Y: cfg.FloorY - cfg.PlayerRadius}
	room.Players[SeatRight].Position = Vec2{X: 400, Y: cfg.FloorY - cfg.PlayerRadius}

	room.Ball.Position = Vec2{X: cfg.FieldWidth - cfg.GoalWidth + cfg.BallRadius + 1, Y: 700}
	Step(room, [2]IntentFrame{}, cfg)
	assert.Equal(t, uint16(1), room.Score[SeatLeft])

	// Force the ball straight back into the goal within the cooldown window.
	room.Ball.Position = Vec2{X: cfg.FieldWidth - cfg.GoalWidth + cfg.BallRadius + 1, Y: 700}
	room.Ball.Velocity = Vec2{}
	Step(room, [2]IntentFrame{}, cfg)
	assert.Equal(t, uint16(1), room.Score[SeatLeft], "goal inside cooldown must not count")
}

func TestKickImpulseSendsBallForward(t *testing.T) {
	cfg := testConfig()
	room := playingRoom(t, cfg)
	left := room.Players[SeatLeft]
	left.Position = Vec2{X: 500, Y: cfg.FloorY - cfg.PlayerRadius}
	left.Facing = 1
	room.Ball.Position = Vec2{X: 500 + cfg.KickRange - 10, Y: cfg.FloorY - cfg.BallRadius}
	room.Ball.Velocity = Vec2{}

	Step(room, [2]IntentFrame{{Kick: true}, {}}, cfg)
	assert.Greater(t, room.Ball.Velocity.X, float32(0), "kick should push the ball toward facing")
	assert.Less(t, room.Ball.Velocity.Y, float32(0), "kick should lift the ball")
	assert.Equal(t, "p-left", room.Ball.LastTouchedBy)
	assert.Greater(t, left.KickCooldownMs, float32(0))
}

func TestKickOutOfRangeDoesNothing(t *testing.T) {
	cfg := testConfig()
	room := playingRoom(t, cfg)
	left := room.Players[SeatLeft]
	left.Position = Vec2{X: 200, Y: 300}
	room.Ball.Position = Vec2{X: 200 + cfg.KickRange*3, Y: 300}
	room.Ball.Velocity = Vec2{}

	before := room.Ball.Velocity
	Step(room, [2]IntentFrame{{Kick: true}, {}}, cfg)
	assert.Equal(t, before.X, room.Ball.Velocity.X, "out-of-range kick must not impart horizontal velocity")
}

func TestPlayersSeparateOnOverlap(t *testing.T) {
	cfg := testConfig()
	room := playingRoom(t, cfg)
	room.Players[SeatLeft].Position = Vec2{X: 800, Y: 500}
	room.Players[SeatRight].Position = Vec2{X: 800 + cfg.PlayerRadius, Y: 500}

	Step(room, [2]IntentFrame{}, cfg)
	dx := room.Players[SeatRight].Position.X - room.Players[SeatLeft].Position.X
	dy := room.Players[SeatRight].Position.Y - room.Players[SeatLeft].Position.Y
	assert.GreaterOrEqual(t, utils.Hypot32(dx, dy), cfg.PlayerRadius*2-1)
}

func TestScoreLimitFinishesRoom(t *testing.T) {
	cfg := testConfig()
	cfg.ScoreLimit = 1
	room := playingRoom(t, cfg)
	room.Players[SeatLeft].Position = Vec2{X: 200, Y: cfg.FloorY - cfg.PlayerRadius}
	room.Players[SeatRight].Position = Vec2{X: 400, Y: cfg.FloorY - cfg.PlayerRadius}
	room.Ball.Position = Vec2{X: cfg.FieldWidth - cfg.GoalWidth + cfg.BallRadius + 1, Y: 700}

	Step(room, [2]IntentFrame{}, cfg)
	assert.Equal(t, StatusFinished, room.Status)
	assert.Equal(t, WinScoreLimit, room.WinReason)
	assert.Equal(t, WinnerLeft, room.Winner)
}

func TestTimeLimitFinishesAsDrawOnEqualScore(t *testing.T) {
	cfg := testConfig()
	cfg.TimeLimitSec = 1
	room := playingRoom(t, cfg)
	room.Players[SeatLeft].Position = Vec2{X: 200, Y: cfg.FloorY - cfg.PlayerRadius}
	room.Players[SeatRight].Position = Vec2{X: 1400, Y: cfg.FloorY - cfg.PlayerRadius}
	room.Ball.Position = Vec2{X: cfg.FieldWidth / 2, Y: 300}

	for i := 0; i <= cfg.TickHz; i++ {
		Step(room, [2]IntentFrame{}, cfg)
		if room.Status.Terminal() {
			break
		}
	}
	assert.Equal(t, StatusFinished, room.Status)
	assert.Equal(t, WinTimeLimit, room.WinReason)
	assert.Equal(t, WinnerDraw, room.Winner)
}

func TestDeterministicReplay(t *testing.T) {
	cfg := testConfig()
	run := func() Vec2 {
		room := playingRoom(t, cfg)
		inputs := [2]IntentFrame{{Right: true, Jump: true}, {Left: true}}
		for i := 0; i < 500; i++ {
			Step(room, inputs, cfg)
		}
		return room.Ball.Position
	}
	first := run()
	second := run()
	assert.Equal(t, first, second, "same inputs must yield the same trajectory")
}
