// File: game/validator_test.go
package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMovementWithinBoundsAccepted(t *testing.T) {
	cfg := testConfig()
	v := NewValidator(cfg)
	now := time.Now()

	verdict := v.CheckMovement("p1", Vec2{X: 400, Y: 500}, now.UnixMilli(), now)
	assert.True(t, verdict.OK)
}

func TestMovementOutOfBoundsRejectedWithCorrection(t *testing.T) {
	cfg := testConfig()
	v := NewValidator(cfg)
	now := time.Now()

	good := Vec2{X: 400, Y: 500}
	assert.True(t, v.CheckMovement("p1", good, now.UnixMilli(), now).OK)

	verdict := v.CheckMovement("p1", Vec2{X: 5000, Y: 500}, now.UnixMilli(), now.Add(10*time.Millisecond))
	assert.False(t, verdict.OK)
	assert.Equal(t, good, verdict.Corrected, "correction falls back to the last accepted position")
}

func TestTeleportRejected(t *testing.T) {
	cfg := testConfig()
	v := NewValidator(cfg)
	now := time.Now()

	assert.True(t, v.CheckMovement("p1", Vec2{X: 100, Y: 500}, now.UnixMilli(), now).OK)

	// 1000 px in ~16 ms implies over 60000 px/s, far past the 500 px/s cap.
	later := now.Add(16 * time.Millisecond)
	verdict := v.CheckMovement("p1", Vec2{X: 1100, Y: 500}, later.UnixMilli(), later)
	assert.False(t, verdict.OK)
	assert.Equal(t, Vec2{X: 100, Y: 500}, verdict.Corrected)

	signals := v.Signals()
	assert.NotEmpty(t, signals)
	assert.Equal(t, "impossible_movement", signals[0].Kind)
}

func TestTimestampDriftRejected(t *testing.T) {
	cfg := testConfig()
	v := NewValidator(cfg)
	now := time.Now()

	stale := now.Add(-2 * time.Second).UnixMilli()
	verdict := v.CheckMovement("p1", Vec2{X: 400, Y: 500}, stale, now)
	assert.False(t, verdict.OK)
}

func TestInputRateWindowRejectsSixtyFirst(t *testing.T) {
	cfg := testConfig()
	v := NewValidator(cfg)
	base := time.Now()

	accepted := 0
	var last Verdict
	for i := 0; i < 61; i++ {
		at := base.Add(time.Duration(i) * 10 * time.Millisecond)
		last = v.CheckMovement("p1", Vec2{X: 400, Y: 500}, at.UnixMilli(), at)
		if last.OK {
			accepted++
		}
	}
	assert.Equal(t, 60, accepted)
	assert.False(t, last.OK, "the 61st input within one second must be rejected")

	var sawHigh bool
	for _, sig := range v.Signals() {
		if sig.Kind == "input_rate" && sig.Severity == "high" {
			sawHigh = true
		}
	}
	assert.True(t, sawHigh)
}

func TestInputRateWindowSlides(t *testing.T) {
	cfg := testConfig()
	v := NewValidator(cfg)
	base := time.Now()

	for i := 0; i < 60; i++ {
		at := base.Add(time.Duration(i) * 10 * time.Millisecond)
		assert.True(t, v.CheckMovement("p1", Vec2{X: 400, Y: 500}, at.UnixMilli(), at).OK)
	}
	// After the window slides past the burst, inputs flow again.
	later := base.Add(2 * time.Second)
	assert.True(t, v.CheckMovement("p1", Vec2{X: 400, Y: 500}, later.UnixMilli(), later).OK)
}

func TestBallClaimRequiresLastToucher(t *testing.T) {
	cfg := testConfig()
	v := NewValidator(cfg)
	ball := NewBall(cfg)

	// Nobody touched the ball yet: no claim is honored, from anyone.
	verdict := v.CheckBall("p1", ball, Vec2{X: 800, Y: 400}, Vec2{X: 100, Y: 0})
	assert.False(t, verdict.OK)
	assert.Equal(t, ball.Position, verdict.Corrected)

	ball.LastTouchedBy = "p1"
	verdict = v.CheckBall("p2", ball, Vec2{X: 800, Y: 400}, Vec2{X: 100, Y: 0})
	assert.False(t, verdict.OK)
	assert.Equal(t, ball.Position, verdict.Corrected)

	verdict = v.CheckBall("p1", ball, Vec2{X: 800, Y: 400}, Vec2{X: 100, Y: 0})
	assert.True(t, verdict.OK)
}

func TestNoteInputSharesRateWindow(t *testing.T) {
	cfg := testConfig()
	v := NewValidator(cfg)
	base := time.Now()

	// Intent frames and position claims draw on the same per-player window.
	for i := 0; i < cfg.MaxInputRate/2; i++ {
		assert.True(t, v.NoteInput("p1", base.Add(time.Duration(i)*time.Millisecond)))
	}
	for i := cfg.MaxInputRate / 2; i < cfg.MaxInputRate; i++ {
		at := base.Add(time.Duration(i) * time.Millisecond)
		assert.True(t, v.CheckMovement("p1", Vec2{X: 400, Y: 500}, at.UnixMilli(), at).OK)
	}
	assert.False(t, v.NoteInput("p1", base.Add(time.Duration(cfg.MaxInputRate)*time.Millisecond)))
}

func TestBallVelocityScaledToCeiling(t *testing.T) {
	cfg := testConfig()
	v := NewValidator(cfg)
	ball := NewBall(cfg)
	ball.LastTouchedBy = "p1"

	verdict := v.CheckBall("p1", ball, Vec2{X: 800, Y: 400}, Vec2{X: 3000, Y: 4000})
	assert.False(t, verdict.OK)
	// Direction preserved, magnitude capped.
	assert.InDelta(t, 3.0/5.0*float64(cfg.MaxBallSpeed), float64(verdict.Velocity.X), 1)
	assert.InDelta(t, 4.0/5.0*float64(cfg.MaxBallSpeed), float64(verdict.Velocity.Y), 1)
}

func TestGoalClaimNeedsCrossing(t *testing.T) {
	cfg := testConfig()
	v := NewValidator(cfg)
	room := playingRoom(t, cfg)

	rightLine := cfg.FieldWidth - cfg.GoalWidth + cfg.BallRadius

	// Crossed this frame, inside the mouth.
	seat, verdict := v.CheckGoalClaim(room, "p-left", Vec2{X: rightLine - 10, Y: 700}, Vec2{X: rightLine + 5, Y: 700})
	assert.True(t, verdict.OK)
	assert.Equal(t, SeatLeft, seat)

	// Already behind the line last frame: no crossing.
	_, verdict = v.CheckGoalClaim(room, "p-left", Vec2{X: rightLine + 1, Y: 700}, Vec2{X: rightLine + 5, Y: 700})
	assert.False(t, verdict.OK)

	// Above the goal mouth.
	_, verdict = v.CheckGoalClaim(room, "p-left", Vec2{X: rightLine - 10, Y: 300}, Vec2{X: rightLine + 5, Y: 300})
	assert.False(t, verdict.OK)

	// Unseated claimant.
	_, verdict = v.CheckGoalClaim(room, "ghost", Vec2{X: rightLine - 10, Y: 700}, Vec2{X: rightLine + 5, Y: 700})
	assert.False(t, verdict.OK)
}

func TestGoalClaimLeftGoal(t *testing.T) {
	cfg := testConfig()
	v := NewValidator(cfg)
	room := playingRoom(t, cfg)

	leftLine := cfg.GoalWidth - cfg.BallRadius
	seat, verdict := v.CheckGoalClaim(room, "p-right", Vec2{X: leftLine + 10, Y: 700}, Vec2{X: leftLine - 5, Y: 700})
	assert.True(t, verdict.OK)
	assert.Equal(t, SeatRight, seat)
}

func TestScoreProgression(t *testing.T) {
	cfg := testConfig()
	v := NewValidator(cfg)

	assert.True(t, v.CheckScoreProgression([2]uint16{1, 0}, [2]uint16{2, 0}, 100, 200).OK)
	assert.True(t, v.CheckScoreProgression([2]uint16{1, 0}, [2]uint16{1, 0}, 100, 200).OK)
	assert.False(t, v.CheckScoreProgression([2]uint16{2, 0}, [2]uint16{1, 0}, 100, 200).OK, "score must not decrease")
	assert.False(t, v.CheckScoreProgression([2]uint16{1, 0}, [2]uint16{2, 1}, 100, 200).OK, "both sides cannot score in one step")
	assert.False(t, v.CheckScoreProgression([2]uint16{1, 0}, [2]uint16{1, 0}, 200, 100).OK, "game time must be monotonic")
}

func TestForgetPlayerClearsHistory(t *testing.T) {
	cfg := testConfig()
	v := NewValidator(cfg)
	now := time.Now()

	assert.True(t, v.CheckMovement("p1", Vec2{X: 100, Y: 500}, now.UnixMilli(), now).OK)
	v.ForgetPlayer("p1")

	// A teleport-sized jump is fine once history is gone.
	later := now.Add(10 * time.Millisecond)
	assert.True(t, v.CheckMovement("p1", Vec2{X: 1400, Y: 500}, later.UnixMilli(), later).OK)
}
