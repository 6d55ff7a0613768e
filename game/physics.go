// File: game/physics.go
package game

import (
	"math"

	"github.com/headsoccer/server/utils"
)

// Step advances a Playing room by exactly one fixed timestep. It is
// deterministic for a given (room, inputs) pair and never reads the wall
// clock; inputs are indexed by seat and a zero IntentFrame means "no keys
// pressed". Callers pre-validate, so Step never rejects.
//
// Per-tick order: cooldowns, player integration, ball integration,
// player-player collision, player-ball collision, kicks, goal check, end
// check. Ties between seats always resolve left first.
func Step(room *Room, inputs [2]IntentFrame, cfg utils.Config) {
	dt := cfg.Dt()
	room.GameTimeMs += float64(dt) * 1000

	for _, seat := range []Seat{SeatLeft, SeatRight} {
		if p := room.Players[seat]; p != nil {
			stepPlayer(p, inputs[seat], dt, cfg)
		}
	}

	stepBall(room.Ball, dt, cfg)

	collidePlayers(room.Players[SeatLeft], room.Players[SeatRight], cfg)

	for _, seat := range []Seat{SeatLeft, SeatRight} {
		if p := room.Players[seat]; p != nil {
			collidePlayerBall(p, room.Ball, cfg)
		}
	}

	for _, seat := range []Seat{SeatLeft, SeatRight} {
		if p := room.Players[seat]; p != nil {
			applyKick(p, room.Ball, cfg)
		}
	}

	checkGoals(room, cfg)
	checkEnd(room, cfg)
}

// SpawnPositions resets both players and the ball to kickoff placement with
// all velocities zero.
func SpawnPositions(room *Room, cfg utils.Config) {
	for _, p := range room.Players {
		if p != nil {
			p.Respawn(cfg)
		}
	}
	room.Ball.Reset(cfg)
}

func stepPlayer(p *Player, in IntentFrame, dt float32, cfg utils.Config) {
	// Cooldown runs down between kicks, never below zero.
	if p.KickCooldownMs > 0 {
		p.KickCooldownMs -= dt * 1000
		if p.KickCooldownMs < 0 {
			p.KickCooldownMs = 0
		}
	}

	// Horizontal input accelerates rather than setting velocity outright;
	// terminal speed emerges from the drag factor.
	if in.Left && !in.Right {
		p.Velocity.X -= cfg.MoveAccel * dt
		p.Facing = -1
	} else if in.Right && !in.Left {
		p.Velocity.X += cfg.MoveAccel * dt
		p.Facing = 1
	}
	if in.Jump && p.OnGround {
		p.Velocity.Y = -cfg.JumpSpeed
		p.OnGround = false
	}
	if in.Kick {
		if !p.Kicking && p.KickCooldownMs <= 0 {
			p.Kicking = true
		}
	} else {
		p.Kicking = false
	}

	p.Velocity.Y += cfg.Gravity * dt
	p.Velocity.X *= cfg.AirResistance
	p.Velocity.Y *= cfg.AirResistance

	p.Position.X += p.Velocity.X * dt
	p.Position.Y += p.Velocity.Y * dt

	// World clamp: zero the penetrating component.
	r := cfg.PlayerRadius
	p.OnGround = false
	if p.Position.Y+r >= cfg.FloorY {
		p.Position.Y = cfg.FloorY - r
		if p.Velocity.Y > 0 {
			p.Velocity.Y = 0
		}
		p.OnGround = true
	}
	if p.Position.Y-r < 0 {
		p.Position.Y = r
		if p.Velocity.Y < 0 {
			p.Velocity.Y = 0
		}
	}
	if p.Position.X-r < 0 {
		p.Position.X = r
		if p.Velocity.X < 0 {
			p.Velocity.X = 0
		}
	}
	if p.Position.X+r > cfg.FieldWidth {
		p.Position.X = cfg.FieldWidth - r
		if p.Velocity.X > 0 {
			p.Velocity.X = 0
		}
	}
}

func stepBall(b *Ball, dt float32, cfg utils.Config) {
	b.Velocity.Y += cfg.Gravity * dt
	b.Velocity.X *= cfg.BallAirResistance
	b.Velocity.Y *= cfg.BallAirResistance

	// Speed ceiling is an invariant, not a validation concern.
	if speed := b.Speed(); speed > cfg.MaxBallSpeed {
		scale := cfg.MaxBallSpeed / speed
		b.Velocity.X *= scale
		b.Velocity.Y *= scale
	}

	b.Position.X += b.Velocity.X * dt
	b.Position.Y += b.Velocity.Y * dt

	r := cfg.BallRadius
	if b.Position.Y+r >= cfg.FloorY {
		b.Position.Y = cfg.FloorY - r
		b.Velocity.Y = -b.Velocity.Y * cfg.Restitution
		b.Velocity.X *= cfg.BounceFriction
	}
	if b.Position.Y-r <= 0 {
		b.Position.Y = r
		b.Velocity.Y = -b.Velocity.Y * cfg.Restitution
		b.Velocity.X *= cfg.BounceFriction
	}

	// Side walls bounce except through the goal mouths, where the ball passes
	// until the goal check picks it up.
	inMouth := b.Position.Y >= cfg.FieldHeight-cfg.GoalHeight
	if !inMouth {
		if b.Position.X-r <= 0 {
			b.Position.X = r
			b.Velocity.X = -b.Velocity.X * cfg.Restitution
			b.Velocity.Y *= cfg.BounceFriction
		}
		if b.Position.X+r >= cfg.FieldWidth {
			b.Position.X = cfg.FieldWidth - r
			b.Velocity.X = -b.Velocity.X * cfg.Restitution
			b.Velocity.Y *= cfg.BounceFriction
		}
	}

	b.PushTrail()
	// Roll: angular speed tracks horizontal velocity.
	b.RotationSpeed = b.Velocity.X / cfg.BallRadius
	b.Rotation += b.RotationSpeed * dt
}

// collidePlayers separates overlapping players along their center axis by
// equal halves, then each keeps half of the other's velocity.
func collidePlayers(left, right *Player, cfg utils.Config) {
	if left == nil || right == nil {
		return
	}
	dx := right.Position.X - left.Position.X
	dy := right.Position.Y - left.Position.Y
	dist := utils.Hypot32(dx, dy)
	minDist := cfg.PlayerRadius * 2
	if dist >= minDist || dist == 0 {
		return
	}

	nx := dx / dist
	ny := dy / dist
	push := (minDist - dist) / 2
	left.Position.X -= nx * push
	left.Position.Y -= ny * push
	right.Position.X += nx * push
	right.Position.Y += ny * push

	lv, rv := left.Velocity, right.Velocity
	left.Velocity = rv.Scale(0.5)
	right.Velocity = lv.Scale(0.5)
}

// collidePlayerBall pushes the ball out of the player along the minimum
// translation vector and transfers a share of the player's velocity.
func collidePlayerBall(p *Player, b *Ball, cfg utils.Config) {
	dx := b.Position.X - p.Position.X
	dy := b.Position.Y - p.Position.Y
	dist := utils.Hypot32(dx, dy)
	minDist := cfg.PlayerRadius + cfg.BallRadius
	if dist >= minDist {
		return
	}

	var nx, ny float32
	if dist == 0 {
		// Degenerate overlap: push straight up.
		nx, ny = 0, -1
	} else {
		nx = dx / dist
		ny = dy / dist
	}
	b.Position.X = p.Position.X + nx*minDist
	b.Position.Y = p.Position.Y + ny*minDist
	b.Velocity.X += p.Velocity.X * 0.3
	b.Velocity.Y += p.Velocity.Y * 0.3
	b.LastTouchedBy = p.ID
}

// applyKick fires a pending kick when the ball is in range. The impulse
// points from the player toward the ball, scaled by kickPower and facing on
// X with a fixed upward bias on Y.
func applyKick(p *Player, b *Ball, cfg utils.Config) {
	if !p.Kicking || p.KickCooldownMs > 0 {
		return
	}
	dx := b.Position.X - p.Position.X
	dy := b.Position.Y - p.Position.Y
	if utils.Hypot32(dx, dy) > cfg.KickRange {
		return
	}

	angle := math.Atan2(float64(dy), float64(dx))
	b.Velocity.X = float32(math.Cos(angle)) * cfg.KickPower * p.Facing
	b.Velocity.Y = float32(math.Sin(angle))*cfg.KickPower - cfg.KickUpwardBias
	b.LastTouchedBy = p.ID

	p.Kicking = false
	p.KickCooldownMs = cfg.KickCooldownMs
}

// checkGoals scores when the ball's full circumference has entered a goal
// mouth and the cooldown has elapsed. The right goal (Left scores) is checked
// first, so a geometrically impossible double-goal resolves left-seat first.
func checkGoals(room *Room, cfg utils.Config) {
	if room.GameTimeMs-room.LastGoalMs < float64(cfg.GoalCooldownMs) {
		return
	}
	b := room.Ball
	if b.Position.Y < cfg.FieldHeight-cfg.GoalHeight {
		return
	}
	switch {
	case b.Position.X-cfg.BallRadius >= cfg.FieldWidth-cfg.GoalWidth:
		room.Score[SeatLeft]++
	case b.Position.X+cfg.BallRadius <= cfg.GoalWidth:
		room.Score[SeatRight]++
	default:
		return
	}
	room.LastGoalMs = room.GameTimeMs
	b.Reset(cfg)
}

// checkEnd finishes the room on the tick the score or time limit is reached.
func checkEnd(room *Room, cfg utils.Config) {
	if int(room.Score[SeatLeft]) >= cfg.ScoreLimit || int(room.Score[SeatRight]) >= cfg.ScoreLimit {
		room.finishByScore(WinScoreLimit)
		return
	}
	if room.GameTimeMs >= float64(cfg.TimeLimitSec)*1000 {
		room.finishByScore(WinTimeLimit)
	}
}
