// File: game/ball.go
package game

import "github.com/headsoccer/server/utils"

// Ball is the authoritative ball state. The trail is a fixed-capacity ring
// buffer; snapshots get a copy ordered oldest first.
type Ball struct {
	Position      Vec2    `json:"position"`
	Velocity      Vec2    `json:"velocity"`
	Rotation      float32 `json:"rotation"`
	RotationSpeed float32 `json:"rotationSpeed"`
	LastTouchedBy string  `json:"lastTouchedBy,omitempty"`

	trail     [utils.BallTrailLen]Vec2
	trailLen  int
	trailHead int // index of the oldest entry
}

// NewBall places a ball at the kickoff spot.
func NewBall(cfg utils.Config) *Ball {
	b := &Ball{}
	b.Reset(cfg)
	return b
}

// Reset centers the ball with zero velocity and clears the trail. Used at
// kickoff and after every goal.
func (b *Ball) Reset(cfg utils.Config) {
	b.Position = Vec2{X: cfg.FieldWidth / 2, Y: utils.InitialBallY}
	b.Velocity = Vec2{}
	b.Rotation = 0
	b.RotationSpeed = 0
	b.trailLen = 0
	b.trailHead = 0
}

// PushTrail appends the current position, evicting the oldest entry once the
// buffer is full.
func (b *Ball) PushTrail() {
	if b.trailLen < utils.BallTrailLen {
		b.trail[(b.trailHead+b.trailLen)%utils.BallTrailLen] = b.Position
		b.trailLen++
		return
	}
	b.trail[b.trailHead] = b.Position
	b.trailHead = (b.trailHead + 1) % utils.BallTrailLen
}

// Trail returns a copy of the trail, oldest position first.
func (b *Ball) Trail() []Vec2 {
	out := make([]Vec2, b.trailLen)
	for i := 0; i < b.trailLen; i++ {
		out[i] = b.trail[(b.trailHead+i)%utils.BallTrailLen]
	}
	return out
}

// Speed returns the velocity magnitude.
func (b *Ball) Speed() float32 {
	return utils.Hypot32(b.Velocity.X, b.Velocity.Y)
}
