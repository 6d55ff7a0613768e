// File: game/validator.go
package game

import (
	"fmt"
	"time"

	"github.com/headsoccer/server/utils"
)

// Verdict is the validator's answer for one client claim. Rejections always
// carry a corrected value so the room can keep advancing with a safe state.
type Verdict struct {
	OK          bool
	Reason      string
	RateLimited bool // rejected by the per-player input-rate window
	Corrected   Vec2 // corrected position for rejected movement/ball claims
	Velocity    Vec2 // corrected (scaled) velocity where applicable
}

func accepted() Verdict {
	return Verdict{OK: true}
}

// Signal is an anti-cheat observation. Signals are recorded, never enforced.
type Signal struct {
	PlayerID string
	Kind     string // input_rate, impossible_movement, pattern, timing
	Severity string // low, medium, high, critical
	Detail   string
	At       time.Time
}

// Validator is the per-room plausibility gate for client-authoritative
// claims. It keeps the last accepted state per player so implied speeds can
// be checked; all bounds derive from Config.
type Validator struct {
	cfg       utils.Config
	lastPos   map[string]Vec2
	lastSeen  map[string]time.Time
	inputLog  map[string][]time.Time // sliding 1s window per player
	signals   []Signal
	maxSignal int
}

// NewValidator builds a validator with bounds taken from cfg.
func NewValidator(cfg utils.Config) *Validator {
	return &Validator{
		cfg:       cfg,
		lastPos:   make(map[string]Vec2),
		lastSeen:  make(map[string]time.Time),
		inputLog:  make(map[string][]time.Time),
		maxSignal: 256,
	}
}

// CheckMovement validates a claimed player position. Rejections return the
// previous accepted position (or a bounds clamp when none exists).
func (v *Validator) CheckMovement(playerID string, claimed Vec2, claimedTimestampMs int64, now time.Time) Verdict {
	if !v.withinField(claimed, v.cfg.PlayerRadius) {
		return v.rejectMovement(playerID, claimed, "position out of bounds")
	}

	if claimedTimestampMs != 0 {
		drift := now.UnixMilli() - claimedTimestampMs
		if drift < 0 {
			drift = -drift
		}
		if drift > int64(v.cfg.MaxTimeDriftMs) {
			return v.rejectMovement(playerID, claimed, fmt.Sprintf("timestamp drift %dms exceeds limit", drift))
		}
	}

	if !v.recordInput(playerID, now) {
		verdict := v.rejectMovement(playerID, claimed, "input rate exceeded")
		verdict.RateLimited = true
		return verdict
	}

	if prev, ok := v.lastPos[playerID]; ok {
		elapsed := now.Sub(v.lastSeen[playerID]).Seconds()
		if elapsed <= 0 {
			elapsed = float64(v.cfg.Dt())
		}
		implied := float64(utils.Distance(prev.X, prev.Y, claimed.X, claimed.Y)) / elapsed
		if implied > float64(v.cfg.MaxPlayerSpeed) {
			v.observe(playerID, "impossible_movement", "medium",
				fmt.Sprintf("implied speed %.0f px/s", implied), now)
			return v.rejectMovement(playerID, claimed, "implied speed exceeds ceiling")
		}
	}

	v.lastPos[playerID] = claimed
	v.lastSeen[playerID] = now
	return accepted()
}

// NoteInput charges one input against the player's sliding rate window. Intent
// frames go through here so both movement forms share the same window.
func (v *Validator) NoteInput(playerID string, now time.Time) bool {
	return v.recordInput(playerID, now)
}

// CheckBall validates a claimed ball update. The claimer must be the last
// toucher; until someone touched the ball no claim is honored. Velocity beyond
// the ceiling is scaled down in the correction.
func (v *Validator) CheckBall(playerID string, b *Ball, claimedPos, claimedVel Vec2) Verdict {
	if b.LastTouchedBy == "" {
		return Verdict{OK: false, Reason: "no recognized last toucher", Corrected: b.Position, Velocity: b.Velocity}
	}
	if b.LastTouchedBy != playerID {
		return Verdict{OK: false, Reason: "not the last toucher", Corrected: b.Position, Velocity: b.Velocity}
	}
	if !v.withinField(claimedPos, v.cfg.BallRadius) {
		return Verdict{OK: false, Reason: "ball position out of bounds", Corrected: b.Position, Velocity: b.Velocity}
	}
	if speed := utils.Hypot32(claimedVel.X, claimedVel.Y); speed > v.cfg.MaxBallSpeed {
		scale := v.cfg.MaxBallSpeed / speed
		return Verdict{
			OK:        false,
			Reason:    "ball velocity exceeds ceiling",
			Corrected: claimedPos,
			Velocity:  Vec2{X: claimedVel.X * scale, Y: claimedVel.Y * scale},
		}
	}
	return accepted()
}

// CheckGoalClaim validates that the ball actually crossed a goal line this
// frame and that the claimed scorer is seated. Own goals are allowed; the
// seat comparison only decides which side the point goes to.
func (v *Validator) CheckGoalClaim(room *Room, scorerID string, prev, current Vec2) (Seat, Verdict) {
	if _, seated := room.SeatOf(scorerID); !seated {
		return 0, Verdict{OK: false, Reason: "scorer not seated"}
	}
	inMouth := current.Y >= v.cfg.FieldHeight-v.cfg.GoalHeight
	if !inMouth {
		return 0, Verdict{OK: false, Reason: "ball outside goal mouth"}
	}

	rightLine := v.cfg.FieldWidth - v.cfg.GoalWidth + v.cfg.BallRadius
	leftLine := v.cfg.GoalWidth - v.cfg.BallRadius
	switch {
	case prev.X < rightLine && current.X >= rightLine:
		return SeatLeft, accepted()
	case prev.X > leftLine && current.X <= leftLine:
		return SeatRight, accepted()
	default:
		return 0, Verdict{OK: false, Reason: "ball did not cross a goal line this frame"}
	}
}

// CheckScoreProgression enforces monotonic scores rising by at most one on
// one side per step, with monotonic game time.
func (v *Validator) CheckScoreProgression(prevScore, nextScore [2]uint16, prevTimeMs, nextTimeMs float64) Verdict {
	if nextTimeMs < prevTimeMs {
		return Verdict{OK: false, Reason: "game time went backwards"}
	}
	deltaLeft := int(nextScore[SeatLeft]) - int(prevScore[SeatLeft])
	deltaRight := int(nextScore[SeatRight]) - int(prevScore[SeatRight])
	if deltaLeft < 0 || deltaRight < 0 {
		return Verdict{OK: false, Reason: "score decreased"}
	}
	if deltaLeft+deltaRight > 1 {
		return Verdict{OK: false, Reason: "score rose by more than one"}
	}
	return accepted()
}

// Signals drains recorded anti-cheat observations.
func (v *Validator) Signals() []Signal {
	out := v.signals
	v.signals = nil
	return out
}

// ForgetPlayer clears tracked state when a player leaves the room.
func (v *Validator) ForgetPlayer(playerID string) {
	delete(v.lastPos, playerID)
	delete(v.lastSeen, playerID)
	delete(v.inputLog, playerID)
}

func (v *Validator) withinField(p Vec2, radius float32) bool {
	margin := v.cfg.BoundsMargin
	return p.X >= radius-margin && p.X <= v.cfg.FieldWidth-radius+margin &&
		p.Y >= radius-margin && p.Y <= v.cfg.FieldHeight-radius+margin
}

func (v *Validator) rejectMovement(playerID string, claimed Vec2, reason string) Verdict {
	corrected, ok := v.lastPos[playerID]
	if !ok {
		corrected = Vec2{
			X: utils.Clamp(claimed.X, v.cfg.PlayerRadius, v.cfg.FieldWidth-v.cfg.PlayerRadius),
			Y: utils.Clamp(claimed.Y, v.cfg.PlayerRadius, v.cfg.FloorY-v.cfg.PlayerRadius),
		}
	}
	return Verdict{OK: false, Reason: reason, Corrected: corrected}
}

// recordInput appends to the sliding 1-second window and reports whether the
// rate stays under the limit. Approaching the limit raises a low signal.
func (v *Validator) recordInput(playerID string, now time.Time) bool {
	window := v.inputLog[playerID]
	cutoff := now.Add(-time.Second)
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= v.cfg.MaxInputRate {
		v.inputLog[playerID] = kept
		v.observe(playerID, "input_rate", "high",
			fmt.Sprintf("%d inputs in the last second", len(kept)), now)
		return false
	}
	if float64(len(kept)+1) >= 0.9*float64(v.cfg.MaxInputRate) {
		v.observe(playerID, "input_rate", "low", "input rate near limit", now)
	}
	kept = append(kept, now)
	v.inputLog[playerID] = kept
	return true
}

func (v *Validator) observe(playerID, kind, severity, detail string, at time.Time) {
	if len(v.signals) >= v.maxSignal {
		return
	}
	v.signals = append(v.signals, Signal{
		PlayerID: playerID,
		Kind:     kind,
		Severity: severity,
		Detail:   detail,
		At:       at,
	})
}
