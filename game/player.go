// File: game/player.go
package game

import "github.com/headsoccer/server/utils"

// Seat is a player's side of the field. It determines spawn position and
// which goal the player defends.
type Seat int

const (
	SeatLeft Seat = iota
	SeatRight
)

func (s Seat) String() string {
	if s == SeatLeft {
		return "left"
	}
	return "right"
}

// Opponent returns the other seat.
func (s Seat) Opponent() Seat {
	if s == SeatLeft {
		return SeatRight
	}
	return SeatLeft
}

// IntentFrame is the set of keys a player is currently holding. The simulator
// consumes the most recent frame per player per tick; a zero value means "no
// keys pressed".
type IntentFrame struct {
	Left       bool  `json:"left"`
	Right      bool  `json:"right"`
	Jump       bool  `json:"up"`
	Kick       bool  `json:"kick"`
	SequenceID int64 `json:"sequenceId,omitempty"`
}

// Player is the authoritative per-room player state.
type Player struct {
	ID             string  `json:"id"`
	Seat           Seat    `json:"seat"`
	Character      string  `json:"character"`
	Position       Vec2    `json:"position"`
	Velocity       Vec2    `json:"velocity"`
	Facing         float32 `json:"facing"` // +1 faces right, -1 faces left
	OnGround       bool    `json:"onGround"`
	Kicking        bool    `json:"kicking"`
	KickCooldownMs float32 `json:"kickCooldown"`
	Ready          bool    `json:"-"`
}

// NewPlayer seats a player at their spawn mark with zero velocity.
func NewPlayer(id, character string, seat Seat, cfg utils.Config) *Player {
	p := &Player{
		ID:        id,
		Seat:      seat,
		Character: character,
		OnGround:  true,
	}
	p.Respawn(cfg)
	return p
}

// Respawn moves the player back to the seat's spawn mark.
func (p *Player) Respawn(cfg utils.Config) {
	x := cfg.FieldWidth / 4
	facing := float32(1)
	if p.Seat == SeatRight {
		x = cfg.FieldWidth * 3 / 4
		facing = -1
	}
	p.Position = Vec2{X: x, Y: cfg.FloorY - cfg.PlayerRadius}
	p.Velocity = Vec2{}
	p.Facing = facing
	p.OnGround = true
	p.Kicking = false
	p.KickCooldownMs = 0
}
