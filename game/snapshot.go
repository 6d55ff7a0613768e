// File: game/snapshot.go
package game

import (
	"time"

	"github.com/headsoccer/server/utils"
)

// Snapshot is the broadcast-ready view of a room, emitted once per tick.
// Positions and velocities are rounded to one decimal, rotation to two.
type Snapshot struct {
	Players   []PlayerView `json:"players"`
	Ball      BallView     `json:"ball"`
	Score     ScoreView    `json:"score"`
	GameTime  float64      `json:"gameTime"` // seconds, one decimal
	GameState string       `json:"gameState"`
	Timestamp int64        `json:"timestamp"` // server ms
}

type PlayerView struct {
	ID           string  `json:"id"`
	X            float32 `json:"x"`
	Y            float32 `json:"y"`
	Vx           float32 `json:"vx"`
	Vy           float32 `json:"vy"`
	Facing       float32 `json:"facing"`
	Kicking      bool    `json:"kicking"`
	OnGround     bool    `json:"onGround"`
	Character    string  `json:"character"`
	KickCooldown float32 `json:"kickCooldown"`
}

type BallView struct {
	X        float32 `json:"x"`
	Y        float32 `json:"y"`
	Vx       float32 `json:"vx"`
	Vy       float32 `json:"vy"`
	Rotation float32 `json:"rotation"`
	Trail    []Vec2  `json:"trail"`
}

type ScoreView struct {
	Left  uint16 `json:"left"`
	Right uint16 `json:"right"`
}

// TakeSnapshot copies the room into its wire form. Waiting/Ready collapse to
// WAITING and the terminal states to FINISHED for the client, which only
// distinguishes the four broadcast phases.
func TakeSnapshot(room *Room) Snapshot {
	snap := Snapshot{
		Players:   make([]PlayerView, 0, 2),
		Score:     ScoreView{Left: room.Score[SeatLeft], Right: room.Score[SeatRight]},
		GameTime:  float64(utils.Round1(float32(room.GameTimeMs / 1000))),
		GameState: broadcastState(room.Status),
		Timestamp: time.Now().UnixMilli(),
	}
	for _, seat := range []Seat{SeatLeft, SeatRight} {
		p := room.Players[seat]
		if p == nil {
			continue
		}
		snap.Players = append(snap.Players, PlayerView{
			ID:           p.ID,
			X:            utils.Round1(p.Position.X),
			Y:            utils.Round1(p.Position.Y),
			Vx:           utils.Round1(p.Velocity.X),
			Vy:           utils.Round1(p.Velocity.Y),
			Facing:       p.Facing,
			Kicking:      p.Kicking,
			OnGround:     p.OnGround,
			Character:    p.Character,
			KickCooldown: utils.Round1(p.KickCooldownMs),
		})
	}

	b := room.Ball
	trail := b.Trail()
	rounded := make([]Vec2, len(trail))
	for i, point := range trail {
		rounded[i] = Vec2{X: utils.Round1(point.X), Y: utils.Round1(point.Y)}
	}
	snap.Ball = BallView{
		X:        utils.Round1(b.Position.X),
		Y:        utils.Round1(b.Position.Y),
		Vx:       utils.Round1(b.Velocity.X),
		Vy:       utils.Round1(b.Velocity.Y),
		Rotation: utils.Round2(b.Rotation),
		Trail:    rounded,
	}
	return snap
}

func broadcastState(s Status) string {
	switch s {
	case StatusPlaying:
		return "PLAYING"
	case StatusPaused:
		return "PAUSED"
	case StatusFinished, StatusAbandoned:
		return "FINISHED"
	default:
		return "WAITING"
	}
}
