// File: game/room.go
package game

import (
	"errors"
	"time"

	"github.com/headsoccer/server/utils"
)

// Status is the room lifecycle state.
type Status int

const (
	StatusWaiting Status = iota
	StatusReady
	StatusPlaying
	StatusPaused
	StatusFinished
	StatusAbandoned
)

var statusNames = [...]string{"WAITING", "READY", "PLAYING", "PAUSED", "FINISHED", "ABANDONED"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "UNKNOWN"
}

// Terminal reports whether the room can never leave this status.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusAbandoned
}

// WinReason classifies how a game ended.
type WinReason string

const (
	WinScoreLimit      WinReason = "score_limit"
	WinTimeLimit       WinReason = "time_limit"
	WinForfeit         WinReason = "forfeit"
	WinDisconnection   WinReason = "disconnection"
	WinMutualAgreement WinReason = "mutual_agreement"
	WinTechnicalIssue  WinReason = "technical_issue"
)

// Winner values for finished rooms.
const (
	WinnerLeft  = "left"
	WinnerRight = "right"
	WinnerDraw  = "draw"
)

// PauseInfo records an active pause.
type PauseInfo struct {
	Reason      string    `json:"reason"`
	Since       time.Time `json:"since"`
	RequestedBy string    `json:"requestedBy"`
}

// Room state-machine errors. The room actor maps these to wire rejection
// codes; they are values, never panics.
var (
	ErrRoomFull        = errors.New("room already has two seated players")
	ErrNotWaiting      = errors.New("room is not accepting players")
	ErrNotPlaying      = errors.New("room is not playing")
	ErrNotPaused       = errors.New("room is not paused")
	ErrNotReady        = errors.New("room is not ready to start")
	ErrNotSeated       = errors.New("player is not seated in this room")
	ErrNotPauser       = errors.New("only the pausing player may resume")
	ErrAlreadyTerminal = errors.New("room already finished")
)

// Room is the authoritative per-match state. It is owned by exactly one
// RoomActor; nothing here is safe for concurrent use.
type Room struct {
	ID         string
	Players    [2]*Player // indexed by Seat
	Ball       *Ball
	Score      [2]uint16
	GameTimeMs float64
	Status     Status
	LastGoalMs float64
	Pause      *PauseInfo
	CreatedAt  time.Time
	StartedAt  time.Time
	EndedAt    time.Time
	Winner     string
	WinReason  WinReason
}

// NewRoom creates an empty Waiting room with the ball at kickoff.
func NewRoom(id string, cfg utils.Config) *Room {
	return &Room{
		ID: id,
		// First goal is allowed immediately.
		LastGoalMs: -float64(cfg.GoalCooldownMs),
		Ball:       NewBall(cfg),
		Status:     StatusWaiting,
		CreatedAt:  time.Now(),
	}
}

// Join seats a player, Left first. Accepted only while Waiting.
func (r *Room) Join(id, character string, cfg utils.Config) (Seat, error) {
	if r.Status != StatusWaiting {
		return 0, ErrNotWaiting
	}
	for _, seat := range []Seat{SeatLeft, SeatRight} {
		if r.Players[seat] == nil {
			r.Players[seat] = NewPlayer(id, character, seat, cfg)
			return seat, nil
		}
	}
	return 0, ErrRoomFull
}

// SeatOf resolves a seated player's seat.
func (r *Room) SeatOf(playerID string) (Seat, bool) {
	for _, seat := range []Seat{SeatLeft, SeatRight} {
		if p := r.Players[seat]; p != nil && p.ID == playerID {
			return seat, true
		}
	}
	return 0, false
}

// SeatedCount returns the number of occupied seats.
func (r *Room) SeatedCount() int {
	count := 0
	for _, p := range r.Players {
		if p != nil {
			count++
		}
	}
	return count
}

// SetReady marks a seated player ready. When both seats are ready the room
// transitions Waiting -> Ready. Repeats are idempotent.
func (r *Room) SetReady(playerID string, ready bool) error {
	seat, ok := r.SeatOf(playerID)
	if !ok {
		return ErrNotSeated
	}
	if r.Status != StatusWaiting && r.Status != StatusReady {
		return ErrNotWaiting
	}
	r.Players[seat].Ready = ready
	if r.SeatedCount() == 2 && r.Players[SeatLeft].Ready && r.Players[SeatRight].Ready {
		r.Status = StatusReady
	} else {
		r.Status = StatusWaiting
	}
	return nil
}

// StartGame transitions Ready -> Playing and stamps startedAt.
func (r *Room) StartGame() error {
	if r.Status != StatusReady {
		return ErrNotReady
	}
	r.Status = StatusPlaying
	r.StartedAt = time.Now()
	return nil
}

// RequestPause transitions Playing -> Paused.
func (r *Room) RequestPause(playerID, reason string) error {
	if r.Status != StatusPlaying {
		return ErrNotPlaying
	}
	r.Status = StatusPaused
	r.Pause = &PauseInfo{Reason: reason, Since: time.Now(), RequestedBy: playerID}
	return nil
}

// RequestResume transitions Paused -> Playing. Only the pauser may resume;
// the timeout path bypasses the identity check with force=true.
func (r *Room) RequestResume(playerID string, force bool) error {
	if r.Status != StatusPaused {
		return ErrNotPaused
	}
	if !force && r.Pause != nil && r.Pause.RequestedBy != "" && r.Pause.RequestedBy != playerID {
		return ErrNotPauser
	}
	r.Status = StatusPlaying
	r.Pause = nil
	return nil
}

// DropPlayer removes a seated player. A Playing room pauses and waits for the
// grace period; an empty non-terminal room is Abandoned. Returns the
// resulting status.
func (r *Room) DropPlayer(playerID, reason string) (Status, error) {
	seat, ok := r.SeatOf(playerID)
	if !ok {
		return r.Status, ErrNotSeated
	}
	switch r.Status {
	case StatusFinished, StatusAbandoned:
		return r.Status, ErrAlreadyTerminal
	case StatusPlaying:
		r.Status = StatusPaused
		r.Pause = &PauseInfo{Reason: "playerLeft", Since: time.Now(), RequestedBy: playerID}
	default:
		r.Players[seat] = nil
		if r.SeatedCount() == 0 {
			r.Status = StatusAbandoned
			r.EndedAt = time.Now()
		}
	}
	return r.Status, nil
}

// ForceEnd terminates the room with the given reason. The winner is derived
// from the score unless the caller names the forfeiting player, in which case
// the remaining seat wins.
func (r *Room) ForceEnd(reason WinReason, forfeitedBy string) error {
	if r.Status.Terminal() {
		return ErrAlreadyTerminal
	}
	r.Status = StatusFinished
	r.WinReason = reason
	r.Pause = nil
	r.EndedAt = time.Now()

	if forfeitedBy != "" {
		if seat, ok := r.SeatOf(forfeitedBy); ok {
			r.Winner = seat.Opponent().String()
			return nil
		}
	}
	if reason == WinTechnicalIssue {
		// Nobody identifiable is at fault, so neither side wins.
		r.Winner = WinnerDraw
		return nil
	}
	r.Winner = winnerFromScore(r.Score)
	return nil
}

// finishByScore is the simulator-side terminal transition; timestamps are
// stamped by the room actor, which owns the wall clock.
func (r *Room) finishByScore(reason WinReason) {
	r.Status = StatusFinished
	r.WinReason = reason
	r.Winner = winnerFromScore(r.Score)
}

func winnerFromScore(score [2]uint16) string {
	switch {
	case score[SeatLeft] > score[SeatRight]:
		return WinnerLeft
	case score[SeatRight] > score[SeatLeft]:
		return WinnerRight
	default:
		return WinnerDraw
	}
}
