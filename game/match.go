// File: game/match.go
package game

import "time"

// GameMode is the matchmaking queue selector. Pairing is strict FIFO for all
// modes; ranked/tournament semantics beyond FIFO live outside the core.
type GameMode string

const (
	ModeCasual     GameMode = "casual"
	ModeRanked     GameMode = "ranked"
	ModeTournament GameMode = "tournament"
)

// ValidMode reports whether the mode is one the router accepts.
func ValidMode(mode GameMode) bool {
	switch mode {
	case ModeCasual, ModeRanked, ModeTournament:
		return true
	}
	return false
}

// Matchmaking rejection codes (wire-visible).
const (
	CodeAlreadyQueued   = "ALREADY_QUEUED"
	CodeConnectionError = "CONNECTION_ERROR"
	CodeInvalidMode     = "INVALID_MODE"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeInGame          = "IN_GAME"
	CodeNotQueued       = "NOT_QUEUED"
)

// MatchRequest is one queue entry; a player holds at most one across all
// modes.
type MatchRequest struct {
	PlayerID    string
	Mode        GameMode
	Preferences map[string]string
	EnqueuedAt  time.Time
	QueueID     string
}

// PendingMatch is a pair that has been popped from a queue and reserved a
// room, waiting for both ready-ups.
type PendingMatch struct {
	MatchID     string
	Mode        GameMode
	Players     [2]string // left, right order of pairing
	RoomID      string
	ReadyStates map[string]bool
	CreatedAt   time.Time
}

// BothReady reports whether both paired players have readied up.
func (m *PendingMatch) BothReady() bool {
	return m.ReadyStates[m.Players[0]] && m.ReadyStates[m.Players[1]]
}

// ReadyPlayers lists the players who had readied, in pairing order. Used by
// the requeue_ready cancellation policy.
func (m *PendingMatch) ReadyPlayers() []string {
	ready := []string{}
	for _, id := range m.Players {
		if m.ReadyStates[id] {
			ready = append(ready, id)
		}
	}
	return ready
}

// Opponent returns the other player of the pair.
func (m *PendingMatch) Opponent(playerID string) string {
	if m.Players[0] == playerID {
		return m.Players[1]
	}
	return m.Players[0]
}

// MatchResult is what the game-end pipeline persists on terminal
// transitions.
type MatchResult struct {
	RoomID     string    `json:"roomId"`
	Players    [2]string `json:"players"` // left, right
	ScoreLeft  uint16    `json:"scoreLeft"`
	ScoreRight uint16    `json:"scoreRight"`
	Winner     string    `json:"winner"`
	WinReason  WinReason `json:"winReason"`
	DurationMs float64   `json:"durationMs"`
	EndedAt    time.Time `json:"endedAt"`
}
