// File: game/notifier.go
package game

import (
	"github.com/lguibr/bollywood"
	"golang.org/x/net/websocket"
)

// Notifier delivers a single wire event to one connected player. The server's
// connection table implements it; actors use it for player-targeted
// notifications that fall outside room broadcasts (queue updates, claim
// rejections, match lifecycle).
type Notifier interface {
	SendToPlayer(playerID, event string, payload interface{})
}

// SessionBinder extends Notifier with room routing: once a match starts, the
// connection layer must know which room actor owns each player so ingame
// events reach the right mailbox.
type SessionBinder interface {
	Notifier
	BindRoom(playerID, roomID string, roomPID *bollywood.PID)
	UnbindRoom(playerID string)
	// ConnOf returns the player's live socket, or nil when disconnected.
	ConnOf(playerID string) *websocket.Conn
	// RoomPIDOf returns the room actor the player is bound to, or nil.
	RoomPIDOf(playerID string) *bollywood.PID
}
