// File: server/connections_test.go
package server

import (
	"strings"
	"testing"
	"time"

	"github.com/lguibr/bollywood"
	"github.com/stretchr/testify/assert"
	"golang.org/x/net/websocket"

	"github.com/headsoccer/server/utils"
)

func TestAuthenticateRejectsBadIdentity(t *testing.T) {
	table := NewTable(utils.DefaultConfig())
	conn := table.Register(&websocket.Conn{})

	_, _, err := table.Authenticate(conn, "", "ada", "")
	assert.ErrorIs(t, err, ErrEmptyIdentity)

	_, _, err = table.Authenticate(conn, strings.Repeat("p", 51), "ada", "")
	assert.ErrorIs(t, err, ErrPlayerIDTooLong)

	_, _, err = table.Authenticate(conn, "p1", strings.Repeat("u", 21), "")
	assert.ErrorIs(t, err, ErrUsernameTooLong)
}

func TestAuthenticateBindsIdentity(t *testing.T) {
	table := NewTable(utils.DefaultConfig())
	conn := table.Register(&websocket.Conn{})

	prior, reconnected, err := table.Authenticate(conn, "p1", "ada", "striker")
	assert.NoError(t, err)
	assert.Nil(t, prior)
	assert.False(t, reconnected)
	assert.Equal(t, StatusAuthenticated, conn.Status)
	assert.Equal(t, "striker", conn.Character)

	total, authed, inRoom := table.Counts()
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, authed)
	assert.Equal(t, 0, inRoom)
}

func TestGraceWindowRestoresRoomBinding(t *testing.T) {
	cfg := utils.DefaultConfig()
	table := NewTable(cfg)

	ws1 := &websocket.Conn{}
	conn := table.Register(ws1)
	_, _, err := table.Authenticate(conn, "p1", "ada", "")
	assert.NoError(t, err)

	roomPID := &bollywood.PID{}
	table.BindRoom("p1", "room-7", roomPID)
	assert.Equal(t, StatusInRoom, conn.Status)

	dropped := table.Unregister(ws1)
	assert.Equal(t, conn, dropped)

	// The player returns on a fresh socket inside the grace window.
	conn2 := table.Register(&websocket.Conn{})
	prior, reconnected, err := table.Authenticate(conn2, "p1", "ada", "")
	assert.NoError(t, err)
	assert.True(t, reconnected)
	assert.Equal(t, roomPID, prior)
	assert.Equal(t, "room-7", conn2.RoomID())
	assert.Equal(t, StatusInRoom, conn2.Status)
}

func TestGraceWindowExpires(t *testing.T) {
	cfg := utils.DefaultConfig()
	cfg.DisconnectGraceMs = 20
	table := NewTable(cfg)

	ws1 := &websocket.Conn{}
	conn := table.Register(ws1)
	_, _, err := table.Authenticate(conn, "p1", "ada", "")
	assert.NoError(t, err)
	table.BindRoom("p1", "room-7", &bollywood.PID{})
	table.Unregister(ws1)

	time.Sleep(50 * time.Millisecond)

	conn2 := table.Register(&websocket.Conn{})
	prior, reconnected, err := table.Authenticate(conn2, "p1", "ada", "")
	assert.NoError(t, err)
	assert.False(t, reconnected, "binding past the grace window must not be restored")
	assert.Nil(t, prior)
	assert.Equal(t, StatusAuthenticated, conn2.Status)
}

func TestUnbindRoomClearsGrace(t *testing.T) {
	cfg := utils.DefaultConfig()
	table := NewTable(cfg)

	ws1 := &websocket.Conn{}
	conn := table.Register(ws1)
	_, _, err := table.Authenticate(conn, "p1", "ada", "")
	assert.NoError(t, err)
	table.BindRoom("p1", "room-7", &bollywood.PID{})
	table.Unregister(ws1)

	// The game ended while the player was away: the binding is gone.
	table.UnbindRoom("p1")

	conn2 := table.Register(&websocket.Conn{})
	_, reconnected, err := table.Authenticate(conn2, "p1", "ada", "")
	assert.NoError(t, err)
	assert.False(t, reconnected)
}

func TestSessionBinderLookups(t *testing.T) {
	table := NewTable(utils.DefaultConfig())
	ws := &websocket.Conn{}
	conn := table.Register(ws)
	_, _, err := table.Authenticate(conn, "p1", "ada", "")
	assert.NoError(t, err)

	assert.Equal(t, ws, table.ConnOf("p1"))
	assert.Nil(t, table.ConnOf("stranger"))
	assert.Nil(t, table.RoomPIDOf("p1"))

	pid := &bollywood.PID{}
	table.BindRoom("p1", "room-1", pid)
	assert.Equal(t, pid, table.RoomPIDOf("p1"))

	table.UnbindRoom("p1")
	assert.Nil(t, table.RoomPIDOf("p1"))
	assert.Equal(t, StatusAuthenticated, conn.Status)
}
