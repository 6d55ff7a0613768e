// File: server/connections.go
package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lguibr/bollywood"
	"golang.org/x/net/websocket"

	"github.com/headsoccer/server/game"
	"github.com/headsoccer/server/utils"
)

// ConnStatus is a connection's lifecycle state.
type ConnStatus string

const (
	StatusConnected     ConnStatus = "connected"
	StatusAuthenticated ConnStatus = "authenticated"
	StatusInRoom        ConnStatus = "in_room"
)

var (
	ErrNotAuthenticated = errors.New("connection is not authenticated")
	ErrPlayerIDTooLong  = errors.New("playerId exceeds 50 characters")
	ErrUsernameTooLong  = errors.New("username exceeds 20 characters")
	ErrEmptyIdentity    = errors.New("playerId and username are required")
)

// Connection is one live socket plus its per-connection state. The table's
// lock guards the identity fields; sends serialize on sendMu so concurrent
// broadcasters never interleave frames.
type Connection struct {
	SocketID    string
	PlayerID    string
	Username    string
	Character   string
	Status      ConnStatus
	ConnectedAt time.Time
	Limiter     *EventLimiter

	ws       *websocket.Conn
	lastSeen time.Time
	roomID   string
	roomPID  *bollywood.PID
	sendMu   sync.Mutex
}

// roomBinding survives a socket drop for the disconnect grace window so a
// reconnecting player lands back in their room.
type roomBinding struct {
	roomID    string
	roomPID   *bollywood.PID
	droppedAt time.Time
}

// Table owns every live connection behind a reader-writer lock: broadcasts
// take the read side, connect/disconnect take the write side. It implements
// game.SessionBinder.
type Table struct {
	cfg      utils.Config
	mu       sync.RWMutex
	bySocket map[*websocket.Conn]*Connection
	byPlayer map[string]*Connection
	grace    map[string]roomBinding
	closed   bool
}

func NewTable(cfg utils.Config) *Table {
	return &Table{
		cfg:      cfg,
		bySocket: make(map[*websocket.Conn]*Connection),
		byPlayer: make(map[string]*Connection),
		grace:    make(map[string]roomBinding),
	}
}

// Register admits a new unauthenticated socket.
func (t *Table) Register(ws *websocket.Conn) *Connection {
	conn := &Connection{
		SocketID:    uuid.NewString(),
		Status:      StatusConnected,
		ConnectedAt: time.Now(),
		Limiter:     NewEventLimiter(t.cfg),
		ws:          ws,
		lastSeen:    time.Now(),
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = ws.Close()
		return nil
	}
	t.bySocket[ws] = conn
	t.mu.Unlock()
	return conn
}

// Authenticate binds an identity to the socket. A second live socket for the
// same playerId evicts the first; a player returning within the disconnect
// grace window gets their room binding back. Returns the prior room's PID
// when this is a reconnection.
func (t *Table) Authenticate(conn *Connection, playerID, username, character string) (*bollywood.PID, bool, error) {
	if playerID == "" || username == "" {
		return nil, false, ErrEmptyIdentity
	}
	if len(playerID) > 50 {
		return nil, false, ErrPlayerIDTooLong
	}
	if len(username) > 20 {
		return nil, false, ErrUsernameTooLong
	}

	var evict *websocket.Conn
	t.mu.Lock()
	if prior, ok := t.byPlayer[playerID]; ok && prior != conn {
		// The newer socket wins; the stale one is closed outside the lock.
		evict = prior.ws
		delete(t.bySocket, prior.ws)
		delete(t.byPlayer, playerID)
	}
	conn.PlayerID = playerID
	conn.Username = username
	conn.Character = character
	conn.Status = StatusAuthenticated
	conn.lastSeen = time.Now()
	t.byPlayer[playerID] = conn

	var priorRoom *bollywood.PID
	reconnected := false
	if binding, ok := t.grace[playerID]; ok {
		delete(t.grace, playerID)
		if time.Since(binding.droppedAt) <= t.cfg.DisconnectGrace() {
			conn.roomID = binding.roomID
			conn.roomPID = binding.roomPID
			conn.Status = StatusInRoom
			priorRoom = binding.roomPID
			reconnected = true
		}
	}
	t.mu.Unlock()

	if evict != nil {
		fmt.Printf("Table: Evicting duplicate socket for player %s.\n", playerID)
		_ = evict.Close()
	}
	return priorRoom, reconnected, nil
}

// Unregister drops the socket and, if the player was in a room, opens the
// grace window. Returns the connection that was removed, or nil.
func (t *Table) Unregister(ws *websocket.Conn) *Connection {
	t.mu.Lock()
	conn, ok := t.bySocket[ws]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	delete(t.bySocket, ws)
	if conn.PlayerID != "" && t.byPlayer[conn.PlayerID] == conn {
		delete(t.byPlayer, conn.PlayerID)
		if conn.roomPID != nil {
			t.grace[conn.PlayerID] = roomBinding{
				roomID:    conn.roomID,
				roomPID:   conn.roomPID,
				droppedAt: time.Now(),
			}
		}
	}
	t.mu.Unlock()
	return conn
}

// Touch refreshes the liveness clock for a socket.
func (t *Table) Touch(ws *websocket.Conn) {
	t.mu.Lock()
	if conn, ok := t.bySocket[ws]; ok {
		conn.lastSeen = time.Now()
	}
	t.mu.Unlock()
}

// Lookup resolves the connection for a socket.
func (t *Table) Lookup(ws *websocket.Conn) *Connection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bySocket[ws]
}

// --- game.SessionBinder ---

func (t *Table) SendToPlayer(playerID, event string, payload interface{}) {
	t.mu.RLock()
	conn := t.byPlayer[playerID]
	t.mu.RUnlock()
	if conn != nil {
		conn.Send(event, payload)
	}
}

func (t *Table) BindRoom(playerID, roomID string, roomPID *bollywood.PID) {
	t.mu.Lock()
	if conn, ok := t.byPlayer[playerID]; ok {
		conn.roomID = roomID
		conn.roomPID = roomPID
		conn.Status = StatusInRoom
	}
	t.mu.Unlock()
}

func (t *Table) UnbindRoom(playerID string) {
	t.mu.Lock()
	if conn, ok := t.byPlayer[playerID]; ok {
		conn.roomID = ""
		conn.roomPID = nil
		if conn.Status == StatusInRoom {
			conn.Status = StatusAuthenticated
		}
	}
	delete(t.grace, playerID)
	t.mu.Unlock()
}

func (t *Table) ConnOf(playerID string) *websocket.Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if conn, ok := t.byPlayer[playerID]; ok {
		return conn.ws
	}
	return nil
}

func (t *Table) RoomPIDOf(playerID string) *bollywood.PID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if conn, ok := t.byPlayer[playerID]; ok {
		return conn.roomPID
	}
	return nil
}

// --- Broadcast and maintenance ---

// BroadcastToAll sends one event to every live socket.
func (t *Table) BroadcastToAll(event string, payload interface{}) {
	t.mu.RLock()
	conns := make([]*Connection, 0, len(t.bySocket))
	for _, conn := range t.bySocket {
		conns = append(conns, conn)
	}
	t.mu.RUnlock()
	for _, conn := range conns {
		conn.Send(event, payload)
	}
}

// SweepStale returns connections silent past the timeout and pings the rest.
// The caller closes the returned sockets.
func (t *Table) SweepStale(now time.Time) []*Connection {
	timeout := t.cfg.ConnectionTimeout()
	t.mu.Lock()
	var stale []*Connection
	var live []*Connection
	for _, conn := range t.bySocket {
		if now.Sub(conn.lastSeen) > timeout {
			stale = append(stale, conn)
		} else {
			live = append(live, conn)
		}
	}
	for playerID, binding := range t.grace {
		if now.Sub(binding.droppedAt) > t.cfg.DisconnectGrace() {
			delete(t.grace, playerID)
		}
	}
	t.mu.Unlock()

	for _, conn := range live {
		conn.Send(EvHeartbeat, map[string]interface{}{"serverTime": now.UnixMilli()})
	}
	return stale
}

// Counts reports connection totals for /stats.
func (t *Table) Counts() (total, authenticated, inRoom int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total = len(t.bySocket)
	for _, conn := range t.bySocket {
		switch conn.Status {
		case StatusAuthenticated:
			authenticated++
		case StatusInRoom:
			authenticated++
			inRoom++
		}
	}
	return
}

// Shutdown notifies every socket and closes it. The table accepts no new
// registrations afterwards.
func (t *Table) Shutdown() {
	t.mu.Lock()
	t.closed = true
	conns := make([]*Connection, 0, len(t.bySocket))
	for _, conn := range t.bySocket {
		conns = append(conns, conn)
	}
	t.bySocket = make(map[*websocket.Conn]*Connection)
	t.byPlayer = make(map[string]*Connection)
	t.grace = make(map[string]roomBinding)
	t.mu.Unlock()

	fmt.Printf("Table: Shutting down, closing %d connections.\n", len(conns))
	for _, conn := range conns {
		conn.Send(EvServerShutdown, map[string]interface{}{"reason": "server shutting down"})
		_ = conn.ws.Close()
	}
}

// Send writes one envelope to this connection's socket.
func (c *Connection) Send(event string, payload interface{}) {
	env := game.Outbound{Event: event, Data: payload, Timestamp: time.Now().UnixMilli()}
	c.sendMu.Lock()
	err := websocket.JSON.Send(c.ws, &env)
	c.sendMu.Unlock()
	if err != nil && !isClosedWriteError(err) {
		fmt.Printf("Table: Failed to send %s to %s: %v\n", event, c.SocketID, err)
	}
}

// RoomPID returns the room actor this connection is bound to, or nil.
func (c *Connection) RoomPID() *bollywood.PID {
	return c.roomPID
}

// RoomID returns the bound room id, empty when not in a room.
func (c *Connection) RoomID() string {
	return c.roomID
}

func isClosedWriteError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "use of closed network connection") ||
		strings.Contains(s, "broken pipe") ||
		strings.Contains(s, "connection reset by peer") ||
		strings.Contains(s, "EOF")
}
