package websocket

import "sync"

// Rooms maps a session id to the connections subscribed to it.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		rooms: make(map[string]map[*Conn]struct{}),
	}
}

// Subscribe adds conn to the room and reports whether it was not a member yet.
func (that *Rooms) Subscribe(sessionID string, conn *Conn) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[sessionID]
	if !ok {
		room = make(map[*Conn]struct{})
		that.rooms[sessionID] = room
	}

	if _, member := room[conn]; member {
		return false
	}

	room[conn] = struct{}{}
	conn.addSession(sessionID)

	return true
}

func (that *Rooms) Unsubscribe(sessionID string, conn *Conn) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.unsubscribe(sessionID, conn)
}

func (that *Rooms) unsubscribe(sessionID string, conn *Conn) {
	conn.removeSession(sessionID)

	room, ok := that.rooms[sessionID]
	if !ok {
		return
	}

	delete(room, conn)
	if len(room) == 0 {
		delete(that.rooms, sessionID)
	}
}

// Leave drops every subscription held by conn.
func (that *Rooms) Leave(conn *Conn) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for _, sessionID := range conn.subscriptions() {
		that.unsubscribe(sessionID, conn)
	}
}

func (that *Rooms) Members(sessionID string) []*Conn {
	that.mu.RLock()
	defer that.mu.RUnlock()

	room := that.rooms[sessionID]

	members := make([]*Conn, 0, len(room))
	for conn := range room {
		members = append(members, conn)
	}

	return members
}

func (that *Rooms) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.rooms)
}
