package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendQueueSize  = 16
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Conn is the per-connection context: who is on the other end and which rooms it listens to.
type Conn struct {
	id string
	ws *websocket.Conn

	send chan []byte
	done chan struct{}

	closeOnce sync.Once

	mu       sync.RWMutex
	identity string
	sessions map[string]struct{}
}

func newConn(id string, ws *websocket.Conn) *Conn {
	return &Conn{
		id:       id,
		ws:       ws,
		send:     make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
		sessions: make(map[string]struct{}),
	}
}

func (that *Conn) ID() string {
	return that.id
}

// Identity is the verified user id, empty for an anonymous observer.
func (that *Conn) Identity() string {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.identity
}

func (that *Conn) bindIdentity(identity string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.identity = identity
}

func (that *Conn) addSession(sessionID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sessions[sessionID] = struct{}{}
}

func (that *Conn) removeSession(sessionID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, sessionID)
}

func (that *Conn) subscriptions() []string {
	that.mu.RLock()
	defer that.mu.RUnlock()

	ids := make([]string, 0, len(that.sessions))
	for id := range that.sessions {
		ids = append(ids, id)
	}

	return ids
}

// enqueue never blocks. It reports false when the queue is full or the connection is gone.
func (that *Conn) enqueue(data []byte) bool {
	select {
	case <-that.done:
		return false
	default:
	}

	select {
	case that.send <- data:
		return true
	default:
		return false
	}
}

// Close asks the write pump to send a close frame and release the socket.
func (that *Conn) Close() {
	that.closeOnce.Do(func() {
		close(that.done)
	})
}

func (that *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		that.Close()
		_ = that.ws.Close()
	}()

	for {
		select {
		case data := <-that.send:
			_ = that.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = that.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := that.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-that.done:
			_ = that.ws.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return
		}
	}
}
