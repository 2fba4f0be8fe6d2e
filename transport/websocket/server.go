package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/entity"
)

type sessionCoordinator interface {
	Get(ctx context.Context, id string) (*entity.Session, error)
	ApplyMove(ctx context.Context, sessionID, actorID string, index int, mark entity.Mark) (*entity.Session, error)
}

type tokenVerifier interface {
	Verify(token string) (string, error)
}

type Server struct {
	logger      *slog.Logger
	coordinator sessionCoordinator
	verifier    tokenVerifier
	rooms       *Rooms

	upgrader websocket.Upgrader
	srv      *http.Server

	connSeq          atomic.Uint64
	connections      map[string]*Conn
	connectionsMutex sync.RWMutex
}

func New(logger *slog.Logger, coordinator sessionCoordinator, verifier tokenVerifier, allowedOrigins []string) *Server {
	server := &Server{
		logger:      logger.With("component", "websocket"),
		coordinator: coordinator,
		verifier:    verifier,
		rooms:       NewRooms(),
		connections: make(map[string]*Conn),
	}

	server.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(allowedOrigins),
	}

	return server
}

// checkOrigin allows requests without an Origin header and those from allowed origins. "*" allows all.
func checkOrigin(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowedOrigins) == 0 {
			return true
		}

		return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
	}
}

func (that *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.upgradeToWebSocket)

	return mux
}

// Start - starts WebSocket server.
func (that *Server) Start(port string) error {
	that.srv = &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	if err := that.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown stops accepting connections and closes the live ones.
func (that *Server) Shutdown(ctx context.Context) error {
	that.connectionsMutex.RLock()
	for _, conn := range that.connections {
		conn.Close()
	}
	that.connectionsMutex.RUnlock()

	if that.srv == nil {
		return nil
	}

	if err := that.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown websocket server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection to WebSocket.
func (that *Server) upgradeToWebSocket(writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	ws, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Warn("failed to upgrade connection", "error", err)
		return
	}

	conn := newConn(strconv.FormatUint(that.connSeq.Add(1), 10), ws)

	that.connectionsMutex.Lock()
	that.connections[conn.ID()] = conn
	that.connectionsMutex.Unlock()

	log.Info("WebSocket connection established", "conn_id", conn.ID())

	go conn.writePump()
	that.readPump(req.Context(), conn)
}

// readPump handles inbound frames one at a time until the connection goes away.
func (that *Server) readPump(ctx context.Context, conn *Conn) {
	log := that.logger.With("method", "readPump", "conn_id", conn.ID())

	defer func() {
		that.rooms.Leave(conn)

		that.connectionsMutex.Lock()
		delete(that.connections, conn.ID())
		that.connectionsMutex.Unlock()

		conn.Close()

		log.Info("WebSocket connection closed")
	}()

	conn.ws.SetReadLimit(maxMessageSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("error reading message", "error", err)
			}
			return
		}

		that.handleMessage(ctx, conn, data)
	}
}

// send encodes out and queues it for conn. A connection that cannot keep up is dropped.
func (that *Server) send(conn *Conn, out Outbound) {
	data, err := encodeOutbound(out)
	if err != nil {
		that.logger.Error("failed to encode message", "action", out.action(), "error", err)
		return
	}

	if !conn.enqueue(data) {
		that.logger.Warn("dropping slow connection", "conn_id", conn.ID())
		that.rooms.Leave(conn)
		conn.Close()
	}
}

// broadcast sends every subscriber of the session its own view of it.
func (that *Server) broadcast(session *entity.Session) {
	for _, conn := range that.rooms.Members(session.ID) {
		that.send(conn, stateFor(session, conn.Identity()))
	}
}
