package websocket

import (
	"context"

	"github.com/rocketscienceinc/tictactoe-realtime/internal/apperror"
)

func (that *Server) handleMessage(ctx context.Context, conn *Conn, data []byte) {
	msg, err := decodeInbound(data)
	if err != nil {
		that.logger.Debug("bad inbound message", "conn_id", conn.ID(), "error", err)
		that.send(conn, rejectionFor("", err))
		return
	}

	switch msg := msg.(type) {
	case JoinSession:
		that.handleJoinSession(ctx, conn, msg)
	case SubmitMove:
		that.handleSubmitMove(ctx, conn, msg)
	}
}

// handleJoinSession subscribes the connection to the room and, once the session is found, binds
// the caller's identity to it. A missing or invalid token makes the connection an anonymous observer.
func (that *Server) handleJoinSession(ctx context.Context, conn *Conn, msg JoinSession) {
	log := that.logger.With("method", "handleJoinSession", "conn_id", conn.ID(), "session_id", msg.SessionID)

	identity := ""
	if msg.Token != "" {
		verified, err := that.verifier.Verify(msg.Token)
		if err != nil {
			log.Debug("token rejected, joining as observer", "error", err)
		} else {
			identity = verified
		}
	}

	added := that.rooms.Subscribe(msg.SessionID, conn)

	session, err := that.coordinator.Get(ctx, msg.SessionID)
	if err != nil {
		if added {
			that.rooms.Unsubscribe(msg.SessionID, conn)
		}

		that.reject(conn, msg.SessionID, err)
		return
	}

	conn.bindIdentity(identity)

	that.send(conn, stateFor(session, identity))

	log.Info("subscribed to session", "identity", identity)
}

func (that *Server) handleSubmitMove(ctx context.Context, conn *Conn, msg SubmitMove) {
	log := that.logger.With("method", "handleSubmitMove", "conn_id", conn.ID(), "session_id", msg.SessionID)

	identity := conn.Identity()
	if identity == "" {
		that.reject(conn, msg.SessionID, apperror.ErrNotParticipant)
		return
	}

	session, err := that.coordinator.ApplyMove(ctx, msg.SessionID, identity, *msg.CellIndex, msg.Mark)
	if err != nil {
		that.reject(conn, msg.SessionID, err)
		return
	}

	log.Debug("move accepted", "cell", *msg.CellIndex, "board", session.Board.String())

	that.broadcast(session)
}

func (that *Server) reject(conn *Conn, sessionID string, err error) {
	if !apperror.IsRejection(err) {
		that.logger.Error("request failed", "conn_id", conn.ID(), "session_id", sessionID, "error", err)
	}

	that.send(conn, rejectionFor(sessionID, err))
}
