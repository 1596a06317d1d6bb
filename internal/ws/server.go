package ws

import (
	"context"
	"errors"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"arenago/internal/services/auth"
	"arenago/internal/services/space"
)

const (
	writeWait       = 10 * time.Second
	pingPeriod      = 3 * time.Second
	dispatchTimeout = 1900 * time.Millisecond
	maxMessageSize  = 4096 // join payloads carry a JWT
)

// TokenVerifier is the identity-verifier contract: opaque token in,
// identity out. Implemented by the auth service.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// session is the per-connection view handed to message handlers.
type session struct {
	conn *clientConn
	srv  *WsServer
}

type WsServer struct {
	hub      *Hub
	registry *Registry
	router   *Router
	verifier TokenVerifier
}

func NewWsServer(h *Hub, verifier TokenVerifier) *WsServer {
	srv := &WsServer{
		hub:      h,
		registry: NewRegistry(h),
		router:   NewRouter(),
		verifier: verifier,
	}
	srv.registerHandlers() // ← the whole inbound protocol lives here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := websocket.Accept(
		ginCtx.Writer, ginCtx.Request,
		&websocket.AcceptOptions{InsecureSkipVerify: true}, // dev-only
	)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(maxMessageSize)

	conn := newClientConn(rawConn)
	s.registry.Register(conn)

	go conn.writePump()
	go s.reader(conn)
	go s.pinger(conn)
}

// ---------------------------------------------------------------------------
//  Protocol handlers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	Register(s.router, MsgJoin, s.handleJoin)
	Register(s.router, MsgMovement, s.handleMovement)
}

// handleJoin drives the Pending → Joined transition. Every rejection
// leaves the connection Pending and usable.
func (s *WsServer) handleJoin(ctx context.Context, sess *session, req JoinPayload) error {
	if sess.conn.joined {
		return rejectf(ErrCodeInvalidTransition, "already joined a space")
	}

	claims, err := s.verifier.VerifyToken(req.Token)
	if err != nil {
		return rejectf(ErrCodeAuth, "token rejected")
	}

	_, err = s.hub.Join(ctx, req.SpaceID, claims.UserID, sess.conn)
	switch {
	case err == nil:
	case errors.Is(err, space.ErrSpaceNotFound):
		return rejectf(ErrCodeSpaceNotFound, "unknown space "+req.SpaceID)
	case errors.Is(err, ErrSpaceFull):
		return rejectf(ErrCodeSpaceFull, "no free spawn cell")
	case errors.Is(err, ErrAlreadyJoined):
		return rejectf(ErrCodeAlreadyJoined, "user already in this space")
	default:
		return err // internal fault: drop this connection only
	}

	sess.conn.joined = true
	sess.conn.spaceID = req.SpaceID
	sess.conn.userID = claims.UserID
	return nil
}

// handleMovement forwards the proposed target into the room's
// serialization point; accept/reject events are emitted from there.
func (s *WsServer) handleMovement(_ context.Context, sess *session, req MovementPayload) error {
	if !sess.conn.joined {
		return rejectf(ErrCodeInvalidTransition, "movement before join")
	}
	s.hub.Move(sess.conn.spaceID, sess.conn.userID, space.Cell{X: req.X, Y: req.Y})
	return nil
}

// handleMessage dispatches one inbound envelope. Protocol rejections
// are answered on the connection and swallowed; any other error is
// fatal to this connection.
func (s *WsServer) handleMessage(ctx context.Context, sess *session, env Envelope) error {
	err := s.router.dispatch(ctx, sess, env)
	if err == nil {
		return nil
	}
	var reject *protocolError
	if errors.As(err, &reject) {
		sess.conn.enqueue(errorEnvelope(reject.code, reject.msg))
		return nil
	}
	return err
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) reader(conn *clientConn) {
	defer func() {
		// Transport closed, whatever the cause: run the leave path to
		// completion before the connection id is released.
		s.registry.Remove(conn)
		conn.close(websocket.StatusNormalClosure, "closing")
	}()

	sess := &session{conn: conn, srv: s}
	for {
		var env Envelope
		if err := wsjson.Read(context.Background(), conn.raw, &env); err != nil {
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		err := s.handleMessage(ctx, sess, env)
		cancel()
		if err != nil {
			zap.L().Error("ws.dispatch",
				zap.String("conn_id", conn.id),
				zap.String("type", env.Type),
				zap.Error(err))
			return
		}
	}
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-conn.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := conn.raw.Ping(ctx)
			cancel()
			if err != nil {
				conn.close(websocket.StatusNormalClosure, "ping timeout")
				return
			}
		}
	}
}
