package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"auctionhouse/internal/http/auctionhandler"
	"auctionhouse/internal/services/auction"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 12 * time.Second
	pingPeriod     = 3 * time.Second // must be < pongWait
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true }, // dev‑only
}

type WsServer struct {
	hub        *Hub
	subMgr     *subscriptionManager
	router     *Router
	auctionSvc auction.IAuctionService
}

// NewWsServer wires viewers to live events. With a Redis client events
// arrive through pub/sub; without one they must be published to the hub
// directly (see HubPublisher).
func NewWsServer(h *Hub, rdc *redis.Client, auctionSvc auction.IAuctionService) *WsServer {
	srv := &WsServer{
		hub:        h,
		router:     NewRouter(),
		auctionSvc: auctionSvc,
	}
	if rdc != nil {
		srv.subMgr = newSubscriptionManager(rdc, h)
	}
	srv.registerHandlers() // ← all WS endpoints configured here
	return srv
}

// Close stops the Redis feeds. Open sockets are left to the HTTP shutdown.
func (s *WsServer) Close() {
	if s.subMgr != nil {
		s.subMgr.Close()
	}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry‑point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	auctionID := ginCtx.Query("auction_id")
	if auctionID == "" {
		ginCtx.JSON(http.StatusBadRequest, ErrorBody{Error: "auction_id is required", Code: "bad_request"})
		return
	}
	// bids go out under the authenticated caller, never a client-chosen name
	userID := auctionhandler.ActorOf(ginCtx).UserID
	if userID == "" {
		ginCtx.JSON(http.StatusUnauthorized, ErrorBody{
			Error: auctionhandler.HeaderUserID + " header is required",
			Code:  "unauthenticated",
		})
		return
	}
	if q := ginCtx.Query("user_id"); q != "" && q != userID {
		ginCtx.JSON(http.StatusForbidden, ErrorBody{Error: "user_id does not match the caller", Code: "forbidden"})
		return
	}

	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	wsConn := newClientConn(rawConn, ConnContext{AuctionID: auctionID, UserID: userID})
	s.hub.Join(auctionID, wsConn)
	if s.subMgr != nil {
		s.subMgr.Subscribe(auctionID) // may be a no‑op (already subscribed)
	}

	if err := s.pushInitialSnapshot(ginCtx.Request.Context(), auctionID, wsConn); err != nil &&
		!errors.Is(err, auction.ErrNotFound) {
		zap.L().Warn("ws.snapshot", zap.String("auction_id", auctionID), zap.Error(err))
	}

	done := make(chan struct{})
	go s.reader(wsConn, done)
	go s.pinger(wsConn, done)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	Register(
		s.router,
		EventBid,
		func(ctx context.Context, cc *ConnContext, req BidRequest) (*auction.BidResult, error) {
			return s.auctionSvc.PlaceBid(ctx, cc.AuctionID, cc.UserID, req.Amount)
		},
	)
	Register(
		s.router,
		EventTimer,
		func(ctx context.Context, cc *ConnContext, _ TimerRequest) (*auction.Timer, error) {
			return s.auctionSvc.Timer(ctx, cc.AuctionID)
		},
	)
}

// pushInitialSnapshot sends the auction as it stands, live bid state
// included, together with the server clock.
func (s *WsServer) pushInitialSnapshot(ctx context.Context, id string, conn *clientConn) error {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	a, err := s.auctionSvc.GetAuction(ctx, id)
	if err != nil {
		return err
	}
	return conn.writeJSON(gin.H{
		"event": EventSnapshot,
		"body": gin.H{
			"auction":    a,
			"server_now": s.auctionSvc.Now().UTC(),
		},
	})
}

func (s *WsServer) reader(conn *clientConn, done chan<- struct{}) {
	auctionID := conn.viewer.AuctionID
	defer func() {
		close(done)
		s.hub.Leave(auctionID, conn)
		if s.subMgr != nil {
			s.subMgr.Unsubscribe(auctionID)
		}
	}()

	for {
		env, err := conn.readEnvelope()
		if err != nil {
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1900*time.Millisecond)
		res, err := s.router.dispatch(ctx, &conn.viewer, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			_ = conn.writeJSON(map[string]any{
				"event": EventError,
				"body":  errorBody(err),
			})
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		reply := map[string]any{"event": env.Event + "-ack"}
		if res != nil {
			reply["body"] = res
		}
		_ = conn.writeJSON(reply)
	}
}

func errorBody(err error) ErrorBody {
	switch {
	case errors.Is(err, ErrUnknownEvent):
		return ErrorBody{Error: err.Error(), Code: "unknown_event"}
	case errors.Is(err, ErrBadBody):
		return ErrorBody{Error: err.Error(), Code: "bad_request"}
	}
	code := auction.Code(err)
	if code == "internal" {
		zap.L().Error("ws.handler_failed", zap.Error(err))
		return ErrorBody{Error: "internal error", Code: code}
	}
	return ErrorBody{Error: err.Error(), Code: code}
}

func (s *WsServer) pinger(conn *clientConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				conn.close()
				return
			}
		}
	}
}
