package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"auctionhouse/internal/http/auctionhandler"
	"auctionhouse/internal/services/auction"
	"auctionhouse/internal/ws"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
)

type httpServer struct {
	listenPort     uint16
	srv            http.Server
	ln             net.Listener
	auctionService auction.IAuctionService
	wsSrv          *ws.WsServer
	ctx            context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, wsSrv *ws.WsServer, auctionService auction.IAuctionService) *httpServer {
	return &httpServer{
		listenPort:     listenPort,
		wsSrv:          wsSrv,
		auctionService: auctionService,
		ctx:            ctx,
	}
}

// Engine builds the router: swagger UI, request logging, caller identity,
// the websocket endpoint and the REST API.
func (h *httpServer) Engine() *gin.Engine {
	routerEngine := gin.New()

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))
	routerEngine.Use(auctionhandler.Identify())

	routerEngine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// websocket endpoint
	if h.wsSrv != nil {
		routerEngine.GET("/ws", h.wsSrv.Handle)
	}

	// REST API
	ah := auctionhandler.New(h.auctionService)
	ah.Register(routerEngine)
	return routerEngine
}

// Start serves until Dispose is called. It returns nil after a graceful
// shutdown.
func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	h.srv = http.Server{
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	zap.L().Info("http server listening", zap.String("addr", listenAddr))

	if err := h.srv.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in‑flight requests to finish.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			zap.L().Error("http_dispose", zap.Error(errors.New("shutdown timed out")))
		} else {
			zap.L().Error("http_dispose", zap.Error(err))
		}
		return err
	}
	return nil
}
