// Package http adapts the chat engine to HTTP and WebSocket clients.
package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/roomline/roomline-server/internal/auth"
	"github.com/roomline/roomline-server/internal/chat"
	"github.com/roomline/roomline-server/internal/config"
)

// NewServer builds the HTTP server: health check, the token API, and the
// WebSocket endpoint the chat engine lives behind.
func NewServer(chatSvc *chat.Service, authSvc *auth.Service, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(RequestLogger(logger), gin.Recovery())

	h := &apiHandlers{chat: chatSvc, auth: authSvc, log: logger}

	limiter := newRateLimiter(authRateLimit, authRateWindow)

	router.GET("/healthz", h.health)
	router.POST("/api/login", RateLimit(limiter), h.login)
	router.POST("/api/register", RateLimit(limiter), h.register)
	router.GET("/api/rooms", h.listRooms)

	authorized := router.Group("/api", AuthMiddleware(authSvc, logger))
	authorized.POST("/rooms", h.createRoom)

	router.GET("/ws", NewWSHandler(chatSvc, authSvc, logger))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
