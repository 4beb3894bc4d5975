package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/privchat/internal/auth"
	"github.com/vovakirdan/privchat/internal/config"
	"github.com/vovakirdan/privchat/internal/core"
	"github.com/vovakirdan/privchat/internal/store"
)

// NewServer builds the HTTP server: gin serves /health and /api, the WebSocket lives at /ws.
func NewServer(hub *core.Hub, authService *auth.Service, messages store.MessageStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(authService, logger)
	messageHandlers := NewMessageHandlers(messages, logger)

	api := router.Group("/api")
	api.POST("/signup", apiHandlers.Signup)
	api.POST("/login", apiHandlers.Login)

	optional := api.Group("", OptionalAuthMiddleware(authService, logger))
	optional.GET("/session", apiHandlers.Session)
	optional.GET("/messages", messageHandlers.History)

	protected := api.Group("", AuthMiddleware(authService, logger))
	protected.POST("/logout", apiHandlers.Logout)
	protected.GET("/users/search", userHandlers.SearchUsers)
	protected.GET("/users/info", userHandlers.UserInfo)

	// The WebSocket endpoint bypasses gin: gin's writer refuses to hijack
	// after the 101 status has been written.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, authService, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
