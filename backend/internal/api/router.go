package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-backend/backend/internal/account"
	"social-backend/backend/internal/auth"
	"social-backend/backend/internal/docstore"
	"social-backend/backend/internal/graph"
	"social-backend/backend/internal/ledger"
	"social-backend/backend/internal/notification"
	"social-backend/backend/internal/publication"
	"social-backend/backend/internal/realtime"
	"social-backend/backend/internal/social"
)

// Suggester ranks friend-of-friend candidates
type Suggester interface {
	SuggestFriends(ctx context.Context, userID string, limit int) ([]graph.Suggestion, error)
}

// Deps are the services the HTTP API exposes. Suggester and Hub may be nil.
type Deps struct {
	Store         docstore.Store
	Accounts      *account.Directory
	Social        *social.Manager
	Ledger        *ledger.Ledger
	Notifications *notification.Service
	Publications  *publication.Service
	Suggester     Suggester
	Auth          *auth.Authenticator
	Hub           *realtime.Hub
	Logger        *zap.Logger

	CORSOrigin     string
	RequestTimeout time.Duration
}

type handler struct {
	Deps
	log *zap.Logger
}

// NewRouter builds the gin engine with every route mounted
func NewRouter(deps Deps) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{Deps: deps, log: log}

	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(cors(deps.CORSOrigin))

	router.GET("/health", h.health)
	if deps.Hub != nil {
		router.GET("/ws", deps.Auth.Middleware(), deps.Hub.ServeWS)
	}

	api := router.Group("/api")
	api.Use(requestTimeout(deps.RequestTimeout))
	{
		api.POST("/signup", h.signup)
		api.POST("/login", h.login)
		api.POST("/logout", h.logout)
	}

	protected := api.Group("")
	protected.Use(deps.Auth.Middleware())
	{
		protected.GET("/me", h.me)
		protected.GET("/accounts/:id", h.getAccount)
		protected.GET("/accounts/:id/publications", h.listPublications)

		protected.GET("/friends", h.listFriends)
		protected.GET("/friends/requests", h.incomingRequests)
		protected.GET("/friends/suggestions", h.suggestions)
		protected.POST("/friends/:peerId", h.sendRequest)
		protected.PUT("/friends/:peerId", h.respond)
		protected.DELETE("/friends/:peerId", h.removeFriend)

		protected.GET("/conversations", h.listConversations)
		protected.POST("/conversations", h.openConversation)
		protected.GET("/conversations/:id", h.getConversation)
		protected.POST("/conversations/:id/messages", h.postMessage)
		protected.POST("/conversations/:id/rebuild", h.rebuildConversation)

		protected.GET("/notifications", h.listNotifications)
		protected.PUT("/notifications/:id/read", h.markNotificationRead)

		protected.POST("/publications", h.createPublication)
		protected.GET("/publications/:id", h.getPublication)
		protected.POST("/publications/:id/comments", h.addComment)
	}

	return router
}

func (h *handler) health(c *gin.Context) {
	if h.Store != nil {
		if err := h.Store.Ping(c.Request.Context()); err != nil {
			h.log.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

func cors(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestTimeout bounds the store work a request may trigger
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
