package handlers

import (
	"github.com/gin-gonic/gin"
)

// Router handles HTTP routing setup
type Router struct {
	sessionHandler *SessionHandler
	gifHandler     *GifHandler
	healthHandler  *HealthHandler
	events         *EventHub
	writeLimit     gin.HandlerFunc
}

// NewRouter creates a Router. writeLimit guards the endpoints that submit
// transactions and may be nil.
func NewRouter(portal PortalService, healthHandler *HealthHandler, events *EventHub, writeLimit gin.HandlerFunc) *Router {
	if writeLimit == nil {
		writeLimit = func(c *gin.Context) { c.Next() }
	}
	return &Router{
		sessionHandler: NewSessionHandler(portal),
		gifHandler:     NewGifHandler(portal),
		healthHandler:  healthHandler,
		events:         events,
		writeLimit:     writeLimit,
	}
}

// SetupRoutes configures all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	api := engine.Group("/api")
	{
		api.GET("/view", r.sessionHandler.GetView)
		api.PUT("/draft", r.gifHandler.SetDraft)

		session := api.Group("/session")
		{
			session.POST("/probe", r.sessionHandler.Probe)
			session.POST("/connect", r.sessionHandler.Connect)
			session.DELETE("", r.sessionHandler.Disconnect)
		}

		api.GET("/gifs", r.gifHandler.ListGifs)

		writes := api.Group("", r.writeLimit)
		{
			writes.POST("/gifs", r.gifHandler.SubmitGif)
			writes.POST("/gifs/upvote", r.gifHandler.Upvote)
			writes.POST("/gifs/tip", r.gifHandler.Tip)
			writes.POST("/account/init", r.gifHandler.InitializeAccount)
		}
	}

	if r.events != nil {
		engine.GET("/ws", r.events.Serve)
	}
}

// SetupHealthRoutes configures health check routes
func (r *Router) SetupHealthRoutes(engine *gin.Engine) {
	health := engine.Group("/health")
	{
		health.GET("", r.healthHandler.GetHealth)
		health.GET("/live", r.healthHandler.GetLiveness)
		health.GET("/ready", r.healthHandler.GetReadiness)
	}
}
