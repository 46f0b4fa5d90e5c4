package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the handler set into a gin engine.
func NewRouter(h *Handler, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORS(corsOrigins))

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/links", h.QueryLinks)
		api.GET("/links/live", h.LiveLinks)
		api.POST("/vote", h.Vote)
		api.POST("/comments", h.Comment)
		api.GET("/articles", h.ListArticles)
		api.PUT("/articles", h.IngestArticles)
		api.POST("/admin/reset-votes", h.ResetVotes)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return r
}

// CORS allows the configured origins; an empty list allows any origin.
func CORS(origins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if len(allowed) == 0 {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if _, ok := allowed[origin]; ok {
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
