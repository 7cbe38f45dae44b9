package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with CORS and all routes attached.
// An empty origin list opens the API to any origin, which fits a
// dashboard served from wherever the operator parked it.
func NewRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	r := gin.Default()

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}
	if len(allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = allowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", h.GetHealth)
	r.GET("/metrics", h.GetMetrics)
	r.GET("/api/articles", h.GetArticles)
	r.GET("/api/stats", h.GetStats)
	r.POST("/api/test-alert", h.SendTestAlert)

	return r
}
