package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *HTTPServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecoveryWithWriter(io.Discard, s.recoverPanic), s.requestLogger())
	if s.limiter != nil {
		r.Use(s.rateLimit())
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	// Both the bare paths and the /api prefix serve the same API.
	s.register(r.Group(""))
	s.register(r.Group("/api"))
	return r
}

func (s *HTTPServer) register(g *gin.RouterGroup) {
	g.GET("/", s.welcome)

	a := g.Group("/auth")
	a.POST("/login", s.login)
	a.POST("/refresh", s.refresh)
	a.POST("/logout", s.requireAuth(), s.logout)

	f := g.Group("/files", s.requireAuth())
	f.POST("/upload", s.upload)
	f.GET("/:id", s.getFile)
	f.DELETE("/:id", s.deleteFile)

	g.GET("/users", s.requireAuth(), s.requireAdmin(), s.listUsers)
}
