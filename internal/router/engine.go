package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ggp-deploy/internal/pkg/logger"
)

// NewEngine returns a gin engine with recovery, request logging and, when
// origins are given, CORS.
func NewEngine(allowedOrigins []string, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	if len(allowedOrigins) > 0 {
		config := cors.DefaultConfig()
		config.AllowOrigins = allowedOrigins
		config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
		config.MaxAge = 12 * time.Hour
		r.Use(cors.New(config))
	}
	return r
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
