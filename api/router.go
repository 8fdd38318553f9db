package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/markdowner/api/handler"
	"github.com/use-agent/markdowner/api/middleware"
	"github.com/use-agent/markdowner/config"
	"github.com/use-agent/markdowner/metrics"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → RequestID → Metrics
//	Convert: Caller
//
// Health and metrics skip caller extraction so monitoring checks never touch admission.
func NewRouter(conv handler.Converter, br handler.BrowserStater, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.Metrics())

	r.NoMethod(func(c *gin.Context) {
		c.String(http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.GET("/", middleware.Caller(cfg.RateLimit.IPHeader), handler.Convert(conv))
	r.GET("/health", handler.Health(br, startTime))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}
