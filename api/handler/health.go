package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/markdowner/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// BrowserStater reports the shared browser session. *browser.Manager implements it.
type BrowserStater interface {
	Stats() models.BrowserStats
}

// Health returns a handler for GET /health.
//
// Status is "healthy" while a browser session is connected and "idle" after
// the idle timer has closed it; both are 200 since the next request relaunches.
func Health(br BrowserStater, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := br.Stats()

		status := "idle"
		if stats.Connected {
			status = "healthy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Browser: stats,
			Version: Version,
		})
	}
}
