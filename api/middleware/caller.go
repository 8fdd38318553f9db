package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	tokenKey    = "caller_token"
	clientIPKey = "caller_ip"
)

// Caller identifies the caller for admission control.
//
// The bearer token comes from "Authorization: Bearer <token>". The client IP
// is read from ipHeader (set by the fronting proxy) and falls back to the
// connection address when the header is absent or ipHeader is empty.
func Caller(ipHeader string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(tokenKey, extractBearer(c))

		ip := ""
		if ipHeader != "" {
			ip = strings.TrimSpace(c.GetHeader(ipHeader))
		}
		if ip == "" {
			ip = c.ClientIP()
		}
		c.Set(clientIPKey, ip)

		c.Next()
	}
}

// Token returns the bearer token recorded by Caller, "" if none.
func Token(c *gin.Context) string { return c.GetString(tokenKey) }

// ClientIP returns the caller IP recorded by Caller, falling back to gin's.
func ClientIP(c *gin.Context) string {
	if ip := c.GetString(clientIPKey); ip != "" {
		return ip
	}
	return c.ClientIP()
}

func extractBearer(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
