// ABOUTME: Gin middleware for the document server
// ABOUTME: Request ids, request logging with metrics, panic recovery

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lingtools/docserve/internal/metrics"
)

const requestIDHeader = "X-Request-ID"

// requestID attaches a request id to every request, reusing the client's
// when present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// observe logs every request and records the request metrics.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		elapsed := time.Since(start)
		metrics.HTTPRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
		s.log.Debug().
			Str("endpoint", endpoint).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", elapsed).
			Msg("request handled")
	}
}

// recovery converts handler panics into a generic error response. Internal
// invariant violations in the edit engine surface as panics and must not
// take the server down or leak internals to the client.
func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err interface{}) {
		s.log.Error().
			Str("path", c.Request.URL.Path).
			Interface("panic", err).
			Msg("handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "internal error in the document server",
		})
	})
}
