package api

import (
	"time"

	"SpreadSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID    = "X-Request-ID"
	HeaderUserID       = "X-User-ID"
	HeaderSportContext = "X-Sport-Context"

	queryContextKey = "query_context"
)

// QueryContext attaches a request-scoped service.QueryContext. Missing request and user ids are
// generated; the request id is echoed back.
func QueryContext(defaultSport string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		userID := c.GetHeader(HeaderUserID)
		if userID == "" {
			userID = "anonymous-" + uuid.NewString()
		}
		sport := c.GetHeader(HeaderSportContext)
		if sport == "" {
			sport = defaultSport
		}
		c.Set(queryContextKey, service.QueryContext{
			RequestID:    requestID,
			UserID:       userID,
			SportContext: sport,
			StartedAt:    time.Now(),
		})
		c.Header(HeaderRequestID, requestID)
		c.Next()
	}
}

func queryContext(c *gin.Context) service.QueryContext {
	if v, ok := c.Get(queryContextKey); ok {
		if qc, ok := v.(service.QueryContext); ok {
			return qc
		}
	}
	return service.QueryContext{RequestID: uuid.NewString(), StartedAt: time.Now()}
}
