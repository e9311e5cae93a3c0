package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/profolio/profolio/internal/common"
	"github.com/profolio/profolio/internal/logging"
	"github.com/profolio/profolio/internal/server/auth"
	"github.com/profolio/profolio/internal/server/guard"
)

const (
	identityCtxKey = "identity"
	demoCtxKey     = "demo"

	// RequestIDHeader is echoed back, or generated when the client sent none.
	RequestIDHeader = "X-Request-ID"
)

// RequireAuth runs the guard on every request. Rejected requests get
// 401 {"error":"unauthorized"} regardless of the reason, which is only logged.
func RequireAuth(g *guard.Guard, logger logging.Logger) gin.HandlerFunc {
	logger = logger.With("module", "httpapi")
	return func(c *gin.Context) {
		res := g.Authenticate(c.Request.Header, c.Request.Cookies())
		id, ok := res.Identity()
		if !ok {
			logger.Debug(c.Request.Context(), "request rejected",
				"reason", string(res.Reason()), "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(identityCtxKey, id)
		c.Set(demoCtxKey, res.Demo())
		c.Request = c.Request.WithContext(guard.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RejectDemo answers 403 {"error":"forbidden"} for demo sessions. It must run
// after RequireAuth.
func RejectDemo() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isDemo(c) {
			writeError(c, common.ErrForbidden)
			return
		}
		c.Next()
	}
}

// RequestLogger tags each request with an id and logs it once done.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	logger = logger.With("module", "httpapi")
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(RequestIDHeader, reqID)
		c.Request = c.Request.WithContext(logging.ContextWith(c.Request.Context(), "request_id", reqID))

		c.Next()

		logger.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// identityFrom returns the identity set by RequireAuth.
func identityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityCtxKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

func isDemo(c *gin.Context) bool {
	return c.GetBool(demoCtxKey)
}
