package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID = "userId"

	errMissingAuth  = "missing Authorization header"
	errAuthFormat   = "invalid Authorization header format"
	errInvalidToken = "invalid or expired token"
)

func (h *Handler) userIdMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMissingAuth})
		return
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errAuthFormat})
		return
	}

	userId, err := h.services.ParseToken(strings.TrimSpace(token))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidToken})
		return
	}

	c.Set(ctxUserID, userId)
	c.Next()
}

// asViewer runs a filter or animation command on behalf of the
// authenticated viewer so the activity log can name them.
func (h *Handler) asViewer(c *gin.Context, cmd func() error) error {
	if h.services.Activity == nil {
		return cmd()
	}
	return h.services.Attribute(c.GetInt(ctxUserID), cmd)
}

// requestLogger writes one line per request. Server errors are logged at
// error level, everything else at debug.
func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	if h.log == nil {
		return
	}

	status := c.Writer.Status()
	fields := []interface{}{
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", status,
		"latency", time.Since(start),
	}
	if uid, ok := c.Get(ctxUserID); ok {
		fields = append(fields, "user_id", uid)
	}
	if status >= http.StatusInternalServerError {
		h.log.Errorw("http_request", fields...)
		return
	}
	h.log.Debugw("http_request", fields...)
}
