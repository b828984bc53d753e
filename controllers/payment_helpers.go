package controllers

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// isSecure reports whether the request reached us over TLS, directly or
// through a proxy that sets X-Forwarded-Proto.
func isSecure(c *gin.Context) bool {
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https")
}

// respondError logs a warning and writes a JSON error response.
// The status argument should be an http.Status* constant from the caller.
func (pc *PaymentController) respondError(c *gin.Context, status int, msg string, err error) {
	if err != nil {
		pc.Logger.Warn(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": msg})
}

func (pc *PaymentController) recordCount(metric string, dims map[string]string) {
	if pc.Metrics == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pc.Metrics.RecordCount(ctx, metric, dims)
	}()
}
