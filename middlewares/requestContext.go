package middlewares

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-ID"

func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		ctx.Set(utils.RequestIDKey, id)
		ctx.Header(RequestIDHeader, id)
		ctx.Next()
	}
}

// RequestLogger writes one structured line per request.
func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		status := ctx.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"request_id": ctx.GetString(utils.RequestIDKey),
			"method":     ctx.Request.Method,
			"path":       ctx.Request.URL.Path,
			"status":     status,
			"duration_ms": time.Since(start).Milliseconds(),
			"client_ip":  ctx.ClientIP(),
		})
		if user, ok := utils.CurrentUser(ctx); ok {
			entry = entry.WithField("user_id", user.ID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	}
}

// Recovery turns a panic into the standard 500 envelope.
func Recovery(log logrus.FieldLogger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"request_id": ctx.GetString(utils.RequestIDKey),
					"panic":      fmt.Sprint(r),
					"stack":      string(debug.Stack()),
				}).Error("Recovered from panic")
				utils.AbortWithError(ctx, utils.Internal("Internal server error", nil))
			}
		}()
		ctx.Next()
	}
}
