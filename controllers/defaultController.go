package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/Kariqs/amexan-marketplace/realtime"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-gonic/gin"
)

func GetHome(ctx *gin.Context) {
	utils.RespondOK(ctx, "Welcome to Amexan Marketplace API ❤️", gin.H{
		"service": "amexan-marketplace",
		"docs": gin.H{
			"auth":          "/api/auth",
			"products":      "/api/products",
			"categories":    "/api/categories",
			"cart":          "/api/cart",
			"orders":        "/api/orders",
			"payments":      "/api/payments",
			"seller":        "/api/seller",
			"uploads":       "/api/uploads",
			"admin":         "/api/admin",
			"notifications": "/api/notifications",
			"socket":        "/ws",
		},
	})
}

// Health pings the database.
func Health(ctx *gin.Context) {
	sqlDB, err := initializers.DB.DB()
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(pingCtx)
	}
	if err != nil {
		initializers.Log.WithError(err).Error("Health check failed")
		ctx.JSON(http.StatusServiceUnavailable, utils.Envelope{
			Success: false,
			Message: "Database unavailable",
			Error:   &utils.ErrorBody{Code: utils.CodeInternal},
		})
		return
	}
	utils.RespondOK(ctx, "OK", gin.H{"database": "up", "time": time.Now().UTC()})
}

// ServeRealtime upgrades an authenticated request to the socket channel.
func ServeRealtime(ctx *gin.Context) {
	if initializers.Hub == nil {
		utils.RespondError(ctx, utils.Internal("Realtime channel is not available", nil))
		return
	}
	user := utils.MustCurrentUser(ctx)
	id := realtime.Identity{UserID: user.ID, Role: user.Role}
	if user.Role == models.RoleSeller {
		id.StoreID = user.EffectiveStoreID()
	}
	if err := initializers.Hub.ServeWS(ctx.Writer, ctx.Request, id); err != nil {
		initializers.Log.WithError(err).WithField("user_id", user.ID).Warn("Websocket upgrade failed")
	}
}
