package routes

import (
	"github.com/Kariqs/amexan-marketplace/controllers"
	"github.com/Kariqs/amexan-marketplace/middlewares"
	"github.com/gin-gonic/gin"
)

func NotificationRoutes(api *gin.RouterGroup) {
	notifications := api.Group("/notifications", middlewares.RequireAuth())
	{
		notifications.GET("", controllers.GetNotifications)
		notifications.GET("/unread-count", controllers.GetUnreadCount)
		notifications.PATCH("/read-all", controllers.MarkAllNotificationsRead)
		notifications.PATCH("/:id/read", controllers.MarkNotificationRead)
	}
}
