package routes

import (
	"github.com/Kariqs/amexan-marketplace/controllers"
	"github.com/Kariqs/amexan-marketplace/middlewares"
	"github.com/gin-gonic/gin"
)

func AdminRoutes(api *gin.RouterGroup) {
	admin := api.Group("/admin", middlewares.RequireAuth(), middlewares.RequireAdmin())
	{
		admin.GET("/stats", controllers.GetDashboardStats)

		admin.GET("/users", controllers.GetUsers)
		admin.PATCH("/users/:id/status", controllers.UpdateUserStatus)

		admin.GET("/orders", controllers.GetAllOrders)
		admin.GET("/orders/:id", controllers.GetAnyOrder)
		admin.PATCH("/orders/:id/status", controllers.AdminUpdateOrderStatus)

		admin.POST("/categories", controllers.CreateCategory)
		admin.PUT("/categories/:id", controllers.UpdateCategory)
		admin.DELETE("/categories/:id", controllers.DeleteCategory)
	}
}
