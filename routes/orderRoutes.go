package routes

import (
	"github.com/Kariqs/amexan-marketplace/controllers"
	"github.com/Kariqs/amexan-marketplace/middlewares"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/gin-gonic/gin"
)

func OrderRoutes(api *gin.RouterGroup) {
	orders := api.Group("/orders", middlewares.RequireAuth(), middlewares.RequireRoles(models.RoleBuyer))
	{
		orders.POST("", controllers.Checkout)
		orders.GET("", controllers.GetMyOrders)
		orders.GET("/:id", controllers.GetMyOrder)
		orders.POST("/:id/cancel", controllers.CancelMyOrder)
	}
}

func PaymentRoutes(api *gin.RouterGroup) {
	payments := api.Group("/payments")
	{
		payments.GET("/ipn", controllers.HandlePesapalIPN)
		payments.POST("/ipn", controllers.HandlePesapalIPN)

		authed := payments.Group("", middlewares.RequireAuth())
		authed.GET("/status/:trackingId", controllers.GetPaymentStatus)
		authed.POST("/checkout/:ref/initiate", middlewares.RequireRoles(models.RoleBuyer), controllers.InitiatePayment)
	}
}
