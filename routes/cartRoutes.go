package routes

import (
	"github.com/Kariqs/amexan-marketplace/controllers"
	"github.com/Kariqs/amexan-marketplace/middlewares"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/gin-gonic/gin"
)

func CartRoutes(api *gin.RouterGroup) {
	cart := api.Group("/cart", middlewares.RequireAuth(), middlewares.RequireRoles(models.RoleBuyer))
	{
		cart.GET("", controllers.GetCart)
		cart.POST("/items", controllers.AddToCart)
		cart.PATCH("/items/:productId", controllers.UpdateCartItem)
		cart.DELETE("/items/:productId", controllers.RemoveCartItem)
		cart.DELETE("", controllers.ClearCart)
	}
}
