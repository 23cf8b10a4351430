package routes

import (
	"github.com/Kariqs/amexan-marketplace/controllers"
	"github.com/Kariqs/amexan-marketplace/middlewares"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/gin-gonic/gin"
)

func ProductRoutes(api *gin.RouterGroup) {
	products := api.Group("/products")
	{
		products.GET("", controllers.GetProducts)
		products.GET("/:id", middlewares.OptionalAuth(), controllers.GetProduct)
		products.GET("/:id/reviews", controllers.GetProductReviews)

		seller := products.Group("", middlewares.RequireAuth(), middlewares.RequireRoles(models.RoleSeller))
		seller.POST("", middlewares.RequireSellerPermission(models.PermProductWrite), controllers.CreateProduct)
		seller.PUT("/:id", middlewares.RequireSellerPermission(models.PermProductWrite), controllers.UpdateProduct)
		seller.PATCH("/:id/stock", middlewares.RequireSellerPermission(models.PermInventoryUpdate), controllers.UpdateProductStock)
		seller.DELETE("/:id", middlewares.RequireSellerPermission(models.PermProductDelete), controllers.DeleteProduct)

		products.POST("/:id/reviews", middlewares.RequireAuth(), middlewares.RequireRoles(models.RoleBuyer), controllers.CreateReview)
	}

	api.DELETE("/reviews/:id", middlewares.RequireAuth(), controllers.DeleteReview)
}
