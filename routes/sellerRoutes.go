package routes

import (
	"github.com/Kariqs/amexan-marketplace/controllers"
	"github.com/Kariqs/amexan-marketplace/middlewares"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/gin-gonic/gin"
)

func SellerRoutes(api *gin.RouterGroup) {
	seller := api.Group("/seller", middlewares.RequireAuth(), middlewares.RequireRoles(models.RoleSeller))
	{
		seller.GET("/products", controllers.GetSellerProducts)

		orderRead := middlewares.RequireSellerPermission(models.PermOrderRead)
		seller.GET("/orders", orderRead, controllers.GetStoreOrders)
		seller.GET("/orders/:id", orderRead, controllers.GetStoreOrder)
		seller.PATCH("/orders/:id/status", middlewares.RequireSellerPermission(models.PermOrderUpdate), controllers.UpdateStoreOrderStatus)

		staff := seller.Group("/staff", middlewares.RequireSellerPermission(models.PermStaffManage))
		staff.GET("", controllers.GetStaff)
		staff.POST("", controllers.CreateStaff)
		staff.PATCH("/:id", controllers.UpdateStaffRole)
		staff.DELETE("/:id", controllers.DeactivateStaff)

		seller.GET("/finance/summary", middlewares.RequireSellerPermission(models.PermFinanceRead), controllers.GetFinanceSummary)
	}
}
