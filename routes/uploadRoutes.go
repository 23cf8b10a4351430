package routes

import (
	"github.com/Kariqs/amexan-marketplace/controllers"
	"github.com/Kariqs/amexan-marketplace/middlewares"
	"github.com/Kariqs/amexan-marketplace/models"
	"github.com/gin-gonic/gin"
)

func UploadRoutes(api *gin.RouterGroup) {
	api.POST("/uploads/images",
		middlewares.RequireAuth(),
		middlewares.RequireSellerPermission(models.PermProductWrite),
		controllers.UploadImages)
}
