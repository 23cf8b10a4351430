package routes

import (
	"github.com/Kariqs/amexan-marketplace/controllers"
	"github.com/gin-gonic/gin"
)

// CategoryRoutes holds the public reads. Writes live under the admin group.
func CategoryRoutes(api *gin.RouterGroup) {
	api.GET("/categories", controllers.GetCategories)
	api.GET("/categories/:id", controllers.GetCategory)
}
