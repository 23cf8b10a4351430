package routes

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts every route group on the engine.
func RegisterRoutes(server *gin.Engine) {
	DefaultRoutes(server)

	api := server.Group("/api")
	AuthRoutes(api)
	ProductRoutes(api)
	CategoryRoutes(api)
	CartRoutes(api)
	OrderRoutes(api)
	PaymentRoutes(api)
	SellerRoutes(api)
	UploadRoutes(api)
	AdminRoutes(api)
	NotificationRoutes(api)
}
