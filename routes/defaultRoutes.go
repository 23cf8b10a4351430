package routes

import (
	"github.com/Kariqs/amexan-marketplace/controllers"
	"github.com/Kariqs/amexan-marketplace/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func DefaultRoutes(server *gin.Engine) {
	server.GET("/", controllers.GetHome)
	server.GET("/health", controllers.Health)
	server.GET("/metrics", gin.WrapH(promhttp.Handler()))
	server.GET("/ws", middlewares.RequireAuth(), controllers.ServeRealtime)
}
