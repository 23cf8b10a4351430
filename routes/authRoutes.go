package routes

import (
	"github.com/Kariqs/amexan-marketplace/controllers"
	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/middlewares"
	"github.com/gin-gonic/gin"
)

// authLimiter is shared so Cleanup can be scheduled from the jobs package.
var authLimiter *middlewares.RateLimiter

func AuthLimiter() *middlewares.RateLimiter {
	if authLimiter == nil {
		authLimiter = middlewares.NewRateLimiter(float64(initializers.Config.AuthRatePerSecond), initializers.Config.AuthRateBurst)
	}
	return authLimiter
}

func AuthRoutes(api *gin.RouterGroup) {
	auth := api.Group("/auth")
	{
		limited := auth.Group("", AuthLimiter().Middleware())
		limited.POST("/register", controllers.Register)
		limited.POST("/login", controllers.Login)
		limited.POST("/refresh", controllers.RefreshToken)
		limited.POST("/resend-verification", controllers.ResendVerification)
		limited.POST("/forgot-password", controllers.ForgotPassword)
		limited.POST("/reset-password/:token", controllers.ResetPassword)

		auth.POST("/logout", controllers.Logout)
		auth.GET("/verify-email/:token", controllers.VerifyEmail)
		auth.POST("/verify-email/:token", controllers.VerifyEmail)

		me := auth.Group("", middlewares.RequireAuth())
		me.GET("/me", controllers.Me)
		me.PATCH("/me", controllers.UpdateProfile)
		me.POST("/change-password", controllers.ChangePassword)
	}
}
