package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kariqs/amexan-marketplace/initializers"
	"github.com/Kariqs/amexan-marketplace/jobs"
	"github.com/Kariqs/amexan-marketplace/middlewares"
	"github.com/Kariqs/amexan-marketplace/routes"
	"github.com/Kariqs/amexan-marketplace/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func init() {
	initializers.LoadEnv()
	if err := initializers.LoadConfig(); err != nil {
		initializers.Log.WithError(err).Fatal("Invalid configuration")
	}
	initializers.InitLogger()
	utils.RegisterValidations()

	if err := initializers.ConnectToDB(); err != nil {
		initializers.Log.WithError(err).Fatal("Failed to connect to database")
	}
	if err := initializers.SyncDatabase(); err != nil {
		initializers.Log.WithError(err).Fatal("Failed to sync database")
	}
	if err := initializers.InitServices(context.Background()); err != nil {
		initializers.Log.WithError(err).Fatal("Failed to initialize services")
	}
}

func main() {
	if initializers.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	server := gin.New()
	server.Use(
		middlewares.RequestID(),
		middlewares.RequestLogger(initializers.Log),
		middlewares.Recovery(initializers.Log),
		middlewares.Metrics(),
	)
	server.Use(cors.New(cors.Config{
		AllowOrigins:     initializers.Config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middlewares.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middlewares.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	server.NoRoute(func(ctx *gin.Context) {
		utils.AbortWithError(ctx, utils.NotFound("Route not found"))
	})
	routes.RegisterRoutes(server)

	scheduler, err := jobs.New(initializers.DB, initializers.Log, routes.AuthLimiter())
	if err != nil {
		initializers.Log.WithError(err).Fatal("Failed to schedule jobs")
	}
	scheduler.Start()

	// No write timeout: websocket connections manage their own deadlines.
	srv := &http.Server{
		Addr:              ":" + initializers.Config.Port,
		Handler:           server,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		initializers.Log.WithField("addr", srv.Addr).Info("Starting amexan-marketplace")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			initializers.Log.WithError(err).Fatal("Server stopped unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	initializers.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		initializers.Log.WithError(err).Warn("HTTP shutdown incomplete")
	}
	scheduler.Stop()
	initializers.Hub.Close()
	if sqlDB, err := initializers.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	initializers.Log.Info("Stopped")
}
