package main

import (
	"tshe-crm/pkg/cache"
	"tshe-crm/pkg/config"
	"tshe-crm/pkg/database"
	"tshe-crm/pkg/logger"
	"tshe-crm/pkg/queue"
	notificationApp "tshe-crm/services/notification/internal/app"

	"github.com/gin-gonic/gin"
)

// @title           Notification Service API
// @version         1.0
// @description     Stores and streams post approval workflow notifications

// @host      localhost:8006
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if cfg.JWTSecret == config.DefaultJWTSecret || cfg.JWTSecret == "" {
		panic("JWT_SECRET must be set in environment variables")
	}

	log := logger.New()
	db, err := database.NewPostgresDB(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		panic(err)
	}

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Warn("Redis unavailable, live stream and rate limiting disabled: %v", err)
		redisClient = nil
	}

	queueClient, err := queue.NewRabbitMQClient(cfg, log)
	if err != nil {
		log.Warn("RabbitMQ unavailable: %v", err)
		queueClient = nil
	}

	notificationApp.Run(cfg, log, db, queueClient, redisClient)
}
