package main

import (
	"tshe-crm/pkg/cache"
	"tshe-crm/pkg/config"
	"tshe-crm/pkg/database"
	"tshe-crm/pkg/logger"
	"tshe-crm/pkg/queue"
	"tshe-crm/pkg/s3"
	postApp "tshe-crm/services/post/internal/app"

	"github.com/gin-gonic/gin"
)

// @title           Post Approval Service API
// @version         1.0
// @description     Sequential multi-approver workflow for CRM social media posts

// @host      localhost:8002
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

	// Migrations are handled by goose - see cmd/migrate

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Warn("Redis unavailable, caching and rate limiting disabled: %v", err)
		redisClient = nil
	}

	var s3Client *s3.Client
	if cfg.StorageEnabled() {
		s3Client, err = s3.NewClient(cfg)
		if err != nil {
			log.Warn("S3 unavailable, image uploads disabled: %v", err)
			s3Client = nil
		}
	}

	queueClient, err := queue.NewRabbitMQClient(cfg, log)
	if err != nil {
		log.Warn("RabbitMQ unavailable, notifications will be dropped: %v", err)
		queueClient = nil
	}

	postApp.Run(cfg, log, db, s3Client, queueClient, redisClient)
}
