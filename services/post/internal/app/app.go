package internal

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tshe-crm/pkg/config"
	"tshe-crm/pkg/jwt"
	"tshe-crm/pkg/logger"
	"tshe-crm/pkg/middleware"
	"tshe-crm/pkg/queue"
	"tshe-crm/pkg/s3"
	"tshe-crm/pkg/tracing"
	postHTTP "tshe-crm/services/post/internal/controller/http"
	"tshe-crm/services/post/internal/notifier"
	"tshe-crm/services/post/internal/repo/persistent"
	"tshe-crm/services/post/internal/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "tshe-crm/services/post/docs" // Swagger docs
)

// NewRouter builds the post service routes. s3Client, queueClient and redisClient may be nil.
func NewRouter(cfg *config.Config, log *logger.Logger, db *gorm.DB, s3Client *s3.Client, queueClient *queue.Client, redisClient *redis.Client) *gin.Engine {
	jwtService := jwt.NewService(cfg.JWTSecret)

	// Initialize repositories
	postRepo := persistent.NewPostRepository(db)

	// Notifications go through RabbitMQ to the notification service
	var publisher notifier.TaskPublisher
	if queueClient != nil {
		publisher = queueClient
	}
	var images usecase.ImageStore
	if s3Client != nil {
		images = s3Client
	}

	// Initialize use cases
	postUseCase := usecase.NewPostUseCase(postRepo, notifier.NewQueueNotifier(publisher, log), images, redisClient, log)

	// Initialize HTTP handlers
	postHandler := postHTTP.NewPostHandler(postUseCase, log)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(jwtService))
	api.Use(middleware.RateLimitMiddleware(redisClient, 100, time.Minute))

	{
		api.POST("/posts", postHandler.CreatePost)
		api.GET("/posts", postHandler.ListPosts)
		api.GET("/posts/pending-approvals", postHandler.ListPendingApprovals)
		api.GET("/posts/:id", postHandler.GetPost)
		api.PUT("/posts/:id", postHandler.UpdatePost)
		api.DELETE("/posts/:id", postHandler.DeletePost)
		api.POST("/posts/:id/approve", postHandler.ApprovePost)
		api.POST("/posts/:id/reject", postHandler.RejectPost)
		api.POST("/posts/:id/publish", postHandler.PublishPost)
	}

	return r
}

func Run(cfg *config.Config, log *logger.Logger, db *gorm.DB, s3Client *s3.Client, queueClient *queue.Client, redisClient *redis.Client) {
	if cfg.TracingEnabled {
		if err := tracing.Init("post-service", cfg.TracingOutput); err != nil {
			log.Warn("Tracing disabled: %v", err)
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           NewRouter(cfg, log, db, s3Client, queueClient, redisClient),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Post service starting on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server: %v", err)
			panic(err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down post service...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	if err := tracing.Shutdown(ctx); err != nil {
		log.Error("Error flushing traces: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error("Error closing database: %v", err)
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis: %v", err)
		}
	}

	if queueClient != nil {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing RabbitMQ: %v", err)
		}
	}

	log.Info("Post service exited")
}
