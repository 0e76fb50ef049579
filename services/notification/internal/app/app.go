package internal

import (
	"context"
	"errors"
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
	"tshe-crm/pkg/tracing"
	notificationHTTP "tshe-crm/services/notification/internal/controller/http"
	"tshe-crm/services/notification/internal/entity"
	"tshe-crm/services/notification/internal/repo/persistent"
	"tshe-crm/services/notification/internal/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "tshe-crm/services/notification/docs" // Swagger docs
)

const taskTimeout = 10 * time.Second

// NewUseCase builds the notification use case. queueClient and redisClient may be nil.
func NewUseCase(log *logger.Logger, db *gorm.DB, queueClient *queue.Client, redisClient *redis.Client) usecase.NotificationUseCase {
	var live usecase.LivePublisher
	if redisClient != nil {
		live = redisClient
	}
	var inspector usecase.QueueInspector
	if queueClient != nil {
		inspector = queueClient
	}
	return usecase.NewNotificationUseCase(persistent.NewNotificationRepository(db), live, inspector, log)
}

func NewRouter(cfg *config.Config, log *logger.Logger, notificationUseCase usecase.NotificationUseCase, redisClient *redis.Client) *gin.Engine {
	jwtService := jwt.NewService(cfg.JWTSecret)
	notificationHandler := notificationHTTP.NewNotificationHandler(notificationUseCase, redisClient, jwtService, log)

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
	// WebSocket clients authenticate with the token query parameter
	api.GET("/notifications/ws", notificationHandler.HandleWebSocket)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(jwtService))
	protected.Use(middleware.RateLimitMiddleware(redisClient, 300, time.Minute))
	{
		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.GetUnreadCount)
		protected.GET("/notifications/queue", notificationHandler.GetQueueStatus)
		protected.PATCH("/notifications/read-all", notificationHandler.MarkAllRead)
		protected.PATCH("/notifications/:id/read", notificationHandler.MarkRead)
		protected.DELETE("/notifications/:id", notificationHandler.DeleteNotification)
	}

	return r
}

// consumeTasks feeds RabbitMQ tasks into the use case. Undeliverable tasks are acked and dropped.
func consumeTasks(queueClient *queue.Client, notificationUseCase usecase.NotificationUseCase) error {
	return queueClient.ConsumeNotificationTasks(func(task *queue.NotificationTask) error {
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		defer cancel()

		err := notificationUseCase.HandleNotificationTask(ctx, task)
		if errors.Is(err, entity.ErrInvalidTask) {
			return nil
		}
		return err
	})
}

func Run(cfg *config.Config, log *logger.Logger, db *gorm.DB, queueClient *queue.Client, redisClient *redis.Client) {
	if cfg.TracingEnabled {
		if err := tracing.Init("notification-service", cfg.TracingOutput); err != nil {
			log.Warn("Tracing disabled: %v", err)
		}
	}

	notificationUseCase := NewUseCase(log, db, queueClient, redisClient)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           NewRouter(cfg, log, notificationUseCase, redisClient),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if queueClient != nil {
		log.Info("Starting notification queue consumer...")
		if err := consumeTasks(queueClient, notificationUseCase); err != nil {
			log.Error("Error starting notification queue consumer: %v", err)
		}
	} else {
		log.Warn("RabbitMQ unavailable, workflow notifications will not be received")
	}

	go func() {
		log.Info("Notification service starting on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server: %v", err)
			panic(err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down notification service...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Stop consuming before the database goes away
	if queueClient != nil {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing RabbitMQ: %v", err)
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	if err := tracing.Shutdown(ctx); err != nil {
		log.Error("Error flushing traces: %v", err)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis: %v", err)
		}
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Error("Error closing database: %v", err)
		}
	}

	log.Info("Notification service exited")
}
