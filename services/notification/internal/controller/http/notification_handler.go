package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"tshe-crm/pkg/jwt"
	"tshe-crm/pkg/logger"
	"tshe-crm/pkg/middleware"
	"tshe-crm/services/notification/internal/entity"
	"tshe-crm/services/notification/internal/usecase"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type NotificationHandler struct {
	notificationUseCase usecase.NotificationUseCase
	redisClient         *redis.Client
	jwtService          *jwt.Service
	logger              *logger.Logger
}

// NewNotificationHandler wires the handler. redisClient may be nil, which disables the live stream.
func NewNotificationHandler(notificationUseCase usecase.NotificationUseCase, redisClient *redis.Client, jwtService *jwt.Service, logger *logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
		redisClient:         redisClient,
		jwtService:          jwtService,
		logger:              logger,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *NotificationHandler) respondError(c *gin.Context, action string, err error) {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": entity.ErrNotFound.Error(), "code": "NOT_FOUND"})
	case errors.Is(err, usecase.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION"})
	case errors.Is(err, usecase.ErrQueueUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "code": "UNAVAILABLE"})
	default:
		h.logger.Error("Failed to %s: %v", action, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action, "code": "INTERNAL"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": "VALIDATION"})
}

// GetNotifications godoc
// @Summary      List notifications
// @Description  Notifications of the authenticated user, newest first
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Page size (default 20, max 100)"
// @Param        offset query int false "Offset"
// @Param        unread query bool false "Only unread"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /notifications [get]
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)

	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, "invalid limit")
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		badRequest(c, "invalid offset")
		return
	}
	unread := false
	if raw := c.Query("unread"); raw != "" {
		if unread, err = strconv.ParseBool(raw); err != nil {
			badRequest(c, "invalid unread")
			return
		}
	}

	notifications, total, err := h.notificationUseCase.ListNotifications(c.Request.Context(), userID, usecase.ListNotificationsInput{
		UnreadOnly: unread,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.respondError(c, "get notifications", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"count":         len(notifications),
		"total":         total,
		"offset":        offset,
	})
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// GetUnreadCount godoc
// @Summary      Unread notification count
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  ErrorResponse
// @Router       /notifications/unread-count [get]
func (h *NotificationHandler) GetUnreadCount(c *gin.Context) {
	count, err := h.notificationUseCase.UnreadCount(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		h.respondError(c, "count unread notifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// MarkAllRead godoc
// @Summary      Mark all notifications read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  ErrorResponse
// @Router       /notifications/read-all [patch]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	updated, err := h.notificationUseCase.MarkAllRead(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		h.respondError(c, "mark notifications read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// MarkRead godoc
// @Summary      Mark notification read
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Notification ID"
// @Success      200  {object}  entity.Notification
// @Failure      404  {object}  ErrorResponse
// @Router       /notifications/{id}/read [patch]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notification, err := h.notificationUseCase.MarkRead(c.Request.Context(), c.Param("id"), c.GetString(middleware.ContextUserID))
	if err != nil {
		h.respondError(c, "mark notification read", err)
		return
	}
	c.JSON(http.StatusOK, notification)
}

// DeleteNotification godoc
// @Summary      Delete notification
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Notification ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /notifications/{id} [delete]
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	id := c.Param("id")
	if err := h.notificationUseCase.DeleteNotification(c.Request.Context(), id, c.GetString(middleware.ContextUserID)); err != nil {
		h.respondError(c, "delete notification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted", "id": id})
}

// GetQueueStatus godoc
// @Summary      Notification queue depth
// @Description  Number of workflow notification tasks still waiting in RabbitMQ
// @Tags         notifications
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  ErrorResponse
// @Router       /notifications/queue [get]
func (h *NotificationHandler) GetQueueStatus(c *gin.Context) {
	length, err := h.notificationUseCase.QueueLength()
	if err != nil {
		h.respondError(c, "get queue length", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue_length": length})
}

// HandleWebSocket godoc
// @Summary      Live notification stream (WebSocket)
// @Description  Streams new notifications of the caller as JSON text frames
// @Tags         notifications
// @Param        token query string true "JWT access token"
// @Success      101  {string}  string  "Switching Protocols"
// @Failure      401  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /notifications/ws [get]
func (h *NotificationHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token required", "code": "UNAUTHORIZED"})
			return
		}
		claims, err := h.jwtService.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token", "code": "UNAUTHORIZED"})
			return
		}
		userID = claims.UserID
	}

	if h.redisClient == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live notifications are not available", "code": "UNAVAILABLE"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection to WebSocket: %v", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	pubsub := h.redisClient.Subscribe(ctx, entity.LiveChannel(userID))
	defer pubsub.Close()

	h.logger.Info("WebSocket connected for user %s", userID)

	// The read loop only watches for close frames and pongs.
	done := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Warn("WebSocket read error for user %s: %v", userID, err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	messages := pubsub.Channel()
	for {
		select {
		case <-done:
			h.logger.Info("WebSocket disconnected for user %s", userID)
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				h.logger.Error("Failed to write WebSocket message: %v", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
