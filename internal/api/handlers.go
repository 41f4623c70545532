package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"task-timeout-service/internal/db"
	"task-timeout-service/internal/logging"
	"task-timeout-service/internal/scanner"
	"task-timeout-service/internal/ws"
)

type Handler struct {
	db      *db.DB
	logger  *logging.Logger
	scanner *scanner.Scanner
	wsm     *ws.Manager
}

func NewHandler(db *db.DB, logger *logging.Logger, sc *scanner.Scanner, wsm *ws.Manager) *Handler {
	return &Handler{db: db, logger: logger, scanner: sc, wsm: wsm}
}

// RunScan triggers one sweep synchronously and returns its aggregate summary.
// Per-recipient delivery errors never surface here beyond the counts.
func (h *Handler) RunScan(c *gin.Context) {
	summary, err := h.scanner.Run(c.Request.Context(), time.Now())
	if err != nil {
		h.logger.Errorf("Manual scan failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":   false,
			"exit_code": 1,
			"output":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"exit_code": 0,
		"output":    summary.String(),
	})
}

func (h *Handler) GetTimeoutNotifications(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	notifications, err := h.db.GetTimeoutNotifications(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Errorf("Failed to get timeout notifications: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notifications"})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (h *Handler) GetTimeoutNotificationsByTask(c *gin.Context) {
	taskID, err := strconv.ParseInt(c.Param("task_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task_id"})
		return
	}

	notifications, err := h.db.GetTimeoutNotificationsByTaskID(c.Request.Context(), taskID)
	if err != nil {
		h.logger.Errorf("Failed to get notifications for task %d: %v", taskID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get notifications"})
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (h *Handler) GetTaskDelays(c *gin.Context) {
	taskID, err := strconv.ParseInt(c.Param("task_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task_id"})
		return
	}

	delays, err := h.db.GetDelaysByTaskID(c.Request.Context(), taskID)
	if err != nil {
		h.logger.Errorf("Failed to get delays for task %d: %v", taskID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get delays"})
		return
	}
	c.JSON(http.StatusOK, delays)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection and keeps it registered until the client
// goes away. The connection only ever receives pushes; inbound frames are
// drained and dropped.
func (h *Handler) ServeWS(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed for user %d: %v", userID, err)
		return
	}

	h.wsm.AddConnection(userID, conn)
	defer func() {
		h.wsm.RemoveConnection(userID, conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
