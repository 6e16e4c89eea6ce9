package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/albumgrab-go/internal/app"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	queue *app.TaskQueue
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(queue *app.TaskQueue) *HealthHandler {
	return &HealthHandler{
		queue: queue,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Queue   struct {
		Running bool `json:"running"`
	} `json:"queue"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	}
	response.Queue.Running = h.queue.IsRunning()

	c.JSON(http.StatusOK, response)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.queue.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "task queue not running",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
