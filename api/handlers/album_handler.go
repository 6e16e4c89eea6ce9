package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/albumgrab-go/internal/app"
	"github.com/yourusername/albumgrab-go/internal/domain"
)

// AlbumHandler handles album-run HTTP requests
type AlbumHandler struct {
	queue  *app.TaskQueue
	logger *zap.Logger
}

// NewAlbumHandler creates a new album handler
func NewAlbumHandler(queue *app.TaskQueue, logger *zap.Logger) *AlbumHandler {
	return &AlbumHandler{
		queue:  queue,
		logger: logger,
	}
}

// AddAlbumRequest represents a request to enqueue an album
type AddAlbumRequest struct {
	URL       string `json:"url" binding:"required"`
	OutputDir string `json:"output_dir,omitempty"`
}

// AddAlbum handles POST /api/v1/albums
func (h *AlbumHandler) AddAlbum(c *gin.Context) {
	var req AddAlbumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := h.queue.Enqueue(req.URL, req.OutputDir)
	if err != nil {
		h.logger.Error("Failed to enqueue album", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, run)
}

// GetAlbum handles GET /api/v1/albums/:id
func (h *AlbumHandler) GetAlbum(c *gin.Context) {
	id := c.Param("id")

	run, err := h.queue.GetRun(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	c.JSON(http.StatusOK, run)
}

// ListAlbums handles GET /api/v1/albums
func (h *AlbumHandler) ListAlbums(c *gin.Context) {
	status := domain.RunStatus(c.Query("status"))

	runs, err := h.queue.ListRuns(status)
	if err != nil {
		h.logger.Error("Failed to list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, runs)
}

// GetOutcomes handles GET /api/v1/albums/:id/outcomes
func (h *AlbumHandler) GetOutcomes(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.queue.GetRun(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	outcomes, err := h.queue.GetOutcomes(id)
	if err != nil {
		h.logger.Error("Failed to list outcomes", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, outcomes)
}

// GetStats handles GET /api/v1/albums/stats
func (h *AlbumHandler) GetStats(c *gin.Context) {
	stats, err := h.queue.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}
