package handler

import (
	"errors"
	"net/http"

	"atlas-service/internal/export"
	"atlas-service/internal/models"
	"atlas-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles HTTP requests
type Handler struct {
	explorer  *service.Explorer
	exporter  *export.Service
	exportCfg export.Config
	models    []string
	logger    *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(explorer *service.Explorer, exporter *export.Service, exportCfg export.Config, allowedModels []string, logger *zap.Logger) *Handler {
	return &Handler{
		explorer:  explorer,
		exporter:  exporter,
		exportCfg: exportCfg,
		models:    allowedModels,
		logger:    logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		// Selection endpoints
		api.POST("/selection", h.UpdateSelection)
		api.GET("/selection", h.GetSelection)
		api.GET("/selection/csv", h.DownloadSelectionCSV)

		// Chat endpoints
		api.POST("/chat", h.ChatTurn)
		api.GET("/chat", h.GetTranscript)
		api.POST("/chat/clear", h.ClearChat)

		// Export
		api.GET("/export", h.DownloadArchive)

		// Models available for chat
		api.GET("/models", h.GetModels)
	}

	// Health check
	r.GET("/health", h.HealthCheck)
}

// selectionSummary is the response body for selection endpoints. Average
// is null for an empty selection.
type selectionSummary struct {
	Predicate string   `json:"predicate"`
	Total     int      `json:"total"`
	Average   *float64 `json:"average_rating"`
	Changed   bool     `json:"changed"`
}

func summarize(sel *models.Selection, changed bool) selectionSummary {
	summary := selectionSummary{
		Predicate: sel.Predicate,
		Total:     len(sel.Rows),
		Changed:   changed,
	}
	if mean, ok := sel.MeanRating(); ok {
		summary.Average = &mean
	}
	return summary
}

// UpdateSelection evaluates a predicate from the view layer. An invalid
// predicate is surfaced inline; the previous selection stays active.
func (h *Handler) UpdateSelection(c *gin.Context) {
	var req models.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sel, changed, err := h.explorer.RecomputeSelection(req.Predicate)
	if err != nil {
		if errors.Is(err, models.ErrInvalidPredicate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to recompute selection", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "selection failed"})
		return
	}

	c.JSON(http.StatusOK, summarize(sel, changed))
}

// GetSelection returns the current selection with its rows.
func (h *Handler) GetSelection(c *gin.Context) {
	sel := h.explorer.ActiveSelection()
	if sel == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": models.ErrNoSelection.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": summarize(sel, false),
		"rows":    sel.Rows,
	})
}

// DownloadSelectionCSV streams the current selection as a CSV attachment.
// Nothing is persisted server-side.
func (h *Handler) DownloadSelectionCSV(c *gin.Context) {
	sel := h.explorer.ActiveSelection()
	if sel == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": models.ErrNoSelection.Error()})
		return
	}

	data, err := export.SelectionCSV(sel)
	if err != nil {
		h.logger.Error("Failed to export selection CSV", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=selected_reviews.csv")
	c.Data(http.StatusOK, "text/csv", data)
}

// ChatTurn runs one user turn against the active selection and returns
// the full transcript once the assistant call resolves.
func (h *Handler) ChatTurn(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Model != "" && !h.modelAllowed(req.Model) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown model: " + req.Model})
		return
	}

	messages, err := h.explorer.HandleChatTurn(c.Request.Context(), req.Message, req.Model)
	if err != nil {
		if errors.Is(err, models.ErrNoSelection) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Chat turn failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chat failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": h.explorer.SessionID(),
		"messages":   messages,
		"total":      len(messages),
	})
}

// GetTranscript returns the conversation for the current selection.
func (h *Handler) GetTranscript(c *gin.Context) {
	messages := h.explorer.Transcript()
	c.JSON(http.StatusOK, gin.H{
		"session_id": h.explorer.SessionID(),
		"messages":   messages,
		"total":      len(messages),
	})
}

// ClearChat empties the transcript on user request.
func (h *Handler) ClearChat(c *gin.Context) {
	h.explorer.ClearChat()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// DownloadArchive streams the dataset archive as a zip attachment.
func (h *Handler) DownloadArchive(c *gin.Context) {
	data, err := h.exporter.Archive(h.explorer.Store(), h.exportCfg)
	if err != nil {
		h.logger.Error("Failed to build archive", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Disposition", "attachment; filename=atlas_export.zip")
	c.Data(http.StatusOK, "application/zip", data)
}

// GetModels lists models selectable for chat.
func (h *Handler) GetModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.models})
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "atlas-service",
		"version": export.Version,
	})
}

func (h *Handler) modelAllowed(model string) bool {
	if len(h.models) == 0 {
		return true
	}
	for _, m := range h.models {
		if m == model {
			return true
		}
	}
	return false
}
