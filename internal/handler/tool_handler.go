package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ggp-deploy/internal/model"
	"ggp-deploy/internal/service"
)

type ToolHandler struct {
	toolService *service.ToolService
}

func NewToolHandler(toolService *service.ToolService) *ToolHandler {
	return &ToolHandler{
		toolService: toolService,
	}
}

func (h *ToolHandler) Check(c *gin.Context) {
	result := h.toolService.Check(c.Request.Context())
	c.JSON(http.StatusOK, model.CheckResponse{
		Success: result.Success,
		Path:    result.Path,
		Details: result.Details,
	})
}
