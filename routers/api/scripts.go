package api

import (
	"net/http"
	"strings"

	"scriptslap-server/service"
	"scriptslap-server/workflow"

	"github.com/gin-gonic/gin"
)

const idempotencyKeyHeader = "Idempotency-Key"

// GenerateScript: POST /functions/v1/generate-script
func (h *Handler) GenerateScript(c *gin.Context) {
	var req workflow.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, &service.ValidationError{Message: "Invalid request body"})
		return
	}

	res, err := h.Generation.Generate(c.Request.Context(), principalFrom(c), &req, idempotencyKey(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RefineContent: POST /functions/v1/refine-content
func (h *Handler) RefineContent(c *gin.Context) {
	var req workflow.RefineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, &service.ValidationError{Message: "Invalid request body"})
		return
	}

	res, err := h.Refinement.Refine(c.Request.Context(), principalFrom(c), &req, idempotencyKey(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func idempotencyKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(idempotencyKeyHeader))
}
