package api

import (
	"net/http"

	"scriptslap-server/service"

	"github.com/gin-gonic/gin"
)

// ScriptCallback: POST /v1/hooks/scripts/:script_id
func (h *Handler) ScriptCallback(c *gin.Context) {
	var req service.ScriptCallback
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, &service.ValidationError{Message: "Invalid request body"})
		return
	}
	if err := h.Callbacks.ScriptResult(c.Request.Context(), c.Param("script_id"), req); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// RefinementCallback: POST /v1/hooks/refinements/:refinement_id
func (h *Handler) RefinementCallback(c *gin.Context) {
	var req service.RefinementCallback
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, &service.ValidationError{Message: "Invalid request body"})
		return
	}
	if err := h.Callbacks.RefinementResult(c.Request.Context(), c.Param("refinement_id"), req); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}
