package api

import (
	"net/http"

	"scriptslap-server/service"

	"github.com/gin-gonic/gin"
)

// GetScript: GET /v1/api/scripts/:script_id
func (h *Handler) GetScript(c *gin.Context) {
	view, err := h.Editor.GetScript(c.Request.Context(), principalFrom(c), c.Param("script_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListRefinements: GET /v1/api/scripts/:script_id/refinements
func (h *Handler) ListRefinements(c *gin.Context) {
	refs, err := h.Editor.ListRefinements(c.Request.Context(), principalFrom(c), c.Param("script_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refinements": refs})
}

// SelectRefinement: POST /v1/api/refinements/:refinement_id/select
func (h *Handler) SelectRefinement(c *gin.Context) {
	var req struct {
		Option string `json:"option"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, &service.ValidationError{Message: "Invalid request body"})
		return
	}

	res, err := h.Editor.SelectRefinement(c.Request.Context(), principalFrom(c), c.Param("refinement_id"), req.Option)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DismissRefinement: POST /v1/api/refinements/:refinement_id/dismiss
func (h *Handler) DismissRefinement(c *gin.Context) {
	ref, err := h.Editor.DismissRefinement(c.Request.Context(), principalFrom(c), c.Param("refinement_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refinement": ref})
}

// ExportScript: POST /v1/api/scripts/:script_id/export
func (h *Handler) ExportScript(c *gin.Context) {
	res, err := h.Editor.Export(c.Request.Context(), principalFrom(c), c.Param("script_id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
