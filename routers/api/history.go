package api

import (
	"net/http"
	"strconv"

	"scriptslap-server/service"

	"github.com/gin-gonic/gin"
)

// ListScripts: GET /v1/api/scripts?q=&status=&favorites=&sort=
func (h *Handler) ListScripts(c *gin.Context) {
	favorites, _ := strconv.ParseBool(c.DefaultQuery("favorites", "false"))
	filter := service.HistoryFilter{
		Query:         c.Query("q"),
		Status:        c.Query("status"),
		FavoritesOnly: favorites,
		Sort:          c.DefaultQuery("sort", service.SortDate),
	}

	list, err := h.History.List(c.Request.Context(), principalFrom(c), filter)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// DeleteScript: DELETE /v1/api/scripts/:script_id
func (h *Handler) DeleteScript(c *gin.Context) {
	if err := h.History.Delete(c.Request.Context(), principalFrom(c), c.Param("script_id")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Script deleted"})
}

// UpdateMetadata: PUT /v1/api/scripts/:script_id/metadata
func (h *Handler) UpdateMetadata(c *gin.Context) {
	var req service.MetadataUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, &service.ValidationError{Message: "Invalid request body"})
		return
	}

	m, err := h.History.UpdateMetadata(c.Request.Context(), principalFrom(c), c.Param("script_id"), req)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// AddTag: POST /v1/api/scripts/:script_id/tags
func (h *Handler) AddTag(c *gin.Context) {
	var req struct {
		Tag string `json:"tag"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handleServiceError(c, &service.ValidationError{Message: "Invalid request body"})
		return
	}

	m, err := h.History.AddTag(c.Request.Context(), principalFrom(c), c.Param("script_id"), req.Tag)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// GetProfile: GET /v1/api/profile
func (h *Handler) GetProfile(c *gin.Context) {
	p, err := h.History.Profile(c.Request.Context(), principalFrom(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
